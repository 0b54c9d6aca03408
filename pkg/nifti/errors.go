package nifti

import "errors"

// Errors returned by the codec. Callers match them with errors.Is; the
// returned error usually wraps one of these with the offending values.
var (
	ErrShapeMismatch       = errors.New("shape mismatch")
	ErrBufferSizeMismatch  = errors.New("buffer size mismatch")
	ErrUnsupportedDatatype = errors.New("unsupported datatype")
	ErrBadMagic            = errors.New("bad magic signature")
	ErrMalformedHeader     = errors.New("malformed header")
	ErrTruncatedData       = errors.New("truncated data")
)

// ErrorKind is a stable identifier for one of the codec's error classes.
type ErrorKind string

const (
	KindNone                ErrorKind = ""
	KindShapeMismatch       ErrorKind = "ShapeMismatch"
	KindBufferSizeMismatch  ErrorKind = "BufferSizeMismatch"
	KindUnsupportedDatatype ErrorKind = "UnsupportedDatatype"
	KindBadMagic            ErrorKind = "BadMagic"
	KindMalformedHeader     ErrorKind = "MalformedHeader"
	KindTruncatedData       ErrorKind = "TruncatedData"
	KindOther               ErrorKind = "Other"
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrShapeMismatch, KindShapeMismatch},
	{ErrBufferSizeMismatch, KindBufferSizeMismatch},
	{ErrUnsupportedDatatype, KindUnsupportedDatatype},
	{ErrBadMagic, KindBadMagic},
	{ErrMalformedHeader, KindMalformedHeader},
	{ErrTruncatedData, KindTruncatedData},
}

// KindOf classifies err. It returns KindNone for a nil error and KindOther
// for errors that did not originate in the codec (I/O failures and the like).
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, ek := range errorKinds {
		if errors.Is(err, ek.err) {
			return ek.kind
		}
	}
	return KindOther
}
