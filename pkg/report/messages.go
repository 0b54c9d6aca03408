// Package report renders round-trip results, comparison reports and volume
// inspections as text tables or JSON.
package report

import (
	"niftiverify/pkg/nifti"
)

var messages = map[nifti.ErrorKind]string{
	nifti.KindShapeMismatch:       "volume shape must have 1 to 7 dimensions, each at least 1",
	nifti.KindBufferSizeMismatch:  "data length does not match the volume's shape and element type",
	nifti.KindUnsupportedDatatype: "element type is not supported",
	nifti.KindBadMagic:            "not a single-file NIfTI-1 volume",
	nifti.KindMalformedHeader:     "NIfTI-1 header is malformed",
	nifti.KindTruncatedData:       "file ends before the volume data does",
	nifti.KindOther:               "unexpected error",
}

// Message returns the user-facing message for kind. Every kind has a
// distinct message that does not change between releases; KindNone maps to
// the empty string.
func Message(kind nifti.ErrorKind) string {
	if kind == nifti.KindNone {
		return ""
	}
	if m, ok := messages[kind]; ok {
		return m
	}
	return messages[nifti.KindOther]
}

// ErrorBody is the JSON shape of an error.
type ErrorBody struct {
	Kind    nifti.ErrorKind `json:"kind"`
	Message string          `json:"message"`
	Detail  string          `json:"detail,omitempty"`
}

// ErrorOf classifies err for display. Detail carries the wrapped error text.
func ErrorOf(err error) ErrorBody {
	kind := nifti.KindOf(err)
	b := ErrorBody{Kind: kind, Message: Message(kind)}
	if err != nil {
		b.Detail = err.Error()
	}
	return b
}
