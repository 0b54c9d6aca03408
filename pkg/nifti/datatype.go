package nifti

import (
	"fmt"
	"strings"
)

// ElementKind identifies the type of a single voxel element.
//
// The zero value is not a valid kind; every valid kind has an entry in the
// datatype registry.
type ElementKind int

const (
	// Bit8 holds boolean masks, one byte per element. Writers use 0 and 1,
	// but the codec treats the byte as opaque: Build accepts any value and
	// Decode returns stored bytes unchanged.
	Bit8 ElementKind = iota + 1
	UInt8
	UInt16
	Int8
	Int16
	Int32
	UInt32
	Float32
	Float64
	Complex64
	RGB24
)

// NIfTI-1 datatype codes.
const (
	DTBinary    int16 = 1
	DTUint8     int16 = 2
	DTInt16     int16 = 4
	DTInt32     int16 = 8
	DTFloat32   int16 = 16
	DTComplex64 int16 = 32
	DTFloat64   int16 = 64
	DTRGB24     int16 = 128
	DTInt8      int16 = 256
	DTUint16    int16 = 512
	DTUint32    int16 = 768
)

// Datatype describes how one element kind is laid out on disk.
type Datatype struct {
	Kind ElementKind
	Name string
	Code int16
	// ByteWidth is the size of one channel of one element.
	ByteWidth int
	Channels  int
}

// ElementSize returns the number of bytes one element occupies.
func (d Datatype) ElementSize() int {
	return d.ByteWidth * d.Channels
}

// Bitpix returns the bits-per-pixel value stored in the header.
func (d Datatype) Bitpix() int16 {
	return int16(8 * d.ElementSize())
}

// registry is ordered by code. Bit8 is stored one byte per element rather
// than bit-packed, so its bitpix is 8.
var registry = []Datatype{
	{Kind: Bit8, Name: "bit8", Code: DTBinary, ByteWidth: 1, Channels: 1},
	{Kind: UInt8, Name: "uint8", Code: DTUint8, ByteWidth: 1, Channels: 1},
	{Kind: Int16, Name: "int16", Code: DTInt16, ByteWidth: 2, Channels: 1},
	{Kind: Int32, Name: "int32", Code: DTInt32, ByteWidth: 4, Channels: 1},
	{Kind: Float32, Name: "float32", Code: DTFloat32, ByteWidth: 4, Channels: 1},
	{Kind: Complex64, Name: "complex64", Code: DTComplex64, ByteWidth: 4, Channels: 2},
	{Kind: Float64, Name: "float64", Code: DTFloat64, ByteWidth: 8, Channels: 1},
	{Kind: RGB24, Name: "rgb24", Code: DTRGB24, ByteWidth: 1, Channels: 3},
	{Kind: Int8, Name: "int8", Code: DTInt8, ByteWidth: 1, Channels: 1},
	{Kind: UInt16, Name: "uint16", Code: DTUint16, ByteWidth: 2, Channels: 1},
	{Kind: UInt32, Name: "uint32", Code: DTUint32, ByteWidth: 4, Channels: 1},
}

var (
	byKind = make(map[ElementKind]Datatype, len(registry))
	byCode = make(map[int16]Datatype, len(registry))
)

func init() {
	for _, dt := range registry {
		byKind[dt.Kind] = dt
		byCode[dt.Code] = dt
	}
}

// Lookup returns the on-disk description of kind.
//
// Parameters:
//   - kind: the element kind to describe
//
// Returns:
//   - the datatype code, the per-channel byte width and the channel count
//   - ErrUnsupportedDatatype when kind is not one of the registered kinds
func Lookup(kind ElementKind) (code int16, byteWidth, channels int, err error) {
	dt, ok := byKind[kind]
	if !ok {
		return 0, 0, 0, fmt.Errorf("%w: element kind %d", ErrUnsupportedDatatype, int(kind))
	}
	return dt.Code, dt.ByteWidth, dt.Channels, nil
}

// DatatypeOf returns the full registry entry for kind.
func DatatypeOf(kind ElementKind) (Datatype, error) {
	dt, ok := byKind[kind]
	if !ok {
		return Datatype{}, fmt.Errorf("%w: element kind %d", ErrUnsupportedDatatype, int(kind))
	}
	return dt, nil
}

// Resolve maps a header's datatype code and bitpix back to an element kind.
// A bitpix that disagrees with the code's width is treated as corruption.
func Resolve(code, bitpix int16) (ElementKind, error) {
	dt, ok := byCode[code]
	if !ok {
		return 0, fmt.Errorf("%w: datatype code %d", ErrUnsupportedDatatype, code)
	}
	if dt.Bitpix() != bitpix {
		return 0, fmt.Errorf("%w: datatype code %d (%s) expects bitpix %d, header has %d",
			ErrUnsupportedDatatype, code, dt.Name, dt.Bitpix(), bitpix)
	}
	return dt.Kind, nil
}

// Datatypes returns a copy of the registry in code order.
func Datatypes() []Datatype {
	out := make([]Datatype, len(registry))
	copy(out, registry)
	return out
}

// Kinds returns every supported element kind in code order.
func Kinds() []ElementKind {
	kinds := make([]ElementKind, len(registry))
	for i, dt := range registry {
		kinds[i] = dt.Kind
	}
	return kinds
}

// ParseKind maps a case-insensitive kind name ("uint8", "rgb24", ...) to its
// kind. A few numpy-style aliases are accepted as well.
func ParseKind(name string) (ElementKind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "bool", "binary":
		n = "bit8"
	case "u8", "gray8":
		n = "uint8"
	case "u16", "gray16":
		n = "uint16"
	case "rgb":
		n = "rgb24"
	case "float":
		n = "float32"
	case "double":
		n = "float64"
	}
	for _, dt := range registry {
		if dt.Name == n {
			return dt.Kind, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown element kind %q", ErrUnsupportedDatatype, name)
}

// String returns the registry name of k.
func (k ElementKind) String() string {
	if dt, ok := byKind[k]; ok {
		return dt.Name
	}
	return fmt.Sprintf("ElementKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k ElementKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ElementKind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
