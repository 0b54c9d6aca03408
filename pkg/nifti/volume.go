package nifti

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MaxDims is the largest number of dimensions a NIfTI-1 header can describe.
const MaxDims = 7

// MaxDimSize is the largest size of a single dimension. Dimensions are
// stored as signed 16-bit integers.
const MaxDimSize = math.MaxInt16

// Scale holds the optional linear rescaling of stored values
// (scl_slope, scl_inter). The codec never applies it.
type Scale struct {
	Slope     float32 `json:"slope" yaml:"slope"`
	Intercept float32 `json:"intercept" yaml:"intercept"`
}

// NoScale is the scale written for arrays without rescaling.
var NoScale = Scale{Slope: 1, Intercept: 0}

// VoxelArray is an immutable in-memory volume. Its data buffer holds the
// elements in storage order, with the channels of composite kinds
// interleaved per voxel.
type VoxelArray struct {
	shape      []int
	kind       ElementKind
	data       []byte
	transform  Affine
	scale      Scale
	descriptor string
}

// Build validates its arguments and returns a VoxelArray that owns a copy of
// raw.
//
// Parameters:
//   - shape: 1 to 7 positive dimension sizes
//   - kind: element kind of every voxel; no coercion is performed
//   - raw: little-endian element bytes, exactly product(shape) elements long
//   - transform: voxel-to-world affine, kept verbatim
//   - scale: slope/intercept metadata, kept verbatim
//   - descriptor: free-text annotation
//
// Returns:
//   - the constructed array
//   - ErrShapeMismatch, ErrUnsupportedDatatype or ErrBufferSizeMismatch
func Build(shape []int, kind ElementKind, raw []byte, transform Affine, scale Scale, descriptor string) (*VoxelArray, error) {
	if err := ValidateShape(shape); err != nil {
		return nil, err
	}
	dt, err := DatatypeOf(kind)
	if err != nil {
		return nil, err
	}

	want, err := byteLength(shape, dt)
	if err != nil {
		return nil, err
	}
	if len(raw) != want {
		return nil, fmt.Errorf("%w: shape %v of %s needs %d bytes, got %d",
			ErrBufferSizeMismatch, shape, dt.Name, want, len(raw))
	}

	v := &VoxelArray{
		shape:      append([]int(nil), shape...),
		kind:       kind,
		data:       append([]byte(nil), raw...),
		transform:  transform,
		scale:      scale,
		descriptor: descriptor,
	}
	return v, nil
}

// ValidateShape checks that shape has 1 to MaxDims dimensions, each between 1
// and MaxDimSize. Failures wrap ErrShapeMismatch.
func ValidateShape(shape []int) error {
	if len(shape) == 0 || len(shape) > MaxDims {
		return fmt.Errorf("%w: %d dimensions, want 1 to %d", ErrShapeMismatch, len(shape), MaxDims)
	}
	for i, n := range shape {
		if n <= 0 || n > MaxDimSize {
			return fmt.Errorf("%w: dimension %d has size %d, want 1 to %d", ErrShapeMismatch, i, n, MaxDimSize)
		}
	}
	return nil
}

// ElementCount validates shape and returns the number of voxels it holds.
func ElementCount(shape []int) (int, error) {
	if err := ValidateShape(shape); err != nil {
		return 0, err
	}
	n := 1
	for _, d := range shape {
		if n > math.MaxInt/d {
			return 0, fmt.Errorf("%w: shape %v is too large", ErrShapeMismatch, shape)
		}
		n *= d
	}
	return n, nil
}

// byteLength returns the buffer length for shape, guarding against products
// that overflow int.
func byteLength(shape []int, dt Datatype) (int, error) {
	n := dt.ElementSize()
	for _, d := range shape {
		if n > math.MaxInt/d {
			return 0, fmt.Errorf("%w: shape %v is too large", ErrShapeMismatch, shape)
		}
		n *= d
	}
	return n, nil
}

// Shape returns a copy of the dimension sizes.
func (v *VoxelArray) Shape() []int {
	return append([]int(nil), v.shape...)
}

// Kind returns the element kind.
func (v *VoxelArray) Kind() ElementKind { return v.kind }

// Transform returns the voxel-to-world affine.
func (v *VoxelArray) Transform() Affine { return v.transform }

// Scale returns the slope/intercept metadata.
func (v *VoxelArray) Scale() Scale { return v.scale }

// Descriptor returns the text annotation.
func (v *VoxelArray) Descriptor() string { return v.descriptor }

// Data returns a copy of the raw element bytes.
func (v *VoxelArray) Data() []byte {
	return append([]byte(nil), v.data...)
}

// Len returns the size of the data buffer in bytes.
func (v *VoxelArray) Len() int { return len(v.data) }

// NumElements returns the number of voxels, product(shape).
func (v *VoxelArray) NumElements() int {
	n := 1
	for _, d := range v.shape {
		n *= d
	}
	return n
}

// Datatype returns the registry entry of the array's kind.
func (v *VoxelArray) Datatype() Datatype {
	return byKind[v.kind]
}

// elementBytes returns the bytes of element i, all channels included. The
// returned slice aliases internal storage and must not be modified.
func (v *VoxelArray) elementBytes(i int) []byte {
	size := byKind[v.kind].ElementSize()
	return v.data[i*size : (i+1)*size]
}

// ValueAt returns channel ch of element i as a float64. Integer kinds are
// converted exactly; Complex64 exposes the real part as channel 0 and the
// imaginary part as channel 1; RGB24 exposes R, G, B as channels 0 to 2.
func (v *VoxelArray) ValueAt(i, ch int) (float64, error) {
	dt := byKind[v.kind]
	if i < 0 || i >= v.NumElements() {
		return 0, fmt.Errorf("element index %d out of range [0, %d)", i, v.NumElements())
	}
	if ch < 0 || ch >= dt.Channels {
		return 0, fmt.Errorf("channel %d out of range for %s", ch, dt.Name)
	}
	b := v.elementBytes(i)[ch*dt.ByteWidth:]
	switch v.kind {
	case Bit8, UInt8, RGB24:
		return float64(b[0]), nil
	case Int8:
		return float64(int8(b[0])), nil
	case UInt16:
		return float64(binary.LittleEndian.Uint16(b)), nil
	case Int16:
		return float64(int16(binary.LittleEndian.Uint16(b))), nil
	case UInt32:
		return float64(binary.LittleEndian.Uint32(b)), nil
	case Int32:
		return float64(int32(binary.LittleEndian.Uint32(b))), nil
	case Float32, Complex64:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
	case Float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	}
	return 0, fmt.Errorf("%w: element kind %d", ErrUnsupportedDatatype, int(v.kind))
}

// Pack serializes a slice of fixed-size numbers ([]uint8, []int16,
// []float32, []complex64, ...) into little-endian element bytes suitable for
// Build.
func Pack(values any) ([]byte, error) {
	return binary.Append(nil, binary.LittleEndian, values)
}

// Unpack decodes the array's data into dst, which must be a slice of the
// matching Go type and length (for example []int16 for Int16, []complex64 for
// Complex64, []uint8 of length 3*NumElements for RGB24).
func (v *VoxelArray) Unpack(dst any) error {
	n, err := binary.Decode(v.data, binary.LittleEndian, dst)
	if err != nil {
		return err
	}
	if n != len(v.data) {
		return fmt.Errorf("%w: decoded %d of %d bytes", ErrBufferSizeMismatch, n, len(v.data))
	}
	return nil
}
