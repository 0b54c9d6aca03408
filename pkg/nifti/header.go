package nifti

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// HeaderSize is the fixed on-disk size of a NIfTI-1 header.
const HeaderSize = 348

// Single-file and pair magic signatures.
var (
	magicSingle = [4]byte{'n', '+', '1', 0}
	magicPair   = [4]byte{'n', 'i', '1', 0}
)

// Transform codes for qform_code and sform_code.
const (
	XformUnknown     int16 = 0
	XformScannerAnat int16 = 1
)

// Header mirrors the NIfTI-1 header field for field. Its binary encoding
// with encoding/binary is exactly HeaderSize bytes.
type Header struct {
	SizeofHdr    int32
	DataType     [10]byte
	DBName       [18]byte
	Extents      int32
	SessionError int16
	Regular      byte
	DimInfo      byte

	Dim        [8]int16
	IntentP1   float32
	IntentP2   float32
	IntentP3   float32
	IntentCode int16
	Datatype   int16
	Bitpix     int16
	SliceStart int16
	Pixdim     [8]float32
	VoxOffset  float32
	SclSlope   float32
	SclInter   float32
	SliceEnd   int16
	SliceCode  byte
	XYZTUnits  byte
	CalMax     float32
	CalMin     float32

	SliceDuration float32
	TOffset       float32
	GLMax         int32
	GLMin         int32

	Descrip [80]byte
	AuxFile [24]byte

	QformCode int16
	SformCode int16
	QuaternB  float32
	QuaternC  float32
	QuaternD  float32
	QOffsetX  float32
	QOffsetY  float32
	QOffsetZ  float32
	SrowX     [4]float32
	SrowY     [4]float32
	SrowZ     [4]float32

	IntentName [16]byte
	Magic      [4]byte
}

// NewHeader fills a header for v. Fields the codec does not use stay zero so
// that identical arrays always produce identical headers.
func NewHeader(v *VoxelArray) (*Header, error) {
	dt, err := DatatypeOf(v.kind)
	if err != nil {
		return nil, err
	}
	if err := ValidateShape(v.shape); err != nil {
		return nil, err
	}

	h := &Header{
		SizeofHdr: HeaderSize,
		Datatype:  dt.Code,
		Bitpix:    dt.Bitpix(),
		VoxOffset: HeaderSize,
		SclSlope:  v.scale.Slope,
		SclInter:  v.scale.Intercept,
		SformCode: XformScannerAnat,
		Magic:     magicSingle,
	}

	h.Dim[0] = int16(len(v.shape))
	for i, n := range v.shape {
		h.Dim[i+1] = int16(n)
		h.Pixdim[i+1] = 1
	}

	t := v.transform
	for j := 0; j < 4; j++ {
		h.SrowX[j] = float32(t[0][j])
		h.SrowY[j] = float32(t[1][j])
		h.SrowZ[j] = float32(t[2][j])
	}

	h.Pixdim[0] = 1
	if q, ok := t.Quaternion(); ok {
		h.QformCode = XformScannerAnat
		h.QuaternB = float32(q.B)
		h.QuaternC = float32(q.C)
		h.QuaternD = float32(q.D)
		h.QOffsetX = float32(q.OffsetX)
		h.QOffsetY = float32(q.OffsetY)
		h.QOffsetZ = float32(q.OffsetZ)
		h.Pixdim[0] = float32(q.QFac)
	}

	copy(h.Descrip[:], truncateUTF8(v.descriptor, len(h.Descrip)))
	return h, nil
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// MarshalBinary encodes the header in little-endian byte order.
func (h *Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	if _, err := binary.Encode(buf, binary.LittleEndian, h); err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}
	return buf, nil
}

// EncodeHeader returns the HeaderSize-byte header block for v.
func EncodeHeader(v *VoxelArray) ([]byte, error) {
	h, err := NewHeader(v)
	if err != nil {
		return nil, err
	}
	return h.MarshalBinary()
}

// DecodeHeader parses and validates a header from the start of b.
//
// Checks run in a fixed order: the magic signature (ErrBadMagic), then the
// declared header size, then the dimensions and data offset
// (ErrMalformedHeader). Only little-endian files are accepted; a
// byte-swapped file fails the size check.
func DecodeHeader(b []byte) (*Header, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, header needs %d", ErrTruncatedData, len(b), HeaderSize)
	}

	h := new(Header)
	if _, err := binary.Decode(b[:HeaderSize], binary.LittleEndian, h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}

	switch h.Magic {
	case magicSingle:
	case magicPair:
		return nil, fmt.Errorf("%w: %q denotes a header/image pair, only single files are supported",
			ErrBadMagic, trimNul(h.Magic[:]))
	default:
		return nil, fmt.Errorf("%w: % x", ErrBadMagic, h.Magic[:])
	}

	if h.SizeofHdr != HeaderSize {
		return nil, fmt.Errorf("%w: sizeof_hdr is %d, want %d", ErrMalformedHeader, h.SizeofHdr, HeaderSize)
	}
	if err := h.validate(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Header) validate() error {
	n := int(h.Dim[0])
	if n < 1 || n > MaxDims {
		return fmt.Errorf("%w: dim[0] is %d, want 1 to %d", ErrMalformedHeader, n, MaxDims)
	}
	for i := 1; i <= n; i++ {
		if h.Dim[i] < 1 {
			return fmt.Errorf("%w: dim[%d] is %d", ErrMalformedHeader, i, h.Dim[i])
		}
	}

	off := float64(h.VoxOffset)
	if math.IsNaN(off) || math.IsInf(off, 0) || off < HeaderSize || off != math.Trunc(off) {
		return fmt.Errorf("%w: vox_offset %v", ErrMalformedHeader, h.VoxOffset)
	}
	return nil
}

// Shape returns the used dimension sizes.
func (h *Header) Shape() []int {
	n := int(h.Dim[0])
	if n < 0 || n > MaxDims {
		return nil
	}
	shape := make([]int, n)
	for i := range shape {
		shape[i] = int(h.Dim[i+1])
	}
	return shape
}

// DataOffset returns the byte offset of the voxel data.
func (h *Header) DataOffset() int {
	return int(h.VoxOffset)
}

// Scale returns scl_slope and scl_inter.
func (h *Header) Scale() Scale {
	return Scale{Slope: h.SclSlope, Intercept: h.SclInter}
}

// Description returns descrip up to its first NUL byte.
func (h *Header) Description() string {
	return trimNul(h.Descrip[:])
}

// Affine returns the voxel-to-world transform the header describes. The
// sform is preferred; without one the qform is used, and without either the
// transform is a plain pixdim scaling.
func (h *Header) Affine() Affine {
	switch {
	case h.SformCode > 0:
		var a Affine
		for j := 0; j < 4; j++ {
			a[0][j] = float64(h.SrowX[j])
			a[1][j] = float64(h.SrowY[j])
			a[2][j] = float64(h.SrowZ[j])
		}
		a[3][3] = 1
		return a
	case h.QformCode > 0:
		q := Quaternion{
			B:       float64(h.QuaternB),
			C:       float64(h.QuaternC),
			D:       float64(h.QuaternD),
			OffsetX: float64(h.QOffsetX),
			OffsetY: float64(h.QOffsetY),
			OffsetZ: float64(h.QOffsetZ),
			QFac:    1,
		}
		if h.Pixdim[0] < 0 {
			q.QFac = -1
		}
		return AffineFromQuaternion(q, float64(h.Pixdim[1]), float64(h.Pixdim[2]), float64(h.Pixdim[3]))
	default:
		a := Identity()
		for i := 0; i < 3; i++ {
			if d := float64(h.Pixdim[i+1]); d > 0 {
				a[i][i] = d
			}
		}
		return a
	}
}

func trimNul(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
