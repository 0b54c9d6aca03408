// Package nifti encodes and decodes single-file NIfTI-1 volumes and checks
// that a decoded volume reproduces the original bit for bit.
//
// Every function in the package is stateless: encoding, decoding and
// comparison operate only on their arguments, so independent volumes can be
// processed concurrently without coordination. Nothing here logs or touches
// the file system; callers own persistence and reporting.
package nifti

import (
	"fmt"
	"io"
)

// Encode serializes v as a single-file NIfTI-1 stream: the header followed
// immediately by the data buffer at offset HeaderSize.
//
// The buffer is written verbatim. NIfTI readers index it with the first
// header dimension varying fastest, which is shape[0]; composite kinds keep
// their channels interleaved per voxel.
//
// The transform is stored in the float32 srow fields and its bottom row is
// not stored at all. Decode therefore reproduces it exactly only when every
// entry of the top three rows is representable as a float32 and the bottom
// row is (0, 0, 0, 1); otherwise Compare reports the transforms as
// different while the values still match.
func Encode(v *VoxelArray) ([]byte, error) {
	hdr, err := EncodeHeader(v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(hdr)+len(v.data))
	out = append(out, hdr...)
	out = append(out, v.data...)
	return out, nil
}

// Decode parses a single-file NIfTI-1 stream.
//
// The element kind is resolved from the header's datatype and bitpix, the
// data is read from the header's vox_offset, and transform, scale and
// descriptor are taken from the header unchanged. Stored values are never
// rescaled. Bytes beyond the expected data length are ignored.
//
// Returns ErrBadMagic, ErrMalformedHeader, ErrUnsupportedDatatype or
// ErrTruncatedData on invalid input.
func Decode(b []byte) (*VoxelArray, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return nil, err
	}
	return h.Volume(b)
}

// Volume extracts the array h describes from b, the stream h was decoded
// from. It lets callers that need the header fields decode the header once.
func (h *Header) Volume(b []byte) (*VoxelArray, error) {
	kind, err := Resolve(h.Datatype, h.Bitpix)
	if err != nil {
		return nil, err
	}

	shape := h.Shape()
	want, err := byteLength(shape, byKind[kind])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	off := h.DataOffset()
	if off > len(b) || len(b)-off < want {
		have := len(b) - off
		if have < 0 {
			have = 0
		}
		return nil, fmt.Errorf("%w: need %d data bytes at offset %d, have %d",
			ErrTruncatedData, want, off, have)
	}

	return Build(shape, kind, b[off:off+want], h.Affine(), h.Scale(), h.Description())
}

// EncodeTo writes the encoding of v to w.
func EncodeTo(w io.Writer, v *VoxelArray) error {
	b, err := Encode(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write volume: %w", err)
	}
	return nil
}

// DecodeFrom reads r to the end and decodes the result.
func DecodeFrom(r io.Reader) (*VoxelArray, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read volume: %w", err)
	}
	return Decode(b)
}
