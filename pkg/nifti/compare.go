package nifti

import (
	"bytes"
	"math"
	"slices"
)

// CompareReport describes how two volumes differ.
//
// ValuesMatch, MismatchCount and FirstMismatchIndex are only computed when
// both ShapesMatch and DtypesMatch hold; otherwise ValuesMatch is false and
// no element is examined. An element is one voxel, all channels included.
type CompareReport struct {
	ShapesMatch        bool `json:"shapesMatch"`
	DtypesMatch        bool `json:"dtypesMatch"`
	ValuesMatch        bool `json:"valuesMatch"`
	MismatchCount      int  `json:"mismatchCount"`
	FirstMismatchIndex *int `json:"firstMismatchIndex,omitempty"`

	TransformsMatch  bool `json:"transformsMatch"`
	ScalesMatch      bool `json:"scalesMatch"`
	DescriptorsMatch bool `json:"descriptorsMatch"`
}

// Identical reports whether every field of the two volumes matched.
func (r CompareReport) Identical() bool {
	return r.ShapesMatch && r.DtypesMatch && r.ValuesMatch &&
		r.TransformsMatch && r.ScalesMatch && r.DescriptorsMatch
}

// Compare checks b against a.
//
// Element values are compared by their stored bytes, so floating-point and
// complex elements must agree in bit pattern: 0.0 and -0.0 differ, and a NaN
// equals itself only when the payloads agree. Kinds must be identical; a
// UInt8 array never matches a Bit8 array even when the bytes coincide.
func Compare(a, b *VoxelArray) CompareReport {
	r := CompareReport{
		ShapesMatch:      slices.Equal(a.shape, b.shape),
		DtypesMatch:      a.kind == b.kind,
		TransformsMatch:  a.transform.Equal(b.transform),
		ScalesMatch:      math.Float32bits(a.scale.Slope) == math.Float32bits(b.scale.Slope) && math.Float32bits(a.scale.Intercept) == math.Float32bits(b.scale.Intercept),
		DescriptorsMatch: a.descriptor == b.descriptor,
	}
	if !r.ShapesMatch || !r.DtypesMatch {
		return r
	}

	size := byKind[a.kind].ElementSize()
	first := -1
	for i, n := 0, a.NumElements(); i < n; i++ {
		off := i * size
		if !bytes.Equal(a.data[off:off+size], b.data[off:off+size]) {
			if first < 0 {
				first = i
			}
			r.MismatchCount++
		}
	}
	r.ValuesMatch = r.MismatchCount == 0
	if first >= 0 {
		r.FirstMismatchIndex = &first
	}
	return r
}
