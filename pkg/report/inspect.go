package report

import (
	"niftiverify/pkg/nifti"
	"niftiverify/pkg/summary"
)

// HeaderInfo is the human-relevant subset of a NIfTI-1 header.
type HeaderInfo struct {
	Datatype  string       `json:"datatype"`
	Code      int16        `json:"code"`
	Bitpix    int16        `json:"bitpix"`
	Dims      []int        `json:"dims"`
	Pixdim    []float32    `json:"pixdim"`
	Voxels    int          `json:"voxels"`
	VoxOffset int          `json:"voxOffset"`
	Scale     nifti.Scale  `json:"scale"`
	QformCode int16        `json:"qformCode"`
	SformCode int16        `json:"sformCode"`
	Affine    nifti.Affine `json:"affine"`
	Descrip   string       `json:"descrip"`
	World     *WorldExtent `json:"world,omitempty"`
}

// WorldExtent places the voxel grid in world space. It is absent when the
// header's affine cannot be inverted.
type WorldExtent struct {
	// First and Last are the world positions of voxel (0, 0, 0) and of the
	// voxel at the far corner of the grid.
	First [3]float64 `json:"first"`
	Last  [3]float64 `json:"last"`

	// Origin is the voxel position of world (0, 0, 0), possibly fractional
	// or outside the grid.
	Origin [3]float64 `json:"origin"`
}

func worldExtent(a nifti.Affine, dims []int) *WorldExtent {
	inv, err := a.Inverse()
	if err != nil {
		return nil
	}
	var far [3]float64
	for i := 0; i < len(dims) && i < 3; i++ {
		far[i] = float64(dims[i] - 1)
	}

	var w WorldExtent
	w.First[0], w.First[1], w.First[2] = a.Apply(0, 0, 0)
	w.Last[0], w.Last[1], w.Last[2] = a.Apply(far[0], far[1], far[2])
	w.Origin[0], w.Origin[1], w.Origin[2] = inv.Apply(0, 0, 0)
	return &w
}

// Inspection describes an encoded volume: its header and a summary of its
// values.
type Inspection struct {
	Bytes   int             `json:"bytes"`
	Header  HeaderInfo      `json:"header"`
	Summary summary.Summary `json:"summary"`
}

// Inspect decodes b and summarizes its header and values. The header is
// parsed once and the volume is cut from it.
func Inspect(b []byte) (*Inspection, error) {
	h, err := nifti.DecodeHeader(b)
	if err != nil {
		return nil, err
	}
	v, err := h.Volume(b)
	if err != nil {
		return nil, err
	}
	s, err := summary.Of(v)
	if err != nil {
		return nil, err
	}

	dt := v.Datatype()
	info := HeaderInfo{
		Datatype:  dt.Name,
		Code:      h.Datatype,
		Bitpix:    h.Bitpix,
		Dims:      h.Shape(),
		Voxels:    v.NumElements(),
		VoxOffset: h.DataOffset(),
		Scale:     h.Scale(),
		QformCode: h.QformCode,
		SformCode: h.SformCode,
		Affine:    h.Affine(),
		Descrip:   h.Description(),
	}
	info.World = worldExtent(info.Affine, info.Dims)
	info.Pixdim = append(info.Pixdim, h.Pixdim[:len(info.Dims)+1]...)
	return &Inspection{Bytes: len(b), Header: info, Summary: s}, nil
}
