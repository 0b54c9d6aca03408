package summary

import (
	"math"
	"testing"

	"niftiverify/pkg/nifti"
)

func build(t *testing.T, shape []int, kind nifti.ElementKind, values any) *nifti.VoxelArray {
	t.Helper()
	raw, err := nifti.Pack(values)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	v, err := nifti.Build(shape, kind, raw, nifti.Identity(), nifti.NoScale, "")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return v
}

func TestOfScalarVolume(t *testing.T) {
	v := build(t, []int{2, 2}, nifti.Int16, []int16{-4, 0, 2, 6})

	s, err := Of(v)
	if err != nil {
		t.Fatalf("Of failed: %v", err)
	}
	if s.Elements != 4 || s.Kind != nifti.Int16 {
		t.Errorf("Expected 4 int16 elements, got %d %s", s.Elements, s.Kind)
	}
	if len(s.Channels) != 1 {
		t.Fatalf("Expected 1 channel, got %d", len(s.Channels))
	}
	c := s.Channels[0]
	if c.Min != -4 || c.Max != 6 {
		t.Errorf("Expected min -4 max 6, got %v %v", c.Min, c.Max)
	}
	if c.Mean != 1 {
		t.Errorf("Expected mean 1, got %v", c.Mean)
	}
	// population variance of {-5, -1, 1, 5} deviations is 13
	if math.Abs(c.Std-math.Sqrt(13)) > 1e-12 {
		t.Errorf("Expected std %v, got %v", math.Sqrt(13), c.Std)
	}
	if c.Entropy != 2 {
		t.Errorf("Expected entropy 2 bits for four distinct values, got %v", c.Entropy)
	}
}

func TestOfCompositeKinds(t *testing.T) {
	rgb := build(t, []int{2}, nifti.RGB24, []uint8{10, 20, 30, 50, 60, 70})
	s, err := Of(rgb)
	if err != nil {
		t.Fatalf("Of failed: %v", err)
	}
	if len(s.Channels) != 3 {
		t.Fatalf("Expected 3 channels, got %d", len(s.Channels))
	}
	for ch, want := range []float64{30, 40, 50} {
		if s.Channels[ch].Mean != want {
			t.Errorf("Channel %d: expected mean %v, got %v", ch, want, s.Channels[ch].Mean)
		}
	}

	cplx := build(t, []int{2}, nifti.Complex64, []complex64{complex(1, -1), complex(3, -3)})
	s, err = Of(cplx)
	if err != nil {
		t.Fatalf("Of failed: %v", err)
	}
	if s.Channels[0].Mean != 2 || s.Channels[1].Mean != -2 {
		t.Errorf("Expected real mean 2 and imaginary mean -2, got %v %v", s.Channels[0].Mean, s.Channels[1].Mean)
	}
}

func TestOfSkipsNonFinite(t *testing.T) {
	v := build(t, []int{4}, nifti.Float32, []float32{1, float32(math.NaN()), float32(math.Inf(-1)), 3})
	s, err := Of(v)
	if err != nil {
		t.Fatalf("Of failed: %v", err)
	}
	c := s.Channels[0]
	if c.NonFinite != 2 {
		t.Errorf("Expected 2 non-finite values, got %d", c.NonFinite)
	}
	if c.Min != 1 || c.Max != 3 || c.Mean != 2 {
		t.Errorf("Expected min 1 max 3 mean 2, got %v %v %v", c.Min, c.Max, c.Mean)
	}
}

func TestOfAllNonFinite(t *testing.T) {
	nan := math.NaN()
	v := build(t, []int{2}, nifti.Float64, []float64{nan, nan})
	s, err := Of(v)
	if err != nil {
		t.Fatalf("Of failed: %v", err)
	}
	if c := s.Channels[0]; c.NonFinite != 2 || c.Mean != 0 {
		t.Errorf("Expected zeroed stats with 2 non-finite values, got %+v", c)
	}
}

func TestEntropyConstant(t *testing.T) {
	if e := entropy([]float64{5, 5, 5}, 5, 5); e != 0 {
		t.Errorf("Expected zero entropy for constant data, got %v", e)
	}
}
