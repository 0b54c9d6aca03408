package summary

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"niftiverify/pkg/nifti"
)

// Fidelity measures how closely the values of one volume follow another.
// The exact verdict comes from nifti.Compare; these numbers show how far off
// a mismatching volume is. Pairs where either value is non-finite are
// skipped.
type Fidelity struct {
	// Compared is the number of finite value pairs measured
	Compared int `json:"compared"`

	// RMSE is the root mean square difference
	RMSE float64 `json:"rmse"`

	// MaxAbsDiff is the largest absolute difference of any pair
	MaxAbsDiff float64 `json:"maxAbsDiff"`

	// Correlation is the Pearson correlation; 1 when both sides are the
	// same constant, 0 when only one side is constant
	Correlation float64 `json:"correlation"`

	// SSIM is the global structural similarity index over the original's
	// value range
	SSIM float64 `json:"ssim"`

	// EntropyDiff is the absolute difference of the histogram entropies
	EntropyDiff float64 `json:"entropyDiff"`
}

// Exact reports whether the measured values agree everywhere.
func (f Fidelity) Exact() bool {
	return f.MaxAbsDiff == 0
}

// Measure computes the fidelity of reconstructed against original. Both
// volumes must have the same shape and channel count; their kinds may
// differ, which lets a UInt8 volume be measured against a Bit8 one.
func Measure(original, reconstructed *nifti.VoxelArray) (Fidelity, error) {
	if !slices.Equal(original.Shape(), reconstructed.Shape()) {
		return Fidelity{}, fmt.Errorf("%w: %v vs %v", nifti.ErrShapeMismatch, original.Shape(), reconstructed.Shape())
	}
	channels := original.Datatype().Channels
	if reconstructed.Datatype().Channels != channels {
		return Fidelity{}, fmt.Errorf("%w: %s has %d channels, %s has %d", nifti.ErrShapeMismatch,
			original.Kind(), channels, reconstructed.Kind(), reconstructed.Datatype().Channels)
	}

	n := original.NumElements()
	a := make([]float64, 0, n*channels)
	b := make([]float64, 0, n*channels)
	for i := 0; i < n; i++ {
		for ch := 0; ch < channels; ch++ {
			x, err := original.ValueAt(i, ch)
			if err != nil {
				return Fidelity{}, err
			}
			y, err := reconstructed.ValueAt(i, ch)
			if err != nil {
				return Fidelity{}, err
			}
			if !finite(x) || !finite(y) {
				continue
			}
			a = append(a, x)
			b = append(b, y)
		}
	}

	f := Fidelity{Compared: len(a)}
	if len(a) == 0 {
		return f, nil
	}
	f.RMSE = floats.Distance(a, b, 2) / math.Sqrt(float64(len(a)))
	f.MaxAbsDiff = floats.Distance(a, b, math.Inf(1))
	f.Correlation = correlation(a, b)
	f.SSIM = ssim(a, b)
	f.EntropyDiff = math.Abs(entropy(a, floats.Min(a), floats.Max(a)) - entropy(b, floats.Min(b), floats.Max(b)))
	return f, nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func correlation(a, b []float64) float64 {
	_, va := stat.PopMeanVariance(a, nil)
	_, vb := stat.PopMeanVariance(b, nil)
	switch {
	case va == 0 && vb == 0:
		if a[0] == b[0] {
			return 1
		}
		return 0
	case va == 0 || vb == 0:
		return 0
	}
	return stat.Correlation(a, b, nil)
}

// ssim computes a single-window SSIM using the original's value range as
// the dynamic range.
func ssim(original, reconstructed []float64) float64 {
	const k1, k2 = 0.01, 0.03

	l := floats.Max(original) - floats.Min(original)
	if l == 0 {
		l = 1
	}
	c1 := (k1 * l) * (k1 * l)
	c2 := (k2 * l) * (k2 * l)

	muX, varX := stat.PopMeanVariance(original, nil)
	muY, varY := stat.PopMeanVariance(reconstructed, nil)
	cov := 0.0
	for i := range original {
		cov += (original[i] - muX) * (reconstructed[i] - muY)
	}
	cov /= float64(len(original))

	num := (2*muX*muY + c1) * (2*cov + c2)
	den := (muX*muX + muY*muY + c1) * (varX + varY + c2)
	if den == 0 {
		return 0
	}
	return num / den
}
