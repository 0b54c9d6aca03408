// Package summary computes descriptive statistics of a volume's values and
// numeric fidelity metrics between two volumes.
package summary

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"niftiverify/pkg/nifti"
)

// ChannelStats holds the statistics of one channel of a volume. Non-finite
// float values are counted but excluded from every other field.
type ChannelStats struct {
	Channel int     `json:"channel"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`

	// Entropy is the Shannon entropy in bits of a 256-bin histogram
	// spanning [Min, Max]
	Entropy float64 `json:"entropy"`

	NonFinite int `json:"nonFinite,omitempty"`
}

// Summary describes the values of a volume.
type Summary struct {
	Shape    []int             `json:"shape"`
	Kind     nifti.ElementKind `json:"kind"`
	Elements int               `json:"elements"`
	Channels []ChannelStats    `json:"channels"`
}

// Of summarizes v channel by channel. Complex64 reports the real and
// imaginary parts as channels 0 and 1; RGB24 reports R, G and B.
func Of(v *nifti.VoxelArray) (Summary, error) {
	s := Summary{
		Shape:    v.Shape(),
		Kind:     v.Kind(),
		Elements: v.NumElements(),
	}
	for ch := 0; ch < v.Datatype().Channels; ch++ {
		values, nonFinite, err := channelValues(v, ch)
		if err != nil {
			return Summary{}, err
		}
		cs := ChannelStats{Channel: ch, NonFinite: nonFinite}
		if len(values) > 0 {
			cs.Min, cs.Max = floats.Min(values), floats.Max(values)
			cs.Mean, cs.Std = stat.PopMeanStdDev(values, nil)
			cs.Entropy = entropy(values, cs.Min, cs.Max)
		}
		s.Channels = append(s.Channels, cs)
	}
	return s, nil
}

// channelValues extracts the finite values of channel ch and counts the rest.
func channelValues(v *nifti.VoxelArray, ch int) ([]float64, int, error) {
	n := v.NumElements()
	values := make([]float64, 0, n)
	nonFinite := 0
	for i := 0; i < n; i++ {
		x, err := v.ValueAt(i, ch)
		if err != nil {
			return nil, 0, fmt.Errorf("summarize channel %d: %w", ch, err)
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			nonFinite++
			continue
		}
		values = append(values, x)
	}
	return values, nonFinite, nil
}

// entropy computes the Shannon entropy of data over a fixed 256-bin
// histogram. Constant data has zero entropy.
func entropy(data []float64, min, max float64) float64 {
	if max <= min {
		return 0
	}

	const numBins = 256
	hist := make([]float64, numBins)
	binWidth := (max - min) / numBins
	for _, v := range data {
		idx := int((v - min) / binWidth)
		if idx >= numBins {
			idx = numBins - 1
		} else if idx < 0 {
			idx = 0
		}
		hist[idx]++
	}

	n := float64(len(data))
	e := 0.0
	for _, count := range hist {
		if count > 0 {
			p := count / n
			e -= p * math.Log2(p)
		}
	}
	return e
}
