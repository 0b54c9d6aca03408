// Package synth generates reproducible synthetic volumes for exercising the
// codec, one fixture per supported element kind.
package synth

import (
	"fmt"
	"hash/fnv"
	"math"
	"slices"

	"golang.org/x/exp/rand"

	"niftiverify/internal/models"
	"niftiverify/pkg/nifti"
)

// Options controls what the generator produces.
type Options struct {
	// Seed makes the generated values reproducible
	Seed uint64

	// Shape is the dimension list of every fixture
	Shape []int

	// Kinds restricts generation to fixtures of these element kinds; empty
	// means every fixture
	Kinds []nifti.ElementKind
}

// DefaultShape is the 25x25x25 grid used by the reference fixture set.
var DefaultShape = []int{25, 25, 25}

// recipe describes one fixture: its name, kind and how to draw n elements.
type recipe struct {
	name string
	kind nifti.ElementKind
	fill func(r *rand.Rand, n int) any
}

// catalog lists the fixtures in generation order. Booleans have no element
// kind of their own in NIfTI-1, so bool_as_uint8 stores 0/1 as UInt8; the
// binary fixture exercises the Bit8 kind with the same value range.
var catalog = []recipe{
	{"bool_as_uint8", nifti.UInt8, func(r *rand.Rand, n int) any {
		return draw(n, func() uint8 { return uint8(r.Intn(2)) })
	}},
	{"binary", nifti.Bit8, func(r *rand.Rand, n int) any {
		return draw(n, func() uint8 { return uint8(r.Intn(2)) })
	}},
	{"gray8", nifti.UInt8, func(r *rand.Rand, n int) any {
		return draw(n, func() uint8 { return uint8(r.Intn(256)) })
	}},
	{"gray16", nifti.UInt16, func(r *rand.Rand, n int) any {
		return draw(n, func() uint16 { return uint16(r.Intn(65536)) })
	}},
	{"int8", nifti.Int8, func(r *rand.Rand, n int) any {
		return draw(n, func() int8 { return int8(r.Intn(256) - 128) })
	}},
	{"int16", nifti.Int16, func(r *rand.Rand, n int) any {
		return draw(n, func() int16 { return int16(r.Intn(65536) - 32768) })
	}},
	{"int32", nifti.Int32, func(r *rand.Rand, n int) any {
		return draw(n, func() int32 { return int32(r.Int63n(math.MaxUint32) + math.MinInt32) })
	}},
	{"uint32", nifti.UInt32, func(r *rand.Rand, n int) any {
		return draw(n, func() uint32 { return uint32(r.Int63n(math.MaxInt32)) })
	}},
	{"float32", nifti.Float32, func(r *rand.Rand, n int) any {
		return draw(n, r.Float32)
	}},
	{"float64", nifti.Float64, func(r *rand.Rand, n int) any {
		return draw(n, r.Float64)
	}},
	{"complex64", nifti.Complex64, func(r *rand.Rand, n int) any {
		return draw(n, func() complex64 { return complex(r.Float32(), r.Float32()) })
	}},
	{"rgb", nifti.RGB24, func(r *rand.Rand, n int) any {
		// n voxels, three interleaved channels each
		return draw(3*n, func() uint8 { return uint8(r.Intn(256)) })
	}},
}

func draw[T any](n int, next func() T) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = next()
	}
	return out
}

// Generator produces fixtures. It holds no mutable state, so one Generator
// may be shared between goroutines.
type Generator struct {
	opts Options
}

// NewGenerator creates a generator, filling in DefaultShape when opts has
// no shape.
func NewGenerator(opts Options) *Generator {
	if len(opts.Shape) == 0 {
		opts.Shape = DefaultShape
	}
	opts.Shape = slices.Clone(opts.Shape)
	opts.Kinds = slices.Clone(opts.Kinds)
	return &Generator{opts: opts}
}

// Names returns the fixture names the generator will produce, in order.
func (g *Generator) Names() []string {
	var names []string
	for _, s := range catalog {
		if g.wants(s.kind) {
			names = append(names, s.name)
		}
	}
	return names
}

// Fixtures generates every selected fixture.
func (g *Generator) Fixtures() ([]models.Fixture, error) {
	var out []models.Fixture
	for _, s := range catalog {
		if !g.wants(s.kind) {
			continue
		}
		f, err := g.build(s)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// Fixture generates a single fixture by name. The result is identical to
// the matching entry of Fixtures.
func (g *Generator) Fixture(name string) (models.Fixture, error) {
	for _, s := range catalog {
		if s.name == name {
			return g.build(s)
		}
	}
	return models.Fixture{}, fmt.Errorf("unknown fixture %q", name)
}

func (g *Generator) wants(kind nifti.ElementKind) bool {
	return len(g.opts.Kinds) == 0 || slices.Contains(g.opts.Kinds, kind)
}

// build draws the fixture's values from a source seeded by both the run seed
// and the fixture name, so each fixture is independent of which others are
// selected.
func (g *Generator) build(s recipe) (models.Fixture, error) {
	n, err := nifti.ElementCount(g.opts.Shape)
	if err != nil {
		return models.Fixture{}, fmt.Errorf("fixture %s: %w", s.name, err)
	}
	r := rand.New(rand.NewSource(g.opts.Seed ^ nameHash(s.name)))

	raw, err := nifti.Pack(s.fill(r, n))
	if err != nil {
		return models.Fixture{}, fmt.Errorf("pack %s: %w", s.name, err)
	}
	v, err := nifti.Build(g.opts.Shape, s.kind, raw, nifti.Identity(), nifti.NoScale, s.name)
	if err != nil {
		return models.Fixture{}, fmt.Errorf("build %s: %w", s.name, err)
	}
	return models.Fixture{Name: s.name, Volume: v}, nil
}

func nameHash(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return h.Sum64()
}
