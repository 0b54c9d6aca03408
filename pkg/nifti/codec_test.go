package nifti

import (
	"bytes"
	"errors"
	"math"
	"slices"
	"testing"
)

// roundTrip encodes and decodes v, failing the test on any error
func roundTrip(t *testing.T, v *VoxelArray) *VoxelArray {
	t.Helper()
	encoded, err := Encode(v)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return decoded
}

// assertIdentical fails unless got reproduces want in every field
func assertIdentical(t *testing.T, want, got *VoxelArray) {
	t.Helper()
	if !slices.Equal(want.Shape(), got.Shape()) {
		t.Errorf("Expected shape %v, got %v", want.Shape(), got.Shape())
	}
	if want.Kind() != got.Kind() {
		t.Errorf("Expected kind %s, got %s", want.Kind(), got.Kind())
	}
	if !want.Transform().Equal(got.Transform()) {
		t.Errorf("Expected transform %v, got %v", want.Transform(), got.Transform())
	}
	if want.Scale() != got.Scale() {
		t.Errorf("Expected scale %+v, got %+v", want.Scale(), got.Scale())
	}
	if want.Descriptor() != got.Descriptor() {
		t.Errorf("Expected descriptor %q, got %q", want.Descriptor(), got.Descriptor())
	}
	if !bytes.Equal(want.Data(), got.Data()) {
		t.Errorf("Data differs after round trip")
	}
}

// patternBytes fills n bytes with a deterministic non-trivial pattern
func patternBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*31 + 7)
	}
	return b
}

// TestRoundTripAllKinds round trips every supported kind on a 25x25x25 grid
func TestRoundTripAllKinds(t *testing.T) {
	shape := []int{25, 25, 25}
	transform := Affine{{1.5, 0, 0, -18}, {0, 1.5, 0, -18}, {0, 0, 2, -25}, {0, 0, 0, 1}}

	for _, dt := range Datatypes() {
		t.Run(dt.Name, func(t *testing.T) {
			raw := patternBytes(25 * 25 * 25 * dt.ElementSize())
			v, err := Build(shape, dt.Kind, raw, transform, Scale{Slope: 0.5, Intercept: 10}, dt.Name+" fixture")
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			got := roundTrip(t, v)
			assertIdentical(t, v, got)

			if r := Compare(v, got); !r.Identical() {
				t.Errorf("Expected identical report, got %+v", r)
			}
		})
	}
}

func TestRoundTripBoundaryValues(t *testing.T) {
	t.Run("int8", func(t *testing.T) {
		v := mustBuild(t, []int{3}, Int8, mustPack(t, []int8{-128, 0, 127}))
		got := make([]int8, 3)
		if err := roundTrip(t, v).Unpack(got); err != nil {
			t.Fatalf("Unpack failed: %v", err)
		}
		if got[0] != -128 || got[2] != 127 {
			t.Errorf("Expected [-128 0 127], got %v", got)
		}
	})

	t.Run("uint16", func(t *testing.T) {
		v := mustBuild(t, []int{2}, UInt16, mustPack(t, []uint16{0, 65535}))
		got := make([]uint16, 2)
		if err := roundTrip(t, v).Unpack(got); err != nil {
			t.Fatalf("Unpack failed: %v", err)
		}
		if got[0] != 0 || got[1] != 65535 {
			t.Errorf("Expected [0 65535], got %v", got)
		}
	})

	t.Run("float special values", func(t *testing.T) {
		values := []float32{float32(math.Copysign(0, -1)), float32(math.Inf(1)), float32(math.NaN()), math.SmallestNonzeroFloat32}
		v := mustBuild(t, []int{4}, Float32, mustPack(t, values))
		got := make([]float32, 4)
		if err := roundTrip(t, v).Unpack(got); err != nil {
			t.Fatalf("Unpack failed: %v", err)
		}
		for i := range values {
			if math.Float32bits(got[i]) != math.Float32bits(values[i]) {
				t.Errorf("Element %d: expected bits %08x, got %08x", i, math.Float32bits(values[i]), math.Float32bits(got[i]))
			}
		}
	})

	t.Run("float64 full precision", func(t *testing.T) {
		values := []float64{math.Pi, -math.MaxFloat64, 1e-300}
		v := mustBuild(t, []int{3}, Float64, mustPack(t, values))
		got := make([]float64, 3)
		if err := roundTrip(t, v).Unpack(got); err != nil {
			t.Fatalf("Unpack failed: %v", err)
		}
		for i := range values {
			if math.Float64bits(got[i]) != math.Float64bits(values[i]) {
				t.Errorf("Element %d: expected %v, got %v", i, values[i], got[i])
			}
		}
	})
}

func TestRoundTripShapes(t *testing.T) {
	tests := []struct {
		name  string
		shape []int
		kind  ElementKind
	}{
		{"single voxel", []int{1}, UInt8},
		{"cube", []int{25, 25, 25}, Int16},
		{"rgb cube", []int{25, 25, 25}, RGB24},
		{"time series", []int{4, 3, 2, 5}, Float32},
		{"seven dimensions", []int{2, 1, 2, 1, 2, 1, 2}, UInt32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := 1
			for _, d := range tt.shape {
				n *= d
			}
			dt, _ := DatatypeOf(tt.kind)
			v := mustBuild(t, tt.shape, tt.kind, patternBytes(n*dt.ElementSize()))
			got := roundTrip(t, v)
			if !slices.Equal(got.Shape(), tt.shape) {
				t.Errorf("Expected shape %v, got %v", tt.shape, got.Shape())
			}
			if got.NumElements() != n {
				t.Errorf("Expected %d elements, got %d", n, got.NumElements())
			}
		})
	}
}

func TestRoundTripComposite(t *testing.T) {
	t.Run("complex64", func(t *testing.T) {
		values := []complex64{complex(0, 0), complex(-1.5, 3.25)}
		v := mustBuild(t, []int{2}, Complex64, mustPack(t, values))
		got := make([]complex64, 2)
		if err := roundTrip(t, v).Unpack(got); err != nil {
			t.Fatalf("Unpack failed: %v", err)
		}
		if got[0] != values[0] || got[1] != values[1] {
			t.Errorf("Expected %v, got %v", values, got)
		}
	})

	t.Run("rgb24 channel order", func(t *testing.T) {
		raw := []byte{
			255, 0, 0, // red
			0, 255, 0, // green
			0, 0, 255, // blue
			10, 20, 30,
		}
		v := mustBuild(t, []int{2, 2}, RGB24, raw)
		encoded, err := Encode(v)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if !bytes.Equal(encoded[HeaderSize:], raw) {
			t.Errorf("Expected interleaved RGB bytes right after the header, got %v", encoded[HeaderSize:])
		}

		got := roundTrip(t, v)
		for i := 0; i < 4; i++ {
			for ch := 0; ch < 3; ch++ {
				value, _ := got.ValueAt(i, ch)
				if byte(value) != raw[3*i+ch] {
					t.Errorf("Voxel %d channel %d: expected %d, got %v", i, ch, raw[3*i+ch], value)
				}
			}
		}
	})
}

func TestEncodeLayout(t *testing.T) {
	raw := mustPack(t, []uint16{1, 2, 3})
	v := mustBuild(t, []int{3}, UInt16, raw)
	encoded, err := Encode(v)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(encoded) != HeaderSize+len(raw) {
		t.Fatalf("Expected %d bytes, got %d", HeaderSize+len(raw), len(encoded))
	}
	if !bytes.Equal(encoded[HeaderSize:], raw) {
		t.Errorf("Expected raw data at offset %d", HeaderSize)
	}

	again, _ := Encode(v)
	if !bytes.Equal(encoded, again) {
		t.Error("Expected encoding to be reproducible")
	}
}

// TestReencodeIsStable verifies decode followed by encode reproduces the
// original stream byte for byte
func TestReencodeIsStable(t *testing.T) {
	transform := Affine{{0, -1, 0, 3}, {1, 0, 0, -4}, {0, 0, 1, 5}, {0, 0, 0, 1}}
	v, err := Build([]int{4, 4}, Float64, patternBytes(4*4*8), transform, NoScale, "stable")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	first, _ := Encode(v)
	decoded, err := Decode(first)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	second, err := Encode(decoded)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("Expected re-encoded stream to equal the original")
	}
}

func TestDecodeCorruption(t *testing.T) {
	v := mustBuild(t, []int{5, 5, 5}, Int32, patternBytes(5*5*5*4))
	encoded, err := Encode(v)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	t.Run("flipped first magic byte", func(t *testing.T) {
		b := bytes.Clone(encoded)
		b[344] ^= 0x01
		if _, err := Decode(b); !errors.Is(err, ErrBadMagic) {
			t.Errorf("Expected ErrBadMagic, got %v", err)
		}
	})

	t.Run("truncated data", func(t *testing.T) {
		for _, cut := range []int{1, 4, len(encoded) - HeaderSize} {
			b := encoded[:len(encoded)-cut]
			if _, err := Decode(b); !errors.Is(err, ErrTruncatedData) {
				t.Errorf("Cut %d bytes: expected ErrTruncatedData, got %v", cut, err)
			}
		}
	})

	t.Run("data offset past end", func(t *testing.T) {
		b := bytes.Clone(encoded)
		b[108], b[109], b[110], b[111] = 0, 0, 0x80, 0x46 // 16384.0
		if _, err := Decode(b); !errors.Is(err, ErrTruncatedData) {
			t.Errorf("Expected ErrTruncatedData, got %v", err)
		}
	})

	t.Run("bitpix disagrees with datatype", func(t *testing.T) {
		b := bytes.Clone(encoded)
		b[72] = 16
		if _, err := Decode(b); !errors.Is(err, ErrUnsupportedDatatype) {
			t.Errorf("Expected ErrUnsupportedDatatype, got %v", err)
		}
	})

	t.Run("trailing bytes ignored", func(t *testing.T) {
		b := append(bytes.Clone(encoded), 0xde, 0xad)
		got, err := Decode(b)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if !Compare(v, got).ValuesMatch {
			t.Error("Expected values to match despite trailing bytes")
		}
	})
}

// TestDecodeHonoursVoxOffset decodes a stream written with the conventional
// 352-byte offset used by files carrying an extension flag
func TestDecodeHonoursVoxOffset(t *testing.T) {
	v := mustBuild(t, []int{2, 2}, UInt8, []byte{1, 2, 3, 4})
	h, err := NewHeader(v)
	if err != nil {
		t.Fatalf("NewHeader failed: %v", err)
	}
	h.VoxOffset = 352
	hdr, err := h.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	stream := append(hdr, 0, 0, 0, 0, 1, 2, 3, 4)

	got, err := Decode(stream)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(got.Data(), []byte{1, 2, 3, 4}) {
		t.Errorf("Expected data [1 2 3 4], got %v", got.Data())
	}
}

func TestEncodeToDecodeFrom(t *testing.T) {
	v := mustBuild(t, []int{3, 2}, Bit8, []byte{0, 1, 1, 0, 1, 0})
	var buf bytes.Buffer
	if err := EncodeTo(&buf, v); err != nil {
		t.Fatalf("EncodeTo failed: %v", err)
	}
	got, err := DecodeFrom(&buf)
	if err != nil {
		t.Fatalf("DecodeFrom failed: %v", err)
	}
	assertIdentical(t, v, got)
}

// TestTransformPrecision pins the limits of storing the transform in the
// float32 srow fields: entries that are not float32 values and a bottom row
// other than (0, 0, 0, 1) come back changed, which Compare reports without
// touching the value comparison.
func TestTransformPrecision(t *testing.T) {
	raw := []byte{1, 2, 3, 4}
	tests := []struct {
		name      string
		transform Affine
		want      Affine
	}{
		{
			"float32 representable",
			Affine{{0.5, 0, 0, -90}, {0, 0.25, 0, 126}, {0, 0, 2, -72}, {0, 0, 0, 1}},
			Affine{{0.5, 0, 0, -90}, {0, 0.25, 0, 126}, {0, 0, 2, -72}, {0, 0, 0, 1}},
		},
		{
			"tenth millimetre spacing",
			Affine{{0.1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}},
			Affine{{float64(float32(0.1)), 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}},
		},
		{
			"projective bottom row",
			Affine{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0.5, 2}},
			Identity(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Build([]int{2, 2}, UInt8, raw, tt.transform, NoScale, "")
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			got := roundTrip(t, v)
			if !got.Transform().Equal(tt.want) {
				t.Errorf("Expected decoded transform %v, got %v", tt.want, got.Transform())
			}

			r := Compare(v, got)
			if !r.ValuesMatch {
				t.Error("Expected values to match")
			}
			if exact := tt.want.Equal(tt.transform); r.TransformsMatch != exact {
				t.Errorf("Expected TransformsMatch %v, got %v", exact, r.TransformsMatch)
			}
		})
	}
}

// TestBit8KeepsStoredBytes checks that Bit8 bytes other than 0 and 1 pass
// through unchanged
func TestBit8KeepsStoredBytes(t *testing.T) {
	v := mustBuild(t, []int{4}, Bit8, []byte{0, 1, 2, 255})
	got := roundTrip(t, v)
	assertIdentical(t, v, got)
}

// TestHeaderVolumeMatchesDecode checks that cutting the volume from an
// already decoded header gives the same array as Decode
func TestHeaderVolumeMatchesDecode(t *testing.T) {
	v := mustBuild(t, []int{3, 2}, UInt8, []byte{1, 2, 3, 4, 5, 6})
	encoded, err := Encode(v)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	h, err := DecodeHeader(encoded)
	if err != nil {
		t.Fatalf("DecodeHeader failed: %v", err)
	}
	got, err := h.Volume(encoded)
	if err != nil {
		t.Fatalf("Volume failed: %v", err)
	}
	assertIdentical(t, v, got)

	if _, err := h.Volume(encoded[:HeaderSize+2]); !errors.Is(err, ErrTruncatedData) {
		t.Errorf("Expected ErrTruncatedData, got %v", err)
	}
}
