package nifti

import (
	"errors"
	"testing"
)

// TestLookupCoversAllKinds verifies that every kind has a registry entry and
// that codes are unique
func TestLookupCoversAllKinds(t *testing.T) {
	expected := map[ElementKind]struct {
		code      int16
		byteWidth int
		channels  int
	}{
		Bit8:      {1, 1, 1},
		UInt8:     {2, 1, 1},
		Int16:     {4, 2, 1},
		Int32:     {8, 4, 1},
		Float32:   {16, 4, 1},
		Complex64: {32, 4, 2},
		Float64:   {64, 8, 1},
		RGB24:     {128, 1, 3},
		Int8:      {256, 1, 1},
		UInt16:    {512, 2, 1},
		UInt32:    {768, 4, 1},
	}

	if len(Kinds()) != len(expected) {
		t.Fatalf("Expected %d kinds, got %d", len(expected), len(Kinds()))
	}

	seen := make(map[int16]ElementKind)
	for _, kind := range Kinds() {
		code, width, channels, err := Lookup(kind)
		if err != nil {
			t.Fatalf("Lookup(%s) failed: %v", kind, err)
		}
		want := expected[kind]
		if code != want.code || width != want.byteWidth || channels != want.channels {
			t.Errorf("Lookup(%s) = (%d, %d, %d), expected (%d, %d, %d)",
				kind, code, width, channels, want.code, want.byteWidth, want.channels)
		}
		if other, dup := seen[code]; dup {
			t.Errorf("Code %d used by both %s and %s", code, other, kind)
		}
		seen[code] = kind
	}
}

// TestLookupUnknownKind checks the zero kind and out of range kinds
func TestLookupUnknownKind(t *testing.T) {
	for _, kind := range []ElementKind{0, RGB24 + 1, -3} {
		if _, _, _, err := Lookup(kind); !errors.Is(err, ErrUnsupportedDatatype) {
			t.Errorf("Lookup(%d): expected ErrUnsupportedDatatype, got %v", int(kind), err)
		}
	}
}

// TestResolveInvertsLookup verifies Resolve(Lookup(k)) == k for every kind
func TestResolveInvertsLookup(t *testing.T) {
	for _, dt := range Datatypes() {
		kind, err := Resolve(dt.Code, dt.Bitpix())
		if err != nil {
			t.Fatalf("Resolve(%d, %d) failed: %v", dt.Code, dt.Bitpix(), err)
		}
		if kind != dt.Kind {
			t.Errorf("Resolve(%d, %d) = %s, expected %s", dt.Code, dt.Bitpix(), kind, dt.Kind)
		}
	}
}

func TestResolveRejectsCorruptHeaders(t *testing.T) {
	tests := []struct {
		name   string
		code   int16
		bitpix int16
	}{
		{"unknown code", 3, 8},
		{"int64 is not supported", 1024, 64},
		{"uint8 with 16 bits", DTUint8, 16},
		{"rgb24 with 8 bits", DTRGB24, 8},
		{"complex64 with 32 bits", DTComplex64, 32},
		{"packed binary", DTBinary, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.code, tt.bitpix)
			if !errors.Is(err, ErrUnsupportedDatatype) {
				t.Errorf("Expected ErrUnsupportedDatatype, got %v", err)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	tests := map[string]ElementKind{
		"uint8":     UInt8,
		"UINT16":    UInt16,
		" rgb ":     RGB24,
		"bool":      Bit8,
		"gray16":    UInt16,
		"double":    Float64,
		"complex64": Complex64,
	}
	for name, want := range tests {
		got, err := ParseKind(name)
		if err != nil {
			t.Errorf("ParseKind(%q) failed: %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("ParseKind(%q) = %s, expected %s", name, got, want)
		}
	}

	if _, err := ParseKind("float16"); !errors.Is(err, ErrUnsupportedDatatype) {
		t.Errorf("Expected ErrUnsupportedDatatype for float16, got %v", err)
	}
}

func TestKindTextRoundTrip(t *testing.T) {
	for _, kind := range Kinds() {
		text, err := kind.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%s) failed: %v", kind, err)
		}
		var back ElementKind
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q) failed: %v", text, err)
		}
		if back != kind {
			t.Errorf("Expected %s, got %s", kind, back)
		}
	}
}
