package nifti

import (
	"math"
	"testing"
)

func affineNear(a, b Affine, tol float64) bool {
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if math.Abs(a[i][j]-b[i][j]) > tol {
				return false
			}
		}
	}
	return true
}

func TestQuaternionRoundTrip(t *testing.T) {
	c, s := math.Cos(0.3), math.Sin(0.3)
	tests := []struct {
		name   string
		affine Affine
	}{
		{"identity", Identity()},
		{"rotation about z", Affine{{c, -s, 0, 4}, {s, c, 0, -2}, {0, 0, 1, 9}, {0, 0, 0, 1}}},
		{"rotation about x", Affine{{1, 0, 0, 0}, {0, c, -s, 0}, {0, s, c, 0}, {0, 0, 0, 1}}},
		{"half turn about y", Affine{{-1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, -1, 0}, {0, 0, 0, 1}}},
		{"left handed", Affine{{-1, 0, 0, 90}, {0, 1, 0, -126}, {0, 0, 1, -72}, {0, 0, 0, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, ok := tt.affine.Quaternion()
			if !ok {
				t.Fatalf("Expected %v to be representable as a qform", tt.affine)
			}
			got := AffineFromQuaternion(q, 1, 1, 1)
			if !affineNear(got, tt.affine, 1e-9) {
				t.Errorf("Expected %v, got %v", tt.affine, got)
			}
		})
	}
}

// TestQuaternionRejectsScaling verifies that non-unit spacing is flagged,
// since pixdim is always written as 1
func TestQuaternionRejectsScaling(t *testing.T) {
	a := Affine{{2, 0, 0, 0}, {0, 2, 0, 0}, {0, 0, 2, 0}, {0, 0, 0, 1}}
	if _, ok := a.Quaternion(); ok {
		t.Error("Expected scaled affine not to be representable")
	}

	var singular Affine
	if _, ok := singular.Quaternion(); ok {
		t.Error("Expected zero affine not to be representable")
	}
}

// TestQuaternionRejectsShear verifies that unit columns alone are not enough;
// they must also be orthogonal
func TestQuaternionRejectsShear(t *testing.T) {
	a := Affine{{1, 0.6, 0, 0}, {0, 0.8, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}
	if _, ok := a.Quaternion(); ok {
		t.Error("Expected sheared affine not to be representable")
	}
}

func TestAffineInverse(t *testing.T) {
	a := Affine{{2, 0, 0, 10}, {0, 4, 0, -8}, {0, 0, 0.5, 3}, {0, 0, 0, 1}}
	inv, err := a.Inverse()
	if err != nil {
		t.Fatalf("Inverse failed: %v", err)
	}

	x, y, z := a.Apply(1, 2, 3)
	i, j, k := inv.Apply(x, y, z)
	if math.Abs(i-1) > 1e-12 || math.Abs(j-2) > 1e-12 || math.Abs(k-3) > 1e-12 {
		t.Errorf("Expected (1, 2, 3), got (%v, %v, %v)", i, j, k)
	}

	var singular Affine
	if _, err := singular.Inverse(); err == nil {
		t.Error("Expected error inverting a singular matrix")
	}
}

func TestAffineDenseRoundTrip(t *testing.T) {
	a := Affine{{1, 2, 3, 4}, {5, 6, 7, 8}, {9, 10, 11, 12}, {0.1, 0.2, 0.3, 0.4}}
	back, err := AffineFromMatrix(a.Dense())
	if err != nil {
		t.Fatalf("AffineFromMatrix failed: %v", err)
	}
	if !back.Equal(a) {
		t.Errorf("Expected %v, got %v", a, back)
	}
}
