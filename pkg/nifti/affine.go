package nifti

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Affine is a 4x4 voxel-to-world transform in row-major order.
//
// The bottom row is conventionally (0, 0, 0, 1) but nothing here enforces
// it.
type Affine [4][4]float64

// Identity returns the identity transform.
func Identity() Affine {
	var a Affine
	for i := 0; i < 4; i++ {
		a[i][i] = 1
	}
	return a
}

// Dense returns the transform as a gonum matrix.
func (a Affine) Dense() *mat.Dense {
	data := make([]float64, 0, 16)
	for i := 0; i < 4; i++ {
		data = append(data, a[i][:]...)
	}
	return mat.NewDense(4, 4, data)
}

// AffineFromMatrix copies a 4x4 gonum matrix into an Affine.
func AffineFromMatrix(m mat.Matrix) (Affine, error) {
	r, c := m.Dims()
	if r != 4 || c != 4 {
		return Affine{}, fmt.Errorf("affine must be 4x4, got %dx%d", r, c)
	}
	var a Affine
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			a[i][j] = m.At(i, j)
		}
	}
	return a, nil
}

// Inverse returns the world-to-voxel transform.
func (a Affine) Inverse() (Affine, error) {
	var inv mat.Dense
	if err := inv.Inverse(a.Dense()); err != nil {
		return Affine{}, fmt.Errorf("affine is not invertible: %w", err)
	}
	return AffineFromMatrix(&inv)
}

// Apply maps voxel coordinates (i, j, k) to world coordinates.
func (a Affine) Apply(i, j, k float64) (x, y, z float64) {
	x = a[0][0]*i + a[0][1]*j + a[0][2]*k + a[0][3]
	y = a[1][0]*i + a[1][1]*j + a[1][2]*k + a[1][3]
	z = a[2][0]*i + a[2][1]*j + a[2][2]*k + a[2][3]
	return x, y, z
}

// Equal reports whether a and b are identical bit for bit. NaN entries
// compare equal to NaN entries with the same payload.
func (a Affine) Equal(b Affine) bool {
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if math.Float64bits(a[i][j]) != math.Float64bits(b[i][j]) {
				return false
			}
		}
	}
	return true
}

// Quaternion is the NIfTI qform parameterization of a rigid transform:
// rotation (B, C, D; A is implied), translation and the handedness factor.
type Quaternion struct {
	B, C, D                   float64
	OffsetX, OffsetY, OffsetZ float64
	QFac                      float64
}

// unitTolerance bounds how far a column norm may stray from 1, and a column
// dot product from 0, for the linear part to count as a pure rotation.
const unitTolerance = 1e-6

// Quaternion derives the qform parameters of a. The rotation is the polar
// factor of the linear part, so it is defined for any non-singular matrix.
// The second result reports whether the linear part is a rotation with unit
// voxel spacing, meaning its columns are orthonormal. That is the only case
// the qform can represent exactly given that pixdim is fixed at 1; a sheared
// or scaled matrix yields the nearest rotation and false.
func (a Affine) Quaternion() (Quaternion, bool) {
	q := Quaternion{
		OffsetX: a[0][3],
		OffsetY: a[1][3],
		OffsetZ: a[2][3],
		QFac:    1,
	}

	r := mat.NewDense(3, 3, nil)
	unit := true
	for j := 0; j < 3; j++ {
		var norm float64
		for i := 0; i < 3; i++ {
			norm += a[i][j] * a[i][j]
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			return q, false
		}
		if math.Abs(norm-1) > unitTolerance {
			unit = false
		}
		for i := 0; i < 3; i++ {
			r.Set(i, j, a[i][j]/norm)
		}
	}

	var gram mat.Dense
	gram.Mul(r.T(), r)
	for i := 0; i < 3; i++ {
		for j := i + 1; j < 3; j++ {
			if math.Abs(gram.At(i, j)) > unitTolerance {
				unit = false
			}
		}
	}

	if mat.Det(r) < 0 {
		q.QFac = -1
		for i := 0; i < 3; i++ {
			r.Set(i, 2, -r.At(i, 2))
		}
	}

	var svd mat.SVD
	if !svd.Factorize(r, mat.SVDFull) {
		return q, false
	}
	var u, v, rot mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	rot.Mul(&u, v.T())

	q.B, q.C, q.D = rotationToQuaternion(&rot)
	return q, unit
}

// rotationToQuaternion returns the (b, c, d) components of the unit
// quaternion for a proper rotation, with the scalar part kept non-negative.
func rotationToQuaternion(r mat.Matrix) (b, c, d float64) {
	r11, r12, r13 := r.At(0, 0), r.At(0, 1), r.At(0, 2)
	r21, r22, r23 := r.At(1, 0), r.At(1, 1), r.At(1, 2)
	r31, r32, r33 := r.At(2, 0), r.At(2, 1), r.At(2, 2)

	a := r11 + r22 + r33 + 1
	if a > 0.5 {
		a = 0.5 * math.Sqrt(a)
		return 0.25 * (r32 - r23) / a, 0.25 * (r13 - r31) / a, 0.25 * (r21 - r12) / a
	}

	xd := 1 + r11 - (r22 + r33)
	yd := 1 + r22 - (r11 + r33)
	zd := 1 + r33 - (r11 + r22)
	switch {
	case xd > 1:
		b = 0.5 * math.Sqrt(xd)
		c = 0.25 * (r12 + r21) / b
		d = 0.25 * (r13 + r31) / b
		a = 0.25 * (r32 - r23) / b
	case yd > 1:
		c = 0.5 * math.Sqrt(yd)
		b = 0.25 * (r12 + r21) / c
		d = 0.25 * (r23 + r32) / c
		a = 0.25 * (r13 - r31) / c
	default:
		d = 0.5 * math.Sqrt(zd)
		b = 0.25 * (r13 + r31) / d
		c = 0.25 * (r23 + r32) / d
		a = 0.25 * (r21 - r12) / d
	}
	if a < 0 {
		b, c, d = -b, -c, -d
	}
	return b, c, d
}

// AffineFromQuaternion builds the transform described by a qform with the
// given voxel spacing. Non-positive spacings are treated as 1.
func AffineFromQuaternion(q Quaternion, dx, dy, dz float64) Affine {
	b, c, d := q.B, q.C, q.D
	a := 1 - (b*b + c*c + d*d)
	if a < 1e-7 {
		// the scalar part rounded away; renormalise the vector part
		s := 1 / math.Sqrt(b*b+c*c+d*d)
		b, c, d = b*s, c*s, d*s
		a = 0
	} else {
		a = math.Sqrt(a)
	}

	if dx <= 0 {
		dx = 1
	}
	if dy <= 0 {
		dy = 1
	}
	if dz <= 0 {
		dz = 1
	}
	if q.QFac < 0 {
		dz = -dz
	}

	out := Affine{
		{(a*a + b*b - c*c - d*d) * dx, 2 * (b*c - a*d) * dy, 2 * (b*d + a*c) * dz, q.OffsetX},
		{2 * (b*c + a*d) * dx, (a*a + c*c - b*b - d*d) * dy, 2 * (c*d - a*b) * dz, q.OffsetY},
		{2 * (b*d - a*c) * dx, 2 * (c*d + a*b) * dy, (a*a + d*d - c*c - b*b) * dz, q.OffsetZ},
		{0, 0, 0, 1},
	}
	return out
}
