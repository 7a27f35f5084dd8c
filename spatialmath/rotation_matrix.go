// Package spatialmath defines the rotation, Euler angle and homogeneous transform types
// used by the registration estimators.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// RotationMatrix is a 3x3 matrix in row major order.
// m[3*r + c] is the element in the r'th row and c'th column.
type RotationMatrix struct {
	mat [9]float64
}

// NewRotationMatrix creates the rotation matrix from a slice of 9 values in row major order.
func NewRotationMatrix(m []float64) (*RotationMatrix, error) {
	if len(m) != 9 {
		return nil, errors.Errorf("input slice has %d elements, need exactly 9", len(m))
	}
	var rm RotationMatrix
	copy(rm.mat[:], m)
	return &rm, nil
}

// NewRotationMatrixFromDense creates the rotation matrix from the top left 3x3 block of m.
func NewRotationMatrixFromDense(m mat.Matrix) (*RotationMatrix, error) {
	r, c := m.Dims()
	if r < 3 || c < 3 {
		return nil, errors.Errorf("matrix is %dx%d, need at least 3x3", r, c)
	}
	var rm RotationMatrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rm.mat[3*i+j] = m.At(i, j)
		}
	}
	return &rm, nil
}

// NewIdentityRotationMatrix returns the rotation matrix that signifies no rotation.
func NewIdentityRotationMatrix() *RotationMatrix {
	return &RotationMatrix{mat: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// At returns the element at the given row and column.
func (rm *RotationMatrix) At(row, col int) float64 {
	return rm.mat[3*row+col]
}

// Row returns the given row as a vector.
func (rm *RotationMatrix) Row(row int) r3.Vector {
	return r3.Vector{X: rm.mat[3*row], Y: rm.mat[3*row+1], Z: rm.mat[3*row+2]}
}

// Col returns the given column as a vector.
func (rm *RotationMatrix) Col(col int) r3.Vector {
	return r3.Vector{X: rm.mat[col], Y: rm.mat[3+col], Z: rm.mat[6+col]}
}

// Mul returns the product of the matrix with the column vector v.
func (rm *RotationMatrix) Mul(v r3.Vector) r3.Vector {
	return r3.Vector{X: rm.Row(0).Dot(v), Y: rm.Row(1).Dot(v), Z: rm.Row(2).Dot(v)}
}

// MatMul returns rm * other.
func (rm *RotationMatrix) MatMul(other *RotationMatrix) *RotationMatrix {
	var out RotationMatrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.mat[3*i+j] = rm.Row(i).Dot(other.Col(j))
		}
	}
	return &out
}

// Transpose returns the transpose, which is also the inverse of a proper rotation.
func (rm *RotationMatrix) Transpose() *RotationMatrix {
	var out RotationMatrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.mat[3*j+i] = rm.mat[3*i+j]
		}
	}
	return &out
}

// Det returns the determinant of the matrix.
func (rm *RotationMatrix) Det() float64 {
	return rm.Row(0).Dot(rm.Row(1).Cross(rm.Row(2)))
}

// IsProperRotation returns whether the matrix is orthonormal with a determinant of +1, within tol.
func (rm *RotationMatrix) IsProperRotation(tol float64) bool {
	prod := rm.MatMul(rm.Transpose())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			expected := 0.
			if i == j {
				expected = 1
			}
			if math.Abs(prod.At(i, j)-expected) > tol {
				return false
			}
		}
	}
	return math.Abs(rm.Det()-1) <= tol
}

// Dense returns a copy of the matrix as a gonum matrix.
func (rm *RotationMatrix) Dense() *mat.Dense {
	data := make([]float64, 9)
	copy(data, rm.mat[:])
	return mat.NewDense(3, 3, data)
}

// Quaternion returns the unit quaternion of a proper rotation matrix.
// See: https://www.euclideanspace.com/maths/geometry/rotations/conversions/matrixToQuaternion/
func (rm *RotationMatrix) Quaternion() quat.Number {
	m := rm.mat
	var q quat.Number
	trace := m[0] + m[4] + m[8]
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1)
		q = quat.Number{Real: 0.25 / s, Imag: (m[7] - m[5]) * s, Jmag: (m[2] - m[6]) * s, Kmag: (m[3] - m[1]) * s}
	case m[0] > m[4] && m[0] > m[8]:
		s := 2 * math.Sqrt(1+m[0]-m[4]-m[8])
		q = quat.Number{Real: (m[7] - m[5]) / s, Imag: 0.25 * s, Jmag: (m[1] + m[3]) / s, Kmag: (m[2] + m[6]) / s}
	case m[4] > m[8]:
		s := 2 * math.Sqrt(1+m[4]-m[0]-m[8])
		q = quat.Number{Real: (m[2] - m[6]) / s, Imag: (m[1] + m[3]) / s, Jmag: 0.25 * s, Kmag: (m[5] + m[7]) / s}
	default:
		s := 2 * math.Sqrt(1+m[8]-m[0]-m[4])
		q = quat.Number{Real: (m[3] - m[1]) / s, Imag: (m[2] + m[6]) / s, Jmag: (m[5] + m[7]) / s, Kmag: 0.25 * s}
	}
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	return q
}

// QuatToRotationMatrix converts a unit quaternion to a rotation matrix.
func QuatToRotationMatrix(q quat.Number) *RotationMatrix {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return &RotationMatrix{mat: [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	}}
}

// RotationMatrixAlmostEqual returns whether every element of the two matrices is within tol.
func RotationMatrixAlmostEqual(a, b *RotationMatrix, tol float64) bool {
	for i := range a.mat {
		if math.Abs(a.mat[i]-b.mat[i]) > tol {
			return false
		}
	}
	return true
}
