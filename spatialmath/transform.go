package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Transform is a 4x4 homogeneous transformation. The top left 3x3 block holds a rotation,
// optionally multiplied by a uniform scale, the top right 3x1 block holds the translation and
// the bottom row is always [0 0 0 1].
type Transform struct {
	m *mat.Dense
}

// NewIdentityTransform returns the 4x4 identity.
func NewIdentityTransform() *Transform {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		m.Set(i, i, 1)
	}
	return &Transform{m: m}
}

// NewTransform assembles scale * rotation in the linear block and translation in the last column.
func NewTransform(rotation *RotationMatrix, scale float64, translation r3.Vector) *Transform {
	t := NewIdentityTransform()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t.m.Set(i, j, scale*rotation.At(i, j))
		}
	}
	t.m.Set(0, 3, translation.X)
	t.m.Set(1, 3, translation.Y)
	t.m.Set(2, 3, translation.Z)
	return t
}

// NewTransformFromDense copies a 4x4 matrix into a Transform. The bottom row must be [0 0 0 1].
func NewTransformFromDense(m mat.Matrix) (*Transform, error) {
	r, c := m.Dims()
	if r != 4 || c != 4 {
		return nil, errors.Errorf("transform must be 4x4, got %dx%d", r, c)
	}
	for j := 0; j < 4; j++ {
		expected := 0.
		if j == 3 {
			expected = 1
		}
		if m.At(3, j) != expected {
			return nil, errors.Errorf("transform bottom row must be [0 0 0 1], got %v", mat.Row(nil, 3, m))
		}
	}
	return &Transform{m: mat.DenseCopyOf(m)}, nil
}

// Matrix returns a copy of the underlying 4x4 matrix.
func (t *Transform) Matrix() *mat.Dense {
	return mat.DenseCopyOf(t.m)
}

// At returns the element at the given row and column.
func (t *Transform) At(row, col int) float64 {
	return t.m.At(row, col)
}

// Translation returns the top right 3x1 block.
func (t *Transform) Translation() r3.Vector {
	return r3.Vector{X: t.m.At(0, 3), Y: t.m.At(1, 3), Z: t.m.At(2, 3)}
}

// Scale returns the uniform scale of the linear block, the cube root of its determinant.
func (t *Transform) Scale() float64 {
	return math.Cbrt(mat.Det(t.m.Slice(0, 3, 0, 3)))
}

// Rotation returns the linear block with the uniform scale divided out.
func (t *Transform) Rotation() *RotationMatrix {
	s := t.Scale()
	if s == 0 {
		s = 1
	}
	var rm RotationMatrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			rm.mat[3*i+j] = t.m.At(i, j) / s
		}
	}
	return &rm
}

// Apply maps the point p through the transform.
func (t *Transform) Apply(p r3.Vector) r3.Vector {
	return r3.Vector{
		X: t.m.At(0, 0)*p.X + t.m.At(0, 1)*p.Y + t.m.At(0, 2)*p.Z + t.m.At(0, 3),
		Y: t.m.At(1, 0)*p.X + t.m.At(1, 1)*p.Y + t.m.At(1, 2)*p.Z + t.m.At(1, 3),
		Z: t.m.At(2, 0)*p.X + t.m.At(2, 1)*p.Y + t.m.At(2, 2)*p.Z + t.m.At(2, 3),
	}
}

// ApplyDirection rotates the unit direction v, ignoring translation and scale.
func (t *Transform) ApplyDirection(v r3.Vector) r3.Vector {
	return t.Rotation().Mul(v)
}

// Compose returns t * other, the transform that applies other first and then t.
func (t *Transform) Compose(other *Transform) *Transform {
	var out mat.Dense
	out.Mul(t.m, other.m)
	return &Transform{m: &out}
}

// Inverse returns the inverse transform.
func (t *Transform) Inverse() (*Transform, error) {
	var inv mat.Dense
	if err := inv.Inverse(t.m); err != nil {
		return nil, errors.Wrap(err, "transform is not invertible")
	}
	return &Transform{m: &inv}, nil
}

// IsIdentity returns whether the transform is exactly the identity.
func (t *Transform) IsIdentity() bool {
	return mat.Equal(t.m, NewIdentityTransform().m)
}

// String prints the transform one row per line.
func (t *Transform) String() string {
	return fmt.Sprintf("%v", mat.Formatted(t.m, mat.Squeeze()))
}

// TransformAlmostEqual returns whether every element of the two transforms is within tol.
func TransformAlmostEqual(a, b *Transform, tol float64) bool {
	return mat.EqualApprox(a.m, b.m, tol)
}
