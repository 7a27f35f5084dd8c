package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// represent a 45 degree rotation around the x axis in the supported representations.
var (
	th    = math.Pi / 4.
	q45x  = quat.Number{Real: math.Cos(th / 2.), Imag: math.Sin(th / 2.)}
	aa45x = &R4AA{th, 1., 0., 0.}
	ea45x = &EulerAngles{Roll: th, Pitch: 0, Yaw: 0}
)

func TestRepresentationsAgree(t *testing.T) {
	fromQuat := QuatToRotationMatrix(q45x)
	test.That(t, RotationMatrixAlmostEqual(fromQuat, aa45x.RotationMatrix(), 1e-12), test.ShouldBeTrue)
	test.That(t, RotationMatrixAlmostEqual(fromQuat, ea45x.RotationMatrix(), 1e-12), test.ShouldBeTrue)

	q := ea45x.Quaternion()
	test.That(t, q.Real, test.ShouldAlmostEqual, q45x.Real)
	test.That(t, q.Imag, test.ShouldAlmostEqual, q45x.Imag)
	test.That(t, q.Jmag, test.ShouldAlmostEqual, q45x.Jmag)
	test.That(t, q.Kmag, test.ShouldAlmostEqual, q45x.Kmag)

	aa := QuatToR4AA(q)
	test.That(t, aa.Theta, test.ShouldAlmostEqual, aa45x.Theta)
	test.That(t, aa.RX, test.ShouldAlmostEqual, 1.)
	test.That(t, QuatToR4AA(quat.Number{Real: 1}), test.ShouldResemble, NewR4AA())
}

func TestEulerCompositionOrder(t *testing.T) {
	ea := &EulerAngles{Roll: 0.1, Pitch: -0.2, Yaw: 0.3}
	rx := (&EulerAngles{Roll: 0.1}).RotationMatrix()
	ry := (&EulerAngles{Pitch: -0.2}).RotationMatrix()
	rz := (&EulerAngles{Yaw: 0.3}).RotationMatrix()

	zyx := rz.MatMul(ry).MatMul(rx)
	test.That(t, RotationMatrixAlmostEqual(ea.RotationMatrix(), zyx, 1e-12), test.ShouldBeTrue)

	xyz := rx.MatMul(ry).MatMul(rz)
	test.That(t, RotationMatrixAlmostEqual(ea.RotationMatrix(), xyz, 1e-6), test.ShouldBeFalse)

	back := EulerAnglesFromRotationMatrix(ea.RotationMatrix())
	test.That(t, back.Roll, test.ShouldAlmostEqual, ea.Roll)
	test.That(t, back.Pitch, test.ShouldAlmostEqual, ea.Pitch)
	test.That(t, back.Yaw, test.ShouldAlmostEqual, ea.Yaw)

	locked := EulerAnglesFromRotationMatrix((&EulerAngles{Pitch: math.Pi / 2, Yaw: 0.4}).RotationMatrix())
	test.That(t, locked.Roll, test.ShouldEqual, 0.)
	test.That(t, locked.Pitch, test.ShouldAlmostEqual, math.Pi/2)
	test.That(t, locked.Yaw, test.ShouldAlmostEqual, 0.4)
}

func TestRotationMatrix(t *testing.T) {
	_, err := NewRotationMatrix([]float64{1, 2, 3})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "need exactly 9")

	rm := ea45x.RotationMatrix()
	test.That(t, rm.IsProperRotation(1e-9), test.ShouldBeTrue)
	test.That(t, rm.Det(), test.ShouldAlmostEqual, 1.)
	test.That(t, RotationMatrixAlmostEqual(rm.MatMul(rm.Transpose()), NewIdentityRotationMatrix(), 1e-12), test.ShouldBeTrue)

	reflection, err := NewRotationMatrix([]float64{1, 0, 0, 0, 1, 0, 0, 0, -1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reflection.IsProperRotation(1e-9), test.ShouldBeFalse)

	v := rm.Mul(r3.Vector{X: 0, Y: 1, Z: 0})
	test.That(t, v.Y, test.ShouldAlmostEqual, math.Cos(th))
	test.That(t, v.Z, test.ShouldAlmostEqual, math.Sin(th))

	fromDense, err := NewRotationMatrixFromDense(rm.Dense())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fromDense, test.ShouldResemble, rm)
	_, err = NewRotationMatrixFromDense(mat.NewDense(2, 2, nil))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestTransform(t *testing.T) {
	identity := NewIdentityTransform()
	test.That(t, identity.IsIdentity(), test.ShouldBeTrue)
	test.That(t, identity.Scale(), test.ShouldEqual, 1.)

	rot := (&EulerAngles{Roll: 0.2, Pitch: 0.1, Yaw: -0.5}).RotationMatrix()
	trans := r3.Vector{X: 1, Y: 2, Z: 3}
	tf := NewTransform(rot, 2, trans)
	test.That(t, tf.IsIdentity(), test.ShouldBeFalse)
	test.That(t, tf.Translation(), test.ShouldResemble, trans)
	test.That(t, tf.Scale(), test.ShouldAlmostEqual, 2.)
	test.That(t, RotationMatrixAlmostEqual(tf.Rotation(), rot, 1e-12), test.ShouldBeTrue)
	for j := 0; j < 3; j++ {
		test.That(t, tf.At(3, j), test.ShouldEqual, 0.)
	}
	test.That(t, tf.At(3, 3), test.ShouldEqual, 1.)

	p := r3.Vector{X: -1, Y: 0.5, Z: 4}
	expected := rot.Mul(p).Mul(2).Add(trans)
	got := tf.Apply(p)
	test.That(t, got.Sub(expected).Norm(), test.ShouldBeLessThan, 1e-12)

	n := r3.Vector{X: 0, Y: 0, Z: 1}
	test.That(t, tf.ApplyDirection(n).Sub(rot.Mul(n)).Norm(), test.ShouldBeLessThan, 1e-12)

	inv, err := tf.Inverse()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, TransformAlmostEqual(tf.Compose(inv), identity, 1e-12), test.ShouldBeTrue)
	test.That(t, inv.Apply(got).Sub(p).Norm(), test.ShouldBeLessThan, 1e-12)

	other := NewTransform(NewIdentityRotationMatrix(), 1, r3.Vector{X: 10})
	composed := tf.Compose(other)
	test.That(t, composed.Apply(p).Sub(tf.Apply(other.Apply(p))).Norm(), test.ShouldBeLessThan, 1e-12)

	approx := cmpopts.EquateApprox(0, 1e-12)
	test.That(t, cmp.Equal(composed.Matrix().RawMatrix().Data, tf.Compose(other).Matrix().RawMatrix().Data, approx),
		test.ShouldBeTrue)
	test.That(t, tf.String(), test.ShouldContainSubstring, "1")
}

func TestNewTransformFromDense(t *testing.T) {
	tf, err := NewTransformFromDense(NewIdentityTransform().Matrix())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tf.IsIdentity(), test.ShouldBeTrue)

	_, err = NewTransformFromDense(mat.NewDense(3, 3, nil))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "4x4")

	bad := NewIdentityTransform().Matrix()
	bad.Set(3, 0, 1)
	_, err = NewTransformFromDense(bad)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bottom row")

	// the returned transform does not alias its input
	m := NewIdentityTransform().Matrix()
	tf, err = NewTransformFromDense(m)
	test.That(t, err, test.ShouldBeNil)
	m.Set(0, 3, 5)
	test.That(t, tf.Translation().X, test.ShouldEqual, 0.)
}
