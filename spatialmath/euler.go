package spatialmath

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// EulerAngles are three angles (in radians) used to represent the rotation of an object in 3D
// Euclidean space. Rotations are extrinsic about the fixed X, Y and Z axes in that order, so
// the equivalent matrix is Rz(Yaw) * Ry(Pitch) * Rx(Roll).
type EulerAngles struct {
	Roll  float64 `json:"roll"`  // phi, about X
	Pitch float64 `json:"pitch"` // theta, about Y
	Yaw   float64 `json:"yaw"`   // psi, about Z
}

// NewEulerAngles creates an empty EulerAngles struct.
func NewEulerAngles() *EulerAngles {
	return &EulerAngles{Roll: 0, Pitch: 0, Yaw: 0}
}

// RotationMatrix returns Rz(Yaw) * Ry(Pitch) * Rx(Roll).
func (ea *EulerAngles) RotationMatrix() *RotationMatrix {
	sr, cr := math.Sincos(ea.Roll)
	sp, cp := math.Sincos(ea.Pitch)
	sy, cy := math.Sincos(ea.Yaw)

	rx := &RotationMatrix{mat: [9]float64{
		1, 0, 0,
		0, cr, -sr,
		0, sr, cr,
	}}
	ry := &RotationMatrix{mat: [9]float64{
		cp, 0, sp,
		0, 1, 0,
		-sp, 0, cp,
	}}
	rz := &RotationMatrix{mat: [9]float64{
		cy, -sy, 0,
		sy, cy, 0,
		0, 0, 1,
	}}
	return rz.MatMul(ry).MatMul(rx)
}

// Quaternion returns orientation in quaternion representation.
func (ea *EulerAngles) Quaternion() quat.Number {
	return ea.RotationMatrix().Quaternion()
}

// EulerAnglesFromRotationMatrix recovers the angles of a proper rotation matrix built as
// Rz(Yaw) * Ry(Pitch) * Rx(Roll). At gimbal lock (|Pitch| = pi/2) Roll is reported as 0.
func EulerAnglesFromRotationMatrix(rm *RotationMatrix) *EulerAngles {
	sp := -rm.At(2, 0)
	if sp >= 1 {
		return &EulerAngles{Roll: 0, Pitch: math.Pi / 2, Yaw: math.Atan2(-rm.At(0, 1), rm.At(1, 1))}
	}
	if sp <= -1 {
		return &EulerAngles{Roll: 0, Pitch: -math.Pi / 2, Yaw: math.Atan2(-rm.At(0, 1), rm.At(1, 1))}
	}
	return &EulerAngles{
		Roll:  math.Atan2(rm.At(2, 1), rm.At(2, 2)),
		Pitch: math.Asin(sp),
		Yaw:   math.Atan2(rm.At(1, 0), rm.At(0, 0)),
	}
}
