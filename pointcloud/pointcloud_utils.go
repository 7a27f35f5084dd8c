package pointcloud

import (
	"github.com/golang/geo/r3"

	"go.viam.com/registration/spatialmath"
)

// CloudCentroid returns the centroid of a pointcloud as a vector.
func CloudCentroid(pc PointCloud) r3.Vector {
	if pc.Size() == 0 {
		// This is done to match the centroid of an empty cloud.
		return r3.Vector{}
	}
	var sum r3.Vector
	for i := 0; i < pc.Size(); i++ {
		sum = sum.Add(pc.Point(i))
	}
	n := float64(pc.Size())
	return r3.Vector{X: sum.X / n, Y: sum.Y / n, Z: sum.Z / n}
}

// ApplyTransform returns a new cloud with every point mapped through tf. Normals, if any,
// are rotated by the rotation part of tf.
func ApplyTransform(pc PointCloud, tf *spatialmath.Transform) PointCloud {
	points := make([]r3.Vector, pc.Size())
	for i := range points {
		points[i] = tf.Apply(pc.Point(i))
	}
	if !pc.HasNormals() {
		return New(points)
	}
	rot := tf.Rotation()
	normals := make([]r3.Vector, pc.Size())
	for i := range normals {
		normals[i] = rot.Mul(pc.Normal(i))
	}
	cloud, err := NewWithNormals(points, normals)
	if err != nil {
		// unreachable, lengths match by construction
		panic(err)
	}
	return cloud
}
