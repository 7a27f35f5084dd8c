// Package pointcloud defines the ordered point cloud consumed by the registration estimators
// and provides an implementation for one.
//
// Unlike a sparse, position keyed cloud, points here are addressed by index so that
// correspondences can refer to them. A cloud either has a normal for every point or none at all.
package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

// MetaData is data about what's stored in the point cloud.
type MetaData struct {
	HasNormals bool

	MinX, MaxX float64
	MinY, MaxY float64
	MinZ, MaxZ float64
}

// PointCloud is an ordered, read-only sequence of points with optional per point normals.
// Implementations must be safe for concurrent reads.
type PointCloud interface {
	// Size returns the number of points in the cloud.
	Size() int

	// Point returns the i'th point. i must be in [0, Size()).
	Point(i int) r3.Vector

	// Points returns a copy of all points in order.
	Points() Vectors

	// HasNormals returns whether every point carries a normal.
	HasNormals() bool

	// Normal returns the normal of the i'th point. Only valid when HasNormals is true.
	Normal(i int) r3.Vector

	// Normals returns a copy of all normals in order, or nil if the cloud has none.
	Normals() Vectors

	// MetaData returns meta data.
	MetaData() MetaData
}

// NewMetaData creates a new MetaData with bounds that any point will widen.
func NewMetaData() MetaData {
	return MetaData{
		MinX: math.MaxFloat64,
		MinY: math.MaxFloat64,
		MinZ: math.MaxFloat64,
		MaxX: -math.MaxFloat64,
		MaxY: -math.MaxFloat64,
		MaxZ: -math.MaxFloat64,
	}
}

// Merge updates the bounds to include p.
func (meta *MetaData) Merge(p r3.Vector) {
	if p.X > meta.MaxX {
		meta.MaxX = p.X
	}
	if p.Y > meta.MaxY {
		meta.MaxY = p.Y
	}
	if p.Z > meta.MaxZ {
		meta.MaxZ = p.Z
	}

	if p.X < meta.MinX {
		meta.MinX = p.X
	}
	if p.Y < meta.MinY {
		meta.MinY = p.Y
	}
	if p.Z < meta.MinZ {
		meta.MinZ = p.Z
	}
}
