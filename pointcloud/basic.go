package pointcloud

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// basicPointCloud is the basic implementation of the PointCloud interface backed by
// parallel slices of points and normals.
type basicPointCloud struct {
	points  Vectors
	normals Vectors
	meta    MetaData
}

// New returns a PointCloud without normals holding a copy of points.
func New(points []r3.Vector) PointCloud {
	cloud, err := NewWithNormals(points, nil)
	if err != nil {
		// unreachable, a cloud without normals is always consistent
		panic(err)
	}
	return cloud
}

// NewWithNormals returns a PointCloud holding copies of points and normals. An empty normals
// slice yields a cloud without normals; otherwise there must be exactly one normal per point.
func NewWithNormals(points, normals []r3.Vector) (PointCloud, error) {
	if len(normals) != 0 && len(normals) != len(points) {
		return nil, errors.Errorf("cloud has %d points but %d normals, need one normal per point or none", len(points), len(normals))
	}
	cloud := &basicPointCloud{
		points: Vectors(points).clone(),
		meta:   NewMetaData(),
	}
	if cloud.points == nil {
		cloud.points = Vectors{}
	}
	if len(normals) != 0 {
		cloud.normals = Vectors(normals).clone()
		cloud.meta.HasNormals = true
	}
	for _, p := range cloud.points {
		cloud.meta.Merge(p)
	}
	return cloud, nil
}

func (cloud *basicPointCloud) Size() int {
	return len(cloud.points)
}

func (cloud *basicPointCloud) Point(i int) r3.Vector {
	return cloud.points[i]
}

func (cloud *basicPointCloud) Points() Vectors {
	return cloud.points.clone()
}

func (cloud *basicPointCloud) HasNormals() bool {
	return cloud.normals != nil
}

func (cloud *basicPointCloud) Normal(i int) r3.Vector {
	return cloud.normals[i]
}

func (cloud *basicPointCloud) Normals() Vectors {
	return cloud.normals.clone()
}

func (cloud *basicPointCloud) MetaData() MetaData {
	return cloud.meta
}
