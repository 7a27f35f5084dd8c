// Package registration estimates the transform that best aligns a source point cloud onto a
// target point cloud given point correspondences, the inner step of an ICP loop.
//
// Two error metrics are provided. PointToPoint minimizes squared Euclidean distances with the
// closed form absolute orientation solution of Umeyama. PointToPlane minimizes squared
// distances along the target normals by linearizing the rotation and solving the normal
// equations with a Cholesky factorization.
//
// Every estimator is a pure function of its inputs; they hold no mutable state and may be
// shared between goroutines.
package registration

import (
	"github.com/pkg/errors"

	"go.viam.com/registration/pointcloud"
	"go.viam.com/registration/spatialmath"
)

// EstimationType identifies an error metric.
type EstimationType int

const (
	// TypeUnspecified is the zero value.
	TypeUnspecified EstimationType = iota
	// TypePointToPoint selects PointToPoint.
	TypePointToPoint
	// TypePointToPlane selects PointToPlane.
	TypePointToPlane
)

func (t EstimationType) String() string {
	switch t {
	case TypePointToPoint:
		return "point_to_point"
	case TypePointToPlane:
		return "point_to_plane"
	case TypeUnspecified:
	}
	return "unspecified"
}

// ParseEstimationType parses the names returned by EstimationType.String.
func ParseEstimationType(s string) (EstimationType, error) {
	switch s {
	case TypePointToPoint.String():
		return TypePointToPoint, nil
	case TypePointToPlane.String():
		return TypePointToPlane, nil
	}
	return TypeUnspecified, errors.Errorf("unknown estimation method %q, expected %q or %q",
		s, TypePointToPoint, TypePointToPlane)
}

// TransformationEstimation scores and solves one alignment step under an error metric.
//
// Both methods treat an empty correspondence set as carrying no information: ComputeRMSE
// returns 0 and ComputeTransformation returns the identity.
type TransformationEstimation interface {
	Type() EstimationType

	// ComputeRMSE returns the root mean square residual of the correspondences under the
	// current alignment.
	ComputeRMSE(source, target pointcloud.PointCloud, corres CorrespondenceSet) float64

	// ComputeTransformation returns the transform which, applied to source, minimizes the
	// squared residuals. A *DegenerateSystemError is returned when the correspondences do
	// not determine a transform.
	ComputeTransformation(
		source, target pointcloud.PointCloud,
		corres CorrespondenceSet,
	) (*spatialmath.Transform, error)
}
