package registration

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"go.viam.com/registration/pointcloud"
	"go.viam.com/registration/spatialmath"
)

// machineEpsilon is the smallest source variance that still admits a scale estimate.
var machineEpsilon = math.Nextafter(1, 2) - 1

// PointToPoint minimizes the sum of squared Euclidean distances between corresponding points.
type PointToPoint struct {
	// WithScaling also solves for a uniform scale, making the result a similarity transform.
	WithScaling bool `json:"with_scaling"`
}

// Type returns TypePointToPoint.
func (est *PointToPoint) Type() EstimationType {
	return TypePointToPoint
}

// ComputeRMSE returns sqrt(mean(|source_i - target_i|^2)) over the correspondences.
func (est *PointToPoint) ComputeRMSE(source, target pointcloud.PointCloud, corres CorrespondenceSet) float64 {
	if len(corres) == 0 {
		return 0
	}
	var sum float64
	for _, c := range corres {
		d := source.Point(c.Source).Sub(target.Point(c.Target))
		sum += d.Norm2()
	}
	return math.Sqrt(sum / float64(len(corres)))
}

// ComputeTransformation returns the rigid, or with WithScaling the similarity, transform that
// best maps the source points onto their corresponding target points.
//
// The solution is the closed form of Umeyama, "Least-Squares Estimation of Transformation
// Parameters Between Two Point Patterns", IEEE PAMI 13(4), 1991.
func (est *PointToPoint) ComputeTransformation(
	source, target pointcloud.PointCloud,
	corres CorrespondenceSet,
) (*spatialmath.Transform, error) {
	if len(corres) == 0 {
		return spatialmath.NewIdentityTransform(), nil
	}
	n := len(corres)

	// one point per column
	x := mat.NewDense(3, n, nil)
	y := mat.NewDense(3, n, nil)
	for i, c := range corres {
		setColumn(x, i, source.Point(c.Source))
		setColumn(y, i, target.Point(c.Target))
	}

	muX := make([]float64, 3)
	muY := make([]float64, 3)
	var varX float64
	row := make([]float64, n)
	for j := 0; j < 3; j++ {
		mat.Row(row, j, x)
		mean, variance := stat.PopMeanVariance(row, nil)
		muX[j] = mean
		varX += variance
		mat.Row(row, j, y)
		muY[j] = stat.Mean(row, nil)
	}

	if est.WithScaling && varX <= machineEpsilon {
		return nil, &DegenerateSystemError{
			Method:          TypePointToPoint,
			Correspondences: n,
			Reason:          "source points have no spread, scale is undefined",
		}
	}

	xc := mat.NewDense(3, n, nil)
	yc := mat.NewDense(3, n, nil)
	for j := 0; j < 3; j++ {
		for i := 0; i < n; i++ {
			xc.Set(j, i, x.At(j, i)-muX[j])
			yc.Set(j, i, y.At(j, i)-muY[j])
		}
	}

	var cov mat.Dense
	cov.Mul(yc, xc.T())
	cov.Scale(1/float64(n), &cov)

	var svd mat.SVD
	if !svd.Factorize(&cov, mat.SVDFull) {
		return nil, &DegenerateSystemError{
			Method:          TypePointToPoint,
			Correspondences: n,
			ConditionNumber: math.Inf(1),
			Reason:          "singular value decomposition of the cross-covariance failed",
		}
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// flip the weakest axis when U*V^T would be a reflection
	s := mat.NewDiagDense(3, []float64{1, 1, 1})
	if mat.Det(&u)*mat.Det(&v) < 0 {
		s.SetDiag(2, -1)
	}

	var r mat.Dense
	r.Product(&u, s, v.T())
	rot, err := spatialmath.NewRotationMatrixFromDense(&r)
	if err != nil {
		return nil, err
	}

	scale := 1.
	if est.WithScaling {
		values := svd.Values(nil)
		var traceDS float64
		for i, d := range values {
			traceDS += d * s.At(i, i)
		}
		scale = traceDS / varX
	}

	centroidX := r3.Vector{X: muX[0], Y: muX[1], Z: muX[2]}
	centroidY := r3.Vector{X: muY[0], Y: muY[1], Z: muY[2]}
	translation := centroidY.Sub(rot.Mul(centroidX).Mul(scale))

	return spatialmath.NewTransform(rot, scale, translation), nil
}

func setColumn(m *mat.Dense, col int, v r3.Vector) {
	m.Set(0, col, v.X)
	m.Set(1, col, v.Y)
	m.Set(2, col, v.Z)
}
