package registration

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/registration/logging"
	"go.viam.com/registration/pointcloud"
	"go.viam.com/registration/spatialmath"
)

const (
	// maxConditionNumber bounds the condition number of the 6x6 normal equations. Above it the
	// twist is dominated by rounding noise in the unobservable directions.
	maxConditionNumber = 1e12
	// singularValueCutoff is the relative singular value below which a direction is treated
	// as unobservable by the minimum norm solve.
	singularValueCutoff = 1e-10
)

// PointToPlane minimizes the sum of squared distances from each source point to the plane
// through its corresponding target point with the target point's normal.
//
// The rotation is linearized around the identity, which holds for the small incremental
// corrections of an ICP iteration. The target cloud must carry normals; without them both
// methods return the neutral result.
//
// When the normals leave some motion unobservable, for example when they are all parallel,
// ComputeTransformation returns an error matching ErrDegenerateSystem. Set
// MinimumNormFallback to move only along the observable directions instead.
type PointToPlane struct {
	// MinimumNormFallback solves a degenerate system in the least squares sense with the
	// smallest twist instead of failing. Directions the normals cannot observe get no motion.
	MinimumNormFallback bool `json:"minimum_norm_fallback"`
	// Logger receives a debug line when the fallback is taken. Defaults to logging.Global.
	Logger logging.Logger `json:"-"`
}

// Type returns TypePointToPlane.
func (est *PointToPlane) Type() EstimationType {
	return TypePointToPlane
}

// ComputeRMSE returns sqrt(mean(((source_i - target_i) . normal_i)^2)) over the correspondences.
func (est *PointToPlane) ComputeRMSE(source, target pointcloud.PointCloud, corres CorrespondenceSet) float64 {
	if len(corres) == 0 || !target.HasNormals() {
		return 0
	}
	var sum float64
	for _, c := range corres {
		r := planeResidual(source, target, c)
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(corres)))
}

// ComputeTransformation solves the linearized normal equations for the twist
// x = (rx, ry, rz, tx, ty, tz) and returns Rz(rz)*Ry(ry)*Rx(rx) with translation (tx, ty, tz).
func (est *PointToPlane) ComputeTransformation(
	source, target pointcloud.PointCloud,
	corres CorrespondenceSet,
) (*spatialmath.Transform, error) {
	if len(corres) == 0 || !target.HasNormals() {
		return spatialmath.NewIdentityTransform(), nil
	}

	ata := mat.NewSymDense(6, nil)
	atb := mat.NewVecDense(6, nil)
	a := mat.NewVecDense(6, nil)
	for _, c := range corres {
		s := source.Point(c.Source)
		n := target.Normal(c.Target)
		sxn := s.Cross(n)
		setRow(a, sxn, n)
		ata.SymRankOne(ata, 1, a)
		atb.AddScaledVec(atb, planeResidual(source, target, c), a)
	}
	rhs := mat.NewVecDense(6, nil)
	rhs.ScaleVec(-1, atb)

	x, err := est.solve(ata, rhs, len(corres))
	if err != nil {
		return nil, err
	}

	euler := spatialmath.EulerAngles{Roll: x.AtVec(0), Pitch: x.AtVec(1), Yaw: x.AtVec(2)}
	translation := r3.Vector{X: x.AtVec(3), Y: x.AtVec(4), Z: x.AtVec(5)}
	return spatialmath.NewTransform(euler.RotationMatrix(), 1, translation), nil
}

func (est *PointToPlane) solve(ata *mat.SymDense, rhs *mat.VecDense, numCorres int) (*mat.VecDense, error) {
	degenerate := &DegenerateSystemError{Method: TypePointToPlane, Correspondences: numCorres}

	var chol mat.Cholesky
	var x mat.VecDense
	switch {
	case !chol.Factorize(ata):
		degenerate.ConditionNumber = math.Inf(1)
		degenerate.Reason = "normal equations are not positive definite"
	case chol.Cond() > maxConditionNumber:
		degenerate.ConditionNumber = chol.Cond()
		degenerate.Reason = "normal equations are ill conditioned"
	default:
		if err := chol.SolveVecTo(&x, rhs); err != nil {
			degenerate.ConditionNumber = chol.Cond()
			degenerate.Reason = err.Error()
			break
		}
		return &x, nil
	}

	if !est.MinimumNormFallback {
		return nil, degenerate
	}
	est.logger().Debugw("solving degenerate point to plane system with minimum norm fallback",
		"correspondences", numCorres, "reason", degenerate.Reason)
	return minimumNormSolve(ata, rhs, numCorres)
}

func (est *PointToPlane) logger() logging.Logger {
	if est.Logger != nil {
		return est.Logger
	}
	return logging.Global()
}

// minimumNormSolve returns the smallest x minimizing |ata*x - rhs| using the pseudo-inverse.
func minimumNormSolve(ata *mat.SymDense, rhs *mat.VecDense, numCorres int) (*mat.VecDense, error) {
	var svd mat.SVD
	if !svd.Factorize(ata, mat.SVDFull) {
		return nil, &DegenerateSystemError{
			Method:          TypePointToPlane,
			Correspondences: numCorres,
			ConditionNumber: math.Inf(1),
			Reason:          "singular value decomposition of the normal equations failed",
		}
	}
	x := mat.NewVecDense(6, nil)
	rank := svd.Rank(singularValueCutoff)
	if rank == 0 {
		return x, nil
	}
	svd.SolveVecTo(x, rhs, rank)
	return x, nil
}

func planeResidual(source, target pointcloud.PointCloud, c Correspondence) float64 {
	return source.Point(c.Source).Sub(target.Point(c.Target)).Dot(target.Normal(c.Target))
}

func setRow(a *mat.VecDense, rot, trans r3.Vector) {
	a.SetVec(0, rot.X)
	a.SetVec(1, rot.Y)
	a.SetVec(2, rot.Z)
	a.SetVec(3, trans.X)
	a.SetVec(4, trans.Y)
	a.SetVec(5, trans.Z)
}
