package registration

import (
	"context"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/registration/pointcloud"
	"go.viam.com/registration/utils"
)

// ScoreCorrespondenceSets returns the RMSE of each candidate correspondence set, in order,
// computing them in parallel. It stops early if ctx is canceled.
func ScoreCorrespondenceSets(
	ctx context.Context,
	est TransformationEstimation,
	source, target pointcloud.PointCloud,
	sets []CorrespondenceSet,
) ([]float64, error) {
	if est == nil {
		return nil, errors.New("no estimator given")
	}
	fs := lo.Map(sets, func(corres CorrespondenceSet, _ int) utils.FloatFunc {
		return func(ctx context.Context) (float64, error) {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			return est.ComputeRMSE(source, target, corres), nil
		}
	})
	_, scores, err := utils.GetInParallel(ctx, fs)
	if err != nil {
		return nil, errors.Wrap(err, "scoring correspondence sets")
	}
	return scores, nil
}

// BestCorrespondenceSet returns the index and RMSE of the lowest scoring candidate set.
// It returns -1 when sets is empty.
func BestCorrespondenceSet(
	ctx context.Context,
	est TransformationEstimation,
	source, target pointcloud.PointCloud,
	sets []CorrespondenceSet,
) (int, float64, error) {
	scores, err := ScoreCorrespondenceSets(ctx, est, source, target, sets)
	if err != nil {
		return -1, 0, err
	}
	if len(scores) == 0 {
		return -1, 0, nil
	}
	best := 0
	for i, score := range scores {
		if score < scores[best] {
			best = i
		}
	}
	return best, scores[best], nil
}
