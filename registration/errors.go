package registration

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrDegenerateSystem matches every DegenerateSystemError with errors.Is.
var ErrDegenerateSystem = errors.New("degenerate system")

// DegenerateSystemError is returned when the correspondences do not constrain the transform,
// e.g. all target normals are parallel or the source points have no spread. Callers usually
// skip the iteration, switch estimator, or pick a different correspondence set.
type DegenerateSystemError struct {
	Method          EstimationType
	Correspondences int
	// ConditionNumber is the estimated condition number of the solved system, +Inf when
	// the factorization failed outright. Zero when not applicable.
	ConditionNumber float64
	Reason          string
}

func (e *DegenerateSystemError) Error() string {
	msg := fmt.Sprintf("%s: %v over %d correspondences: %s", e.Method, ErrDegenerateSystem, e.Correspondences, e.Reason)
	if e.ConditionNumber != 0 {
		msg += fmt.Sprintf(" (condition number %g)", e.ConditionNumber)
	}
	return msg
}

// Is reports whether target is ErrDegenerateSystem.
func (e *DegenerateSystemError) Is(target error) bool {
	return target == ErrDegenerateSystem //nolint:errorlint
}
