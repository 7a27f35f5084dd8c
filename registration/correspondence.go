package registration

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/registration/pointcloud"
)

// Correspondence claims that the point at index Source in the source cloud matches the point
// at index Target in the target cloud.
type Correspondence struct {
	Source int
	Target int
}

// CorrespondenceSet is an ordered sequence of correspondences. Order does not change the
// estimates but is kept so that repeated calls are reproducible.
//
// The estimators assume every index is in range for its cloud; use Validate to check a set
// that comes from an untrusted source.
type CorrespondenceSet []Correspondence

// IdentityCorrespondences pairs index i of the source with index i of the target for i in [0, n).
func IdentityCorrespondences(n int) CorrespondenceSet {
	if n <= 0 {
		return CorrespondenceSet{}
	}
	return lo.Map(lo.Range(n), func(i, _ int) Correspondence {
		return Correspondence{Source: i, Target: i}
	})
}

// Validate returns an error naming the first correspondence whose indices fall outside
// source or target.
func (cs CorrespondenceSet) Validate(source, target pointcloud.PointCloud) error {
	for i, c := range cs {
		if c.Source < 0 || c.Source >= source.Size() {
			return errors.Errorf("correspondence %d: source index %d out of range [0, %d)", i, c.Source, source.Size())
		}
		if c.Target < 0 || c.Target >= target.Size() {
			return errors.Errorf("correspondence %d: target index %d out of range [0, %d)", i, c.Target, target.Size())
		}
	}
	return nil
}

// ReadCorrespondences parses one "source target" index pair per line. Blank lines and text
// after a '#' are ignored.
func ReadCorrespondences(r io.Reader) (CorrespondenceSet, error) {
	cs := CorrespondenceSet{}
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line, _, _ := strings.Cut(scanner.Text(), "#")
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, errors.Errorf("line %d: expected 2 indices, got %d", lineNum, len(fields))
		}
		indices := make([]int, 2)
		for i, field := range fields {
			idx, err := strconv.Atoi(field)
			if err != nil {
				return nil, errors.Wrapf(err, "line %d: invalid index %q", lineNum, field)
			}
			if idx < 0 {
				return nil, errors.Errorf("line %d: negative index %d", lineNum, idx)
			}
			indices[i] = idx
		}
		cs = append(cs, Correspondence{Source: indices[0], Target: indices[1]})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading correspondences")
	}
	return cs, nil
}
