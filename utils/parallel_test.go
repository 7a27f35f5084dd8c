package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.viam.com/test"
	gutils "go.viam.com/utils"
)

func TestRunInParallel(t *testing.T) {
	wait100ms := func(ctx context.Context) error {
		gutils.SelectContextOrWait(ctx, 100*time.Millisecond)
		return ctx.Err()
	}

	_, err := RunInParallel(context.Background(), []SimpleFunc{wait100ms, wait100ms})
	test.That(t, err, test.ShouldBeNil)

	errFunc := func(ctx context.Context) error {
		return errors.New("bad")
	}

	_, err = RunInParallel(context.Background(), []SimpleFunc{wait100ms, wait100ms, errFunc})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bad")

	panicFunc := func(ctx context.Context) error {
		panic(1)
	}

	_, err = RunInParallel(context.Background(), []SimpleFunc{panicFunc})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "got panic")

	_, err = RunInParallel(context.Background(), nil)
	test.That(t, err, test.ShouldBeNil)
}

func TestGetInParallel(t *testing.T) {
	constant := func(v float64) FloatFunc {
		return func(ctx context.Context) (float64, error) {
			return v, nil
		}
	}

	_, results, err := GetInParallel(context.Background(), []FloatFunc{constant(3), constant(1), constant(2)})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, results, test.ShouldResemble, []float64{3, 1, 2})

	errFunc := func(ctx context.Context) (float64, error) {
		return 0, errors.New("bad")
	}
	_, _, err = GetInParallel(context.Background(), []FloatFunc{constant(1), errFunc})
	test.That(t, err, test.ShouldNotBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = GetInParallel(ctx, []FloatFunc{constant(1)})
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

func TestParallelFactorBoundsConcurrency(t *testing.T) {
	prev := ParallelFactor
	ParallelFactor = 2
	defer func() { ParallelFactor = prev }()

	var running, peak atomic.Int32
	work := func(ctx context.Context) (float64, error) {
		now := running.Add(1)
		for {
			old := peak.Load()
			if now <= old || peak.CompareAndSwap(old, now) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return 1, nil
	}

	fs := make([]FloatFunc, 8)
	for i := range fs {
		fs[i] = work
	}
	_, results, err := GetInParallel(context.Background(), fs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, results, test.ShouldHaveLength, 8)
	test.That(t, peak.Load(), test.ShouldBeLessThanOrEqualTo, int32(2))
}
