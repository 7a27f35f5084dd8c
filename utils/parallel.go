// Package utils contains helpers shared by the registration packages.
package utils

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/multierr"
)

// ParallelFactor controls the max number of functions run at once by RunInParallel and
// GetInParallel. Values below 1 are treated as 1.
var ParallelFactor = runtime.GOMAXPROCS(0)

// SimpleFunc is for RunInParallel.
type SimpleFunc func(ctx context.Context) error

// FloatFunc is for GetInParallel.
type FloatFunc func(ctx context.Context) (float64, error)

// RunInParallel runs all functions in parallel, return is elapsed time and an error.
// The first failure cancels the context handed to the remaining functions.
func RunInParallel(ctx context.Context, fs []SimpleFunc) (time.Duration, error) {
	floatFuncs := lo.Map(fs, func(f SimpleFunc, _ int) FloatFunc {
		return func(ctx context.Context) (float64, error) {
			return 0, f(ctx)
		}
	})
	elapsed, _, err := GetInParallel(ctx, floatFuncs)
	return elapsed, err
}

// GetInParallel runs all functions in parallel, return is elapsed time, a list of floats in the
// order of fs, and an error. Panics are recovered and reported as errors.
func GetInParallel(ctx context.Context, fs []FloatFunc) (time.Duration, []float64, error) {
	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	var bigError error
	var bigErrorMutex sync.Mutex
	storeError := func(err error) {
		bigErrorMutex.Lock()
		defer bigErrorMutex.Unlock()
		if bigError == nil || !errors.Is(err, context.Canceled) {
			bigError = multierr.Combine(bigError, err)
		}
	}

	results := make([]float64, len(fs))
	slots := make(chan struct{}, max(ParallelFactor, 1))

	helper := func(f FloatFunc, i int) {
		defer wg.Done()
		if err := ctx.Err(); err != nil {
			storeError(err)
			return
		}
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			storeError(ctx.Err())
			return
		}
		defer func() {
			if thePanic := recover(); thePanic != nil {
				storeError(fmt.Errorf("got panic getting something in parallel: %v", thePanic))
				cancel()
			}
			<-slots
		}()
		value, err := f(ctx)
		if err != nil {
			storeError(err)
			cancel()
		}
		results[i] = value
	}

	for i, f := range fs {
		wg.Add(1)
		go helper(f, i)
	}

	wg.Wait()
	return time.Since(start), results, bigError
}
