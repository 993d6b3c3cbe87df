package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Ensemble runs independent copies of a scene concurrently. Build is
// called once per run and must return a simulator over a fresh tree.
type Ensemble struct {
	build   func(run int) (*Simulator, error)
	numRuns int
}

func NewEnsemble(build func(run int) (*Simulator, error), numRuns int) *Ensemble {
	return &Ensemble{build: build, numRuns: numRuns}
}

func (e *Ensemble) Run(ctx context.Context, cfg Config) ([]*Result, error) {
	results := make([]*Result, e.numRuns)
	errs := make([]error, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			s, err := e.build(idx)
			if err != nil {
				errs[idx] = fmt.Errorf("run %d: %w", idx, err)
				return
			}
			results[idx], errs[idx] = s.Run(ctx, cfg)
		}(i)
	}

	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return results, nil
}
