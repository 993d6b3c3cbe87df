package optim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/mechsim/internal/experiment"
)

var ErrNoCandidate = errors.New("optim: no parameter combination completed")

// Builder returns a set-up experiment for one parameter combination.
type Builder func(params experiment.Params) (*experiment.Experiment, error)

// GridSearch tries every combination of the listed parameter values and
// keeps the one with the smallest metric.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges}
}

// Linspace returns n evenly spaced values over [lo, hi].
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return out
}

type searchState struct {
	metric     string
	build      Builder
	best       float64
	bestParams experiment.Params
	tried      int
}

// Search minimises metricName over the grid. Combinations whose run fails,
// reports errors or yields a non-finite metric are skipped.
func (g *GridSearch) Search(ctx context.Context, build Builder, metricName string) (experiment.Params, float64, error) {
	if len(g.paramNames) != len(g.ranges) {
		return nil, 0, fmt.Errorf("optim: %d parameters but %d ranges", len(g.paramNames), len(g.ranges))
	}

	st := &searchState{metric: metricName, build: build, best: math.Inf(1)}
	if err := g.searchRecursive(ctx, 0, experiment.Params{}, st); err != nil {
		return nil, 0, err
	}
	if st.bestParams == nil {
		return nil, 0, fmt.Errorf("%w (%d tried)", ErrNoCandidate, st.tried)
	}
	return st.bestParams, st.best, nil
}

func (g *GridSearch) searchRecursive(ctx context.Context, depth int, current experiment.Params, st *searchState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		st.tried++
		exp, err := st.build(current)
		if err != nil {
			return nil
		}

		result, err := exp.Run(ctx)
		if err != nil || len(result.Errors) > 0 {
			return nil
		}

		val, ok := result.Metrics[st.metric]
		if !ok || math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		if val < st.best {
			st.best = val
			st.bestParams = make(experiment.Params, len(current))
			for k, v := range current {
				st.bestParams[k] = v
			}
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(experiment.Params, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, st); err != nil {
			return err
		}
	}
	return nil
}
