// Package search finds the smallest size for which a sized problem has a solution.
package search

import (
	"context"

	"github.com/benbjohnson/immutable"
	"github.com/cottand/theorem/internal/log"
	"github.com/pkg/errors"
)

var logger = log.DefaultLogger.With("section", "search")

// SolveFunc solves the problem of size n, returning its solution and
// whether it has one
type SolveFunc[T any] func(ctx context.Context, n int) (T, bool, error)

type outcome[T any] struct {
	solution T
	solvable bool
}

// Cache remembers the outcome of every size already solved, with the
// solution found for it. It is persistent: With returns a new Cache and
// leaves the receiver unchanged.
type Cache[T any] struct {
	outcomes *immutable.Map[int, outcome[T]]
}

func NewCache[T any]() Cache[T] {
	return Cache[T]{outcomes: immutable.NewMap[int, outcome[T]](nil)}
}

// Get returns the solution cached for n. hit is false when n was never solved.
func (c Cache[T]) Get(n int) (solution T, solvable bool, hit bool) {
	if c.outcomes == nil {
		return solution, false, false
	}
	o, hit := c.outcomes.Get(n)
	return o.solution, o.solvable, hit
}

func (c Cache[T]) With(n int, solution T, solvable bool) Cache[T] {
	if c.outcomes == nil {
		c = NewCache[T]()
	}
	return Cache[T]{outcomes: c.outcomes.Set(n, outcome[T]{solution: solution, solvable: solvable})}
}

func (c Cache[T]) Len() int {
	if c.outcomes == nil {
		return 0
	}
	return c.outcomes.Len()
}

// Minimal binary searches [lo, hi] for the smallest n that solve accepts,
// assuming that any size above a solvable one is solvable too. It returns
// that size with its solution, and false when hi itself has no solution.
func Minimal[T any](ctx context.Context, lo, hi int, solve SolveFunc[T]) (int, T, bool, error) {
	n, solution, ok, _, err := MinimalCached(ctx, lo, hi, NewCache[T](), solve)
	return n, solution, ok, err
}

// MinimalCached is Minimal consulting and extending cache, so that sizes
// solved by an earlier search are not solved again
func MinimalCached[T any](ctx context.Context, lo, hi int, cache Cache[T], solve SolveFunc[T]) (int, T, bool, Cache[T], error) {
	var zero T
	if lo > hi {
		return 0, zero, false, cache, errors.Errorf("empty search range [%d, %d]", lo, hi)
	}
	try := func(n int) (bool, error) {
		if _, ok, hit := cache.Get(n); hit {
			return ok, nil
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
		solution, ok, err := solve(ctx, n)
		if err != nil {
			return false, errors.Wrapf(err, "solving size %d", n)
		}
		logger.Debug("tried size", "n", n, "solvable", ok)
		if !ok {
			solution = zero
		}
		cache = cache.With(n, solution, ok)
		return ok, nil
	}

	ok, err := try(hi)
	if err != nil || !ok {
		return 0, zero, false, cache, err
	}
	for lo < hi {
		mid := lo + (hi-lo)/2
		ok, err := try(mid)
		if err != nil {
			return 0, zero, false, cache, err
		}
		if ok {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	solution, _, _ := cache.Get(hi)
	return hi, solution, true, cache, nil
}
