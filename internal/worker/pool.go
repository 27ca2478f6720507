// Package worker provides a bounded pool for blocking store calls
package worker

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of simultaneous in-flight store calls. It is
// sized independently of any serving concurrency so slow store round
// trips cannot starve unrelated request handling.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool creates a pool with the given capacity. Capacities below one
// are raised to one.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Do runs fn once a pool slot is free, blocking until then. The context
// bounds only the wait for a slot; fn itself is not cancellable and
// occupies its slot until it returns.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}

// Size returns the pool capacity
func (p *Pool) Size() int {
	return p.size
}
