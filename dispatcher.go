// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chunkio

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Executor runs isolated units of work. Engines submit their blocking
// steps (open, read, close) here, one step at a time.
//
// Execute must not run task synchronously on the caller's goroutine when
// the caller holds locks; Pool never does.
type Executor interface {
	Execute(task func())
}

// Pool is a named, bounded Executor. At most Workers tasks run at once;
// the rest wait for a slot. Slow storage behind one pool cannot starve
// work running on another.
type Pool struct {
	name string
	sem  *semaphore.Weighted
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewPool returns a pool running at most workers tasks concurrently.
func NewPool(name string, workers int) *Pool {
	if workers <= 0 {
		panic(fmt.Sprintf("chunkio: pool %q needs at least one worker", name))
	}
	return &Pool{name: name, sem: semaphore.NewWeighted(int64(workers))}
}

// Name returns the pool name.
func (p *Pool) Name() string { return p.name }

// Execute schedules task. Tasks submitted after Shutdown still run, outside
// the worker bound, so engines can close their resources and resolve.
func (p *Pool) Execute(task func()) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		go task()
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		// Acquire with a background context cannot fail.
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)
		task()
	}()
}

// Shutdown stops accepting tasks and waits for running ones, or for ctx.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pool %s shutdown: %w", p.name, ctx.Err())
	}
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(task func())

func (f ExecutorFunc) Execute(task func()) { f(task) }
