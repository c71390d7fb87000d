// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chunkio

import (
	"context"
	"sync/atomic"
)

// Completion is a single-assignment slot for one IOResult.
//
// The first Resolve wins; later calls are discarded. This is what makes
// terminal delivery exactly-once when success, failure and cancellation
// race each other.
type Completion struct {
	set    atomic.Bool
	result IOResult
	done   chan struct{}
}

// NewCompletion returns an unresolved Completion.
func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Resolve stores r if nothing was stored before and reports whether it did.
func (c *Completion) Resolve(r IOResult) bool {
	if !c.set.CompareAndSwap(false, true) {
		return false
	}
	c.result = r
	close(c.done)
	return true
}

// Future returns the read-only side of c.
func (c *Completion) Future() *Future { return &Future{c: c} }

// Future is a read-only handle on a Completion. It can be awaited
// independently of consuming the chunk stream.
type Future struct {
	c *Completion
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.c.done }

// Result returns the result and true once resolved, or the zero IOResult
// and false before that.
func (f *Future) Result() (IOResult, bool) {
	select {
	case <-f.c.done:
		return f.c.result, true
	default:
		return IOResult{}, false
	}
}

// Wait blocks until the result is available or ctx is done. A caller-level
// timeout is expressed by a ctx deadline followed by cancelling the
// subscription.
func (f *Future) Wait(ctx context.Context) (IOResult, error) {
	select {
	case <-f.c.done:
		return f.c.result, nil
	case <-ctx.Done():
		return IOResult{}, ctx.Err()
	}
}

// resolvedFuture returns a Future that already holds r.
func resolvedFuture(r IOResult) *Future {
	c := NewCompletion()
	c.Resolve(r)
	return c.Future()
}
