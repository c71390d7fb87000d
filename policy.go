// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chunkio

import (
	"io"
	"runtime"
	"time"
)

// Op names the write site that reported ErrWouldBlock or ErrMore.
type Op uint8

const (
	// OpSinkWrite is Copy writing a chunk to its destination.
	OpSinkWrite Op = iota

	OpTeeWriterPrimaryWrite
	OpTeeWriterTeeWrite
)

func (op Op) String() string {
	switch op {
	case OpSinkWrite:
		return "SinkWrite"
	case OpTeeWriterPrimaryWrite:
		return "TeeWriterPrimaryWrite"
	case OpTeeWriterTeeWrite:
		return "TeeWriterTeeWrite"
	default:
		return "Op(unknown)"
	}
}

// PolicyAction tells a sink whether it should return to the caller or
// attempt the write again.
type PolicyAction uint8

const (
	// PolicyReturn hands the semantic error back to the caller.
	PolicyReturn PolicyAction = iota

	// PolicyRetry yields and writes the remainder again.
	PolicyRetry
)

// SemanticPolicy customizes how a sink reacts to semantic errors returned
// by a destination writer.
//
//   - OnWouldBlock and OnMore see only their own error.
//   - If PolicyRetry is returned, the sink calls Yield(op) and then retries
//     the unwritten remainder of the chunk.
//   - If Yield(op) does not actually wait, the sink may spin.
type SemanticPolicy interface {
	Yield(op Op)
	OnWouldBlock(op Op) PolicyAction
	OnMore(op Op) PolicyAction
}

// PolicyFunc lets callers inject behavior without defining a type.
//
// Nil fields default to runtime.Gosched for Yield and PolicyReturn for the
// decisions.
type PolicyFunc struct {
	YieldFunc      func(op Op)
	WouldBlockFunc func(op Op) PolicyAction
	MoreFunc       func(op Op) PolicyAction
}

func (p PolicyFunc) Yield(op Op) {
	if p.YieldFunc != nil {
		p.YieldFunc(op)
		return
	}
	runtime.Gosched()
}

func (p PolicyFunc) OnWouldBlock(op Op) PolicyAction {
	if p.WouldBlockFunc != nil {
		return p.WouldBlockFunc(op)
	}
	return PolicyReturn
}

func (p PolicyFunc) OnMore(op Op) PolicyAction {
	if p.MoreFunc != nil {
		return p.MoreFunc(op)
	}
	return PolicyReturn
}

// ReturnPolicy never waits and never retries.
type ReturnPolicy struct{}

func (ReturnPolicy) Yield(Op) {}

func (ReturnPolicy) OnWouldBlock(Op) PolicyAction { return PolicyReturn }

func (ReturnPolicy) OnMore(Op) PolicyAction { return PolicyReturn }

// YieldPolicy retries on ErrWouldBlock and returns on ErrMore, treating
// writer-side ErrMore as a delivery boundary.
type YieldPolicy struct {
	// YieldFunc runs before each retry. Default: runtime.Gosched.
	YieldFunc func(op Op)
}

func (p YieldPolicy) Yield(op Op) {
	if p.YieldFunc != nil {
		p.YieldFunc(op)
		return
	}
	runtime.Gosched()
}

func (YieldPolicy) OnWouldBlock(Op) PolicyAction { return PolicyRetry }

func (YieldPolicy) OnMore(Op) PolicyAction { return PolicyReturn }

// BackoffPolicy retries on ErrWouldBlock, sleeping with a Backoff between
// attempts, and returns on ErrMore. Not safe for concurrent use.
type BackoffPolicy struct {
	b Backoff
}

// NewBackoffPolicy returns a BackoffPolicy. Zero durations select
// DefaultBackoffBase and DefaultBackoffMax.
func NewBackoffPolicy(base, max time.Duration) *BackoffPolicy {
	p := &BackoffPolicy{}
	p.b.SetBase(base)
	p.b.SetMax(max)
	return p
}

func (p *BackoffPolicy) Yield(Op) { p.b.Wait() }

func (p *BackoffPolicy) OnWouldBlock(Op) PolicyAction { return PolicyRetry }

func (p *BackoffPolicy) OnMore(Op) PolicyAction { return PolicyReturn }

// Reset drops accumulated backoff after progress.
func (p *BackoffPolicy) Reset() { p.b.Reset() }

// writeAll writes p to w. A nil policy returns on the first error. With a
// policy, ErrWouldBlock and ErrMore (wrapped or not) are retried or
// returned per its decision; any other error returns at once. Partial
// progress is always counted. Policies with a Reset method are reset after
// every write that made progress.
func writeAll(w Writer, p []byte, op Op, policy SemanticPolicy) (int, error) {
	resetter, _ := policy.(interface{ Reset() })
	off := 0
	for off < len(p) {
		nw, ew := w.Write(p[off:])
		if nw > 0 {
			off += nw
			if resetter != nil && IsProgress(ew) {
				resetter.Reset()
			}
		}
		if ew == nil {
			if nw == 0 {
				return off, io.ErrShortWrite
			}
			continue
		}
		if policy == nil || !IsSemantic(ew) {
			return off, ew
		}
		action := PolicyReturn
		switch Classify(ew) {
		case OutcomeWouldBlock:
			action = policy.OnWouldBlock(op)
		case OutcomeMore:
			action = policy.OnMore(op)
		}
		if action != PolicyRetry {
			return off, ew
		}
		policy.Yield(op)
	}
	return off, nil
}
