// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chunkio

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/valyala/bytebufferpool"
)

// maxConsecutiveEmptyReads bounds (0, nil) reads before a chunk read gives
// up with io.ErrNoProgress.
const maxConsecutiveEmptyReads = 100

// scratch holds read buffers. A buffer goes back to the pool as soon as
// its bytes are copied into an exact-size chunk; emitted chunks are never
// pooled.
var scratch bytebufferpool.Pool

type engineState uint8

const (
	stateIdle engineState = iota
	stateOpen
	stateReading
	stateAwaitingDemand
	stateDraining
	stateClosed
)

func (s engineState) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateOpen:
		return "Open"
	case stateReading:
		return "Reading"
	case stateAwaitingDemand:
		return "AwaitingDemand"
	case stateDraining:
		return "Draining"
	case stateClosed:
		return "Closed"
	default:
		return "engineState(unknown)"
	}
}

// signalSink receives the engine's downstream signals. emitNext reports
// whether the chunk was delivered.
type signalSink interface {
	emitNext(chunk []byte) bool
	emitError(err error)
	emitComplete()
}

// engine reads a resource in fixed-size chunks, strictly on demand.
//
// All blocking work happens in step, which runs on the executor. At most
// one step is scheduled or running at a time (the scheduled flag), so the
// resource has a single reader and chunks leave in source order. Request
// and cancel only touch counters under mu and schedule a step.
type engine struct {
	name       string
	open       func() (io.ReadCloser, error)
	chunkSize  int
	policy     BufferPolicy
	exec       Executor
	completion *Completion
	logger     *slog.Logger
	sink       signalSink

	// Owned by step; steps never overlap.
	rc        io.ReadCloser
	closeOnce sync.Once
	backoff   Backoff

	mu        sync.Mutex
	state     engineState
	demand    int64
	scheduled bool
	cancelled bool
	protoErr  error
	eof       bool
	readErr   error
	pending   []byte
	emitted   uint64
}

type engineConfig struct {
	name       string
	open       func() (io.ReadCloser, error)
	opened     io.ReadCloser
	chunkSize  int
	policy     BufferPolicy
	exec       Executor
	completion *Completion
	logger     *slog.Logger
}

func newEngine(cfg engineConfig) *engine {
	e := &engine{
		name:       cfg.name,
		open:       cfg.open,
		chunkSize:  cfg.chunkSize,
		policy:     cfg.policy,
		exec:       cfg.exec,
		completion: cfg.completion,
		logger:     cfg.logger.With("source", cfg.name, "run", uuid.NewString()),
		rc:         cfg.opened,
	}
	if e.rc != nil {
		e.state = stateOpen
	}
	return e
}

// start schedules the first step, which opens the resource if needed.
func (e *engine) start() {
	e.mu.Lock()
	run := e.scheduleLocked()
	e.mu.Unlock()
	if run {
		e.exec.Execute(e.step)
	}
}

// request adds n to the outstanding demand, saturating at MaxInt64.
func (e *engine) request(n int64) {
	e.mu.Lock()
	if e.state == stateClosed {
		e.mu.Unlock()
		return
	}
	if n <= 0 {
		if e.protoErr == nil {
			e.protoErr = newSourceError(KindProtocolViolation, e.name,
				fmt.Errorf("%w: got %d", ErrNonPositiveRequest, n))
		}
	} else if e.demand > math.MaxInt64-n {
		e.demand = math.MaxInt64
	} else {
		e.demand += n
	}
	run := e.scheduleLocked()
	e.mu.Unlock()
	if run {
		e.exec.Execute(e.step)
	}
}

// cancel asks the engine to stop. It is observed at the next step boundary.
func (e *engine) cancel() {
	e.mu.Lock()
	if e.state == stateClosed || e.cancelled {
		e.mu.Unlock()
		return
	}
	e.cancelled = true
	run := e.scheduleLocked()
	e.mu.Unlock()
	if run {
		e.exec.Execute(e.step)
	}
}

func (e *engine) scheduleLocked() bool {
	if e.scheduled || e.state == stateClosed {
		return false
	}
	e.scheduled = true
	return true
}

// interruptLocked returns the terminal result for a pending cancellation or
// protocol violation, and whether the subscriber should be signalled.
func (e *engine) interruptLocked() (IOResult, bool, bool) {
	if e.cancelled {
		return Cancelled(e.emitted, newSourceError(KindCancellation, e.name, ErrCancelled)), false, true
	}
	if e.protoErr != nil {
		return Failed(e.emitted, e.protoErr), true, true
	}
	return IOResult{}, false, false
}

// step is one scheduling turn: open if needed, read up to
// min(demand, policy.Max) chunks, emit them, then either finish,
// reschedule or park in AwaitingDemand.
//
// A turn that exhausts demand reads one chunk ahead and holds it as
// pending, so end of data on a chunk boundary completes the stream
// without waiting for demand nobody will send.
func (e *engine) step() {
	e.mu.Lock()
	if e.state == stateClosed {
		e.mu.Unlock()
		return
	}
	if r, signal, ok := e.interruptLocked(); ok {
		e.mu.Unlock()
		e.terminate(r, signal)
		return
	}
	needOpen := e.state == stateIdle
	e.mu.Unlock()

	if needOpen && !e.openResource() {
		return
	}

	batch := e.readBatch()
	e.markDraining()

	for _, chunk := range batch {
		if !e.sink.emitNext(chunk) {
			break
		}
		e.mu.Lock()
		e.emitted += uint64(len(chunk))
		e.mu.Unlock()
	}

	e.mu.Lock()
	if e.needsReadAheadLocked() {
		e.mu.Unlock()
		e.readAhead()
		e.mu.Lock()
	}
	if r, signal, ok := e.interruptLocked(); ok {
		e.mu.Unlock()
		e.terminate(r, signal)
		return
	}
	switch {
	case e.pending == nil && e.readErr != nil:
		r := Failed(e.emitted, newSourceError(KindRead, e.name, e.readErr))
		e.mu.Unlock()
		e.terminate(r, true)
	case e.pending == nil && e.eof:
		r := Succeeded(e.emitted)
		e.mu.Unlock()
		e.terminate(r, true)
	case e.demand > 0:
		// Still scheduled; yield the worker before the next batch.
		e.mu.Unlock()
		e.exec.Execute(e.step)
	default:
		if e.state != stateDraining {
			e.state = stateAwaitingDemand
		}
		e.scheduled = false
		e.mu.Unlock()
	}
}

func (e *engine) openResource() bool {
	rc, err := e.callOpen()
	if err != nil {
		e.logger.Warn("open failed", "error", err)
		e.terminate(Failed(0, newSourceError(KindResourceOpen, e.name, err)), true)
		return false
	}
	e.rc = rc
	e.mu.Lock()
	e.state = stateOpen
	e.mu.Unlock()
	e.logger.Debug("resource opened")
	return true
}

func (e *engine) callOpen() (rc io.ReadCloser, err error) {
	defer func() {
		if p := recover(); p != nil {
			rc, err = nil, fmt.Errorf("open panicked: %v", p)
		}
	}()
	rc, err = e.open()
	if err == nil && rc == nil {
		err = fmt.Errorf("open returned a nil stream")
	}
	return rc, err
}

// readBatch reserves one unit of demand per chunk before reading it. A
// pending chunk goes out first.
func (e *engine) readBatch() [][]byte {
	var batch [][]byte
	for {
		e.mu.Lock()
		if e.cancelled || e.protoErr != nil || e.demand == 0 || len(batch) >= e.policy.Max {
			e.mu.Unlock()
			return batch
		}
		if e.pending != nil {
			batch = append(batch, e.pending)
			e.pending = nil
			e.demand--
			e.mu.Unlock()
			continue
		}
		if e.eof || e.readErr != nil {
			e.mu.Unlock()
			return batch
		}
		e.demand--
		e.state = stateReading
		e.mu.Unlock()

		chunk, err := e.readChunk()
		if chunk != nil {
			batch = append(batch, chunk)
		}

		e.mu.Lock()
		if chunk == nil && e.demand < math.MaxInt64 {
			// Nothing came out of this read; give the reservation back.
			e.demand++
		}
		e.recordLocked(err)
		e.mu.Unlock()
		if err != nil {
			return batch
		}
	}
}

// needsReadAheadLocked reports whether demand ran out with the stream still
// open and nothing held back.
func (e *engine) needsReadAheadLocked() bool {
	return e.demand == 0 && e.pending == nil && !e.eof && e.readErr == nil &&
		!e.cancelled && e.protoErr == nil
}

// readAhead reads one chunk without demand and holds it as pending.
func (e *engine) readAhead() {
	e.mu.Lock()
	e.state = stateReading
	e.mu.Unlock()

	chunk, err := e.readChunk()

	e.mu.Lock()
	e.pending = chunk
	e.recordLocked(err)
	e.mu.Unlock()
	e.markDraining()
}

func (e *engine) recordLocked(err error) {
	switch {
	case err == nil:
	case err == io.EOF:
		e.eof = true
	default:
		e.readErr = err
	}
}

func (e *engine) markDraining() {
	e.mu.Lock()
	if e.eof || e.readErr != nil {
		e.state = stateDraining
	}
	e.mu.Unlock()
}

// readChunk fills up to chunkSize bytes. It returns a non-nil chunk when any
// bytes were read, together with io.EOF at end of data or the read error.
// ErrWouldBlock from the stream is absorbed with backoff, checking for
// cancellation between waits.
func (e *engine) readChunk() ([]byte, error) {
	buf := scratch.Get()
	defer scratch.Put(buf)
	if cap(buf.B) < e.chunkSize {
		buf.B = make([]byte, e.chunkSize)
	}
	p := buf.B[:e.chunkSize]

	n := 0
	empty := 0
	var err error
	for n < len(p) && err == nil {
		var nr int
		nr, err = e.rc.Read(p[n:])
		n += nr
		switch {
		case err == nil && nr == 0:
			empty++
			if empty >= maxConsecutiveEmptyReads {
				err = ErrNoProgress
			}
		case IsWouldBlock(err):
			if e.isCancelled() {
				return e.copyOut(p[:n]), nil
			}
			e.backoff.Wait()
			err = nil
		case nr > 0:
			empty = 0
			e.backoff.Reset()
		}
	}
	return e.copyOut(p[:n]), err
}

func (e *engine) copyOut(p []byte) []byte {
	if len(p) == 0 {
		return nil
	}
	chunk := make([]byte, len(p))
	copy(chunk, p)
	return chunk
}

func (e *engine) isCancelled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}

// terminate closes the resource, resolves the completion and, if signal is
// set, sends the terminal signal. Only the first call has any effect.
func (e *engine) terminate(r IOResult, signal bool) {
	e.mu.Lock()
	if e.state == stateClosed {
		e.mu.Unlock()
		return
	}
	from := e.state
	e.state = stateClosed
	e.scheduled = false
	e.mu.Unlock()

	if err := e.closeResource(); err != nil {
		e.logger.Warn("close failed", "error", err)
	}
	e.completion.Resolve(r)
	e.logger.Debug("source terminated", "status", r.Status.String(), "bytes", r.Count, "from", from.String())

	if !signal {
		return
	}
	switch r.Status {
	case StatusSuccess:
		e.sink.emitComplete()
	case StatusFailure:
		e.sink.emitError(r.Err)
	}
}

func (e *engine) closeResource() (err error) {
	e.closeOnce.Do(func() {
		if e.rc != nil {
			err = e.rc.Close()
			e.logger.Debug("resource closed")
		}
	})
	return err
}
