// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chunkio

import (
	"context"
	"errors"
	"sync"
)

// DefaultReadAhead is the number of chunks Copy and ChunkReader keep
// requested ahead of consumption when the publisher carries no buffer
// policy of its own.
const DefaultReadAhead = 16

// ErrReaderClosed is returned by ChunkReader.Read after Close.
var ErrReaderClosed = errors.New("chunkio: chunk reader closed")

type event struct {
	chunk []byte
	err   error
	done  bool
}

// chanSubscriber turns signals into events on a buffered channel. Demand
// is kept at readAhead minus the events not yet consumed, so signal
// delivery never blocks the publisher.
type chanSubscriber struct {
	readAhead int64
	events    chan event

	mu        sync.Mutex
	sub       Subscription
	cancelled bool
}

func newChanSubscriber(readAhead int) *chanSubscriber {
	if readAhead <= 0 {
		readAhead = DefaultReadAhead
	}
	return &chanSubscriber{
		readAhead: int64(readAhead),
		events:    make(chan event, readAhead+1),
	}
}

func (c *chanSubscriber) OnSubscribe(s Subscription) {
	c.mu.Lock()
	if c.sub != nil {
		c.mu.Unlock()
		s.Cancel()
		return
	}
	c.sub = s
	cancelled := c.cancelled
	c.mu.Unlock()
	if cancelled {
		s.Cancel()
		return
	}
	s.Request(c.readAhead)
}

func (c *chanSubscriber) OnNext(chunk []byte) { c.events <- event{chunk: chunk} }

func (c *chanSubscriber) OnError(err error) { c.events <- event{err: err} }

func (c *chanSubscriber) OnComplete() { c.events <- event{done: true} }

// consumed replaces the demand used by one chunk.
func (c *chanSubscriber) consumed() {
	c.mu.Lock()
	s := c.sub
	c.mu.Unlock()
	if s != nil {
		s.Request(1)
	}
}

func (c *chanSubscriber) cancel() {
	c.mu.Lock()
	c.cancelled = true
	s := c.sub
	c.mu.Unlock()
	if s != nil {
		s.Cancel()
	}
}

// readAheadFor returns the Initial of pub's buffer policy, or
// DefaultReadAhead for publishers not backed by an engine.
func readAheadFor(pub Publisher) int {
	if p, ok := pub.(*enginePublisher); ok && p.engine.policy.Initial > 0 {
		return p.engine.policy.Initial
	}
	return DefaultReadAhead
}

// ChunkReader exposes a Publisher as an io.ReadCloser. Chunks are copied
// out in order; a chunk larger than the caller's buffer is split across
// Read calls.
//
// In non-blocking mode Read returns (0, ErrWouldBlock) when no chunk has
// arrived yet instead of waiting. Close cancels the subscription.
type ChunkReader struct {
	ctx         context.Context
	cs          *chanSubscriber
	nonBlocking bool
	cur         []byte
	err         error
}

// ChunkReaderOption configures a ChunkReader.
type ChunkReaderOption func(*ChunkReader)

// NonBlocking makes Read return ErrWouldBlock instead of waiting.
func NonBlocking() ChunkReaderOption {
	return func(r *ChunkReader) { r.nonBlocking = true }
}

// ReadAhead sets how many chunks stay requested ahead of consumption,
// overriding the source's buffer policy.
func ReadAhead(n int) ChunkReaderOption {
	return func(r *ChunkReader) { r.cs = newChanSubscriber(n) }
}

// NewChunkReader subscribes to pub. Blocking reads give up with ctx.Err()
// when ctx is done, cancelling the subscription.
func NewChunkReader(ctx context.Context, pub Publisher, opts ...ChunkReaderOption) *ChunkReader {
	r := &ChunkReader{ctx: ctx}
	for _, opt := range opts {
		opt(r)
	}
	if r.cs == nil {
		r.cs = newChanSubscriber(readAheadFor(pub))
	}
	pub.Subscribe(r.cs)
	return r
}

func (r *ChunkReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(r.cur) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		ev, err := r.next()
		if err != nil {
			return 0, err
		}
		switch {
		case ev.err != nil:
			r.err = ev.err
		case ev.done:
			r.err = EOF
		default:
			r.cur = ev.chunk
			r.cs.consumed()
		}
	}
	n := copy(p, r.cur)
	r.cur = r.cur[n:]
	return n, nil
}

func (r *ChunkReader) next() (event, error) {
	if r.nonBlocking {
		select {
		case ev := <-r.cs.events:
			return ev, nil
		default:
			return event{}, ErrWouldBlock
		}
	}
	select {
	case ev := <-r.cs.events:
		return ev, nil
	case <-r.ctx.Done():
		r.cs.cancel()
		r.err = r.ctx.Err()
		return event{}, r.err
	}
}

// Close cancels the subscription. Buffered chunks are dropped.
func (r *ChunkReader) Close() error {
	r.cs.cancel()
	r.cur = nil
	if r.err == nil || r.err == EOF {
		r.err = ErrReaderClosed
	}
	return nil
}
