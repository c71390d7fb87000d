// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chunkio

import (
	"sync/atomic"
)

// Publisher is a source of chunks following the reactive-streams contract.
type Publisher interface {
	// Subscribe attaches s. s always receives OnSubscribe first.
	Subscribe(s Subscriber)
}

// Subscriber receives the signals of one subscription. Signals are never
// concurrent: OnSubscribe, then zero or more OnNext, then at most one of
// OnError or OnComplete.
//
// OnNext hands over ownership of chunk; the publisher never touches it
// again.
type Subscriber interface {
	OnSubscribe(s Subscription)
	OnNext(chunk []byte)
	OnError(err error)
	OnComplete()
}

// Subscription is the subscriber's handle for demand and cancellation.
// Both methods are safe to call from any goroutine, including from inside
// a signal.
type Subscription interface {
	// Request adds n to the outstanding demand. n <= 0 is a protocol
	// violation that fails the stream.
	Request(n int64)
	// Cancel stops the stream. It is idempotent; no signals follow it.
	Cancel()
}

// enginePublisher adapts an engine to Publisher. It accepts exactly one
// subscriber.
type enginePublisher struct {
	engine     *engine
	subscribed atomic.Bool
}

func newEnginePublisher(e *engine) *enginePublisher {
	return &enginePublisher{engine: e}
}

func (p *enginePublisher) Subscribe(s Subscriber) {
	if s == nil {
		panic("chunkio: nil subscriber")
	}
	if !p.subscribed.CompareAndSwap(false, true) {
		rejectSubscriber(s, newSourceError(KindProtocolViolation, p.engine.name, ErrMultipleSubscription))
		return
	}
	sub := &subscription{engine: p.engine, subscriber: s}
	p.engine.sink = sub
	s.OnSubscribe(sub)
	p.engine.start()
}

// subscription forwards engine signals to the subscriber until it is
// cancelled or a terminal signal went out.
type subscription struct {
	engine     *engine
	subscriber Subscriber
	cancelled  atomic.Bool
	terminated atomic.Bool
}

func (s *subscription) Request(n int64) {
	if s.cancelled.Load() {
		return
	}
	s.engine.request(n)
}

func (s *subscription) Cancel() {
	if s.cancelled.Swap(true) {
		return
	}
	s.engine.cancel()
}

func (s *subscription) emitNext(chunk []byte) bool {
	if s.cancelled.Load() || s.terminated.Load() {
		return false
	}
	s.subscriber.OnNext(chunk)
	return true
}

func (s *subscription) emitError(err error) {
	if s.cancelled.Load() || s.terminated.Swap(true) {
		return
	}
	s.subscriber.OnError(err)
}

func (s *subscription) emitComplete() {
	if s.cancelled.Load() || s.terminated.Swap(true) {
		return
	}
	s.subscriber.OnComplete()
}

// errorPublisher fails every subscriber immediately. It holds no engine and
// never reads anything.
type errorPublisher struct {
	err error
}

// ErrorPublisher returns a Publisher that signals err to every subscriber.
func ErrorPublisher(err error) Publisher { return errorPublisher{err: err} }

func (p errorPublisher) Subscribe(s Subscriber) {
	if s == nil {
		panic("chunkio: nil subscriber")
	}
	rejectSubscriber(s, p.err)
}

func rejectSubscriber(s Subscriber, err error) {
	s.OnSubscribe(inertSubscription{})
	s.OnError(err)
}

type inertSubscription struct{}

func (inertSubscription) Request(int64) {}
func (inertSubscription) Cancel()       {}
