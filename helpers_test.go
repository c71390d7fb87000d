// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chunkio_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/chunkio"
	"code.hybscloud.com/chunkio/internal/testutil"
)

const waitTimeout = 5 * time.Second

// recorder is a Subscriber that records every signal it receives.
type recorder struct {
	initial int64
	onNext  func(r *recorder, chunk []byte)

	mu        sync.Mutex
	sub       chunkio.Subscription
	subscribe int
	chunks    [][]byte
	err       error
	completed bool
	terminals int
	late      int
	done      chan struct{}
}

func newRecorder(initial int64) *recorder {
	return &recorder{initial: initial, done: make(chan struct{})}
}

func (r *recorder) OnSubscribe(s chunkio.Subscription) {
	r.mu.Lock()
	r.sub = s
	r.subscribe++
	r.mu.Unlock()
	if r.initial > 0 {
		s.Request(r.initial)
	}
}

func (r *recorder) OnNext(chunk []byte) {
	r.mu.Lock()
	if r.terminals > 0 {
		r.late++
	}
	r.chunks = append(r.chunks, chunk)
	hook := r.onNext
	r.mu.Unlock()
	if hook != nil {
		hook(r, chunk)
	}
}

func (r *recorder) OnError(err error) {
	r.terminal(func() { r.err = err })
}

func (r *recorder) OnComplete() {
	r.terminal(func() { r.completed = true })
}

func (r *recorder) terminal(set func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.terminals > 0 {
		r.late++
		r.terminals++
		return
	}
	set()
	r.terminals++
	close(r.done)
}

func (r *recorder) subscription() chunkio.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sub
}

func (r *recorder) data() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return bytes.Join(r.chunks, nil)
}

func (r *recorder) chunkCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.chunks)
}

func (r *recorder) snapshot() (chunks [][]byte, err error, completed bool, terminals, late int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.chunks...), r.err, r.completed, r.terminals, r.late
}

// manualMaterializer returns a materializer whose default dispatcher is a
// ManualExecutor, so the test decides when engine steps run.
func manualMaterializer(t *testing.T, opts ...chunkio.MaterializerOption) (*chunkio.Materializer, *testutil.ManualExecutor) {
	t.Helper()
	exec := &testutil.ManualExecutor{}
	opts = append([]chunkio.MaterializerOption{chunkio.WithExecutor(chunkio.DefaultIODispatcher, exec)}, opts...)
	m, err := chunkio.NewMaterializer(chunkio.DefaultSettings(), opts...)
	if err != nil {
		t.Fatalf("NewMaterializer: %v", err)
	}
	return m, exec
}

// poolMaterializer returns a materializer running real pools, shut down at
// test cleanup.
func poolMaterializer(t *testing.T) *chunkio.Materializer {
	t.Helper()
	m, err := chunkio.NewMaterializer(chunkio.DefaultSettings())
	if err != nil {
		t.Fatalf("NewMaterializer: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		if err := m.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})
	return m
}

// spySource describes a stream source over data and returns the spy that
// the factory hands out.
func spySource(t *testing.T, data []byte, chunkSize int) (*chunkio.SourceDescriptor, *testutil.SpyStream) {
	t.Helper()
	spy := &testutil.SpyStream{R: bytes.NewReader(data)}
	src, err := chunkio.FromStream(func() (io.ReadCloser, error) { return spy, nil }, chunkSize)
	if err != nil {
		t.Fatalf("FromStream: %v", err)
	}
	return src, spy
}

// pattern returns n deterministic bytes.
func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/251)
	}
	return b
}

func mustResult(t *testing.T, f *chunkio.Future) chunkio.IOResult {
	t.Helper()
	testutil.RequireClosed(t, f.Done(), waitTimeout, "future not resolved")
	r, ok := f.Result()
	if !ok {
		t.Fatal("Result() not ok after Done")
	}
	return r
}
