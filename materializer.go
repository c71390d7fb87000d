// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chunkio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// MaterializationContext is the capability a descriptor needs to turn
// itself into a running source: the effective buffer policy, the executor
// for blocking work, and a logger.
type MaterializationContext interface {
	BufferPolicy(attrs Attributes) (BufferPolicy, error)
	Executor(attrs Attributes) (Executor, error)
	Logger() *slog.Logger
}

// Materializer is the standard MaterializationContext. It owns one Pool per
// configured dispatcher.
type Materializer struct {
	settings  Settings
	executors map[string]Executor
	pools     []*Pool
	logger    *slog.Logger
}

// MaterializerOption configures a Materializer.
type MaterializerOption func(*Materializer)

// WithLogger sets the logger engines report to. The default discards.
func WithLogger(logger *slog.Logger) MaterializerOption {
	return func(m *Materializer) { m.logger = logger }
}

// WithExecutor registers ex under name, replacing any pool the settings
// would create for it.
func WithExecutor(name string, ex Executor) MaterializerOption {
	return func(m *Materializer) { m.executors[name] = ex }
}

// NewMaterializer validates settings and starts one Pool per dispatcher
// that was not replaced by WithExecutor.
func NewMaterializer(settings Settings, opts ...MaterializerOption) (*Materializer, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	m := &Materializer{
		settings:  settings,
		executors: make(map[string]Executor, len(settings.Dispatchers)),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	for name, d := range settings.Dispatchers {
		if _, ok := m.executors[name]; ok {
			continue
		}
		pool := NewPool(name, d.Workers)
		m.executors[name] = pool
		m.pools = append(m.pools, pool)
	}
	return m, nil
}

// Settings returns the materializer's settings.
func (m *Materializer) Settings() Settings { return m.settings }

func (m *Materializer) BufferPolicy(attrs Attributes) (BufferPolicy, error) {
	return m.settings.bufferPolicy(attrs)
}

func (m *Materializer) Executor(attrs Attributes) (Executor, error) {
	name, ok := attrs.Dispatcher()
	if !ok {
		name = m.settings.DefaultDispatcher
	}
	ex, ok := m.executors[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown dispatcher %q", ErrInvalidConfiguration, name)
	}
	return ex, nil
}

func (m *Materializer) Logger() *slog.Logger { return m.logger }

// Shutdown waits for the pools' in-flight work.
func (m *Materializer) Shutdown(ctx context.Context) error {
	var errs []error
	for _, p := range m.pools {
		if err := p.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
