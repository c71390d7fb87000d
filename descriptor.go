// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chunkio

import (
	"fmt"
	"io"
	"os"
)

// Origin kinds of a SourceDescriptor.
const (
	originFile   = "fileSource"
	originStream = "inputStreamSource"
)

// StreamFactory opens the stream a stream-backed source reads from. It is
// called once per materialization.
type StreamFactory func() (io.ReadCloser, error)

// SourceDescriptor is an immutable blueprint of a chunk source: where bytes
// come from, the chunk size, attributes and the outlet shape. It performs
// no I/O until Materialize.
type SourceDescriptor struct {
	path      string
	factory   StreamFactory
	chunkSize int
	attrs     Attributes
	shape     Shape
}

// FromFile describes a source that reads the file at path. The file is
// opened inside the engine when the publisher is subscribed, so open
// failures arrive through OnError and the Future.
func FromFile(path string, chunkSize int) (*SourceDescriptor, error) {
	if err := validateChunkSize(originFile, chunkSize); err != nil {
		return nil, err
	}
	return &SourceDescriptor{
		path:      path,
		chunkSize: chunkSize,
		attrs:     defaultSourceAttributes(originFile),
		shape:     defaultShape(originFile),
	}, nil
}

// FromStream describes a source that reads the stream returned by factory.
// The factory runs eagerly in Materialize.
func FromStream(factory StreamFactory, chunkSize int) (*SourceDescriptor, error) {
	if err := validateChunkSize(originStream, chunkSize); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, newSourceError(KindConfiguration, originStream, fmt.Errorf("nil stream factory"))
	}
	return &SourceDescriptor{
		factory:   factory,
		chunkSize: chunkSize,
		attrs:     defaultSourceAttributes(originStream),
		shape:     defaultShape(originStream),
	}, nil
}

func validateChunkSize(name string, chunkSize int) error {
	if chunkSize <= 0 {
		return newSourceError(KindConfiguration, name,
			fmt.Errorf("chunk size must be greater than 0, got %d", chunkSize))
	}
	return nil
}

func defaultSourceAttributes(name string) Attributes {
	return NewAttributes(NameAttribute{Name: name}, DispatcherAttribute{Name: DefaultIODispatcher})
}

// Attributes returns the descriptor's attributes.
func (d *SourceDescriptor) Attributes() Attributes { return d.attrs }

// Shape returns the descriptor's outlet shape.
func (d *SourceDescriptor) Shape() Shape { return d.shape }

// ChunkSize returns the configured chunk size.
func (d *SourceDescriptor) ChunkSize() int { return d.chunkSize }

// Name returns the effective stage name.
func (d *SourceDescriptor) Name() string {
	if d.factory != nil {
		return d.attrs.NameOrDefault(originStream)
	}
	return d.attrs.NameOrDefault(originFile)
}

// WithAttributes returns a copy whose attributes are d's merged with attrs
// (attrs wins) and whose shape follows the merged name. d is unchanged.
func (d *SourceDescriptor) WithAttributes(attrs Attributes) *SourceDescriptor {
	c := *d
	c.attrs = d.attrs.And(attrs)
	c.shape = amendShape(d.shape, c.attrs)
	return &c
}

// Named is shorthand for WithAttributes(Named(name)).
func (d *SourceDescriptor) Named(name string) *SourceDescriptor {
	return d.WithAttributes(Named(name))
}

// NewInstance returns a copy of d with the given shape.
func (d *SourceDescriptor) NewInstance(shape Shape) *SourceDescriptor {
	c := *d
	c.shape = shape
	return &c
}

// Materialize starts one run of the source and returns its publisher and
// the Future of its terminal result.
//
// For stream sources the factory runs here. If it fails or panics, no
// engine is created: the Future is already resolved with a ResourceOpen
// failure and the returned publisher signals that same error to any
// subscriber. A stream that was opened but never subscribed stays open
// until a subscriber cancels or drains it.
func (d *SourceDescriptor) Materialize(mc MaterializationContext) (Publisher, *Future) {
	name := d.Name()
	exec, err := mc.Executor(d.attrs)
	if err != nil {
		err = newSourceError(KindConfiguration, name, err)
		return ErrorPublisher(err), resolvedFuture(Failed(0, err))
	}
	policy, err := mc.BufferPolicy(d.attrs)
	if err != nil {
		err = newSourceError(KindConfiguration, name, err)
		return ErrorPublisher(err), resolvedFuture(Failed(0, err))
	}

	cfg := engineConfig{
		name:       name,
		chunkSize:  d.chunkSize,
		policy:     policy,
		exec:       exec,
		completion: NewCompletion(),
		logger:     mc.Logger(),
	}

	if d.factory != nil {
		rc, err := callFactory(d.factory)
		if err != nil {
			err = newSourceError(KindResourceOpen, name, err)
			mc.Logger().Warn("stream factory failed", "source", name, "error", err)
			cfg.completion.Resolve(Failed(0, err))
			return ErrorPublisher(err), cfg.completion.Future()
		}
		cfg.opened = rc
	} else {
		path := d.path
		cfg.open = func() (io.ReadCloser, error) { return os.Open(path) }
	}

	e := newEngine(cfg)
	return newEnginePublisher(e), cfg.completion.Future()
}

func callFactory(f StreamFactory) (rc io.ReadCloser, err error) {
	defer func() {
		if p := recover(); p != nil {
			rc, err = nil, fmt.Errorf("stream factory panicked: %v", p)
		}
	}()
	rc, err = f()
	switch {
	case err != nil && rc != nil:
		_ = rc.Close()
		rc = nil
	case err == nil && rc == nil:
		err = fmt.Errorf("stream factory returned a nil stream")
	}
	return rc, err
}
