// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chunkio

import (
	"errors"
	"fmt"
)

// ErrWouldBlock means “no further progress without waiting”.
// ChunkReader in non-blocking mode returns it when no chunk has arrived yet;
// writers handed to Copy may return it to request a retry.
var ErrWouldBlock = errors.New("chunkio: would block")

// ErrMore means “this operation remains active; more completions will follow”.
// Sinks may return it from Write to mark a delivery boundary.
var ErrMore = errors.New("chunkio: expect more")

// Terminal error sentinels. A *SourceError matches the sentinel of its Kind
// via errors.Is, and additionally unwraps to its Cause.
var (
	ErrInvalidConfiguration = errors.New("chunkio: invalid configuration")
	ErrResourceOpen         = errors.New("chunkio: resource open failed")
	ErrRead                 = errors.New("chunkio: read failed")
	ErrCancelled            = errors.New("chunkio: cancelled by subscriber")
	ErrProtocolViolation    = errors.New("chunkio: protocol violation")

	// ErrMultipleSubscription is the cause delivered to every subscriber
	// after the first one.
	ErrMultipleSubscription = errors.New("chunkio: publisher allows only a single subscriber")

	// ErrNonPositiveRequest is the cause delivered when Request is called
	// with n <= 0.
	ErrNonPositiveRequest = errors.New("chunkio: request count must be positive")
)

// ErrorKind classifies a terminal or local failure of a source.
type ErrorKind uint8

const (
	// KindConfiguration is a bad descriptor, rejected before any I/O.
	KindConfiguration ErrorKind = iota
	// KindResourceOpen means the file or stream could not be opened.
	// Zero bytes were transferred.
	KindResourceOpen
	// KindRead is an I/O failure mid-stream; the partial count is kept.
	KindRead
	// KindCancellation is a subscriber-initiated stop. Expected, not a failure.
	KindCancellation
	// KindProtocolViolation covers subscription misuse.
	KindProtocolViolation
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "Configuration"
	case KindResourceOpen:
		return "ResourceOpen"
	case KindRead:
		return "Read"
	case KindCancellation:
		return "Cancellation"
	case KindProtocolViolation:
		return "ProtocolViolation"
	default:
		return fmt.Sprintf("ErrorKind(%d)", uint8(k))
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrInvalidConfiguration
	case KindResourceOpen:
		return ErrResourceOpen
	case KindRead:
		return ErrRead
	case KindCancellation:
		return ErrCancelled
	default:
		return ErrProtocolViolation
	}
}

// SourceError is the structured error produced by sources.
type SourceError struct {
	Kind   ErrorKind
	Source string // descriptor name, may be empty
	Cause  error
}

func (e *SourceError) Error() string {
	prefix := e.Kind.sentinel().Error()
	if e.Source != "" {
		prefix = fmt.Sprintf("%s [%s]", prefix, e.Source)
	}
	if e.Cause != nil && e.Cause != e.Kind.sentinel() {
		return fmt.Sprintf("%s: %v", prefix, e.Cause)
	}
	return prefix
}

func (e *SourceError) Unwrap() error { return e.Cause }

// Is matches the sentinel of e.Kind.
func (e *SourceError) Is(target error) bool { return target == e.Kind.sentinel() }

// IsExpected reports whether the error is part of normal control flow
// (subscriber cancellation) rather than a failure.
func (e *SourceError) IsExpected() bool { return e.Kind == KindCancellation }

func newSourceError(kind ErrorKind, source string, cause error) *SourceError {
	return &SourceError{Kind: kind, Source: source, Cause: cause}
}

// KindOf returns the ErrorKind carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// IsExpected reports whether err is an expected terminal signal, i.e.
// a subscriber cancellation.
func IsExpected(err error) bool {
	var se *SourceError
	if errors.As(err, &se) {
		return se.IsExpected()
	}
	return errors.Is(err, ErrCancelled)
}
