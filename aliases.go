// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chunkio

import (
	"io"
)

// Reader is the contract a stream-backed source reads through.
//
// Read may return (0, nil) occasionally; the engine tolerates a bounded
// number of such calls per chunk before failing with ErrNoProgress. A
// Reader may also return ErrWouldBlock, which the engine absorbs with
// backoff.
//
// Reader is an alias of io.Reader.
type Reader = io.Reader

// Writer is the destination contract of Copy and the tee helpers.
//
// Writer may return ErrWouldBlock or ErrMore with partial progress; see
// SemanticPolicy.
//
// Writer is an alias of io.Writer.
type Writer = io.Writer

// ReadCloser is what a StreamFactory returns. Close is called exactly once
// by the engine that owns the stream.
//
// ReadCloser is an alias of io.ReadCloser.
type ReadCloser = io.ReadCloser

var (
	// EOF ends a source successfully.
	EOF = io.EOF

	// ErrNoProgress fails a read after too many consecutive (0, nil) reads.
	ErrNoProgress = io.ErrNoProgress

	// ErrShortWrite reports a writer that accepted fewer bytes than given
	// without an error.
	ErrShortWrite = io.ErrShortWrite

	// ErrUnexpectedEOF is returned by CopyN when the source ends before n
	// bytes were written.
	ErrUnexpectedEOF = io.ErrUnexpectedEOF
)
