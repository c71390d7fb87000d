// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chunkio

import (
	"context"
)

// Copy subscribes to src and writes every chunk to dst until the stream
// completes, fails, ctx is done, or dst fails.
//
// Semantic errors from dst:
//   - nil policy: ErrWouldBlock / ErrMore end the copy like any other error.
//   - with policy: PolicyRetry yields and retries the unwritten remainder of
//     the chunk; PolicyReturn ends the copy with the semantic error.
//
// A chunk cannot be un-read, so ending a copy early always cancels src.
// Non-blocking destinations should use a retrying policy such as
// YieldPolicy or BackoffPolicy.
func Copy(ctx context.Context, dst Writer, src Publisher, policy SemanticPolicy) (written int64, err error) {
	return copyChunks(ctx, dst, src, -1, policy)
}

// CopyN is like Copy but stops after n bytes, cancelling src. On return,
// written == n if and only if err == nil. If src completes early the
// error is ErrUnexpectedEOF.
//
// n <= 0 still subscribes and cancels at once, so src releases its resource.
func CopyN(ctx context.Context, dst Writer, src Publisher, n int64, policy SemanticPolicy) (written int64, err error) {
	if n <= 0 {
		cs := newChanSubscriber(1)
		src.Subscribe(cs)
		cs.cancel()
		return 0, nil
	}
	return copyChunks(ctx, dst, src, n, policy)
}

// copyChunks implements Copy and CopyN. limit < 0 means unlimited.
func copyChunks(ctx context.Context, dst Writer, src Publisher, limit int64, policy SemanticPolicy) (written int64, err error) {
	cs := newChanSubscriber(readAheadFor(src))
	src.Subscribe(cs)

	for {
		var ev event
		select {
		case ev = <-cs.events:
		case <-ctx.Done():
			cs.cancel()
			return written, ctx.Err()
		}

		if ev.err != nil {
			return written, ev.err
		}
		if ev.done {
			if limit >= 0 && written < limit {
				return written, ErrUnexpectedEOF
			}
			return written, nil
		}

		chunk := ev.chunk
		if limit >= 0 && int64(len(chunk)) > limit-written {
			chunk = chunk[:limit-written]
		}
		nw, ew := writeAll(dst, chunk, OpSinkWrite, policy)
		written += int64(nw)
		if ew != nil {
			cs.cancel()
			return written, ew
		}
		if limit >= 0 && written == limit {
			cs.cancel()
			return written, nil
		}
		cs.consumed()
	}
}
