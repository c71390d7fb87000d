// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package chunkio turns blocking byte sources (a file, or a stream opened
// by a factory) into demand-driven publishers of fixed-size chunks, with a
// side-channel Future that resolves exactly once to the run's IOResult.
//
// A SourceDescriptor is an immutable blueprint. Materialize starts one run:
//
//	src, _ := chunkio.FromFile("data.bin", chunkio.DefaultChunkSize)
//	pub, future := src.Materialize(materializer)
//	n, err := chunkio.Copy(ctx, dst, pub, chunkio.YieldPolicy{})
//	result, _ := future.Wait(ctx)
//
// Flow control follows reactive streams: the engine reads only when the
// subscriber has outstanding demand, one read at a time, on the executor
// selected by the source's dispatcher attribute. Cancellation is
// cooperative and still closes the resource and resolves the Future, with
// StatusCancelled and the bytes delivered so far.
//
// Extended result semantics for sinks
//   - ErrWouldBlock: the destination cannot accept bytes now; retry later.
//   - ErrMore: the destination made progress and marks a boundary.
//
// SemanticPolicy decides whether Copy retries or returns on these. A
// ChunkReader in non-blocking mode returns ErrWouldBlock when no chunk has
// arrived yet.
package chunkio
