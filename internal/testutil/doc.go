// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package testutil provides shared test helpers for chunkio packages.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout pattern
// so tests never hang on a missing signal.
//
// [ManualExecutor] queues submitted tasks and runs them only when the test
// steps it, which makes engine scheduling deterministic.
//
// [SpyStream] wraps a reader and records Read and Close calls.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
