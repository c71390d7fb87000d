// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chunkio

// Status is the terminal state of one materialization.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "Success"
	case StatusFailure:
		return "Failure"
	case StatusCancelled:
		return "Cancelled"
	default:
		return "Status(unknown)"
	}
}

// IOResult is the terminal result of one materialization: how many bytes
// were delivered downstream and how the run ended.
//
// For StatusFailure, Err is the same error value delivered to the
// subscriber's OnError. For StatusCancelled, Err matches ErrCancelled and
// Count holds the bytes delivered before cancellation was observed.
type IOResult struct {
	Count  uint64
	Status Status
	Err    error
}

// Succeeded returns a successful result.
func Succeeded(count uint64) IOResult { return IOResult{Count: count, Status: StatusSuccess} }

// Failed returns a failed result.
func Failed(count uint64, err error) IOResult {
	return IOResult{Count: count, Status: StatusFailure, Err: err}
}

// Cancelled returns a cancelled result.
func Cancelled(count uint64, err error) IOResult {
	return IOResult{Count: count, Status: StatusCancelled, Err: err}
}

func (r IOResult) WasSuccessful() bool { return r.Status == StatusSuccess }

func (r IOResult) WasCancelled() bool { return r.Status == StatusCancelled }

func (r IOResult) WasFailed() bool { return r.Status == StatusFailure }
