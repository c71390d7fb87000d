// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chunkio

import "errors"

// Outcome is how a write or read step ended, as seen by a sink deciding
// whether to retry.
type Outcome uint8

const (
	// OutcomeFailure covers every error that is not ErrWouldBlock or
	// ErrMore, terminal source errors and cancellation included.
	OutcomeFailure Outcome = iota
	// OutcomeOK is a nil error.
	OutcomeOK
	// OutcomeWouldBlock means nothing could be done yet.
	OutcomeWouldBlock
	// OutcomeMore means the step made progress and a boundary was reached.
	OutcomeMore
)

var outcomeNames = [...]string{
	OutcomeFailure:    "Failure",
	OutcomeOK:         "OK",
	OutcomeWouldBlock: "WouldBlock",
	OutcomeMore:       "More",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return outcomeNames[OutcomeFailure]
}

// Classify maps err to an Outcome. Wrapped ErrWouldBlock and ErrMore
// classify like the bare sentinels; use IsExpected to single out
// cancellation among failures.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrWouldBlock):
		return OutcomeWouldBlock
	case errors.Is(err, ErrMore):
		return OutcomeMore
	default:
		return OutcomeFailure
	}
}

// IsWouldBlock reports whether err is or wraps ErrWouldBlock.
func IsWouldBlock(err error) bool { return Classify(err) == OutcomeWouldBlock }

// IsMore reports whether err is or wraps ErrMore.
func IsMore(err error) bool { return Classify(err) == OutcomeMore }

// IsSemantic reports whether err is ErrWouldBlock or ErrMore, wrapped or not.
func IsSemantic(err error) bool {
	o := Classify(err)
	return o == OutcomeWouldBlock || o == OutcomeMore
}

// IsProgress reports whether a step that returned err counts as progress:
// nil and ErrMore do, ErrWouldBlock and failures do not.
func IsProgress(err error) bool {
	o := Classify(err)
	return o == OutcomeOK || o == OutcomeMore
}
