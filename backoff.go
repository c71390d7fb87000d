// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chunkio

import "time"

const (
	// DefaultBackoffBase is the base wait (500µs) between retries against a
	// stream or sink that reported ErrWouldBlock.
	DefaultBackoffBase = 500 * time.Microsecond

	// DefaultBackoffMax is the default ceiling for one wait (100ms). It also
	// bounds how long an engine takes to notice cancellation while its
	// stream keeps reporting ErrWouldBlock.
	DefaultBackoffMax = 100 * time.Millisecond
)

// Backoff paces retries against a stream or sink that keeps reporting
// ErrWouldBlock. Engines use it when a read stalls mid-chunk, and
// BackoffPolicy uses it for sinks.
//
// Waits grow linearly in tiers: tier k holds k waits of k × base each,
// capped at max. Each wait is spread by up to ±12.5% so engines sharing a
// slow device drift apart. The zero value uses DefaultBackoffBase and
// DefaultBackoffMax.
type Backoff struct {
	tier  int // current tier, 0 until the first Wait
	spent int // waits taken in this tier
	base  time.Duration
	max   time.Duration
	rng   uint64 // xorshift state
}

// Wait sleeps for the current step, min(base × n, max) ± 12.5% jitter,
// then advances the progression.
func (b *Backoff) Wait() {
	if b.tier == 0 {
		b.tier = 1
	}
	if b.rng == 0 {
		b.rng = uint64(time.Now().UnixNano()) | 1
	}
	time.Sleep(b.jitter(b.Duration()))

	b.spent++
	if b.spent >= b.tier {
		b.tier, b.spent = b.tier+1, 0
	}
}

// jitter spreads d by up to ±12.5% using an xorshift generator.
func (b *Backoff) jitter(d time.Duration) time.Duration {
	x := b.rng
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	b.rng = x
	r := int64(x>>32)%256 - 128
	return d + time.Duration(int64(d)*r/1024)
}

// SetBase sets the duration of block 1 and the linear step.
func (b *Backoff) SetBase(d time.Duration) { b.base = d }

// SetMax caps a single wait.
func (b *Backoff) SetMax(d time.Duration) { b.max = d }

// Reset goes back to block 1 after progress was made.
func (b *Backoff) Reset() { b.tier, b.spent = 0, 0 }

// Block returns the current progression tier, starting at 1.
func (b *Backoff) Block() int { return max(b.tier, 1) }

// Duration returns the current wait without jitter. Unset base and max fall
// back to DefaultBackoffBase and DefaultBackoffMax.
func (b *Backoff) Duration() time.Duration {
	step, ceiling := b.base, b.max
	if step <= 0 {
		step = DefaultBackoffBase
	}
	if ceiling <= 0 {
		ceiling = DefaultBackoffMax
	}
	return min(time.Duration(b.Block())*step, ceiling)
}
