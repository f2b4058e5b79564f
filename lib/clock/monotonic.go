// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// Nanotime returns a nanosecond timestamp relative to an arbitrary
// per-source epoch. Successive calls never decrease.
type Nanotime func() uint64

// Monotonic returns a Nanotime whose epoch is the moment Monotonic was
// called. Readings are offsets from that epoch computed with
// time.Time.Sub, which uses the monotonic component of the real
// clock and is immune to wall-clock steps.
//
// The returned function is safe for concurrent use.
func Monotonic(source Clock) Nanotime {
	epoch := source.Now()
	var (
		mu   sync.Mutex
		last uint64
	)
	return func() uint64 {
		elapsed := source.Now().Sub(epoch)
		if elapsed < 0 {
			elapsed = 0
		}
		reading := uint64(elapsed)

		mu.Lock()
		defer mu.Unlock()
		if reading < last {
			reading = last
		}
		last = reading
		return reading
	}
}

// Elapsed is end-start for two readings from the same Nanotime. A
// reversed pair yields zero rather than wrapping.
func Elapsed(start, end uint64) uint64 {
	if end < start {
		return 0
	}
	return end - start
}

// Nanos converts a duration to the nanosecond unit used by Nanotime.
func Nanos(d time.Duration) uint64 {
	if d < 0 {
		return 0
	}
	return uint64(d)
}
