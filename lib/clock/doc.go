// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the harness's time source.
//
// Two layers live here. [Clock] is an injectable wall/timer
// abstraction: roles that sleep between rounds or bound a wait take a
// Clock instead of calling the time package, so tests substitute
// [Fake] and advance time explicitly. [Monotonic] derives the
// nanosecond timestamp source used for every latency measurement from
// a Clock.
//
// Production wiring:
//
//	client := client.New(client.Config{Clock: clock.Real(), ...})
//
// Test wiring:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go role.Run(ctx)
//	fake.WaitForTimers(1)
//	fake.Advance(100 * time.Millisecond)
//
// # Monotonicity
//
// Latencies are computed as end-start over readings from the same
// [Nanotime]. For the real clock those readings come from Go's
// monotonic clock reading (time.Time.Sub uses it when present), so
// wall-clock adjustments never make a latency negative. A Nanotime
// never regresses: a reading that would be earlier than the previous
// one is clamped to the previous value.
package clock
