// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"math"

	"github.com/bureau-foundation/faultline/lib/wire"
)

// Sample is one completed exchange.
type Sample struct {
	// Iteration is the 1-based round number.
	Iteration int `cbor:"iteration"`

	Label wire.Label `cbor:"label"`
	Reply wire.Label `cbor:"reply"`

	// LatencyNS is the client-measured round trip.
	LatencyNS uint64 `cbor:"latency_ns"`

	// ServerLatencyNS is the processing time the server reported.
	ServerLatencyNS uint64 `cbor:"server_latency_ns"`
}

// Stats aggregates wall latencies. The zero value is not ready; use
// NewStats so Min starts at the largest representable value.
type Stats struct {
	Count uint64 `cbor:"count"`
	Sum   uint64 `cbor:"sum_ns"`
	Min   uint64 `cbor:"min_ns"`
	Max   uint64 `cbor:"max_ns"`
}

// NewStats returns empty stats.
func NewStats() Stats {
	return Stats{Min: math.MaxUint64}
}

// Record adds one latency.
func (s *Stats) Record(latency uint64) {
	s.Count++
	s.Sum += latency
	s.Min = min(s.Min, latency)
	s.Max = max(s.Max, latency)
}

// Empty reports whether nothing was recorded.
func (s Stats) Empty() bool { return s.Count == 0 }

// Average returns Sum/Count, or false when Count is zero.
func (s Stats) Average() (uint64, bool) {
	if s.Count == 0 {
		return 0, false
	}
	return s.Sum / s.Count, true
}

// Micros converts nanoseconds to microseconds for display.
func Micros(nanoseconds uint64) float64 {
	return float64(nanoseconds) / 1000.0
}
