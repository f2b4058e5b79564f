// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/faultline/lib/clock"
	"github.com/bureau-foundation/faultline/lib/process"
	"github.com/bureau-foundation/faultline/lib/region"
	"github.com/bureau-foundation/faultline/lib/wire"
)

// DefaultPayload is written into the shared region each round.
const DefaultPayload = "Hello from client via shared memory!"

// Caller performs a blocking request/reply exchange with the server.
type Caller interface {
	Call(ctx context.Context, label wire.Label) (wire.Reply, error)
}

// Notifier sends a one-way notification to a fixed peer.
type Notifier interface {
	Notify(ctx context.Context) error
}

// Config configures a Client.
type Config struct {
	// Server performs the timed exchanges. Required.
	Server Caller

	// DataReady tells the server the region holds new data. Required
	// when Region is set.
	DataReady Notifier

	// Region is the shared region. Nil skips the handoff step.
	Region *region.Region

	// Logger is notified once per round. Nil disables the step.
	Logger Notifier

	// Labels are the two request labels sent each round. Zero means
	// wire.RequestA and wire.RequestB.
	Labels [2]wire.Label

	// Payload replaces DefaultPayload when non-empty.
	Payload string

	// NotifyGap is the pause after notifying the server. RoundPause is
	// the pause between rounds. Zero skips either.
	NotifyGap  time.Duration
	RoundPause time.Duration

	// MetricsEnabled logs per-exchange metric records and the final
	// summary.
	MetricsEnabled bool

	// Clock drives latency measurement and pauses. Nil means
	// clock.Real().
	Clock clock.Clock

	// Log receives role records. Nil discards.
	Log *slog.Logger
}

// Result is the outcome of a run.
type Result struct {
	Rounds  int      `cbor:"rounds"`
	Samples []Sample `cbor:"samples"`
	Stats   Stats    `cbor:"stats"`

	// Gaps counts exchanges that produced no reply.
	Gaps int `cbor:"gaps"`

	// Mismatches counts replies that differ from the expected label.
	Mismatches int `cbor:"mismatches"`

	// NotifyErrors counts failed server or logger notifications.
	NotifyErrors int `cbor:"notify_errors"`
}

// Client is the client role.
type Client struct {
	config Config
	clock  clock.Clock
	now    clock.Nanotime
	log    *slog.Logger
}

// New validates config and returns a Client.
func New(config Config) (*Client, error) {
	if config.Server == nil {
		return nil, errors.New("client requires a server caller")
	}
	if config.Region != nil && config.DataReady == nil {
		return nil, errors.New("client with a shared region requires a data-ready notifier")
	}
	if config.Labels == ([2]wire.Label{}) {
		config.Labels = [2]wire.Label{wire.RequestA, wire.RequestB}
	}
	for _, label := range config.Labels {
		if label == wire.SentinelLabel {
			return nil, &wire.LabelError{Label: label, Err: wire.ErrSentinelCollision}
		}
	}
	if config.Payload == "" {
		config.Payload = DefaultPayload
	}
	source := config.Clock
	if source == nil {
		source = clock.Real()
	}
	return &Client{
		config: config,
		clock:  source,
		now:    clock.Monotonic(source),
		log:    process.Discard(config.Log),
	}, nil
}

// Run performs iterations rounds. Per-exchange failures never stop the
// run. Cancelling ctx stops between steps and returns the partial
// result with ctx's error.
func (c *Client) Run(ctx context.Context, iterations int) (Result, error) {
	if iterations < 0 {
		return Result{}, fmt.Errorf("iterations %d: must not be negative", iterations)
	}
	result := Result{Stats: NewStats()}
	c.log.Info("starting run", "iterations", iterations)

	for round := 1; round <= iterations; round++ {
		if err := c.round(ctx, round, &result); err != nil {
			return result, err
		}
		result.Rounds = round
		if round < iterations {
			if err := c.pause(ctx, c.config.RoundPause); err != nil {
				return result, err
			}
		}
	}

	c.summarize(iterations, result)
	return result, nil
}

func (c *Client) round(ctx context.Context, round int, result *Result) error {
	c.exchange(ctx, round, c.config.Labels[0], result)
	if err := ctx.Err(); err != nil {
		return err
	}

	if c.config.Region != nil {
		if c.config.Region.WriteString(c.config.Payload) {
			c.log.Warn("payload truncated to region capacity", "capacity", c.config.Region.Capacity())
		}
		c.log.Info("wrote shared region; notifying server")
		if err := c.config.DataReady.Notify(ctx); err != nil {
			result.NotifyErrors++
			c.log.Warn("notifying server", "error", err)
		}
		if err := c.pause(ctx, c.config.NotifyGap); err != nil {
			return err
		}
	}

	c.exchange(ctx, round, c.config.Labels[1], result)
	if err := ctx.Err(); err != nil {
		return err
	}

	if c.config.Logger != nil {
		if err := c.config.Logger.Notify(ctx); err != nil {
			result.NotifyErrors++
			c.log.Warn("notifying logger", "error", err)
		}
	}
	return nil
}

func (c *Client) exchange(ctx context.Context, round int, label wire.Label, result *Result) {
	c.log.Info("sending request", "label", label, "iteration", round)

	start := c.now()
	reply, err := c.config.Server.Call(ctx, label)
	end := c.now()

	if err != nil {
		result.Gaps++
		c.log.Warn("exchange failed", "label", label, "iteration", round, "error", err)
		return
	}

	sample := Sample{
		Iteration:       round,
		Label:           label,
		Reply:           reply.Label,
		LatencyNS:       clock.Elapsed(start, end),
		ServerLatencyNS: reply.Latency,
	}
	result.Samples = append(result.Samples, sample)
	result.Stats.Record(sample.LatencyNS)

	if want, known := expectedReply(label); known && reply.Label != want {
		result.Mismatches++
		c.log.Error("unexpected reply", "label", label, "reply", reply.Label, "want", want)
	} else {
		c.log.Info("received reply", "label", label, "reply", reply.Label)
	}
	if c.config.MetricsEnabled {
		c.log.Info("ipc latency",
			"latency_ns", sample.LatencyNS,
			"server_latency_ns", sample.ServerLatencyNS,
		)
	}
}

func (c *Client) summarize(iterations int, result Result) {
	if !c.config.MetricsEnabled {
		return
	}
	average, ok := result.Stats.Average()
	if !ok {
		c.log.Info("no latency samples", "iterations", iterations, "gaps", result.Gaps)
		return
	}
	c.log.Info("ipc statistics",
		"iterations", iterations,
		"messages", result.Stats.Count,
		"gaps", result.Gaps,
		"avg_ns", average,
		"avg_us", Micros(average),
		"min_ns", result.Stats.Min,
		"min_us", Micros(result.Stats.Min),
		"max_ns", result.Stats.Max,
		"max_us", Micros(result.Stats.Max),
	)
}

func (c *Client) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-c.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// expectedReply is the reply a correct server gives to label.
func expectedReply(label wire.Label) (wire.Label, bool) {
	switch label {
	case wire.RequestA:
		return wire.ReplyA, true
	case wire.RequestB:
		return wire.ReplyB, true
	}
	return 0, false
}
