// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package crasher implements the crasher role: a peer that performs
// one ordinary exchange with the server, notifies the logger, and then
// fails abnormally. The harness runs it to show that the failure stays
// inside the crasher's own isolation boundary.
package crasher

import (
	"context"
	"errors"
	"log/slog"
	"runtime"

	"github.com/bureau-foundation/faultline/lib/process"
	"github.com/bureau-foundation/faultline/lib/wire"
)

// ErrFaultReturned is returned by Run if the configured Faulter
// returned control to it.
var ErrFaultReturned = errors.New("induced fault returned")

// Caller performs a blocking request/reply exchange.
type Caller interface {
	Call(ctx context.Context, label wire.Label) (wire.Reply, error)
}

// Notifier sends a one-way notification.
type Notifier interface {
	Notify(ctx context.Context) error
}

// Faulter terminates the calling unit of execution abnormally. After
// Fault is called the unit touches no shared state.
type Faulter interface {
	Fault(reason string)
}

// ProcessFault kills the whole process with SIGKILL. Use it when the
// crasher runs as its own process.
type ProcessFault struct{}

func (ProcessFault) Fault(reason string) { process.Crash(reason) }

// GoroutineFault ends the calling goroutine with runtime.Goexit.
// Deferred calls run, but control never returns to the caller. Use it
// when roles share a process and the crasher has its own goroutine.
type GoroutineFault struct{}

func (GoroutineFault) Fault(string) { runtime.Goexit() }

// Config configures a Crasher.
type Config struct {
	Server Caller
	Logger Notifier

	// Label is sent to the server. Zero means wire.CrasherLabel.
	Label wire.Label

	// Fault ends the crasher. Nil means ProcessFault.
	Fault Faulter

	Log *slog.Logger
}

// Crasher is the crasher role.
type Crasher struct {
	config Config
	log    *slog.Logger
}

// New returns a Crasher.
func New(config Config) (*Crasher, error) {
	if config.Server == nil {
		return nil, errors.New("crasher requires a server caller")
	}
	if config.Label == 0 {
		config.Label = wire.CrasherLabel
	}
	if config.Label == wire.SentinelLabel {
		return nil, &wire.LabelError{Label: config.Label, Err: wire.ErrSentinelCollision}
	}
	if config.Fault == nil {
		config.Fault = ProcessFault{}
	}
	return &Crasher{config: config, log: process.Discard(config.Log)}, nil
}

// Run performs the exchange and the notification, then faults. With a
// real Faulter it does not return.
func (c *Crasher) Run(ctx context.Context) error {
	c.log.Info("sending test message to server", "label", c.config.Label)
	reply, err := c.config.Server.Call(ctx, c.config.Label)
	if err != nil {
		c.log.Warn("exchange failed", "error", err)
	} else {
		c.log.Info("received reply", "reply", reply.Label)
	}

	if c.config.Logger != nil {
		c.log.Info("notifying logger before fault")
		if err := c.config.Logger.Notify(ctx); err != nil {
			c.log.Warn("notifying logger", "error", err)
		}
	}

	c.log.Error("inducing fault")
	c.config.Fault.Fault("crasher induced fault")
	return ErrFaultReturned
}
