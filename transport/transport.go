// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/faultline/lib/wire"
	"github.com/bureau-foundation/faultline/logger"
)

// DefaultCallTimeout bounds one request/reply exchange.
const DefaultCallTimeout = 5 * time.Second

// DefaultReadTimeout bounds how long the server waits for a frame on
// an accepted connection.
const DefaultReadTimeout = 5 * time.Second

// Caller performs a blocking request/reply exchange.
type Caller interface {
	Call(ctx context.Context, label wire.Label) (wire.Reply, error)
}

// Notifier sends a one-way notification to a fixed peer.
type Notifier interface {
	Notify(ctx context.Context) error
}

// Handler answers inbound frames. The bool is false when no reply may
// be sent, as for the sentinel.
type Handler interface {
	HandleRequest(ctx context.Context, label wire.Label) (wire.Reply, bool)
}

// Sink receives logger notifications.
type Sink interface {
	OnNotify(source logger.Channel)
}

var (
	// ErrUnavailable means the peer's endpoint does not exist or
	// refuses connections.
	ErrUnavailable = errors.New("peer unavailable")

	// ErrTimeout means no reply arrived within the call timeout.
	ErrTimeout = errors.New("timed out waiting for peer")

	// ErrPeerClosed means the peer closed the exchange without a
	// complete reply.
	ErrPeerClosed = errors.New("peer closed the exchange")
)

// CallError describes one failed exchange or notification.
type CallError struct {
	// Op is "call" or "notify".
	Op    string
	Label wire.Label

	// Kind is one of the package's sentinel errors, or nil when Err
	// is already classified (wire.ErrIncompleteMessage).
	Kind error
	Err  error
}

func (e *CallError) Error() string {
	switch {
	case e.Kind != nil && e.Err != nil:
		return fmt.Sprintf("%s label %v: %v: %v", e.Op, e.Label, e.Kind, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("%s label %v: %v", e.Op, e.Label, e.Kind)
	default:
		return fmt.Sprintf("%s label %v: %v", e.Op, e.Label, e.Err)
	}
}

func (e *CallError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
