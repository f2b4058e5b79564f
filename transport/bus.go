// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/faultline/lib/clock"
	"github.com/bureau-foundation/faultline/lib/process"
	"github.com/bureau-foundation/faultline/lib/wire"
	"github.com/bureau-foundation/faultline/logger"
)

// busQueueDepth is the capacity of the server and logger queues.
const busQueueDepth = 64

// envelope is one inbound server frame. reply is nil for notify
// frames and has capacity one otherwise, so the server's send never
// blocks even if the caller is gone.
type envelope struct {
	label wire.Label
	reply chan wire.Reply
}

// note is one queued logger notification. A note with flushed set
// carries no notification; ServeLogger closes flushed on reaching it.
type note struct {
	source  logger.Channel
	flushed chan struct{}
}

// Bus is the in-process binding. Roles run as goroutines and reach
// each other through endpoints the Bus hands out. Serve runs the
// server side and ServeLogger the logger side; both handle one item
// at a time.
type Bus struct {
	requests      chan envelope
	notifications chan note
	closed        chan struct{}
	closeOnce     sync.Once

	clock       clock.Clock
	callTimeout time.Duration
	log         *slog.Logger

	droppedNotifications atomic.Uint64
}

// BusConfig configures a Bus.
type BusConfig struct {
	// CallTimeout bounds each Call. Zero means DefaultCallTimeout.
	CallTimeout time.Duration

	// Clock drives call timeouts. Nil means clock.Real().
	Clock clock.Clock

	Logger *slog.Logger
}

// NewBus returns an idle Bus.
func NewBus(config BusConfig) *Bus {
	timeout := config.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	source := config.Clock
	if source == nil {
		source = clock.Real()
	}
	return &Bus{
		requests:      make(chan envelope, busQueueDepth),
		notifications: make(chan note, busQueueDepth),
		closed:        make(chan struct{}),
		clock:         source,
		callTimeout:   timeout,
		log:           process.Discard(config.Logger),
	}
}

// Serve delivers queued frames to handler until ctx is cancelled or
// the Bus is closed.
func (b *Bus) Serve(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.closed:
			return nil
		case item := <-b.requests:
			reply, ok := handler.HandleRequest(ctx, item.label)
			if ok && item.reply != nil {
				item.reply <- reply
			}
		}
	}
}

// ServeLogger delivers queued notifications to sink until ctx is
// cancelled or the Bus is closed.
func (b *Bus) ServeLogger(ctx context.Context, sink Sink) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.closed:
			return nil
		case item := <-b.notifications:
			if item.flushed != nil {
				close(item.flushed)
				continue
			}
			sink.OnNotify(item.source)
		}
	}
}

// Close stops Serve and ServeLogger. Later calls and notifications
// fail with ErrUnavailable.
func (b *Bus) Close() {
	b.closeOnce.Do(func() { close(b.closed) })
}

// Flush waits until ServeLogger has delivered every notification
// queued before the call.
func (b *Bus) Flush(ctx context.Context) error {
	flushed := make(chan struct{})
	select {
	case b.notifications <- note{flushed: flushed}:
	case <-b.closed:
		return ErrUnavailable
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-flushed:
		return nil
	case <-b.closed:
		return ErrUnavailable
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DroppedNotifications counts logger notifications discarded because
// the logger queue was full.
func (b *Bus) DroppedNotifications() uint64 {
	return b.droppedNotifications.Load()
}

// Caller returns an endpoint for request/reply exchanges.
func (b *Bus) Caller() Caller { return busCaller{b} }

// DataReady returns an endpoint that sends the sentinel to the server.
func (b *Bus) DataReady() Notifier { return busDataReady{b} }

// LoggerNotifier returns an endpoint that notifies the logger as
// source.
func (b *Bus) LoggerNotifier(source logger.Channel) Notifier {
	return busLoggerNotifier{bus: b, source: source}
}

type busCaller struct{ bus *Bus }

func (c busCaller) Call(ctx context.Context, label wire.Label) (wire.Reply, error) {
	b := c.bus
	if label == wire.SentinelLabel {
		return wire.Reply{}, &CallError{Op: "call", Label: label, Err: wire.ErrSentinelCollision}
	}
	timeout := b.clock.After(b.callTimeout)
	item := envelope{label: label, reply: make(chan wire.Reply, 1)}

	select {
	case b.requests <- item:
	case <-b.closed:
		return wire.Reply{}, &CallError{Op: "call", Label: label, Kind: ErrUnavailable}
	case <-timeout:
		return wire.Reply{}, &CallError{Op: "call", Label: label, Kind: ErrTimeout}
	case <-ctx.Done():
		return wire.Reply{}, &CallError{Op: "call", Label: label, Err: ctx.Err()}
	}

	select {
	case reply := <-item.reply:
		return reply, nil
	case <-b.closed:
		return wire.Reply{}, &CallError{Op: "call", Label: label, Kind: ErrPeerClosed}
	case <-timeout:
		return wire.Reply{}, &CallError{Op: "call", Label: label, Kind: ErrTimeout}
	case <-ctx.Done():
		return wire.Reply{}, &CallError{Op: "call", Label: label, Err: ctx.Err()}
	}
}

type busDataReady struct{ bus *Bus }

func (n busDataReady) Notify(ctx context.Context) error {
	b := n.bus
	select {
	case b.requests <- envelope{label: wire.SentinelLabel}:
		return nil
	case <-b.closed:
		return &CallError{Op: "notify", Label: wire.SentinelLabel, Kind: ErrUnavailable}
	case <-ctx.Done():
		return &CallError{Op: "notify", Label: wire.SentinelLabel, Err: ctx.Err()}
	}
}

type busLoggerNotifier struct {
	bus    *Bus
	source logger.Channel
}

// Notify never blocks: a full logger queue drops the notification.
func (n busLoggerNotifier) Notify(context.Context) error {
	b := n.bus
	select {
	case <-b.closed:
		return &CallError{Op: "notify", Label: wire.SentinelLabel, Kind: ErrUnavailable}
	default:
	}
	select {
	case b.notifications <- note{source: n.source}:
	default:
		b.droppedNotifications.Add(1)
		b.log.Warn("logger queue full; notification dropped", "source", n.source)
	}
	return nil
}
