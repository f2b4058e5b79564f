// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/bureau-foundation/faultline/lib/codec"
	"github.com/bureau-foundation/faultline/lib/process"
	"github.com/bureau-foundation/faultline/lib/wire"
	"github.com/bureau-foundation/faultline/logger"
)

// maxDatagramSize bounds one logger notification on the wire.
const maxDatagramSize = 512

// drainWindow is how long Serve keeps reading after cancellation.
const drainWindow = 50 * time.Millisecond

// Notification is the datagram a role sends to the logger. The logger
// acts only on Source; Note is informational.
type Notification struct {
	Source uint32 `cbor:"source"`
	Note   string `cbor:"note,omitempty"`
}

// DatagramNotifier sends Notifications from one fixed source channel
// to the logger's datagram socket.
type DatagramNotifier struct {
	socketPath string
	source     logger.Channel
	note       string
	timeout    time.Duration
}

// NewDatagramNotifier returns a notifier that identifies itself as
// source. note travels with each datagram.
func NewDatagramNotifier(socketPath string, source logger.Channel, note string) *DatagramNotifier {
	return &DatagramNotifier{
		socketPath: socketPath,
		source:     source,
		note:       note,
		timeout:    DefaultCallTimeout,
	}
}

// Notify sends one datagram. A missing logger surfaces as
// ErrUnavailable; callers log it and carry on.
func (n *DatagramNotifier) Notify(ctx context.Context) error {
	payload, err := codec.Marshal(Notification{Source: uint32(n.source), Note: n.note})
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}
	conn, err := dial(ctx, "unixgram", n.socketPath, n.timeout)
	if err != nil {
		return classify("notify", wire.SentinelLabel, err)
	}
	defer conn.Close()
	if _, err := conn.Write(payload); err != nil {
		return classify("notify", wire.SentinelLabel, err)
	}
	return nil
}

// DatagramListener receives Notifications on a Unix datagram socket
// and hands each source channel to a Sink.
type DatagramListener struct {
	socketPath string
	sink       Sink
	logger     *slog.Logger
	ready      chan struct{}
}

// NewDatagramListener returns a listener. Call Serve to start it.
func NewDatagramListener(socketPath string, sink Sink, log *slog.Logger) *DatagramListener {
	return &DatagramListener{
		socketPath: socketPath,
		sink:       sink,
		logger:     process.Discard(log),
		ready:      make(chan struct{}),
	}
}

// Ready is closed once the socket is bound.
func (l *DatagramListener) Ready() <-chan struct{} { return l.ready }

// Serve receives until ctx is cancelled. Malformed datagrams are
// logged and skipped.
func (l *DatagramListener) Serve(ctx context.Context) error {
	if err := os.Remove(l.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", l.socketPath, err)
	}
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: l.socketPath, Net: "unixgram"})
	if err != nil {
		return fmt.Errorf("binding %s: %w: %w", l.socketPath, ErrUnavailable, err)
	}
	defer func() {
		conn.Close()
		os.Remove(l.socketPath)
	}()

	// Cancellation opens a short drain window rather than closing at
	// once, so notifications already queued by exited peers still
	// reach the sink.
	go func() {
		<-ctx.Done()
		conn.SetReadDeadline(time.Now().Add(drainWindow))
	}()

	l.logger.Info("logger ready to capture events", "path", l.socketPath)
	close(l.ready)

	buffer := make([]byte, maxDatagramSize)
	for {
		n, err := conn.Read(buffer)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.logger.Warn("receiving notification", "error", err)
			continue
		}
		var notification Notification
		if err := codec.Unmarshal(buffer[:n], &notification); err != nil {
			l.logger.Warn("discarding malformed notification", "bytes", n, "error", err)
			continue
		}
		if notification.Note != "" {
			l.logger.Debug("notification note", "source", notification.Source, "note", notification.Note)
		}
		l.sink.OnNotify(logger.Channel(notification.Source))
	}
}
