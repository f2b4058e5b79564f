// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/bureau-foundation/faultline/lib/clock"
	"github.com/bureau-foundation/faultline/lib/netutil"
	"github.com/bureau-foundation/faultline/lib/process"
	"github.com/bureau-foundation/faultline/lib/wire"
)

// SocketServer serves the request/reply protocol on a Unix stream
// socket. Each connection carries exactly one frame: a request, which
// gets a reply, or a notify, which does not. Connections are handled
// one at a time in accept order.
type SocketServer struct {
	socketPath  string
	codec       wire.Codec
	handler     Handler
	readTimeout time.Duration
	logger      *slog.Logger

	ready chan struct{}
}

// SocketServerConfig configures a SocketServer.
type SocketServerConfig struct {
	SocketPath string
	Codec      wire.Codec
	Handler    Handler

	// ReadTimeout bounds the wait for a frame after accept. Zero
	// means DefaultReadTimeout.
	ReadTimeout time.Duration

	Logger *slog.Logger
}

// NewSocketServer returns a server. Call Serve to start it.
func NewSocketServer(config SocketServerConfig) *SocketServer {
	readTimeout := config.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &SocketServer{
		socketPath:  config.SocketPath,
		codec:       config.Codec,
		handler:     config.Handler,
		readTimeout: readTimeout,
		logger:      process.Discard(config.Logger),
		ready:       make(chan struct{}),
	}
}

// Ready is closed once the socket is listening.
func (s *SocketServer) Ready() <-chan struct{} { return s.ready }

// Serve listens and handles connections until ctx is cancelled. A
// stale socket file at the path is removed first, and the socket file
// is removed on return. Only failing to listen is an error; a peer's
// transport failure drops that exchange and the loop continues.
func (s *SocketServer) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w: %w", s.socketPath, ErrUnavailable, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("server ready to receive messages", "path", s.socketPath, "label_width", s.codec.Bits())
	close(s.ready)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}
		s.handleConnection(ctx, conn)
	}
}

func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	request, notify, err := s.codec.ReadMessage(conn)
	if err != nil {
		s.dropped(err)
		return
	}
	if notify {
		s.logger.Debug("received data-ready frame")
	}

	reply, ok := s.handler.HandleRequest(ctx, request.Label)
	if !ok {
		return
	}
	frame, err := s.codec.EncodeReply(reply)
	if err != nil {
		s.logger.Error("encoding reply", "label", request.Label, "error", err)
		return
	}
	conn.SetWriteDeadline(time.Now().Add(s.readTimeout))
	if _, err := conn.Write(frame); err != nil {
		s.dropped(err)
	}
}

// dropped logs a per-connection failure. Peers that vanish are normal
// in the fault scenarios and log at debug; anything else is a warning.
func (s *SocketServer) dropped(err error) {
	switch {
	case errors.Is(err, io.EOF):
		s.logger.Debug("peer connected and sent nothing")
	case netutil.IsExpectedCloseError(err), errors.Is(err, wire.ErrIncompleteMessage):
		s.logger.Debug("exchange dropped", "error", err)
	case netutil.IsTimeout(err):
		s.logger.Warn("peer sent no frame before the read timeout", "timeout", s.readTimeout)
	default:
		s.logger.Warn("exchange failed", "error", err)
	}
}

// SocketCaller performs exchanges against a SocketServer, one
// connection per call.
type SocketCaller struct {
	socketPath string
	codec      wire.Codec
	timeout    time.Duration
	stamp      clock.Nanotime
}

// NewSocketCaller returns a caller for the server at socketPath. A
// non-positive timeout means DefaultCallTimeout. stamp supplies the
// request timestamp; nil uses the real monotonic clock.
func NewSocketCaller(socketPath string, codec wire.Codec, timeout time.Duration, stamp clock.Nanotime) *SocketCaller {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	if stamp == nil {
		stamp = clock.Monotonic(clock.Real())
	}
	return &SocketCaller{socketPath: socketPath, codec: codec, timeout: timeout, stamp: stamp}
}

// Call sends label and waits for the reply.
func (c *SocketCaller) Call(ctx context.Context, label wire.Label) (wire.Reply, error) {
	frame, err := c.codec.EncodeRequest(wire.Request{Label: label, Timestamp: c.stamp()})
	if err != nil {
		return wire.Reply{}, &CallError{Op: "call", Label: label, Err: err}
	}

	conn, err := dial(ctx, "unix", c.socketPath, c.timeout)
	if err != nil {
		return wire.Reply{}, classify("call", label, err)
	}
	defer conn.Close()

	if _, err := conn.Write(frame); err != nil {
		return wire.Reply{}, classify("call", label, err)
	}
	reply, err := c.codec.ReadReply(conn)
	if err != nil {
		return wire.Reply{}, classify("call", label, err)
	}
	return reply, nil
}

// SocketNotifier sends the data-ready frame to a SocketServer.
type SocketNotifier struct {
	socketPath string
	codec      wire.Codec
	timeout    time.Duration
}

// NewSocketNotifier returns a notifier for the server at socketPath.
func NewSocketNotifier(socketPath string, codec wire.Codec, timeout time.Duration) *SocketNotifier {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &SocketNotifier{socketPath: socketPath, codec: codec, timeout: timeout}
}

// Notify connects, writes the label-only frame, and closes. It does
// not wait for the server to act on it.
func (n *SocketNotifier) Notify(ctx context.Context) error {
	conn, err := dial(ctx, "unix", n.socketPath, n.timeout)
	if err != nil {
		return classify("notify", wire.SentinelLabel, err)
	}
	defer conn.Close()
	if _, err := conn.Write(n.codec.EncodeNotify()); err != nil {
		return classify("notify", wire.SentinelLabel, err)
	}
	return nil
}

// dial connects and sets a deadline covering the whole exchange: the
// earlier of timeout from now and ctx's deadline.
func dial(ctx context.Context, network, address string, timeout time.Duration) (net.Conn, error) {
	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	conn.SetDeadline(deadline)
	return conn, nil
}

// classify wraps a socket error with the matching sentinel.
func classify(op string, label wire.Label, err error) error {
	var kind error
	switch {
	case errors.Is(err, wire.ErrIncompleteMessage):
	case errors.Is(err, context.Canceled):
	case errors.Is(err, context.DeadlineExceeded), netutil.IsTimeout(err):
		kind = ErrTimeout
	case netutil.IsUnavailable(err):
		kind = ErrUnavailable
	case netutil.IsExpectedCloseError(err):
		kind = ErrPeerClosed
	}
	return &CallError{Op: op, Label: label, Kind: kind, Err: err}
}
