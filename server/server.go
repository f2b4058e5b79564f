// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/faultline/lib/clock"
	"github.com/bureau-foundation/faultline/lib/process"
	"github.com/bureau-foundation/faultline/lib/region"
	"github.com/bureau-foundation/faultline/lib/wire"
)

// DefaultResponse is written into the shared region after each
// data-ready notification.
const DefaultResponse = "Server response via shared memory!"

// ErrUnknownLabel describes a request the server answered with
// wire.ReplyUnknown. It is logged, never returned to a peer.
var ErrUnknownLabel = errors.New("unknown message label")

// Notifier sends a one-way notification to a fixed peer.
type Notifier interface {
	Notify(ctx context.Context) error
}

// Config configures a Server.
type Config struct {
	// Region is the shared region. Required.
	Region *region.Region

	// Logger notifies the logger role after each shared region
	// notification. Nil disables logger notifications.
	Logger Notifier

	// Clock drives processing-latency measurement. Nil means
	// clock.Real().
	Clock clock.Clock

	// Response replaces DefaultResponse when non-empty.
	Response string

	// Log receives role records. Nil discards.
	Log *slog.Logger
}

// Counters summarises what a server has handled.
type Counters struct {
	Requests      uint64 `cbor:"requests"`
	Unknown       uint64 `cbor:"unknown"`
	Notifications uint64 `cbor:"notifications"`
	LoggerErrors  uint64 `cbor:"logger_errors"`
}

// Server is the server role. Transports may call HandleRequest from
// several goroutines; each call is handled to completion under a
// lock, so the role stays sequential.
type Server struct {
	region   *region.Region
	logger   Notifier
	now      clock.Nanotime
	response string
	log      *slog.Logger

	mu       sync.Mutex
	counters Counters
}

// New returns a Server.
func New(config Config) (*Server, error) {
	if config.Region == nil {
		return nil, errors.New("server requires a shared region")
	}
	source := config.Clock
	if source == nil {
		source = clock.Real()
	}
	response := config.Response
	if response == "" {
		response = DefaultResponse
	}
	return &Server{
		region:   config.Region,
		logger:   config.Logger,
		now:      clock.Monotonic(source),
		response: response,
		log:      process.Discard(config.Log),
	}, nil
}

// HandleRequest handles one inbound frame. For a request label it
// returns the classified reply with the server's processing latency
// and true. For the sentinel it handles the shared region notification
// and returns false: no reply may be sent.
func (s *Server) HandleRequest(ctx context.Context, label wire.Label) (wire.Reply, bool) {
	if label == wire.SentinelLabel {
		s.HandleSharedRegionNotification(ctx)
		return wire.Reply{}, false
	}

	s.mu.Lock()
	start := s.now()
	replyLabel := Classify(label)
	end := s.now()
	s.counters.Requests++
	if replyLabel == wire.ReplyUnknown {
		s.counters.Unknown++
	}
	s.mu.Unlock()

	reply := wire.Reply{Label: replyLabel, Latency: clock.Elapsed(start, end)}
	if replyLabel == wire.ReplyUnknown {
		s.log.Error("request answered with unknown marker", "label", label, "error", ErrUnknownLabel)
	} else {
		s.log.Info("processed request", "label", label, "reply", replyLabel)
	}
	s.log.Info("ipc latency", "server_latency_ns", reply.Latency)
	return reply, true
}

// HandleSharedRegionNotification reads the region, replaces its
// content with the server's response, and notifies the logger.
func (s *Server) HandleSharedRegionNotification(ctx context.Context) {
	s.mu.Lock()
	content := s.region.String()
	digest := s.region.Digest()
	truncated := s.region.WriteString(s.response)
	s.counters.Notifications++
	s.mu.Unlock()

	s.log.Info("read shared region",
		"content", content,
		"digest", hex.EncodeToString(digest[:8]),
	)
	if truncated {
		s.log.Warn("response truncated to region capacity", "capacity", s.region.Capacity())
	}
	s.log.Info("wrote response to shared region")

	if s.logger == nil {
		return
	}
	if err := s.logger.Notify(ctx); err != nil {
		s.mu.Lock()
		s.counters.LoggerErrors++
		s.mu.Unlock()
		s.log.Warn("notifying logger", "error", err)
	}
}

// Counters returns a copy of the server's counters.
func (s *Server) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}
