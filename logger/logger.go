// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"log/slog"
	"sync"

	"github.com/bureau-foundation/faultline/lib/process"
)

// Config configures a Logger.
type Config struct {
	// BufferSize is the log buffer capacity. Zero means
	// DefaultBufferSize.
	BufferSize int

	// Channels maps source channels to tags. Nil means
	// DefaultChannels.
	Channels ChannelMap

	// Logger receives one record per notification. Nil discards.
	Logger *slog.Logger
}

// Logger is the logger role's state. Each instance owns its buffer and
// count; nothing is process-wide.
type Logger struct {
	channels ChannelMap
	log      *slog.Logger

	mu     sync.Mutex
	buffer *Buffer
	count  uint64
}

// New returns a Logger with an empty buffer.
func New(config Config) (*Logger, error) {
	size := config.BufferSize
	if size == 0 {
		size = DefaultBufferSize
	}
	buffer, err := NewBuffer(size)
	if err != nil {
		return nil, err
	}
	channels := config.Channels
	if channels == nil {
		channels = DefaultChannels()
	}
	if err := channels.Validate(); err != nil {
		return nil, err
	}
	return &Logger{
		channels: channels,
		log:      process.Discard(config.Logger),
		buffer:   buffer,
	}, nil
}

// OnNotify records a notification from source. It always succeeds.
func (l *Logger) OnNotify(source Channel) {
	tag := l.channels.Tag(source)

	l.mu.Lock()
	l.count++
	count := l.count
	dropped := l.buffer.Append(string(tag))
	full := l.buffer.Full()
	l.mu.Unlock()

	if tag == TagUnexpected {
		l.log.Warn("notification on unexpected channel", "channel", source, "log_count", count)
	} else {
		l.log.Info("received notification", "source", string(tag), "channel", source, "log_count", count)
	}
	if dropped > 0 {
		l.log.Debug("log buffer saturated", "dropped_bytes", dropped, "full", full)
	}
}

// Count is the number of notifications received, including ones whose
// entries were dropped.
func (l *Logger) Count() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Replay returns the buffer's text.
func (l *Logger) Replay() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buffer.String()
}

// Entries returns the buffered entries in arrival order.
func (l *Logger) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buffer.Entries()
}

// Snapshot is a point-in-time view of a Logger.
type Snapshot struct {
	Count   uint64   `cbor:"count"`
	Entries []string `cbor:"entries"`
}

// Snapshot returns the count and entries read under one lock.
func (l *Logger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{Count: l.count, Entries: l.buffer.Entries()}
}
