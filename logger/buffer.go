// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"bytes"
	"fmt"
)

// DefaultBufferSize is the log buffer capacity unless configured.
const DefaultBufferSize = 256

// Buffer is a bounded, append-only text log. Once full, further bytes
// are dropped; nothing already stored is overwritten. The byte after
// the last stored byte is always NUL, so at most Capacity-1 bytes of
// text are kept.
type Buffer struct {
	data   []byte
	length int
}

// NewBuffer returns an empty buffer. Capacity must be at least 2.
func NewBuffer(capacity int) (*Buffer, error) {
	if capacity < 2 {
		return nil, fmt.Errorf("log buffer capacity %d: must be at least 2", capacity)
	}
	return &Buffer{data: make([]byte, capacity)}, nil
}

// Append stores entry followed by a newline, byte by byte, until the
// buffer is full. It returns how many of those bytes were dropped.
func (b *Buffer) Append(entry string) (dropped int) {
	limit := len(b.data) - 1
	for index := 0; index < len(entry); index++ {
		if b.length >= limit {
			dropped += len(entry) - index
			break
		}
		b.data[b.length] = entry[index]
		b.length++
	}
	if b.length < limit {
		b.data[b.length] = '\n'
		b.length++
	} else {
		dropped++
	}
	b.data[b.length] = 0
	return dropped
}

// Len is the number of stored text bytes.
func (b *Buffer) Len() int { return b.length }

// Capacity is the buffer size including the terminator.
func (b *Buffer) Capacity() int { return len(b.data) }

// Full reports whether further appends will be dropped entirely.
func (b *Buffer) Full() bool { return b.length >= len(b.data)-1 }

// Bytes returns a copy of the stored text.
func (b *Buffer) Bytes() []byte { return bytes.Clone(b.data[:b.length]) }

// String returns the stored text.
func (b *Buffer) String() string { return string(b.data[:b.length]) }

// Entries splits the stored text into lines. An entry cut off by
// saturation is returned as stored, without its newline.
func (b *Buffer) Entries() []string {
	text := b.String()
	if text == "" {
		return nil
	}
	lines := bytes.Split([]byte(text), []byte{'\n'})
	entries := make([]string, 0, len(lines))
	for index, line := range lines {
		if index == len(lines)-1 && len(line) == 0 {
			break
		}
		entries = append(entries, string(line))
	}
	return entries
}
