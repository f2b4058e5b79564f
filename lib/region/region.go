// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package region

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/zeebo/blake3"
	"golang.org/x/sys/unix"
)

// DefaultCapacity is the region size used unless configuration says
// otherwise.
const DefaultCapacity = 4096

// MinCapacity holds one data byte and the terminator.
const MinCapacity = 2

// ErrCapacity is returned for a capacity below MinCapacity or a mapped
// file smaller than the requested capacity.
var ErrCapacity = errors.New("invalid region capacity")

// Region is a fixed-capacity NUL-terminated buffer.
type Region struct {
	data   []byte
	mapped bool
	path   string
}

// New returns a zeroed heap-backed region.
func New(capacity int) (*Region, error) {
	if capacity < MinCapacity {
		return nil, fmt.Errorf("capacity %d: %w", capacity, ErrCapacity)
	}
	return &Region{data: make([]byte, capacity)}, nil
}

// Create creates (or truncates) the file at path, sizes it to capacity
// and maps it shared. The caller owns the file and should Remove it
// when every peer is done.
func Create(path string, capacity int) (*Region, error) {
	if capacity < MinCapacity {
		return nil, fmt.Errorf("capacity %d: %w", capacity, ErrCapacity)
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("creating region file: %w", err)
	}
	defer file.Close()
	if err := file.Truncate(int64(capacity)); err != nil {
		return nil, fmt.Errorf("sizing region file to %d bytes: %w", capacity, err)
	}
	return mapFile(file, path, capacity)
}

// Open maps an existing region file created by a peer.
func Open(path string, capacity int) (*Region, error) {
	if capacity < MinCapacity {
		return nil, fmt.Errorf("capacity %d: %w", capacity, ErrCapacity)
	}
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening region file: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat region file: %w", err)
	}
	if info.Size() < int64(capacity) {
		return nil, fmt.Errorf("region file %s is %d bytes, want %d: %w", path, info.Size(), capacity, ErrCapacity)
	}
	return mapFile(file, path, capacity)
}

func mapFile(file *os.File, path string, capacity int) (*Region, error) {
	data, err := unix.Mmap(int(file.Fd()), 0, capacity, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mapping region %s: %w", path, err)
	}
	return &Region{data: data, mapped: true, path: path}, nil
}

// Capacity is the buffer size including the terminator.
func (r *Region) Capacity() int { return len(r.data) }

// Path is the backing file, or "" for a heap region.
func (r *Region) Path() string { return r.path }

// Write stores content with strncpy semantics: bytes up to the first
// NUL in content, at most Capacity-1 of them, followed by zeros to the
// end of the buffer. It reports whether content was cut short.
// Writing the same value twice leaves the buffer unchanged.
func (r *Region) Write(content []byte) (truncated bool) {
	if index := bytes.IndexByte(content, 0); index >= 0 {
		content = content[:index]
	}
	limit := len(r.data) - 1
	if len(content) > limit {
		content = content[:limit]
		truncated = true
	}
	written := copy(r.data, content)
	clear(r.data[written:])
	return truncated
}

// WriteString is Write for a string.
func (r *Region) WriteString(content string) (truncated bool) {
	return r.Write([]byte(content))
}

// Read returns a copy of the bytes before the first NUL.
func (r *Region) Read() []byte {
	end := bytes.IndexByte(r.data, 0)
	if end < 0 {
		// A peer that ignores the convention filled the last byte;
		// never read past Capacity-1.
		end = len(r.data) - 1
	}
	return bytes.Clone(r.data[:end])
}

// String returns Read as a string.
func (r *Region) String() string { return string(r.Read()) }

// Digest is the BLAKE3-256 hash of the entire buffer, terminator and
// padding included.
func (r *Region) Digest() [32]byte {
	return blake3.Sum256(r.data)
}

// Close unmaps a file-backed region. The region must not be used
// afterwards. Close on a heap region is a no-op.
func (r *Region) Close() error {
	if !r.mapped {
		return nil
	}
	r.mapped = false
	data := r.data
	r.data = nil
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("unmapping region %s: %w", r.path, err)
	}
	return nil
}

// Remove unlinks the backing file. Existing mappings stay valid.
func (r *Region) Remove() error {
	if r.path == "" {
		return nil
	}
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing region file: %w", err)
	}
	return nil
}
