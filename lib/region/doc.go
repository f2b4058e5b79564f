// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package region implements the shared region: a fixed-capacity byte
// buffer the client and server use to hand off text outside the
// request/reply channel.
//
// Content is NUL-terminated text. [Region.Write] stores at most
// Capacity-1 bytes, zero-fills the rest, and reports truncation; the
// final byte is always NUL. [Region.Read] returns the bytes before the
// first NUL. There is no locking: the notify protocol orders every
// write before the read it announces.
//
// A region is either heap-backed ([New]), for roles that share an
// address space, or a MAP_SHARED mapping of a file under /dev/shm
// ([Create], [Open]) for roles in separate processes. The server
// creates the file; the client opens it.
//
// [Region.Digest] is a BLAKE3 hash of the whole buffer. The supervisor
// compares digests taken before and after the crasher faults to show
// the fault left the region untouched.
package region
