// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the request/reply message shape every transport
// binding carries.
//
// A message is one label, optionally followed by a 64-bit nanosecond
// value. Three frames exist:
//
//	request: label | client send timestamp (u64)
//	notify:  label (always SentinelLabel)
//	reply:   label | server processing latency (u64)
//
// Frames are fixed width and little-endian. The label field is 4 or 8
// bytes depending on the [Codec] ([Width32] or [Width64]); both ends of
// a binding must agree on the width, which is part of configuration.
// Decoding a frame needs exactly its width in bytes and no buffering
// beyond it. A short read decodes to [ErrIncompleteMessage].
//
// Label values 1 and 2 are the two request types; their replies are 10
// and 20. Reply 0 marks an unknown label. [SentinelLabel] is reserved
// for "shared region data ready" and gets no reply. Configuration must
// reject any request label equal to the sentinel; see [ValidateLabels].
package wire
