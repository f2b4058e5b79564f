// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logger implements the logger role: a passive sink that
// records which peer notified it.
//
// [Logger.OnNotify] is the whole interface. It maps a source channel
// to a [Tag], appends the tag and a newline to a saturating [Buffer],
// and bumps a count. It never replies and never blocks the sender.
//
// The package imports nothing about the request/reply protocol or the
// shared region. A logger is built from a buffer size and a channel
// map, and it only ever learns "an event arrived from channel N".
// Transports deliver those events by calling OnNotify; see
// transport.DatagramListener and transport.Bus.
package logger
