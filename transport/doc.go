// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries the harness protocol between roles.
//
// Roles see three small interfaces. A [Caller] performs a blocking
// request/reply exchange with the server. A [Notifier] sends a one-way
// notification to one fixed peer. A [Handler] (the server) turns an
// inbound label into an optional reply. A [Sink] (the logger) receives
// "notification from channel N" events. Role packages declare the
// same method sets locally; the types here satisfy them.
//
// Two bindings implement the interfaces.
//
// The socket binding runs each role in its own process. The server
// listens on a Unix stream socket ([SocketServer]) and handles one
// frame per connection, one connection at a time. [SocketCaller] opens
// a connection per exchange, and [SocketNotifier] opens one to send
// the label-only data-ready frame. The logger binds a Unix datagram
// socket ([DatagramListener]); [DatagramNotifier] sends one CBOR
// [Notification] per event.
//
// The channel binding ([Bus]) runs roles as goroutines in one process.
// Each call carries its own buffered reply channel, so a caller that
// disappears mid-exchange never blocks the server, and logger delivery
// never blocks the sender.
//
// Every exchange is bounded. A call that gets no reply within its
// timeout fails with [ErrTimeout] instead of hanging. Failures carry
// one of the sentinel errors below, wrapped in a [*CallError]:
//
//   - [ErrUnavailable]: nothing is serving at the peer's address.
//   - [ErrTimeout]: no reply within the call timeout.
//   - [ErrPeerClosed]: the peer closed or reset the exchange.
//   - wire.ErrIncompleteMessage: the peer sent part of a frame.
package transport
