// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the entrypoint helpers shared by the role
// binaries: the code that runs before a role has a logger, after it has
// given up, and at the edges of its lifetime.
//
//   - [Fatal] reports an unrecoverable error from run() and exits 1.
//   - [NewLogger] builds a role's slog logger: text on a terminal,
//     JSON otherwise, every record tagged with the role name.
//   - [SignalReady] and [ReadyPipe] implement the startup handshake.
//     A supervisor hands each child the write end of a pipe as fd 3
//     and names it in FAULTLINE_READY_FD; the child writes one byte
//     once it is listening, and the supervisor waits for that byte
//     with a bounded timeout.
//   - [Crash] terminates the process abnormally with SIGKILL. The
//     crasher role uses it as its induced fault.
//
// This package and lib/version are the only non-CLI code that writes
// to stderr directly.
package process
