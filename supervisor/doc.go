// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package supervisor runs the harness scenarios and judges whether a
// failing peer stayed contained.
//
// Two bindings are supported. Over the socket binding each role is its
// own process: the supervisor launches the role binaries, waits for
// each one's readiness signal on an inherited pipe, and collects a
// CBOR snapshot from each role's stdout when it exits. Over the
// channel binding the roles are goroutines in the supervisor's own
// process connected by a [transport.Bus].
//
// Scenarios:
//
//   - ipc-demo: logger, server and client. The client runs its rounds
//     and every exchange must return the classified reply.
//   - fault-tolerance: as ipc-demo, but a crasher performs one
//     exchange, notifies the logger and faults before the client
//     starts. The crasher must have died the expected way, the shared
//     region must be unchanged by it, and the client must then see
//     exactly the results it would have seen without the crasher.
//
// [RunRole] is the body of each role binary. The cmd/faultline-*
// programs and the tests' helper processes both call it.
package supervisor
