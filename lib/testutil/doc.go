// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds helpers shared by faultline's package tests.
//
// [SocketDir] returns a short directory under /tmp for Unix socket
// files; t.TempDir paths can exceed the 108-byte sun_path limit.
// [RequireReceive], [RequireClosed] and [RequireQuiet] bound channel
// waits so a broken role fails the test instead of hanging it.
// [UniqueID] produces distinct names for sockets and regions created
// by parallel tests.
//
// Helpers call t.Fatalf rather than returning errors.
package testutil
