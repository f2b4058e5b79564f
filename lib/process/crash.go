// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Crash writes reason to stderr and kills the calling process with
// SIGKILL. It does not return, runs no deferred functions and flushes
// nothing. The Go runtime turns a real invalid-memory access into a
// recoverable panic, so an uncatchable signal is the closest analogue
// to a hardware fault.
func Crash(reason string) {
	fmt.Fprintf(os.Stderr, "fault: %s\n", reason)
	_ = unix.Kill(os.Getpid(), unix.SIGKILL)
	// Signal delivery is asynchronous; never fall through to the caller.
	select {}
}
