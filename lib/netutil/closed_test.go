// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
)

func TestIsExpectedCloseError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"wrapped eof", fmt.Errorf("reading reply: %w", io.EOF), true},
		{"closed", net.ErrClosed, true},
		{"broken pipe", &net.OpError{Op: "write", Err: os.NewSyscallError("write", syscall.EPIPE)}, true},
		{"reset", &net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNRESET)}, true},
		{"refused", syscall.ECONNREFUSED, false},
		{"other", errors.New("boom"), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsExpectedCloseError(test.err); got != test.want {
				t.Errorf("IsExpectedCloseError(%v) = %v, want %v", test.err, got, test.want)
			}
		})
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(fmt.Errorf("read: %w", os.ErrDeadlineExceeded)) {
		t.Error("wrapped deadline error not classified as timeout")
	}
	if IsTimeout(io.EOF) {
		t.Error("EOF classified as timeout")
	}
}

func TestIsUnavailable(t *testing.T) {
	directory := t.TempDir()
	_, err := net.Dial("unix", directory+"/absent.sock")
	if !IsUnavailable(err) {
		t.Errorf("dial to missing socket: IsUnavailable(%v) = false", err)
	}
	if IsUnavailable(io.EOF) {
		t.Error("EOF classified as unavailable")
	}
}
