// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// ReadyEnv names the environment variable holding the readiness fd.
const ReadyEnv = "FAULTLINE_READY_FD"

// ReadyFD is the descriptor number a child sees for the first entry of
// exec.Cmd.ExtraFiles.
const ReadyFD = 3

// ErrNotReady is returned by ReadyPipe.Wait when the child closed its
// end without signalling, usually because it exited during setup.
var ErrNotReady = errors.New("process exited before signalling readiness")

// SignalReady tells the supervising process that this role is serving.
// It writes one byte to the descriptor named by FAULTLINE_READY_FD and
// closes it. Without the variable (a role started by hand) it does
// nothing.
func SignalReady() error {
	value := os.Getenv(ReadyEnv)
	if value == "" {
		return nil
	}
	fd, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parsing %s=%q: %w", ReadyEnv, value, err)
	}
	file := os.NewFile(uintptr(fd), "ready")
	if file == nil {
		return fmt.Errorf("%s=%d is not a valid descriptor", ReadyEnv, fd)
	}
	defer file.Close()
	if _, err := file.Write([]byte{'R'}); err != nil {
		return fmt.Errorf("writing readiness byte: %w", err)
	}
	return nil
}

// ReadyPipe is the supervisor's side of the readiness handshake.
type ReadyPipe struct {
	reader *os.File
	writer *os.File
}

// NewReadyPipe creates the pipe. Pass Child() in exec.Cmd.ExtraFiles
// and Env() in the child's environment, then call ChildStarted once
// the child is running.
func NewReadyPipe() (*ReadyPipe, error) {
	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating readiness pipe: %w", err)
	}
	return &ReadyPipe{reader: reader, writer: writer}, nil
}

// Child returns the write end for the child's ExtraFiles.
func (p *ReadyPipe) Child() *os.File { return p.writer }

// Env returns the environment entry naming the child's descriptor.
func (p *ReadyPipe) Env() string {
	return ReadyEnv + "=" + strconv.Itoa(ReadyFD)
}

// ChildStarted closes the parent's copy of the write end, so Wait sees
// EOF if the child exits without signalling.
func (p *ReadyPipe) ChildStarted() {
	p.writer.Close()
}

// Wait blocks until the child signals, closes its end, the timeout
// elapses, or ctx is cancelled.
func (p *ReadyPipe) Wait(ctx context.Context, timeout time.Duration) error {
	result := make(chan error, 1)
	go func() {
		buffer := make([]byte, 1)
		_, err := io.ReadFull(p.reader, buffer)
		if errors.Is(err, io.EOF) {
			err = ErrNotReady
		}
		result <- err
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-result:
		return err
	case <-timer.C:
		p.reader.Close()
		return fmt.Errorf("no readiness signal within %v", timeout)
	case <-ctx.Done():
		p.reader.Close()
		return ctx.Err()
	}
}

// Close releases both ends.
func (p *ReadyPipe) Close() {
	p.reader.Close()
	p.writer.Close()
}
