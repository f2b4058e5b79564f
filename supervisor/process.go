// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/bureau-foundation/faultline/lib/codec"
	"github.com/bureau-foundation/faultline/lib/config"
	"github.com/bureau-foundation/faultline/lib/process"
	"github.com/bureau-foundation/faultline/lib/region"
)

// child is one running role process.
type child struct {
	role    Role
	command *exec.Cmd
	stdout  bytes.Buffer
	done    chan struct{}
	waitErr error
}

// status classifies the exit of a finished child.
func (c *child) status() RoleStatus {
	state := c.command.ProcessState
	if state == nil {
		return RoleStatus{Role: c.role, Outcome: OutcomeFailed, Detail: fmt.Sprint(c.waitErr)}
	}
	if waitStatus, ok := state.Sys().(syscall.WaitStatus); ok && waitStatus.Signaled() {
		return RoleStatus{Role: c.role, Outcome: OutcomeKilled, Detail: waitStatus.Signal().String()}
	}
	if state.ExitCode() != 0 {
		return RoleStatus{Role: c.role, Outcome: OutcomeFailed, Detail: fmt.Sprintf("exit status %d", state.ExitCode())}
	}
	return RoleStatus{Role: c.role, Outcome: OutcomeStopped}
}

// snapshot decodes the CBOR item the role wrote to stdout. At debug
// level the raw item is also logged in diagnostic notation.
func (c *child) snapshot(ctx context.Context, target any, log *slog.Logger) error {
	if c.stdout.Len() == 0 {
		return fmt.Errorf("%s wrote no snapshot", c.role)
	}
	if log.Enabled(ctx, slog.LevelDebug) {
		if diagnostic, err := codec.Diagnose(c.stdout.Bytes()); err == nil {
			log.Debug("role snapshot", "role", string(c.role), "cbor", diagnostic)
		}
	}
	if err := codec.Unmarshal(c.stdout.Bytes(), target); err != nil {
		return fmt.Errorf("decoding %s snapshot: %w", c.role, err)
	}
	return nil
}

// launcher starts role processes and waits for their readiness.
type launcher struct {
	command      CommandFunc
	configPath   string
	logLevel     string
	stderr       io.Writer
	readyTimeout time.Duration
	log          *slog.Logger
}

func (l *launcher) start(ctx context.Context, role Role) (*child, error) {
	args := []string{"--config", l.configPath, "--snapshot"}
	if l.logLevel != "" {
		args = append(args, "--log-level", l.logLevel)
	}
	command, err := l.command(ctx, role, args)
	if err != nil {
		return nil, err
	}

	pipe, err := process.NewReadyPipe()
	if err != nil {
		return nil, err
	}
	defer pipe.Close()

	started := &child{role: role, command: command, done: make(chan struct{})}
	command.Stdout = &started.stdout
	command.Stderr = l.stderr
	command.ExtraFiles = []*os.File{pipe.Child()} // fd 3 in the child
	command.Env = append(command.Environ(), pipe.Env())

	if err := command.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", role, err)
	}
	pipe.ChildStarted()
	go func() {
		started.waitErr = command.Wait()
		close(started.done)
	}()

	if err := pipe.Wait(ctx, l.readyTimeout); err != nil {
		command.Process.Kill()
		<-started.done
		return nil, fmt.Errorf("%s did not become ready: %w", role, err)
	}
	l.log.Info("role ready", "role", string(role), "pid", command.Process.Pid)
	return started, nil
}

// await waits for a child to exit on its own.
func await(ctx context.Context, c *child) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		c.command.Process.Kill()
		<-c.done
		return ctx.Err()
	}
}

// stop sends SIGTERM and waits up to timeout before killing.
func stop(c *child, timeout time.Duration) {
	select {
	case <-c.done:
		return
	default:
	}
	c.command.Process.Signal(syscall.SIGTERM)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.done:
	case <-timer.C:
		c.command.Process.Kill()
		<-c.done
	}
}

// binaryCommand runs the installed role binaries.
func binaryCommand(harness *config.Config) CommandFunc {
	return func(ctx context.Context, role Role, args []string) (*exec.Cmd, error) {
		path, err := harness.BinaryPath(role.Binary())
		if err != nil {
			return nil, err
		}
		return exec.CommandContext(ctx, path, args...), nil
	}
}

// runProcesses runs the scenario with one process per role.
func runProcesses(ctx context.Context, runConfig Config, verdict *Verdict, log *slog.Logger) error {
	harness := runConfig.Harness
	if err := harness.EnsurePaths(); err != nil {
		return err
	}
	configFile, err := os.CreateTemp(harness.Paths.Run, "faultline-*.yaml")
	if err != nil {
		return fmt.Errorf("creating effective config: %w", err)
	}
	configFile.Close()
	configPath := configFile.Name()
	defer os.Remove(configPath)
	if err := harness.WriteFile(configPath); err != nil {
		return err
	}

	command := runConfig.Command
	if command == nil {
		command = binaryCommand(harness)
	}
	launch := &launcher{
		command:      command,
		configPath:   configPath,
		logLevel:     runConfig.LogLevel,
		stderr:       runConfig.Stderr,
		readyTimeout: harness.Supervisor.ReadyTimeout,
		log:          log,
	}
	settle := harness.Supervisor.SettleTimeout

	var (
		services    []*child
		serverChild *child
	)
	defer func() {
		for _, service := range services {
			stop(service, settle)
		}
	}()

	var loggerChild *child
	if harness.Client.LoggerEnabled {
		started, err := launch.start(ctx, RoleLogger)
		if err != nil {
			return err
		}
		loggerChild = started
		services = append(services, started)
	}
	serverChild, err = launch.start(ctx, RoleServer)
	if err != nil {
		return err
	}
	services = append(services, serverChild)

	if verdict.Scenario == FaultTolerance {
		if err := runCrasherProcess(ctx, launch, harness, verdict, log); err != nil {
			return err
		}
	}

	clientChild, err := launch.start(ctx, RoleClient)
	if err != nil {
		return err
	}
	if err := await(ctx, clientChild); err != nil {
		return err
	}
	verdict.Roles = append(verdict.Roles, clientChild.status())
	if err := clientChild.snapshot(ctx, &verdict.Client, log); err != nil {
		verdict.problem("%v", err)
	}

	// Stop the logger after the server, so a notification the server
	// sent during shutdown is still counted.
	stop(serverChild, settle)
	verdict.Roles = append(verdict.Roles, serverChild.status())
	if err := serverChild.snapshot(ctx, &verdict.Server, log); err != nil {
		verdict.problem("%v", err)
	}
	if loggerChild != nil {
		stop(loggerChild, settle)
		verdict.Roles = append(verdict.Roles, loggerChild.status())
		if err := loggerChild.snapshot(ctx, &verdict.Logger, log); err != nil {
			verdict.problem("%v", err)
		}
	}
	return nil
}

// runCrasherProcess runs the crasher to completion and records the
// region digest on either side of it.
func runCrasherProcess(ctx context.Context, launch *launcher, harness *config.Config, verdict *Verdict, log *slog.Logger) error {
	shared, err := region.Open(harness.Transport.RegionPath, harness.Transport.RegionSize)
	if err != nil {
		return fmt.Errorf("opening shared region: %w", err)
	}
	defer shared.Close()
	verdict.RegionBefore = shared.Digest()

	crasherChild, err := launch.start(ctx, RoleCrasher)
	if err != nil {
		return err
	}
	awaitContext, cancel := context.WithTimeout(ctx, harness.Supervisor.SettleTimeout)
	defer cancel()
	status := RoleStatus{Role: RoleCrasher}
	switch err := await(awaitContext, crasherChild); {
	case err == nil:
		status = crasherChild.status()
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		status.Outcome = OutcomeFailed
		status.Detail = fmt.Sprintf("still running after %v", harness.Supervisor.SettleTimeout)
	default:
		return err
	}
	verdict.Roles = append(verdict.Roles, status)
	log.Info("crasher terminated", "outcome", string(status.Outcome), "detail", status.Detail)

	verdict.RegionAfter = shared.Digest()
	return nil
}
