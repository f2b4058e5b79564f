// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"slices"

	"github.com/bureau-foundation/faultline/client"
	"github.com/bureau-foundation/faultline/lib/config"
	"github.com/bureau-foundation/faultline/lib/process"
	"github.com/bureau-foundation/faultline/logger"
	"github.com/bureau-foundation/faultline/server"
)

// Scenario names a harness run.
type Scenario string

const (
	IPCDemo        Scenario = "ipc-demo"
	FaultTolerance Scenario = "fault-tolerance"
)

// ParseScenario maps a scenario name to a Scenario.
func ParseScenario(name string) (Scenario, error) {
	switch scenario := Scenario(name); scenario {
	case IPCDemo, FaultTolerance:
		return scenario, nil
	}
	return "", fmt.Errorf("unknown scenario %q (want %s or %s)", name, IPCDemo, FaultTolerance)
}

// CommandFunc builds the command for a role process. args are the
// arguments the role binary must receive.
type CommandFunc func(ctx context.Context, role Role, args []string) (*exec.Cmd, error)

// Config configures Run.
type Config struct {
	// Harness is the validated harness configuration. Required.
	Harness *config.Config

	Scenario Scenario

	// Command builds role processes for the socket binding. Nil runs
	// the role binaries found through Harness.BinaryPath.
	Command CommandFunc

	// Stderr receives the role processes' stderr. Nil discards it.
	Stderr io.Writer

	// LogLevel is passed to role processes.
	LogLevel string

	Log *slog.Logger
}

// Outcome is how a role ended.
type Outcome string

const (
	// OutcomeStopped is a clean exit, after cancellation for the
	// server and logger or after its rounds for the client.
	OutcomeStopped Outcome = "stopped"

	// OutcomeFailed is a non-zero exit or an error return.
	OutcomeFailed Outcome = "failed"

	// OutcomeKilled is death by signal.
	OutcomeKilled Outcome = "killed"

	// OutcomeGoexit is a goroutine ended by runtime.Goexit.
	OutcomeGoexit Outcome = "goexit"

	// OutcomeReturned is a crasher whose fault returned control.
	OutcomeReturned Outcome = "returned"
)

// RoleStatus records how one role ended.
type RoleStatus struct {
	Role    Role    `cbor:"role"`
	Outcome Outcome `cbor:"outcome"`
	Detail  string  `cbor:"detail,omitempty"`
}

// Verdict is the result of a scenario run.
type Verdict struct {
	Scenario   Scenario       `cbor:"scenario"`
	Binding    config.Binding `cbor:"binding"`
	Iterations int            `cbor:"iterations"`

	Roles []RoleStatus `cbor:"roles"`

	Client client.Result   `cbor:"client"`
	Server server.Counters `cbor:"server"`
	Logger logger.Snapshot `cbor:"logger"`

	// ExpectedEntries is the log sequence a contained run produces,
	// before buffer saturation.
	ExpectedEntries []string `cbor:"expected_entries"`

	// RegionBefore and RegionAfter are digests of the shared region
	// taken around the crasher's run. Both are zero in ipc-demo.
	RegionBefore [32]byte `cbor:"region_before"`
	RegionAfter  [32]byte `cbor:"region_after"`

	// Problems lists every check that failed. Empty means Passed.
	Problems []string `cbor:"problems"`
	Passed   bool     `cbor:"passed"`
}

// Status returns the recorded status of role.
func (v *Verdict) Status(role Role) (RoleStatus, bool) {
	for _, status := range v.Roles {
		if status.Role == role {
			return status, true
		}
	}
	return RoleStatus{}, false
}

// RegionIntact reports whether the crasher left the region unchanged.
func (v *Verdict) RegionIntact() bool { return v.RegionBefore == v.RegionAfter }

// Run executes config.Scenario and returns the verdict. An error means
// the harness itself could not run (a role failed to start, a binary
// is missing); a run that completed with failed checks returns a
// verdict with Passed false and a nil error.
func Run(ctx context.Context, runConfig Config) (*Verdict, error) {
	if runConfig.Harness == nil {
		return nil, errors.New("supervisor requires a harness configuration")
	}
	if _, err := ParseScenario(string(runConfig.Scenario)); err != nil {
		return nil, err
	}
	harness := runConfig.Harness
	if err := harness.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	verdict := &Verdict{
		Scenario:        runConfig.Scenario,
		Binding:         harness.Transport.Binding,
		Iterations:      harness.Client.Iterations,
		ExpectedEntries: expectedEntries(runConfig.Scenario, harness),
	}
	log := process.Discard(runConfig.Log).With("scenario", string(runConfig.Scenario))

	var err error
	switch harness.Transport.Binding {
	case config.BindingSocket:
		err = runProcesses(ctx, runConfig, verdict, log)
	case config.BindingChannel:
		err = runGoroutines(ctx, runConfig, verdict, log)
	}
	if err != nil {
		return nil, err
	}

	verdict.evaluate(harness)
	if verdict.Passed {
		log.Info("scenario passed")
	} else {
		log.Error("scenario failed", "problems", len(verdict.Problems))
	}
	return verdict, nil
}

// expectedEntries is the logger's entry sequence for a contained run.
func expectedEntries(scenario Scenario, harness *config.Config) []string {
	if !harness.Client.LoggerEnabled {
		return nil
	}
	var entries []string
	if scenario == FaultTolerance {
		entries = append(entries, string(logger.TagCrasher))
	}
	for range harness.Client.Iterations {
		entries = append(entries, string(logger.TagServer), string(logger.TagClient))
	}
	return entries
}

func (v *Verdict) problem(format string, args ...any) {
	v.Problems = append(v.Problems, fmt.Sprintf(format, args...))
}

// evaluate checks the collected state against what a contained run
// must produce.
func (v *Verdict) evaluate(harness *config.Config) {
	for _, role := range []Role{RoleServer, RoleClient, RoleLogger} {
		if role == RoleLogger && !harness.Client.LoggerEnabled {
			continue
		}
		status, ok := v.Status(role)
		switch {
		case !ok:
			v.problem("%s: no status recorded", role)
		case status.Outcome != OutcomeStopped:
			v.problem("%s: ended %s %s", role, status.Outcome, status.Detail)
		}
	}

	if v.Scenario == FaultTolerance {
		status, ok := v.Status(RoleCrasher)
		expected := OutcomeKilled
		if v.Binding == config.BindingChannel {
			expected = OutcomeGoexit
		}
		if !ok || status.Outcome != expected {
			v.problem("crasher: ended %s %s, want %s", status.Outcome, status.Detail, expected)
		}
		if !v.RegionIntact() {
			v.problem("shared region changed across the crasher's fault")
		}
	}

	result := v.Client
	if result.Rounds != v.Iterations {
		v.problem("client: completed %d of %d rounds", result.Rounds, v.Iterations)
	}
	if want := uint64(2 * v.Iterations); result.Stats.Count != want {
		v.problem("client: %d samples, want %d", result.Stats.Count, want)
	}
	if result.Gaps > 0 {
		v.problem("client: %d exchanges produced no reply", result.Gaps)
	}
	if result.Mismatches > 0 {
		v.problem("client: %d replies had the wrong label", result.Mismatches)
	}
	if result.NotifyErrors > 0 {
		v.problem("client: %d notifications failed", result.NotifyErrors)
	}

	if v.Server.Notifications != uint64(v.Iterations) {
		v.problem("server: handled %d shared region notifications, want %d", v.Server.Notifications, v.Iterations)
	}
	if v.Server.LoggerErrors > 0 {
		v.problem("server: %d logger notifications failed", v.Server.LoggerErrors)
	}

	if harness.Client.LoggerEnabled {
		if want := uint64(len(v.ExpectedEntries)); v.Logger.Count != want {
			v.problem("logger: log_count %d, want %d", v.Logger.Count, want)
		}
		// Saturation keeps a prefix of the sequence.
		entries := v.Logger.Entries
		if len(entries) > len(v.ExpectedEntries) || !slices.Equal(entries, v.ExpectedEntries[:len(entries)]) {
			v.problem("logger: entries %q are not a prefix of %q", entries, v.ExpectedEntries)
		}
	}

	v.Passed = len(v.Problems) == 0
}
