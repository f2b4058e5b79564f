// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Faultline-crasher performs one exchange with the server, notifies
// the logger, and then kills itself with SIGKILL. A supervisor that
// sees it die any other way treats the run as failed.
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/faultline/lib/config"
	"github.com/bureau-foundation/faultline/lib/process"
	"github.com/bureau-foundation/faultline/lib/version"
	"github.com/bureau-foundation/faultline/supervisor"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		label       uint64
		logLevel    string
		showVersion bool
	)
	pflag.StringVar(&configPath, "config", "", "configuration file (default: $"+config.EnvConfig+" or built-in defaults)")
	pflag.Uint64Var(&label, "label", 0, "request label to send before faulting (overrides crasher.label)")
	pflag.StringVar(&logLevel, "log-level", "", "debug, info, warn, or error (overrides log_level)")
	// Accepted for symmetry with the other roles; the crasher never
	// gets far enough to write one.
	pflag.Bool("snapshot", false, "ignored")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("faultline-crasher %s\n", version.Info())
		return nil
	}

	cfg, err := config.Resolve(configPath)
	if err != nil {
		return err
	}
	if label != 0 {
		cfg.Crasher.Label = label
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	level, err := process.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return supervisor.RunRole(ctx, supervisor.RoleCrasher, cfg, supervisor.RoleOptions{
		Iterations: -1,
		Log:        process.NewLogger("crasher", level),
	})
}
