// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Faultline-client is the client role over the socket binding. Each
// round it sends two timed requests, hands a payload to the server
// through the shared region, and notifies the logger. It exits after
// the last round, logging avg/min/max latency when metrics are on.
//
// The server must already be running: the client opens the region
// the server created.
package main

import (
	"context"
	"fmt"
	"os"
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
		iterations  int
		reportPath  string
		noLogger    bool
		noMetrics   bool
		logLevel    string
		snapshot    bool
		showVersion bool
	)
	pflag.StringVar(&configPath, "config", "", "configuration file (default: $"+config.EnvConfig+" or built-in defaults)")
	pflag.IntVarP(&iterations, "iterations", "n", -1, "rounds to run (overrides client.iterations)")
	pflag.StringVar(&reportPath, "report", "", "latency report path: .csv or .cbor, optionally .zst or .lz4")
	pflag.BoolVar(&noLogger, "no-logger", false, "do not notify the logger")
	pflag.BoolVar(&noMetrics, "no-metrics", false, "do not log per-exchange metrics or the summary")
	pflag.StringVar(&logLevel, "log-level", "", "debug, info, warn, or error (overrides log_level)")
	pflag.BoolVar(&snapshot, "snapshot", false, "write the run result to stdout as CBOR")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("faultline-client %s\n", version.Info())
		return nil
	}

	cfg, err := config.Resolve(configPath)
	if err != nil {
		return err
	}
	if reportPath != "" {
		cfg.Client.Report = reportPath
	}
	if noLogger {
		cfg.Client.LoggerEnabled = false
	}
	if noMetrics {
		cfg.Client.MetricsEnabled = false
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

	options := supervisor.RoleOptions{Iterations: iterations, Log: process.NewLogger("client", level)}
	if snapshot {
		options.Snapshot = os.Stdout
	}
	return supervisor.RunRole(ctx, supervisor.RoleClient, cfg, options)
}
