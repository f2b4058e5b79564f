// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Faultline runs a harness scenario and prints the verdict.
//
//	faultline [--scenario fault-tolerance] [--binding socket|channel] [-n 10]
//
// Over the socket binding the role binaries (faultline-server,
// faultline-client, faultline-logger, faultline-crasher) must be in
// paths.bin or on PATH. The exit status is 0 when every containment
// check passed and 1 otherwise.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

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
		scenario    string
		binding     string
		iterations  int
		labelWidth  int
		reportPath  string
		benchmark   bool
		logLevel    string
		noColor     bool
		showVersion bool
	)
	pflag.StringVar(&configPath, "config", "", "configuration file (default: $"+config.EnvConfig+" or built-in defaults)")
	pflag.StringVarP(&scenario, "scenario", "s", string(supervisor.FaultTolerance), "scenario to run: ipc-demo or fault-tolerance")
	pflag.StringVarP(&binding, "binding", "b", "", "transport binding: socket or channel (overrides transport.binding)")
	pflag.IntVarP(&iterations, "iterations", "n", -1, "client rounds (overrides client.iterations)")
	pflag.IntVar(&labelWidth, "label-width", 0, "label width in bits, 32 or 64 (overrides transport.label_width)")
	pflag.StringVar(&reportPath, "report", "", "latency report path: .csv or .cbor, optionally .zst or .lz4")
	pflag.BoolVar(&benchmark, "benchmark", false, "use the benchmark environment (no pauses between steps)")
	pflag.StringVar(&logLevel, "log-level", "", "debug, info, warn, or error (overrides log_level)")
	pflag.BoolVar(&noColor, "no-color", false, "disable colour in the summary")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("faultline %s\n", version.Full())
		return nil
	}

	selected, err := supervisor.ParseScenario(scenario)
	if err != nil {
		return err
	}
	cfg, err := config.Resolve(configPath)
	if err != nil {
		return err
	}
	if benchmark {
		cfg.Environment = config.Benchmark
		cfg.Client.NotifyGap = 0
		cfg.Client.RoundPause = 0
	}
	if binding != "" {
		cfg.Transport.Binding = config.Binding(binding)
	}
	if iterations >= 0 {
		cfg.Client.Iterations = iterations
	}
	if labelWidth != 0 {
		cfg.Transport.LabelWidth = labelWidth
	}
	if reportPath != "" {
		cfg.Client.Report = reportPath
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

	verdict, err := supervisor.Run(ctx, supervisor.Config{
		Harness:  cfg,
		Scenario: selected,
		Stderr:   os.Stderr,
		LogLevel: cfg.LogLevel,
		Log:      process.NewLogger("supervisor", level),
	})
	if err != nil {
		return err
	}

	color := !noColor && term.IsTerminal(int(os.Stdout.Fd()))
	fmt.Fprint(os.Stdout, renderVerdict(os.Stdout, verdict, color))
	if !verdict.Passed {
		return errors.New("scenario failed: " + strings.Join(verdict.Problems, "; "))
	}
	return nil
}
