// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Faultline-logger is the logger role over the socket binding. It
// binds a Unix datagram socket and records one tagged entry per
// notification. It never replies and holds no handle to the shared
// region.
//
// On SIGINT or SIGTERM it replays its buffer to the log and, with
// --snapshot, writes the count and entries to stdout as CBOR.
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
		socketPath  string
		bufferSize  int
		logLevel    string
		snapshot    bool
		showVersion bool
	)
	pflag.StringVar(&configPath, "config", "", "configuration file (default: $"+config.EnvConfig+" or built-in defaults)")
	pflag.StringVar(&socketPath, "socket", "", "logger socket path (overrides transport.logger_socket)")
	pflag.IntVar(&bufferSize, "buffer-size", 0, "log buffer capacity in bytes (overrides logger.buffer_size)")
	pflag.StringVar(&logLevel, "log-level", "", "debug, info, warn, or error (overrides log_level)")
	pflag.BoolVar(&snapshot, "snapshot", false, "write the final count and entries to stdout as CBOR")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("faultline-logger %s\n", version.Info())
		return nil
	}

	cfg, err := config.Resolve(configPath)
	if err != nil {
		return err
	}
	if socketPath != "" {
		cfg.Transport.LoggerSocket = socketPath
	}
	if bufferSize != 0 {
		cfg.Logger.BufferSize = bufferSize
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	level, err := process.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	options := supervisor.RoleOptions{Iterations: -1, Log: process.NewLogger("logger", level)}
	if snapshot {
		options.Snapshot = os.Stdout
	}
	return supervisor.RunRole(ctx, supervisor.RoleLogger, cfg, options)
}
