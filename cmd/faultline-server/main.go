// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Faultline-server is the server role over the socket binding. It
// creates the shared region, answers request frames on a Unix stream
// socket, and notifies the logger after each shared region handoff.
//
// It serves until SIGINT or SIGTERM. With --snapshot it then writes
// its counters to stdout as CBOR for the supervisor.
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
		regionPath  string
		response    string
		logLevel    string
		snapshot    bool
		showVersion bool
	)
	pflag.StringVar(&configPath, "config", "", "configuration file (default: $"+config.EnvConfig+" or built-in defaults)")
	pflag.StringVar(&socketPath, "socket", "", "server socket path (overrides transport.server_socket)")
	pflag.StringVar(&regionPath, "region", "", "shared region file (overrides transport.region_path)")
	pflag.StringVar(&response, "response", "", "text written into the region after each handoff")
	pflag.StringVar(&logLevel, "log-level", "", "debug, info, warn, or error (overrides log_level)")
	pflag.BoolVar(&snapshot, "snapshot", false, "write final counters to stdout as CBOR")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Printf("faultline-server %s\n", version.Info())
		return nil
	}

	cfg, err := config.Resolve(configPath)
	if err != nil {
		return err
	}
	if socketPath != "" {
		cfg.Transport.ServerSocket = socketPath
	}
	if regionPath != "" {
		cfg.Transport.RegionPath = regionPath
	}
	if response != "" {
		cfg.Server.Response = response
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

	options := supervisor.RoleOptions{Iterations: -1, Log: process.NewLogger("server", level)}
	if snapshot {
		options.Snapshot = os.Stdout
	}
	return supervisor.RunRole(ctx, supervisor.RoleServer, cfg, options)
}
