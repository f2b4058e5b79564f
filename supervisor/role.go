// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bureau-foundation/faultline/client"
	"github.com/bureau-foundation/faultline/crasher"
	"github.com/bureau-foundation/faultline/lib/clock"
	"github.com/bureau-foundation/faultline/lib/codec"
	"github.com/bureau-foundation/faultline/lib/config"
	"github.com/bureau-foundation/faultline/lib/process"
	"github.com/bureau-foundation/faultline/lib/region"
	"github.com/bureau-foundation/faultline/lib/report"
	"github.com/bureau-foundation/faultline/logger"
	"github.com/bureau-foundation/faultline/server"
	"github.com/bureau-foundation/faultline/transport"
)

// Role names one of the harness roles.
type Role string

const (
	RoleServer  Role = "server"
	RoleClient  Role = "client"
	RoleLogger  Role = "logger"
	RoleCrasher Role = "crasher"
)

// Binary is the role's executable name.
func (r Role) Binary() string { return "faultline-" + string(r) }

// ParseRole maps a role name to a Role.
func ParseRole(name string) (Role, error) {
	switch role := Role(name); role {
	case RoleServer, RoleClient, RoleLogger, RoleCrasher:
		return role, nil
	}
	return "", fmt.Errorf("unknown role %q (want server, client, logger, or crasher)", name)
}

// RoleOptions configures RunRole.
type RoleOptions struct {
	// Snapshot receives the role's final state as one CBOR item when
	// the role finishes: server.Counters for the server,
	// logger.Snapshot for the logger, client.Result for the client.
	// Nil writes nothing. The crasher never finishes.
	Snapshot io.Writer

	// Iterations overrides cfg.Client.Iterations when non-negative.
	Iterations int

	Log *slog.Logger
}

// RunRole runs one role over the socket binding until its work is done
// or ctx is cancelled. The server and logger serve until cancelled;
// the client returns after its rounds; the crasher does not return.
// Readiness is signalled once the role can accept traffic.
func RunRole(ctx context.Context, role Role, cfg *config.Config, options RoleOptions) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Transport.Binding != config.BindingSocket {
		return fmt.Errorf("role processes need the %q binding, configuration has %q",
			config.BindingSocket, cfg.Transport.Binding)
	}
	log := process.Discard(options.Log)

	switch role {
	case RoleServer:
		return runServer(ctx, cfg, options, log)
	case RoleLogger:
		return runLogger(ctx, cfg, options, log)
	case RoleClient:
		return runClient(ctx, cfg, options, log)
	case RoleCrasher:
		return runCrasher(ctx, cfg, log)
	}
	return fmt.Errorf("unknown role %q", role)
}

// loggerNotifier returns a datagram notifier identifying as tag, or
// nil when the logger is disabled.
func loggerNotifier(cfg *config.Config, tag logger.Tag, note string) (*transport.DatagramNotifier, error) {
	if !cfg.Client.LoggerEnabled {
		return nil, nil
	}
	channel, err := cfg.Channels().ChannelFor(tag)
	if err != nil {
		return nil, err
	}
	return transport.NewDatagramNotifier(cfg.Transport.LoggerSocket, channel, note), nil
}

// serve runs a listener until ctx is cancelled, signalling readiness
// once it is bound. An error before readiness is a setup failure.
func serve(ctx context.Context, run func(context.Context) error, ready <-chan struct{}) error {
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	select {
	case <-ready:
	case err := <-done:
		if err == nil {
			return ctx.Err()
		}
		return err
	}
	if err := process.SignalReady(); err != nil {
		return err
	}
	return <-done
}

func writeSnapshot(w io.Writer, value any) error {
	if w == nil {
		return nil
	}
	if err := codec.NewEncoder(w).Encode(value); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

func runServer(ctx context.Context, cfg *config.Config, options RoleOptions, log *slog.Logger) error {
	wireCodec, err := cfg.Codec()
	if err != nil {
		return err
	}
	shared, err := region.Create(cfg.Transport.RegionPath, cfg.Transport.RegionSize)
	if err != nil {
		return err
	}
	defer func() {
		shared.Close()
		shared.Remove()
	}()
	log.Info("shared region created", "path", shared.Path(), "capacity", shared.Capacity())

	serverConfig := server.Config{
		Region:   shared,
		Response: cfg.Server.Response,
		Log:      log,
	}
	notifier, err := loggerNotifier(cfg, logger.TagServer, "shared region processed")
	if err != nil {
		return err
	}
	if notifier != nil {
		serverConfig.Logger = notifier
	}
	srv, err := server.New(serverConfig)
	if err != nil {
		return err
	}

	socket := transport.NewSocketServer(transport.SocketServerConfig{
		SocketPath:  cfg.Transport.ServerSocket,
		Codec:       wireCodec,
		Handler:     srv,
		ReadTimeout: cfg.Transport.ReadTimeout,
		Logger:      log,
	})
	if err := serve(ctx, socket.Serve, socket.Ready()); err != nil {
		return err
	}

	counters := srv.Counters()
	log.Info("server stopped",
		"requests", counters.Requests,
		"unknown", counters.Unknown,
		"notifications", counters.Notifications,
	)
	return writeSnapshot(options.Snapshot, counters)
}

func runLogger(ctx context.Context, cfg *config.Config, options RoleOptions, log *slog.Logger) error {
	sink, err := logger.New(logger.Config{
		BufferSize: cfg.Logger.BufferSize,
		Channels:   cfg.Channels(),
		Logger:     log,
	})
	if err != nil {
		return err
	}
	listener := transport.NewDatagramListener(cfg.Transport.LoggerSocket, sink, log)
	if err := serve(ctx, listener.Serve, listener.Ready()); err != nil {
		return err
	}

	snapshot := sink.Snapshot()
	log.Info("logger stopped", "log_count", snapshot.Count)
	for _, line := range snapshot.Entries {
		log.Info("log entry", "entry", line)
	}
	return writeSnapshot(options.Snapshot, snapshot)
}

func runClient(ctx context.Context, cfg *config.Config, options RoleOptions, log *slog.Logger) error {
	wireCodec, err := cfg.Codec()
	if err != nil {
		return err
	}
	shared, err := region.Open(cfg.Transport.RegionPath, cfg.Transport.RegionSize)
	if err != nil {
		return fmt.Errorf("%w: %w", transport.ErrUnavailable, err)
	}
	defer shared.Close()

	clientConfig := client.Config{
		Server: transport.NewSocketCaller(cfg.Transport.ServerSocket, wireCodec,
			cfg.Transport.CallTimeout, clock.Monotonic(clock.Real())),
		DataReady:      transport.NewSocketNotifier(cfg.Transport.ServerSocket, wireCodec, cfg.Transport.CallTimeout),
		Region:         shared,
		Labels:         cfg.RequestLabels(),
		NotifyGap:      cfg.Client.NotifyGap,
		RoundPause:     cfg.Client.RoundPause,
		MetricsEnabled: cfg.Client.MetricsEnabled,
		Log:            log,
	}
	notifier, err := loggerNotifier(cfg, logger.TagClient, "client round complete")
	if err != nil {
		return err
	}
	if notifier != nil {
		clientConfig.Logger = notifier
	}
	role, err := client.New(clientConfig)
	if err != nil {
		return err
	}

	if err := process.SignalReady(); err != nil {
		return err
	}

	iterations := cfg.Client.Iterations
	if options.Iterations >= 0 {
		iterations = options.Iterations
	}
	started := time.Now()
	result, err := role.Run(ctx, iterations)
	if err != nil {
		return err
	}

	if cfg.Client.Report != "" {
		if err := report.Write(cfg.Client.Report,
			report.New(result, string(cfg.Transport.Binding), wireCodec.Bits(), started)); err != nil {
			return err
		}
		log.Info("latency report written", "path", cfg.Client.Report)
	}
	return writeSnapshot(options.Snapshot, result)
}

func runCrasher(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	wireCodec, err := cfg.Codec()
	if err != nil {
		return err
	}
	crasherConfig := crasher.Config{
		Server: transport.NewSocketCaller(cfg.Transport.ServerSocket, wireCodec,
			cfg.Transport.CallTimeout, clock.Monotonic(clock.Real())),
		Label: cfg.CrasherLabel(),
		Fault: crasher.ProcessFault{},
		Log:   log,
	}
	notifier, err := loggerNotifier(cfg, logger.TagCrasher, "crasher about to fault")
	if err != nil {
		return err
	}
	if notifier != nil {
		crasherConfig.Logger = notifier
	}
	role, err := crasher.New(crasherConfig)
	if err != nil {
		return err
	}
	if err := process.SignalReady(); err != nil {
		return err
	}
	return role.Run(ctx)
}
