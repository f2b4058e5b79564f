// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/faultline/client"
	"github.com/bureau-foundation/faultline/crasher"
	"github.com/bureau-foundation/faultline/lib/config"
	"github.com/bureau-foundation/faultline/lib/region"
	"github.com/bureau-foundation/faultline/lib/report"
	"github.com/bureau-foundation/faultline/logger"
	"github.com/bureau-foundation/faultline/server"
	"github.com/bureau-foundation/faultline/transport"
)

// runGoroutines runs the scenario with every role on its own
// goroutine over a Bus.
func runGoroutines(ctx context.Context, runConfig Config, verdict *Verdict, log *slog.Logger) error {
	harness := runConfig.Harness
	channels := harness.Channels()

	shared, err := region.New(harness.Transport.RegionSize)
	if err != nil {
		return err
	}
	bus := transport.NewBus(transport.BusConfig{
		CallTimeout: harness.Transport.CallTimeout,
		Logger:      log.With("task", "bus"),
	})
	defer bus.Close()

	notifierFor := func(tag logger.Tag) (transport.Notifier, error) {
		if !harness.Client.LoggerEnabled {
			return nil, nil
		}
		channel, err := channels.ChannelFor(tag)
		if err != nil {
			return nil, err
		}
		return bus.LoggerNotifier(channel), nil
	}

	serveContext, stopServing := context.WithCancel(ctx)
	defer stopServing()

	var sink *logger.Logger
	loggerDone := make(chan error, 1)
	if harness.Client.LoggerEnabled {
		sink, err = logger.New(logger.Config{
			BufferSize: harness.Logger.BufferSize,
			Channels:   channels,
			Logger:     log.With("task", string(RoleLogger)),
		})
		if err != nil {
			return err
		}
		go func() { loggerDone <- bus.ServeLogger(serveContext, sink) }()
	} else {
		loggerDone <- nil
	}

	serverConfig := server.Config{
		Region:   shared,
		Response: harness.Server.Response,
		Log:      log.With("task", string(RoleServer)),
	}
	if notifier, err := notifierFor(logger.TagServer); err != nil {
		return err
	} else if notifier != nil {
		serverConfig.Logger = notifier
	}
	srv, err := server.New(serverConfig)
	if err != nil {
		return err
	}
	serverDone := make(chan error, 1)
	go func() { serverDone <- bus.Serve(serveContext, srv) }()

	if verdict.Scenario == FaultTolerance {
		verdict.RegionBefore = shared.Digest()
		status, err := runCrasherGoroutine(ctx, bus, harness, notifierFor, log)
		if err != nil {
			return err
		}
		verdict.Roles = append(verdict.Roles, status)
		verdict.RegionAfter = shared.Digest()
	}

	clientConfig := client.Config{
		Server:         bus.Caller(),
		DataReady:      bus.DataReady(),
		Region:         shared,
		Labels:         harness.RequestLabels(),
		NotifyGap:      harness.Client.NotifyGap,
		RoundPause:     harness.Client.RoundPause,
		MetricsEnabled: harness.Client.MetricsEnabled,
		Log:            log.With("task", string(RoleClient)),
	}
	if notifier, err := notifierFor(logger.TagClient); err != nil {
		return err
	} else if notifier != nil {
		clientConfig.Logger = notifier
	}
	role, err := client.New(clientConfig)
	if err != nil {
		return err
	}
	started := time.Now()
	result, err := role.Run(ctx, harness.Client.Iterations)
	if err != nil {
		return err
	}
	if harness.Client.Report != "" {
		wireCodec, _ := harness.Codec()
		if err := report.Write(harness.Client.Report,
			report.New(result, string(harness.Transport.Binding), wireCodec.Bits(), started)); err != nil {
			return err
		}
		log.Info("latency report written", "path", harness.Client.Report)
	}
	verdict.Client = result
	verdict.Roles = append(verdict.Roles, RoleStatus{Role: RoleClient, Outcome: OutcomeStopped})

	if sink != nil {
		flushContext, cancel := context.WithTimeout(ctx, harness.Supervisor.SettleTimeout)
		err := bus.Flush(flushContext)
		cancel()
		if err != nil {
			verdict.problem("logger: flushing notifications: %v", err)
		}
	}

	stopServing()
	verdict.Roles = append(verdict.Roles,
		goroutineStatus(RoleServer, serverDone, harness.Supervisor.SettleTimeout))
	verdict.Server = srv.Counters()
	if sink != nil {
		verdict.Roles = append(verdict.Roles,
			goroutineStatus(RoleLogger, loggerDone, harness.Supervisor.SettleTimeout))
		verdict.Logger = sink.Snapshot()
	}
	if dropped := bus.DroppedNotifications(); dropped > 0 {
		verdict.problem("bus: %d logger notifications dropped", dropped)
	}
	return nil
}

// runCrasherGoroutine runs a crasher whose fault ends its goroutine
// and reports how the goroutine ended.
func runCrasherGoroutine(
	ctx context.Context,
	bus *transport.Bus,
	harness *config.Config,
	notifierFor func(logger.Tag) (transport.Notifier, error),
	log *slog.Logger,
) (RoleStatus, error) {
	crasherConfig := crasher.Config{
		Server: bus.Caller(),
		Label:  harness.CrasherLabel(),
		Fault:  crasher.GoroutineFault{},
		Log:    log.With("task", string(RoleCrasher)),
	}
	if notifier, err := notifierFor(logger.TagCrasher); err != nil {
		return RoleStatus{}, err
	} else if notifier != nil {
		crasherConfig.Logger = notifier
	}
	role, err := crasher.New(crasherConfig)
	if err != nil {
		return RoleStatus{}, err
	}

	type exit struct {
		returned bool
		err      error
	}
	done := make(chan exit, 1)
	go func() {
		var ended exit
		// Runs on Goexit as well as on return.
		defer func() { done <- ended }()
		ended.err = role.Run(ctx)
		ended.returned = true
	}()

	timer := time.NewTimer(harness.Supervisor.SettleTimeout)
	defer timer.Stop()
	select {
	case ended := <-done:
		if ended.returned {
			return RoleStatus{Role: RoleCrasher, Outcome: OutcomeReturned, Detail: fmt.Sprint(ended.err)}, nil
		}
		log.Info("crasher terminated", "outcome", string(OutcomeGoexit))
		return RoleStatus{Role: RoleCrasher, Outcome: OutcomeGoexit}, nil
	case <-timer.C:
		return RoleStatus{
			Role:    RoleCrasher,
			Outcome: OutcomeFailed,
			Detail:  fmt.Sprintf("still running after %v", harness.Supervisor.SettleTimeout),
		}, nil
	case <-ctx.Done():
		return RoleStatus{}, ctx.Err()
	}
}

// goroutineStatus waits for a serving goroutine to return after
// cancellation.
func goroutineStatus(role Role, done <-chan error, timeout time.Duration) RoleStatus {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil {
			return RoleStatus{Role: role, Outcome: OutcomeFailed, Detail: err.Error()}
		}
		return RoleStatus{Role: role, Outcome: OutcomeStopped}
	case <-timer.C:
		return RoleStatus{Role: role, Outcome: OutcomeFailed, Detail: fmt.Sprintf("still serving after %v", timeout)}
	}
}
