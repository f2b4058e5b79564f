// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/faultline/lib/clock"
	"github.com/bureau-foundation/faultline/lib/region"
	"github.com/bureau-foundation/faultline/lib/testutil"
	"github.com/bureau-foundation/faultline/lib/wire"
	"github.com/bureau-foundation/faultline/logger"
	"github.com/bureau-foundation/faultline/server"
)

func startBus(t *testing.T, config BusConfig) (*Bus, *region.Region, *logger.Logger) {
	t.Helper()
	shared, _ := region.New(region.DefaultCapacity)
	log, _ := logger.New(logger.Config{})
	bus := NewBus(config)
	srv, err := server.New(server.Config{Region: shared, Logger: bus.LoggerNotifier(logger.ServerChannel)})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	serverDone := make(chan error, 1)
	loggerDone := make(chan error, 1)
	go func() { serverDone <- bus.Serve(ctx, srv) }()
	go func() { loggerDone <- bus.ServeLogger(ctx, log) }()
	t.Cleanup(func() {
		cancel()
		testutil.RequireReceive(t, serverDone, 5*time.Second, "bus server stop")
		testutil.RequireReceive(t, loggerDone, 5*time.Second, "bus logger stop")
	})
	return bus, shared, log
}

func waitForCount(t *testing.T, log *logger.Logger, want uint64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for log.Count() < want {
		if time.Now().After(deadline) {
			t.Fatalf("logger count %d, want %d", log.Count(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBusExchange(t *testing.T) {
	bus, shared, log := startBus(t, BusConfig{})
	ctx := context.Background()
	caller := bus.Caller()

	reply, err := caller.Call(ctx, wire.RequestA)
	if err != nil || reply.Label != wire.ReplyA {
		t.Fatalf("Call(1) = %v, %v", reply, err)
	}
	shared.WriteString("Hello from client via shared memory!")
	if err := bus.DataReady().Notify(ctx); err != nil {
		t.Fatal(err)
	}
	reply, err = caller.Call(ctx, wire.RequestB)
	if err != nil || reply.Label != wire.ReplyB {
		t.Fatalf("Call(2) = %v, %v", reply, err)
	}
	// The sentinel was queued ahead of the second call.
	if got := shared.String(); got != server.DefaultResponse {
		t.Errorf("region = %q, want server response", got)
	}
	if err := bus.LoggerNotifier(logger.ClientChannel).Notify(ctx); err != nil {
		t.Fatal(err)
	}

	waitForCount(t, log, 2)
	if got, want := log.Replay(), "server\nclient\n"; got != want {
		t.Errorf("logger replay = %q, want %q", got, want)
	}
}

type stallingHandler struct{ release chan struct{} }

func (h stallingHandler) HandleRequest(context.Context, wire.Label) (wire.Reply, bool) {
	<-h.release
	return wire.Reply{Label: wire.ReplyA}, true
}

func TestBusCallTimeout(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	bus := NewBus(BusConfig{CallTimeout: time.Second, Clock: fake})
	handler := stallingHandler{release: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- bus.Serve(ctx, handler) }()

	errs := make(chan error, 1)
	go func() {
		_, err := bus.Caller().Call(ctx, wire.RequestA)
		errs <- err
	}()
	fake.WaitForTimers(1)
	fake.Advance(time.Second)

	if err := testutil.RequireReceive(t, errs, 5*time.Second, "timed out call"); !errors.Is(err, ErrTimeout) {
		t.Errorf("Call = %v, want ErrTimeout", err)
	}
	// The server finishing late must not block on the abandoned reply.
	close(handler.release)
	bus.Close()
	testutil.RequireReceive(t, served, 5*time.Second, "bus server stop")
}

func TestBusClosed(t *testing.T) {
	bus := NewBus(BusConfig{})
	bus.Close()
	ctx := context.Background()

	// A queue with room may accept the request before the close is
	// noticed; either way the call cannot succeed.
	_, err := bus.Caller().Call(ctx, wire.RequestA)
	if !errors.Is(err, ErrUnavailable) && !errors.Is(err, ErrPeerClosed) {
		t.Errorf("Call on closed bus = %v, want ErrUnavailable or ErrPeerClosed", err)
	}
	if err := bus.LoggerNotifier(logger.ClientChannel).Notify(ctx); !errors.Is(err, ErrUnavailable) {
		t.Errorf("logger Notify on closed bus = %v, want ErrUnavailable", err)
	}
}

func TestBusLoggerNotifyNeverBlocks(t *testing.T) {
	bus := NewBus(BusConfig{})
	notifier := bus.LoggerNotifier(logger.CrasherChannel)
	// Nobody is serving the logger queue.
	for range busQueueDepth + 10 {
		if err := notifier.Notify(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if got := bus.DroppedNotifications(); got != 10 {
		t.Errorf("DroppedNotifications() = %d, want 10", got)
	}
}

func TestBusRejectsSentinelCall(t *testing.T) {
	bus := NewBus(BusConfig{})
	if _, err := bus.Caller().Call(context.Background(), wire.SentinelLabel); !errors.Is(err, wire.ErrSentinelCollision) {
		t.Errorf("Call(sentinel) = %v, want ErrSentinelCollision", err)
	}
}

func TestBusFlush(t *testing.T) {
	bus, _, log := startBus(t, BusConfig{})
	ctx := context.Background()

	notifier := bus.LoggerNotifier(logger.ClientChannel)
	for range 5 {
		if err := notifier.Notify(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if err := bus.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	// No waiting: everything queued before Flush has been delivered.
	if got := log.Count(); got != 5 {
		t.Errorf("Count() after Flush = %d, want 5", got)
	}
}

func TestBusFlushClosed(t *testing.T) {
	bus := NewBus(BusConfig{})
	bus.Close()
	if err := bus.Flush(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Flush on closed bus = %v, want ErrUnavailable", err)
	}
}
