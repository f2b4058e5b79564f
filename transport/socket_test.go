// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/faultline/lib/region"
	"github.com/bureau-foundation/faultline/lib/testutil"
	"github.com/bureau-foundation/faultline/lib/wire"
	"github.com/bureau-foundation/faultline/server"
)

type socketFixture struct {
	path   string
	codec  wire.Codec
	region *region.Region
	server *server.Server
	stop   func()
}

func startSocketServer(t *testing.T, codec wire.Codec) *socketFixture {
	t.Helper()
	shared, err := region.New(region.DefaultCapacity)
	if err != nil {
		t.Fatal(err)
	}
	srv, err := server.New(server.Config{Region: shared})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(testutil.SocketDir(t), "server.sock")
	socketServer := NewSocketServer(SocketServerConfig{
		SocketPath:  path,
		Codec:       codec,
		Handler:     srv,
		ReadTimeout: time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- socketServer.Serve(ctx) }()
	testutil.RequireClosed(t, socketServer.Ready(), 5*time.Second, "socket server ready")

	fixture := &socketFixture{path: path, codec: codec, region: shared, server: srv}
	fixture.stop = func() {
		cancel()
		if err := testutil.RequireReceive(t, done, 5*time.Second, "socket server stop"); err != nil {
			t.Errorf("Serve: %v", err)
		}
	}
	t.Cleanup(fixture.stop)
	return fixture
}

func TestSocketCallReplies(t *testing.T) {
	for _, codec := range []wire.Codec{wire.Width32, wire.Width64} {
		t.Run(codec.String(), func(t *testing.T) {
			fixture := startSocketServer(t, codec)
			caller := NewSocketCaller(fixture.path, codec, time.Second, nil)
			ctx := context.Background()

			for _, test := range []struct{ label, want wire.Label }{
				{wire.RequestA, wire.ReplyA},
				{wire.RequestB, wire.ReplyB},
				{wire.CrasherLabel, wire.ReplyUnknown},
			} {
				reply, err := caller.Call(ctx, test.label)
				if err != nil {
					t.Fatalf("Call(%v): %v", test.label, err)
				}
				if reply.Label != test.want {
					t.Errorf("Call(%v) = %v, want %v", test.label, reply.Label, test.want)
				}
			}
		})
	}
}

func TestSocketNotifyRunsRegionHandoff(t *testing.T) {
	fixture := startSocketServer(t, wire.Width32)
	ctx := context.Background()

	fixture.region.WriteString("Hello from client via shared memory!")
	if err := NewSocketNotifier(fixture.path, fixture.codec, time.Second).Notify(ctx); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	// Connections are handled in order, so a completed call proves
	// the notification was processed.
	caller := NewSocketCaller(fixture.path, fixture.codec, time.Second, nil)
	if _, err := caller.Call(ctx, wire.RequestB); err != nil {
		t.Fatal(err)
	}
	if got := fixture.region.String(); got != server.DefaultResponse {
		t.Errorf("region = %q, want server response", got)
	}
	if fixture.server.Counters().Notifications != 1 {
		t.Errorf("notifications = %d, want 1", fixture.server.Counters().Notifications)
	}
}

func TestSocketServerSurvivesBrokenPeers(t *testing.T) {
	fixture := startSocketServer(t, wire.Width32)
	ctx := context.Background()

	// Connect and close without sending.
	conn, err := net.Dial("unix", fixture.path)
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()

	// Send half a request frame, then vanish.
	conn, err = net.Dial("unix", fixture.path)
	if err != nil {
		t.Fatal(err)
	}
	conn.Write([]byte{1, 0, 0, 0, 9})
	conn.Close()

	// Send a full request and close before reading the reply.
	frame, _ := wire.Width32.EncodeRequest(wire.Request{Label: wire.CrasherLabel})
	conn, err = net.Dial("unix", fixture.path)
	if err != nil {
		t.Fatal(err)
	}
	conn.Write(frame)
	conn.Close()

	caller := NewSocketCaller(fixture.path, fixture.codec, 2*time.Second, nil)
	reply, err := caller.Call(ctx, wire.RequestA)
	if err != nil {
		t.Fatalf("Call after broken peers: %v", err)
	}
	if reply.Label != wire.ReplyA {
		t.Errorf("reply = %v, want %v", reply.Label, wire.ReplyA)
	}
}

func TestSocketServerSurvivesSilentPeer(t *testing.T) {
	fixture := startSocketServer(t, wire.Width32)

	// A peer that connects and never writes holds the server until
	// the read timeout; the next caller still gets an answer.
	silent, err := net.Dial("unix", fixture.path)
	if err != nil {
		t.Fatal(err)
	}
	defer silent.Close()

	caller := NewSocketCaller(fixture.path, fixture.codec, 5*time.Second, nil)
	reply, err := caller.Call(context.Background(), wire.RequestB)
	if err != nil {
		t.Fatalf("Call behind silent peer: %v", err)
	}
	if reply.Label != wire.ReplyB {
		t.Errorf("reply = %v, want %v", reply.Label, wire.ReplyB)
	}
}

func TestSocketCallUnavailable(t *testing.T) {
	path := filepath.Join(testutil.SocketDir(t), "nobody.sock")
	caller := NewSocketCaller(path, wire.Width32, time.Second, nil)

	_, err := caller.Call(context.Background(), wire.RequestA)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Call = %v, want ErrUnavailable", err)
	}
	var callErr *CallError
	if !errors.As(err, &callErr) || callErr.Label != wire.RequestA || callErr.Op != "call" {
		t.Errorf("CallError = %+v", callErr)
	}

	notifier := NewSocketNotifier(path, wire.Width32, time.Second)
	if err := notifier.Notify(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Notify = %v, want ErrUnavailable", err)
	}
}

func TestSocketCallTimeout(t *testing.T) {
	// A listener that accepts and never replies.
	path := filepath.Join(testutil.SocketDir(t), "mute.sock")
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	caller := NewSocketCaller(path, wire.Width32, 100*time.Millisecond, nil)
	if _, err := caller.Call(context.Background(), wire.RequestA); !errors.Is(err, ErrTimeout) {
		t.Fatalf("Call = %v, want ErrTimeout", err)
	}
}

func TestSocketCallPeerClosed(t *testing.T) {
	path := filepath.Join(testutil.SocketDir(t), "rude.sock")
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		buffer := make([]byte, wire.Width32.FrameSize())
		conn.Read(buffer)
		conn.Close()
	}()

	caller := NewSocketCaller(path, wire.Width32, time.Second, nil)
	_, err = caller.Call(context.Background(), wire.RequestA)
	if !errors.Is(err, ErrPeerClosed) {
		t.Fatalf("Call = %v, want ErrPeerClosed", err)
	}
}

func TestSocketCallIncompleteReply(t *testing.T) {
	path := filepath.Join(testutil.SocketDir(t), "short.sock")
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		buffer := make([]byte, wire.Width32.FrameSize())
		conn.Read(buffer)
		conn.Write([]byte{10, 0, 0, 0, 1})
		conn.Close()
	}()

	caller := NewSocketCaller(path, wire.Width32, time.Second, nil)
	if _, err := caller.Call(context.Background(), wire.RequestA); !errors.Is(err, wire.ErrIncompleteMessage) {
		t.Fatalf("Call = %v, want ErrIncompleteMessage", err)
	}
}

func TestSocketServerListenFailure(t *testing.T) {
	path := filepath.Join(testutil.SocketDir(t), "missing-dir", "server.sock")
	socketServer := NewSocketServer(SocketServerConfig{SocketPath: path, Codec: wire.Width32})
	if err := socketServer.Serve(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Serve = %v, want ErrUnavailable", err)
	}
}
