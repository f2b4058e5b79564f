// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/faultline/lib/wire"
	"github.com/bureau-foundation/faultline/logger"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Transport.Binding != BindingSocket {
		t.Errorf("expected binding=socket, got %s", cfg.Transport.Binding)
	}
	if cfg.Transport.RegionSize != 4096 {
		t.Errorf("expected region_size=4096, got %d", cfg.Transport.RegionSize)
	}
	if cfg.Logger.BufferSize != 256 {
		t.Errorf("expected buffer_size=256, got %d", cfg.Logger.BufferSize)
	}
	if got := cfg.RequestLabels(); got != [2]wire.Label{1, 2} {
		t.Errorf("expected request labels [1 2], got %v", got)
	}
	if cfg.Crasher.Label != 99 {
		t.Errorf("expected crasher label 99, got %d", cfg.Crasher.Label)
	}
	if cfg.Client.NotifyGap != 100*time.Millisecond || cfg.Client.RoundPause != 500*time.Millisecond {
		t.Errorf("unexpected client pauses: gap=%v pause=%v", cfg.Client.NotifyGap, cfg.Client.RoundPause)
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config does not validate: %v", err)
	}
}

func TestLoad_WithoutFaultlineConfig(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Paths.Run != "/run/user/1000/faultline" {
		t.Errorf("expected run=/run/user/1000/faultline, got %s", cfg.Paths.Run)
	}
	if cfg.Transport.ServerSocket != "/run/user/1000/faultline/server.sock" {
		t.Errorf("expected expanded server socket, got %s", cfg.Transport.ServerSocket)
	}
}

func TestLoad_WithFaultlineConfig(t *testing.T) {
	path := writeConfig(t, "faultline.yaml", `
environment: benchmark
paths:
  run: /test/run
`)
	t.Setenv(EnvConfig, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Environment != Benchmark {
		t.Errorf("expected environment=benchmark, got %s", cfg.Environment)
	}
	if cfg.Paths.Run != "/test/run" {
		t.Errorf("expected run=/test/run, got %s", cfg.Paths.Run)
	}
	if cfg.Client.NotifyGap != 0 || cfg.Client.RoundPause != 0 {
		t.Errorf("benchmark should zero pauses, got gap=%v pause=%v", cfg.Client.NotifyGap, cfg.Client.RoundPause)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, "faultline.yaml", `
log_level: debug

paths:
  run: /custom/run

transport:
  binding: channel
  label_width: 64
  call_timeout: 250ms

client:
  iterations: 3
  logger_enabled: false
  request_labels: [7, 8]

logger:
  buffer_size: 64
  channels:
    4: client
    5: server
    6: crasher
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("expected log_level=debug, got %s", cfg.LogLevel)
	}
	if cfg.Transport.Binding != BindingChannel {
		t.Errorf("expected binding=channel, got %s", cfg.Transport.Binding)
	}
	if cfg.Transport.CallTimeout != 250*time.Millisecond {
		t.Errorf("expected call_timeout=250ms, got %v", cfg.Transport.CallTimeout)
	}
	if cfg.Transport.ReadTimeout != 5*time.Second {
		t.Errorf("unset read_timeout should keep default, got %v", cfg.Transport.ReadTimeout)
	}
	if cfg.Transport.ServerSocket != "/custom/run/server.sock" {
		t.Errorf("expected server socket under custom run, got %s", cfg.Transport.ServerSocket)
	}
	if cfg.Client.Iterations != 3 || cfg.Client.LoggerEnabled {
		t.Errorf("unexpected client config: %+v", cfg.Client)
	}
	if got := cfg.RequestLabels(); got != [2]wire.Label{7, 8} {
		t.Errorf("expected request labels [7 8], got %v", got)
	}

	channels := cfg.Channels()
	if len(channels) != 3 {
		t.Fatalf("file channels should replace defaults, got %v", channels)
	}
	if channels.Tag(5) != logger.TagServer {
		t.Errorf("expected channel 5 tagged server, got %s", channels.Tag(5))
	}
	if channels.Tag(0) != logger.TagUnexpected {
		t.Errorf("default channel 0 should no longer be mapped, got %s", channels.Tag(0))
	}

	codec, err := cfg.Codec()
	if err != nil {
		t.Fatalf("Codec: %v", err)
	}
	if codec != wire.Width64 {
		t.Errorf("expected width64 codec, got %s", codec)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadFile_JSONC(t *testing.T) {
	path := writeConfig(t, "faultline.jsonc", `{
  // Comments and trailing commas are allowed.
  "transport": {
    "binding": "channel",
    "region_size": 128,
  },
  "client": {"iterations": 2},
}`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Transport.Binding != BindingChannel {
		t.Errorf("expected binding=channel, got %s", cfg.Transport.Binding)
	}
	if cfg.Transport.RegionSize != 128 {
		t.Errorf("expected region_size=128, got %d", cfg.Transport.RegionSize)
	}
	if cfg.Client.Iterations != 2 {
		t.Errorf("expected iterations=2, got %d", cfg.Client.Iterations)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: expected ErrNotExist, got %v", err)
	}

	path := writeConfig(t, "broken.yaml", "transport: [unterminated\n")
	if _, err := LoadFile(path); err == nil {
		t.Error("malformed YAML should fail to load")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "faultline.yaml", `
environment: benchmark

client:
  iterations: 1
  notify_gap: 100ms

benchmark:
  transport:
    binding: channel
  client:
    iterations: 1000
    metrics_enabled: false
    notify_gap: 0s
    round_pause: 0s

development:
  client:
    iterations: 5
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Transport.Binding != BindingChannel {
		t.Errorf("expected benchmark binding=channel, got %s", cfg.Transport.Binding)
	}
	if cfg.Client.Iterations != 1000 {
		t.Errorf("expected benchmark iterations=1000, got %d", cfg.Client.Iterations)
	}
	if cfg.Client.MetricsEnabled {
		t.Error("benchmark override should disable metrics")
	}
	if cfg.Client.NotifyGap != 0 || cfg.Client.RoundPause != 0 {
		t.Errorf("benchmark override should zero pauses, got gap=%v pause=%v",
			cfg.Client.NotifyGap, cfg.Client.RoundPause)
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	path := writeConfig(t, "faultline.yaml", `
paths:
  run: /from/file
`)
	t.Setenv("FAULTLINE_RUN", "/from/env")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Paths.Run != "/from/file" {
		t.Errorf("file value should win over env, got %s", cfg.Paths.Run)
	}
	if cfg.Transport.ServerSocket != "/from/file/server.sock" {
		t.Errorf("${FAULTLINE_RUN} should expand to paths.run, got %s", cfg.Transport.ServerSocket)
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("FAULTLINE_TEST_VAR", "from-env")

	vars := map[string]string{
		"FAULTLINE_RUN": "/run/faultline",
		"EMPTY":         "",
	}

	tests := []struct {
		input    string
		expected string
	}{
		{"${FAULTLINE_RUN}/server.sock", "/run/faultline/server.sock"},
		{"${FAULTLINE_TEST_VAR}", "from-env"},
		{"${FAULTLINE_UNSET_VAR:-fallback}", "fallback"},
		{"${EMPTY:-fallback}", "fallback"},
		{"${FAULTLINE_UNSET_VAR}", ""},
		{"/no/vars", "/no/vars"},
		{"${FAULTLINE_RUN}/${FAULTLINE_TEST_VAR}", "/run/faultline/from-env"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := expandVars(tt.input, vars); got != tt.expected {
				t.Errorf("expandVars(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
		wantIs  error
	}{
		{
			name:    "invalid environment",
			modify:  func(c *Config) { c.Environment = "production" },
			wantErr: "invalid environment",
		},
		{
			name:    "unknown binding",
			modify:  func(c *Config) { c.Transport.Binding = "pipe" },
			wantErr: "transport.binding",
		},
		{
			name:    "socket binding without server socket",
			modify:  func(c *Config) { c.Transport.ServerSocket = "" },
			wantErr: "transport.server_socket",
		},
		{
			name: "channel binding needs no paths",
			modify: func(c *Config) {
				c.Transport.Binding = BindingChannel
				c.Transport.ServerSocket = ""
				c.Transport.LoggerSocket = ""
				c.Transport.RegionPath = ""
			},
		},
		{
			name:    "region too small",
			modify:  func(c *Config) { c.Transport.RegionSize = 1 },
			wantErr: "transport.region_size",
		},
		{
			name:    "unsupported label width",
			modify:  func(c *Config) { c.Transport.LabelWidth = 16 },
			wantErr: "transport.label_width",
		},
		{
			name:   "request label collides with sentinel",
			modify: func(c *Config) { c.Client.RequestLabels = []uint64{1, 0xFFFFFFFF} },
			wantIs: wire.ErrSentinelCollision,
		},
		{
			name:   "request label overflows width32",
			modify: func(c *Config) { c.Client.RequestLabels = []uint64{1, 1 << 40} },
			wantIs: wire.ErrLabelOverflow,
		},
		{
			name: "wide label fits width64",
			modify: func(c *Config) {
				c.Transport.LabelWidth = 64
				c.Client.RequestLabels = []uint64{1, 1 << 40}
			},
		},
		{
			name:    "one request label",
			modify:  func(c *Config) { c.Client.RequestLabels = []uint64{1} },
			wantErr: "want 2 labels",
		},
		{
			name:    "buffer too small",
			modify:  func(c *Config) { c.Logger.BufferSize = 1 },
			wantErr: "logger.buffer_size",
		},
		{
			name:    "reserved tag",
			modify:  func(c *Config) { c.Logger.Channels[7] = "unexpected" },
			wantErr: "reserved",
		},
		{
			name:    "missing crasher channel",
			modify:  func(c *Config) { delete(c.Logger.Channels, 2) },
			wantErr: `no channel for "crasher"`,
		},
		{
			name:    "zero call timeout",
			modify:  func(c *Config) { c.Transport.CallTimeout = 0 },
			wantErr: "transport.call_timeout",
		},
		{
			name:    "negative pause",
			modify:  func(c *Config) { c.Client.RoundPause = -time.Second },
			wantErr: "pauses must not be negative",
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.LogLevel = "loud" },
			wantErr: "log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.expandVariables()
			tt.modify(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" && tt.wantIs == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.wantErr != "" && !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("expected errors.Is(%v), got %v", tt.wantIs, err)
			}
		})
	}
}

func TestEnsurePaths(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Paths.Run = filepath.Join(root, "run")
	cfg.Paths.State = filepath.Join(root, "state", "nested")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths failed: %v", err)
	}
	for _, path := range []string{cfg.Paths.Run, cfg.Paths.State} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("path %s not created: %v", path, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("path %s is not a directory", path)
		}
	}
}

func TestBinaryPath(t *testing.T) {
	bin := t.TempDir()
	binary := filepath.Join(bin, "faultline-server")
	if err := os.WriteFile(binary, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("write binary: %v", err)
	}

	cfg := Default()
	cfg.Paths.Bin = bin
	got, err := cfg.BinaryPath("faultline-server")
	if err != nil {
		t.Fatalf("BinaryPath: %v", err)
	}
	if got != binary {
		t.Errorf("expected %s, got %s", binary, got)
	}

	t.Setenv("PATH", t.TempDir())
	if _, err := cfg.BinaryPath("faultline-missing"); err == nil {
		t.Error("expected error for missing binary")
	}
}

func TestWriteFileLoadsBack(t *testing.T) {
	cfg := Default()
	cfg.Paths.Run = "/custom/run"
	cfg.Transport.Binding = BindingChannel
	cfg.Client.NotifyGap = 7 * time.Millisecond
	cfg.Logger.Channels = map[uint32]string{10: "client", 11: "server", 12: "crasher"}
	cfg.expandVariables()

	path := filepath.Join(t.TempDir(), "effective.yaml")
	if err := cfg.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if loaded.Transport.Binding != BindingChannel {
		t.Errorf("binding = %s, want channel", loaded.Transport.Binding)
	}
	if loaded.Client.NotifyGap != 7*time.Millisecond {
		t.Errorf("notify_gap = %v, want 7ms", loaded.Client.NotifyGap)
	}
	if loaded.Transport.ServerSocket != "/custom/run/server.sock" {
		t.Errorf("server_socket = %s", loaded.Transport.ServerSocket)
	}
	if got := loaded.Channels().Tag(11); got != logger.TagServer {
		t.Errorf("channel 11 = %s, want server", got)
	}
	if _, mapped := loaded.Logger.Channels[0]; mapped {
		t.Error("written channels should replace the defaults")
	}
}
