// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/faultline/lib/process"
	"github.com/bureau-foundation/faultline/lib/region"
	"github.com/bureau-foundation/faultline/lib/wire"
	"github.com/bureau-foundation/faultline/logger"
)

// EnvConfig names the environment variable Load reads.
const EnvConfig = "FAULTLINE_CONFIG"

// Environment selects an override section.
type Environment string

const (
	Development Environment = "development"
	Benchmark   Environment = "benchmark"
)

// Binding selects the transport.
type Binding string

const (
	// BindingSocket runs each role as a process over Unix sockets and
	// a /dev/shm region.
	BindingSocket Binding = "socket"

	// BindingChannel runs roles as goroutines over Go channels and a
	// heap region.
	BindingChannel Binding = "channel"
)

// Config is the harness configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	Paths      PathsConfig      `yaml:"paths"`
	Transport  TransportConfig  `yaml:"transport"`
	Client     ClientConfig     `yaml:"client"`
	Server     ServerConfig     `yaml:"server"`
	Logger     LoggerConfig     `yaml:"logger"`
	Crasher    CrasherConfig    `yaml:"crasher"`
	Supervisor SupervisorConfig `yaml:"supervisor"`

	Development *Overrides `yaml:"development,omitempty"`
	Benchmark   *Overrides `yaml:"benchmark,omitempty"`
}

// Overrides holds the fields an environment section may replace.
// Unset fields leave the base value alone.
type Overrides struct {
	Paths     *PathsConfig     `yaml:"paths,omitempty"`
	Transport *TransportConfig `yaml:"transport,omitempty"`
	Client    *ClientOverrides `yaml:"client,omitempty"`
}

// ClientOverrides uses pointers so false and zero can override.
type ClientOverrides struct {
	Iterations     *int           `yaml:"iterations,omitempty"`
	LoggerEnabled  *bool          `yaml:"logger_enabled,omitempty"`
	MetricsEnabled *bool          `yaml:"metrics_enabled,omitempty"`
	NotifyGap      *time.Duration `yaml:"notify_gap,omitempty"`
	RoundPause     *time.Duration `yaml:"round_pause,omitempty"`
	Report         *string        `yaml:"report,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Bin holds the role binaries. Empty means PATH lookup.
	Bin string `yaml:"bin"`

	// Run holds sockets.
	Run string `yaml:"run"`

	// State holds reports.
	State string `yaml:"state"`
}

// TransportConfig configures the binding both ends must agree on.
type TransportConfig struct {
	Binding      Binding `yaml:"binding"`
	ServerSocket string  `yaml:"server_socket"`
	LoggerSocket string  `yaml:"logger_socket"`

	// RegionPath is the shared region file for the socket binding.
	RegionPath string `yaml:"region_path"`
	RegionSize int    `yaml:"region_size"`

	// LabelWidth is 32 or 64.
	LabelWidth int `yaml:"label_width"`

	// CallTimeout bounds one exchange; ReadTimeout bounds the server's
	// wait for a frame on an accepted connection.
	CallTimeout time.Duration `yaml:"call_timeout"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// ClientConfig configures the client role.
type ClientConfig struct {
	Iterations     int           `yaml:"iterations"`
	LoggerEnabled  bool          `yaml:"logger_enabled"`
	MetricsEnabled bool          `yaml:"metrics_enabled"`
	NotifyGap      time.Duration `yaml:"notify_gap"`
	RoundPause     time.Duration `yaml:"round_pause"`

	// Report is where per-sample latencies are written. The extension
	// picks the format; empty writes nothing.
	Report string `yaml:"report"`

	// RequestLabels are the two labels sent each round.
	RequestLabels []uint64 `yaml:"request_labels"`
}

// ServerConfig configures the server role.
type ServerConfig struct {
	// Response is written into the region after each notification.
	Response string `yaml:"response"`
}

// LoggerConfig configures the logger role.
type LoggerConfig struct {
	BufferSize int `yaml:"buffer_size"`

	// Channels maps source channel numbers to tags.
	Channels map[uint32]string `yaml:"channels"`
}

// CrasherConfig configures the crasher role.
type CrasherConfig struct {
	Label uint64 `yaml:"label"`
}

// SupervisorConfig configures the harness driver.
type SupervisorConfig struct {
	// ReadyTimeout bounds each role's startup handshake.
	ReadyTimeout time.Duration `yaml:"ready_timeout"`

	// SettleTimeout bounds the wait for a role to exit once its work
	// is done.
	SettleTimeout time.Duration `yaml:"settle_timeout"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Environment: Development,
		LogLevel:    "info",
		Paths: PathsConfig{
			Bin:   "",
			Run:   "${XDG_RUNTIME_DIR:-/tmp}/faultline",
			State: "${HOME}/.cache/faultline",
		},
		Transport: TransportConfig{
			Binding:      BindingSocket,
			ServerSocket: "${FAULTLINE_RUN}/server.sock",
			LoggerSocket: "${FAULTLINE_RUN}/logger.sock",
			RegionPath:   "/dev/shm/faultline-region",
			RegionSize:   region.DefaultCapacity,
			LabelWidth:   32,
			CallTimeout:  5 * time.Second,
			ReadTimeout:  5 * time.Second,
		},
		Client: ClientConfig{
			Iterations:     1,
			LoggerEnabled:  true,
			MetricsEnabled: true,
			NotifyGap:      100 * time.Millisecond,
			RoundPause:     500 * time.Millisecond,
			RequestLabels:  []uint64{uint64(wire.RequestA), uint64(wire.RequestB)},
		},
		Server: ServerConfig{
			Response: "Server response via shared memory!",
		},
		Logger: LoggerConfig{
			BufferSize: logger.DefaultBufferSize,
			Channels: map[uint32]string{
				uint32(logger.ClientChannel):  string(logger.TagClient),
				uint32(logger.ServerChannel):  string(logger.TagServer),
				uint32(logger.CrasherChannel): string(logger.TagCrasher),
			},
		},
		Crasher: CrasherConfig{
			Label: uint64(wire.CrasherLabel),
		},
		Supervisor: SupervisorConfig{
			ReadyTimeout:  5 * time.Second,
			SettleTimeout: 10 * time.Second,
		},
	}
}

// Load reads the file named by FAULTLINE_CONFIG, or returns the
// defaults when the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvConfig)
	if path == "" {
		cfg := Default()
		cfg.applyEnvironmentOverrides()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(path)
}

// Resolve loads path when it is non-empty and falls back to Load
// otherwise. Binaries pass their --config flag.
func Resolve(path string) (*Config, error) {
	if path == "" {
		return Load()
	}
	return LoadFile(path)
}

// LoadFile reads configuration from path over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".jsonc") {
		// JSON is a subset of YAML, so once comments and trailing
		// commas are stripped the same decoder applies.
		data = jsonc.ToJSON(data)
	}
	// Maps from the defaults would otherwise merge with the file's.
	var probe struct {
		Logger struct {
			Channels map[uint32]string `yaml:"channels"`
		} `yaml:"logger"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return err
	}
	if probe.Logger.Channels != nil {
		c.Logger.Channels = nil
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Benchmark:
		overrides = c.Benchmark
		if overrides == nil {
			zero := time.Duration(0)
			overrides = &Overrides{
				Client: &ClientOverrides{NotifyGap: &zero, RoundPause: &zero},
			}
		}
	}
	if overrides == nil {
		return
	}

	if paths := overrides.Paths; paths != nil {
		overrideString(&c.Paths.Bin, paths.Bin)
		overrideString(&c.Paths.Run, paths.Run)
		overrideString(&c.Paths.State, paths.State)
	}

	if transport := overrides.Transport; transport != nil {
		if transport.Binding != "" {
			c.Transport.Binding = transport.Binding
		}
		overrideString(&c.Transport.ServerSocket, transport.ServerSocket)
		overrideString(&c.Transport.LoggerSocket, transport.LoggerSocket)
		overrideString(&c.Transport.RegionPath, transport.RegionPath)
		if transport.RegionSize != 0 {
			c.Transport.RegionSize = transport.RegionSize
		}
		if transport.LabelWidth != 0 {
			c.Transport.LabelWidth = transport.LabelWidth
		}
		if transport.CallTimeout != 0 {
			c.Transport.CallTimeout = transport.CallTimeout
		}
		if transport.ReadTimeout != 0 {
			c.Transport.ReadTimeout = transport.ReadTimeout
		}
	}

	if client := overrides.Client; client != nil {
		if client.Iterations != nil {
			c.Client.Iterations = *client.Iterations
		}
		if client.LoggerEnabled != nil {
			c.Client.LoggerEnabled = *client.LoggerEnabled
		}
		if client.MetricsEnabled != nil {
			c.Client.MetricsEnabled = *client.MetricsEnabled
		}
		if client.NotifyGap != nil {
			c.Client.NotifyGap = *client.NotifyGap
		}
		if client.RoundPause != nil {
			c.Client.RoundPause = *client.RoundPause
		}
		if client.Report != nil {
			c.Client.Report = *client.Report
		}
	}
}

func overrideString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Paths.Run = expandVars(c.Paths.Run, vars)
	vars["FAULTLINE_RUN"] = c.Paths.Run

	c.Paths.Bin = expandVars(c.Paths.Bin, vars)
	c.Paths.State = expandVars(c.Paths.State, vars)
	vars["FAULTLINE_STATE"] = c.Paths.State

	c.Transport.ServerSocket = expandVars(c.Transport.ServerSocket, vars)
	c.Transport.LoggerSocket = expandVars(c.Transport.LoggerSocket, vars)
	c.Transport.RegionPath = expandVars(c.Transport.RegionPath, vars)
	c.Client.Report = expandVars(c.Client.Report, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}, preferring vars over
// the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, fallback := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return fallback
	})
}

// WriteFile writes the configuration as YAML. Supervisors use it to
// hand the effective configuration to role processes.
func (c *Config) WriteFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// Codec returns the wire codec for the configured label width.
func (c *Config) Codec() (wire.Codec, error) {
	return wire.CodecForWidth(c.Transport.LabelWidth)
}

// RequestLabels returns the client's two request labels.
func (c *Config) RequestLabels() [2]wire.Label {
	var labels [2]wire.Label
	for index := range min(len(c.Client.RequestLabels), 2) {
		labels[index] = wire.Label(c.Client.RequestLabels[index])
	}
	return labels
}

// CrasherLabel returns the crasher's request label.
func (c *Config) CrasherLabel() wire.Label { return wire.Label(c.Crasher.Label) }

// Channels returns the logger's channel map.
func (c *Config) Channels() logger.ChannelMap {
	channels := make(logger.ChannelMap, len(c.Logger.Channels))
	for channel, tag := range c.Logger.Channels {
		channels[logger.Channel(channel)] = logger.Tag(tag)
	}
	return channels
}

// Validate reports every configuration error, joined.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Benchmark {
		errs = append(errs, fmt.Errorf("invalid environment: %q", c.Environment))
	}

	switch c.Transport.Binding {
	case BindingSocket:
		if c.Transport.ServerSocket == "" {
			errs = append(errs, errors.New("transport.server_socket is required for the socket binding"))
		}
		if c.Transport.LoggerSocket == "" {
			errs = append(errs, errors.New("transport.logger_socket is required for the socket binding"))
		}
		if c.Transport.RegionPath == "" {
			errs = append(errs, errors.New("transport.region_path is required for the socket binding"))
		}
	case BindingChannel:
	default:
		errs = append(errs, fmt.Errorf("transport.binding must be one of %q or %q, got %q",
			BindingSocket, BindingChannel, c.Transport.Binding))
	}

	if c.Transport.RegionSize < region.MinCapacity {
		errs = append(errs, fmt.Errorf("transport.region_size %d: must be at least %d",
			c.Transport.RegionSize, region.MinCapacity))
	}
	if c.Transport.CallTimeout <= 0 {
		errs = append(errs, errors.New("transport.call_timeout must be positive"))
	}
	if c.Transport.ReadTimeout <= 0 {
		errs = append(errs, errors.New("transport.read_timeout must be positive"))
	}

	codec, err := c.Codec()
	if err != nil {
		errs = append(errs, fmt.Errorf("transport.label_width: %w", err))
	}

	if c.Client.Iterations < 0 {
		errs = append(errs, fmt.Errorf("client.iterations %d: must not be negative", c.Client.Iterations))
	}
	if c.Client.NotifyGap < 0 || c.Client.RoundPause < 0 {
		errs = append(errs, errors.New("client pauses must not be negative"))
	}
	if len(c.Client.RequestLabels) != 2 {
		errs = append(errs, fmt.Errorf("client.request_labels: want 2 labels, got %d", len(c.Client.RequestLabels)))
	}
	if err == nil {
		labels := make([]wire.Label, 0, len(c.Client.RequestLabels)+1)
		for _, label := range c.Client.RequestLabels {
			labels = append(labels, wire.Label(label))
		}
		labels = append(labels, wire.Label(c.Crasher.Label))
		if err := wire.ValidateLabels(codec, labels...); err != nil {
			errs = append(errs, fmt.Errorf("request labels: %w", err))
		}
	}
	if c.Crasher.Label == 0 {
		errs = append(errs, errors.New("crasher.label must be non-zero"))
	}

	if c.Logger.BufferSize < 2 {
		errs = append(errs, fmt.Errorf("logger.buffer_size %d: must be at least 2", c.Logger.BufferSize))
	}
	if err := c.Channels().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logger.channels: %w", err))
	}
	tags := slices.Collect(maps.Values(c.Logger.Channels))
	for _, tag := range []logger.Tag{logger.TagClient, logger.TagServer, logger.TagCrasher} {
		if !slices.Contains(tags, string(tag)) {
			errs = append(errs, fmt.Errorf("logger.channels: no channel for %q", tag))
		}
	}

	if c.Supervisor.ReadyTimeout <= 0 || c.Supervisor.SettleTimeout <= 0 {
		errs = append(errs, errors.New("supervisor timeouts must be positive"))
	}

	if _, err := process.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	return errors.Join(errs...)
}

// EnsurePaths creates the run and state directories.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.Run, c.Paths.State} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}

// BinaryPath returns the path to a role binary, looking in Paths.Bin
// first and then PATH.
func (c *Config) BinaryPath(name string) (string, error) {
	if c.Paths.Bin != "" {
		binPath := filepath.Join(c.Paths.Bin, name)
		if _, err := os.Stat(binPath); err == nil {
			return binPath, nil
		}
	}
	path, err := exec.LookPath(name)
	if err != nil {
		if c.Paths.Bin != "" {
			return "", fmt.Errorf("%s not found in %s or PATH", name, c.Paths.Bin)
		}
		return "", fmt.Errorf("%s not found in PATH", name)
	}
	return path, nil
}
