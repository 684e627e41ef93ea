// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yciu/futures-pipeline/internal/types"
)

// Config represents the full application configuration.
type Config struct {
	Session   SessionConfig   `yaml:"session"`
	Condition ConditionConfig `yaml:"condition"`
	Endpoints EndpointConfig  `yaml:"endpoints"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Publisher PublisherConfig `yaml:"publisher"`
	Executor  ExecutorConfig  `yaml:"executor"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Journal   JournalConfig   `yaml:"journal"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Alerting  AlertingConfig  `yaml:"alerting"`
	Broker    BrokerConfig    `yaml:"broker"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SessionConfig holds session store settings.
type SessionConfig struct {
	Path       string `yaml:"path"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// ConditionConfig holds condition store settings.
type ConditionConfig struct {
	Path string `yaml:"path"`
}

// EndpointConfig holds transport endpoints.
type EndpointConfig struct {
	TickPublish string `yaml:"tick_publish"`
	SignalPipe  string `yaml:"signal_pipe"`
	Gateway     string `yaml:"gateway"`
}

// GatewayConfig holds gateway server and client settings.
type GatewayConfig struct {
	RequestTimeoutMs int     `yaml:"request_timeout_ms"`
	RetryCount       int     `yaml:"retry_count"`
	StopTimeoutSec   int     `yaml:"stop_timeout_sec"`
	OrdersPerSecond  float64 `yaml:"orders_per_second"`
}

// PublisherConfig holds tick publisher settings.
type PublisherConfig struct {
	Topic          string `yaml:"topic"`
	StartupPauseMs int    `yaml:"startup_pause_ms"`
}

// ExecutorConfig holds order executor settings.
type ExecutorConfig struct {
	PollIntervalMs int `yaml:"poll_interval_ms"`
	// DefaultQuantity is used for every submitted order; signals do not
	// carry the originating condition's quantity.
	DefaultQuantity int64 `yaml:"default_quantity"`
}

// LifecycleConfig holds system lifecycle settings.
type LifecycleConfig struct {
	StartupGraceSec    int `yaml:"startup_grace_sec"`
	ShutdownTimeoutSec int `yaml:"shutdown_timeout_sec"`
}

// JournalConfig holds order journal settings.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig holds metrics server settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// AlertingConfig holds alerting settings.
type AlertingConfig struct {
	Enabled  bool            `yaml:"enabled"`
	Channels []ChannelConfig `yaml:"channels"`
}

// ChannelConfig holds a single alert channel configuration.
type ChannelConfig struct {
	Type     string `yaml:"type"` // console | telegram
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// BrokerConfig holds broker settings for the host process.
type BrokerConfig struct {
	Type           string  `yaml:"type"` // sim
	Account        string  `yaml:"account"`
	ItemCode       string  `yaml:"item_code"`
	SimStartPrice  float64 `yaml:"sim_start_price"`
	SimTickMs      int     `yaml:"sim_tick_ms"`
	SimRejectEvery int     `yaml:"sim_reject_every"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default returns the built-in defaults used when a field is absent.
func Default() *Config {
	return &Config{
		Session:   SessionConfig{Path: "tmp/session.json", TimeoutSec: 3600},
		Condition: ConditionConfig{Path: "data/conditions.json"},
		Endpoints: EndpointConfig{
			TickPublish: "tcp://127.0.0.1:5555",
			SignalPipe:  "tcp://127.0.0.1:5556",
			Gateway:     "tcp://127.0.0.1:5557",
		},
		Gateway: GatewayConfig{
			RequestTimeoutMs: 5000,
			RetryCount:       3,
			StopTimeoutSec:   2,
			OrdersPerSecond:  10,
		},
		Publisher: PublisherConfig{Topic: "TICK", StartupPauseMs: 500},
		Executor:  ExecutorConfig{PollIntervalMs: 100, DefaultQuantity: 1},
		Lifecycle: LifecycleConfig{StartupGraceSec: 3, ShutdownTimeoutSec: 10},
		Journal:   JournalConfig{Enabled: true, Path: "data/journal.db"},
		Metrics:   MetricsConfig{Enabled: true, Port: 9090, Path: "/metrics"},
		Broker:    BrokerConfig{Type: "sim", Account: "SIM", ItemCode: "TXF", SimStartPrice: 18000, SimTickMs: 200},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes.
func LoadFromBytes(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides lets the deployment override transport endpoints
// without editing the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TICK_PUBLISH_ENDPOINT"); v != "" {
		c.Endpoints.TickPublish = v
	}
	if v := os.Getenv("SIGNAL_PIPE_ENDPOINT"); v != "" {
		c.Endpoints.SignalPipe = v
	}
	if v := os.Getenv("GATEWAY_ENDPOINT"); v != "" {
		c.Endpoints.Gateway = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Session.Path == "" {
		errs = append(errs, "session.path is required")
	}
	if c.Session.TimeoutSec <= 0 {
		errs = append(errs, "session.timeout_sec must be positive")
	}
	if c.Condition.Path == "" {
		errs = append(errs, "condition.path is required")
	}

	for name, ep := range map[string]string{
		"endpoints.tick_publish": c.Endpoints.TickPublish,
		"endpoints.signal_pipe":  c.Endpoints.SignalPipe,
		"endpoints.gateway":      c.Endpoints.Gateway,
	} {
		if !strings.Contains(ep, "://") {
			errs = append(errs, fmt.Sprintf("%s must be a transport endpoint, got %q", name, ep))
		}
	}

	if c.Gateway.RequestTimeoutMs <= 0 {
		errs = append(errs, "gateway.request_timeout_ms must be positive")
	}
	if c.Gateway.RetryCount < 0 {
		errs = append(errs, "gateway.retry_count must be non-negative")
	}
	if c.Gateway.OrdersPerSecond <= 0 {
		errs = append(errs, "gateway.orders_per_second must be positive")
	}

	if c.Executor.PollIntervalMs <= 0 {
		errs = append(errs, "executor.poll_interval_ms must be positive")
	}
	if c.Executor.DefaultQuantity < 1 {
		errs = append(errs, "executor.default_quantity must be at least 1")
	}

	if c.Lifecycle.StartupGraceSec < 0 {
		errs = append(errs, "lifecycle.startup_grace_sec must be non-negative")
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal.path is required when journal is enabled")
	}

	if c.Alerting.Enabled {
		for i, ch := range c.Alerting.Channels {
			switch ch.Type {
			case "console":
			case "telegram":
				if ch.BotToken == "" || ch.ChatID == "" {
					errs = append(errs, fmt.Sprintf("alerting.channels[%d]: telegram requires bot_token and chat_id", i))
				}
			default:
				errs = append(errs, fmt.Sprintf("alerting.channels[%d]: unknown type %q", i, ch.Type))
			}
		}
	}

	if c.Broker.Type != "sim" {
		errs = append(errs, fmt.Sprintf("broker.type %q is not supported", c.Broker.Type))
	}
	if c.Broker.ItemCode == "" {
		errs = append(errs, "broker.item_code is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", types.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// SessionTimeout returns the session expiry extension.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Session.TimeoutSec) * time.Second
}

// RequestTimeout returns the per-request gateway timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Gateway.RequestTimeoutMs) * time.Millisecond
}

// GatewayStopTimeout returns the bounded wait for the gateway loop to join.
func (c *Config) GatewayStopTimeout() time.Duration {
	return time.Duration(c.Gateway.StopTimeoutSec) * time.Second
}

// StartupPause returns the post-bind pause before the first tick emission.
func (c *Config) StartupPause() time.Duration {
	return time.Duration(c.Publisher.StartupPauseMs) * time.Millisecond
}

// PollInterval returns the executor poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Executor.PollIntervalMs) * time.Millisecond
}

// StartupGrace returns the pause between gateway and strategy startup.
func (c *Config) StartupGrace() time.Duration {
	return time.Duration(c.Lifecycle.StartupGraceSec) * time.Second
}

// ShutdownTimeout returns the shutdown timeout duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Lifecycle.ShutdownTimeoutSec) * time.Second
}

// SimTickInterval returns the simulated broker tick interval.
func (c *Config) SimTickInterval() time.Duration {
	return time.Duration(c.Broker.SimTickMs) * time.Millisecond
}
