// Package lifecycle supervises the long-running pipeline components:
// ordered startup, reverse-order shutdown, health and restarts.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/yciu/futures-pipeline/internal/alerting"
	"github.com/yciu/futures-pipeline/internal/metrics"
)

// Status is the lifecycle state of one supervised component.
type Status int

const (
	StatusStopped Status = iota
	StatusStarting
	StatusRunning
	StatusStopping
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "STOPPED"
	case StatusStarting:
		return "STARTING"
	case StatusRunning:
		return "RUNNING"
	case StatusStopping:
		return "STOPPING"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Component is one supervised unit. Start must not block beyond its own
// initialization; Stop must be safe to call on a stopped component.
type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

// funcComponent adapts start/stop closures to the Component interface.
type funcComponent struct {
	name  string
	start func(ctx context.Context) error
	stop  func() error
}

// NewComponent wraps start/stop functions as a Component.
func NewComponent(name string, start func(ctx context.Context) error, stop func() error) Component {
	return &funcComponent{name: name, start: start, stop: stop}
}

func (c *funcComponent) Name() string                    { return c.name }
func (c *funcComponent) Start(ctx context.Context) error { return c.start(ctx) }
func (c *funcComponent) Stop() error                     { return c.stop() }

// Config holds lifecycle manager configuration.
type Config struct {
	// StartupGrace is the pause after the first component (the gateway)
	// reaches RUNNING before the rest are started.
	StartupGrace time.Duration
	// ShutdownTimeout bounds the whole shutdown sequence.
	ShutdownTimeout time.Duration
	// PreflightEndpoints are tcp:// endpoints that must be bindable
	// before startup begins.
	PreflightEndpoints []string
}

// DefaultConfig returns default lifecycle configuration.
func DefaultConfig() Config {
	return Config{
		StartupGrace:    3 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// ComponentHealth is the reported state of one component.
type ComponentHealth struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Health is a snapshot of the whole system.
type Health struct {
	Healthy    bool              `json:"healthy"`
	Uptime     string            `json:"uptime"`
	Components []ComponentHealth `json:"components"`
}

type entry struct {
	comp   Component
	status Status
}

// Manager starts components in registration order and stops them in
// reverse. A component failure during shutdown is recorded as ERROR and
// does not abort shutdown of the others.
type Manager struct {
	cfg      Config
	logger   *slog.Logger
	alerter  alerting.Alerter
	recorder *metrics.Recorder

	mu        sync.Mutex
	entries   []*entry
	allUpAt   time.Time
	cancel    context.CancelFunc
	startedUp bool
}

// NewManager creates a lifecycle manager. alerter may be nil.
func NewManager(cfg Config, alerter alerting.Alerter, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StartupGrace <= 0 {
		cfg.StartupGrace = DefaultConfig().StartupGrace
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}
	return &Manager{
		cfg:      cfg,
		logger:   logger,
		alerter:  alerter,
		recorder: metrics.NewRecorder(),
	}
}

// Register adds a component. Registration order is startup order.
func (m *Manager) Register(comp Component) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, &entry{comp: comp, status: StatusStopped})
	m.recorder.RecordComponentState(comp.Name(), int(StatusStopped))
}

// StartAll runs the preflight checks and starts every registered component
// in order, pausing for the startup grace after the first one. On any
// failure the already-started components are stopped in reverse and an
// error is returned.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startedUp {
		m.logger.Warn("trading system already started")
		return nil
	}

	if err := m.preflight(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	for i, en := range m.entries {
		m.setStatus(en, StatusStarting)
		m.logger.Info("starting component", "component", en.comp.Name())

		if err := en.comp.Start(runCtx); err != nil {
			m.setStatus(en, StatusError)
			m.logger.Error("component failed to start",
				"component", en.comp.Name(),
				"err", err,
			)
			m.alertComponentError(en.comp.Name(), "start failed", err)
			m.stopFrom(i - 1)
			cancel()
			return fmt.Errorf("start %s: %w", en.comp.Name(), err)
		}
		m.setStatus(en, StatusRunning)

		if i == 0 && len(m.entries) > 1 {
			select {
			case <-ctx.Done():
				m.stopFrom(i)
				cancel()
				return ctx.Err()
			case <-time.After(m.cfg.StartupGrace):
			}
		}
	}

	m.allUpAt = time.Now()
	m.startedUp = true
	m.logger.Info("trading system started", "components", len(m.entries))
	return nil
}

// StopAll stops every component in reverse registration order.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.startedUp {
		return
	}

	deadline := time.Now().Add(m.cfg.ShutdownTimeout)
	m.stopFrom(len(m.entries) - 1)
	if time.Now().After(deadline) {
		m.logger.Warn("shutdown exceeded timeout", "timeout", m.cfg.ShutdownTimeout)
	}

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.startedUp = false
	m.allUpAt = time.Time{}
	m.logger.Info("trading system stopped")
}

// Restart stops and restarts a single component by name.
func (m *Manager) Restart(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, en := range m.entries {
		if en.comp.Name() != name {
			continue
		}

		m.setStatus(en, StatusStopping)
		if err := en.comp.Stop(); err != nil {
			m.setStatus(en, StatusError)
			return fmt.Errorf("stop %s: %w", name, err)
		}
		m.setStatus(en, StatusStopped)

		m.setStatus(en, StatusStarting)
		if err := en.comp.Start(ctx); err != nil {
			m.setStatus(en, StatusError)
			return fmt.Errorf("start %s: %w", name, err)
		}
		m.setStatus(en, StatusRunning)

		m.logger.Info("component restarted", "component", name)
		return nil
	}

	return fmt.Errorf("unknown component %q", name)
}

// Status returns the status of a component by name.
func (m *Manager) Status(name string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, en := range m.entries {
		if en.comp.Name() == name {
			return en.status, true
		}
	}
	return StatusStopped, false
}

// IsHealthy reports whether every component is RUNNING.
func (m *Manager) IsHealthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) == 0 {
		return false
	}
	for _, en := range m.entries {
		if en.status != StatusRunning {
			return false
		}
	}
	return true
}

// Uptime is measured from the moment all components first reached RUNNING.
func (m *Manager) Uptime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.allUpAt.IsZero() {
		return 0
	}
	return time.Since(m.allUpAt)
}

// GetHealth returns a snapshot of all component states.
func (m *Manager) GetHealth() Health {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := Health{Healthy: len(m.entries) > 0}
	for _, en := range m.entries {
		if en.status != StatusRunning {
			h.Healthy = false
		}
		h.Components = append(h.Components, ComponentHealth{
			Name:   en.comp.Name(),
			Status: en.status.String(),
		})
	}
	if !m.allUpAt.IsZero() {
		h.Uptime = time.Since(m.allUpAt).String()
	}
	return h
}

// stopFrom stops entries[i], entries[i-1], ... entries[0]. Caller holds mu.
func (m *Manager) stopFrom(i int) {
	for ; i >= 0; i-- {
		en := m.entries[i]
		if en.status != StatusRunning && en.status != StatusStarting {
			continue
		}

		m.setStatus(en, StatusStopping)
		m.logger.Info("stopping component", "component", en.comp.Name())

		if err := en.comp.Stop(); err != nil {
			m.setStatus(en, StatusError)
			m.logger.Error("component failed to stop",
				"component", en.comp.Name(),
				"err", err,
			)
			m.alertComponentError(en.comp.Name(), "stop failed", err)
			continue
		}
		m.setStatus(en, StatusStopped)
	}
}

// alertComponentError raises a critical alert for a failed component.
// Shutdown must not block on a slow channel, so delivery is bounded.
func (m *Manager) alertComponentError(component, action string, err error) {
	if m.alerter == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	severity := alerting.EventSeverity(alerting.EventComponentError)
	if alertErr := m.alerter.Alert(ctx, severity,
		"Component error: "+action,
		"component", component,
		"error", err.Error(),
	); alertErr != nil {
		m.logger.Warn("failed to send component alert", "component", component, "err", alertErr)
	}
}

func (m *Manager) setStatus(en *entry, s Status) {
	en.status = s
	m.recorder.RecordComponentState(en.comp.Name(), int(s))
}

// preflight verifies every configured endpoint is bindable by taking and
// immediately releasing a listener.
func (m *Manager) preflight() error {
	for _, endpoint := range m.cfg.PreflightEndpoints {
		addr := strings.TrimPrefix(endpoint, "tcp://")
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("port check %s: %w", endpoint, err)
		}
		if err := ln.Close(); err != nil {
			return fmt.Errorf("release port %s: %w", endpoint, err)
		}
	}
	return nil
}
