package alerting

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// MultiAlerter fans one alert out to every configured channel so a Telegram
// outage never silences the console log. Channels are notified in parallel
// and a slow one does not delay the others' delivery, only the caller's
// return.
type MultiAlerter struct {
	mu       sync.RWMutex
	channels []Alerter
	logger   *slog.Logger
}

// NewMultiAlerter builds a fan-out alerter over the given channels.
func NewMultiAlerter(logger *slog.Logger, channels ...Alerter) *MultiAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiAlerter{channels: channels, logger: logger}
}

// Name returns the name of the alerter.
func (m *MultiAlerter) Name() string { return "multi" }

// AddAlerter registers another channel. Safe to call while alerts are in
// flight; the new channel sees only subsequent alerts.
func (m *MultiAlerter) AddAlerter(channel Alerter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, channel)
}

// Alert delivers to all channels and joins their failures. A failing
// channel is logged and does not block the rest.
func (m *MultiAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	m.mu.RLock()
	channels := make([]Alerter, len(m.channels))
	copy(channels, m.channels)
	m.mu.RUnlock()

	if len(channels) == 0 {
		return nil
	}

	results := make(chan error, len(channels))
	var wg sync.WaitGroup
	for _, ch := range channels {
		wg.Add(1)
		go func(a Alerter) {
			defer wg.Done()
			err := a.Alert(ctx, severity, message, fields...)
			if err != nil {
				m.logger.Error("alert channel failed",
					"channel", a.Name(),
					"severity", severity.String(),
					"err", err,
				)
			}
			results <- err
		}(ch)
	}
	wg.Wait()
	close(results)

	var errs []error
	for err := range results {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AlertEvent delivers an alert at the event's default severity.
func (m *MultiAlerter) AlertEvent(ctx context.Context, event AlertEvent, message string, fields ...any) error {
	return m.Alert(ctx, EventSeverity(event), message, fields...)
}
