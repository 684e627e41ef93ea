// Package alerting provides notification capabilities for the trading pipeline.
package alerting

import (
	"context"
	"fmt"
)

// Severity represents the alert severity level.
type Severity int

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = iota
	// SeverityWarning is for warning messages.
	SeverityWarning
	// SeverityHigh is for high priority alerts.
	SeverityHigh
	// SeverityCritical is for critical alerts requiring immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Emoji returns an emoji for the severity level.
func (s Severity) Emoji() string {
	switch s {
	case SeverityInfo:
		return "ℹ️"
	case SeverityWarning:
		return "⚠️"
	case SeverityHigh:
		return "🔴"
	case SeverityCritical:
		return "🚨"
	default:
		return "❓"
	}
}

// Alerter defines the interface for sending alerts.
type Alerter interface {
	// Alert sends an alert with the given severity and message.
	Alert(ctx context.Context, severity Severity, message string, fields ...any) error
	// Name returns the name of the alerter.
	Name() string
}

// FormatFields converts variadic key-value fields to a formatted string.
func FormatFields(fields ...any) string {
	if len(fields) == 0 {
		return ""
	}

	result := ""
	for i := 0; i < len(fields)-1; i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		value := fields[i+1]
		if result != "" {
			result += "\n"
		}
		result += fmt.Sprintf("• %s: %v", key, value)
	}
	return result
}

// AlertEvent represents a pre-defined alert event type.
type AlertEvent string

const (
	// EventConditionTriggered is sent when a trigger price is reached.
	EventConditionTriggered AlertEvent = "condition_triggered"
	// EventPositionOpened is sent when an entry order is accepted.
	EventPositionOpened AlertEvent = "position_opened"
	// EventPositionExited is sent when an exit order is accepted.
	EventPositionExited AlertEvent = "position_exited"
	// EventOrderRejected is sent when the broker rejects an order.
	EventOrderRejected AlertEvent = "order_rejected"
	// EventOrderFailed is sent when an order cannot reach the gateway.
	EventOrderFailed AlertEvent = "order_failed"
	// EventGatewayUnreachable is sent when the gateway stops answering.
	EventGatewayUnreachable AlertEvent = "gateway_unreachable"
	// EventComponentError is sent when a pipeline component fails.
	EventComponentError AlertEvent = "component_error"
	// EventPipelineStarted is sent when the pipeline starts.
	EventPipelineStarted AlertEvent = "pipeline_started"
	// EventPipelineStopped is sent when the pipeline stops.
	EventPipelineStopped AlertEvent = "pipeline_stopped"
)

// EventSeverity returns the default severity for an event.
func EventSeverity(event AlertEvent) Severity {
	switch event {
	case EventComponentError:
		return SeverityCritical
	case EventGatewayUnreachable, EventOrderFailed:
		return SeverityHigh
	case EventOrderRejected:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
