// Package metrics provides Prometheus metrics for the trading pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics, registered on the default registry.
var (
	TicksPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_ticks_published_total",
		Help: "Total ticks fanned out by the publisher.",
	}, []string{"commodity"})

	TicksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_ticks_received_total",
		Help: "Total ticks received by the strategy engine.",
	})

	TickProcessSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_tick_process_seconds",
		Help:    "Time spent evaluating all conditions for one tick.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})

	SignalsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_signals_emitted_total",
		Help: "Trading signals emitted by the strategy.",
	}, []string{"operation"})

	SignalSendFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_signal_send_failures_total",
		Help: "Signal pushes that failed; the state transition is still committed.",
	})

	SignalsDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_signals_discarded_total",
		Help: "Signals discarded by the executor.",
	}, []string{"reason"})

	OrdersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_orders_submitted_total",
		Help: "Orders submitted through the gateway by operation and status.",
	}, []string{"operation", "status"})

	GatewayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_gateway_requests_total",
		Help: "Gateway RPC requests by operation and outcome.",
	}, []string{"operation", "status"})

	GatewayRequestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_gateway_request_seconds",
		Help:    "Gateway RPC handling latency.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"operation"})

	ExchangeConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pipeline_exchange_connected",
		Help: "1 when the broker reports an exchange connection.",
	})

	ComponentState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pipeline_component_state",
		Help: "Component state: 0 stopped, 1 starting, 2 running, 3 stopping, 4 error.",
	}, []string{"component"})

	ConditionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pipeline_conditions_active",
		Help: "Conditions currently tracked by the strategy.",
	})

	HeartbeatTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pipeline_heartbeat_timestamp_seconds",
		Help: "Unix time of the last processed tick.",
	})

	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_errors_total",
		Help: "Internal errors by type.",
	}, []string{"type"})

	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pipeline_build_info",
		Help: "Build information.",
	}, []string{"version", "commit", "build_time"})
)

// SetBuildInfo records build metadata.
func SetBuildInfo(version, commit, buildTime string) {
	BuildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}
