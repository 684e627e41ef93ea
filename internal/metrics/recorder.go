package metrics

import "time"

// Recorder provides methods for recording pipeline metrics.
type Recorder struct{}

// NewRecorder creates a new metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordTickPublished records a fanned-out tick.
func (r *Recorder) RecordTickPublished(commodity string) {
	TicksPublished.WithLabelValues(commodity).Inc()
}

// RecordTickReceived records a tick consumed by the strategy.
func (r *Recorder) RecordTickReceived() {
	TicksReceived.Inc()
}

// RecordSignalEmitted records an emitted trading signal.
func (r *Recorder) RecordSignalEmitted(operation string) {
	SignalsEmitted.WithLabelValues(operation).Inc()
}

// RecordSignalSendFailure records a failed signal push.
func (r *Recorder) RecordSignalSendFailure() {
	SignalSendFailures.Inc()
}

// RecordSignalDiscarded records a signal dropped by the executor.
func (r *Recorder) RecordSignalDiscarded(reason string) {
	SignalsDiscarded.WithLabelValues(reason).Inc()
}

// RecordOrder records an order submission outcome.
func (r *Recorder) RecordOrder(operation, status string) {
	OrdersSubmitted.WithLabelValues(operation, status).Inc()
}

// RecordGatewayRequest records one served RPC.
func (r *Recorder) RecordGatewayRequest(operation, status string, elapsed time.Duration) {
	GatewayRequests.WithLabelValues(operation, status).Inc()
	GatewayRequestSeconds.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordExchangeConnected records exchange connectivity.
func (r *Recorder) RecordExchangeConnected(connected bool) {
	if connected {
		ExchangeConnected.Set(1)
	} else {
		ExchangeConnected.Set(0)
	}
}

// RecordComponentState records a lifecycle component state.
func (r *Recorder) RecordComponentState(component string, state int) {
	ComponentState.WithLabelValues(component).Set(float64(state))
}

// RecordConditionsActive records the tracked condition count.
func (r *Recorder) RecordConditionsActive(n int) {
	ConditionsActive.Set(float64(n))
}

// RecordHeartbeat records tick-processing liveness.
func (r *Recorder) RecordHeartbeat() {
	HeartbeatTimestamp.Set(float64(time.Now().Unix()))
}

// RecordError records an internal error.
func (r *Recorder) RecordError(errorType string) {
	ErrorsTotal.WithLabelValues(errorType).Inc()
}

// Timer is a helper for measuring latency.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the elapsed duration.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// ObserveTickProcessing observes the elapsed time as tick latency.
func (t *Timer) ObserveTickProcessing() {
	TickProcessSeconds.Observe(t.Elapsed().Seconds())
}
