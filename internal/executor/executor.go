// Package executor consumes trading signals and converts them into market
// orders submitted through the broker gateway.
package executor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/yciu/futures-pipeline/internal/alerting"
	"github.com/yciu/futures-pipeline/internal/gateway"
	"github.com/yciu/futures-pipeline/internal/journal"
	"github.com/yciu/futures-pipeline/internal/metrics"
	"github.com/yciu/futures-pipeline/internal/types"
)

// GatewayClient is the RPC surface the executor needs.
type GatewayClient interface {
	SendOrder(ctx context.Context, order types.OrderRequest) (*gateway.SendOrderData, error)
	IsConnected(ctx context.Context) bool
}

// SessionReader provides the trading account and symbol for order building.
type SessionReader interface {
	OrderAccount() (string, error)
	ItemCode() (string, error)
}

// OrderJournal records order attempts and outcomes. Best effort; nil is valid.
type OrderJournal interface {
	SaveOrder(ctx context.Context, order types.OrderRequest) (int64, error)
	UpdateOrderResult(ctx context.Context, id int64, status, orderSerial, errorText string) error
}

// Config holds executor configuration.
type Config struct {
	// DefaultQuantity is used for every submitted order.
	DefaultQuantity int64
}

// DefaultConfig returns default executor configuration.
func DefaultConfig() Config {
	return Config{DefaultQuantity: 1}
}

// Executor is the single consumer of the signal pipe. One signal is fully
// processed before the next is received; a malformed or unservable signal
// is logged and dropped, never retried.
type Executor struct {
	cfg      Config
	client   GatewayClient
	session  SessionReader
	journal  OrderJournal
	alerter  alerting.Alerter
	logger   *slog.Logger
	recorder *metrics.Recorder

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates an order executor. journal and alerter may be nil.
func New(cfg Config, client GatewayClient, session SessionReader, jrnl OrderJournal, alerter alerting.Alerter, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultQuantity < 1 {
		cfg.DefaultQuantity = DefaultConfig().DefaultQuantity
	}
	return &Executor{
		cfg:      cfg,
		client:   client,
		session:  session,
		journal:  jrnl,
		alerter:  alerter,
		logger:   logger,
		recorder: metrics.NewRecorder(),
	}
}

// Start launches the signal loop. Calling Start on a running executor logs
// a warning and returns success.
func (e *Executor) Start(ctx context.Context, payloads <-chan []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running.Load() {
		e.logger.Warn("order executor already running")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running.Store(true)

	go e.run(runCtx, payloads)

	e.logger.Info("order executor started")
	return nil
}

// Stop terminates the signal loop and waits for the in-flight signal.
func (e *Executor) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running.Load() {
		return nil
	}

	e.cancel()
	<-e.done
	e.running.Store(false)

	e.logger.Info("order executor stopped")
	return nil
}

// IsRunning reports whether the signal loop is active.
func (e *Executor) IsRunning() bool {
	return e.running.Load()
}

func (e *Executor) run(ctx context.Context, payloads <-chan []byte) {
	defer close(e.done)

	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-payloads:
			if !ok {
				e.logger.Warn("signal channel closed, executor loop exiting")
				return
			}
			e.HandlePayload(ctx, payload)
		}
	}
}

// HandlePayload processes one raw signal payload end to end. Exported so
// the loop body can be driven directly in tests.
func (e *Executor) HandlePayload(ctx context.Context, payload []byte) {
	sig, err := types.ParseTradingSignal(payload)
	if err != nil {
		e.logger.Warn("discarding malformed signal payload", "err", err)
		e.recorder.RecordSignalDiscarded("malformed")
		return
	}

	account, err := e.session.OrderAccount()
	if err != nil || account == "" {
		e.logger.Error("no order account in session, skipping signal",
			"operation", sig.Operation,
			"commodity_id", sig.CommodityID,
			"err", err,
		)
		e.recorder.RecordSignalDiscarded("no_account")
		return
	}

	itemCode := sig.CommodityID
	if itemCode == "" {
		if code, err := e.session.ItemCode(); err == nil {
			itemCode = code
		}
	}

	if !e.client.IsConnected(ctx) {
		e.logger.Error("gateway not connected, skipping signal",
			"operation", sig.Operation,
			"commodity_id", sig.CommodityID,
		)
		e.recorder.RecordSignalDiscarded("gateway_down")
		e.alertEvent(ctx, alerting.EventGatewayUnreachable,
			"Gateway unreachable, signal skipped",
			"operation", sig.Operation.String(),
			"commodity_id", sig.CommodityID,
		)
		return
	}

	order := e.buildOrder(account, itemCode, sig)
	e.submit(ctx, order)
}

// buildOrder applies the fixed execution policy: market order at price zero
// with the configured default quantity, immediate-or-cancel.
func (e *Executor) buildOrder(account, itemCode string, sig types.TradingSignal) types.OrderRequest {
	return types.OrderRequest{
		OrderAccount: account,
		ItemCode:     itemCode,
		Side:         sig.Operation,
		OrderType:    types.OrderTypeMarket,
		Price:        decimal.Zero,
		Quantity:     e.cfg.DefaultQuantity,
		OpenClose:    types.OpenCloseAuto,
		DayTrade:     types.DayTradeNo,
		TimeInForce:  types.TimeInForceIOC,
	}
}

func (e *Executor) submit(ctx context.Context, order types.OrderRequest) {
	var journalID int64
	if e.journal != nil {
		id, err := e.journal.SaveOrder(ctx, order)
		if err != nil {
			e.logger.Warn("failed to journal order", "err", err)
		} else {
			journalID = id
		}
	}

	result, err := e.client.SendOrder(ctx, order)
	if err != nil {
		e.logger.Error("order submission failed",
			"item_code", order.ItemCode,
			"side", order.Side,
			"quantity", order.Quantity,
			"err", err,
		)
		e.recorder.RecordOrder(order.Side.String(), journal.OrderStatusFailed)
		e.recordOutcome(ctx, journalID, journal.OrderStatusFailed, "", err.Error())
		e.alertEvent(ctx, alerting.EventOrderFailed,
			"Order submission failed",
			"item_code", order.ItemCode,
			"side", order.Side.String(),
			"error", err.Error(),
		)
		return
	}

	if !result.IsSendOrder {
		e.logger.Error("order rejected by broker",
			"item_code", order.ItemCode,
			"side", order.Side,
			"error_code", result.ErrorCode,
			"error_message", result.ErrorMessage,
		)
		e.recorder.RecordOrder(order.Side.String(), journal.OrderStatusRejected)
		e.recordOutcome(ctx, journalID, journal.OrderStatusRejected, result.OrderSerial, result.ErrorMessage)
		e.alertEvent(ctx, alerting.EventOrderRejected,
			"Order rejected",
			"item_code", order.ItemCode,
			"side", order.Side.String(),
			"error_code", result.ErrorCode,
		)
		return
	}

	e.logger.Info("order accepted",
		"item_code", order.ItemCode,
		"side", order.Side,
		"quantity", order.Quantity,
		"order_serial", result.OrderSerial,
	)
	e.recorder.RecordOrder(order.Side.String(), journal.OrderStatusAccepted)
	e.recordOutcome(ctx, journalID, journal.OrderStatusAccepted, result.OrderSerial, "")
	e.alertEvent(ctx, alerting.EventPositionOpened,
		"Order accepted",
		"item_code", order.ItemCode,
		"side", order.Side.String(),
		"order_serial", result.OrderSerial,
	)
}

func (e *Executor) recordOutcome(ctx context.Context, journalID int64, status, serial, errText string) {
	if e.journal == nil || journalID == 0 {
		return
	}
	if err := e.journal.UpdateOrderResult(ctx, journalID, status, serial, errText); err != nil {
		e.logger.Warn("failed to journal order outcome", "err", err)
	}
}

func (e *Executor) alertEvent(ctx context.Context, event alerting.AlertEvent, message string, fields ...any) {
	if e.alerter == nil {
		return
	}
	if err := e.alerter.Alert(ctx, alerting.EventSeverity(event), message, fields...); err != nil {
		e.logger.Warn("failed to send alert", "event", string(event), "err", err)
	}
}
