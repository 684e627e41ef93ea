// Package strategy converts market ticks into trading signals by running
// every stored condition through its state machine.
package strategy

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yciu/futures-pipeline/internal/metrics"
	"github.com/yciu/futures-pipeline/internal/types"
)

// ConditionStore is the persistence surface the engine needs.
type ConditionStore interface {
	GetAll() ([]types.Condition, error)
	Update(cond types.Condition) error
	Delete(id string) error
}

// SignalSender pushes emitted signals toward the executor.
type SignalSender interface {
	Push(sig types.TradingSignal) error
}

// SignalJournal records emitted signals. Best effort; a nil journal is valid.
type SignalJournal interface {
	SaveSignal(ctx context.Context, sig types.TradingSignal) error
}

// Engine evaluates all conditions against each incoming tick, persists the
// mutated conditions and emits entry/exit signals. A condition advances at
// most one state edge per tick; an exited condition is deleted in the same
// update cycle.
type Engine struct {
	store    ConditionStore
	signals  SignalSender
	journal  SignalJournal
	logger   *slog.Logger
	recorder *metrics.Recorder

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewEngine creates a strategy engine. journal may be nil.
func NewEngine(store ConditionStore, signals SignalSender, journal SignalJournal, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		signals:  signals,
		journal:  journal,
		logger:   logger,
		recorder: metrics.NewRecorder(),
	}
}

// Start launches the tick loop. Calling Start on a running engine logs a
// warning and returns success.
func (e *Engine) Start(ctx context.Context, ticks <-chan types.Tick) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running.Load() {
		e.logger.Warn("strategy engine already running")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running.Store(true)

	go e.run(runCtx, ticks)

	e.logger.Info("strategy engine started")
	return nil
}

// Stop terminates the tick loop and waits for it to drain.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running.Load() {
		return nil
	}

	e.cancel()
	<-e.done
	e.running.Store(false)

	e.logger.Info("strategy engine stopped")
	return nil
}

// IsRunning reports whether the tick loop is active.
func (e *Engine) IsRunning() bool {
	return e.running.Load()
}

func (e *Engine) run(ctx context.Context, ticks <-chan types.Tick) {
	defer close(e.done)

	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				e.logger.Warn("tick channel closed, strategy loop exiting")
				return
			}
			e.ProcessTick(ctx, tick)
		}
	}
}

// ProcessTick applies one tick to every stored condition. Exported so the
// loop body can be driven directly in tests.
func (e *Engine) ProcessTick(ctx context.Context, tick types.Tick) {
	timer := metrics.NewTimer()
	defer timer.ObserveTickProcessing()

	e.recorder.RecordTickReceived()
	e.recorder.RecordHeartbeat()

	conds, err := e.store.GetAll()
	if err != nil {
		e.logger.Error("failed to load conditions", "err", err)
		e.recorder.RecordError("condition_load")
		return
	}

	for i := range conds {
		cond := conds[i]
		sig, changed := advance(&cond, tick.MatchPrice)
		if !changed {
			continue
		}

		// The transition is committed regardless of signal delivery:
		// the intent has been recorded, retry is a higher-layer concern.
		if sig != nil {
			signal := types.TradingSignal{
				When:        time.Now().UTC(),
				Operation:   *sig,
				CommodityID: tick.CommodityID,
			}
			e.emit(ctx, signal, cond)
		}

		if cond.State == types.StateExited {
			if err := e.store.Delete(cond.ID); err != nil {
				e.logger.Error("failed to delete exited condition",
					"condition_id", cond.ID,
					"err", err,
				)
			}
			continue
		}

		if err := e.store.Update(cond); err != nil {
			e.logger.Error("failed to persist condition",
				"condition_id", cond.ID,
				"err", err,
			)
		}
	}

	e.recorder.RecordConditionsActive(len(conds))
}

func (e *Engine) emit(ctx context.Context, sig types.TradingSignal, cond types.Condition) {
	if err := e.signals.Push(sig); err != nil {
		e.logger.Error("failed to push signal",
			"operation", sig.Operation,
			"commodity_id", sig.CommodityID,
			"condition_id", cond.ID,
			"err", err,
		)
		e.recorder.RecordSignalSendFailure()
	} else {
		e.logger.Info("signal emitted",
			"operation", sig.Operation,
			"commodity_id", sig.CommodityID,
			"condition_id", cond.ID,
			"state", cond.State,
		)
		e.recorder.RecordSignalEmitted(sig.Operation.String())
	}

	if e.journal != nil {
		if err := e.journal.SaveSignal(ctx, sig); err != nil {
			e.logger.Warn("failed to journal signal", "err", err)
		}
	}
}

// advance applies at most one state edge to the condition for price p and
// reports the operation to emit, if any, plus whether the condition changed.
//
// A following condition trails its trigger toward the price until the entry
// order fires: the trigger only ever moves down for BUY and up for SELL, so
// it can never cross to the wrong side.
func advance(c *types.Condition, p decimal.Decimal) (*types.Operation, bool) {
	switch c.State {
	case types.StateWaiting:
		reached := false
		if c.Action == types.OperationBuy {
			reached = p.LessThanOrEqual(c.TriggerPrice)
		} else {
			reached = p.GreaterThanOrEqual(c.TriggerPrice)
		}
		if !reached {
			return nil, false
		}
		if c.IsFollowing {
			c.TriggerPrice = p
			c.DerivePrices()
		}
		c.State = types.StateTriggered
		return nil, true

	case types.StateTriggered:
		if c.Action == types.OperationBuy {
			if p.GreaterThanOrEqual(c.OrderPrice) {
				c.State = types.StateOpen
				op := c.Action
				return &op, true
			}
			if c.IsFollowing && p.LessThanOrEqual(c.TriggerPrice) {
				c.TriggerPrice = p
				c.DerivePrices()
				return nil, true
			}
		} else {
			if p.LessThanOrEqual(c.OrderPrice) {
				c.State = types.StateOpen
				op := c.Action
				return &op, true
			}
			if c.IsFollowing && p.GreaterThanOrEqual(c.TriggerPrice) {
				c.TriggerPrice = p
				c.DerivePrices()
				return nil, true
			}
		}
		return nil, false

	case types.StateOpen:
		exit := false
		if c.Action == types.OperationBuy {
			exit = p.GreaterThanOrEqual(c.TakeProfitPrice) || p.LessThanOrEqual(c.StopLossPrice)
		} else {
			exit = p.LessThanOrEqual(c.TakeProfitPrice) || p.GreaterThanOrEqual(c.StopLossPrice)
		}
		if !exit {
			return nil, false
		}
		c.State = types.StateExited
		op := c.Action.Opposite()
		return &op, true
	}

	return nil, false
}
