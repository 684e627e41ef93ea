// Package sim provides a simulated broker so the pipeline can run without
// the native library.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yciu/futures-pipeline/internal/broker"
	"github.com/yciu/futures-pipeline/internal/types"
)

// Config holds simulated broker configuration.
type Config struct {
	Account      string
	StartPrice   decimal.Decimal
	TickInterval time.Duration
	// RejectEvery makes every Nth order fail, 0 disables rejection.
	RejectEvery int
}

// DefaultConfig returns default simulation config.
func DefaultConfig() Config {
	return Config{
		Account:      "SIM",
		StartPrice:   decimal.NewFromInt(18000),
		TickInterval: 200 * time.Millisecond,
	}
}

// Broker implements broker.Broker with a random-walk price stream and
// immediate fills.
type Broker struct {
	cfg    Config
	logger *slog.Logger

	state atomic.Int32

	// Price simulation
	priceMu sync.Mutex
	price   decimal.Decimal
	rng     *rand.Rand

	// Positions
	positionsMu sync.RWMutex
	positions   map[string]*types.Position

	// Orders
	nextSerial atomic.Int64
	orderCount atomic.Int64

	// Tick subscriptions
	subsMu sync.Mutex
	subs   map[string]chan broker.RawTick

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a simulated broker.
func New(cfg Config, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}

	b := &Broker{
		cfg:       cfg,
		logger:    logger,
		price:     cfg.StartPrice,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		positions: make(map[string]*types.Position),
		subs:      make(map[string]chan broker.RawTick),
		done:      make(chan struct{}),
	}

	b.state.Store(int32(broker.StateDisconnected))
	b.nextSerial.Store(1)

	return b
}

// Connect marks the simulated exchange link up. Reconnecting after a
// disconnect arms a fresh shutdown channel so tick streams can be opened
// again.
func (b *Broker) Connect(ctx context.Context) error {
	if !b.state.CompareAndSwap(int32(broker.StateDisconnected), int32(broker.StateConnected)) {
		return nil
	}

	b.subsMu.Lock()
	b.done = make(chan struct{})
	b.subsMu.Unlock()

	b.logger.Info("sim broker connected",
		"account", b.cfg.Account,
		"start_price", b.cfg.StartPrice,
	)
	return nil
}

// Disconnect tears the link down and closes tick channels.
func (b *Broker) Disconnect() error {
	if broker.ConnectionState(b.state.Swap(int32(broker.StateDisconnected))) == broker.StateDisconnected {
		return nil
	}

	b.subsMu.Lock()
	done := b.done
	b.subsMu.Unlock()
	close(done)
	b.wg.Wait()

	b.subsMu.Lock()
	for code, ch := range b.subs {
		close(ch)
		delete(b.subs, code)
	}
	b.subsMu.Unlock()

	b.logger.Info("sim broker disconnected")
	return nil
}

// State returns the connection state.
func (b *Broker) State() broker.ConnectionState {
	return broker.ConnectionState(b.state.Load())
}

// IsConnected returns true if connected.
func (b *Broker) IsConnected() bool {
	return b.State() == broker.StateConnected
}

// SendOrder fills the order against the current simulated price.
func (b *Broker) SendOrder(ctx context.Context, req types.OrderRequest) (*types.OrderResponse, error) {
	if !b.IsConnected() {
		return nil, broker.ErrNotConnected
	}

	if n := b.orderCount.Add(1); b.cfg.RejectEvery > 0 && n%int64(b.cfg.RejectEvery) == 0 {
		return &types.OrderResponse{
			Accepted:     false,
			ErrorCode:    "SIM_REJECT",
			ErrorMessage: "order rejected by simulation",
		}, broker.ErrOrderRejected
	}

	serial := fmt.Sprintf("SIM-%06d", b.nextSerial.Add(1))
	fill := b.currentPrice()

	b.applyFill(req, fill)

	b.logger.Info("sim order filled",
		"order_serial", serial,
		"item_code", req.ItemCode,
		"side", req.Side,
		"quantity", req.Quantity,
		"price", fill,
	)

	return &types.OrderResponse{
		Accepted:    true,
		OrderSerial: serial,
	}, nil
}

// applyFill nets the fill into the account's position for the item.
func (b *Broker) applyFill(req types.OrderRequest, fill decimal.Decimal) {
	b.positionsMu.Lock()
	defer b.positionsMu.Unlock()

	qty := req.Quantity
	if req.Side == types.OperationSell {
		qty = -qty
	}

	pos, ok := b.positions[req.ItemCode]
	if !ok {
		b.positions[req.ItemCode] = &types.Position{
			Account:      req.OrderAccount,
			ItemCode:     req.ItemCode,
			Quantity:     qty,
			AveragePrice: fill,
		}
		return
	}

	newQty := pos.Quantity + qty
	switch {
	case newQty == 0:
		delete(b.positions, req.ItemCode)
	case (pos.Quantity > 0) == (newQty > 0) && abs(newQty) > abs(pos.Quantity):
		// Adding to the position: volume-weighted average cost.
		total := pos.AveragePrice.Mul(decimal.NewFromInt(abs(pos.Quantity))).
			Add(fill.Mul(decimal.NewFromInt(abs(qty))))
		pos.AveragePrice = total.Div(decimal.NewFromInt(abs(newQty)))
		pos.Quantity = newQty
	default:
		// Reducing or flipping
		if (pos.Quantity > 0) != (newQty > 0) {
			pos.AveragePrice = fill
		}
		pos.Quantity = newQty
	}
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

// Positions returns positions for the account.
func (b *Broker) Positions(ctx context.Context, account string) ([]types.Position, error) {
	if !b.IsConnected() {
		return nil, broker.ErrNotConnected
	}

	b.positionsMu.RLock()
	defer b.positionsMu.RUnlock()

	positions := make([]types.Position, 0, len(b.positions))
	for _, p := range b.positions {
		pos := *p
		pos.UnrealizedPnL = b.currentPrice().Sub(p.AveragePrice).
			Mul(decimal.NewFromInt(p.Quantity))
		positions = append(positions, pos)
	}
	return positions, nil
}

// Ticks starts the random-walk stream for an item code.
func (b *Broker) Ticks(ctx context.Context, itemCode string) (<-chan broker.RawTick, error) {
	if !b.IsConnected() {
		return nil, broker.ErrNotConnected
	}

	b.subsMu.Lock()
	defer b.subsMu.Unlock()

	if ch, ok := b.subs[itemCode]; ok {
		return ch, nil
	}

	ch := make(chan broker.RawTick, 100)
	b.subs[itemCode] = ch

	b.wg.Add(1)
	go b.walk(ctx, itemCode, ch, b.done)

	b.logger.Info("sim tick stream started", "item_code", itemCode)
	return ch, nil
}

// walk emits ticks on a random walk around the start price. The shutdown
// channel is captured per stream; a reconnect arms a new one.
func (b *Broker) walk(ctx context.Context, itemCode string, ch chan broker.RawTick, done <-chan struct{}) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			tick := broker.RawTick{
				CommodityID: itemCode,
				MatchPrice:  b.step().String(),
			}
			select {
			case ch <- tick:
			default:
				// Slow consumer, drop the tick.
			}
		}
	}
}

// step advances the random walk by at most +-5 points.
func (b *Broker) step() decimal.Decimal {
	b.priceMu.Lock()
	defer b.priceMu.Unlock()

	delta := decimal.NewFromInt(int64(b.rng.Intn(11) - 5))
	b.price = b.price.Add(delta)
	return b.price
}

func (b *Broker) currentPrice() decimal.Decimal {
	b.priceMu.Lock()
	defer b.priceMu.Unlock()
	return b.price
}

// SetPrice pins the simulated price, for tests.
func (b *Broker) SetPrice(p decimal.Decimal) {
	b.priceMu.Lock()
	defer b.priceMu.Unlock()
	b.price = p
}

// Ensure Broker implements broker.Broker
var _ broker.Broker = (*Broker)(nil)
