package sim

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yciu/futures-pipeline/internal/broker"
	"github.com/yciu/futures-pipeline/internal/types"
)

func newConnectedBroker(t *testing.T, cfg Config) *Broker {
	t.Helper()

	b := New(cfg, nil)
	if err := b.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = b.Disconnect() })
	return b
}

func marketOrder(side types.Operation, qty int64) types.OrderRequest {
	return types.OrderRequest{
		OrderAccount: "SIM",
		ItemCode:     "TXF",
		Side:         side,
		OrderType:    types.OrderTypeMarket,
		Price:        decimal.Zero,
		Quantity:     qty,
		OpenClose:    types.OpenCloseAuto,
		DayTrade:     types.DayTradeNo,
		TimeInForce:  types.TimeInForceIOC,
	}
}

func TestConnectionState(t *testing.T) {
	b := New(DefaultConfig(), nil)

	if b.IsConnected() {
		t.Fatal("fresh broker must start disconnected")
	}
	if _, err := b.SendOrder(context.Background(), marketOrder(types.OperationBuy, 1)); !errors.Is(err, broker.ErrNotConnected) {
		t.Fatalf("send while disconnected: %v", err)
	}

	if err := b.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !b.IsConnected() || b.State() != broker.StateConnected {
		t.Error("broker should report connected")
	}

	if err := b.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if b.IsConnected() {
		t.Error("broker should report disconnected")
	}

	// Disconnect is idempotent.
	if err := b.Disconnect(); err != nil {
		t.Fatalf("second disconnect: %v", err)
	}
}

func TestReconnectCycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickInterval = 5 * time.Millisecond
	b := New(cfg, nil)
	ctx := context.Background()

	// Lifecycle restarts drive repeated Connect/Disconnect on one broker.
	for cycle := 0; cycle < 3; cycle++ {
		if err := b.Connect(ctx); err != nil {
			t.Fatalf("cycle %d connect: %v", cycle, err)
		}
		if !b.IsConnected() {
			t.Fatalf("cycle %d: broker should report connected", cycle)
		}

		if _, err := b.SendOrder(ctx, marketOrder(types.OperationBuy, 1)); err != nil {
			t.Fatalf("cycle %d order: %v", cycle, err)
		}

		streamCtx, cancel := context.WithCancel(ctx)
		ticks, err := b.Ticks(streamCtx, "TXF")
		if err != nil {
			t.Fatalf("cycle %d ticks: %v", cycle, err)
		}
		select {
		case <-ticks:
		case <-time.After(2 * time.Second):
			cancel()
			t.Fatalf("cycle %d: no tick arrived", cycle)
		}
		cancel()

		if err := b.Disconnect(); err != nil {
			t.Fatalf("cycle %d disconnect: %v", cycle, err)
		}
	}
}

func TestSendOrderFills(t *testing.T) {
	b := newConnectedBroker(t, DefaultConfig())
	b.SetPrice(decimal.NewFromInt(18100))

	resp, err := b.SendOrder(context.Background(), marketOrder(types.OperationBuy, 2))
	if err != nil {
		t.Fatalf("send order: %v", err)
	}
	if !resp.Accepted {
		t.Fatalf("response = %+v, want accepted", resp)
	}
	if !strings.HasPrefix(resp.OrderSerial, "SIM-") {
		t.Errorf("order serial = %q", resp.OrderSerial)
	}

	positions, err := b.Positions(context.Background(), "SIM")
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(positions))
	}
	p := positions[0]
	if p.ItemCode != "TXF" || p.Quantity != 2 {
		t.Errorf("position = %+v", p)
	}
	if !p.AveragePrice.Equal(decimal.NewFromInt(18100)) {
		t.Errorf("average price = %s, want 18100", p.AveragePrice)
	}
}

func TestPositionNettingAndVWAP(t *testing.T) {
	b := newConnectedBroker(t, DefaultConfig())
	ctx := context.Background()

	b.SetPrice(decimal.NewFromInt(18000))
	if _, err := b.SendOrder(ctx, marketOrder(types.OperationBuy, 1)); err != nil {
		t.Fatalf("buy 1: %v", err)
	}

	// Adding at a higher price moves the average to the volume-weighted mean.
	b.SetPrice(decimal.NewFromInt(18100))
	if _, err := b.SendOrder(ctx, marketOrder(types.OperationBuy, 1)); err != nil {
		t.Fatalf("buy 2: %v", err)
	}

	positions, _ := b.Positions(ctx, "SIM")
	if len(positions) != 1 || positions[0].Quantity != 2 {
		t.Fatalf("positions = %+v", positions)
	}
	if !positions[0].AveragePrice.Equal(decimal.NewFromInt(18050)) {
		t.Errorf("average price = %s, want 18050", positions[0].AveragePrice)
	}

	// Selling the full size flattens the position.
	if _, err := b.SendOrder(ctx, marketOrder(types.OperationSell, 2)); err != nil {
		t.Fatalf("sell: %v", err)
	}
	positions, _ = b.Positions(ctx, "SIM")
	if len(positions) != 0 {
		t.Errorf("positions after flatten = %+v", positions)
	}
}

func TestPositionFlipUsesFillPrice(t *testing.T) {
	b := newConnectedBroker(t, DefaultConfig())
	ctx := context.Background()

	b.SetPrice(decimal.NewFromInt(18000))
	if _, err := b.SendOrder(ctx, marketOrder(types.OperationBuy, 1)); err != nil {
		t.Fatalf("buy: %v", err)
	}

	b.SetPrice(decimal.NewFromInt(17900))
	if _, err := b.SendOrder(ctx, marketOrder(types.OperationSell, 3)); err != nil {
		t.Fatalf("sell: %v", err)
	}

	positions, _ := b.Positions(ctx, "SIM")
	if len(positions) != 1 {
		t.Fatalf("positions = %+v", positions)
	}
	p := positions[0]
	if p.Quantity != -2 {
		t.Errorf("quantity = %d, want -2", p.Quantity)
	}
	if !p.AveragePrice.Equal(decimal.NewFromInt(17900)) {
		t.Errorf("average price = %s, want the flip fill 17900", p.AveragePrice)
	}
}

func TestUnrealizedPnL(t *testing.T) {
	b := newConnectedBroker(t, DefaultConfig())
	ctx := context.Background()

	b.SetPrice(decimal.NewFromInt(18000))
	if _, err := b.SendOrder(ctx, marketOrder(types.OperationBuy, 2)); err != nil {
		t.Fatalf("buy: %v", err)
	}

	b.SetPrice(decimal.NewFromInt(18050))
	positions, _ := b.Positions(ctx, "SIM")
	if len(positions) != 1 {
		t.Fatalf("positions = %+v", positions)
	}
	if !positions[0].UnrealizedPnL.Equal(decimal.NewFromInt(100)) {
		t.Errorf("pnl = %s, want 100", positions[0].UnrealizedPnL)
	}
}

func TestRejectEvery(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RejectEvery = 2
	b := newConnectedBroker(t, cfg)
	ctx := context.Background()

	if _, err := b.SendOrder(ctx, marketOrder(types.OperationBuy, 1)); err != nil {
		t.Fatalf("first order: %v", err)
	}

	resp, err := b.SendOrder(ctx, marketOrder(types.OperationBuy, 1))
	if !errors.Is(err, broker.ErrOrderRejected) {
		t.Fatalf("second order: %v, want ErrOrderRejected", err)
	}
	if resp == nil || resp.Accepted || resp.ErrorCode != "SIM_REJECT" {
		t.Errorf("response = %+v", resp)
	}

	if _, err := b.SendOrder(ctx, marketOrder(types.OperationBuy, 1)); err != nil {
		t.Fatalf("third order: %v", err)
	}
}

func TestTickStream(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickInterval = 5 * time.Millisecond
	b := newConnectedBroker(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticks, err := b.Ticks(ctx, "TXF")
	if err != nil {
		t.Fatalf("ticks: %v", err)
	}

	// Same item code returns the same stream.
	again, err := b.Ticks(ctx, "TXF")
	if err != nil {
		t.Fatalf("second ticks: %v", err)
	}
	if ticks != again {
		t.Error("tick stream for an item code must be shared")
	}

	select {
	case tick := <-ticks:
		if tick.CommodityID != "TXF" {
			t.Errorf("commodity = %q", tick.CommodityID)
		}
		if _, err := decimal.NewFromString(tick.MatchPrice); err != nil {
			t.Errorf("match price %q is not numeric: %v", tick.MatchPrice, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no tick arrived")
	}

	// Disconnect closes the stream.
	if err := b.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ticks:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("tick channel never closed after disconnect")
		}
	}
}
