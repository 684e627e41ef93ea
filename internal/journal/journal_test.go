package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yciu/futures-pipeline/internal/types"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()

	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestSaveAndRecentSignals(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	first := types.TradingSignal{
		When:        time.Now().UTC().Truncate(time.Second),
		Operation:   types.OperationBuy,
		CommodityID: "TXF",
	}
	second := first
	second.Operation = types.OperationSell

	if err := j.SaveSignal(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := j.SaveSignal(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	records, err := j.RecentSignals(ctx, 10)
	if err != nil {
		t.Fatalf("recent signals: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	// Newest first.
	if records[0].Operation != "SELL" || records[1].Operation != "BUY" {
		t.Errorf("order = %s, %s; want SELL, BUY", records[0].Operation, records[1].Operation)
	}
	if records[0].CommodityID != "TXF" {
		t.Errorf("commodity = %q", records[0].CommodityID)
	}
}

func TestRecentSignalsHonorsLimit(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		sig := types.TradingSignal{
			When:        time.Now().UTC(),
			Operation:   types.OperationBuy,
			CommodityID: "TXF",
		}
		if err := j.SaveSignal(ctx, sig); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	records, err := j.RecentSignals(ctx, 3)
	if err != nil {
		t.Fatalf("recent signals: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("records = %d, want 3", len(records))
	}
}

func TestOrderLifecycle(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	order := types.OrderRequest{
		OrderAccount: "F0001",
		ItemCode:     "TXF",
		Side:         types.OperationBuy,
		OrderType:    types.OrderTypeMarket,
		Price:        decimal.Zero,
		Quantity:     1,
		OpenClose:    types.OpenCloseAuto,
		DayTrade:     types.DayTradeNo,
		TimeInForce:  types.TimeInForceIOC,
	}

	id, err := j.SaveOrder(ctx, order)
	if err != nil {
		t.Fatalf("save order: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a non-zero journal id")
	}

	records, err := j.RecentOrders(ctx, 10)
	if err != nil {
		t.Fatalf("recent orders: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	r := records[0]
	if r.Status != OrderStatusSubmitted {
		t.Errorf("status = %q, want SUBMITTED", r.Status)
	}
	if r.ItemCode != "TXF" || r.Side != "BUY" || r.Quantity != 1 {
		t.Errorf("record = %+v", r)
	}
	if !r.Price.IsZero() {
		t.Errorf("price = %s, want 0", r.Price)
	}

	if err := j.UpdateOrderResult(ctx, id, OrderStatusAccepted, "X100", ""); err != nil {
		t.Fatalf("update order: %v", err)
	}

	records, err = j.RecentOrders(ctx, 10)
	if err != nil {
		t.Fatalf("recent orders: %v", err)
	}
	r = records[0]
	if r.Status != OrderStatusAccepted || r.OrderSerial != "X100" {
		t.Errorf("record after update = %+v", r)
	}
}

func TestFailedOrderKeepsErrorText(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	order := types.OrderRequest{
		OrderAccount: "F0001",
		ItemCode:     "MXF",
		Side:         types.OperationSell,
		Quantity:     2,
		Price:        decimal.Zero,
	}
	id, err := j.SaveOrder(ctx, order)
	if err != nil {
		t.Fatalf("save order: %v", err)
	}

	if err := j.UpdateOrderResult(ctx, id, OrderStatusFailed, "", "gateway timeout"); err != nil {
		t.Fatalf("update order: %v", err)
	}

	records, err := j.RecentOrders(ctx, 1)
	if err != nil {
		t.Fatalf("recent orders: %v", err)
	}
	if records[0].Status != OrderStatusFailed || records[0].ErrorText != "gateway timeout" {
		t.Errorf("record = %+v", records[0])
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	j := newTestJournal(t)

	// Open already migrated; a second run must not fail.
	if err := j.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
