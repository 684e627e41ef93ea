package executor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yciu/futures-pipeline/internal/alerting"
	"github.com/yciu/futures-pipeline/internal/gateway"
	"github.com/yciu/futures-pipeline/internal/types"
)

// mockClient is a scriptable GatewayClient.
type mockClient struct {
	mu        sync.Mutex
	connected bool
	orders    []types.OrderRequest
	result    *gateway.SendOrderData
	err       error
}

func (m *mockClient) SendOrder(ctx context.Context, order types.OrderRequest) (*gateway.SendOrderData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, order)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockClient) IsConnected(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockClient) sent() []types.OrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.OrderRequest, len(m.orders))
	copy(out, m.orders)
	return out
}

// mockSession returns fixed session fields.
type mockSession struct {
	account string
	item    string
	err     error
}

func (m *mockSession) OrderAccount() (string, error) { return m.account, m.err }
func (m *mockSession) ItemCode() (string, error)     { return m.item, m.err }

func newExecutor(t *testing.T, client *mockClient, sess *mockSession, alerter alerting.Alerter) *Executor {
	t.Helper()
	return New(Config{DefaultQuantity: 1}, client, sess, nil, alerter, nil)
}

func payload(t *testing.T, sig types.TradingSignal) []byte {
	t.Helper()
	data, err := json.Marshal(sig)
	if err != nil {
		t.Fatalf("marshal signal: %v", err)
	}
	return data
}

func testSignal(op types.Operation) types.TradingSignal {
	return types.TradingSignal{
		When:        time.Now().UTC(),
		Operation:   op,
		CommodityID: "TXF",
	}
}

func TestHandlePayloadSubmitsMarketOrder(t *testing.T) {
	client := &mockClient{
		connected: true,
		result:    &gateway.SendOrderData{IsSendOrder: true, OrderSerial: "X1"},
	}
	sess := &mockSession{account: "F0001", item: "TXF"}
	e := newExecutor(t, client, sess, nil)

	e.HandlePayload(context.Background(), payload(t, testSignal(types.OperationBuy)))

	orders := client.sent()
	if len(orders) != 1 {
		t.Fatalf("orders sent = %d, want 1", len(orders))
	}
	o := orders[0]
	if o.OrderAccount != "F0001" || o.ItemCode != "TXF" {
		t.Errorf("account/item = %s/%s", o.OrderAccount, o.ItemCode)
	}
	if o.Side != types.OperationBuy {
		t.Errorf("side = %v, want BUY", o.Side)
	}
	if o.OrderType != types.OrderTypeMarket || !o.Price.IsZero() {
		t.Errorf("policy fields: type=%v price=%s, want MARKET at 0", o.OrderType, o.Price)
	}
	if o.Quantity != 1 || o.OpenClose != types.OpenCloseAuto ||
		o.DayTrade != types.DayTradeNo || o.TimeInForce != types.TimeInForceIOC {
		t.Errorf("policy fields: %+v", o)
	}
}

func TestMalformedPayloadIsDiscarded(t *testing.T) {
	client := &mockClient{connected: true, result: &gateway.SendOrderData{IsSendOrder: true}}
	sess := &mockSession{account: "F0001"}
	e := newExecutor(t, client, sess, nil)

	e.HandlePayload(context.Background(), []byte("not a signal"))

	if len(client.sent()) != 0 {
		t.Fatal("no order may be submitted for a malformed payload")
	}

	// The next valid signal is processed normally.
	e.HandlePayload(context.Background(), payload(t, testSignal(types.OperationSell)))
	if len(client.sent()) != 1 {
		t.Fatal("valid signal after malformed payload was not processed")
	}
}

func TestNonSignalJSONIsDiscarded(t *testing.T) {
	client := &mockClient{connected: true, result: &gateway.SendOrderData{IsSendOrder: true}}
	sess := &mockSession{account: "F0001", item: "TXF"}
	e := newExecutor(t, client, sess, nil)

	// Valid JSON that is not a trading signal: a zero-value decode would
	// read as an immediate BUY for the session item code.
	for _, payload := range []string{
		`{}`,
		`{"commodity_id": "TXF"}`,
		`{"when": "2026-08-24T10:00:00Z"}`,
		`{"operation": "BUY"}`,
	} {
		e.HandlePayload(context.Background(), []byte(payload))
	}

	if got := client.sent(); len(got) != 0 {
		t.Fatalf("orders submitted for non-signal JSON: %+v", got)
	}
}

func TestMissingOrderAccountSkipsSignal(t *testing.T) {
	client := &mockClient{connected: true, result: &gateway.SendOrderData{IsSendOrder: true}}
	sess := &mockSession{err: errors.New("no session")}
	e := newExecutor(t, client, sess, nil)

	e.HandlePayload(context.Background(), payload(t, testSignal(types.OperationBuy)))

	if len(client.sent()) != 0 {
		t.Fatal("no order may be submitted without an order account")
	}
}

func TestDisconnectedGatewaySkipsSignal(t *testing.T) {
	client := &mockClient{connected: false, result: &gateway.SendOrderData{IsSendOrder: true}}
	sess := &mockSession{account: "F0001"}
	alerter := alerting.NewMockAlerter()
	e := newExecutor(t, client, sess, alerter)

	e.HandlePayload(context.Background(), payload(t, testSignal(types.OperationBuy)))

	if len(client.sent()) != 0 {
		t.Fatal("no order may be submitted while the gateway is down")
	}
	if !alerter.HasAlertContaining("Gateway unreachable") {
		t.Error("expected a gateway-unreachable alert")
	}
}

func TestBrokerRejectionIsAlerted(t *testing.T) {
	client := &mockClient{
		connected: true,
		result:    &gateway.SendOrderData{IsSendOrder: false, ErrorCode: "ORDER_EXECUTION_ERROR", ErrorMessage: "rejected"},
	}
	sess := &mockSession{account: "F0001"}
	alerter := alerting.NewMockAlerter()
	e := newExecutor(t, client, sess, alerter)

	e.HandlePayload(context.Background(), payload(t, testSignal(types.OperationSell)))

	if len(client.sent()) != 1 {
		t.Fatal("the order should still have been submitted once")
	}
	if !alerter.HasAlertWithSeverity(alerting.SeverityWarning) {
		t.Error("expected a rejection warning alert")
	}
}

func TestSendOrderErrorIsAlerted(t *testing.T) {
	client := &mockClient{connected: true, err: gateway.ErrTimeout}
	sess := &mockSession{account: "F0001"}
	alerter := alerting.NewMockAlerter()
	e := newExecutor(t, client, sess, alerter)

	e.HandlePayload(context.Background(), payload(t, testSignal(types.OperationBuy)))

	if !alerter.HasAlertWithSeverity(alerting.SeverityHigh) {
		t.Error("expected a high-severity alert for a failed submission")
	}
}

func TestItemCodeFallsBackToSession(t *testing.T) {
	client := &mockClient{connected: true, result: &gateway.SendOrderData{IsSendOrder: true}}
	sess := &mockSession{account: "F0001", item: "MXF"}
	e := newExecutor(t, client, sess, nil)

	sig := testSignal(types.OperationBuy)
	sig.CommodityID = ""
	e.HandlePayload(context.Background(), payload(t, sig))

	orders := client.sent()
	if len(orders) != 1 || orders[0].ItemCode != "MXF" {
		t.Fatalf("orders = %+v, want one with item MXF", orders)
	}
}

func TestLoopProcessesSignalsInOrder(t *testing.T) {
	client := &mockClient{connected: true, result: &gateway.SendOrderData{IsSendOrder: true, OrderSerial: "X1"}}
	sess := &mockSession{account: "F0001"}
	e := newExecutor(t, client, sess, nil)

	payloads := make(chan []byte, 4)
	if err := e.Start(context.Background(), payloads); err != nil {
		t.Fatalf("start: %v", err)
	}

	payloads <- payload(t, testSignal(types.OperationBuy))
	payloads <- []byte("garbage")
	payloads <- payload(t, testSignal(types.OperationSell))

	deadline := time.After(2 * time.Second)
	for len(client.sent()) < 2 {
		select {
		case <-deadline:
			t.Fatalf("orders sent = %d, want 2", len(client.sent()))
		case <-time.After(10 * time.Millisecond):
		}
	}

	orders := client.sent()
	if orders[0].Side != types.OperationBuy || orders[1].Side != types.OperationSell {
		t.Fatalf("order sides = %v, %v; want BUY then SELL", orders[0].Side, orders[1].Side)
	}

	if err := e.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("stop on stopped executor: %v", err)
	}
}
