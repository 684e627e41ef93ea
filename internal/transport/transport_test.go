package transport

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/yciu/futures-pipeline/internal/broker"
	"github.com/yciu/futures-pipeline/internal/metrics"
	"github.com/yciu/futures-pipeline/internal/types"
)

// publishUntilReceived works around the pub/sub slow joiner: early ticks may
// be lost while the subscription handshake completes, so the tick is resent
// until one copy arrives.
func publishUntilReceived(t *testing.T, pub *TickPublisher, sub *TickSubscriber, tick types.Tick) types.Tick {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		if err := pub.Publish(tick); err != nil {
			t.Fatalf("publish: %v", err)
		}
		select {
		case got, ok := <-sub.Ticks():
			if !ok {
				t.Fatal("tick channel closed")
			}
			return got
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("tick never arrived")
		}
	}
}

func TestTickPubSubRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub := NewTickPublisher("tcp://127.0.0.1:0", "TICK", 50*time.Millisecond, nil)
	if err := pub.Start(ctx); err != nil {
		t.Fatalf("start publisher: %v", err)
	}
	defer func() { _ = pub.Close() }()

	sub, err := NewTickSubscriber(ctx, pub.Endpoint(), "TICK", nil)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer func() { _ = sub.Close() }()

	published := testutil.ToFloat64(metrics.TicksPublished.WithLabelValues("TXF"))

	sent := types.Tick{
		CommodityID: "TXF",
		MatchPrice:  decimal.RequireFromString("18050.25"),
		ObservedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
	got := publishUntilReceived(t, pub, sub, sent)

	if d := testutil.ToFloat64(metrics.TicksPublished.WithLabelValues("TXF")) - published; d < 1 {
		t.Errorf("published tick counter delta = %v, want at least 1", d)
	}

	if got.CommodityID != sent.CommodityID {
		t.Errorf("commodity = %q, want %q", got.CommodityID, sent.CommodityID)
	}
	if !got.MatchPrice.Equal(sent.MatchPrice) {
		t.Errorf("price = %s, want %s", got.MatchPrice, sent.MatchPrice)
	}
	if !got.ObservedAt.Equal(sent.ObservedAt) {
		t.Errorf("observed_at = %v, want %v", got.ObservedAt, sent.ObservedAt)
	}
}

func TestPublishRawNormalizes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub := NewTickPublisher("tcp://127.0.0.1:0", "TICK", 50*time.Millisecond, nil)
	if err := pub.Start(ctx); err != nil {
		t.Fatalf("start publisher: %v", err)
	}
	defer func() { _ = pub.Close() }()

	sub, err := NewTickSubscriber(ctx, pub.Endpoint(), "TICK", nil)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer func() { _ = sub.Close() }()

	// Lower-case commodity and an unparseable price: the tick must still go
	// out, upper-cased and with a zero price.
	raw := broker.RawTick{CommodityID: "txf", MatchPrice: "not-a-number"}

	deadline := time.After(5 * time.Second)
	var got types.Tick
loop:
	for {
		if err := pub.PublishRaw(raw); err != nil {
			t.Fatalf("publish raw: %v", err)
		}
		select {
		case tick, ok := <-sub.Ticks():
			if !ok {
				t.Fatal("tick channel closed")
			}
			got = tick
			break loop
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("tick never arrived")
		}
	}

	if got.CommodityID != "TXF" {
		t.Errorf("commodity = %q, want upper-cased TXF", got.CommodityID)
	}
	if !got.MatchPrice.IsZero() {
		t.Errorf("price = %s, want zero for unparseable input", got.MatchPrice)
	}
	if got.ObservedAt.IsZero() {
		t.Error("observed_at must be stamped by the publisher")
	}
}

func TestSignalPushPull(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	puller, err := NewSignalPuller(ctx, "tcp://127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("bind puller: %v", err)
	}
	defer func() { _ = puller.Close() }()

	pusher, err := NewSignalPusher(ctx, puller.Endpoint(), nil)
	if err != nil {
		t.Fatalf("connect pusher: %v", err)
	}
	defer func() { _ = pusher.Close() }()

	sigs := []types.TradingSignal{
		{When: time.Now().UTC(), Operation: types.OperationBuy, CommodityID: "TXF"},
		{When: time.Now().UTC(), Operation: types.OperationSell, CommodityID: "TXF"},
	}
	for _, sig := range sigs {
		if err := pusher.Push(sig); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	// Push/pull is FIFO per producer; both signals arrive in order.
	for i, want := range sigs {
		select {
		case payload, ok := <-puller.Payloads():
			if !ok {
				t.Fatal("payload channel closed")
			}
			var got types.TradingSignal
			if err := json.Unmarshal(payload, &got); err != nil {
				t.Fatalf("decode signal %d: %v", i, err)
			}
			if got.Operation != want.Operation || got.CommodityID != want.CommodityID {
				t.Errorf("signal %d = %+v, want %+v", i, got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("signal %d never arrived", i)
		}
	}
}

func TestSubscriberDropsUndecodablePayloads(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub := NewTickPublisher("tcp://127.0.0.1:0", "TICK", 50*time.Millisecond, nil)
	if err := pub.Start(ctx); err != nil {
		t.Fatalf("start publisher: %v", err)
	}
	defer func() { _ = pub.Close() }()

	sub, err := NewTickSubscriber(ctx, pub.Endpoint(), "TICK", nil)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer func() { _ = sub.Close() }()

	good := types.Tick{
		CommodityID: "TXF",
		MatchPrice:  decimal.NewFromInt(18000),
		ObservedAt:  time.Now().UTC(),
	}

	// Interleave garbage frames with real ticks; only real ticks surface.
	deadline := time.After(5 * time.Second)
	for {
		_ = pub.sock.Send(zmq4.NewMsgFrom([]byte("TICK"), []byte("garbage")))
		if err := pub.Publish(good); err != nil {
			t.Fatalf("publish: %v", err)
		}
		select {
		case got, ok := <-sub.Ticks():
			if !ok {
				t.Fatal("tick channel closed")
			}
			if got.CommodityID != "TXF" {
				t.Errorf("got %+v", got)
			}
			return
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("tick never arrived")
		}
	}
}
