// Package transport provides the ZMQ message fabric between the pipeline
// processes: pub/sub for ticks, push/pull for signals.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/shopspring/decimal"

	"github.com/yciu/futures-pipeline/internal/broker"
	"github.com/yciu/futures-pipeline/internal/metrics"
	"github.com/yciu/futures-pipeline/internal/types"
)

// DefaultTickTopic is the topic frame for market ticks.
const DefaultTickTopic = "TICK"

// TickPublisher fans out market ticks on a bound publish socket.
// Subscribers are never tracked; ticks emitted while nobody listens
// are lost by design.
type TickPublisher struct {
	topic        string
	endpoint     string
	startupPause time.Duration
	logger       *slog.Logger
	recorder     *metrics.Recorder

	sock zmq4.Socket
}

// NewTickPublisher creates a tick publisher for the given endpoint.
// startupPause is slept after binding so early subscribers can finish the
// handshake (slow-joiner mitigation, not a guarantee).
func NewTickPublisher(endpoint, topic string, startupPause time.Duration, logger *slog.Logger) *TickPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if topic == "" {
		topic = DefaultTickTopic
	}
	return &TickPublisher{
		topic:        topic,
		endpoint:     endpoint,
		startupPause: startupPause,
		logger:       logger,
		recorder:     metrics.NewRecorder(),
	}
}

// Start binds the publish socket and waits out the startup pause.
func (p *TickPublisher) Start(ctx context.Context) error {
	sock := zmq4.NewPub(ctx)
	if err := sock.Listen(p.endpoint); err != nil {
		return fmt.Errorf("bind tick publisher %s: %w", p.endpoint, err)
	}
	p.sock = sock

	p.logger.Info("tick publisher bound", "endpoint", p.endpoint, "topic", p.topic)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.startupPause):
	}
	return nil
}

// Endpoint returns the bound address, useful when binding port 0.
func (p *TickPublisher) Endpoint() string {
	if p.sock == nil || p.sock.Addr() == nil {
		return p.endpoint
	}
	return "tcp://" + p.sock.Addr().String()
}

// PublishRaw normalizes a native broker callback and publishes it:
// the commodity is upper-cased, an unparseable price degrades to zero
// with a warning, and the tick is stamped with the publisher clock.
func (p *TickPublisher) PublishRaw(raw broker.RawTick) error {
	price, err := decimal.NewFromString(raw.MatchPrice)
	if err != nil {
		p.logger.Warn("unparseable match price, emitting zero",
			"commodity_id", raw.CommodityID,
			"match_price", raw.MatchPrice,
		)
		price = decimal.Zero
	}

	return p.Publish(types.Tick{
		CommodityID: strings.ToUpper(raw.CommodityID),
		MatchPrice:  price,
		ObservedAt:  time.Now().UTC(),
	})
}

// Publish sends a tick as a two-frame message [topic, payload].
func (p *TickPublisher) Publish(tick types.Tick) error {
	payload, err := json.Marshal(tick)
	if err != nil {
		return fmt.Errorf("marshal tick: %w", err)
	}

	if err := p.sock.Send(zmq4.NewMsgFrom([]byte(p.topic), payload)); err != nil {
		return fmt.Errorf("publish tick: %w", err)
	}
	p.recorder.RecordTickPublished(tick.CommodityID)
	return nil
}

// Close closes the publish socket.
func (p *TickPublisher) Close() error {
	if p.sock == nil {
		return nil
	}
	return p.sock.Close()
}

// TickSubscriber receives ticks from a publisher.
type TickSubscriber struct {
	topic  string
	logger *slog.Logger

	sock zmq4.Socket
	out  chan types.Tick
}

// NewTickSubscriber connects a subscriber to the publisher endpoint and
// starts the receive loop. Ticks that fail to decode are dropped with a
// warning.
func NewTickSubscriber(ctx context.Context, endpoint, topic string, logger *slog.Logger) (*TickSubscriber, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if topic == "" {
		topic = DefaultTickTopic
	}

	sock := zmq4.NewSub(ctx)
	if err := sock.SetOption(zmq4.OptionSubscribe, topic); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("subscribe topic %q: %w", topic, err)
	}
	if err := sock.Dial(endpoint); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("connect tick subscriber %s: %w", endpoint, err)
	}

	s := &TickSubscriber{
		topic:  topic,
		logger: logger,
		sock:   sock,
		out:    make(chan types.Tick, 100),
	}
	go s.recvLoop(ctx)

	logger.Info("tick subscriber connected", "endpoint", endpoint, "topic", topic)
	return s, nil
}

// Ticks returns the channel of decoded ticks. It is closed when the
// subscriber shuts down.
func (s *TickSubscriber) Ticks() <-chan types.Tick {
	return s.out
}

func (s *TickSubscriber) recvLoop(ctx context.Context) {
	defer close(s.out)

	for {
		msg, err := s.sock.Recv()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("tick receive failed", "err", err)
			}
			return
		}
		if len(msg.Frames) < 2 {
			s.logger.Warn("malformed tick message", "frames", len(msg.Frames))
			continue
		}

		tick, err := types.ParseTick(msg.Frames[1])
		if err != nil {
			s.logger.Warn("dropping undecodable tick", "err", err)
			continue
		}

		select {
		case s.out <- tick:
		case <-ctx.Done():
			return
		}
	}
}

// Close closes the subscribe socket; the tick channel closes shortly after.
func (s *TickSubscriber) Close() error {
	return s.sock.Close()
}
