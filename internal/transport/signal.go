package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-zeromq/zmq4"

	"github.com/yciu/futures-pipeline/internal/types"
)

// SignalPusher sends trading signals to the executor. The consumer binds;
// the pusher connects.
type SignalPusher struct {
	logger *slog.Logger
	sock   zmq4.Socket
}

// NewSignalPusher connects a push socket to the signal pipe endpoint.
func NewSignalPusher(ctx context.Context, endpoint string, logger *slog.Logger) (*SignalPusher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sock := zmq4.NewPush(ctx)
	if err := sock.Dial(endpoint); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("connect signal pusher %s: %w", endpoint, err)
	}

	logger.Info("signal pusher connected", "endpoint", endpoint)
	return &SignalPusher{logger: logger, sock: sock}, nil
}

// Push sends a serialized trading signal as a single frame.
func (p *SignalPusher) Push(sig types.TradingSignal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	if err := p.sock.Send(zmq4.NewMsg(payload)); err != nil {
		return fmt.Errorf("push signal: %w", err)
	}
	return nil
}

// Close closes the push socket.
func (p *SignalPusher) Close() error {
	return p.sock.Close()
}

// SignalPuller binds the signal pipe and delivers raw payloads in FIFO
// order. Payload validation belongs to the executor so malformed messages
// can be counted and logged there.
type SignalPuller struct {
	endpoint string
	logger   *slog.Logger

	sock zmq4.Socket
	out  chan []byte
}

// NewSignalPuller binds a pull socket on the signal pipe endpoint and
// starts the receive loop.
func NewSignalPuller(ctx context.Context, endpoint string, logger *slog.Logger) (*SignalPuller, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sock := zmq4.NewPull(ctx)
	if err := sock.Listen(endpoint); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("bind signal puller %s: %w", endpoint, err)
	}

	p := &SignalPuller{
		endpoint: endpoint,
		logger:   logger,
		sock:     sock,
		out:      make(chan []byte, 100),
	}
	go p.recvLoop(ctx)

	logger.Info("signal puller bound", "endpoint", endpoint)
	return p, nil
}

// Endpoint returns the bound address, useful when binding port 0.
func (p *SignalPuller) Endpoint() string {
	if p.sock == nil || p.sock.Addr() == nil {
		return p.endpoint
	}
	return "tcp://" + p.sock.Addr().String()
}

// Payloads returns the channel of raw signal payloads. It is closed when
// the puller shuts down.
func (p *SignalPuller) Payloads() <-chan []byte {
	return p.out
}

func (p *SignalPuller) recvLoop(ctx context.Context) {
	defer close(p.out)

	for {
		msg, err := p.sock.Recv()
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("signal receive failed", "err", err)
			}
			return
		}
		if len(msg.Frames) == 0 {
			continue
		}

		payload := make([]byte, len(msg.Frames[0]))
		copy(payload, msg.Frames[0])

		select {
		case p.out <- payload:
		case <-ctx.Done():
			return
		}
	}
}

// Close closes the pull socket; the payload channel closes shortly after.
func (p *SignalPuller) Close() error {
	return p.sock.Close()
}
