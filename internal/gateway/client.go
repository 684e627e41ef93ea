package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/yciu/futures-pipeline/internal/types"
)

// ClientConfig holds gateway client configuration.
type ClientConfig struct {
	Endpoint string
	// Timeout bounds each request attempt, send through receive.
	Timeout time.Duration
	// RetryCount is the number of additional attempts after a transport
	// failure. Logical errors reported by the server are never retried.
	RetryCount int
}

// DefaultClientConfig returns default client configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Endpoint:   "tcp://127.0.0.1:5557",
		Timeout:    5 * time.Second,
		RetryCount: 3,
	}
}

// Client is a stateless facade over the gateway RPC operations. The
// request socket is opened lazily and reset after transport failures.
type Client struct {
	cfg    ClientConfig
	logger *slog.Logger

	mu     sync.Mutex
	sock   zmq4.Socket
	cancel context.CancelFunc
}

// NewClient creates a gateway client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger}
}

// SendOrder submits a market order through the gateway.
func (c *Client) SendOrder(ctx context.Context, order types.OrderRequest) (*SendOrderData, error) {
	data, err := c.request(ctx, OpSendOrder, order)
	if err != nil {
		return nil, err
	}

	var result SendOrderData
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &result, nil
}

// GetPositions returns the broker positions for an account.
func (c *Client) GetPositions(ctx context.Context, account string) ([]types.Position, error) {
	data, err := c.request(ctx, OpGetPositions, PositionsParams{Account: account})
	if err != nil {
		return nil, err
	}

	var result PositionsData
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return result.Positions, nil
}

// GetHealthStatus returns the gateway health snapshot.
func (c *Client) GetHealthStatus(ctx context.Context) (*HealthData, error) {
	data, err := c.request(ctx, OpHealthCheck, struct{}{})
	if err != nil {
		return nil, err
	}

	var result HealthData
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &result, nil
}

// IsConnected reports whether the gateway can reach the exchange.
func (c *Client) IsConnected(ctx context.Context) bool {
	health, err := c.GetHealthStatus(ctx)
	if err != nil {
		return false
	}
	return health.ExchangeConnected
}

// request performs one RPC with retries on transport failures.
func (c *Client) request(ctx context.Context, operation string, params any) (json.RawMessage, error) {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}
	payload, err := json.Marshal(Request{Operation: operation, Parameters: rawParams})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.RetryCount; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying gateway request",
				"operation", operation,
				"attempt", attempt,
				"err", lastErr,
			)
		}

		raw, err := c.roundTrip(ctx, payload)
		if err != nil {
			if errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable) {
				lastErr = err
				continue
			}
			return nil, err
		}

		var resp Response
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		if !resp.Success {
			return nil, &RemoteError{Code: resp.ErrorCode, Message: resp.ErrorMessage}
		}
		return resp.Data, nil
	}

	return nil, lastErr
}

// roundTrip sends one request and waits for its reply within the
// configured timeout. A request socket that timed out mid-cycle is out of
// step with the reply socket and must be reset before the next attempt.
func (c *Client) roundTrip(ctx context.Context, payload []byte) ([]byte, error) {
	sock, err := c.socket()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	type result struct {
		msg zmq4.Msg
		err error
	}
	ch := make(chan result, 1)

	go func() {
		if err := sock.Send(zmq4.NewMsg(payload)); err != nil {
			ch <- result{err: err}
			return
		}
		msg, err := sock.Recv()
		ch <- result{msg: msg, err: err}
	}()

	timer := time.NewTimer(c.cfg.Timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.err != nil {
			c.reset()
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, r.err)
		}
		if len(r.msg.Frames) == 0 {
			c.reset()
			return nil, fmt.Errorf("%w: empty reply", ErrUnavailable)
		}
		return r.msg.Frames[0], nil
	case <-timer.C:
		c.reset()
		return nil, ErrTimeout
	case <-ctx.Done():
		c.reset()
		return nil, ctx.Err()
	}
}

// socket lazily opens the request socket.
func (c *Client) socket() (zmq4.Socket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sock != nil {
		return c.sock, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	sock := zmq4.NewReq(ctx)
	if err := sock.Dial(c.cfg.Endpoint); err != nil {
		cancel()
		_ = sock.Close()
		return nil, fmt.Errorf("connect gateway %s: %w", c.cfg.Endpoint, err)
	}

	c.sock = sock
	c.cancel = cancel
	return sock, nil
}

// reset tears the socket down; the next attempt reopens it.
func (c *Client) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sock == nil {
		return
	}
	c.cancel()
	_ = c.sock.Close()
	c.sock = nil
	c.cancel = nil
}

// Close releases the request socket.
func (c *Client) Close() error {
	c.reset()
	return nil
}
