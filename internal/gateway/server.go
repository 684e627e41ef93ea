package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-zeromq/zmq4"
	"golang.org/x/time/rate"

	"github.com/yciu/futures-pipeline/internal/broker"
	"github.com/yciu/futures-pipeline/internal/metrics"
	"github.com/yciu/futures-pipeline/internal/types"
)

// ServerState represents the gateway server lifecycle state.
type ServerState int32

const (
	ServerStopped ServerState = iota
	ServerStarting
	ServerRunning
	ServerStopping
)

func (s ServerState) String() string {
	switch s {
	case ServerStopped:
		return "STOPPED"
	case ServerStarting:
		return "STARTING"
	case ServerRunning:
		return "RUNNING"
	case ServerStopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

// ServerConfig holds gateway server configuration.
type ServerConfig struct {
	Endpoint        string
	StopTimeout     time.Duration
	OrdersPerSecond float64
}

// DefaultServerConfig returns default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Endpoint:        "tcp://127.0.0.1:5557",
		StopTimeout:     2 * time.Second,
		OrdersPerSecond: 10,
	}
}

// Server is the single point of access to the broker capability. Requests
// are served strictly serially on one goroutine; that goroutine is the
// only execution context that ever enters the broker library.
type Server struct {
	cfg      ServerConfig
	brk      broker.Broker
	logger   *slog.Logger
	limiter  *rate.Limiter
	recorder *metrics.Recorder

	mu     sync.Mutex
	state  atomic.Int32
	sock   zmq4.Socket
	cancel context.CancelFunc
	done   chan struct{}
}

// NewServer creates a gateway server bound to the given broker.
func NewServer(cfg ServerConfig, brk broker.Broker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OrdersPerSecond <= 0 {
		cfg.OrdersPerSecond = DefaultServerConfig().OrdersPerSecond
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultServerConfig().StopTimeout
	}

	s := &Server{
		cfg:      cfg,
		brk:      brk,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Limit(cfg.OrdersPerSecond), 1),
		recorder: metrics.NewRecorder(),
	}
	s.state.Store(int32(ServerStopped))
	return s
}

// State returns the current server state.
func (s *Server) State() ServerState {
	return ServerState(s.state.Load())
}

// IsRunning returns true if the server loop is active.
func (s *Server) IsRunning() bool {
	return s.State() == ServerRunning
}

// Endpoint returns the bound address, useful when binding port 0.
func (s *Server) Endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sock == nil || s.sock.Addr() == nil {
		return s.cfg.Endpoint
	}
	return "tcp://" + s.sock.Addr().String()
}

// Start binds the reply socket and launches the serve loop. Calling Start
// on a running server logs a warning and returns success.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == ServerRunning {
		s.logger.Warn("gateway server already running")
		return nil
	}

	s.state.Store(int32(ServerStarting))

	ctx, cancel := context.WithCancel(context.Background())
	sock := zmq4.NewRep(ctx)
	if err := sock.Listen(s.cfg.Endpoint); err != nil {
		cancel()
		s.state.Store(int32(ServerStopped))
		return fmt.Errorf("bind gateway %s: %w", s.cfg.Endpoint, err)
	}

	s.sock = sock
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state.Store(int32(ServerRunning))

	go s.serveLoop(ctx)

	s.logger.Info("gateway server started", "endpoint", s.cfg.Endpoint)
	return nil
}

// Stop signals the serve loop, waits for it within the stop timeout, then
// closes transport resources. Stopping a stopped server is a no-op.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == ServerStopped {
		return nil
	}

	s.state.Store(int32(ServerStopping))
	s.cancel()

	select {
	case <-s.done:
	case <-time.After(s.cfg.StopTimeout):
		s.logger.Warn("gateway serve loop did not stop within timeout",
			"timeout", s.cfg.StopTimeout,
		)
	}

	if err := s.sock.Close(); err != nil {
		s.logger.Warn("failed to close gateway socket", "err", err)
	}

	s.sock = nil
	s.state.Store(int32(ServerStopped))
	s.logger.Info("gateway server stopped")
	return nil
}

// serveLoop receives, dispatches and replies strictly serially. Exactly
// one response is sent per received request, including on internal errors.
func (s *Server) serveLoop(ctx context.Context) {
	defer close(s.done)

	for {
		msg, err := s.sock.Recv()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("gateway receive failed", "err", err)
			}
			return
		}
		if len(msg.Frames) == 0 {
			continue
		}

		resp := s.handle(ctx, msg.Frames[0])

		reply, err := json.Marshal(resp)
		if err != nil {
			// The envelope contains only marshalable fields; keep the
			// one-response contract with a minimal fallback.
			reply = []byte(`{"success":false,"error_code":"PROCESSING_ERROR","error_message":"encode response"}`)
		}

		if err := s.sock.Send(zmq4.NewMsg(reply)); err != nil {
			if ctx.Err() == nil {
				s.logger.Error("gateway reply failed", "err", err)
			}
			return
		}
	}
}

// handle decodes and dispatches one request. Panics become a
// PROCESSING_ERROR envelope instead of dropping the socket.
func (s *Server) handle(ctx context.Context, payload []byte) (resp Response) {
	timer := metrics.NewTimer()
	operation := "unknown"

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while serving gateway request", "panic", r)
			resp = errResponse(CodeProcessing, fmt.Sprintf("internal error: %v", r))
		}
		status := "ok"
		if !resp.Success {
			status = resp.ErrorCode
		}
		s.recorder.RecordGatewayRequest(operation, status, timer.Elapsed())
	}()

	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return errResponse(CodeInvalidRequest, fmt.Sprintf("malformed request envelope: %v", err))
	}
	operation = req.Operation

	switch req.Operation {
	case OpSendOrder:
		return s.handleSendOrder(ctx, req.Parameters)
	case OpGetPositions:
		return s.handleGetPositions(ctx, req.Parameters)
	case OpHealthCheck:
		return s.handleHealthCheck()
	default:
		return errResponse(CodeUnknownOperation, fmt.Sprintf("unknown operation %q", req.Operation))
	}
}

func (s *Server) handleSendOrder(ctx context.Context, params json.RawMessage) Response {
	var order types.OrderRequest
	if err := json.Unmarshal(params, &order); err != nil {
		return errResponse(CodeInvalidOrder, fmt.Sprintf("malformed order parameters: %v", err))
	}
	if err := order.Validate(); err != nil {
		return errResponse(CodeInvalidOrder, err.Error())
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return errResponse(CodeProcessing, "server shutting down")
	}

	result, err := s.brk.SendOrder(ctx, order)
	if err != nil {
		msg := err.Error()
		if result != nil && result.ErrorMessage != "" {
			msg = result.ErrorMessage
		}
		s.logger.Warn("broker rejected order",
			"item_code", order.ItemCode,
			"side", order.Side,
			"err", err,
		)
		return errResponse(CodeOrderExecution, msg)
	}
	if result == nil {
		return errResponse(CodeNullResult, "broker returned no order result")
	}

	s.logger.Info("order forwarded to broker",
		"order_serial", result.OrderSerial,
		"item_code", order.ItemCode,
		"side", order.Side,
		"quantity", order.Quantity,
	)

	return okResponse(SendOrderData{
		IsSendOrder: result.Accepted,
		Note:        order.Note,
		OrderSerial: result.OrderSerial,
	})
}

func (s *Server) handleGetPositions(ctx context.Context, params json.RawMessage) Response {
	var p PositionsParams
	if err := json.Unmarshal(params, &p); err != nil {
		return errResponse(CodeInvalidRequest, fmt.Sprintf("malformed parameters: %v", err))
	}
	if p.Account == "" {
		return errResponse(CodeMissingAccount, "account parameter is required")
	}

	positions, err := s.brk.Positions(ctx, p.Account)
	if err != nil {
		return errResponse(CodeProcessing, err.Error())
	}
	if positions == nil {
		positions = []types.Position{}
	}

	return okResponse(PositionsData{Positions: positions})
}

func (s *Server) handleHealthCheck() Response {
	connected := s.brk.IsConnected()
	status := "healthy"
	if !connected {
		status = "unhealthy"
	}

	s.recorder.RecordExchangeConnected(connected)

	return okResponse(HealthData{
		Status:            status,
		ExchangeConnected: connected,
		Timestamp:         time.Now().Unix(),
		ServerRunning:     s.IsRunning(),
	})
}
