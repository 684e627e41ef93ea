// Package broker defines the narrow capability interface to the native
// broker library. Only the gateway host process may hold an implementation.
package broker

import (
	"context"
	"errors"

	"github.com/yciu/futures-pipeline/internal/types"
)

// Common broker errors.
var (
	ErrNotConnected  = errors.New("broker not connected")
	ErrOrderRejected = errors.New("order rejected by exchange")
	ErrEmptyResult   = errors.New("broker returned empty result")
)

// ConnectionState represents the broker connection state.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// RawTick carries the unnormalized fields of a native market-data callback.
// The tick publisher owns normalization.
type RawTick struct {
	CommodityID string
	MatchPrice  string
}

// Broker is the capability surface the gateway serializes access to.
// The native library is not thread safe; implementations assume a single
// calling goroutine.
type Broker interface {
	// Connection management
	Connect(ctx context.Context) error
	Disconnect() error
	State() ConnectionState
	IsConnected() bool

	// Order execution
	SendOrder(ctx context.Context, req types.OrderRequest) (*types.OrderResponse, error)

	// Position query
	Positions(ctx context.Context, account string) ([]types.Position, error)

	// Market data callbacks. The channel is closed on disconnect.
	Ticks(ctx context.Context, itemCode string) (<-chan RawTick, error)
}
