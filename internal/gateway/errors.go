package gateway

import (
	"errors"
	"fmt"
)

// Client-side transport failures.
var (
	// ErrTimeout is returned when a request exceeds the configured
	// per-request timeout after all retries.
	ErrTimeout = errors.New("gateway request timed out")
	// ErrUnavailable is returned when the transport fails outright.
	ErrUnavailable = errors.New("gateway unreachable")
	// ErrInvalidResponse is returned when the reply cannot be decoded.
	// Not retried: the bytes arrived, the peer is just speaking garbage.
	ErrInvalidResponse = errors.New("undecodable gateway response")
)

// RemoteError is a logical failure reported by the gateway server.
// Remote errors are never retried.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("gateway error %s: %s", e.Code, e.Message)
}
