// Package gateway implements the request/reply RPC service that owns the
// broker capability, and the client used by the other processes.
package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/yciu/futures-pipeline/internal/types"
)

// RPC operation names.
const (
	OpSendOrder    = "send_order"
	OpGetPositions = "get_positions"
	OpHealthCheck  = "health_check"
)

// Error codes returned in response envelopes.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeUnknownOperation = "UNKNOWN_OPERATION"
	CodeInvalidOrder     = "INVALID_ORDER"
	CodeOrderExecution   = "ORDER_EXECUTION_ERROR"
	CodeNullResult       = "NULL_RESULT"
	CodeMissingAccount   = "MISSING_ACCOUNT"
	CodeProcessing       = "PROCESSING_ERROR"
)

// Request is the RPC request envelope.
type Request struct {
	Operation  string          `json:"operation"`
	Parameters json.RawMessage `json:"parameters"`
}

// Response is the RPC response envelope. Every request produces exactly
// one response; failures never tear down the socket.
type Response struct {
	Success      bool            `json:"success"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	ErrorCode    string          `json:"error_code,omitempty"`
}

// SendOrderData is the data payload of a send_order response.
type SendOrderData struct {
	IsSendOrder  bool   `json:"is_send_order"`
	Note         string `json:"note"`
	OrderSerial  string `json:"order_serial"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// PositionsData is the data payload of a get_positions response.
type PositionsData struct {
	Positions []types.Position `json:"positions"`
}

// PositionsParams are the parameters of a get_positions request.
type PositionsParams struct {
	Account string `json:"account"`
}

// HealthData is the data payload of a health_check response.
type HealthData struct {
	Status            string `json:"status"`
	ExchangeConnected bool   `json:"exchange_connected"`
	Timestamp         int64  `json:"timestamp"`
	ServerRunning     bool   `json:"server_running"`
}

// okResponse builds a success envelope around a data payload.
func okResponse(data any) Response {
	raw, err := json.Marshal(data)
	if err != nil {
		return errResponse(CodeProcessing, fmt.Sprintf("encode response data: %v", err))
	}
	return Response{Success: true, Data: raw}
}

// errResponse builds a failure envelope.
func errResponse(code, message string) Response {
	return Response{Success: false, ErrorCode: code, ErrorMessage: message}
}
