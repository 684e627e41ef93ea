package types

import "errors"

// Sentinel errors for the trading pipeline.
var (
	// Condition errors
	ErrInvalidCondition  = errors.New("invalid condition")
	ErrConditionNotFound = errors.New("condition not found")
	ErrInvalidOperation  = errors.New("invalid operation")

	// Order errors
	ErrInvalidOrder = errors.New("invalid order")

	// Session errors
	ErrNotLoggedIn         = errors.New("no active session")
	ErrMissingOrderAccount = errors.New("order account not set")

	// Wire errors
	ErrInvalidSignal = errors.New("payload is not a trading signal")
	ErrInvalidTick   = errors.New("payload is not a tick")

	// Validation errors
	ErrInvalidConfig = errors.New("invalid configuration")
)
