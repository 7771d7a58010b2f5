package executor

import "errors"

var (
	// Config validation errors
	ErrModelClientRequired = errors.New("model client is required")
	ErrStoreRequired       = errors.New("session store is required")
	ErrRegistryRequired    = errors.New("permission registry is required")
	ErrContentRequired     = errors.New("message content is required")
	ErrSessionIDRequired   = errors.New("session id is required")

	// Execution errors
	ErrMaxTurnsExceeded = errors.New("maximum turns exceeded")
)
