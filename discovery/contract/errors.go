package contract

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrAlreadyCompleted = errors.New("session already completed")
	ErrStateMissing     = errors.New("conversation state not found")
	ErrConflict         = errors.New("operation already in progress")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrGateway          = errors.New("model produced no usable structured output")
	ErrInsufficientData = errors.New("not enough completed summaries")
)
