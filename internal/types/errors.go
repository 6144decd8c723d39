package types

import "fmt"

// ErrorCode represents a specific error type
type ErrorCode string

const (
	// Validation errors: surfaced synchronously, never retried
	ErrInvalidIdentity ErrorCode = "INVALID_IDENTITY"
	ErrInvalidBet      ErrorCode = "INVALID_BET"
	ErrInvalidAction   ErrorCode = "INVALID_ACTION"

	// State conflicts: caller must re-query state before retrying
	ErrSessionAlreadyActive  ErrorCode = "SESSION_ALREADY_ACTIVE"
	ErrInvalidStateForAction ErrorCode = "INVALID_STATE_FOR_ACTION"
	ErrSessionCompleted      ErrorCode = "SESSION_COMPLETED"

	// Lookup errors
	ErrSessionNotFound ErrorCode = "SESSION_NOT_FOUND"

	// Payout errors: never surfaced to the player synchronously,
	// recorded in the ledger and visible through introspection only
	ErrInvalidReceiverAddress ErrorCode = "INVALID_RECEIVER_ADDRESS"
	ErrReceiverAccountMissing ErrorCode = "RECEIVER_ACCOUNT_MISSING"
	ErrTransferRejected       ErrorCode = "TRANSFER_REJECTED"

	// Internal invariant violations: fatal to the single operation,
	// the session is left in its last valid state
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrDeckExhausted     ErrorCode = "DECK_EXHAUSTED"
	ErrInternalError     ErrorCode = "INTERNAL_ERROR"
)

// GameError represents a game-related error
type GameError struct {
	Code    ErrorCode
	Message string
	Err     error // Underlying error, if any
}

// Error implements the error interface
func (e *GameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *GameError) Unwrap() error {
	return e.Err
}

// NewGameError creates a new GameError
func NewGameError(code ErrorCode, message string) *GameError {
	return &GameError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error in a GameError
func WrapError(code ErrorCode, message string, err error) *GameError {
	return &GameError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsGameError checks if an error is a GameError and has a specific code
func IsGameError(err error, code ErrorCode) bool {
	var gameErr *GameError
	if err == nil {
		return false
	}
	if ok := As(err, &gameErr); !ok {
		return false
	}
	return gameErr.Code == code
}

// As is a helper function to safely type assert an error to a GameError
func As(err error, target **GameError) bool {
	if target == nil {
		return false
	}
	if gameErr, ok := err.(*GameError); ok {
		*target = gameErr
		return true
	}
	return false
}

// Code extracts the error code from an error, or ErrInternalError when
// the error is not a GameError
func Code(err error) ErrorCode {
	var gameErr *GameError
	if As(err, &gameErr) {
		return gameErr.Code
	}
	return ErrInternalError
}
