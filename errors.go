package flipit

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure classes a wager attempt can hit. Callers
// match with errors.Is; the concrete cause stays wrapped underneath.
var (
	ErrNotConnected         = errors.New("wallet not connected")
	ErrInvalidAmount        = errors.New("bet amount must be positive")
	ErrInsufficientBalance  = errors.New("insufficient token balance")
	ErrInsufficientTreasury = errors.New("treasury cannot cover payout")
	ErrUserRejected         = errors.New("user rejected the request")
	ErrReverted             = errors.New("transaction reverted")
	ErrProtocolMismatch     = errors.New("expected contract event missing from receipt")
	ErrTimeout              = errors.New("resolution wait timed out")
	ErrAttemptInFlight      = errors.New("a wager attempt is already in flight")
	ErrAborted              = errors.New("wager attempt reset")
	ErrApprovalFailed       = errors.New("token approval failed")
	ErrAllowanceUnavailable = errors.New("allowance unavailable")
	ErrTokenUnavailable     = errors.New("token metadata unavailable")
)

// Step names the point in the wager flow where a failure happened. Surfaced to
// the UI so the user can decide whether a retry makes sense.
type Step string

const (
	StepValidate Step = "validate"
	StepApprove  Step = "approve"
	StepSubmit   Step = "submit"
	StepConfirm  Step = "confirm"
	StepResolve  Step = "resolve"
)

// FlowError is a wager-flow failure: which step failed, the underlying cause,
// and a human-readable message for the UI.
type FlowError struct {
	Step    Step
	Message string
	Err     error
}

func (e *FlowError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Step, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *FlowError) Unwrap() error { return e.Err }

// NewFlowError builds a FlowError wrapping cause. If msg is empty the cause's
// text is used as the user-facing message.
func NewFlowError(step Step, cause error, msg string) *FlowError {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &FlowError{Step: step, Message: msg, Err: cause}
}

// IsRetryable reports whether the error class is worth retrying as-is.
// Validation failures need different input and reverts need their root cause
// fixed first, so neither counts.
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrUserRejected):
		return true
	case errors.Is(err, ErrTimeout):
		return true
	case errors.Is(err, ErrReverted),
		errors.Is(err, ErrProtocolMismatch),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrInsufficientTreasury),
		errors.Is(err, ErrNotConnected):
		return false
	}
	// Anything else is treated as a transport-level failure.
	return true
}
