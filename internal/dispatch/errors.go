package dispatch

import (
	"errors"
	"fmt"
)

// DispatchError represents a non-fatal condition detected by the dispatcher
// or the handler runner.
//
// Trigger itself keeps a boolean contract (rejections are expected control
// flow, not failures); DispatchError exists for the layers that need a typed
// reason - logging, trace records and the scenario runner.
type DispatchError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Name identifies the affected interrupt, if any.
	Name string

	// Token identifies the affected instance, if any.
	Token string
}

// ErrorCode categorizes dispatcher errors.
type ErrorCode string

const (
	// ErrCodeUnknownInterrupt indicates a trigger or mask call referenced
	// an unregistered name.
	ErrCodeUnknownInterrupt ErrorCode = "UNKNOWN_INTERRUPT"

	// ErrCodeMasked indicates a trigger was refused by a per-definition mask.
	ErrCodeMasked ErrorCode = "MASKED"

	// ErrCodeGloballyMasked indicates a trigger was refused by the global mask.
	ErrCodeGloballyMasked ErrorCode = "GLOBALLY_MASKED"

	// ErrCodeHandlerPanic indicates a handler callback panicked and was
	// recovered at the runner boundary.
	ErrCodeHandlerPanic ErrorCode = "HANDLER_PANIC"
)

// Error implements the error interface.
func (e *DispatchError) Error() string {
	switch {
	case e.Name != "" && e.Token != "":
		return fmt.Sprintf("%s: %s (interrupt=%s, token=%s)", e.Code, e.Message, e.Name, e.Token)
	case e.Name != "":
		return fmt.Sprintf("%s: %s (interrupt=%s)", e.Code, e.Message, e.Name)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// IsHandlerPanic returns true if the error is a recovered handler panic.
// Uses errors.As to handle wrapped errors.
func IsHandlerPanic(err error) bool {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Code == ErrCodeHandlerPanic
	}
	return false
}

// NewHandlerPanicError creates a DispatchError for a recovered panic.
// The recovered value is rendered into the message.
func NewHandlerPanicError(name, token string, recovered any) *DispatchError {
	return &DispatchError{
		Code:    ErrCodeHandlerPanic,
		Message: fmt.Sprintf("handler panicked: %v", recovered),
		Name:    name,
		Token:   token,
	}
}
