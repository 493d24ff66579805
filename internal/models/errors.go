package models

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes failures so callers can pick the right user-facing recovery.
type ErrorKind string

const (
	ErrorKindConnection          ErrorKind = "connection"
	ErrorKindConfiguration       ErrorKind = "configuration"
	ErrorKindValidation          ErrorKind = "validation"
	ErrorKindUserRejected        ErrorKind = "user_rejected"
	ErrorKindInsufficientFunds   ErrorKind = "insufficient_funds"
	ErrorKindNetworkMismatch     ErrorKind = "network_mismatch"
	ErrorKindProvider            ErrorKind = "provider"
	ErrorKindConfirmationTimeout ErrorKind = "confirmation_timeout"
	ErrorKindBackend             ErrorKind = "backend"
	ErrorKindTransferInProgress  ErrorKind = "transfer_in_progress"
	ErrorKindCancelled           ErrorKind = "cancelled"
	ErrorKindUnknown             ErrorKind = "unknown"
)

// UnknownErrorMessage is shown when nothing more specific is available.
const UnknownErrorMessage = "Unknown error"

// Error is a categorized error with a message suitable for direct display.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a categorized error.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or ErrorKindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrorKindUnknown
}

// UserMessage returns the display message for err.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return UnknownErrorMessage
}

var (
	// ErrUnsupportedChain is returned for chain ids with no configured custody wallet.
	ErrUnsupportedChain = errors.New("unsupported chain")
	// ErrTransferNotFound is returned for unknown transfer ids.
	ErrTransferNotFound = errors.New("transfer not found")
	// ErrTokenNotFound is returned when a symbol is not listed for a chain.
	ErrTokenNotFound = errors.New("token not found")
	// ErrPriceUnavailable is returned when neither the pricing API nor the static table knows a symbol.
	ErrPriceUnavailable = errors.New("price unavailable")
)
