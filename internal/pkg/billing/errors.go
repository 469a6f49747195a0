package billing

import (
	"errors"
	"fmt"
)

// ErrorCode classifies billing failures so callers can tell a
// recoverable-by-upgrade condition from a transient provider one.
type ErrorCode string

const (
	CodeNotFound         ErrorCode = "not_found"
	CodeProvider         ErrorCode = "provider_error"
	CodeCardDeclined     ErrorCode = "card_declined"
	CodeQuotaExceeded    ErrorCode = "quota_exceeded"
	CodeSignatureInvalid ErrorCode = "signature_invalid"
)

// Error is the typed error returned by the billing service and gateway.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewNotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

func NewProviderError(msg string, err error) *Error {
	return &Error{Code: CodeProvider, Message: msg, Err: err}
}

func NewCardDeclined(msg string, err error) *Error {
	return &Error{Code: CodeCardDeclined, Message: msg, Err: err}
}

func NewQuotaExceeded(msg string) *Error {
	return &Error{Code: CodeQuotaExceeded, Message: msg}
}

func NewSignatureInvalid(msg string) *Error {
	return &Error{Code: CodeSignatureInvalid, Message: msg}
}

// CodeOf extracts the billing error code from an error chain, or ""
// for errors that did not originate in this package.
func CodeOf(err error) ErrorCode {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// IsCode reports whether err carries the given billing error code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
