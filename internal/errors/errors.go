package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrCode represents an error code
type ErrCode string

const (
	ErrCodeParse             ErrCode = "PARSE_ERROR"
	ErrCodeValidation        ErrCode = "VALIDATION_ERROR"
	ErrCodeNameResolution    ErrCode = "NAME_RESOLUTION_ERROR"
	ErrCodeInsufficientFunds ErrCode = "INSUFFICIENT_FUNDS"
	ErrCodeNetwork           ErrCode = "NETWORK_ERROR"
	ErrCodeAlreadyUploaded   ErrCode = "ALREADY_UPLOADED"
	ErrCodeNotFound          ErrCode = "NOT_FOUND"
	ErrCodeBadRequest        ErrCode = "BAD_REQUEST"
	ErrCodeInternal          ErrCode = "INTERNAL_ERROR"
)

// AppError represents an application error
type AppError struct {
	Code    ErrCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewParseError creates an error for a malformed formula line
func NewParseError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeParse,
		Message: message,
	}
}

// NewValidationError creates an error for a well-formed but invalid rule
func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

// NewNameResolutionError creates an error for a qualification name that has no type ID
func NewNameResolutionError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeNameResolution,
		Message: message,
	}
}

// NewInsufficientFundsError creates an error for a cost above the available balance
func NewInsufficientFundsError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeInsufficientFunds,
		Message: message,
	}
}

// NewNetworkError wraps a failed marketplace call
func NewNetworkError(operation string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeNetwork,
		Message: operation + " failed",
		Err:     err,
	}
}

// NewAlreadyUploadedError creates the duplicate-creation guard error
func NewAlreadyUploadedError(environment string) *AppError {
	return &AppError{
		Code:    ErrCodeAlreadyUploaded,
		Message: fmt.Sprintf("you've already uploaded this HIT to %s", environment),
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeBadRequest,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "" if there is none
func CodeOf(err error) ErrCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsRecoverable reports whether the operator can fix the input and try again at the same prompt
func IsRecoverable(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeParse || code == ErrCodeValidation
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

// IsNetwork checks if the error is a marketplace failure
func IsNetwork(err error) bool {
	return CodeOf(err) == ErrCodeNetwork
}

// IsInsufficientFunds checks if the error is a pre-flight balance failure
func IsInsufficientFunds(err error) bool {
	return CodeOf(err) == ErrCodeInsufficientFunds
}

// IsAlreadyUploaded checks if the error is the duplicate-creation guard
func IsAlreadyUploaded(err error) bool {
	return CodeOf(err) == ErrCodeAlreadyUploaded
}
