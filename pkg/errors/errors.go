package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error class across component boundaries.
type Code string

const (
	CodeValidation             Code = "ERR_VALIDATION"
	CodeConflict               Code = "ERR_CONFLICT"
	CodeDeptClosed             Code = "ERR_DEPT_CLOSED"
	CodeAlreadyEnqueued        Code = "ERR_ALREADY_ENQUEUED"
	CodeNoWaiting              Code = "ERR_NO_WAITING"
	CodeSpecializationMismatch Code = "ERR_SPECIALIZATION_MISMATCH"
	CodeBadSignature           Code = "ERR_BAD_SIGNATURE"
	CodeNotFound               Code = "ERR_NOT_FOUND"
	CodeMirrorWrite            Code = "ERR_MIRROR_WRITE"
	CodeTimeout                Code = "ERR_TIMEOUT"
	CodeServer                 Code = "ERR_SERVER"
)

// AppError represents an application error
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error class to its HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case CodeValidation, CodeDeptClosed, CodeAlreadyEnqueued, CodeNoWaiting:
		return http.StatusBadRequest
	case CodeBadSignature:
		return http.StatusUnauthorized
	case CodeSpecializationMismatch:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func New(code Code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Error constructors
func Validation(message string, err error) *AppError {
	return New(CodeValidation, message, err)
}

func Conflict(message string, err error) *AppError {
	return New(CodeConflict, message, err)
}

func NotFound(resource string, err error) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), err)
}

func Internal(err error) *AppError {
	return New(CodeServer, "internal server error", err)
}

func Timeout(err error) *AppError {
	return New(CodeTimeout, "deadline exceeded", err)
}

// AsAppError unwraps err into an *AppError, falling back to ERR_SERVER.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
