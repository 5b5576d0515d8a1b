package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a painvault error code.
type ErrorCode string

const (
	ErrEmptySelection   ErrorCode = "EMPTY_SELECTION"        // 400
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"        // 400
	ErrForbidden        ErrorCode = "FORBIDDEN"              // 403
	ErrNotFound         ErrorCode = "NOT_FOUND"              // 404
	ErrFileNotFound     ErrorCode = "FILE_NOT_FOUND"         // 404
	ErrNoWebhook        ErrorCode = "NO_WEBHOOK"             // 412
	ErrUnsupportedMedia ErrorCode = "UNSUPPORTED_MEDIA_TYPE" // 415
	ErrCancelled        ErrorCode = "CANCELLED"              // 499
	ErrInternal         ErrorCode = "INTERNAL"               // 500
	ErrDeliveryFailed   ErrorCode = "DELIVERY_FAILED"        // 502
)

// VaultError represents a structured error with code, status, and details.
type VaultError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *VaultError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewEmptySelection creates a 400 error for a capture without selected text.
func NewEmptySelection() *VaultError {
	return &VaultError{
		Code:    ErrEmptySelection,
		Status:  400,
		Message: "no text selected",
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *VaultError {
	return &VaultError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewForbidden creates a 403 error for a request the caller may not make.
func NewForbidden(msg string) *VaultError {
	return &VaultError{
		Code:    ErrForbidden,
		Status:  403,
		Message: msg,
	}
}

// NewUnsupportedMedia creates a 415 error for a body in the wrong format.
func NewUnsupportedMedia(want string) *VaultError {
	return &VaultError{
		Code:    ErrUnsupportedMedia,
		Status:  415,
		Message: fmt.Sprintf("Content-Type must be %s", want),
		Details: map[string]any{"want": want},
	}
}

// NewNotFound creates a 404 error for a missing resource.
func NewNotFound(identifier string) *VaultError {
	return &VaultError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error when a file path does not exist.
func NewFileNotFound(path string) *VaultError {
	return &VaultError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewNoWebhook creates a 412 error when no webhook URL is configured.
// The message is user-facing and points at the settings.
func NewNoWebhook() *VaultError {
	return &VaultError{
		Code:    ErrNoWebhook,
		Status:  412,
		Message: "no n8n webhook URL configured; open settings to set it",
	}
}

// NewCancelled creates a 499 error when an operation was cancelled by its context.
func NewCancelled(operation string) *VaultError {
	return &VaultError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
		Details: map[string]any{"operation": operation},
	}
}

// NewDeliveryFailed creates a 502 error for a non-2xx webhook response.
// body is kept for diagnostics only.
func NewDeliveryFailed(status int, body string) *VaultError {
	return &VaultError{
		Code:    ErrDeliveryFailed,
		Status:  502,
		Message: fmt.Sprintf("webhook responded with HTTP %d", status),
		Details: map[string]any{"http_status": status, "body": body},
	}
}

// NewTransportFailed creates a 502 error when the webhook could not be reached.
func NewTransportFailed(err error) *VaultError {
	msg := "webhook request failed"
	if err != nil {
		msg = fmt.Sprintf("webhook request failed: %v", err)
	}
	return &VaultError{
		Code:    ErrDeliveryFailed,
		Status:  502,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *VaultError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &VaultError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is (or wraps) a VaultError with the given code.
func Is(err error, code ErrorCode) bool {
	var vErr *VaultError
	if stderrors.As(err, &vErr) {
		return vErr.Code == code
	}
	return false
}

// CodeOf returns the code of a VaultError, or ErrInternal for any other error.
func CodeOf(err error) ErrorCode {
	var vErr *VaultError
	if stderrors.As(err, &vErr) {
		return vErr.Code
	}
	return ErrInternal
}
