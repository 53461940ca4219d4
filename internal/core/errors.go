// Package core provides the error taxonomy and shared wire helpers for the media client.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents the kind of failure a client operation ran into
type ErrorType string

const (
	// ErrorTypeTypeMismatch indicates a value does not match its declared wire type
	ErrorTypeTypeMismatch ErrorType = "type_mismatch"
	// ErrorTypeUnknownType indicates a discriminator could not be resolved to a constructible type
	ErrorTypeUnknownType ErrorType = "unknown_type"
	// ErrorTypeInvalidBatchResponse indicates a multi-request response was missing or misaligned
	ErrorTypeInvalidBatchResponse ErrorType = "invalid_batch_response"
	// ErrorTypeProtocol indicates the server omitted a field the chunking protocol depends on
	ErrorTypeProtocol ErrorType = "protocol_error"
	// ErrorTypeTransfer indicates a transport-level failure of a request or upload chunk
	ErrorTypeTransfer ErrorType = "transfer_failure"
	// ErrorTypeResponseParse indicates a malformed success/error envelope
	ErrorTypeResponseParse ErrorType = "response_parse_failure"
	// ErrorTypeInvalidRequest indicates the request could not be built
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	// ErrorTypeCanceled indicates the operation was canceled by the caller
	ErrorTypeCanceled ErrorType = "canceled"
)

// Client error codes, kept compatible with the codes other SDK bindings report.
const (
	CodeUploadFailure        = "client::upload-failure"
	CodeResponseUnknownError = "client::response-unknown-error"
	CodeResponseTypeError    = "client::response_type_error"
	CodeTypeMismatch         = "client::type-mismatch"
	CodeUnknownType          = "client::unknown-type"
	CodeRequestError         = "client::request-error"
	CodeCanceled             = "client::canceled"
)

// ClientError is the base error type for failures detected by the client itself
type ClientError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	// StatusCode is the HTTP status of the failing transfer, if any
	StatusCode int `json:"status_code,omitempty"`
	// Original error for debugging
	Err error `json:"-"`
}

// Error implements the error interface
func (e *ClientError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *ClientError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a ClientError of the same type.
// This lets callers write errors.Is(err, core.ErrProtocol).
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Code == "" && t.Type == e.Type
}

// Sentinels for errors.Is comparisons by type.
var (
	ErrTypeMismatch         = &ClientError{Type: ErrorTypeTypeMismatch}
	ErrUnknownType          = &ClientError{Type: ErrorTypeUnknownType}
	ErrInvalidBatchResponse = &ClientError{Type: ErrorTypeInvalidBatchResponse}
	ErrProtocol             = &ClientError{Type: ErrorTypeProtocol}
	ErrTransfer             = &ClientError{Type: ErrorTypeTransfer}
	ErrResponseParse        = &ClientError{Type: ErrorTypeResponseParse}
	ErrCanceled             = &ClientError{Type: ErrorTypeCanceled}
)

// NewTypeMismatchError creates an error for a value whose shape does not match its wire type
func NewTypeMismatchError(message string) *ClientError {
	return &ClientError{
		Type:    ErrorTypeTypeMismatch,
		Code:    CodeTypeMismatch,
		Message: message,
	}
}

// NewUnknownTypeError creates an error for an unresolvable discriminator
func NewUnknownTypeError(objectType, fallback string) *ClientError {
	msg := fmt.Sprintf("failed to create object of type '%s'", objectType)
	if fallback != "" {
		msg += fmt.Sprintf(" (fallback type '%s')", fallback)
	}
	return &ClientError{
		Type:    ErrorTypeUnknownType,
		Code:    CodeUnknownType,
		Message: msg,
	}
}

// NewInvalidBatchResponseError creates the uniform error every multi-request member receives
// when the batch response cannot be aligned with the requests
func NewInvalidBatchResponseError(expected int) *ClientError {
	return &ClientError{
		Type:    ErrorTypeInvalidBatchResponse,
		Code:    CodeResponseTypeError,
		Message: fmt.Sprintf("server response is invalid, expected array of %d", expected),
	}
}

// NewProtocolError creates an error for a response missing a required protocol field
func NewProtocolError(message string) *ClientError {
	return &ClientError{
		Type:    ErrorTypeProtocol,
		Code:    CodeUploadFailure,
		Message: message,
	}
}

// NewTransferError creates an error for a failed transport exchange
func NewTransferError(statusCode int, message string, err error) *ClientError {
	return &ClientError{
		Type:       ErrorTypeTransfer,
		Code:       CodeUploadFailure,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// NewResponseParseError creates the generic response-unknown-error
func NewResponseParseError(message string, err error) *ClientError {
	if message == "" {
		message = "failed to parse response"
	}
	return &ClientError{
		Type:    ErrorTypeResponseParse,
		Code:    CodeResponseUnknownError,
		Message: message,
		Err:     err,
	}
}

// NewInvalidRequestError creates an error for a request that could not be built
func NewInvalidRequestError(message string, err error) *ClientError {
	return &ClientError{
		Type:    ErrorTypeInvalidRequest,
		Code:    CodeRequestError,
		Message: message,
		Err:     err,
	}
}

// NewCanceledError creates an error for an operation canceled by the caller
func NewCanceledError(err error) *ClientError {
	return &ClientError{
		Type:    ErrorTypeCanceled,
		Code:    CodeCanceled,
		Message: "operation canceled",
		Err:     err,
	}
}

// APIError is an exception reported by the server inside a response payload
type APIError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	ObjectType string            `json:"objectType,omitempty"`
	Args       map[string]string `json:"args,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("api error [%s]: %s", e.Code, e.Message)
}

// IsAPIErrorPayload reports whether a decoded response value carries a server exception.
func IsAPIErrorPayload(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	objectType, _ := m["objectType"].(string)
	return strings.HasSuffix(objectType, "APIException")
}

// NewAPIErrorFromPayload converts a decoded exception payload into an APIError
func NewAPIErrorFromPayload(v any) *APIError {
	m, _ := v.(map[string]any)
	e := &APIError{}
	if code, ok := m["code"]; ok && code != nil {
		e.Code = fmt.Sprint(code)
	}
	if msg, ok := m["message"].(string); ok {
		e.Message = msg
	}
	if objectType, ok := m["objectType"].(string); ok {
		e.ObjectType = objectType
	}
	switch args := m["args"].(type) {
	case map[string]any:
		e.Args = make(map[string]string, len(args))
		for k, v := range args {
			e.Args[k] = fmt.Sprint(v)
		}
	case []any:
		e.Args = make(map[string]string, len(args))
		for _, item := range args {
			if kv, ok := item.(map[string]any); ok {
				name, _ := kv["name"].(string)
				e.Args[name] = fmt.Sprint(kv["value"])
			}
		}
	}
	return e
}

// ParseTransportError converts a non-200 HTTP exchange into a ClientError
func ParseTransportError(statusCode int, body []byte, originalErr error) *ClientError {
	message := strings.TrimSpace(string(body))

	var payload struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Error.Message != "":
			message = payload.Error.Message
		case payload.Message != "":
			message = payload.Message
		}
	}
	if message == "" {
		message = http.StatusText(statusCode)
	}
	return NewTransferError(statusCode, message, originalErr)
}

// IsKnownError reports whether err is already one of the two recognized client/API error kinds.
func IsKnownError(err error) bool {
	var clientErr *ClientError
	var apiErr *APIError
	return errors.As(err, &clientErr) || errors.As(err, &apiErr)
}
