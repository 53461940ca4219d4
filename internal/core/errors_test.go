package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestClientError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ClientError
		expected string
	}{
		{
			name:     "error with code",
			err:      NewProtocolError("missing uploadedFileSize"),
			expected: "protocol_error [client::upload-failure]: missing uploadedFileSize",
		},
		{
			name: "error without code",
			err: &ClientError{
				Type:    ErrorTypeTransfer,
				Message: "connection reset",
			},
			expected: "transfer_failure: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestClientError_Unwrap(t *testing.T) {
	original := errors.New("dial tcp: connection refused")
	err := NewTransferError(http.StatusBadGateway, "failed to send request", original)

	if !errors.Is(err, original) {
		t.Error("errors.Is should find the original error")
	}
	if err.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want %d", err.StatusCode, http.StatusBadGateway)
	}
}

func TestClientError_IsMatchesSentinelByType(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		want     bool
	}{
		{"type mismatch", NewTypeMismatchError("not a number"), ErrTypeMismatch, true},
		{"unknown type", NewUnknownTypeError("KalturaFoo", "KalturaBar"), ErrUnknownType, true},
		{"invalid batch", NewInvalidBatchResponseError(3), ErrInvalidBatchResponse, true},
		{"protocol", NewProtocolError("x"), ErrProtocol, true},
		{"transfer", NewTransferError(500, "x", nil), ErrTransfer, true},
		{"response parse", NewResponseParseError("", nil), ErrResponseParse, true},
		{"canceled", NewCanceledError(context.Canceled), ErrCanceled, true},
		{"wrapped", fmt.Errorf("chunk 2: %w", NewProtocolError("x")), ErrProtocol, true},
		{"different type", NewProtocolError("x"), ErrTransfer, false},
		{"not a client error", errors.New("plain"), ErrProtocol, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.sentinel); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClientError_IsDoesNotMatchSpecificErrors(t *testing.T) {
	a := NewProtocolError("first")
	b := NewProtocolError("second")
	if errors.Is(a, b) {
		t.Error("errors with a message must not act as sentinels")
	}
}

func TestCanceledError_UnwrapsContextError(t *testing.T) {
	err := NewCanceledError(context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected context.DeadlineExceeded in the chain")
	}
	if err.Code != CodeCanceled {
		t.Errorf("Code = %q, want %q", err.Code, CodeCanceled)
	}
}

func TestNewUnknownTypeError_Message(t *testing.T) {
	if got := NewUnknownTypeError("KalturaFoo", "").Message; got != "failed to create object of type 'KalturaFoo'" {
		t.Errorf("Message = %q", got)
	}
	want := "failed to create object of type 'KalturaFoo' (fallback type 'KalturaBar')"
	if got := NewUnknownTypeError("KalturaFoo", "KalturaBar").Message; got != want {
		t.Errorf("Message = %q, want %q", got, want)
	}
}

func TestNewResponseParseError_DefaultMessage(t *testing.T) {
	err := NewResponseParseError("", nil)
	if err.Message != "failed to parse response" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Code != CodeResponseUnknownError {
		t.Errorf("Code = %q, want %q", err.Code, CodeResponseUnknownError)
	}
}

func TestIsAPIErrorPayload(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"exception", map[string]any{"objectType": "KalturaAPIException", "code": "X"}, true},
		{"other object", map[string]any{"objectType": "KalturaMediaEntry"}, false},
		{"no discriminator", map[string]any{"code": "X"}, false},
		{"array", []any{}, false},
		{"scalar", "ok", false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAPIErrorPayload(tt.value); got != tt.want {
				t.Errorf("IsAPIErrorPayload() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewAPIErrorFromPayload(t *testing.T) {
	t.Run("map args", func(t *testing.T) {
		err := NewAPIErrorFromPayload(map[string]any{
			"objectType": "KalturaAPIException",
			"code":       "ENTRY_ID_NOT_FOUND",
			"message":    "Entry id \"0_x\" not found",
			"args":       map[string]any{"ENTRY_ID": "0_x"},
		})
		if err.Code != "ENTRY_ID_NOT_FOUND" {
			t.Errorf("Code = %q", err.Code)
		}
		if err.Args["ENTRY_ID"] != "0_x" {
			t.Errorf("Args = %v", err.Args)
		}
		if err.Error() != "api error [ENTRY_ID_NOT_FOUND]: Entry id \"0_x\" not found" {
			t.Errorf("Error() = %q", err.Error())
		}
	})

	t.Run("name value args", func(t *testing.T) {
		err := NewAPIErrorFromPayload(map[string]any{
			"objectType": "KalturaAPIException",
			"code":       float64(1002),
			"args": []any{
				map[string]any{"objectType": "KalturaApiExceptionArg", "name": "TOKEN", "value": "1_abc"},
			},
		})
		if err.Code != "1002" {
			t.Errorf("Code = %q", err.Code)
		}
		if err.Args["TOKEN"] != "1_abc" {
			t.Errorf("Args = %v", err.Args)
		}
	})
}

func TestParseTransportError(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantMsg    string
	}{
		{"nested error message", http.StatusBadGateway, `{"error":{"message":"upstream down"}}`, "upstream down"},
		{"top level message", http.StatusServiceUnavailable, `{"message":"maintenance"}`, "maintenance"},
		{"plain text body", http.StatusInternalServerError, "boom\n", "boom"},
		{"empty body", http.StatusGatewayTimeout, "", "Gateway Timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseTransportError(tt.statusCode, []byte(tt.body), nil)
			if err.Type != ErrorTypeTransfer {
				t.Errorf("Type = %v, want %v", err.Type, ErrorTypeTransfer)
			}
			if err.StatusCode != tt.statusCode {
				t.Errorf("StatusCode = %d, want %d", err.StatusCode, tt.statusCode)
			}
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
		})
	}
}

func TestIsKnownError(t *testing.T) {
	if !IsKnownError(fmt.Errorf("wrapped: %w", NewProtocolError("x"))) {
		t.Error("wrapped ClientError should be known")
	}
	if !IsKnownError(&APIError{Code: "X"}) {
		t.Error("APIError should be known")
	}
	if IsKnownError(errors.New("plain")) {
		t.Error("plain error should not be known")
	}
}

func TestSessionIDContext(t *testing.T) {
	ctx := context.Background()
	if got := GetSessionID(ctx); got != "" {
		t.Errorf("GetSessionID() = %q, want empty", got)
	}
	ctx = WithSessionID(ctx, "b2c5e0f4")
	if got := GetSessionID(ctx); got != "b2c5e0f4" {
		t.Errorf("GetSessionID() = %q", got)
	}
}
