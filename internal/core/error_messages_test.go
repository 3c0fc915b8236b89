package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "wrapped not found maps correctly",
			err:         fmt.Errorf("get expenses %q: %w", "abc", ErrNotFound),
			wantCode:    "REC001",
			wantMessage: "Record not found",
		},
		{
			name:        "invalid payload maps correctly",
			err:         fmt.Errorf("%w: malformed JSON", ErrInvalidPayload),
			wantCode:    "REC002",
			wantMessage: "The submitted record is invalid",
		},
		{
			name:        "unknown kind maps correctly",
			err:         fmt.Errorf("%w: %q", ErrUnknownKind, "invoices"),
			wantCode:    "REC003",
			wantMessage: "Unknown record type",
		},
		{
			name:        "missing confirmation maps correctly",
			err:         ErrConfirmationRequired,
			wantCode:    "REC004",
			wantMessage: "This action must be confirmed",
		},
		{
			name:        "attachments on payroll map correctly",
			err:         fmt.Errorf("%w: payroll", ErrAttachmentsUnsupported),
			wantCode:    "REC005",
			wantMessage: "Files cannot be attached to this record type",
		},
		{
			name:        "connection refused maps correctly",
			err:         errors.New("dial tcp: connection refused"),
			wantCode:    "DB004",
			wantMessage: "Unable to connect to database",
		},
		{
			name:        "deadline wins over generic timeout",
			err:         errors.New("context deadline exceeded (timeout)"),
			wantCode:    "REQ002",
			wantMessage: "Request timed out",
		},
		{
			name:        "cancelled context maps correctly",
			err:         fmt.Errorf("list income: %w", context.Canceled),
			wantCode:    "REQ001",
			wantMessage: "Request was cancelled",
		},
		{
			name:        "i/o timeout maps correctly",
			err:         errors.New("read tcp: i/o timeout"),
			wantCode:    "DB006",
			wantMessage: "Operation timed out",
		},
		{
			name:        "rate limit maps correctly",
			err:         errors.New("rate limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("RECORD NOT FOUND"),
			wantCode:    "REC001",
			wantMessage: "Record not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrNotFound)

	expected := "Record not found (Code: REC001). Refresh the list; it may have been deleted"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", ErrUnknownKind, true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("remove payroll: %w", ErrNotFound)
		userErr := NewUserError(techErr)

		if userErr.Error() != "Record not found" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, ErrNotFound) {
			t.Error("Unwrap() should expose the original error chain")
		}
	})
}
