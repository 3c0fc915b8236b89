package core

// # Error Codes Reference
//
// Every user-facing failure carries a code that can be quoted to support.
//
// # Record Errors (REC001-REC099)
//
//	REC001 - Not found: The record does not exist
//	         Action: Refresh the list; it may have been deleted
//	         Patterns: "record not found"
//
//	REC002 - Invalid payload: The submitted record could not be read
//	         Action: Send a JSON object with the record's fields
//	         Patterns: "invalid payload"
//
//	REC003 - Unknown kind: The record type is not supported
//	         Action: Use one of income, expenses or payroll
//	         Patterns: "unknown record kind"
//
//	REC004 - Confirmation required: Destructive action was not confirmed
//	         Action: Resend the request with {"confirm": true}
//	         Patterns: "confirmation required"
//
//	REC005 - Attachments unsupported: The kind does not take files
//	         Action: Attach files to income or expenses records
//	         Patterns: "attachments not supported"
//
// # Database Errors (DB004-DB007)
//
//	DB004 - Connection refused    Patterns: "connection refused"
//	DB005 - Connection reset      Patterns: "connection reset"
//	DB006 - Timeout               Patterns: "timeout"
//	DB007 - Deadlock              Patterns: "deadlock"
//
// # Request Errors (REQ001-REQ002)
//
//	REQ001 - Request cancelled    Patterns: "context canceled"
//	REQ002 - Request timed out    Patterns: "context deadline exceeded"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests   Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches. Check the server log for the original error.
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Record errors
	{
		pattern: ErrNotFound.Error(),
		msg: UserMessage{
			Message: "Record not found",
			Action:  "Refresh the list; it may have been deleted",
			Code:    "REC001",
		},
	},
	{
		pattern: ErrInvalidPayload.Error(),
		msg: UserMessage{
			Message: "The submitted record is invalid",
			Action:  "Send a JSON object with the record's fields",
			Code:    "REC002",
		},
	},
	{
		pattern: ErrUnknownKind.Error(),
		msg: UserMessage{
			Message: "Unknown record type",
			Action:  "Use one of income, expenses or payroll",
			Code:    "REC003",
		},
	},
	{
		pattern: ErrConfirmationRequired.Error(),
		msg: UserMessage{
			Message: "This action must be confirmed",
			Action:  `Resend the request with {"confirm": true}`,
			Code:    "REC004",
		},
	},
	{
		pattern: ErrAttachmentsUnsupported.Error(),
		msg: UserMessage{
			Message: "Files cannot be attached to this record type",
			Action:  "Attach files to income or expenses records",
			Code:    "REC005",
		},
	},

	// Request lifecycle, before "timeout" so deadline errors keep their own code
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again",
			Code:    "REQ002",
		},
	},

	// Database availability
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns the ERR000 fallback when no pattern matches and a zero value for nil.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
