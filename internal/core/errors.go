package core

import "errors"

// Sentinel errors returned by the record layer. Callers match them with
// errors.Is; the messages double as patterns for MapError.
var (
	ErrNotFound             = errors.New("record not found")
	ErrInvalidPayload       = errors.New("invalid payload")
	ErrUnknownKind          = errors.New("unknown record kind")
	ErrConfirmationRequired = errors.New("confirmation required")

	ErrAttachmentsUnsupported = errors.New("attachments not supported")
)
