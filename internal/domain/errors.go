package domain

import (
	"errors"
	"fmt"
)

// ErrConversationNotFound is returned by stores for unknown conversation ids.
var ErrConversationNotFound = errors.New("conversation not found")

// StorageError wraps any failure below the application layer (I/O, driver,
// constraint violation).
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err unless it is nil or already a domain-level error.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConversationNotFound) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// GatewayErrorKind classifies a Model Gateway failure.
type GatewayErrorKind string

const (
	GatewayInvalidCredential  GatewayErrorKind = "invalid_credential"
	GatewayRateLimited        GatewayErrorKind = "rate_limited"
	GatewayTimedOut           GatewayErrorKind = "timed_out"
	GatewayNetworkUnavailable GatewayErrorKind = "network_unavailable"
	GatewayContentFiltered    GatewayErrorKind = "content_filtered"
	GatewayInvalidRequest     GatewayErrorKind = "invalid_request"
	GatewayUnknown            GatewayErrorKind = "unknown"
)

// GatewayError is the only error type the Model Gateway returns.
type GatewayError struct {
	Kind GatewayErrorKind

	// Technical keeps the original provider error text for logs.
	Technical string

	// UserMessage is short, fixed per kind and safe to show to the requester.
	UserMessage string

	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("model gateway (%s): %s", e.Kind, e.Technical)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

var gatewayUserMessages = map[GatewayErrorKind]string{
	GatewayInvalidCredential:  "The assistant is not available right now because of a configuration problem. Please try again later.",
	GatewayRateLimited:        "The assistant is receiving too many requests. Please wait a moment and try again.",
	GatewayTimedOut:           "The assistant took too long to respond. Please try again.",
	GatewayNetworkUnavailable: "The assistant could not be reached. Please check back in a few minutes.",
	GatewayContentFiltered:    "Your message could not be processed because of content restrictions. Please rephrase it and try again.",
	GatewayInvalidRequest:     "Your message could not be processed. Please rephrase it and try again.",
	GatewayUnknown:            "I'm having trouble generating a response right now. Please try again.",
}

// GatewayUserMessage returns the user-safe text for kind.
func GatewayUserMessage(kind GatewayErrorKind) string {
	if msg, ok := gatewayUserMessages[kind]; ok {
		return msg
	}
	return gatewayUserMessages[GatewayUnknown]
}

// NewGatewayError builds a GatewayError whose technical text comes from err.
func NewGatewayError(kind GatewayErrorKind, err error) *GatewayError {
	technical := string(kind)
	if err != nil {
		technical = err.Error()
	}
	return &GatewayError{
		Kind:        kind,
		Technical:   technical,
		UserMessage: GatewayUserMessage(kind),
		Err:         err,
	}
}
