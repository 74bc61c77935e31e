package conversation

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/PabloGalante/supportchat/internal/domain"
)

// ErrorKind is the machine-readable category of a failed operation.
type ErrorKind string

const (
	KindInvalidInput         ErrorKind = "INVALID_INPUT"
	KindConversationNotFound ErrorKind = "CONVERSATION_NOT_FOUND"
	KindAIService            ErrorKind = "AI_SERVICE_ERROR"
	KindStorage              ErrorKind = "STORAGE_ERROR"
	KindUnknown              ErrorKind = "UNKNOWN"
)

const (
	msgConversationNotFound = "We couldn't find that conversation. Please start a new one."
	msgStorage              = "We couldn't save or load your conversation. Please try again."
	msgUnknown              = "Something went wrong on our side. Please try again."
)

// Error is the only error type Service returns. Message is safe to show to
// the requester; the wrapped error keeps the technical detail for logs.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Retryable  bool

	// GatewayKind is set for KindAIService.
	GatewayKind domain.GatewayErrorKind

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Technical returns the detail meant for logs.
func (e *Error) Technical() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func invalidInput(message string) *Error {
	return &Error{
		Kind:       KindInvalidInput,
		StatusCode: http.StatusBadRequest,
		Message:    message,
	}
}

// InvalidInput builds an INVALID_INPUT error for adapters that reject a
// request before it reaches the service (bad JSON, bad query parameters).
func InvalidInput(message string) *Error {
	return invalidInput(message)
}

// AsError maps any error into the taxonomy; adapters use it for failures
// that never reached the service, such as recovered panics.
func AsError(err error) *Error {
	return toError(err)
}

// toError funnels every failure into the unified taxonomy.
func toError(err error) *Error {
	if err == nil {
		return nil
	}

	var derr *Error
	if errors.As(err, &derr) {
		return derr
	}

	var gerr *domain.GatewayError
	if errors.As(err, &gerr) {
		status, retryable := gatewayStatus(gerr.Kind)
		return &Error{
			Kind:        KindAIService,
			StatusCode:  status,
			Message:     gerr.UserMessage,
			Retryable:   retryable,
			GatewayKind: gerr.Kind,
			Err:         err,
		}
	}

	if errors.Is(err, domain.ErrConversationNotFound) {
		return &Error{
			Kind:       KindConversationNotFound,
			StatusCode: http.StatusNotFound,
			Message:    msgConversationNotFound,
			Err:        err,
		}
	}

	var serr *domain.StorageError
	if errors.As(err, &serr) {
		return &Error{
			Kind:       KindStorage,
			StatusCode: http.StatusInternalServerError,
			Message:    msgStorage,
			Err:        err,
		}
	}

	return &Error{
		Kind:       KindUnknown,
		StatusCode: http.StatusInternalServerError,
		Message:    msgUnknown,
		Err:        err,
	}
}

// gatewayStatus maps a gateway failure to a status and whether the caller
// may back off and retry.
func gatewayStatus(kind domain.GatewayErrorKind) (int, bool) {
	switch kind {
	case domain.GatewayRateLimited:
		return http.StatusTooManyRequests, true
	case domain.GatewayTimedOut:
		return http.StatusRequestTimeout, true
	case domain.GatewayNetworkUnavailable:
		return http.StatusServiceUnavailable, true
	case domain.GatewayInvalidRequest, domain.GatewayContentFiltered:
		return http.StatusBadRequest, false
	default:
		return http.StatusInternalServerError, false
	}
}
