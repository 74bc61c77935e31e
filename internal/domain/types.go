package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ConversationID string
type MessageID string

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Timestamp = time.Time

// ErrMalformedID is returned when an identifier is not a canonical UUID.
var ErrMalformedID = errors.New("malformed identifier")

// canonical form: 8-4-4-4-12 hex digits
const idLength = 36

// NewConversationID returns a fresh random conversation identifier.
func NewConversationID() ConversationID {
	return ConversationID(uuid.NewString())
}

// NewMessageID returns a fresh random message identifier.
// Messages and conversations share the same UUID space.
func NewMessageID() MessageID {
	return MessageID(uuid.NewString())
}

// ParseConversationID validates s and returns it in canonical lowercase form.
// Only the hyphenated 36 character form is accepted; the braced, urn and
// unhyphenated variants uuid.Parse tolerates are rejected.
func ParseConversationID(s string) (ConversationID, error) {
	if len(s) != idLength {
		return "", ErrMalformedID
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return "", ErrMalformedID
	}
	return ConversationID(u.String()), nil
}

// IsBlank reports whether s is empty once surrounding whitespace is removed.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
