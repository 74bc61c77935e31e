package domain

// Conversation is a persisted thread. It is never mutated after creation.
type Conversation struct {
	ID        ConversationID
	CreatedAt Timestamp
}

// Message is one immutable turn of a conversation.
type Message struct {
	ID             MessageID
	ConversationID ConversationID

	// Seq is the store-assigned insertion position. It strictly increases
	// across appends, so ordering by Seq reproduces insertion order even when
	// two messages share a CreatedAt.
	Seq int64

	Role      Role
	Text      string
	CreatedAt Timestamp
}

// Turn is the provider-facing view of a message: just who said what.
type Turn struct {
	Role    Role
	Content string
}

// TurnsFrom converts stored messages into model turns, preserving order.
func TurnsFrom(msgs []*Message) []Turn {
	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, Turn{Role: m.Role, Content: m.Text})
	}
	return turns
}
