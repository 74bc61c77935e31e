package domain

import "context"

// ReplyGenerator defines how the core application asks a language model for
// the next assistant turn.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, history []Turn, newMessage string) (string, error)
}

// ConversationStore defines conversation and message persistence.
//
// Implementations wrap every failure below the application layer in a
// *StorageError; ErrConversationNotFound is the only domain-level failure.
type ConversationStore interface {
	CreateConversation(ctx context.Context) (*Conversation, error)

	// AppendMessage fails with ErrConversationNotFound for an unknown id.
	AppendMessage(ctx context.Context, id ConversationID, role Role, text string) (*Message, error)

	// ListMessages returns every message of the conversation in insertion order.
	ListMessages(ctx context.Context, id ConversationID) ([]*Message, error)

	// GetConversation returns (nil, nil) for an unknown id.
	GetConversation(ctx context.Context, id ConversationID) (*Conversation, error)

	// DeleteConversation removes the conversation and its messages atomically.
	DeleteConversation(ctx context.Context, id ConversationID) (bool, error)
}

// Pinger is implemented by stores backed by a connection or a file.
type Pinger interface {
	Ping(ctx context.Context) error
}
