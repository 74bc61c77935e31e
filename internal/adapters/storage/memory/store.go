package memory

import (
	"context"
	"sync"
	"time"

	"github.com/PabloGalante/supportchat/internal/domain"
)

// Store is an in-memory domain.ConversationStore.
// It is NOT persistent and is only suitable for development / local mode.
type Store struct {
	mu            sync.RWMutex
	seq           int64
	conversations map[domain.ConversationID]*domain.Conversation
	messages      map[domain.ConversationID][]*domain.Message
}

func NewStore() *Store {
	return &Store{
		conversations: make(map[domain.ConversationID]*domain.Conversation),
		messages:      make(map[domain.ConversationID][]*domain.Message),
	}
}

func (s *Store) CreateConversation(ctx context.Context) (*domain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStorageError("create conversation", err)
	}

	conv := &domain.Conversation{
		ID:        domain.NewConversationID(),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations[conv.ID] = conv
	s.messages[conv.ID] = nil

	c := *conv
	return &c, nil
}

func (s *Store) AppendMessage(ctx context.Context, id domain.ConversationID, role domain.Role, text string) (*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStorageError("append message", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return nil, domain.ErrConversationNotFound
	}

	s.seq++
	msg := &domain.Message{
		ID:             domain.NewMessageID(),
		ConversationID: id,
		Seq:            s.seq,
		Role:           role,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
	s.messages[id] = append(s.messages[id], msg)

	m := *msg
	return &m, nil
}

func (s *Store) ListMessages(ctx context.Context, id domain.ConversationID) ([]*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStorageError("list messages", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.conversations[id]; !ok {
		return nil, domain.ErrConversationNotFound
	}

	msgs := s.messages[id]
	out := make([]*domain.Message, 0, len(msgs))
	for _, m := range msgs {
		c := *m
		out = append(out, &c)
	}
	return out, nil
}

func (s *Store) GetConversation(ctx context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStorageError("get conversation", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, nil
	}
	c := *conv
	return &c, nil
}

func (s *Store) DeleteConversation(ctx context.Context, id domain.ConversationID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, domain.NewStorageError("delete conversation", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return false, nil
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	return true, nil
}
