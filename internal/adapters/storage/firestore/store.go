package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/supportchat/internal/domain"
)

type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store.
// Uses the project passed (SUPPORT_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Ping reads a document that need not exist; only transport errors count.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.conversationDoc("healthcheck").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return err
	}
	return nil
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) conversationsCol() *firestore.CollectionRef {
	return s.client.Collection("conversations")
}

func (s *Store) conversationDoc(id domain.ConversationID) *firestore.DocumentRef {
	return s.conversationsCol().Doc(string(id))
}

func (s *Store) messagesCol(id domain.ConversationID) *firestore.CollectionRef {
	return s.conversationDoc(id).Collection("messages")
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type conversationDoc struct {
	CreatedAt time.Time `firestore:"created_at"`
	// NextSeq is the sequence the next appended message receives.
	NextSeq int64 `firestore:"next_seq"`
}

type messageDoc struct {
	Seq       int64     `firestore:"seq"`
	Role      string    `firestore:"role"`
	Text      string    `firestore:"text"`
	CreatedAt time.Time `firestore:"created_at"`
}

// ─────────────────────────────────────────
// ConversationStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateConversation(ctx context.Context) (*domain.Conversation, error) {
	conv := &domain.Conversation{
		ID:        domain.NewConversationID(),
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.conversationDoc(conv.ID).Create(ctx, conversationDoc{
		CreatedAt: conv.CreatedAt,
		NextSeq:   1,
	})
	if err != nil {
		return nil, domain.NewStorageError("create conversation", err)
	}
	return conv, nil
}

func (s *Store) AppendMessage(ctx context.Context, id domain.ConversationID, role domain.Role, text string) (*domain.Message, error) {
	var msg *domain.Message

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		convRef := s.conversationDoc(id)
		snap, err := tx.Get(convRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return domain.ErrConversationNotFound
			}
			return err
		}

		var conv conversationDoc
		if err := snap.DataTo(&conv); err != nil {
			return fmt.Errorf("decode conversationDoc: %w", err)
		}

		msg = &domain.Message{
			ID:             domain.NewMessageID(),
			ConversationID: id,
			Seq:            conv.NextSeq,
			Role:           role,
			Text:           text,
			CreatedAt:      time.Now().UTC(),
		}

		if err := tx.Update(convRef, []firestore.Update{{Path: "next_seq", Value: conv.NextSeq + 1}}); err != nil {
			return err
		}
		return tx.Create(s.messagesCol(id).Doc(string(msg.ID)), messageDoc{
			Seq:       msg.Seq,
			Role:      string(role),
			Text:      text,
			CreatedAt: msg.CreatedAt,
		})
	})
	if err != nil {
		return nil, domain.NewStorageError("append message", err)
	}
	return msg, nil
}

func (s *Store) ListMessages(ctx context.Context, id domain.ConversationID) ([]*domain.Message, error) {
	conv, err := s.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, domain.ErrConversationNotFound
	}

	iter := s.messagesCol(id).OrderBy("seq", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	out := []*domain.Message{}
	for {
		snap, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, domain.NewStorageError("list messages", err)
		}

		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, domain.NewStorageError("list messages", fmt.Errorf("decode messageDoc: %w", err))
		}

		out = append(out, &domain.Message{
			ID:             domain.MessageID(snap.Ref.ID),
			ConversationID: id,
			Seq:            doc.Seq,
			Role:           domain.Role(doc.Role),
			Text:           doc.Text,
			CreatedAt:      doc.CreatedAt.UTC(),
		})
	}
	return out, nil
}

func (s *Store) GetConversation(ctx context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	snap, err := s.conversationDoc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, domain.NewStorageError("get conversation", err)
	}

	var doc conversationDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, domain.NewStorageError("get conversation", fmt.Errorf("decode conversationDoc: %w", err))
	}
	return &domain.Conversation{ID: id, CreatedAt: doc.CreatedAt.UTC()}, nil
}

// DeleteConversation removes the conversation and its messages in one
// transaction, so it is bounded by Firestore's per-transaction write limit.
func (s *Store) DeleteConversation(ctx context.Context, id domain.ConversationID) (bool, error) {
	var deleted bool

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		deleted = false
		convRef := s.conversationDoc(id)
		if _, err := tx.Get(convRef); err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return err
		}

		refs, err := tx.Documents(s.messagesCol(id)).GetAll()
		if err != nil {
			return err
		}
		for _, snap := range refs {
			if err := tx.Delete(snap.Ref); err != nil {
				return err
			}
		}
		if err := tx.Delete(convRef); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, domain.NewStorageError("delete conversation", err)
	}
	return deleted, nil
}
