package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/PabloGalante/supportchat/internal/domain"
)

var (
	conversationsBucket = []byte("conversations")
	messagesBucket      = []byte("messages")
)

// Store keeps conversations in a single BoltDB file. Each conversation owns
// a nested bucket under "messages" keyed by big-endian sequence numbers, so
// a cursor walk returns insertion order.
type Store struct {
	db *bbolt.DB
}

type conversationRecord struct {
	CreatedAt time.Time `json:"created_at"`
}

type messageRecord struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Open creates the file and its parent directory when missing.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating bolt directory: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(conversationsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(messagesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating bolt buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the file is still open.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(conversationsBucket) == nil {
			return errors.New("conversations bucket missing")
		}
		return nil
	})
}

func (s *Store) CreateConversation(ctx context.Context) (*domain.Conversation, error) {
	conv := &domain.Conversation{
		ID:        domain.NewConversationID(),
		CreatedAt: time.Now().UTC(),
	}
	enc, err := json.Marshal(conversationRecord{CreatedAt: conv.CreatedAt})
	if err != nil {
		return nil, domain.NewStorageError("create conversation", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		key := []byte(conv.ID)
		if err := tx.Bucket(conversationsBucket).Put(key, enc); err != nil {
			return err
		}
		_, err := tx.Bucket(messagesBucket).CreateBucket(key)
		return err
	})
	if err != nil {
		return nil, domain.NewStorageError("create conversation", err)
	}
	return conv, nil
}

func (s *Store) AppendMessage(ctx context.Context, id domain.ConversationID, role domain.Role, text string) (*domain.Message, error) {
	msg := &domain.Message{
		ID:             domain.NewMessageID(),
		ConversationID: id,
		Role:           role,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
	enc, err := json.Marshal(messageRecord{
		ID:        string(msg.ID),
		Role:      string(role),
		Text:      text,
		CreatedAt: msg.CreatedAt,
	})
	if err != nil {
		return nil, domain.NewStorageError("append message", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(messagesBucket)
		b := root.Bucket([]byte(id))
		if b == nil {
			return domain.ErrConversationNotFound
		}
		// The root bucket's sequence is shared by every conversation.
		seq, err := root.NextSequence()
		if err != nil {
			return err
		}
		msg.Seq = int64(seq)
		return b.Put(seqKey(seq), enc)
	})
	if err != nil {
		return nil, domain.NewStorageError("append message", err)
	}
	return msg, nil
}

func (s *Store) ListMessages(ctx context.Context, id domain.ConversationID) ([]*domain.Message, error) {
	var out []*domain.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(messagesBucket).Bucket([]byte(id))
		if b == nil {
			return domain.ErrConversationNotFound
		}
		out = []*domain.Message{}
		return b.ForEach(func(k, v []byte) error {
			var rec messageRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode message %x: %w", k, err)
			}
			out = append(out, &domain.Message{
				ID:             domain.MessageID(rec.ID),
				ConversationID: id,
				Seq:            int64(binary.BigEndian.Uint64(k)),
				Role:           domain.Role(rec.Role),
				Text:           rec.Text,
				CreatedAt:      rec.CreatedAt,
			})
			return nil
		})
	})
	if err != nil {
		return nil, domain.NewStorageError("list messages", err)
	}
	return out, nil
}

func (s *Store) GetConversation(ctx context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	var conv *domain.Conversation
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(conversationsBucket).Get([]byte(id))
		if v == nil {
			return nil
		}
		var rec conversationRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("decode conversation: %w", err)
		}
		conv = &domain.Conversation{ID: id, CreatedAt: rec.CreatedAt}
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("get conversation", err)
	}
	return conv, nil
}

func (s *Store) DeleteConversation(ctx context.Context, id domain.ConversationID) (bool, error) {
	var deleted bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		key := []byte(id)
		convs := tx.Bucket(conversationsBucket)
		if convs.Get(key) == nil {
			return nil
		}
		if err := convs.Delete(key); err != nil {
			return err
		}
		if err := tx.Bucket(messagesBucket).DeleteBucket(key); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
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

func seqKey(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}
