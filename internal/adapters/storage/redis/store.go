package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/PabloGalante/supportchat/internal/domain"
)

const (
	keyPrefix        = "supportchat"
	maxAppendRetries = 10
)

// Store keeps each conversation as a hash plus a sorted set of messages
// scored by a global INCR sequence.
type Store struct {
	client *redis.Client
}

type messageRecord struct {
	ID        string `json:"id"`
	Seq       int64  `json:"seq"`
	Role      string `json:"role"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at"`
}

// Open parses redisURL (redis://...) and verifies the connection.
func Open(ctx context.Context, redisURL string) (*Store, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis url is required for redis store")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func conversationKey(id domain.ConversationID) string {
	return fmt.Sprintf("%s:conv:%s", keyPrefix, id)
}

func messagesKey(id domain.ConversationID) string {
	return fmt.Sprintf("%s:conv:%s:messages", keyPrefix, id)
}

func seqKey() string {
	return keyPrefix + ":seq"
}

func (s *Store) CreateConversation(ctx context.Context) (*domain.Conversation, error) {
	conv := &domain.Conversation{
		ID:        domain.NewConversationID(),
		CreatedAt: time.Now().UTC(),
	}

	err := s.client.HSet(ctx, conversationKey(conv.ID),
		"id", string(conv.ID),
		"created_at", conv.CreatedAt.UnixNano(),
	).Err()
	if err != nil {
		return nil, domain.NewStorageError("create conversation", err)
	}
	return conv, nil
}

func (s *Store) AppendMessage(ctx context.Context, id domain.ConversationID, role domain.Role, text string) (*domain.Message, error) {
	convKey := conversationKey(id)
	msg := &domain.Message{
		ID:             domain.NewMessageID(),
		ConversationID: id,
		Role:           role,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}

	// The conversation key is watched so a concurrent delete aborts the append.
	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, convKey).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrConversationNotFound
		}

		seq, err := tx.Incr(ctx, seqKey()).Result()
		if err != nil {
			return err
		}
		msg.Seq = seq

		enc, err := json.Marshal(messageRecord{
			ID:        string(msg.ID),
			Seq:       seq,
			Role:      string(role),
			Text:      text,
			CreatedAt: msg.CreatedAt.UnixNano(),
		})
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZAdd(ctx, messagesKey(id), redis.Z{Score: float64(seq), Member: enc})
			return nil
		})
		return err
	}

	for i := 0; i < maxAppendRetries; i++ {
		err := s.client.Watch(ctx, txf, convKey)
		if err == nil {
			return msg, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, domain.NewStorageError("append message", err)
	}
	return nil, domain.NewStorageError("append message", fmt.Errorf("conversation %s: too many concurrent modifications", id))
}

func (s *Store) ListMessages(ctx context.Context, id domain.ConversationID) ([]*domain.Message, error) {
	var (
		exists *redis.IntCmd
		items  *redis.StringSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		exists = pipe.Exists(ctx, conversationKey(id))
		items = pipe.ZRange(ctx, messagesKey(id), 0, -1)
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("list messages", err)
	}
	if exists.Val() == 0 {
		return nil, domain.ErrConversationNotFound
	}

	out := make([]*domain.Message, 0, len(items.Val()))
	for _, raw := range items.Val() {
		var rec messageRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, domain.NewStorageError("list messages", fmt.Errorf("decode message: %w", err))
		}
		out = append(out, &domain.Message{
			ID:             domain.MessageID(rec.ID),
			ConversationID: id,
			Seq:            rec.Seq,
			Role:           domain.Role(rec.Role),
			Text:           rec.Text,
			CreatedAt:      time.Unix(0, rec.CreatedAt).UTC(),
		})
	}
	return out, nil
}

func (s *Store) GetConversation(ctx context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	raw, err := s.client.HGet(ctx, conversationKey(id), "created_at").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, domain.NewStorageError("get conversation", err)
	}
	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, domain.NewStorageError("get conversation", fmt.Errorf("decode created_at: %w", err))
	}
	return &domain.Conversation{ID: id, CreatedAt: time.Unix(0, nanos).UTC()}, nil
}

func (s *Store) DeleteConversation(ctx context.Context, id domain.ConversationID) (bool, error) {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, conversationKey(id))
		pipe.Del(ctx, messagesKey(id))
		return nil
	})
	if err != nil {
		return false, domain.NewStorageError("delete conversation", err)
	}
	return del.Val() > 0, nil
}
