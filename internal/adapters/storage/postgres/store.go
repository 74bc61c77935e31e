package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PabloGalante/supportchat/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id UUID PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	seq BIGSERIAL PRIMARY KEY,
	id UUID UNIQUE NOT NULL,
	conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
	text TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);
`

// Store handles PostgreSQL operations through a connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and creates the schema when missing.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database url is required for postgres store")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initializing postgres schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) CreateConversation(ctx context.Context) (*domain.Conversation, error) {
	conv := &domain.Conversation{ID: domain.NewConversationID()}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, created_at)
		VALUES ($1, now())
		RETURNING created_at
	`, string(conv.ID)).Scan(&conv.CreatedAt)
	if err != nil {
		return nil, domain.NewStorageError("create conversation", err)
	}
	conv.CreatedAt = conv.CreatedAt.UTC()
	return conv, nil
}

func (s *Store) AppendMessage(ctx context.Context, id domain.ConversationID, role domain.Role, text string) (*domain.Message, error) {
	msg := &domain.Message{
		ID:             domain.NewMessageID(),
		ConversationID: id,
		Role:           role,
		Text:           text,
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, role, text, created_at)
		SELECT $1, c.id, $3, $4, clock_timestamp()
		FROM conversations c
		WHERE c.id = $2
		RETURNING seq, created_at
	`, string(msg.ID), string(id), string(role), text).Scan(&msg.Seq, &msg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, domain.NewStorageError("append message", err)
	}
	msg.CreatedAt = msg.CreatedAt.UTC()
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

	rows, err := s.pool.Query(ctx, `
		SELECT seq, id::text, role, text, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY seq ASC
	`, string(id))
	if err != nil {
		return nil, domain.NewStorageError("list messages", err)
	}
	defer rows.Close()

	out := []*domain.Message{}
	for rows.Next() {
		var (
			m         domain.Message
			msgID     string
			role      string
			createdAt time.Time
		)
		if err := rows.Scan(&m.Seq, &msgID, &role, &m.Text, &createdAt); err != nil {
			return nil, domain.NewStorageError("list messages", err)
		}
		m.ID = domain.MessageID(msgID)
		m.ConversationID = id
		m.Role = domain.Role(role)
		m.CreatedAt = createdAt.UTC()
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("list messages", err)
	}
	return out, nil
}

func (s *Store) GetConversation(ctx context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	var createdAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT created_at FROM conversations WHERE id = $1`, string(id),
	).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.NewStorageError("get conversation", err)
	}
	return &domain.Conversation{ID: id, CreatedAt: createdAt.UTC()}, nil
}

func (s *Store) DeleteConversation(ctx context.Context, id domain.ConversationID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, string(id))
	if err != nil {
		return false, domain.NewStorageError("delete conversation", err)
	}
	return tag.RowsAffected() > 0, nil
}
