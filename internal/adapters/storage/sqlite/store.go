package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/PabloGalante/supportchat/internal/domain"
)

// DefaultPath is used when no path is configured.
const DefaultPath = "./data/supportchat.db"

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT UNIQUE NOT NULL,
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
	text TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);
`

// Store handles SQLite database operations.
type Store struct {
	db *sql.DB
}

// Open creates the database file and schema when missing.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing sqlite schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) CreateConversation(ctx context.Context) (*domain.Conversation, error) {
	conv := &domain.Conversation{
		ID:        domain.NewConversationID(),
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, created_at) VALUES (?, ?)`,
		string(conv.ID), conv.CreatedAt.UnixNano(),
	)
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

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, text, created_at)
		SELECT ?, ?, ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM conversations WHERE id = ?)
	`, string(msg.ID), string(id), string(role), text, msg.CreatedAt.UnixNano(), string(id))
	if err != nil {
		return nil, domain.NewStorageError("append message", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, domain.NewStorageError("append message", err)
	}
	if n == 0 {
		return nil, domain.ErrConversationNotFound
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return nil, domain.NewStorageError("append message", err)
	}
	msg.Seq = seq
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

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, role, text, created_at
		FROM messages
		WHERE conversation_id = ?
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
			createdAt int64
		)
		if err := rows.Scan(&m.Seq, &msgID, &role, &m.Text, &createdAt); err != nil {
			return nil, domain.NewStorageError("list messages", err)
		}
		m.ID = domain.MessageID(msgID)
		m.ConversationID = id
		m.Role = domain.Role(role)
		m.CreatedAt = time.Unix(0, createdAt).UTC()
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("list messages", err)
	}
	return out, nil
}

func (s *Store) GetConversation(ctx context.Context, id domain.ConversationID) (*domain.Conversation, error) {
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at FROM conversations WHERE id = ?`, string(id),
	).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.NewStorageError("get conversation", err)
	}
	return &domain.Conversation{ID: id, CreatedAt: time.Unix(0, createdAt).UTC()}, nil
}

func (s *Store) DeleteConversation(ctx context.Context, id domain.ConversationID) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, domain.NewStorageError("delete conversation", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, string(id)); err != nil {
		return false, domain.NewStorageError("delete conversation", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, string(id))
	if err != nil {
		return false, domain.NewStorageError("delete conversation", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, domain.NewStorageError("delete conversation", err)
	}
	if err := tx.Commit(); err != nil {
		return false, domain.NewStorageError("delete conversation", err)
	}
	return n > 0, nil
}
