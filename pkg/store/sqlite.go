package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	title      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	chat_id    TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	role       TEXT NOT NULL,
	text       TEXT NOT NULL,
	image      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (chat_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_chats_user ON chats(user_id, updated_at);
`

// SQLiteStore is a Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) a SQLite-backed store at path.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and serializes
	// writers, which is the append-ordering guarantee the Store promises.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Create(ctx context.Context, userID, title string, first Message) (*Chat, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chats (id, user_id, title, updated_at) VALUES (?, ?, ?, ?)`,
		id, userID, title, now,
	); err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}

	if err := insertMessage(ctx, tx, id, 0, first); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return s.Get(ctx, id)
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Chat, error) {
	chat := &Chat{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, title, updated_at FROM chats WHERE id = ?`, id,
	).Scan(&chat.UserID, &chat.Title, &chat.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("select chat: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, text, image, created_at FROM messages WHERE chat_id = ? ORDER BY seq`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.Role, &msg.Text, &msg.Image, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		chat.Messages = append(chat.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return chat, nil
}

func (s *SQLiteStore) Append(ctx context.Context, id string, msg Message) (*Chat, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE chats SET updated_at = ? WHERE id = ?`, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("touch chat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound{ID: id}
	}

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), -1) + 1 FROM messages WHERE chat_id = ?`, id,
	).Scan(&next); err != nil {
		return nil, fmt.Errorf("next seq: %w", err)
	}

	if err := insertMessage(ctx, tx, id, next, msg); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return s.Get(ctx, id)
}

func (s *SQLiteStore) Rename(ctx context.Context, id, title string) (*Chat, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chats SET title = ?, updated_at = ? WHERE id = ?`,
		title, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("rename chat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound{ID: id}
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, userID string) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, updated_at FROM chats WHERE user_id = ? ORDER BY updated_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	summaries := make([]Summary, 0)
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return summaries, nil
}

// AllChats returns every chat in the database, regardless of owner. It backs
// the offline merge tooling, not the HTTP API.
func (s *SQLiteStore) AllChats(ctx context.Context) ([]*Chat, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chats`)
	if err != nil {
		return nil, fmt.Errorf("list all chats: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chat id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat ids: %w", err)
	}

	chats := make([]*Chat, 0, len(ids))
	for _, id := range ids {
		chat, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, nil
}

// Import inserts a chat preserving its ID and timestamps. Chats that already
// exist are skipped. Returns whether the chat was new.
func (s *SQLiteStore) Import(ctx context.Context, chat *Chat) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO chats (id, user_id, title, updated_at) VALUES (?, ?, ?, ?)`,
		chat.ID, chat.UserID, chat.Title, chat.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("import chat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	for seq, msg := range chat.Messages {
		if err := insertMessage(ctx, tx, chat.ID, seq, msg); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func insertMessage(ctx context.Context, tx *sql.Tx, chatID string, seq int, msg Message) error {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (chat_id, seq, role, text, image, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		chatID, seq, msg.Role, msg.Text, msg.Image, ts,
	); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}
