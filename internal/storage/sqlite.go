package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"tweetbridge/internal/model"
	"tweetbridge/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Store backed by a SQLite database, one row per chat with
// the subscription maps encoded as JSON columns.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Load returns all persisted chat states.
func (s *SQLite) Load(ctx context.Context) (map[int64]*model.ChatState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, subscriptions, cursors, filters, pending FROM chats`,
	)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	chats := make(map[int64]*model.ChatState)
	for rows.Next() {
		st, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats[st.ChatID] = st
	}
	return chats, rows.Err()
}

// Save upserts one chat's record in a single statement.
func (s *SQLite) Save(ctx context.Context, state *model.ChatState) error {
	subs, err := json.Marshal(state.Subscriptions)
	if err != nil {
		return fmt.Errorf("encode subscriptions: %w", err)
	}
	cursors, err := json.Marshal(state.Cursors)
	if err != nil {
		return fmt.Errorf("encode cursors: %w", err)
	}
	filters, err := json.Marshal(state.Filters)
	if err != nil {
		return fmt.Errorf("encode filters: %w", err)
	}
	pending, err := json.Marshal(state.Pending)
	if err != nil {
		return fmt.Errorf("encode pending: %w", err)
	}

	now := time.Now().UTC().Format(timeLayout)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chats (chat_id, subscriptions, cursors, filters, pending, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET
		   subscriptions = excluded.subscriptions,
		   cursors       = excluded.cursors,
		   filters       = excluded.filters,
		   pending       = excluded.pending,
		   updated_at    = excluded.updated_at`,
		state.ChatID, string(subs), string(cursors), string(filters), string(pending), now,
	)
	if err != nil {
		return fmt.Errorf("upsert chat: %w", err)
	}
	return nil
}

func scanChat(rows *sql.Rows) (*model.ChatState, error) {
	var (
		st                           model.ChatState
		subs, cursors, filters, pend string
	)
	if err := rows.Scan(&st.ChatID, &subs, &cursors, &filters, &pend); err != nil {
		return nil, fmt.Errorf("scan chat: %w", err)
	}
	if err := json.Unmarshal([]byte(subs), &st.Subscriptions); err != nil {
		return nil, fmt.Errorf("decode subscriptions: %w", err)
	}
	if err := json.Unmarshal([]byte(cursors), &st.Cursors); err != nil {
		return nil, fmt.Errorf("decode cursors: %w", err)
	}
	if err := json.Unmarshal([]byte(filters), &st.Filters); err != nil {
		return nil, fmt.Errorf("decode filters: %w", err)
	}
	if err := json.Unmarshal([]byte(pend), &st.Pending); err != nil {
		return nil, fmt.Errorf("decode pending: %w", err)
	}
	st.Normalize()
	return &st, nil
}
