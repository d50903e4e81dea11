// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/jeranaias/hopla/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chats (
	position  INTEGER PRIMARY KEY,
	timestamp TEXT NOT NULL,
	title     TEXT,
	notes     TEXT
);

CREATE TABLE IF NOT EXISTS messages (
	chat_position INTEGER NOT NULL REFERENCES chats(position) ON DELETE CASCADE,
	seq           INTEGER NOT NULL,
	role          TEXT NOT NULL,
	content       TEXT NOT NULL,
	PRIMARY KEY (chat_position, seq)
);
`

// SQLiteStore keeps the collection in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ ChatStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Load reads every chat in storage order.
func (s *SQLiteStore) Load(ctx context.Context) (*model.ChatCollection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT position, timestamp, title, notes FROM chats ORDER BY position`)
	if err != nil {
		return nil, &ChatError{Message: "failed to read chats", Cause: err}
	}

	type stored struct {
		position     int64
		timestamp    string
		title, notes sql.NullString
	}
	var list []stored
	for rows.Next() {
		var st stored
		if err := rows.Scan(&st.position, &st.timestamp, &st.title, &st.notes); err != nil {
			rows.Close()
			return nil, &ChatError{Message: "failed to read chats", Cause: err}
		}
		list = append(list, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, &ChatError{Message: "failed to read chats", Cause: err}
	}

	chats := make([]*model.Chat, 0, len(list))
	for _, st := range list {
		messages, err := s.loadMessages(ctx, st.position)
		if err != nil {
			return nil, err
		}
		chats = append(chats, model.Restore(st.timestamp, nullable(st.title), nullable(st.notes), messages))
	}

	collection := model.NewChatCollection()
	collection.Replace(chats)
	return collection, nil
}

func (s *SQLiteStore) loadMessages(ctx context.Context, position int64) ([]*model.Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT role, content FROM messages WHERE chat_position = ? ORDER BY seq`, position)
	if err != nil {
		return nil, &ChatError{Message: "failed to read messages", Cause: err}
	}
	defer rows.Close()

	var messages []*model.Message
	for rows.Next() {
		var roleName, content string
		if err := rows.Scan(&roleName, &content); err != nil {
			return nil, &ChatError{Message: "failed to read messages", Cause: err}
		}
		role, err := model.ParseRole(roleName)
		if err != nil {
			return nil, &ChatError{Message: "invalid stored message", Cause: err}
		}
		messages = append(messages, model.NewMessage(role, content))
	}
	if err := rows.Err(); err != nil {
		return nil, &ChatError{Message: "failed to read messages", Cause: err}
	}
	return messages, nil
}

// Save replaces every stored row in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, chats *model.ChatCollection) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &ChatError{Message: "failed to save chats", Cause: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return &ChatError{Message: "failed to save chats", Cause: err}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chats`); err != nil {
		return &ChatError{Message: "failed to save chats", Cause: err}
	}

	chatStmt, err := tx.PrepareContext(ctx, `INSERT INTO chats (position, timestamp, title, notes) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return &ChatError{Message: "failed to save chats", Cause: err}
	}
	defer chatStmt.Close()

	msgStmt, err := tx.PrepareContext(ctx, `INSERT INTO messages (chat_position, seq, role, content) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return &ChatError{Message: "failed to save chats", Cause: err}
	}
	defer msgStmt.Close()

	for pos, chat := range chats.Chats() {
		timestamp, title, notes := chat.Fields()
		if _, err := chatStmt.ExecContext(ctx, pos, timestamp, title, notes); err != nil {
			return &ChatError{Message: "failed to save chat", Cause: err}
		}
		for seq, msg := range chat.Messages() {
			if _, err := msgStmt.ExecContext(ctx, pos, seq, msg.Role().String(), msg.Content()); err != nil {
				return &ChatError{Message: "failed to save message", Cause: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return &ChatError{Message: "failed to save chats", Cause: err}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
