// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jeranaias/hopla/internal/model"
)

// ChatStore loads and saves the whole chat collection.
type ChatStore interface {
	// Load returns the stored collection, or an empty one when nothing has
	// been saved yet.
	Load(ctx context.Context) (*model.ChatCollection, error)

	// Save replaces the stored collection.
	Save(ctx context.Context, chats *model.ChatCollection) error

	// Close releases resources.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// DefaultPath returns the store file for backend under dir.
func DefaultPath(dir, backend string) string {
	if backend == BackendSQLite {
		return filepath.Join(dir, "chats.db")
	}
	return filepath.Join(dir, "chats.json")
}

// Open creates the store for backend at path.
func Open(backend, path string) (ChatStore, error) {
	switch strings.ToLower(backend) {
	case "", BackendJSON:
		return NewJSONStore(path), nil
	case BackendSQLite:
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrChatNotFound is returned when a chat index is out of range.
// Use errors.Is(err, ErrChatNotFound) to check for this error.
var ErrChatNotFound = &ChatError{Message: "chat not found"}

// ChatError represents a storage error.
type ChatError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ChatError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *ChatError) Unwrap() error {
	return e.Cause
}

// Is matches ChatErrors by message.
func (e *ChatError) Is(target error) bool {
	t, ok := target.(*ChatError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// Find returns the chat at a display index, newest first.
func Find(chats *model.ChatCollection, displayIndex int) (*model.Chat, error) {
	i, err := chats.DisplayToStorage(displayIndex)
	if err != nil {
		return nil, &ChatError{Message: ErrChatNotFound.Message, Cause: err}
	}
	return chats.Get(i)
}
