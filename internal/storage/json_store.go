// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/jeranaias/hopla/internal/model"
	"github.com/jeranaias/hopla/internal/util"
)

// JSONStore keeps the collection in one JSON file.
type JSONStore struct {
	mu   sync.Mutex
	path string
}

var _ ChatStore = (*JSONStore)(nil)

// NewJSONStore creates a store backed by path. The file is created on the
// first Save.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the backing file.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads the collection. A missing file yields an empty collection.
func (s *JSONStore) Load(ctx context.Context) (*model.ChatCollection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.NewChatCollection(), nil
		}
		return nil, &ChatError{Message: "failed to read chats", Cause: err}
	}

	chats := model.NewChatCollection()
	if err := json.Unmarshal(data, chats); err != nil {
		return nil, &ChatError{Message: "failed to decode chats", Cause: err}
	}
	return chats, nil
}

// Save writes the collection atomically with 0600 permissions.
func (s *JSONStore) Save(ctx context.Context, chats *model.ChatCollection) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := util.AtomicWriteJSON(s.path, chats, 0600); err != nil {
		return &ChatError{Message: "failed to save chats", Cause: err}
	}
	return nil
}

// Close is a no-op.
func (s *JSONStore) Close() error {
	return nil
}
