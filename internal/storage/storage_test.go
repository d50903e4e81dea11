// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/hopla/internal/model"
)

func sampleCollection() *model.ChatCollection {
	cc := model.NewChatCollection()

	first := cc.NewChat(time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC))
	first.SetTitle("Login flow review")
	first.SetNotes("target: staging")
	first.AddMessage(model.NewMessage(model.RoleUser, "Explain this request"))
	first.AddMessage(model.NewMessage(model.RoleAssistant, "It posts credentials."))

	second := cc.NewChat(time.Date(2024, 5, 2, 14, 5, 0, 0, time.UTC))
	second.AddMessage(model.NewMessage(model.RoleUser, "hi"))
	return cc
}

func assertSameCollection(t *testing.T, want, got *model.ChatCollection) {
	t.Helper()
	require.Equal(t, want.Len(), got.Len())
	for i, w := range want.Chats() {
		g, err := got.Get(i)
		require.NoError(t, err)
		assert.Equal(t, w.Timestamp(), g.Timestamp())
		assert.Equal(t, w.HasTitle(), g.HasTitle())
		assert.Equal(t, w.Title(), g.Title())
		assert.Equal(t, w.Notes(), g.Notes())
		require.Equal(t, w.Len(), g.Len())
		wm, gm := w.Messages(), g.Messages()
		for j := range wm {
			assert.Equal(t, wm[j].Role(), gm[j].Role())
			assert.Equal(t, wm[j].Content(), gm[j].Content())
		}
	}
}

func backends(t *testing.T) map[string]ChatStore {
	dir := t.TempDir()
	sqlite, err := NewSQLiteStore(filepath.Join(dir, "chats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]ChatStore{
		BackendJSON:   NewJSONStore(filepath.Join(dir, "nested", "chats.json")),
		BackendSQLite: sqlite,
	}
}

func TestStoreEmptyLoad(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			chats, err := store.Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 0, chats.Len())
		})
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := sampleCollection()
			require.NoError(t, store.Save(context.Background(), want))

			got, err := store.Load(context.Background())
			require.NoError(t, err)
			assertSameCollection(t, want, got)
		})
	}
}

func TestStoreSaveReplaces(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cc := sampleCollection()
			require.NoError(t, store.Save(ctx, cc))

			require.NoError(t, cc.Delete(0))
			require.NoError(t, store.Save(ctx, cc))

			got, err := store.Load(ctx)
			require.NoError(t, err)
			require.Equal(t, 1, got.Len())
			assert.False(t, got.Last().HasTitle())
			assert.Equal(t, "hi", got.Last().LastMessage().Content())
		})
	}
}

func TestStoreCancelledContext(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			assert.Error(t, store.Save(ctx, sampleCollection()))
		})
	}
}

func TestJSONStoreFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chats.json")
	store := NewJSONStore(path)
	require.NoError(t, store.Save(context.Background(), sampleCollection()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw struct {
		Chats []struct {
			Timestamp string  `json:"timestamp"`
			Title     *string `json:"title"`
			Messages  []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		} `json:"chats"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw.Chats, 2)
	assert.Equal(t, "2024/05/01 09:30", raw.Chats[0].Timestamp)
	require.NotNil(t, raw.Chats[0].Title)
	assert.Equal(t, "USER", raw.Chats[0].Messages[0].Role)
}

func TestJSONStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chats.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewJSONStore(path).Load(context.Background())
	require.Error(t, err)
	var chatErr *ChatError
	assert.True(t, errors.As(err, &chatErr))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open("", DefaultPath(dir, BackendJSON))
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, s)

	s, err = Open("SQLite", DefaultPath(dir, BackendSQLite))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open("redis", filepath.Join(dir, "x"))
	assert.Error(t, err)
}

func TestFind(t *testing.T) {
	cc := sampleCollection()

	newest, err := Find(cc, 0)
	require.NoError(t, err)
	assert.Equal(t, "2024/05/02 14:05", newest.Timestamp())

	_, err = Find(cc, 2)
	assert.ErrorIs(t, err, ErrChatNotFound)
}
