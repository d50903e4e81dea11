// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/hopla/internal/model"
)

func sampleChat() *model.Chat {
	chat := model.NewChat(time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC))
	chat.SetTitle("Login form: SQL injection?")
	chat.SetNotes("scope: staging only")
	chat.AddMessage(model.NewMessage(model.RoleUser, "Is the login form injectable?"))
	chat.AddMessage(model.NewMessage(model.RoleAssistant, "The `user` parameter is concatenated into the query."))
	return chat
}

func TestMarkdownExport(t *testing.T) {
	e := &MarkdownExporter{Now: func() time.Time { return time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC) }}
	data, err := e.Export(sampleChat())
	require.NoError(t, err)

	md := string(data)
	assert.True(t, strings.HasPrefix(md, "---\n"))
	assert.Contains(t, md, "Login form: SQL injection?")
	assert.Contains(t, md, "2024/05/01 09:30")
	assert.Contains(t, md, "messages: 2")
	assert.Contains(t, md, "2024-05-02T08:00:00Z")
	assert.Contains(t, md, "# Login form: SQL injection?")
	assert.Contains(t, md, "## Notes\n\nscope: staging only")
	assert.Contains(t, md, "### [User]\n\nIs the login form injectable?")
	assert.Contains(t, md, "### [Assistant]")
	assert.Equal(t, ".md", e.FileExtension())
}

func TestMarkdownExportWithoutNow(t *testing.T) {
	data, err := (&MarkdownExporter{}).Export(sampleChat())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "exported:")
}

func TestJSONExportMatchesStorageForm(t *testing.T) {
	chat := sampleChat()
	data, err := JSONExporter{}.Export(chat)
	require.NoError(t, err)

	var back model.Chat
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, chat.Title(), back.Title())
	assert.Equal(t, chat.Notes(), back.Notes())
	require.Equal(t, 2, back.Len())
	assert.Equal(t, model.RoleAssistant, back.LastMessage().Role())
}

func TestExportNilChat(t *testing.T) {
	_, err := (&MarkdownExporter{}).Export(nil)
	assert.ErrorIs(t, err, ErrNilChat)
	_, err = JSONExporter{}.Export(nil)
	assert.ErrorIs(t, err, ErrNilChat)
}

func TestForFormat(t *testing.T) {
	for _, name := range []string{"markdown", "md", ".md", "MD"} {
		e, err := ForFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, ".md", e.FileExtension())
	}
	e, err := ForFormat("json")
	require.NoError(t, err)
	assert.Equal(t, ".json", e.FileExtension())

	_, err = ForFormat("html")
	assert.Error(t, err)
}

func TestToFile(t *testing.T) {
	dir := t.TempDir()

	path, err := ToFile(sampleChat(), JSONExporter{}, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "chat_Login_form-_SQL_injection-.json"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	explicit := filepath.Join(dir, "out", "chat.md")
	path, err = ToFile(sampleChat(), &MarkdownExporter{}, explicit)
	require.NoError(t, err)
	assert.Equal(t, explicit, path)
	assert.FileExists(t, explicit)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "chat"},
		{"2024/05/01 09:30", "2024-05-01_09-30"},
		{"a\x01b", "a-b"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in))
	}
}
