// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/hopla/internal/llm"
	"github.com/jeranaias/hopla/internal/llm/llmtest"
	"github.com/jeranaias/hopla/internal/session"
	"github.com/jeranaias/hopla/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testResolver struct {
	chat   llm.Provider
	byName map[string]llm.Provider
}

func (r *testResolver) ChatProvider() (llm.Provider, error) {
	if r.chat == nil {
		return nil, llm.ErrNoProvider
	}
	return r.chat, nil
}

func (r *testResolver) Provider(name string) (llm.Provider, error) {
	if p, ok := r.byName[name]; ok {
		return p, nil
	}
	return nil, llm.ErrNoProvider
}

type testProviders struct{}

func (testProviders) EnabledProviders() []llm.ProviderType {
	return []llm.ProviderType{llm.ProviderOllama, llm.ProviderOpenAI}
}

func (testProviders) ProviderName(llm.Purpose) string { return "Ollama" }

type scriptedReader struct {
	lines []string
}

func (s *scriptedReader) ReadInput(string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func newREPL(t *testing.T, resolver *testResolver) (*ChatREPL, *session.Controller, *bytes.Buffer) {
	t.Helper()
	store := storage.NewJSONStore(filepath.Join(t.TempDir(), "chats.json"))
	ctrl := session.New(session.Options{
		Store:    store,
		Resolver: resolver,
		Now:      func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) },
	})
	require.NoError(t, ctrl.Load(context.Background()))

	out := &bytes.Buffer{}
	repl := NewChatREPL(ChatOptions{
		Controller: ctrl,
		Providers:  testProviders{},
		Out:        out,
		Width:      60,
	})
	return repl, ctrl, out
}

// =============================================================================
// RENDERING
// =============================================================================

func TestChatTable(t *testing.T) {
	table := ChatTable([]string{"Newest chat", "2024/05/01 09:30"}, 0, 60)
	lines := strings.Split(strings.TrimRight(table, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "> ")
	assert.Contains(t, lines[0], "1")
	assert.Contains(t, lines[0], "Newest chat")
	assert.Contains(t, lines[1], "2024/05/01 09:30")
	assert.NotContains(t, lines[1], ">")
}

func TestChatTableTruncatesLongLabels(t *testing.T) {
	long := strings.Repeat("x", 200)
	table := ChatTable([]string{long}, -1, 40)
	assert.Contains(t, table, "...")
	assert.NotContains(t, table, long)
}

func TestChatTableEmpty(t *testing.T) {
	assert.Contains(t, ChatTable(nil, 0, 80), "No chats.")
}

func TestParseChatNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"1", 0, false},
		{" 3 ", 2, false},
		{"0", 0, true},
		{"-2", 0, true},
		{"3abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChatNumber(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintStream(t *testing.T) {
	fake := llmtest.New("Ollama", "Hello", " ", "world")
	stream, err := fake.Instruct(context.Background(), "say hello")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, PrintStream(&out, stream))
	assert.Equal(t, "Hello world", out.String())
}

func TestPrintStreamReturnsStreamError(t *testing.T) {
	fake := llmtest.New("Ollama", "partial")
	fake.Err = errors.New("connection reset")
	stream, err := fake.Instruct(context.Background(), "x")
	require.NoError(t, err)

	var out bytes.Buffer
	err = PrintStream(&out, stream)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, "partial", out.String())
}

// =============================================================================
// REPL
// =============================================================================

func TestREPLStreamsReply(t *testing.T) {
	fake := llmtest.New("Ollama", "Hi", " there")
	repl, ctrl, out := newREPL(t, &testResolver{chat: fake})

	more, err := repl.Execute(context.Background(), "hello bot")
	require.NoError(t, err)
	assert.True(t, more)

	assert.Contains(t, out.String(), "Hi there")
	assert.Contains(t, out.String(), "Title: hello bot")
	assert.Equal(t, "Hi there", ctrl.Current().LastMessage().Content())
	assert.Empty(t, ctrl.Status())
}

func TestREPLCancelKeepsPartialReply(t *testing.T) {
	fake := llmtest.New("Ollama", "partial")
	fake.Block = true
	repl, ctrl, out := newREPL(t, &testResolver{chat: fake})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := repl.Execute(ctx, "long question")
	require.NoError(t, err)

	assert.Contains(t, out.String(), "partial")
	assert.Contains(t, out.String(), "[Cancelled]")
	assert.Equal(t, session.StatusCancelled, ctrl.Status())
	assert.False(t, ctrl.Current().HasTitle())
}

func TestREPLReportsMissingProvider(t *testing.T) {
	repl, ctrl, _ := newREPL(t, &testResolver{})

	_, err := repl.Execute(context.Background(), "anyone there?")
	require.ErrorIs(t, err, llm.ErrNoProvider)
	assert.Equal(t, "no provider available", ctrl.Status())
}

func TestREPLSlashCommands(t *testing.T) {
	fake := llmtest.New("Ollama", "ok")
	repl, ctrl, out := newREPL(t, &testResolver{chat: fake})
	ctx := context.Background()

	_, err := repl.Execute(ctx, "first chat")
	require.NoError(t, err)

	_, err = repl.Execute(ctx, "/new")
	require.NoError(t, err)
	assert.Len(t, ctrl.ChatList(), 2)

	out.Reset()
	_, err = repl.Execute(ctx, "/list")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "first chat")

	out.Reset()
	_, err = repl.Execute(ctx, "/open 2")
	require.NoError(t, err)
	assert.Equal(t, 1, ctrl.Selected())
	assert.Contains(t, out.String(), "ASSISTANT")

	_, err = repl.Execute(ctx, "/notes target is example.com")
	require.NoError(t, err)
	assert.Equal(t, "target is example.com", ctrl.Current().Notes())

	out.Reset()
	_, err = repl.Execute(ctx, "/notes")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "target is example.com")

	_, err = repl.Execute(ctx, "/delete 1")
	require.NoError(t, err)
	assert.Len(t, ctrl.ChatList(), 1)

	_, err = repl.Execute(ctx, "/open 9")
	assert.Error(t, err)

	_, err = repl.Execute(ctx, "/bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")

	more, err := repl.Execute(ctx, "/quit")
	require.NoError(t, err)
	assert.False(t, more)
}

func TestREPLProviderPin(t *testing.T) {
	local := llmtest.New("Ollama", "local")
	remote := llmtest.New("OpenAI", "remote")
	resolver := &testResolver{chat: local, byName: map[string]llm.Provider{"OPENAI": remote}}
	repl, ctrl, out := newREPL(t, resolver)
	ctx := context.Background()

	_, err := repl.Execute(ctx, "/provider openai")
	require.NoError(t, err)
	_, err = repl.Execute(ctx, "question")
	require.NoError(t, err)
	assert.Equal(t, "remote", ctrl.Current().LastMessage().Content())

	_, err = repl.Execute(ctx, "/provider default")
	require.NoError(t, err)
	_, err = repl.Execute(ctx, "again")
	require.NoError(t, err)
	assert.Equal(t, "local", ctrl.Current().LastMessage().Content())

	out.Reset()
	_, err = repl.Execute(ctx, "/provider")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "OPENAI")

	_, err = repl.Execute(ctx, "/provider nope")
	assert.Error(t, err)
}

func TestREPLExpandsRequestPlaceholder(t *testing.T) {
	fake := llmtest.New("Ollama", "looks fine")
	repl, _, _ := newREPL(t, &testResolver{chat: fake})
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "req.txt")
	require.NoError(t, os.WriteFile(path, []byte("GET /admin HTTP/1.1"), 0600))

	_, err := repl.Execute(ctx, "/request "+path)
	require.NoError(t, err)
	_, err = repl.Execute(ctx, "review @request@")
	require.NoError(t, err)

	require.Len(t, fake.Chats, 1)
	history := fake.Chats[0]
	assert.Equal(t, "review GET /admin HTTP/1.1", history[len(history)-1].Content)

	_, err = repl.Execute(ctx, "/response")
	assert.Error(t, err)
}

func TestREPLRunStopsAtEOF(t *testing.T) {
	fake := llmtest.New("Ollama", "pong")
	repl, ctrl, out := newREPL(t, &testResolver{chat: fake})

	err := repl.Run(context.Background(), &scriptedReader{lines: []string{"", "ping", "/help"}})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "hopla chat")
	assert.Contains(t, out.String(), "pong")
	assert.Contains(t, out.String(), "Available Commands")
	assert.Equal(t, 2, ctrl.Current().Len())
}

func TestREPLRunStopsAtQuit(t *testing.T) {
	fake := llmtest.New("Ollama", "pong")
	repl, _, _ := newREPL(t, &testResolver{chat: fake})

	reader := &scriptedReader{lines: []string{"/quit", "ping"}}
	require.NoError(t, repl.Run(context.Background(), reader))
	assert.Len(t, reader.lines, 1)
	assert.Empty(t, fake.Chats)
}

func TestTTYRequiredError(t *testing.T) {
	err := &TTYRequiredError{Command: "chat"}
	assert.Equal(t, "chat requires an interactive terminal", err.Error())
}

func TestScannerReader(t *testing.T) {
	r := NewScannerReader(strings.NewReader("one\ntwo\n"))

	line, err := r.ReadInput("> ")
	require.NoError(t, err)
	assert.Equal(t, "one", line)

	line, err = r.ReadInput("> ")
	require.NoError(t, err)
	assert.Equal(t, "two", line)

	_, err = r.ReadInput("> ")
	assert.ErrorIs(t, err, io.EOF)
}
