// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/hopla/internal/llm"
	"github.com/jeranaias/hopla/internal/model"
)

const helloWorldStream = `event: message_start
data: {"type": "message_start", "message": {"id": "msg_1", "type": "message", "role": "assistant", "content": [], "usage": {"input_tokens": 10, "output_tokens": 1}}}

event: content_block_start
data: {"type": "content_block_start", "index": 0, "content_block": {"type": "text", "text": ""}}

event: ping
data: {"type": "ping"}

event: content_block_delta
data: {"type": "content_block_delta", "index": 0, "delta": {"type": "text_delta", "text": "Hello"}}

event: content_block_delta
data: {"type": "content_block_delta", "index": 0, "delta": {"type": "text_delta", "text": " World"}}

event: content_block_stop
data: {"type": "content_block_stop", "index": 0}

event: message_delta
data: {"type": "message_delta", "delta": {"stop_reason": "end_turn", "stop_sequence": null}, "usage": {"output_tokens": 3}}

event: message_stop
data: {"type": "message_stop"}

`

type captured struct {
	header http.Header
	body   map[string]any
}

func server(t *testing.T, stream string, c *captured) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c != nil {
			c.header = r.Header.Clone()
			require.NoError(t, json.NewDecoder(r.Body).Decode(&c.body))
		}
		w.Header().Set("content-type", "text/event-stream")
		fmt.Fprint(w, stream)
	}))
}

func config(url string) llm.ProviderConfig {
	return llm.ProviderConfig{
		Type:        llm.ProviderAnthropic,
		APIKey:      "test-key",
		QuickAction: llm.PurposeConfig{Endpoint: url + "/v1/messages", Model: "claude-3-5-sonnet-20241022"},
		Chat:        llm.PurposeConfig{Endpoint: url + "/v1/messages", Model: "claude-3-5-sonnet-20241022"},
	}
}

func TestInstruct_StreamsHelloWorld(t *testing.T) {
	var c captured
	srv := server(t, helloWorldStream, &c)
	defer srv.Close()

	p := New(config(srv.URL), nil)
	stream, err := p.Instruct(context.Background(), "Hi")
	require.NoError(t, err)

	var text string
	done, errs := 0, 0
	llm.Drive(stream, llm.CallbackFuncs{
		Data:  func(chunk string) { text += chunk },
		Done:  func() { done++ },
		Error: func(string) { errs++ },
	})

	assert.Equal(t, "Hello World", text)
	assert.Equal(t, 1, done)
	assert.Equal(t, 0, errs)

	assert.Equal(t, "test-key", c.header.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", c.header.Get("anthropic-version"))
	assert.Equal(t, "claude-3-5-sonnet-20241022", c.body["model"])
	assert.Equal(t, float64(DefaultMaxTokens), c.body["max_tokens"])
	msgs := c.body["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hi", msgs[0].(map[string]any)["content"])
	assert.NotContains(t, c.body, "system")
}

func TestChat_SystemAndNotesLifted(t *testing.T) {
	var c captured
	srv := server(t, helloWorldStream, &c)
	defer srv.Close()

	cfg := config(srv.URL)
	cfg.Chat.SystemPrompt = "You review HTTP traffic."
	cfg.Chat.Parameters = map[string]any{"max_tokens": 256, "temperature": 0}
	cfg.Chat.StopSequences = []string{"</answer>"}
	p := New(cfg, nil)

	chat := model.NewChat(time.Now())
	chat.SetNotes("Host is in scope")
	chat.AddMessage(model.NewMessage(model.RoleUser, "Is this exploitable?"))
	chat.AddMessage(model.NewMessage(model.RoleAssistant, ""))

	stream, err := p.Chat(context.Background(), chat)
	require.NoError(t, err)
	_, err = llm.Collect(stream)
	require.NoError(t, err)

	assert.Equal(t, "You review HTTP traffic.\n\nHost is in scope", c.body["system"])
	assert.Equal(t, float64(256), c.body["max_tokens"])
	assert.Equal(t, []any{"</answer>"}, c.body["stop_sequences"])
	msgs := c.body["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
}

func TestStream_ErrorEvent(t *testing.T) {
	stream := "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"partial\"}}\n\n" +
		"event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n"
	srv := server(t, stream, nil)
	defer srv.Close()

	p := New(config(srv.URL), nil)
	s, err := p.Instruct(context.Background(), "Hi")
	require.NoError(t, err)

	text, err := llm.Collect(s)
	assert.Equal(t, "partial", text)
	assert.EqualError(t, err, "Overloaded")
}

func TestStream_MalformedEventsSkipped(t *testing.T) {
	stream := "event: content_block_delta\ndata: {not json\n\n" +
		"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"text\":\"ok\"}}\n\n" +
		"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n" +
		"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"text\":\"ignored\"}}\n\n"
	srv := server(t, stream, nil)
	defer srv.Close()

	p := New(config(srv.URL), nil)
	s, err := p.Instruct(context.Background(), "Hi")
	require.NoError(t, err)

	text, err := llm.Collect(s)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestAutoComplete_Unsupported(t *testing.T) {
	p := New(config("http://unused"), nil)
	_, err := p.AutoComplete(context.Background(), llm.CaretContext{})
	assert.ErrorIs(t, err, llm.ErrUnsupported)
}

func TestInstruct_MissingEndpoint(t *testing.T) {
	p := New(llm.ProviderConfig{QuickAction: llm.PurposeConfig{Model: "claude"}}, nil)
	_, err := p.Instruct(context.Background(), "Hi")
	assert.True(t, llm.IsPrecondition(err))
}
