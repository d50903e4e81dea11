// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/hopla/internal/llm"
	"github.com/jeranaias/hopla/internal/model"
)

func sseServer(t *testing.T, capture *map[string]any, events ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, e := range events {
			fmt.Fprintf(w, "data: %s\n\n", e)
			flusher.Flush()
		}
	}))
}

func testConfig(url string) llm.ProviderConfig {
	return llm.ProviderConfig{
		Type:        llm.ProviderOpenAI,
		APIKey:      "test-key",
		Chat:        llm.PurposeConfig{Endpoint: url + "/v1/chat/completions", Model: "gpt-4"},
		QuickAction: llm.PurposeConfig{Endpoint: url + "/v1/chat/completions", Model: "gpt-4o-mini"},
		Completion:  llm.PurposeConfig{Endpoint: url + "/v1/chat/completions", Model: "gpt-4o-mini"},
	}
}

func delta(s string) string {
	return fmt.Sprintf(`{"choices":[{"index":0,"delta":{"content":%q},"finish_reason":null}]}`, s)
}

func TestChat_ExcludesLastEmptyMessage(t *testing.T) {
	var body map[string]any
	server := sseServer(t, &body, delta("Hi"), "[DONE]")
	defer server.Close()

	p := New(testConfig(server.URL), nil)
	chat := model.NewChat(time.Now())
	chat.AddMessage(model.NewMessage(model.RoleUser, "Hello"))
	chat.AddMessage(model.NewMessage(model.RoleAssistant, ""))

	stream, err := p.Chat(context.Background(), chat)
	require.NoError(t, err)
	text, err := llm.Collect(stream)
	require.NoError(t, err)
	assert.Equal(t, "Hi", text)

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "Hello", msgs[0].(map[string]any)["content"])
	assert.Equal(t, true, body["stream"])
	assert.NotContains(t, body, "stop")
}

func TestChat_StreamsDeltasUntilDone(t *testing.T) {
	server := sseServer(t, nil,
		`{"choices":[{"index":0,"delta":{"role":"assistant"}}]}`,
		delta("Hello"),
		`{"choices":[{broken`,
		delta(" World"),
		"[DONE]",
		delta("after done"),
	)
	defer server.Close()

	p := New(testConfig(server.URL), nil)
	chat := model.NewChat(time.Now())
	chat.AddMessage(model.NewMessage(model.RoleAssistant, ""))

	stream, err := p.Chat(context.Background(), chat)
	require.NoError(t, err)

	var chunks []string
	done := 0
	llm.Drive(stream, llm.CallbackFuncs{
		Data:  func(c string) { chunks = append(chunks, c) },
		Done:  func() { done++ },
		Error: func(m string) { t.Errorf("unexpected error: %s", m) },
	})

	assert.Equal(t, []string{"Hello", " World"}, chunks)
	assert.Equal(t, 1, done)
}

func TestInstruct_MergesParametersAndStops(t *testing.T) {
	var body map[string]any
	server := sseServer(t, &body, delta("ok"), "[DONE]")
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.QuickAction.SystemPrompt = "be brief"
	cfg.QuickAction.Parameters = map[string]any{"temperature": 0.3}
	cfg.QuickAction.StopSequences = []string{"END"}
	p := New(cfg, nil)

	stream, err := p.Instruct(context.Background(), "Explain this request")
	require.NoError(t, err)
	_, err = llm.Collect(stream)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.Equal(t, 0.3, body["temperature"])
	assert.Equal(t, []any{"END"}, body["stop"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "Explain this request", msgs[1].(map[string]any)["content"])
}

func TestChat_ErrorChunk(t *testing.T) {
	server := sseServer(t, nil, delta("part"), `{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`)
	defer server.Close()

	p := New(testConfig(server.URL), nil)
	chat := model.NewChat(time.Now())
	chat.AddMessage(model.NewMessage(model.RoleAssistant, ""))

	stream, err := p.Chat(context.Background(), chat)
	require.NoError(t, err)
	text, err := llm.Collect(stream)
	assert.Equal(t, "part", text)
	assert.EqualError(t, err, "quota exceeded")
}

func TestChat_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
	}))
	defer server.Close()

	p := New(testConfig(server.URL), nil)
	stream, err := p.Instruct(context.Background(), "hi")
	require.NoError(t, err)

	_, err = llm.Collect(stream)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, llm.StatusCode(err))
	assert.Contains(t, err.Error(), "bad key")
}

func TestAutoComplete_NonStreaming(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"keep-alive"}},{"text":"close now"}]}`)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.APIKey = ""
	cfg.CompletionPrompt = "Continue: @prefix@"
	p := New(cfg, nil)

	parts, err := p.AutoComplete(context.Background(), llm.CaretContext{Request: "Connection: ", Caret: 12})
	require.NoError(t, err)
	assert.Equal(t, []string{"keep-alive", "close", "close now"}, parts)
	assert.Equal(t, false, body["stream"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Continue: Connection: ", msgs[0].(map[string]any)["content"])
}

func TestSSEReader(t *testing.T) {
	input := ": comment\nevent: ping\ndata: {\"a\":1}\n\ndata: line1\ndata: line2\n\ndata: tail"
	r := NewSSEReader(strings.NewReader(input))

	typ, data, err := r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "ping", typ)
	assert.Equal(t, `{"a":1}`, string(data))

	typ, data, err = r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "", typ)
	assert.Equal(t, "line1\nline2", string(data))

	_, data, err = r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "tail", string(data))

	_, _, err = r.ReadEvent()
	assert.Error(t, err)
}
