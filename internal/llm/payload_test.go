// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/hopla/internal/model"
)

func TestChatHistoryExcludesPlaceholder(t *testing.T) {
	chat := model.NewChat(time.Now())
	assert.Empty(t, ChatHistory(chat))

	chat.AddMessage(model.NewMessage(model.RoleUser, "Hello"))
	chat.AddMessage(model.NewMessage(model.RoleAssistant, ""))

	history := ChatHistory(chat)
	require.Len(t, history, 1)
	assert.Equal(t, "Hello", history[0].Content())
}

func TestWireMessages_PreambleOrder(t *testing.T) {
	chat := model.NewChat(time.Now())
	chat.AddMessage(model.NewMessage(model.RoleUser, "q"))
	chat.AddMessage(model.NewMessage(model.RoleAssistant, ""))

	msgs := WireMessages(ChatHistory(chat), "be terse", "  ", "target is staging")
	require.Len(t, msgs, 3)
	assert.Equal(t, WireMessage{Role: "system", Content: "be terse"}, msgs[0])
	assert.Equal(t, WireMessage{Role: "system", Content: "target is staging"}, msgs[1])
	assert.Equal(t, WireMessage{Role: "user", Content: "q"}, msgs[2])
}

func TestOptions(t *testing.T) {
	assert.Nil(t, Options(nil, "stop", nil))

	opts := Options(map[string]any{"temperature": 0.2}, "stop", nil)
	assert.Equal(t, map[string]any{"temperature": 0.2}, opts)

	opts = Options(nil, "stop", []string{"\n\n"})
	assert.Equal(t, map[string]any{"stop": []string{"\n\n"}}, opts)

	params := map[string]any{"num_ctx": 4096}
	opts = Options(params, "stop", []string{"END"})
	assert.Len(t, opts, 2)
	assert.NotContains(t, params, "stop")
}

func TestMergeTopLevel_KeepsExistingKeys(t *testing.T) {
	body := map[string]any{"model": "m", "stream": true}
	MergeTopLevel(body, map[string]any{"model": "other", "top_p": 0.9}, "stop_sequences", []string{"x"})

	assert.Equal(t, "m", body["model"])
	assert.Equal(t, 0.9, body["top_p"])
	assert.Equal(t, []string{"x"}, body["stop_sequences"])
}

func TestRequire(t *testing.T) {
	cfg := ProviderConfig{Type: ProviderOllama, Chat: PurposeConfig{Model: "llama3"}}

	_, err := cfg.Require(PurposeChat)
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
	assert.ErrorIs(t, err, ErrMissingEndpoint)
	assert.Equal(t, "OLLAMA chat endpoint undefined", err.Error())

	_, err = cfg.Require(PurposeQuickAction)
	assert.ErrorIs(t, err, ErrMissingModel)

	cfg.Chat.Endpoint = "http://localhost:11434/api/chat"
	pc, err := cfg.Require(PurposeChat)
	require.NoError(t, err)
	assert.Equal(t, "llama3", pc.Model)
}

func TestStatusError(t *testing.T) {
	err := &StatusError{Code: 500, Body: "oops"}
	assert.Equal(t, "AI API error : 500\noops", err.Error())

	err = &StatusError{Code: 405, Body: ""}
	assert.True(t, strings.HasSuffix(err.Error(), MethodNotAllowedHint))
}

func TestHeader(t *testing.T) {
	cfg := ProviderConfig{Headers: map[string]string{"X-Team": "red", "x-api-key": "override-me"}}
	h := Header(cfg, "x-api-key", "secret", "Authorization", "")

	assert.Equal(t, "red", h.Get("X-Team"))
	assert.Equal(t, "secret", h.Get("x-api-key"))
	assert.Empty(t, h.Get("Authorization"))
}

func TestParseProviderType(t *testing.T) {
	pt, err := ParseProviderType(" anthropic ")
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, pt)

	_, err = ParseProviderType("GEMINI")
	assert.Error(t, err)
}

func TestCaretContext(t *testing.T) {
	c := CaretContext{Request: "GET /a HTTP/1.1\nHost: exa", Caret: 25}

	assert.Equal(t, "Host: exa", c.Line())
	assert.Equal(t, "", c.Suffix())
	assert.Equal(t, "line=Host: exa", c.Render("line=@line@"))

	c.Caret = 99
	assert.Equal(t, c.Request, c.Prefix())
	c.Caret = -1
	assert.Equal(t, "", c.Prefix())
}

func TestCandidates(t *testing.T) {
	assert.Equal(t, []string{"json"}, Candidates("json"))
	assert.Equal(t, []string{"a", "a b"}, Candidates("a b"))
	assert.Equal(t, []string{" lead"}, Candidates(" lead"))
}
