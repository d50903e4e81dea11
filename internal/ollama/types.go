// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import "github.com/jeranaias/hopla/internal/llm"

// KeepAlive keeps the model loaded between requests.
const KeepAlive = "60m"

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Model     string            `json:"model"`
	Messages  []llm.WireMessage `json:"messages"`
	Stream    bool              `json:"stream"`
	KeepAlive string            `json:"keep_alive"`
	Options   map[string]any    `json:"options,omitempty"`
}

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Model     string         `json:"model"`
	Prompt    string         `json:"prompt"`
	System    string         `json:"system,omitempty"`
	Stream    bool           `json:"stream"`
	Raw       bool           `json:"raw,omitempty"`
	KeepAlive string         `json:"keep_alive"`
	Options   map[string]any `json:"options,omitempty"`
}

// StreamLine is one NDJSON line of a chat or generate response.
type StreamLine struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Response   string `json:"response"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ChatContent selects the text of a chat line.
func ChatContent(l *StreamLine) string {
	return l.Message.Content
}

// GenerateContent selects the text of a generate line.
func GenerateContent(l *StreamLine) string {
	return l.Response
}
