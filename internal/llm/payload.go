// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"strings"

	"github.com/jeranaias/hopla/internal/model"
)

// WireMessage is the role/content pair every provider accepts.
type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatHistory returns the messages sent for a chat turn: all but the last,
// which is the placeholder being streamed into.
func ChatHistory(chat *model.Chat) []*model.Message {
	msgs := chat.Messages()
	if len(msgs) == 0 {
		return msgs
	}
	return msgs[:len(msgs)-1]
}

// WireMessages converts history, preceded by the non-blank preamble entries
// as system messages.
func WireMessages(history []*model.Message, preamble ...string) []WireMessage {
	out := make([]WireMessage, 0, len(history)+len(preamble))
	for _, p := range preamble {
		if strings.TrimSpace(p) != "" {
			out = append(out, WireMessage{Role: model.RoleSystem.Wire(), Content: p})
		}
	}
	for _, m := range history {
		out = append(out, WireMessage{Role: m.Role().Wire(), Content: m.Content()})
	}
	return out
}

// Options copies params and adds a non-empty stop list under stopKey. It
// returns nil when there is nothing to send.
func Options(params map[string]any, stopKey string, stops []string) map[string]any {
	if len(params) == 0 && len(stops) == 0 {
		return nil
	}
	out := make(map[string]any, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	if len(stops) > 0 {
		out[stopKey] = append([]string(nil), stops...)
	}
	return out
}

// MergeTopLevel writes params and stops into body without overwriting keys
// body already defines.
func MergeTopLevel(body map[string]any, params map[string]any, stopKey string, stops []string) {
	for k, v := range Options(params, stopKey, stops) {
		if _, exists := body[k]; !exists {
			body[k] = v
		}
	}
}
