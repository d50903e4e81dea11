// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package anthropic implements the llm.Provider contract for the Anthropic
// Messages API.
//
// Replies stream as named Server-Sent Events. Text arrives in the delta.text
// field of content_block_delta events and the stream ends with a
// message_stop event. Event framing is decoded with the ssestream package of
// the official SDK; payloads are decoded here so that partial or unknown
// events can be skipped.
package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/jeranaias/hopla/internal/llm"
	"github.com/jeranaias/hopla/internal/model"
)

const (
	// APIVersion is sent as the anthropic-version header.
	APIVersion = "2023-06-01"

	// DefaultMaxTokens is used when the parameters do not set max_tokens.
	DefaultMaxTokens = 1024
)

// Stream event types.
const (
	EventContentBlockDelta = "content_block_delta"
	EventMessageStop       = "message_stop"
	EventError             = "error"
)

// streamEvent is the subset of every stream event payload this package reads.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Provider talks to the Anthropic Messages API.
type Provider struct {
	llm.Base
}

var _ llm.Provider = (*Provider)(nil)

// New creates an Anthropic provider.
func New(cfg llm.ProviderConfig, transport *llm.Transport) *Provider {
	if cfg.Type == "" {
		cfg.Type = llm.ProviderAnthropic
	}
	return &Provider{Base: llm.NewBase(cfg, transport)}
}

func (p *Provider) header() http.Header {
	return llm.Header(p.Config,
		"x-api-key", p.Config.APIKey,
		"anthropic-version", APIVersion,
	)
}

// body builds a Messages request. System-role entries are lifted into the
// top-level system field, which the API requires.
func (p *Provider) body(pc llm.PurposeConfig, messages []llm.WireMessage) map[string]any {
	var system []string
	turns := make([]llm.WireMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == model.RoleSystem.Wire() {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}

	body := map[string]any{
		"model":    pc.Model,
		"messages": turns,
		"stream":   true,
	}
	if len(system) > 0 {
		body["system"] = strings.Join(system, "\n\n")
	}
	llm.MergeTopLevel(body, pc.Parameters, "stop_sequences", pc.StopSequences)
	if _, ok := body["max_tokens"]; !ok {
		body["max_tokens"] = DefaultMaxTokens
	}
	return body
}

// Chat streams the assistant reply for chat.
func (p *Provider) Chat(ctx context.Context, chat *model.Chat) (*llm.Stream, error) {
	pc, err := p.Config.Require(llm.PurposeChat)
	if err != nil {
		return nil, err
	}
	messages := llm.WireMessages(llm.ChatHistory(chat), pc.SystemPrompt, chat.Notes())
	return p.stream(ctx, llm.PurposeChat, pc, messages), nil
}

// Instruct streams the answer to a single user prompt.
func (p *Provider) Instruct(ctx context.Context, prompt string) (*llm.Stream, error) {
	pc, err := p.Config.Require(llm.PurposeQuickAction)
	if err != nil {
		return nil, err
	}
	messages := llm.WireMessages([]*model.Message{model.NewMessage(model.RoleUser, prompt)}, pc.SystemPrompt)
	return p.stream(ctx, llm.PurposeQuickAction, pc, messages), nil
}

// AutoComplete is not offered by this provider.
func (p *Provider) AutoComplete(context.Context, llm.CaretContext) ([]string, error) {
	return nil, llm.Unsupported(p.Name(), "autocompletion")
}

func (p *Provider) stream(ctx context.Context, purpose llm.Purpose, pc llm.PurposeConfig, messages []llm.WireMessage) *llm.Stream {
	body := p.body(pc, messages)
	return p.Start(ctx, purpose, func(ctx context.Context, emit llm.Emit) error {
		resp, err := p.Transport.Post(ctx, p.Name(), purpose, pc.Endpoint, body, p.header())
		if err != nil {
			return err
		}
		decoder := ssestream.NewDecoder(resp)
		defer decoder.Close()
		return process(ctx, decoder, emit)
	})
}

// process emits text deltas until message_stop or the end of the stream.
func process(ctx context.Context, decoder ssestream.Decoder, emit llm.Emit) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !decoder.Next() {
			break
		}

		raw := decoder.Event()
		if len(strings.TrimSpace(string(raw.Data))) == 0 {
			continue
		}

		var ev streamEvent
		if err := json.Unmarshal(raw.Data, &ev); err != nil {
			continue
		}
		kind := raw.Type
		if kind == "" {
			kind = ev.Type
		}

		switch kind {
		case EventContentBlockDelta:
			if ev.Delta.Text != "" {
				if err := emit(ev.Delta.Text); err != nil {
					return err
				}
			}
		case EventMessageStop:
			return nil
		case EventError:
			msg := ev.Error.Message
			if msg == "" {
				msg = ev.Error.Type
			}
			return &llm.ClientError{Type: llm.ErrTypeInvalidResponse, Message: msg}
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := decoder.Err(); err != nil {
		return &llm.ClientError{Type: llm.ErrTypeConnection, Message: "stream read failed", Cause: err}
	}
	return nil
}
