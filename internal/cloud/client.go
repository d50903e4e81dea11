// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/jeranaias/hopla/internal/llm"
	"github.com/jeranaias/hopla/internal/model"
)

// Configuration constants for OpenAI-compatible APIs.
const (
	// MaxResponseSize bounds a non-streaming response body.
	MaxResponseSize = 10 * 1024 * 1024
)

// APIError is the error object of an OpenAI error response or chunk.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code,omitempty"`
}

// CompletionResponse is a non-streaming chat completion.
type CompletionResponse struct {
	Choices []struct {
		Message llm.WireMessage `json:"message"`
		Text    string          `json:"text,omitempty"`
	} `json:"choices"`
	Error *APIError `json:"error,omitempty"`
}

// Provider talks to an OpenAI-compatible API.
type Provider struct {
	llm.Base
}

var _ llm.Provider = (*Provider)(nil)

// New creates an OpenAI-compatible provider.
func New(cfg llm.ProviderConfig, transport *llm.Transport) *Provider {
	if cfg.Type == "" {
		cfg.Type = llm.ProviderOpenAI
	}
	return &Provider{Base: llm.NewBase(cfg, transport)}
}

func (p *Provider) header() http.Header {
	bearer := ""
	if p.Config.APIKey != "" {
		bearer = "Bearer " + p.Config.APIKey
	}
	return llm.Header(p.Config, "Authorization", bearer)
}

func (p *Provider) body(pc llm.PurposeConfig, messages []llm.WireMessage, stream bool) map[string]any {
	body := map[string]any{
		"model":    pc.Model,
		"messages": messages,
		"stream":   stream,
	}
	llm.MergeTopLevel(body, pc.Parameters, "stop", pc.StopSequences)
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

func (p *Provider) stream(ctx context.Context, purpose llm.Purpose, pc llm.PurposeConfig, messages []llm.WireMessage) *llm.Stream {
	body := p.body(pc, messages, true)
	return p.Start(ctx, purpose, func(ctx context.Context, emit llm.Emit) error {
		resp, err := p.Transport.Post(ctx, p.Name(), purpose, pc.Endpoint, body, p.header())
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return processStream(ctx, resp.Body, emit)
	})
}

// AutoComplete requests a non-streaming completion and returns one or two
// candidates per choice.
func (p *Provider) AutoComplete(ctx context.Context, caret llm.CaretContext) ([]string, error) {
	pc, err := p.Config.Require(llm.PurposeCompletion)
	if err != nil {
		return nil, err
	}

	prompt := model.NewMessage(model.RoleUser, caret.Render(p.Config.CompletionPrompt))
	body := p.body(pc, llm.WireMessages([]*model.Message{prompt}, caret.Render(pc.SystemPrompt)), false)

	return p.Inflight.Complete(ctx, func(ctx context.Context) ([]string, error) {
		ctx, cancel := context.WithTimeout(ctx, p.Transport.Defaults.Timeout)
		defer cancel()

		resp, err := p.Transport.Post(ctx, p.Name(), llm.PurposeCompletion, pc.Endpoint, body, p.header())
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
		if err != nil {
			return nil, &llm.ClientError{Type: llm.ErrTypeConnection, Message: "failed to read response", Cause: err}
		}

		var result CompletionResponse
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, &llm.ClientError{Type: llm.ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
		}
		if result.Error != nil {
			return nil, &llm.ClientError{Type: llm.ErrTypeInvalidResponse, Message: result.Error.Message}
		}

		var parts []string
		for _, choice := range result.Choices {
			text := choice.Message.Content
			if text == "" {
				text = choice.Text
			}
			if text != "" {
				parts = append(parts, llm.Candidates(text)...)
			}
		}
		return parts, nil
	})
}
