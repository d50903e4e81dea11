// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"

	"github.com/jeranaias/hopla/internal/llm"
	"github.com/jeranaias/hopla/internal/model"
)

// Provider talks to an Ollama server.
//
// The Provider is safe for concurrent use.
type Provider struct {
	llm.Base
}

var _ llm.Provider = (*Provider)(nil)

// New creates an Ollama provider. A nil transport uses the shared client.
func New(cfg llm.ProviderConfig, transport *llm.Transport) *Provider {
	if cfg.Type == "" {
		cfg.Type = llm.ProviderOllama
	}
	return &Provider{Base: llm.NewBase(cfg, transport)}
}

// =============================================================================
// INSTRUCT
// =============================================================================

// Instruct streams the answer to prompt from the generate endpoint.
func (p *Provider) Instruct(ctx context.Context, prompt string) (*llm.Stream, error) {
	pc, err := p.Config.Require(llm.PurposeQuickAction)
	if err != nil {
		return nil, err
	}

	req := GenerateRequest{
		Model:     pc.Model,
		Prompt:    prompt,
		System:    pc.SystemPrompt,
		Stream:    true,
		KeepAlive: KeepAlive,
		Options:   llm.Options(pc.Parameters, "stop", pc.StopSequences),
	}
	return p.stream(ctx, llm.PurposeQuickAction, pc.Endpoint, req, GenerateContent), nil
}

// =============================================================================
// CHAT
// =============================================================================

// Chat streams the assistant reply for chat.
func (p *Provider) Chat(ctx context.Context, chat *model.Chat) (*llm.Stream, error) {
	pc, err := p.Config.Require(llm.PurposeChat)
	if err != nil {
		return nil, err
	}

	req := ChatRequest{
		Model:     pc.Model,
		Messages:  llm.WireMessages(llm.ChatHistory(chat), pc.SystemPrompt, chat.Notes()),
		Stream:    true,
		KeepAlive: KeepAlive,
		Options:   llm.Options(pc.Parameters, "stop", pc.StopSequences),
	}
	return p.stream(ctx, llm.PurposeChat, pc.Endpoint, req, ChatContent), nil
}

func (p *Provider) stream(ctx context.Context, purpose llm.Purpose, endpoint string, body any, content func(*StreamLine) string) *llm.Stream {
	return p.Start(ctx, purpose, func(ctx context.Context, emit llm.Emit) error {
		resp, err := p.Transport.Post(ctx, p.Name(), purpose, endpoint, body, llm.Header(p.Config))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return NewStreamReader(resp.Body).Process(ctx, content, emit)
	})
}

// =============================================================================
// AUTOCOMPLETE
// =============================================================================

// AutoComplete asks the completion model to continue the text at the caret.
// Every response part is a candidate; a part containing a space is preceded
// by its first word.
func (p *Provider) AutoComplete(ctx context.Context, caret llm.CaretContext) ([]string, error) {
	pc, err := p.Config.Require(llm.PurposeCompletion)
	if err != nil {
		return nil, err
	}

	req := GenerateRequest{
		Model:     pc.Model,
		Prompt:    caret.Render(p.Config.CompletionPrompt),
		System:    caret.Render(pc.SystemPrompt),
		Stream:    false,
		Raw:       true,
		KeepAlive: KeepAlive,
		Options:   llm.Options(pc.Parameters, "stop", pc.StopSequences),
	}

	return p.Inflight.Complete(ctx, func(ctx context.Context) ([]string, error) {
		ctx, cancel := context.WithTimeout(ctx, p.Transport.Defaults.Timeout)
		defer cancel()

		resp, err := p.Transport.Post(ctx, p.Name(), llm.PurposeCompletion, pc.Endpoint, req, llm.Header(p.Config))
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		var parts []string
		err = NewStreamReader(resp.Body).Process(ctx, GenerateContent, func(part string) error {
			parts = append(parts, llm.Candidates(part)...)
			return nil
		})
		if err != nil {
			return nil, err
		}

		p.Transport.Logger.Debug("ai suggestion", "provider", p.Name(), "candidates", len(parts))
		return parts, nil
	})
}
