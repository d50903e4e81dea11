// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"

	"github.com/jeranaias/hopla/internal/model"
)

// Provider is the capability contract implemented by every adapter.
type Provider interface {
	// Name returns the provider display name.
	Name() string

	// Type returns the provider variant.
	Type() ProviderType

	// Instruct streams the answer to a one-shot prompt using the quick
	// action settings.
	Instruct(ctx context.Context, prompt string) (*Stream, error)

	// AutoComplete returns completion candidates for the caret context. A
	// new call cancels the outstanding one.
	AutoComplete(ctx context.Context, caret CaretContext) ([]string, error)

	// Chat streams the reply to chat. The last message of chat is the
	// placeholder being answered and is not sent.
	Chat(ctx context.Context, chat *model.Chat) (*Stream, error)

	// CancelCurrentChatRequest cancels the latest chat stream, if any.
	CancelCurrentChatRequest()
}

// Base carries what every adapter shares: its configuration, the HTTP
// transport and the in-flight request tracker.
type Base struct {
	Config    ProviderConfig
	Transport *Transport
	Inflight  *Inflight
}

// NewBase builds the shared adapter state.
func NewBase(cfg ProviderConfig, transport *Transport) Base {
	if transport == nil {
		transport = NewTransport(nil, nil, Defaults{})
	}
	return Base{
		Config:    cfg,
		Transport: transport,
		Inflight:  NewInflight(transport.Defaults.CompletionRate),
	}
}

// Name returns the configured display name.
func (b *Base) Name() string {
	return b.Config.DisplayName()
}

// Type returns the configured variant.
func (b *Base) Type() ProviderType {
	return b.Config.Type
}

// CancelCurrentChatRequest cancels the latest chat stream.
func (b *Base) CancelCurrentChatRequest() {
	b.Inflight.Cancel(PurposeChat)
}

// Start launches run as a stream of purpose p and records its handle.
func (b *Base) Start(ctx context.Context, p Purpose, run func(ctx context.Context, emit Emit) error) *Stream {
	return b.Inflight.Track(NewStream(ctx, p, run))
}
