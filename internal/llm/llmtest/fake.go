// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"sync"
	"time"

	"github.com/jeranaias/hopla/internal/llm"
	"github.com/jeranaias/hopla/internal/model"
)

// Fake replays scripted chunks for every stream it starts.
type Fake struct {
	llm.Base

	mu sync.Mutex

	// Chunks are emitted in order by Chat and Instruct.
	Chunks []string

	// Err, when set, ends the stream after the chunks.
	Err error

	// StartErr is returned synchronously by Chat and Instruct.
	StartErr error

	// Delay is slept between chunks.
	Delay time.Duration

	// Block holds the stream open after the chunks until it is cancelled.
	Block bool

	// Suggestions are returned by AutoComplete.
	Suggestions []string

	Prompts []string
	Chats   [][]llm.WireMessage
	Carets  []llm.CaretContext
}

var _ llm.Provider = (*Fake)(nil)

// New creates a fake named name that emits chunks.
func New(name string, chunks ...string) *Fake {
	cfg := llm.ProviderConfig{Type: llm.ProviderOllama, Name: name, Enabled: true}
	return &Fake{Base: llm.NewBase(cfg, nil), Chunks: chunks}
}

// Instruct records prompt and replays the script.
func (f *Fake) Instruct(ctx context.Context, prompt string) (*llm.Stream, error) {
	f.mu.Lock()
	f.Prompts = append(f.Prompts, prompt)
	startErr := f.StartErr
	f.mu.Unlock()
	if startErr != nil {
		return nil, startErr
	}
	return f.Start(ctx, llm.PurposeQuickAction, f.replay), nil
}

// Chat records the wire history and replays the script.
func (f *Fake) Chat(ctx context.Context, chat *model.Chat) (*llm.Stream, error) {
	f.mu.Lock()
	f.Chats = append(f.Chats, llm.WireMessages(llm.ChatHistory(chat), chat.Notes()))
	startErr := f.StartErr
	f.mu.Unlock()
	if startErr != nil {
		return nil, startErr
	}
	return f.Start(ctx, llm.PurposeChat, f.replay), nil
}

// AutoComplete records caret and returns Suggestions.
func (f *Fake) AutoComplete(ctx context.Context, caret llm.CaretContext) ([]string, error) {
	f.mu.Lock()
	f.Carets = append(f.Carets, caret)
	out := append([]string(nil), f.Suggestions...)
	f.mu.Unlock()
	return out, ctx.Err()
}

// PromptCount returns the number of Instruct calls.
func (f *Fake) PromptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Prompts)
}

func (f *Fake) replay(ctx context.Context, emit llm.Emit) error {
	f.mu.Lock()
	chunks := append([]string(nil), f.Chunks...)
	err, delay, block := f.Err, f.Delay, f.Block
	f.mu.Unlock()

	for _, chunk := range chunks {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if e := emit(chunk); e != nil {
			return e
		}
	}
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}
