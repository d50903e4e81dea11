// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/jeranaias/hopla/internal/llm"
)

// CompletionResolver returns the provider used for autocomplete.
type CompletionResolver interface {
	CompletionProvider() (llm.Provider, error)
}

// Completer gates autocomplete requests: nothing is sent while completion
// is disabled or the current line is shorter than MinChars.
type Completer struct {
	Resolver  CompletionResolver
	Enabled   bool
	AIEnabled bool
	MinChars  int
}

// Complete returns deduplicated candidates for caret. A request superseded
// by a newer one returns no candidates and no error.
func (c *Completer) Complete(ctx context.Context, caret llm.CaretContext) ([]string, error) {
	if !c.Enabled || !c.AIEnabled {
		return nil, nil
	}
	if utf8.RuneCountInString(strings.TrimSpace(caret.Line())) < c.MinChars {
		return nil, nil
	}

	provider, err := c.Resolver.CompletionProvider()
	if err != nil {
		return nil, err
	}

	candidates, err := provider.AutoComplete(ctx, caret)
	if err != nil {
		if llm.IsCancelled(err) {
			return nil, nil
		}
		return nil, err
	}

	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, cand := range candidates {
		if strings.TrimSpace(cand) == "" || seen[cand] {
			continue
		}
		seen[cand] = true
		out = append(out, cand)
	}
	return out, nil
}
