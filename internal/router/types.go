// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"strings"
	"time"

	"github.com/jeranaias/hopla/internal/config"
	"github.com/jeranaias/hopla/internal/llm"
)

// Ollama paths appended to a base endpoint.
const (
	ollamaChatPath     = "/api/chat"
	ollamaGeneratePath = "/api/generate"
)

// NotConfigured is the display name used when no provider resolves.
const NotConfigured = "Not configured"

// ollamaBase strips a known API path so both "http://host:11434" and
// "http://host:11434/api/chat" yield the server root.
func ollamaBase(endpoint string) string {
	base := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	for _, suffix := range []string{ollamaChatPath, ollamaGeneratePath} {
		if strings.HasSuffix(base, suffix) {
			return strings.TrimSuffix(base, suffix)
		}
	}
	return base
}

func ollamaEndpoint(endpoint, path string) string {
	if strings.TrimSpace(endpoint) == "" {
		return ""
	}
	return ollamaBase(endpoint) + path
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// ProviderConfig converts one settings block into adapter configuration.
// Per-purpose model and endpoint overrides win over the shared ones. OLLAMA
// endpoints are derived from the server root; the others are used verbatim.
func ProviderConfig(t llm.ProviderType, ps config.ProviderSettings) llm.ProviderConfig {
	chatEndpoint := ps.Endpoint
	completionEndpoint := firstNonEmpty(ps.CompletionEndpoint, ps.Endpoint)
	quickEndpoint := firstNonEmpty(ps.QuickActionEndpoint, ps.Endpoint)

	if t == llm.ProviderOllama {
		chatEndpoint = ollamaEndpoint(chatEndpoint, ollamaChatPath)
		completionEndpoint = ollamaEndpoint(completionEndpoint, ollamaGeneratePath)
		quickEndpoint = ollamaEndpoint(quickEndpoint, ollamaGeneratePath)
	}

	return llm.ProviderConfig{
		Type:    t,
		Name:    t.String(),
		Enabled: ps.Enabled,
		APIKey:  ps.APIKey,
		Chat: llm.PurposeConfig{
			Endpoint:      chatEndpoint,
			Model:         ps.Model,
			SystemPrompt:  ps.ChatSystemPrompt,
			Parameters:    ps.ChatParams,
			StopSequences: ps.ChatStops,
		},
		Completion: llm.PurposeConfig{
			Endpoint:      completionEndpoint,
			Model:         firstNonEmpty(ps.CompletionModel, ps.Model),
			SystemPrompt:  ps.CompletionSystemPrompt,
			Parameters:    ps.CompletionParams,
			StopSequences: ps.CompletionStops,
		},
		QuickAction: llm.PurposeConfig{
			Endpoint:      quickEndpoint,
			Model:         firstNonEmpty(ps.QuickActionModel, ps.Model),
			SystemPrompt:  ps.QuickActionSystemPrompt,
			Parameters:    ps.QuickActionParams,
			StopSequences: ps.QuickActionStops,
		},
		CompletionPrompt: ps.CompletionPrompt,
		Headers:          ps.Headers,
	}
}

// Defaults converts the global request fallbacks.
func Defaults(cfg *config.Config) llm.Defaults {
	return llm.Defaults{
		Timeout:        time.Duration(cfg.Defaults.TimeoutSec) * time.Second,
		CompletionRate: cfg.Defaults.CompletionRate,
		DebugPayloads:  cfg.DebugAI,
	}.WithFallbacks()
}
