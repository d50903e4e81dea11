// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/jeranaias/hopla/internal/anthropic"
	"github.com/jeranaias/hopla/internal/cloud"
	"github.com/jeranaias/hopla/internal/config"
	"github.com/jeranaias/hopla/internal/llm"
	"github.com/jeranaias/hopla/internal/offline"
	"github.com/jeranaias/hopla/internal/ollama"
)

// ErrNoProvider is returned when a purpose resolves to no usable provider.
var ErrNoProvider = llm.ErrNoProvider

// Factory builds an adapter for one provider configuration.
type Factory func(cfg llm.ProviderConfig, transport *llm.Transport) llm.Provider

// DefaultFactories maps every provider type to its adapter constructor.
var DefaultFactories = map[llm.ProviderType]Factory{
	llm.ProviderOllama: func(cfg llm.ProviderConfig, t *llm.Transport) llm.Provider {
		return ollama.New(cfg, t)
	},
	llm.ProviderOpenAI: func(cfg llm.ProviderConfig, t *llm.Transport) llm.Provider {
		return cloud.New(cfg, t)
	},
	llm.ProviderAnthropic: func(cfg llm.ProviderConfig, t *llm.Transport) llm.Provider {
		return anthropic.New(cfg, t)
	},
}

// Router hands out the provider selected for each purpose.
//
// Router is safe for concurrent use.
type Router struct {
	mu        sync.RWMutex
	cfg       *config.Config
	transport *llm.Transport
	factories map[llm.ProviderType]Factory
	providers map[llm.ProviderType]llm.Provider
}

// New creates a router. A nil transport gets a shared client with the
// configured defaults.
func New(cfg *config.Config, transport *llm.Transport) *Router {
	return NewWithFactories(cfg, transport, DefaultFactories)
}

// NewWithFactories creates a router with custom adapter constructors.
func NewWithFactories(cfg *config.Config, transport *llm.Transport, factories map[llm.ProviderType]Factory) *Router {
	r := &Router{factories: factories}
	r.reload(cfg, transport)
	return r
}

// Reload rebuilds every adapter from cfg. Streams already running are left
// alone.
func (r *Router) Reload(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var logger *slog.Logger
	if r.transport != nil {
		logger = r.transport.Logger
	}
	r.reloadLocked(cfg, llm.NewTransport(nil, logger, Defaults(cfg)))
}

func (r *Router) reload(cfg *config.Config, transport *llm.Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reloadLocked(cfg, transport)
}

func (r *Router) reloadLocked(cfg *config.Config, transport *llm.Transport) {
	if cfg == nil {
		cfg = config.Default()
	}
	if transport == nil {
		transport = llm.NewTransport(nil, nil, Defaults(cfg))
	}
	r.cfg = cfg
	r.transport = transport
	r.providers = make(map[llm.ProviderType]llm.Provider, len(llm.ProviderTypes))

	for _, t := range llm.ProviderTypes {
		ps, ok := cfg.Provider(t.String())
		if !ok {
			continue
		}
		factory, ok := r.factories[t]
		if !ok {
			continue
		}
		r.providers[t] = factory(ProviderConfig(t, ps), transport)
	}
}

// Config returns the configuration the router was built from.
func (r *Router) Config() *config.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// Provider returns the adapter for a provider name. Unknown names, missing
// blocks and disabled providers yield ErrNoProvider, as do remote endpoints
// when the configuration is local-only.
func (r *Router) Provider(name string) (llm.Provider, error) {
	t, err := llm.ParseProviderType(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoProvider, err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not configured", ErrNoProvider, t)
	}
	ps, _ := r.cfg.Provider(t.String())
	if !ps.Enabled {
		return nil, fmt.Errorf("%w: %s is disabled", ErrNoProvider, t)
	}
	if err := r.checkLocal(t, ps); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoProvider, t, err)
	}
	return p, nil
}

// ForPurpose returns the adapter selected for purpose p.
func (r *Router) ForPurpose(p llm.Purpose) (llm.Provider, error) {
	return r.Provider(r.selected(p))
}

// ChatProvider returns the adapter selected for chat.
func (r *Router) ChatProvider() (llm.Provider, error) {
	return r.ForPurpose(llm.PurposeChat)
}

// CompletionProvider returns the adapter selected for autocomplete.
func (r *Router) CompletionProvider() (llm.Provider, error) {
	return r.ForPurpose(llm.PurposeCompletion)
}

// QuickActionProvider returns the adapter selected for quick actions.
func (r *Router) QuickActionProvider() (llm.Provider, error) {
	return r.ForPurpose(llm.PurposeQuickAction)
}

func (r *Router) selected(p llm.Purpose) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.cfg.ExternalAI {
		return llm.ProviderOllama.String()
	}
	switch p {
	case llm.PurposeCompletion:
		return r.cfg.DefaultCompletionProvider
	case llm.PurposeQuickAction:
		return r.cfg.DefaultQuickActionProvider
	default:
		return r.cfg.DefaultChatProvider
	}
}

// ProviderName returns the display name of the provider selected for p, or
// NotConfigured.
func (r *Router) ProviderName(p llm.Purpose) string {
	provider, err := r.ForPurpose(p)
	if err != nil {
		return NotConfigured
	}
	return provider.Name()
}

// EnabledProviders lists the enabled provider types in display order. When
// external_ai is false only OLLAMA is listed; local-only mode also hides
// providers with remote endpoints.
func (r *Router) EnabledProviders() []llm.ProviderType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []llm.ProviderType
	for _, t := range llm.ProviderTypes {
		if !r.cfg.ExternalAI && t != llm.ProviderOllama {
			continue
		}
		if _, ok := r.providers[t]; !ok {
			continue
		}
		if ps, _ := r.cfg.Provider(t.String()); ps.Enabled && r.checkLocal(t, ps) == nil {
			out = append(out, t)
		}
	}
	return out
}

// checkLocal rejects non-loopback endpoints in local-only mode. Callers hold
// r.mu.
func (r *Router) checkLocal(t llm.ProviderType, ps config.ProviderSettings) error {
	if !r.cfg.LocalOnly {
		return nil
	}
	pc := ProviderConfig(t, ps)
	return offline.ValidateEndpoints(true, pc.Chat.Endpoint, pc.Completion.Endpoint, pc.QuickAction.Endpoint)
}

// CancelAll cancels the current chat request of every adapter.
func (r *Router) CancelAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.providers {
		p.CancelCurrentChatRequest()
	}
}
