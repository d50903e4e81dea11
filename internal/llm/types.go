// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// PROVIDER TYPE
// =============================================================================

// ProviderType identifies a provider variant.
type ProviderType string

const (
	ProviderOllama    ProviderType = "OLLAMA"
	ProviderOpenAI    ProviderType = "OPENAI"
	ProviderAnthropic ProviderType = "ANTHROPIC"
)

// ProviderTypes lists every known provider type in display order.
var ProviderTypes = []ProviderType{ProviderOllama, ProviderOpenAI, ProviderAnthropic}

// String returns the provider type name.
func (t ProviderType) String() string {
	return string(t)
}

// ParseProviderType resolves a provider type name. Matching ignores case and
// surrounding whitespace.
func ParseProviderType(name string) (ProviderType, error) {
	candidate := ProviderType(strings.ToUpper(strings.TrimSpace(name)))
	for _, t := range ProviderTypes {
		if t == candidate {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown provider type %q", name)
}

// =============================================================================
// PURPOSE
// =============================================================================

// Purpose selects which endpoint and model a request uses.
type Purpose int

const (
	PurposeChat Purpose = iota
	PurposeCompletion
	PurposeQuickAction
)

func (p Purpose) String() string {
	switch p {
	case PurposeChat:
		return "chat"
	case PurposeCompletion:
		return "completion"
	case PurposeQuickAction:
		return "quick action"
	default:
		return "unknown"
	}
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// PurposeConfig holds the settings of one purpose.
type PurposeConfig struct {
	Endpoint      string
	Model         string
	SystemPrompt  string
	Parameters    map[string]any
	StopSequences []string
}

// ProviderConfig holds everything an adapter needs to talk to one provider.
type ProviderConfig struct {
	Type    ProviderType
	Name    string
	Enabled bool
	APIKey  string

	Chat        PurposeConfig
	Completion  PurposeConfig
	QuickAction PurposeConfig

	// CompletionPrompt is the autocomplete prompt template. See CaretContext.
	CompletionPrompt string

	// Headers are added to every request.
	Headers map[string]string
}

// For returns the settings of purpose p.
func (c ProviderConfig) For(p Purpose) PurposeConfig {
	switch p {
	case PurposeCompletion:
		return c.Completion
	case PurposeQuickAction:
		return c.QuickAction
	default:
		return c.Chat
	}
}

// Require returns the settings of purpose p, or a precondition error when its
// model or endpoint is blank.
func (c ProviderConfig) Require(p Purpose) (PurposeConfig, error) {
	pc := c.For(p)
	name := c.DisplayName()
	if strings.TrimSpace(pc.Model) == "" {
		return pc, &ClientError{
			Type:    ErrTypePrecondition,
			Message: fmt.Sprintf("%s %s model undefined", name, p),
			Cause:   ErrMissingModel,
		}
	}
	if strings.TrimSpace(pc.Endpoint) == "" {
		return pc, &ClientError{
			Type:    ErrTypePrecondition,
			Message: fmt.Sprintf("%s %s endpoint undefined", name, p),
			Cause:   ErrMissingEndpoint,
		}
	}
	return pc, nil
}

// DisplayName returns Name, or the type when Name is blank.
func (c ProviderConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Type.String()
}

// Defaults are global fallbacks applied by every adapter.
type Defaults struct {
	// Timeout bounds non-streaming requests and connection setup.
	Timeout time.Duration

	// CompletionRate limits autocomplete requests per second. Zero disables
	// the limit.
	CompletionRate float64

	// DebugPayloads logs request bodies at debug level.
	DebugPayloads bool
}

// DefaultTimeout is used when Defaults.Timeout is zero.
const DefaultTimeout = 60 * time.Second

// WithFallbacks fills zero fields.
func (d Defaults) WithFallbacks() Defaults {
	if d.Timeout <= 0 {
		d.Timeout = DefaultTimeout
	}
	return d
}
