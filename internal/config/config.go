// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/hopla/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete hopla configuration.
type Config struct {
	// ExternalAI enables provider selection. When false only OLLAMA is used.
	ExternalAI bool `toml:"external_ai" json:"external_ai"`

	// DebugAI logs request payloads and suggestions.
	DebugAI bool `toml:"debug_ai" json:"debug_ai"`

	// LocalOnly refuses providers whose endpoints are not on loopback.
	LocalOnly bool `toml:"local_only" json:"local_only"`

	DefaultChatProvider        string `toml:"default_chat_provider" json:"default_chat_provider"`
	DefaultCompletionProvider  string `toml:"default_completion_provider" json:"default_completion_provider"`
	DefaultQuickActionProvider string `toml:"default_quick_action_provider" json:"default_quick_action_provider"`

	Autocompletion AutocompletionConfig `toml:"autocompletion" json:"autocompletion"`
	Shortcuts      ShortcutsConfig      `toml:"shortcuts" json:"shortcuts"`
	Defaults       DefaultsConfig       `toml:"defaults" json:"defaults"`
	Logging        LoggingConfig        `toml:"logging" json:"logging"`
	Storage        StorageConfig        `toml:"storage" json:"storage"`

	// PromptsFile is an optional YAML file of quick actions and prompts.
	PromptsFile string `toml:"prompts_file" json:"prompts_file"`

	// Providers is keyed by provider type name (OLLAMA, OPENAI, ANTHROPIC).
	Providers map[string]ProviderSettings `toml:"providers" json:"providers"`
}

// AutocompletionConfig controls inline completion.
type AutocompletionConfig struct {
	Enabled   bool `toml:"enabled" json:"enabled"`
	AIEnabled bool `toml:"ai_enabled" json:"ai_enabled"`
	MinChars  int  `toml:"min_chars" json:"min_chars"`
}

// ShortcutsConfig holds key bindings for hosts that register them.
type ShortcutsConfig struct {
	Chat        string `toml:"chat" json:"chat"`
	QuickAction string `toml:"quick_action" json:"quick_action"`
}

// DefaultsConfig holds global request fallbacks.
type DefaultsConfig struct {
	TimeoutSec     int     `toml:"timeout_sec" json:"timeout_sec"`
	CompletionRate float64 `toml:"completion_rate" json:"completion_rate"`
}

// LoggingConfig selects the log level and format.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
}

// StorageConfig selects where chats are persisted.
type StorageConfig struct {
	Backend string `toml:"backend" json:"backend"`
	Path    string `toml:"path" json:"path"`
}

// ProviderSettings is one provider block.
type ProviderSettings struct {
	Enabled  bool   `toml:"enabled" json:"enabled"`
	APIKey   string `toml:"api_key" json:"api_key"`
	Model    string `toml:"model" json:"model"`
	Endpoint string `toml:"endpoint" json:"endpoint"`

	CompletionModel     string `toml:"completion_model,omitempty" json:"completion_model,omitempty"`
	CompletionEndpoint  string `toml:"completion_endpoint,omitempty" json:"completion_endpoint,omitempty"`
	QuickActionModel    string `toml:"quick_action_model,omitempty" json:"quick_action_model,omitempty"`
	QuickActionEndpoint string `toml:"quick_action_endpoint,omitempty" json:"quick_action_endpoint,omitempty"`

	ChatSystemPrompt        string `toml:"chat_system_prompt,omitempty" json:"chat_system_prompt,omitempty"`
	CompletionSystemPrompt  string `toml:"completion_system_prompt,omitempty" json:"completion_system_prompt,omitempty"`
	QuickActionSystemPrompt string `toml:"quick_action_system_prompt,omitempty" json:"quick_action_system_prompt,omitempty"`
	CompletionPrompt        string `toml:"completion_prompt,omitempty" json:"completion_prompt,omitempty"`

	ChatParams        map[string]any `toml:"chat_params,omitempty" json:"chat_params,omitempty"`
	CompletionParams  map[string]any `toml:"completion_params,omitempty" json:"completion_params,omitempty"`
	QuickActionParams map[string]any `toml:"quick_action_params,omitempty" json:"quick_action_params,omitempty"`

	ChatStops        []string `toml:"chat_stops,omitempty" json:"chat_stops,omitempty"`
	CompletionStops  []string `toml:"completion_stops,omitempty" json:"completion_stops,omitempty"`
	QuickActionStops []string `toml:"quick_action_stops,omitempty" json:"quick_action_stops,omitempty"`

	Headers map[string]string `toml:"headers,omitempty" json:"headers,omitempty"`
}

// Provider type names used as keys of Config.Providers.
const (
	ProviderOllama    = "OLLAMA"
	ProviderOpenAI    = "OPENAI"
	ProviderAnthropic = "ANTHROPIC"
)

// DefaultCompletionPrompt asks for the continuation of the current line.
const DefaultCompletionPrompt = "You complete raw HTTP requests. Continue the text after the caret with the most likely next tokens only.\n\n@prefix@"

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		ExternalAI:                 false,
		DefaultChatProvider:        ProviderOllama,
		DefaultCompletionProvider:  ProviderOllama,
		DefaultQuickActionProvider: ProviderOllama,
		Autocompletion: AutocompletionConfig{
			Enabled:   true,
			AIEnabled: true,
			MinChars:  3,
		},
		Shortcuts: ShortcutsConfig{
			Chat:        "Ctrl+J",
			QuickAction: "Ctrl+Shift+Q",
		},
		Defaults: DefaultsConfig{
			TimeoutSec:     60,
			CompletionRate: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Backend: "json",
		},
		Providers: map[string]ProviderSettings{
			ProviderOllama: {
				Enabled:          true,
				Model:            "llama3.1",
				Endpoint:         "http://localhost:11434",
				CompletionPrompt: DefaultCompletionPrompt,
			},
			ProviderOpenAI: {
				Model:            "gpt-4o-mini",
				Endpoint:         "https://api.openai.com/v1/chat/completions",
				CompletionPrompt: DefaultCompletionPrompt,
			},
			ProviderAnthropic: {
				Model:    "claude-3-5-sonnet-20241022",
				Endpoint: "https://api.anthropic.com/v1/messages",
			},
		},
	}
}

// Provider returns the settings block of a provider type name.
func (c *Config) Provider(name string) (ProviderSettings, bool) {
	ps, ok := c.Providers[strings.ToUpper(strings.TrimSpace(name))]
	return ps, ok
}

// ProviderNames returns the configured provider names, sorted.
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the hopla configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv("HOPLA_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".hopla"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ensureSecurePermissions tightens a config file to 0600 since it may hold
// API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.hopla/config.toml, else config.json, else defaults, then
// applies environment overrides and validates the result.
func Load() (*Config, error) {
	if path, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}
	if path, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}
	return finish(Default())
}

// LoadFromPath loads a TOML or JSON file (by extension) over the defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if err := ensureSecurePermissions(path); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if strings.HasSuffix(path, ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read JSON config from %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode JSON config from %s: %w", path, err)
		}
	} else {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode TOML config from %s: %w", path, err)
		}
	}
	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.DecryptSecrets(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills zero values with defaults. Provider blocks missing from
// the file keep their built-in defaults.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.DefaultChatProvider == "" {
		c.DefaultChatProvider = defaults.DefaultChatProvider
	}
	if c.DefaultCompletionProvider == "" {
		c.DefaultCompletionProvider = defaults.DefaultCompletionProvider
	}
	if c.DefaultQuickActionProvider == "" {
		c.DefaultQuickActionProvider = defaults.DefaultQuickActionProvider
	}
	if c.Autocompletion.MinChars <= 0 {
		c.Autocompletion.MinChars = defaults.Autocompletion.MinChars
	}
	if c.Shortcuts.Chat == "" {
		c.Shortcuts.Chat = defaults.Shortcuts.Chat
	}
	if c.Shortcuts.QuickAction == "" {
		c.Shortcuts.QuickAction = defaults.Shortcuts.QuickAction
	}
	if c.Defaults.TimeoutSec <= 0 {
		c.Defaults.TimeoutSec = defaults.Defaults.TimeoutSec
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = defaults.Storage.Backend
	}

	if c.Providers == nil {
		c.Providers = make(map[string]ProviderSettings)
	}
	normalized := make(map[string]ProviderSettings, len(c.Providers))
	for name, ps := range c.Providers {
		normalized[strings.ToUpper(strings.TrimSpace(name))] = ps
	}
	for name, def := range defaults.Providers {
		ps, ok := normalized[name]
		if !ok {
			normalized[name] = def
			continue
		}
		if ps.Endpoint == "" {
			ps.Endpoint = def.Endpoint
		}
		if ps.CompletionPrompt == "" {
			ps.CompletionPrompt = def.CompletionPrompt
		}
		normalized[name] = ps
	}
	c.Providers = normalized
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString("# hopla configuration file\n")
	sb.WriteString("# api_key values may be stored encrypted: hopla config encrypt\n\n")

	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg as indented JSON with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	if err := util.AtomicWriteJSON(path, cfg, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var knownProviders = map[string]bool{
	ProviderOllama:    true,
	ProviderOpenAI:    true,
	ProviderAnthropic: true,
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	for field, name := range map[string]string{
		"default_chat_provider":         c.DefaultChatProvider,
		"default_completion_provider":   c.DefaultCompletionProvider,
		"default_quick_action_provider": c.DefaultQuickActionProvider,
	} {
		if name != "" && !knownProviders[strings.ToUpper(name)] {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("unknown provider %q", name)})
		}
	}

	for name, ps := range c.Providers {
		if !knownProviders[name] {
			errs = append(errs, ValidationError{Field: "providers." + name, Message: "unknown provider type"})
			continue
		}
		for field, endpoint := range map[string]string{
			"endpoint":              ps.Endpoint,
			"completion_endpoint":   ps.CompletionEndpoint,
			"quick_action_endpoint": ps.QuickActionEndpoint,
		} {
			if endpoint == "" {
				continue
			}
			u, err := url.Parse(endpoint)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				errs = append(errs, ValidationError{
					Field:   "providers." + name + "." + field,
					Message: fmt.Sprintf("invalid URL %q (expected http or https)", endpoint),
				})
			}
		}
	}

	if c.Autocompletion.MinChars < 0 {
		errs = append(errs, ValidationError{Field: "autocompletion.min_chars", Message: "must not be negative"})
	}
	if c.Defaults.TimeoutSec < 0 {
		errs = append(errs, ValidationError{Field: "defaults.timeout_sec", Message: "must not be negative"})
	}
	if c.Defaults.CompletionRate < 0 {
		errs = append(errs, ValidationError{Field: "defaults.completion_rate", Message: "must not be negative"})
	}
	switch c.Storage.Backend {
	case "", "json", "sqlite":
	default:
		errs = append(errs, ValidationError{Field: "storage.backend", Message: fmt.Sprintf("unknown backend %q (json or sqlite)", c.Storage.Backend)})
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, ValidationError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q (text or json)", c.Logging.Format)})
	}

	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - HOPLA_EXTERNAL_AI, HOPLA_DEBUG_AI, HOPLA_LOCAL_ONLY: booleans
//   - HOPLA_CHAT_PROVIDER: overrides default_chat_provider
//   - HOPLA_STORAGE: overrides storage.backend
//   - HOPLA_<TYPE>_API_KEY, HOPLA_<TYPE>_ENDPOINT, HOPLA_<TYPE>_MODEL
func (c *Config) ApplyEnvOverrides() {
	if v, ok := envBool("HOPLA_EXTERNAL_AI"); ok {
		c.ExternalAI = v
	}
	if v, ok := envBool("HOPLA_DEBUG_AI"); ok {
		c.DebugAI = v
	}
	if v, ok := envBool("HOPLA_LOCAL_ONLY"); ok {
		c.LocalOnly = v
	}
	if v := os.Getenv("HOPLA_CHAT_PROVIDER"); v != "" {
		c.DefaultChatProvider = strings.ToUpper(v)
	}
	if v := os.Getenv("HOPLA_STORAGE"); v != "" {
		c.Storage.Backend = strings.ToLower(v)
	}

	if c.Providers == nil {
		c.Providers = make(map[string]ProviderSettings)
	}
	for name := range knownProviders {
		ps := c.Providers[name]
		changed := false
		if v := os.Getenv("HOPLA_" + name + "_API_KEY"); v != "" {
			ps.APIKey, changed = v, true
		}
		if v := os.Getenv("HOPLA_" + name + "_ENDPOINT"); v != "" {
			ps.Endpoint, changed = v, true
		}
		if v := os.Getenv("HOPLA_" + name + "_MODEL"); v != "" {
			ps.Model, changed = v, true
		}
		if changed {
			c.Providers[name] = ps
		}
	}
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration, loading it on first access.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
