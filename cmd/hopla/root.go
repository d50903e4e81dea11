// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/hopla/internal/config"
	"github.com/jeranaias/hopla/internal/llm"
	"github.com/jeranaias/hopla/internal/logging"
	"github.com/jeranaias/hopla/internal/prompt"
	"github.com/jeranaias/hopla/internal/router"
	"github.com/jeranaias/hopla/internal/storage"
)

// Flags
var (
	flagVerbose bool
	flagQuiet   bool
	flagConfig  string
	flagStore   string
)

var rootCmd = &cobra.Command{
	Use:   "hopla",
	Short: "Streaming LLM assistant for HTTP traffic",
	Long: `hopla talks to Ollama, OpenAI-compatible and Anthropic models to chat
about HTTP requests and responses, run quick actions and scan exchanges for
security issues.

Examples:
  hopla chat                              # interactive chat
  hopla instruct "explain HTTP 418"       # one-shot prompt
  hopla action Explain request.txt        # run a quick action
  hopla scan request.txt response.txt     # agent scan
  hopla chats list                        # stored chats
  hopla config init                       # write ~/.hopla/config.toml`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("hopla %s (commit %s, built %s)\n", Version, GitCommit, BuildDate))
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Only log warnings and errors")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (TOML or JSON)")
	rootCmd.PersistentFlags().StringVar(&flagStore, "store", "", "Chat storage backend (json|sqlite)")
}

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// app holds what every command shares.
type app struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger
	router  *router.Router
	prompts *prompt.Library
}

// loadApp loads the configuration and builds the logger, router and prompt
// library.
func loadApp() (*app, error) {
	cfgPath, err := configPath(flagConfig)
	if err != nil {
		return nil, err
	}

	var cfg *config.Config
	if cfgPath != "" {
		cfg, err = config.LoadFromPath(cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if flagStore != "" {
		cfg.Storage.Backend = strings.ToLower(flagStore)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	config.SetGlobal(cfg)

	logger := logging.Setup(logging.Options{
		Verbose: flagVerbose,
		Quiet:   flagQuiet,
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
	})

	prompts, err := prompt.Load(cfg.PromptsFile)
	if err != nil {
		return nil, err
	}

	transport := llm.NewTransport(nil, logger, router.Defaults(cfg))
	return &app{
		cfg:     cfg,
		cfgPath: cfgPath,
		logger:  logger,
		router:  router.New(cfg, transport),
		prompts: prompts,
	}, nil
}

// configPath returns the explicit path, else the first existing default
// config file, else "".
func configPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return explicit, nil
	}
	for _, candidate := range []func() (string, error){config.ConfigPathTOML, config.ConfigPathJSON} {
		path, err := candidate()
		if err != nil {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

// storePath returns the configured chat store path, else the default file
// for the backend in the config directory.
func storePath(cfg *config.Config) (string, error) {
	if cfg.Storage.Path != "" {
		return cfg.Storage.Path, nil
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return storage.DefaultPath(dir, cfg.Storage.Backend), nil
}

func (a *app) openStore() (storage.ChatStore, error) {
	path, err := storePath(a.cfg)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("opening chat store", "backend", a.cfg.Storage.Backend, "path", path)
	return storage.Open(a.cfg.Storage.Backend, path)
}

// readInput joins args, or reads all of stdin when there are none.
func readInput(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no input: pass text as arguments or on stdin")
	}
	return text, nil
}

// readFileOrStdin reads path, or stdin when path is "" or "-".
func readFileOrStdin(path string, stdin io.Reader) (string, error) {
	if path == "" || path == "-" {
		return readInput(nil, stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
