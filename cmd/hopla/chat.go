// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/hopla/internal/cli"
	"github.com/jeranaias/hopla/internal/config"
	"github.com/jeranaias/hopla/internal/session"
)

var chatProvider string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat",
	Long: `Start an interactive chat. Replies stream as they arrive; Ctrl+C cancels
the current reply and Ctrl+D exits. Type /help for commands.

Messages may reference @request@, @response@ and @notes@; load the first two
with /request FILE and /response FILE.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatProvider, "provider", "p", "", "Pin chat to a provider (OLLAMA, OPENAI, ANTHROPIC)")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
	defer stop()

	ctrl := session.New(session.Options{
		Store:      store,
		Resolver:   a.router,
		ExternalAI: a.cfg.ExternalAI,
		Logger:     a.logger,
	})
	if err := ctrl.Load(ctx); err != nil {
		return err
	}
	if chatProvider != "" {
		ctrl.SetProvider(chatProvider)
	}

	if a.cfgPath != "" {
		err := config.Watch(ctx, a.cfgPath, func(cfg *config.Config) {
			a.logger.Info("config reloaded", "path", a.cfgPath)
			config.SetGlobal(cfg)
			a.router.Reload(cfg)
			ctrl.SetExternalAI(cfg.ExternalAI)
		})
		if err != nil {
			a.logger.Warn("config watch disabled", "error", err)
		}
	}

	repl := cli.NewChatREPL(cli.ChatOptions{
		Controller: ctrl,
		Providers:  a.router,
		Out:        cmd.OutOrStdout(),
	})

	if !cli.IsTTY() {
		return repl.Run(ctx, cli.NewScannerReader(cmd.InOrStdin()))
	}

	historyFile := filepath.Join(os.TempDir(), cli.HistoryFileName)
	if dir, err := config.ConfigDir(); err == nil {
		historyFile = filepath.Join(dir, cli.HistoryFileName)
	}
	input := cli.NewChatCLI(historyFile)
	defer input.Close()

	input.SetCompleter(&session.Completer{
		Resolver:  a.router,
		Enabled:   a.cfg.Autocompletion.Enabled,
		AIEnabled: a.cfg.Autocompletion.AIEnabled,
		MinChars:  a.cfg.Autocompletion.MinChars,
	})

	err = repl.Run(ctx, input)
	a.router.CancelAll()
	ctrl.Wait()
	return err
}

// commandContext returns cmd's context, cancelled on SIGINT or SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
