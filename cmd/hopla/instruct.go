// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/hopla/internal/cli"
	"github.com/jeranaias/hopla/internal/llm"
	"github.com/jeranaias/hopla/internal/session"
)

var instructCmd = &cobra.Command{
	Use:   "instruct [prompt...]",
	Short: "Stream the answer to a single prompt",
	Long: `Send one prompt through the quick action provider and stream the answer.
The prompt is read from stdin when no arguments are given.`,
	RunE: runInstruct,
}

var actionCmd = &cobra.Command{
	Use:   "action <name> [file]",
	Short: "Run a quick action on a file or stdin",
	Long: `Run a quick action (Summarize, Explain, Find Vulns or one from the prompts
file) on the contents of file, or stdin when file is omitted or "-".`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAction,
}

var completeCmd = &cobra.Command{
	Use:   "complete <text>",
	Short: "Print completion candidates for text",
	Long: `Ask the completion provider how text continues. The caret is placed at the
end of text unless --caret is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runComplete,
}

var completeCaret int

func init() {
	completeCmd.Flags().IntVar(&completeCaret, "caret", -1, "Caret byte offset (default: end of text)")
	rootCmd.AddCommand(instructCmd, actionCmd, completeCmd)
}

func runInstruct(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	text, err := readInput(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	provider, err := a.router.QuickActionProvider()
	if err != nil {
		return err
	}

	ctx, stop := commandContext(cmd)
	defer stop()

	stream, err := provider.Instruct(ctx, text)
	if err != nil {
		return err
	}
	return finishStream(cmd, stream)
}

func runAction(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	action, ok := a.prompts.QuickAction(args[0])
	if !ok {
		return fmt.Errorf("unknown quick action %q", args[0])
	}

	path := ""
	if len(args) > 1 {
		path = args[1]
	}
	input, err := readFileOrStdin(path, cmd.InOrStdin())
	if err != nil {
		return err
	}

	provider, err := a.router.QuickActionProvider()
	if err != nil {
		return err
	}

	ctx, stop := commandContext(cmd)
	defer stop()

	stream, err := action.Run(ctx, provider, input)
	if err != nil {
		return err
	}
	return finishStream(cmd, stream)
}

// finishStream prints stream and a trailing newline. Cancellation is not an
// error.
func finishStream(cmd *cobra.Command, stream *llm.Stream) error {
	out := cmd.OutOrStdout()
	err := cli.PrintStream(out, stream)
	fmt.Fprintln(out)
	if llm.IsCancelled(err) {
		fmt.Fprintln(cmd.ErrOrStderr(), cli.WarningStyle.Render("[Cancelled]"))
		return nil
	}
	return err
}

func runComplete(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}

	caret := completeCaret
	if caret < 0 {
		caret = len(args[0])
	}

	completer := &session.Completer{
		Resolver:  a.router,
		Enabled:   true,
		AIEnabled: true,
		MinChars:  a.cfg.Autocompletion.MinChars,
	}

	ctx, stop := commandContext(cmd)
	defer stop()

	candidates, err := completer.Complete(ctx, llm.CaretContext{Request: args[0], Caret: caret})
	if err != nil {
		if errors.Is(err, llm.ErrUnsupported) {
			return fmt.Errorf("%w (set default_completion_provider to OLLAMA or OPENAI)", err)
		}
		return err
	}
	for _, c := range candidates {
		fmt.Fprintln(cmd.OutOrStdout(), c)
	}
	return nil
}
