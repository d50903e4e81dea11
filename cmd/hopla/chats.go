// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jeranaias/hopla/internal/cli"
	"github.com/jeranaias/hopla/internal/export"
	"github.com/jeranaias/hopla/internal/model"
	"github.com/jeranaias/hopla/internal/storage"
)

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "Manage stored chats",
	Long: `List, show, delete and export stored chats. Chats are numbered from 1,
newest first, as in the chat list.

Examples:
  hopla chats                  # list chats
  hopla chats show 1
  hopla chats delete 3
  hopla chats export 1 chat.md`,
	RunE: runChatsList,
}

var chatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chats",
	Args:  cobra.NoArgs,
	RunE:  runChatsList,
}

var chatsShowCmd = &cobra.Command{
	Use:   "show <n>",
	Short: "Show a chat transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatsShow,
}

var chatsDeleteCmd = &cobra.Command{
	Use:   "delete <n>",
	Short: "Delete a chat",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatsDelete,
}

var chatsExportCmd = &cobra.Command{
	Use:   "export <n> [path]",
	Short: "Export a chat as JSON or Markdown",
	Long: `Export a chat to path, or to stdout when path is omitted. The format
follows --format, else the extension of path, else JSON. When path is a
directory the file is named after the chat.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runChatsExport,
}

var chatsExportFormat string

func init() {
	chatsExportCmd.Flags().StringVarP(&chatsExportFormat, "format", "f", "", "Export format (json|markdown)")
	chatsCmd.AddCommand(chatsListCmd, chatsShowCmd, chatsDeleteCmd, chatsExportCmd)
	rootCmd.AddCommand(chatsCmd)
}

// withChats loads the store and calls fn with the collection.
func withChats(cmd *cobra.Command, fn func(store storage.ChatStore, chats *model.ChatCollection) error) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	chats, err := store.Load(cmd.Context())
	if err != nil {
		return err
	}
	return fn(store, chats)
}

func findChat(chats *model.ChatCollection, arg string) (*model.Chat, error) {
	idx, err := cli.ParseChatNumber(arg)
	if err != nil {
		return nil, err
	}
	return storage.Find(chats, idx)
}

func runChatsList(cmd *cobra.Command, args []string) error {
	return withChats(cmd, func(_ storage.ChatStore, chats *model.ChatCollection) error {
		display := chats.Display()
		labels := make([]string, len(display))
		for i, chat := range display {
			labels[i] = chat.Label()
		}
		fmt.Fprint(cmd.OutOrStdout(), cli.ChatTable(labels, -1, cli.GetTerminalWidth()))
		return nil
	})
}

func runChatsShow(cmd *cobra.Command, args []string) error {
	return withChats(cmd, func(_ storage.ChatStore, chats *model.ChatCollection) error {
		chat, err := findChat(chats, args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), cli.Transcript(chat))
		return nil
	})
}

func runChatsDelete(cmd *cobra.Command, args []string) error {
	return withChats(cmd, func(store storage.ChatStore, chats *model.ChatCollection) error {
		chat, err := findChat(chats, args[0])
		if err != nil {
			return err
		}
		if err := chats.Delete(chats.IndexOf(chat)); err != nil {
			return err
		}
		if err := store.Save(cmd.Context(), chats); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted %s\n", cli.SuccessStyle.Render("[OK]"), chat.Label())
		return nil
	})
}

func runChatsExport(cmd *cobra.Command, args []string) error {
	return withChats(cmd, func(_ storage.ChatStore, chats *model.ChatCollection) error {
		chat, err := findChat(chats, args[0])
		if err != nil {
			return err
		}

		path := ""
		if len(args) > 1 {
			path = args[1]
		}
		format := chatsExportFormat
		if format == "" {
			format = export.FormatJSON
			if ext := filepath.Ext(path); ext != "" {
				format = ext
			}
		}
		exporter, err := export.ForFormat(format)
		if err != nil {
			return err
		}

		if path == "" {
			data, err := exporter.Export(chat)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		written, err := export.ToFile(chat, exporter, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Exported to %s\n", cli.SuccessStyle.Render("[OK]"), written)
		return nil
	})
}
