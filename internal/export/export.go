// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes chats to Markdown or JSON files.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/hopla/internal/model"
	"github.com/jeranaias/hopla/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts a chat to one file format.
type Exporter interface {
	Export(chat *model.Chat) ([]byte, error)

	// FileExtension returns the extension including the dot.
	FileExtension() string
}

// ErrNilChat is returned when there is nothing to export.
var ErrNilChat = errors.New("chat is nil")

// Format names accepted by ForFormat.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// ForFormat returns the exporter for a format name or file extension.
func ForFormat(name string) (Exporter, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case FormatMarkdown, "md":
		return &MarkdownExporter{Now: time.Now}, nil
	case FormatJSON:
		return JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unknown export format %q (use markdown or json)", name)
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ToFile writes chat to path, or to a file named after the chat label in
// dir when path is a directory or empty. It returns the path written.
func ToFile(chat *model.Chat, exporter Exporter, path string) (string, error) {
	content, err := exporter.Export(chat)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	if path == "" || strings.HasSuffix(path, string(filepath.Separator)) || isDir(path) {
		path = filepath.Join(path, "chat_"+sanitizeFilename(chat.Label())+exporter.FileExtension())
	}
	if err := util.AtomicWriteFile(path, content, 0600); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// sanitizeFilename replaces characters that are invalid in file names.
func sanitizeFilename(s string) string {
	s = util.TruncateRunesNoEllipsis(s, 50)

	replacer := map[rune]rune{
		'/':  '-',
		'\\': '-',
		':':  '-',
		'*':  '-',
		'?':  '-',
		'"':  '-',
		'<':  '-',
		'>':  '-',
		'|':  '-',
		' ':  '_',
		'\t': '_',
		'\n': '_',
		'\r': '_',
	}

	result := make([]rune, 0, len(s))
	for _, r := range s {
		if replacement, found := replacer[r]; found {
			result = append(result, replacement)
		} else if r < 32 || r == 127 {
			result = append(result, '-')
		} else {
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "chat"
	}
	return string(result)
}
