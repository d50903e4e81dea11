// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jeranaias/hopla/internal/llm"
	"github.com/jeranaias/hopla/internal/model"
	"github.com/jeranaias/hopla/internal/util"
)

// chatNumberWidth is the column used for "NNN  " before each label.
const chatNumberWidth = 6

// ChatTable renders labels one per line, numbered from 1. The selected
// display index is marked. Labels are cut to fit width columns.
func ChatTable(labels []string, selected, width int) string {
	if len(labels) == 0 {
		return DimStyle.Render("No chats.") + "\n"
	}
	if width <= 0 {
		width = DefaultTerminalWidth
	}
	labelWidth := width - chatNumberWidth - 2
	if labelWidth < 10 {
		labelWidth = 10
	}

	var b strings.Builder
	for i, label := range labels {
		marker := "  "
		number := util.PadWidth(strconv.Itoa(i+1), chatNumberWidth-2)
		text := util.TruncateWidth(util.CollapseLines(label), labelWidth)
		if i == selected {
			marker = HighlightStyle.Render("> ")
			text = HighlightStyle.Render(text)
		}
		b.WriteString(marker)
		b.WriteString(DimStyle.Render(number))
		b.WriteString("  ")
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

// Transcript renders the messages of chat with role headers.
func Transcript(chat *model.Chat) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(chat.Label()))
	b.WriteString("\n")
	if notes := chat.Notes(); notes != "" {
		b.WriteString(DimStyle.Render("Notes: " + notes))
		b.WriteString("\n")
	}
	for _, msg := range chat.Messages() {
		b.WriteString("\n")
		b.WriteString(RenderRole(msg.Role().String()))
		b.WriteString("\n")
		b.WriteString(msg.Content())
		b.WriteString("\n")
	}
	return b.String()
}

// ParseChatNumber converts a 1-based chat number to a display index.
func ParseChatNumber(arg string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid chat number %q", arg)
	}
	return n - 1, nil
}

// PrintStream copies the data of s to w until the stream ends and returns
// the stream error, if any.
func PrintStream(w io.Writer, s *llm.Stream) error {
	for {
		ev, err := s.Recv()
		if err == io.EOF {
			return nil
		}
		switch ev.Type {
		case llm.EventData:
			if _, werr := io.WriteString(w, ev.Text); werr != nil {
				s.Cancel()
				return werr
			}
		case llm.EventError:
			return ev.Err
		}
	}
}
