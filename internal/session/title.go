// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/hopla/internal/llm"
	"github.com/jeranaias/hopla/internal/model"
	"github.com/jeranaias/hopla/internal/util"
)

const (
	// TitleExcerptSize is the number of trailing messages sent for titling.
	TitleExcerptSize = 6

	// MaxTitleRunes bounds a sanitized title.
	MaxTitleRunes = 60

	// FallbackTitle is used when no better title is available.
	FallbackTitle = "New Chat"

	titlePrompt = "Generate a concise, meaningful chat title (3-6 words) based on this conversation summary. Return only the title without punctuation: \n"
)

var quoteRuns = regexp.MustCompile("[\"'`]+")

// SanitizeTitle flattens s to one line, strips quotes and backticks, and
// truncates it to MaxTitleRunes.
func SanitizeTitle(s string) string {
	t := norm.NFC.String(s)
	t = strings.ReplaceAll(t, "\n", " ")
	t = quoteRuns.ReplaceAllString(t, "")
	t = strings.TrimSpace(t)
	return strings.TrimSpace(util.TruncateRunesNoEllipsis(t, MaxTitleRunes))
}

// TitleExcerpt renders the last TitleExcerptSize messages as "ROLE: content"
// lines, oldest first.
func TitleExcerpt(chat *model.Chat) string {
	var sb strings.Builder
	for _, msg := range chat.Tail(TitleExcerptSize) {
		sb.WriteString(msg.Role().String())
		sb.WriteString(": ")
		sb.WriteString(msg.Content())
		sb.WriteString("\n")
	}
	return sb.String()
}

// TitlePrompt is the instruct prompt for chat.
func TitlePrompt(chat *model.Chat) string {
	return titlePrompt + TitleExcerpt(chat)
}

// FallbackFor returns the sanitized last user message, or FallbackTitle.
func FallbackFor(chat *model.Chat) string {
	if msg := chat.LastUserMessage(); msg != nil && strings.TrimSpace(msg.Content()) != "" {
		if t := SanitizeTitle(msg.Content()); t != "" {
			return t
		}
	}
	return FallbackTitle
}

// GenerateTitle sets and returns the title of chat. A nil provider means
// external AI is off and the fallback is used. Chats without messages are
// left untouched and yield "".
func GenerateTitle(ctx context.Context, provider llm.Provider, chat *model.Chat) string {
	if chat.IsEmpty() {
		return ""
	}

	title := FallbackFor(chat)
	if provider != nil {
		if generated := askTitle(ctx, provider, chat); generated != "" {
			title = generated
		}
	}
	chat.SetTitle(title)
	return title
}

func askTitle(ctx context.Context, provider llm.Provider, chat *model.Chat) string {
	stream, err := provider.Instruct(ctx, TitlePrompt(chat))
	if err != nil {
		return ""
	}
	text, err := llm.Collect(stream)
	if err != nil {
		return ""
	}
	return SanitizeTitle(text)
}
