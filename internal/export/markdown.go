// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/hopla/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter writes a chat as Markdown with YAML front matter.
type MarkdownExporter struct {
	// Now stamps the export. Nil omits the exported field.
	Now func() time.Time
}

type frontMatter struct {
	Title    string `yaml:"title"`
	Created  string `yaml:"created"`
	Messages int    `yaml:"messages"`
	Exported string `yaml:"exported,omitempty"`
}

// Export renders chat.
func (e *MarkdownExporter) Export(chat *model.Chat) ([]byte, error) {
	if chat == nil {
		return nil, ErrNilChat
	}
	msgs := chat.Messages()

	fm := frontMatter{
		Title:    chat.Label(),
		Created:  chat.Timestamp(),
		Messages: len(msgs),
	}
	if e.Now != nil {
		fm.Exported = e.Now().Format(time.RFC3339)
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("front matter: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(header)
	sb.WriteString("---\n\n")
	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(chat.Label())))

	if notes := strings.TrimSpace(chat.Notes()); notes != "" {
		sb.WriteString("## Notes\n\n")
		sb.WriteString(notes)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Conversation\n\n")
	for i, msg := range msgs {
		sb.WriteString(fmt.Sprintf("### %s\n\n", roleLabel(msg.Role())))
		sb.WriteString(strings.TrimSpace(msg.Content()))
		sb.WriteString("\n\n")
		if i < len(msgs)-1 {
			sb.WriteString("---\n\n")
		}
	}
	return []byte(sb.String()), nil
}

// FileExtension returns ".md".
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

func roleLabel(role model.Role) string {
	switch role {
	case model.RoleUser:
		return "[User]"
	case model.RoleAssistant:
		return "[Assistant]"
	case model.RoleSystem:
		return "[System]"
	default:
		return "Unknown"
	}
}

// escapeMarkdown escapes characters that would break a heading.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}
