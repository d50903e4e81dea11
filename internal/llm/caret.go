// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import "strings"

// Completion prompt placeholders.
const (
	PlaceholderRequest = "@request@"
	PlaceholderPrefix  = "@prefix@"
	PlaceholderSuffix  = "@suffix@"
	PlaceholderLine    = "@line@"
)

// CaretContext is the text being edited and the caret byte offset in it.
type CaretContext struct {
	Request string
	Caret   int
}

func (c CaretContext) caret() int {
	switch {
	case c.Caret < 0:
		return 0
	case c.Caret > len(c.Request):
		return len(c.Request)
	}
	return c.Caret
}

// Prefix is the text before the caret.
func (c CaretContext) Prefix() string {
	return c.Request[:c.caret()]
}

// Suffix is the text after the caret.
func (c CaretContext) Suffix() string {
	return c.Request[c.caret():]
}

// Line is the current line up to the caret.
func (c CaretContext) Line() string {
	prefix := c.Prefix()
	if i := strings.LastIndexByte(prefix, '\n'); i >= 0 {
		prefix = prefix[i+1:]
	}
	return strings.TrimSuffix(prefix, "\r")
}

// Render substitutes the caret placeholders in template.
func (c CaretContext) Render(template string) string {
	return strings.NewReplacer(
		PlaceholderRequest, c.Request,
		PlaceholderPrefix, c.Prefix(),
		PlaceholderSuffix, c.Suffix(),
		PlaceholderLine, c.Line(),
	).Replace(template)
}

// Candidates expands one completion response part into suggestions: the
// part itself, preceded by its first word when it contains a space.
func Candidates(part string) []string {
	if i := strings.IndexByte(part, ' '); i > 0 {
		return []string{part[:i], part}
	}
	return []string{part}
}
