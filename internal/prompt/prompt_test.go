// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/hopla/internal/llm"
	"github.com/jeranaias/hopla/internal/llm/llmtest"
)

func TestDefaults(t *testing.T) {
	lib := Defaults()

	var names []string
	for _, q := range lib.QuickActions {
		names = append(names, q.Name)
	}
	assert.Equal(t, []string{"Summarize", "Explain", "Find Vulns"}, names)

	q, ok := lib.QuickAction(FindVulns)
	require.True(t, ok)
	assert.Equal(t, "Analyze this for potential security vulnerabilities.", q.Prompt)

	p, ok := lib.Prompt(FixGrammar)
	require.True(t, ok)
	assert.Equal(t, "Fix grammar in the following text:", p.Content)

	_, ok = lib.Prompt(AgentScan)
	assert.True(t, ok)

	_, ok = lib.Prompt("Missing")
	assert.False(t, ok)
}

func TestRender(t *testing.T) {
	q := QuickAction{Name: "x", Prompt: "Explain:"}
	assert.Equal(t, "Explain:\n\nGET / HTTP/1.1", q.Render("GET / HTTP/1.1"))
	assert.Equal(t, "Explain:", q.Render(""))

	q = QuickAction{Name: "y", Prompt: "Look at <@input@> closely"}
	assert.Equal(t, "Look at <abc> closely", q.Render("abc"))
}

func TestLoadMergesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	content := `
quick_actions:
  - name: Explain
    prompt: Explain briefly.
  - name: Decode
    prompt: "Decode this value: @input@"
prompts:
  - name: Report
    content: Write a finding report.
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	lib, err := Load(path)
	require.NoError(t, err)

	assert.Len(t, lib.QuickActions, 4)
	q, _ := lib.QuickAction(Explain)
	assert.Equal(t, "Explain briefly.", q.Prompt)
	q, ok := lib.QuickAction("Decode")
	require.True(t, ok)
	assert.Equal(t, "Decode this value: abc", q.Render("abc"))

	p, ok := lib.Prompt("Report")
	require.True(t, ok)
	assert.Equal(t, "Report", p.Description)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("quick_actions:\n  - prompt: no name\n"), 0600))
	_, err = Load(path)
	assert.Error(t, err)

	lib, err := Load("")
	require.NoError(t, err)
	assert.Len(t, lib.Prompts, 3)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, Defaults().Save(path))

	lib, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), lib)
}

func TestQuickActionRun(t *testing.T) {
	fake := llmtest.New("FAKE", "It ", "fetches /.")
	q, _ := Defaults().QuickAction(Explain)

	stream, err := q.Run(context.Background(), fake, "GET / HTTP/1.1")
	require.NoError(t, err)
	text, err := llm.Collect(stream)
	require.NoError(t, err)

	assert.Equal(t, "It fetches /.", text)
	assert.Equal(t, []string{"Explain what this request does.\n\nGET / HTTP/1.1"}, fake.Prompts)

	_, err = q.Run(context.Background(), nil, "x")
	assert.ErrorIs(t, err, llm.ErrNoProvider)
}
