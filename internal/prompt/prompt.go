// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt holds the quick actions and prompt library.
//
// The built-in entries can be extended or overridden by a YAML file:
//
//	quick_actions:
//	  - name: Find Vulns
//	    prompt: List injection points in this request.
//	prompts:
//	  - name: Agent Scan
//	    description: Scan for issues
//	    content: ...
//
// Entries match by name; unknown names are appended.
package prompt

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/hopla/internal/llm"
	"github.com/jeranaias/hopla/internal/util"
)

// Built-in entry names.
const (
	Summarize  = "Summarize"
	Explain    = "Explain"
	FindVulns  = "Find Vulns"
	FixGrammar = "Fix Grammar"
	Analyze    = "Analyze"
	AgentScan  = "Agent Scan"
)

// InputPlaceholder marks where the selected text goes in a quick action
// prompt. Without it the text is appended after a blank line.
const InputPlaceholder = "@input@"

// QuickAction is a one-shot instruction run against the selected text.
type QuickAction struct {
	Name   string `yaml:"name"`
	Prompt string `yaml:"prompt"`
}

// Render builds the instruct prompt for input.
func (q QuickAction) Render(input string) string {
	if strings.Contains(q.Prompt, InputPlaceholder) {
		return strings.ReplaceAll(q.Prompt, InputPlaceholder, input)
	}
	if input == "" {
		return q.Prompt
	}
	return q.Prompt + "\n\n" + input
}

// Run streams the answer of provider for input.
func (q QuickAction) Run(ctx context.Context, provider llm.Provider, input string) (*llm.Stream, error) {
	if provider == nil {
		return nil, llm.ErrNoProvider
	}
	return provider.Instruct(ctx, q.Render(input))
}

// Prompt is a reusable text inserted into the chat input.
type Prompt struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Content     string `yaml:"content"`
}

// Library is the set of quick actions and prompts.
type Library struct {
	QuickActions []QuickAction `yaml:"quick_actions"`
	Prompts      []Prompt      `yaml:"prompts"`
}

const agentScanPrompt = `You are a web security analyst. Review the HTTP request and response below and report security issues.
Answer with a JSON array inside a ` + "```json" + ` fence and nothing else. Each element has the fields:
"name" (short issue title), "detail" (evidence from the traffic), "severity" (high, medium, low or information),
"confidence" (certain, firm or tentative) and "remediation".
Return [] when nothing is found.`

// Defaults returns the built-in library.
func Defaults() *Library {
	return &Library{
		QuickActions: []QuickAction{
			{Name: Summarize, Prompt: "Summarize this HTTP request/response."},
			{Name: Explain, Prompt: "Explain what this request does."},
			{Name: FindVulns, Prompt: "Analyze this for potential security vulnerabilities."},
		},
		Prompts: []Prompt{
			{Name: FixGrammar, Description: "Fix Grammar", Content: "Fix grammar in the following text:"},
			{Name: Analyze, Description: "Analyze", Content: "Analyze the security impact of this request:"},
			{Name: AgentScan, Description: "Scan a request/response pair for issues", Content: agentScanPrompt},
		},
	}
}

// Load returns the built-in library merged with the YAML file at path. An
// empty path returns the defaults.
func Load(path string) (*Library, error) {
	lib := Defaults()
	if path == "" {
		return lib, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	var extra Library
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, fmt.Errorf("failed to decode prompts file %s: %w", path, err)
	}
	if err := lib.Merge(&extra); err != nil {
		return nil, fmt.Errorf("prompts file %s: %w", path, err)
	}
	return lib, nil
}

// Merge overrides entries of l with same-named entries of other and appends
// the rest.
func (l *Library) Merge(other *Library) error {
	for _, q := range other.QuickActions {
		if strings.TrimSpace(q.Name) == "" {
			return fmt.Errorf("quick action without name")
		}
		if i := l.quickActionIndex(q.Name); i >= 0 {
			l.QuickActions[i] = q
		} else {
			l.QuickActions = append(l.QuickActions, q)
		}
	}
	for _, p := range other.Prompts {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("prompt without name")
		}
		if p.Description == "" {
			p.Description = p.Name
		}
		if i := l.promptIndex(p.Name); i >= 0 {
			l.Prompts[i] = p
		} else {
			l.Prompts = append(l.Prompts, p)
		}
	}
	return nil
}

func (l *Library) quickActionIndex(name string) int {
	for i, q := range l.QuickActions {
		if q.Name == name {
			return i
		}
	}
	return -1
}

func (l *Library) promptIndex(name string) int {
	for i, p := range l.Prompts {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// QuickAction returns the quick action called name.
func (l *Library) QuickAction(name string) (QuickAction, bool) {
	if i := l.quickActionIndex(name); i >= 0 {
		return l.QuickActions[i], true
	}
	return QuickAction{}, false
}

// Prompt returns the prompt called name.
func (l *Library) Prompt(name string) (Prompt, bool) {
	if i := l.promptIndex(name); i >= 0 {
		return l.Prompts[i], true
	}
	return Prompt{}, false
}

// Save writes l as YAML.
func (l *Library) Save(path string) error {
	data, err := yaml.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to encode prompts: %w", err)
	}
	return util.AtomicWriteFile(path, data, 0600)
}
