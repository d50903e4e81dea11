// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent scans HTTP exchanges for security issues with an LLM.
//
// The "Agent Scan" prompt is sent through Instruct together with the
// request and response. The model answers with a JSON array of issues,
// usually inside a markdown fence, which is decoded and reported to an
// IssueSink.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/hopla/internal/llm"
	"github.com/jeranaias/hopla/internal/prompt"
)

// =============================================================================
// ISSUE TYPES
// =============================================================================

// Severity of a reported issue.
type Severity string

const (
	SeverityHigh        Severity = "high"
	SeverityMedium      Severity = "medium"
	SeverityLow         Severity = "low"
	SeverityInformation Severity = "information"
)

// ParseSeverity maps model output to a Severity. Anything unknown is
// information.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	case SeverityLow:
		return SeverityLow
	default:
		return SeverityInformation
	}
}

// Confidence of a reported issue.
type Confidence string

const (
	ConfidenceCertain   Confidence = "certain"
	ConfidenceFirm      Confidence = "firm"
	ConfidenceTentative Confidence = "tentative"
)

// ParseConfidence maps model output to a Confidence. Anything unknown is
// tentative.
func ParseConfidence(s string) Confidence {
	switch Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceCertain:
		return ConfidenceCertain
	case ConfidenceFirm:
		return ConfidenceFirm
	default:
		return ConfidenceTentative
	}
}

// Exchange is one HTTP request/response pair.
type Exchange struct {
	URL      string `json:"url,omitempty"`
	Request  string `json:"request"`
	Response string `json:"response"`
}

// Issue is a finding attached to the exchange it was found in.
type Issue struct {
	Name        string     `json:"name"`
	Detail      string     `json:"detail"`
	Remediation string     `json:"remediation"`
	URL         string     `json:"url,omitempty"`
	Severity    Severity   `json:"severity"`
	Confidence  Confidence `json:"confidence"`
}

// IssueSink receives every issue found.
type IssueSink interface {
	AddIssue(issue Issue)
}

// SinkFunc adapts a function to IssueSink.
type SinkFunc func(issue Issue)

// AddIssue calls f.
func (f SinkFunc) AddIssue(issue Issue) {
	f(issue)
}

// rawIssue is the shape the model is asked to produce.
type rawIssue struct {
	Name        string `json:"name"`
	Detail      string `json:"detail"`
	Severity    string `json:"severity"`
	Confidence  string `json:"confidence"`
	Remediation string `json:"remediation"`
}

// =============================================================================
// PARSING
// =============================================================================

// ExtractJSON returns the body of the first ```json fence, else of the first
// bare ``` fence, else the whole text, trimmed.
func ExtractJSON(text string) string {
	body := text
	if i := strings.Index(body, "```json"); i >= 0 {
		body = body[i+len("```json"):]
		if j := strings.Index(body, "```"); j >= 0 {
			body = body[:j]
		}
	} else if i := strings.Index(body, "```"); i >= 0 {
		body = body[i+len("```"):]
		if j := strings.Index(body, "```"); j >= 0 {
			body = body[:j]
		}
	}
	return strings.TrimSpace(body)
}

// ParseIssues decodes the model answer into issues for ex. An empty answer
// or a JSON null yields no issues.
func ParseIssues(answer string, ex Exchange) ([]Issue, error) {
	body := ExtractJSON(answer)
	if body == "" {
		return nil, nil
	}

	var raw []rawIssue
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, &ParseError{Answer: answer, Err: err}
	}

	issues := make([]Issue, 0, len(raw))
	for _, r := range raw {
		issues = append(issues, Issue{
			Name:        r.Name,
			Detail:      r.Detail,
			Remediation: r.Remediation,
			URL:         ex.URL,
			Severity:    ParseSeverity(r.Severity),
			Confidence:  ParseConfidence(r.Confidence),
		})
	}
	return issues, nil
}

// ParseError reports an answer that is not a JSON issue list.
type ParseError struct {
	Answer string
	Err    error
}

func (e *ParseError) Error() string {
	return "failed to parse agent response: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// =============================================================================
// AGENT
// =============================================================================

// ErrNoScanPrompt is returned when the prompt library has no Agent Scan
// entry.
var ErrNoScanPrompt = errors.New("agent scan prompt not found")

// Agent runs scans through one provider.
type Agent struct {
	Provider llm.Provider
	Prompts  *prompt.Library
	Sink     IssueSink
	Logger   *slog.Logger
}

// Prompt builds the scan prompt for ex.
func (a *Agent) Prompt(ex Exchange) (string, error) {
	lib := a.Prompts
	if lib == nil {
		lib = prompt.Defaults()
	}
	p, ok := lib.Prompt(prompt.AgentScan)
	if !ok || strings.TrimSpace(p.Content) == "" {
		return "", ErrNoScanPrompt
	}
	return p.Content + "\n\nRequest:\n" + ex.Request + "\n\nResponse:\n" + ex.Response, nil
}

func (a *Agent) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// Scan asks the model about ex and reports the issues found to the sink.
func (a *Agent) Scan(ctx context.Context, ex Exchange) ([]Issue, error) {
	if a.Provider == nil {
		return nil, llm.ErrNoProvider
	}
	text, err := a.Prompt(ex)
	if err != nil {
		return nil, err
	}

	stream, err := a.Provider.Instruct(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("agent instruct error: %w", err)
	}
	answer, err := llm.Collect(stream)
	if err != nil {
		a.logger().Error("Agent AI error", "provider", a.Provider.Name(), "error", err)
		return nil, fmt.Errorf("agent AI error: %w", err)
	}

	issues, err := ParseIssues(answer, ex)
	if err != nil {
		a.logger().Error("Agent parsing error", "error", err, "answer", answer)
		return nil, err
	}

	if a.Sink != nil {
		for _, issue := range issues {
			a.Sink.AddIssue(issue)
		}
	}
	a.logger().Info("agent finished", "url", ex.URL, "issues", len(issues))
	return issues, nil
}

// Result is the outcome of one exchange in a batch.
type Result struct {
	Exchange Exchange
	Issues   []Issue
	Err      error
}

// DefaultConcurrency bounds ScanAll when limit is not positive.
const DefaultConcurrency = 4

// ScanAll scans every exchange with at most limit requests in flight.
// Per-exchange failures are reported in their Result; the returned error is
// only set when ctx ends the batch.
func (a *Agent) ScanAll(ctx context.Context, exchanges []Exchange, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	results := make([]Result, len(exchanges))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, ex := range exchanges {
		i, ex := i, ex
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result{Exchange: ex, Err: err}
				return err
			}
			issues, err := a.Scan(gctx, ex)
			results[i] = Result{Exchange: ex, Issues: issues, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// Summary renders the end-of-scan message.
func Summary(count int) string {
	if count == 0 {
		return "Agent finished. No issues found."
	}
	return fmt.Sprintf("Agent finished. %d issues found.", count)
}
