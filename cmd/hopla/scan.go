// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jeranaias/hopla/internal/agent"
	"github.com/jeranaias/hopla/internal/cli"
)

var (
	scanURL         string
	scanConcurrency int
)

var scanCmd = &cobra.Command{
	Use:   "scan <request> <response> [<request> <response>...]",
	Short: "Scan HTTP exchanges for security issues",
	Long: `Send each request/response pair to the quick action provider with the
Agent Scan prompt and print the issues it reports. Pairs are scanned
concurrently.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 || len(args)%2 != 0 {
			return fmt.Errorf("expected request/response file pairs, got %d files", len(args))
		}
		return nil
	},
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanURL, "url", "", "URL reported with the issues")
	scanCmd.Flags().IntVarP(&scanConcurrency, "concurrency", "c", agent.DefaultConcurrency, "Exchanges scanned at once")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	exchanges, err := loadExchanges(args, scanURL)
	if err != nil {
		return err
	}
	provider, err := a.router.QuickActionProvider()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var mu sync.Mutex
	count := 0
	ag := &agent.Agent{
		Provider: provider,
		Prompts:  a.prompts,
		Logger:   a.logger,
		Sink: agent.SinkFunc(func(issue agent.Issue) {
			mu.Lock()
			defer mu.Unlock()
			count++
			printIssue(out, issue)
		}),
	}

	ctx, stop := commandContext(cmd)
	defer stop()

	results, err := ag.ScanAll(ctx, exchanges, scanConcurrency)
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %v\n", cli.ErrorStyle.Render("[Error]"), r.Exchange.URL, r.Err)
		}
	}
	fmt.Fprintln(out, cli.InfoStyle.Render(agent.Summary(count)))
	return err
}

// loadExchanges reads request/response file pairs. Without url the request
// file name is reported.
func loadExchanges(paths []string, url string) ([]agent.Exchange, error) {
	exchanges := make([]agent.Exchange, 0, len(paths)/2)
	for i := 0; i+1 < len(paths); i += 2 {
		req, err := os.ReadFile(paths[i])
		if err != nil {
			return nil, err
		}
		resp, err := os.ReadFile(paths[i+1])
		if err != nil {
			return nil, err
		}
		target := url
		if target == "" {
			target = paths[i]
		}
		exchanges = append(exchanges, agent.Exchange{URL: target, Request: string(req), Response: string(resp)})
	}
	return exchanges, nil
}

func printIssue(w io.Writer, issue agent.Issue) {
	style := cli.InfoStyle
	switch issue.Severity {
	case agent.SeverityHigh:
		style = cli.ErrorStyle
	case agent.SeverityMedium:
		style = cli.WarningStyle
	}
	fmt.Fprintf(w, "%s %s %s\n", style.Render("["+string(issue.Severity)+"]"), cli.SectionStyle.Render(issue.Name), cli.DimStyle.Render("("+string(issue.Confidence)+")"))
	fmt.Fprintf(w, "  %s\n", issue.URL)
	if issue.Detail != "" {
		fmt.Fprintf(w, "  %s\n", issue.Detail)
	}
	if issue.Remediation != "" {
		fmt.Fprintf(w, "  %s %s\n", cli.LabelStyle.Width(0).Render("Remediation:"), issue.Remediation)
	}
}
