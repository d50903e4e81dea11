// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/hopla/internal/llm"
	"github.com/jeranaias/hopla/internal/model"
	"github.com/jeranaias/hopla/internal/session"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// HistoryFileName is the name of the REPL history file in the config dir.
const HistoryFileName = "chat_history"

// completionTimeout bounds one Tab completion request.
const completionTimeout = 5 * time.Second

// LineReader reads one line of input.
type LineReader interface {
	ReadInput(prompt string) (string, error)
}

// ChatCLI provides line editing, history and Tab completion for the REPL.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads historyFile, if present.
func NewChatCLI(historyFile string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &ChatCLI{line: line, historyFile: historyFile}
	c.LoadHistory()
	return c
}

// SetCompleter routes Tab completion through comp. Candidates are appended
// to the current line.
func (c *ChatCLI) SetCompleter(comp *session.Completer) {
	c.line.SetCompleter(func(line string) []string {
		if strings.HasPrefix(line, "/") {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
		defer cancel()

		candidates, err := comp.Complete(ctx, llm.CaretContext{Request: line, Caret: len(line)})
		if err != nil {
			return nil
		}
		out := make([]string, len(candidates))
		for i, cand := range candidates {
			out[i] = line + cand
		}
		return out
	})
}

// LoadHistory loads input history from the history file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line. Non-blank lines are added to the history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory writes the history file with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// ScannerReader reads lines from a non-interactive input such as a pipe.
type ScannerReader struct {
	scanner *bufio.Scanner
}

// NewScannerReader creates a LineReader over r.
func NewScannerReader(r io.Reader) *ScannerReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return &ScannerReader{scanner: s}
}

// ReadInput returns the next line. The prompt is not printed.
func (s *ScannerReader) ReadInput(string) (string, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.scanner.Text(), nil
}

// =============================================================================
// REPL
// =============================================================================

// Providers is the provider information shown by the REPL.
type Providers interface {
	EnabledProviders() []llm.ProviderType
	ProviderName(p llm.Purpose) string
}

// ChatOptions configures a ChatREPL.
type ChatOptions struct {
	Controller *session.Controller
	Providers  Providers

	// Out defaults to stdout.
	Out io.Writer

	// Width is used for the chat list. Zero uses the terminal width.
	Width int

	// Interrupts cancel the reply being streamed. Defaults to os.Interrupt.
	Interrupts []os.Signal
}

// ChatREPL is the interactive chat loop over a session.Controller.
type ChatREPL struct {
	ctrl       *session.Controller
	providers  Providers
	width      int
	interrupts []os.Signal

	rr     session.RequestResponse
	pinned string

	mu      sync.Mutex
	out     io.Writer
	answer  *model.Message
	printed int
}

// NewChatREPL creates a REPL and subscribes it to controller updates.
func NewChatREPL(opts ChatOptions) *ChatREPL {
	r := &ChatREPL{
		ctrl:       opts.Controller,
		providers:  opts.Providers,
		out:        opts.Out,
		width:      opts.Width,
		interrupts: opts.Interrupts,
	}
	if r.out == nil {
		r.out = os.Stdout
	}
	if r.width <= 0 {
		r.width = GetTerminalWidth()
	}
	if len(r.interrupts) == 0 {
		r.interrupts = []os.Signal{os.Interrupt}
	}
	r.ctrl.OnUpdate(r.flush)
	return r
}

func (r *ChatREPL) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// flush prints the part of the streaming answer not yet shown.
func (r *ChatREPL) flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.answer == nil {
		return
	}
	content := r.answer.Content()
	if len(content) > r.printed {
		io.WriteString(r.out, content[r.printed:])
		r.printed = len(content)
	}
}

// Run reads lines from in until EOF, Ctrl+C at the prompt, /quit or ctx
// is done.
func (r *ChatREPL) Run(ctx context.Context, in LineReader) error {
	r.printWelcome()
	for ctx.Err() == nil {
		input, err := in.ReadInput(PromptStyle.Render("hopla> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				r.printf("\n")
				return nil
			}
			return err
		}

		more, err := r.Execute(ctx, input)
		if err != nil {
			r.printf("%s %v\n", ErrorStyle.Render("[Error]"), err)
		}
		if !more {
			return nil
		}
	}
	return nil
}

// Execute handles one input line: a slash command or a chat message. It
// returns false when the REPL should exit.
func (r *ChatREPL) Execute(ctx context.Context, input string) (bool, error) {
	input = strings.TrimSpace(input)
	switch {
	case input == "":
		return true, nil
	case strings.HasPrefix(input, "/"):
		return r.handleSlashCommand(ctx, input)
	case strings.EqualFold(input, "exit"), strings.EqualFold(input, "quit"):
		return false, nil
	}
	return true, r.send(ctx, input)
}

// send streams one reply. An interrupt cancels the reply and returns to the
// prompt.
func (r *ChatREPL) send(ctx context.Context, input string) error {
	turnCtx, stop := signal.NotifyContext(ctx, r.interrupts...)
	defer stop()

	chat := r.ctrl.Current()
	hadTitle := chat.HasTitle()

	if err := r.ctrl.Send(turnCtx, input, r.rr); err != nil {
		return err
	}

	answer := chat.LastMessage()
	if answer == nil || answer.Role() != model.RoleAssistant {
		return nil
	}
	r.mu.Lock()
	r.answer = answer
	r.printed = 0
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		select {
		case <-turnCtx.Done():
			r.ctrl.Cancel()
		case <-done:
		}
	}()
	r.ctrl.Wait()
	close(done)

	r.flush()
	r.mu.Lock()
	r.answer = nil
	r.mu.Unlock()
	r.printf("\n")

	switch status := r.ctrl.Status(); status {
	case "":
	case session.StatusCancelled:
		r.printf("%s\n", WarningStyle.Render("["+status+"]"))
	default:
		r.printf("%s %s\n", ErrorStyle.Render("[Error]"), status)
	}
	if !hadTitle && chat.HasTitle() {
		r.printf("%s\n", DimStyle.Render("Title: "+chat.Title()))
	}
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands. It returns false on /quit.
func (r *ChatREPL) handleSlashCommand(ctx context.Context, input string) (bool, error) {
	command, rest, _ := strings.Cut(input, " ")
	command = strings.ToLower(command)
	rest = strings.TrimSpace(rest)

	switch command {
	case "/help", "/h", "/?", "/":
		r.printHelp()

	case "/quit", "/q", "/exit":
		return false, nil

	case "/new", "/n":
		r.ctrl.NewChat(ctx)
		r.printf("%s\n", SuccessStyle.Render("[New chat]"))

	case "/list", "/l":
		r.printf("%s", ChatTable(r.ctrl.ChatList(), r.ctrl.Selected(), r.width))

	case "/open", "/o":
		idx, err := ParseChatNumber(rest)
		if err != nil {
			return true, err
		}
		if err := r.ctrl.Select(idx); err != nil {
			return true, err
		}
		r.printf("%s", Transcript(r.ctrl.Current()))

	case "/delete", "/d":
		idx, err := ParseChatNumber(rest)
		if err != nil {
			return true, err
		}
		if err := r.ctrl.Delete(ctx, idx); err != nil {
			return true, err
		}
		r.printf("%s\n", SuccessStyle.Render("[Deleted]"))

	case "/show", "/s":
		r.printf("%s", Transcript(r.ctrl.Current()))

	case "/notes":
		if rest == "" {
			notes := r.ctrl.Current().Notes()
			if notes == "" {
				notes = DimStyle.Render("(no notes)")
			}
			r.printf("%s\n", notes)
			break
		}
		r.ctrl.SetNotes(ctx, rest)
		r.printf("%s\n", SuccessStyle.Render("[Notes saved]"))

	case "/request", "/response":
		return true, r.loadExchange(command, rest)

	case "/provider", "/p":
		return true, r.handleProviderCommand(rest)

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
	return true, nil
}

func (r *ChatREPL) loadExchange(command, path string) error {
	if path == "" {
		return fmt.Errorf("usage: %s FILE", command)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if command == "/request" {
		r.rr.Request = string(data)
	} else {
		r.rr.Response = string(data)
	}
	r.printf("%s %s (%d bytes)\n", SuccessStyle.Render("[Loaded]"), strings.TrimPrefix(command, "/"), len(data))
	return nil
}

func (r *ChatREPL) handleProviderCommand(name string) error {
	if name == "" {
		r.printProviders()
		return nil
	}
	if strings.EqualFold(name, "default") {
		r.pinned = ""
		r.ctrl.SetProvider("")
		r.printf("%s %s\n", SuccessStyle.Render("[OK]"), "Using the default chat provider")
		return nil
	}
	t, err := llm.ParseProviderType(name)
	if err != nil {
		return err
	}
	r.pinned = t.String()
	r.ctrl.SetProvider(r.pinned)
	r.printf("%s Chat pinned to %s\n", SuccessStyle.Render("[OK]"), r.pinned)
	return nil
}

// =============================================================================
// DISPLAY FUNCTIONS
// =============================================================================

func (r *ChatREPL) chatProviderName() string {
	if r.pinned != "" {
		return r.pinned
	}
	if r.providers == nil {
		return ""
	}
	return r.providers.ProviderName(llm.PurposeChat)
}

func (r *ChatREPL) printWelcome() {
	r.printf("\n%s\n", TitleStyle.Render("hopla chat"))
	r.printf("%s\n", RenderSeparator(30))
	r.printf("%s%s\n", RenderLabel("Provider:", 10), ValueStyle.Render(r.chatProviderName()))
	r.printf("%s%s\n", RenderLabel("Chat:", 10), ValueStyle.Render(r.ctrl.Current().Label()))
	r.printf("\n%s\n\n", InfoStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
}

func (r *ChatREPL) printProviders() {
	r.printf("%s%s\n", RenderLabel("Chat provider:"), ValueStyle.Render(r.chatProviderName()))
	if r.providers == nil {
		return
	}
	enabled := r.providers.EnabledProviders()
	if len(enabled) == 0 {
		r.printf("%s\n", WarningStyle.Render("No provider enabled"))
		return
	}
	for _, t := range enabled {
		r.printf("  %s %s\n", RenderStatus("ok"), t)
	}
}

func (r *ChatREPL) printHelp() {
	commands := []struct {
		cmd  string
		desc string
	}{
		{"/new", "Start a new chat"},
		{"/list", "List chats, newest first"},
		{"/open N", "Open chat N"},
		{"/delete N", "Delete chat N"},
		{"/show", "Show the current chat"},
		{"/notes [text]", "Show or set the chat notes (@notes@)"},
		{"/request FILE", "Load the request used for @request@"},
		{"/response FILE", "Load the response used for @response@"},
		{"/provider [name]", "Show providers or pin one (default unpins)"},
		{"/quit", "Exit chat"},
	}

	r.printf("\n%s\n", SectionStyle.Render("Available Commands"))
	for _, c := range commands {
		r.printf("  %s  %s\n", ValueStyle.Render(fmt.Sprintf("%-18s", c.cmd)), DimStyle.Render(c.desc))
	}
	r.printf("\n%s\n\n", DimStyle.Render("Tip: Ctrl+C cancels the current reply, Ctrl+D exits, Tab completes"))
}
