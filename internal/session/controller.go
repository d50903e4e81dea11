// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/hopla/internal/llm"
	"github.com/jeranaias/hopla/internal/model"
	"github.com/jeranaias/hopla/internal/storage"
)

// Input placeholders replaced by Send.
const (
	PlaceholderRequest  = "@request@"
	PlaceholderResponse = "@response@"
	PlaceholderNotes    = "@notes@"
)

// Status texts.
const (
	StatusThinking  = "Thinking..."
	StatusCancelled = "Cancelled"
)

// DefaultRefreshInterval throttles OnUpdate while text streams in.
const DefaultRefreshInterval = 100 * time.Millisecond

// ErrBusy is returned by Send while a reply is still streaming.
var ErrBusy = errors.New("a chat request is already running")

// RequestResponse is the HTTP exchange the user is looking at.
type RequestResponse struct {
	Request  string
	Response string
}

// Resolver returns chat providers.
type Resolver interface {
	ChatProvider() (llm.Provider, error)
	Provider(name string) (llm.Provider, error)
}

// Options configures a Controller.
type Options struct {
	Store    storage.ChatStore
	Resolver Resolver

	// ExternalAI enables AI titles. Without it titles come from the last
	// user message.
	ExternalAI bool

	// RefreshInterval defaults to DefaultRefreshInterval.
	RefreshInterval time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// Controller is the chat panel without its widgets.
//
// Controller is safe for concurrent use.
type Controller struct {
	store    storage.ChatStore
	resolver Resolver
	logger   *slog.Logger
	now      func() time.Time
	interval time.Duration

	externalAI atomic.Bool

	mu       sync.Mutex
	chats    *model.ChatCollection
	selected int
	provider string
	status   string
	active   *turn

	listenersMu sync.Mutex
	listeners   []func()

	turns sync.WaitGroup
}

// turn is reserved before the provider is resolved; stream and provider are
// set once the stream has started. All fields are guarded by Controller.mu.
type turn struct {
	chat      *model.Chat
	stream    *llm.Stream
	provider  llm.Provider
	cancelled bool
}

// New creates a controller. Call Load before use.
func New(opts Options) *Controller {
	c := &Controller{
		store:    opts.Store,
		resolver: opts.Resolver,
		logger:   opts.Logger,
		now:      opts.Now,
		interval: opts.RefreshInterval,
		chats:    model.NewChatCollection(),
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.interval <= 0 {
		c.interval = DefaultRefreshInterval
	}
	c.externalAI.Store(opts.ExternalAI)
	return c
}

// SetExternalAI switches AI titles on or off.
func (c *Controller) SetExternalAI(enabled bool) {
	c.externalAI.Store(enabled)
}

// SetProvider pins chat to a provider name. An empty name uses the default
// chat provider.
func (c *Controller) SetProvider(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.provider = name
}

// OnUpdate registers fn to be called whenever the chat list, the selected
// chat or the status changes.
func (c *Controller) OnUpdate(fn func()) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) notify() {
	c.listenersMu.Lock()
	listeners := append([]func(){}, c.listeners...)
	c.listenersMu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// =============================================================================
// CHAT LIST
// =============================================================================

// Load reads the stored chats. An empty store gets one fresh chat. The
// newest chat is selected.
func (c *Controller) Load(ctx context.Context) error {
	chats, err := c.store.Load(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.chats = chats
	c.selected = 0
	created := c.ensureChatLocked()
	c.mu.Unlock()

	if created {
		c.save(ctx)
	}
	c.notify()
	return nil
}

func (c *Controller) ensureChatLocked() bool {
	if c.chats.Len() > 0 {
		return false
	}
	c.chats.NewChat(c.now())
	c.selected = 0
	return true
}

func (c *Controller) save(ctx context.Context) {
	c.mu.Lock()
	chats := c.chats
	c.mu.Unlock()
	if err := c.store.Save(ctx, chats); err != nil {
		c.logger.Error("failed to save chats", "error", err)
	}
}

// Chats returns the collection.
func (c *Controller) Chats() *model.ChatCollection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chats
}

// ChatList returns the display labels, newest first.
func (c *Controller) ChatList() []string {
	chats := c.Chats().Display()
	labels := make([]string, len(chats))
	for i, chat := range chats {
		labels[i] = chat.Label()
	}
	return labels
}

// Selected returns the selected display index.
func (c *Controller) Selected() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Current returns the selected chat.
func (c *Controller) Current() *model.Chat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocked()
}

func (c *Controller) currentLocked() *model.Chat {
	c.ensureChatLocked()
	chat, err := storage.Find(c.chats, c.selected)
	if err != nil {
		c.selected = 0
		chat, _ = storage.Find(c.chats, 0)
	}
	return chat
}

// Select makes the chat at displayIndex current.
func (c *Controller) Select(displayIndex int) error {
	c.mu.Lock()
	if _, err := storage.Find(c.chats, displayIndex); err != nil {
		c.mu.Unlock()
		return err
	}
	c.selected = displayIndex
	c.status = ""
	c.mu.Unlock()

	c.notify()
	return nil
}

// NewChat creates and selects an empty chat.
func (c *Controller) NewChat(ctx context.Context) *model.Chat {
	c.mu.Lock()
	chat := c.chats.NewChat(c.now())
	c.selected = 0
	c.status = ""
	c.mu.Unlock()

	c.save(ctx)
	c.notify()
	return chat
}

// Delete removes the chat at displayIndex. The chat receiving a reply can
// not be deleted.
func (c *Controller) Delete(ctx context.Context, displayIndex int) error {
	c.mu.Lock()
	chat, err := storage.Find(c.chats, displayIndex)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if c.active != nil && c.active.chat == chat {
		c.mu.Unlock()
		return ErrBusy
	}
	if err := c.chats.Delete(c.chats.IndexOf(chat)); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.selected >= c.chats.Len() {
		c.selected = c.chats.Len() - 1
	}
	if c.selected < 0 {
		c.selected = 0
	}
	c.ensureChatLocked()
	c.mu.Unlock()

	c.save(ctx)
	c.notify()
	return nil
}

// SetNotes replaces the notes of the current chat.
func (c *Controller) SetNotes(ctx context.Context, notes string) {
	c.Current().SetNotes(notes)
	c.save(ctx)
	c.notify()
}

// Status returns the status line text.
func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) setStatus(status string) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
	c.notify()
}

// Busy reports whether a reply is streaming.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// =============================================================================
// SEND / CANCEL
// =============================================================================

// ExpandInput replaces the request, response and notes placeholders.
func ExpandInput(input string, rr RequestResponse, notes string) string {
	return strings.NewReplacer(
		PlaceholderRequest, rr.Request,
		PlaceholderResponse, rr.Response,
		PlaceholderNotes, notes,
	).Replace(input)
}

func (c *Controller) resolve() (llm.Provider, error) {
	c.mu.Lock()
	name := c.provider
	c.mu.Unlock()
	if name != "" {
		return c.resolver.Provider(name)
	}
	return c.resolver.ChatProvider()
}

// Send appends input to the current chat and streams the reply into a new
// assistant message. It returns once the stream has started; Wait blocks
// until the reply and its title are done. Blank input is ignored.
func (c *Controller) Send(ctx context.Context, input string, rr RequestResponse) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}

	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return ErrBusy
	}
	chat := c.currentLocked()
	t := &turn{chat: chat}
	c.active = t
	input = ExpandInput(input, rr, chat.Notes())
	chat.AddMessage(model.NewMessage(model.RoleUser, input))
	c.status = StatusThinking
	c.mu.Unlock()

	c.save(ctx)
	c.notify()

	provider, err := c.resolve()
	if err != nil {
		c.logger.Warn("no chat provider", "error", err)
		c.release(t, llm.ErrNoProvider.Error())
		return fmt.Errorf("chat: %w", err)
	}

	answer := chat.AddMessage(model.NewMessage(model.RoleAssistant, ""))
	stream, err := provider.Chat(ctx, chat)
	if err != nil {
		c.logger.Error("AI chat error", "provider", provider.Name(), "error", err)
		chat.RemoveLast(answer)
		c.release(t, err.Error())
		return fmt.Errorf("chat: %w", err)
	}

	c.mu.Lock()
	t.stream, t.provider = stream, provider
	cancelled := t.cancelled
	c.mu.Unlock()
	if cancelled {
		provider.CancelCurrentChatRequest()
		stream.Cancel()
	}

	c.turns.Add(1)
	go c.run(ctx, t, answer)
	return nil
}

// release clears a turn whose stream never started.
func (c *Controller) release(t *turn, status string) {
	c.mu.Lock()
	if c.active == t {
		c.active = nil
	}
	c.status = status
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) run(ctx context.Context, t *turn, answer *model.Message) {
	defer c.turns.Done()

	refresh := rate.Sometimes{Interval: c.interval}
	var failed string

	llm.Drive(t.stream, llm.CallbackFuncs{
		Data: func(chunk string) {
			if chunk == "" {
				return
			}
			answer.Append(chunk)
			refresh.Do(c.notify)
		},
		Error: func(message string) {
			failed = message
		},
	})

	c.mu.Lock()
	if c.active == t {
		c.active = nil
	}
	c.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	if failed != "" {
		c.logger.Debug("chat stream ended with error", "provider", t.provider.Name(), "error", failed)
		if answer.Len() == 0 {
			t.chat.RemoveLast(answer)
		}
		c.save(ctx)
		c.setStatus(failed)
		return
	}

	c.save(ctx)
	c.setStatus("")

	var titler llm.Provider
	if c.externalAI.Load() {
		if p, err := c.resolver.ChatProvider(); err == nil {
			titler = p
		}
	}
	GenerateTitle(ctx, titler, t.chat)
	c.save(ctx)
	c.notify()
}

// Cancel stops the streaming reply, if any. Partial text is kept.
func (c *Controller) Cancel() {
	c.mu.Lock()
	t := c.active
	if t == nil {
		c.mu.Unlock()
		return
	}
	t.cancelled = true
	stream, provider := t.stream, t.provider
	c.mu.Unlock()

	if stream != nil {
		provider.CancelCurrentChatRequest()
		stream.Cancel()
	}
	c.setStatus(StatusCancelled)
}

// Wait blocks until every started reply, including its title, is done.
func (c *Controller) Wait() {
	c.turns.Wait()
}
