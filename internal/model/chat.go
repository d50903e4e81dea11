// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// TimestampLayout is the format of Chat.Timestamp.
const TimestampLayout = "2006/01/02 15:04"

// =============================================================================
// CHAT TYPE
// =============================================================================

// Chat is an append-only message sequence with optional title and notes.
type Chat struct {
	mu        sync.RWMutex
	timestamp string
	title     *string
	notes     *string
	messages  []*Message
}

// NewChat creates an empty chat stamped with t.
func NewChat(t time.Time) *Chat {
	return &Chat{
		timestamp: t.Format(TimestampLayout),
		messages:  make([]*Message, 0),
	}
}

// Timestamp returns the creation timestamp string.
func (c *Chat) Timestamp() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timestamp
}

// Title returns the title, or "" when unset.
func (c *Chat) Title() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.title == nil {
		return ""
	}
	return *c.title
}

// HasTitle reports whether a non-blank title is set.
func (c *Chat) HasTitle() bool {
	return strings.TrimSpace(c.Title()) != ""
}

// SetTitle sets the title.
func (c *Chat) SetTitle(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.title = &title
}

// Notes returns the notes, or "" when unset.
func (c *Chat) Notes() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.notes == nil {
		return ""
	}
	return *c.notes
}

// SetNotes sets the notes.
func (c *Chat) SetNotes(notes string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = &notes
}

// Label is the text shown in chat lists: the title, else the timestamp.
func (c *Chat) Label() string {
	if c.HasTitle() {
		return c.Title()
	}
	return c.Timestamp()
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage appends msg and returns it.
func (c *Chat) AddMessage(msg *Message) *Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return msg
}

// RemoveLast drops msg if it is still the last message. It reports whether
// msg was removed. Only an assistant placeholder whose stream never started
// should be removed.
func (c *Chat) RemoveLast(msg *Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.messages)
	if n == 0 || c.messages[n-1] != msg {
		return false
	}
	c.messages[n-1] = nil
	c.messages = c.messages[:n-1]
	return true
}

// Messages returns a copy of the message slice. The messages themselves are
// shared, so their content may keep growing after the call.
func (c *Chat) Messages() []*Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Chat) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// IsEmpty reports whether the chat has no messages.
func (c *Chat) IsEmpty() bool {
	return c.Len() == 0
}

// LastMessage returns the last message, or nil.
func (c *Chat) LastMessage() *Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.messages) == 0 {
		return nil
	}
	return c.messages[len(c.messages)-1]
}

// LastUserMessage returns the most recent USER message, or nil.
func (c *Chat) LastUserMessage() *Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role() == RoleUser {
			return c.messages[i]
		}
	}
	return nil
}

// Tail returns up to n trailing messages, oldest first.
func (c *Chat) Tail(n int) []*Message {
	msgs := c.Messages()
	if n < len(msgs) {
		msgs = msgs[len(msgs)-n:]
	}
	return msgs
}

// =============================================================================
// SERIALIZATION
// =============================================================================

type chatJSON struct {
	Timestamp string     `json:"timestamp"`
	Title     *string    `json:"title"`
	Notes     *string    `json:"notes"`
	Messages  []*Message `json:"messages"`
}

// MarshalJSON encodes the chat with its current message snapshots.
func (c *Chat) MarshalJSON() ([]byte, error) {
	c.mu.RLock()
	raw := chatJSON{
		Timestamp: c.timestamp,
		Title:     c.title,
		Notes:     c.notes,
		Messages:  append([]*Message(nil), c.messages...),
	}
	c.mu.RUnlock()
	if raw.Messages == nil {
		raw.Messages = []*Message{}
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes a persisted chat.
func (c *Chat) UnmarshalJSON(data []byte) error {
	var raw chatJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for i, msg := range raw.Messages {
		if msg == nil {
			return fmt.Errorf("messages[%d] is null", i)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timestamp = raw.Timestamp
	c.title = raw.Title
	c.notes = raw.Notes
	c.messages = raw.Messages
	if c.messages == nil {
		c.messages = make([]*Message, 0)
	}
	return nil
}

// Restore builds a chat from stored fields. Nil title or notes stay unset.
func Restore(timestamp string, title, notes *string, messages []*Message) *Chat {
	if messages == nil {
		messages = make([]*Message, 0)
	}
	return &Chat{timestamp: timestamp, title: title, notes: notes, messages: messages}
}

// Fields exposes the stored fields for persistence layers.
func (c *Chat) Fields() (timestamp string, title, notes *string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timestamp, c.title, c.notes
}
