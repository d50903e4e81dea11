// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleSystem    Role = "SYSTEM"
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
)

// String returns the persisted form of the role.
func (r Role) String() string {
	return string(r)
}

// Wire returns the lower-case form providers expect on the wire.
func (r Role) Wire() string {
	return strings.ToLower(string(r))
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ParseRole accepts any casing of a known role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown message role %q", s)
	}
	return r, nil
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single chat message. Content is published as immutable
// snapshots so readers never block the stream worker appending to it.
type Message struct {
	role    Role
	content atomic.Pointer[string]

	// serializes writers; readers only load the pointer
	writeMu sync.Mutex
}

// NewMessage creates a message with the given role and initial content.
func NewMessage(role Role, content string) *Message {
	m := &Message{role: role}
	m.content.Store(&content)
	return m
}

// Role returns the message role.
func (m *Message) Role() Role {
	return m.role
}

// Content returns the current content snapshot.
func (m *Message) Content() string {
	if p := m.content.Load(); p != nil {
		return *p
	}
	return ""
}

// Append adds chunk to the end of the content.
func (m *Message) Append(chunk string) {
	if chunk == "" {
		return
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	next := m.Content() + chunk
	m.content.Store(&next)
}

// Len returns the content length in bytes.
func (m *Message) Len() int {
	return len(m.Content())
}

// messageJSON is the persisted shape of a Message.
type messageJSON struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// MarshalJSON encodes the current snapshot.
func (m *Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(messageJSON{Role: m.role, Content: m.Content()})
}

// UnmarshalJSON decodes a persisted message.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw messageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	role, err := ParseRole(string(raw.Role))
	if err != nil {
		return err
	}
	m.role = role
	m.content.Store(&raw.Content)
	return nil
}
