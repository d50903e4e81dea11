// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// ChatCollection holds chats in creation order. Lists show it newest first;
// DisplayToStorage and StorageToDisplay convert between the two orders.
type ChatCollection struct {
	mu    sync.RWMutex
	chats []*Chat
}

// NewChatCollection creates an empty collection.
func NewChatCollection() *ChatCollection {
	return &ChatCollection{chats: make([]*Chat, 0)}
}

// NewChat creates an empty chat stamped with t and appends it.
func (cc *ChatCollection) NewChat(t time.Time) *Chat {
	return cc.Add(NewChat(t))
}

// Add appends chat and returns it.
func (cc *ChatCollection) Add(chat *Chat) *Chat {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.chats = append(cc.chats, chat)
	return chat
}

// Len returns the number of chats.
func (cc *ChatCollection) Len() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.chats)
}

// Get returns the chat at storage index i.
func (cc *ChatCollection) Get(i int) (*Chat, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	if i < 0 || i >= len(cc.chats) {
		return nil, fmt.Errorf("chat index %d out of range [0,%d)", i, len(cc.chats))
	}
	return cc.chats[i], nil
}

// Last returns the most recently created chat, or nil.
func (cc *ChatCollection) Last() *Chat {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	if len(cc.chats) == 0 {
		return nil
	}
	return cc.chats[len(cc.chats)-1]
}

// Chats returns the chats in creation order.
func (cc *ChatCollection) Chats() []*Chat {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	out := make([]*Chat, len(cc.chats))
	copy(out, cc.chats)
	return out
}

// Display returns the chats newest first.
func (cc *ChatCollection) Display() []*Chat {
	chats := cc.Chats()
	for i, j := 0, len(chats)-1; i < j; i, j = i+1, j-1 {
		chats[i], chats[j] = chats[j], chats[i]
	}
	return chats
}

// DisplayToStorage maps a newest-first display index to a storage index.
func (cc *ChatCollection) DisplayToStorage(display int) (int, error) {
	n := cc.Len()
	if display < 0 || display >= n {
		return -1, fmt.Errorf("display index %d out of range [0,%d)", display, n)
	}
	return n - 1 - display, nil
}

// StorageToDisplay maps a storage index to its newest-first display index.
func (cc *ChatCollection) StorageToDisplay(storage int) (int, error) {
	n := cc.Len()
	if storage < 0 || storage >= n {
		return -1, fmt.Errorf("chat index %d out of range [0,%d)", storage, n)
	}
	return n - 1 - storage, nil
}

// IndexOf returns the storage index of chat, or -1.
func (cc *ChatCollection) IndexOf(chat *Chat) int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	for i, c := range cc.chats {
		if c == chat {
			return i
		}
	}
	return -1
}

// Delete removes the chat at storage index i.
func (cc *ChatCollection) Delete(i int) error {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if i < 0 || i >= len(cc.chats) {
		return fmt.Errorf("chat index %d out of range [0,%d)", i, len(cc.chats))
	}
	cc.chats = append(cc.chats[:i], cc.chats[i+1:]...)
	return nil
}

// Replace swaps the whole collection contents, used after a reload.
func (cc *ChatCollection) Replace(chats []*Chat) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.chats = append(make([]*Chat, 0, len(chats)), chats...)
}

type collectionJSON struct {
	Chats []*Chat `json:"chats"`
}

// MarshalJSON encodes the collection as {"chats": [...]}.
func (cc *ChatCollection) MarshalJSON() ([]byte, error) {
	return json.Marshal(collectionJSON{Chats: cc.Chats()})
}

// UnmarshalJSON decodes a persisted collection.
func (cc *ChatCollection) UnmarshalJSON(data []byte) error {
	var raw collectionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for i, chat := range raw.Chats {
		if chat == nil {
			return fmt.Errorf("chats[%d] is null", i)
		}
	}
	cc.Replace(raw.Chats)
	return nil
}
