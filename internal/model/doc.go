// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the chat data structures shared by providers,
// storage and the session controller.
//
// # Key Types
//
//   - Message: role plus content held in a single-writer, multi-reader cell
//   - Chat: an append-only message sequence with title, notes and timestamp
//   - ChatCollection: creation-ordered chats with a reversed display view
//
// A message that is being streamed into is always the last message of its
// chat. The stream worker is its only writer; any goroutine may read it and
// will observe a consistent prefix of the final content.
//
// # Usage
//
//	chats := model.NewChatCollection()
//	chat := chats.NewChat(time.Now())
//	chat.AddMessage(model.NewMessage(model.RoleUser, "hello"))
//	reply := chat.AddMessage(model.NewMessage(model.RoleAssistant, ""))
//	reply.Append("hi")
package model
