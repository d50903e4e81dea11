// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists the chat collection for hopla.
//
// Two backends implement ChatStore:
//
//   - JSONStore writes {"chats":[...]} to a single file with an atomic
//     rename, matching the collection's JSON form.
//   - SQLiteStore keeps chats and messages in two tables (modernc.org/sqlite,
//     no cgo) and replaces every row in one transaction on Save.
//
// Both treat a missing store as an empty collection.
package storage
