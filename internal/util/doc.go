// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across hopla.
//
// # File Operations
//
//   - AtomicWriteFile: crash-safe write via temp file, fsync and rename
//   - AtomicWriteJSON: indent-encode a value and write it atomically
//
// # Text
//
//   - TruncateRunes, TruncateRunesNoEllipsis: rune-safe truncation
//   - TruncateWidth, PadWidth: column-aware truncation for terminal lists
//   - CollapseLines: fold multi-line text into a single line
package util
