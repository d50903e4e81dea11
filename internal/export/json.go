// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"

	"github.com/jeranaias/hopla/internal/model"
)

// JSONExporter writes a chat in its storage JSON form, so the output can be
// merged back into a chats file.
type JSONExporter struct{}

// Export renders chat.
func (JSONExporter) Export(chat *model.Chat) ([]byte, error) {
	if chat == nil {
		return nil, ErrNilChat
	}
	data, err := json.MarshalIndent(chat, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// FileExtension returns ".json".
func (JSONExporter) FileExtension() string {
	return ".json"
}
