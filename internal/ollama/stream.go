// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/jeranaias/hopla/internal/llm"
)

// StreamReader parses an NDJSON response one line at a time.
type StreamReader struct {
	reader *bufio.Reader
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{reader: bufio.NewReader(r)}
}

// Next returns the next parsed line. Blank and malformed lines yield
// (nil, nil); io.EOF marks the end of the body.
func (s *StreamReader) Next() (*StreamLine, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil {
		if len(line) == 0 {
			return nil, err
		}
		// last line without trailing newline
	}

	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}

	var parsed StreamLine
	if jsonErr := json.Unmarshal(line, &parsed); jsonErr != nil {
		return nil, nil
	}
	return &parsed, nil
}

// Process emits the text that content selects from each line until a done
// line or the end of the body. Cancellation is checked before every line.
func (s *StreamReader) Process(ctx context.Context, content func(*StreamLine) string, emit llm.Emit) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := s.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &llm.ClientError{Type: llm.ErrTypeConnection, Message: "stream read failed", Cause: err}
		}
		if line == nil {
			continue
		}
		if line.Error != "" {
			return &llm.ClientError{Type: llm.ErrTypeInvalidResponse, Message: line.Error}
		}

		if text := content(line); text != "" {
			if err := emit(text); err != nil {
				return err
			}
		}
		if line.Done {
			return nil
		}
	}
}
