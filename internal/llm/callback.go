// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import "io"

// Callback receives the events of one streaming operation: OnData zero or
// more times, then exactly one of OnDone or OnError.
type Callback interface {
	OnData(chunk string)
	OnDone()
	OnError(message string)
}

// CallbackFuncs adapts plain functions to Callback. Nil fields are ignored.
type CallbackFuncs struct {
	Data  func(chunk string)
	Done  func()
	Error func(message string)
}

func (f CallbackFuncs) OnData(chunk string) {
	if f.Data != nil {
		f.Data(chunk)
	}
}

func (f CallbackFuncs) OnDone() {
	if f.Done != nil {
		f.Done()
	}
}

func (f CallbackFuncs) OnError(message string) {
	if f.Error != nil {
		f.Error(message)
	}
}

// Drive reads s to the end on the calling goroutine and forwards every event
// to cb.
func Drive(s *Stream, cb Callback) {
	for {
		ev, err := s.Recv()
		if err == io.EOF {
			return
		}
		switch ev.Type {
		case EventData:
			cb.OnData(ev.Text)
		case EventDone:
			cb.OnDone()
		case EventError:
			cb.OnError(ev.Err.Error())
		}
	}
}
