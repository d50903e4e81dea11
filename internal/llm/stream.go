// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// =============================================================================
// EVENTS
// =============================================================================

// EventType distinguishes stream events.
type EventType int

const (
	EventData EventType = iota
	EventDone
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventData:
		return "data"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one item of a Stream.
type Event struct {
	Type EventType
	Text string
	Err  error
}

// Emit delivers a data chunk to the stream consumer. It returns ErrCancelled
// once the stream has been cancelled; the worker must stop when it does.
type Emit func(chunk string) error

// =============================================================================
// STREAM
// =============================================================================

// Stream is the owned handle of one streaming call. The worker goroutine
// writes data events into a buffered channel; the consumer reads them with
// Recv or Drive. A Stream has a single consumer.
type Stream struct {
	id      string
	purpose Purpose

	ctx    context.Context
	cancel context.CancelFunc
	events chan Event

	mu        sync.Mutex
	cancelled bool
	finished  bool
	terminal  Event
	done      chan struct{}

	// consumer-owned
	terminalSent bool
}

// NewStream starts run on a new goroutine and returns its handle. run must
// deliver chunks through emit and return when the stream ends; its error
// becomes the terminal event.
func NewStream(parent context.Context, purpose Purpose, run func(ctx context.Context, emit Emit) error) *Stream {
	ctx, cancel := context.WithCancel(parent)
	s := &Stream{
		id:      uuid.NewString(),
		purpose: purpose,
		ctx:     ctx,
		cancel:  cancel,
		events:  make(chan Event, 16),
		done:    make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		defer close(s.events)
		err := run(ctx, s.emit)

		s.mu.Lock()
		s.finished = true
		cancelled := s.cancelled
		s.mu.Unlock()

		s.terminal = terminalEvent(err, cancelled)
		cancel()
	}()

	return s
}

func terminalEvent(err error, cancelled bool) Event {
	switch {
	case cancelled:
		return Event{Type: EventError, Err: ErrCancelled}
	case err == nil:
		return Event{Type: EventDone}
	case errors.Is(err, context.Canceled):
		return Event{Type: EventError, Err: ErrCancelled}
	case errors.Is(err, context.DeadlineExceeded):
		return Event{Type: EventError, Err: &ClientError{Type: ErrTypeConnection, Message: "request timed out", Cause: err}}
	default:
		return Event{Type: EventError, Err: err}
	}
}

func (s *Stream) emit(chunk string) error {
	if s.Cancelled() {
		return ErrCancelled
	}
	select {
	case s.events <- Event{Type: EventData, Text: chunk}:
		return nil
	case <-s.ctx.Done():
		return ErrCancelled
	}
}

// ID returns the unique handle id.
func (s *Stream) ID() string {
	return s.id
}

// Purpose returns the purpose the stream was started for.
func (s *Stream) Purpose() Purpose {
	return s.purpose
}

// Context returns the stream's context; it is cancelled by Cancel.
func (s *Stream) Context() context.Context {
	return s.ctx
}

// Cancel requests cancellation. It is idempotent and has no effect once the
// worker has finished.
func (s *Stream) Cancel() {
	s.mu.Lock()
	if !s.finished {
		s.cancelled = true
	}
	s.mu.Unlock()
	s.cancel()
}

// Cancelled reports whether Cancel took effect.
func (s *Stream) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Done is closed when the worker has finished.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Recv returns the next event. After the terminal event it returns io.EOF.
// Data produced after a successful Cancel is discarded.
func (s *Stream) Recv() (Event, error) {
	for {
		ev, ok := <-s.events
		if !ok {
			if s.terminalSent {
				return Event{}, io.EOF
			}
			s.terminalSent = true
			return s.terminal, nil
		}
		if s.Cancelled() {
			continue
		}
		return ev, nil
	}
}

// Collect drains s and returns the concatenated data. A terminal error is
// returned together with the partial text.
func Collect(s *Stream) (string, error) {
	var sb strings.Builder
	for {
		ev, err := s.Recv()
		if err == io.EOF {
			return sb.String(), nil
		}
		switch ev.Type {
		case EventData:
			sb.WriteString(ev.Text)
		case EventError:
			return sb.String(), ev.Err
		}
	}
}
