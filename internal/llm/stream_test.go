// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a Callback that records events in order.
type recorder struct {
	mu     sync.Mutex
	data   []string
	done   int
	errors []string
}

func (r *recorder) OnData(chunk string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = append(r.data, chunk)
}

func (r *recorder) OnDone() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done++
}

func (r *recorder) OnError(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, message)
}

func TestStream_DataThenDone(t *testing.T) {
	s := NewStream(context.Background(), PurposeChat, func(ctx context.Context, emit Emit) error {
		for _, c := range []string{"a", "b", "c"} {
			if err := emit(c); err != nil {
				return err
			}
		}
		return nil
	})

	rec := &recorder{}
	Drive(s, rec)

	assert.Equal(t, []string{"a", "b", "c"}, rec.data)
	assert.Equal(t, 1, rec.done)
	assert.Empty(t, rec.errors)
	assert.NotEmpty(t, s.ID())

	_, err := s.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestStream_ErrorKeepsPartialData(t *testing.T) {
	s := NewStream(context.Background(), PurposeQuickAction, func(ctx context.Context, emit Emit) error {
		_ = emit("partial")
		return &StatusError{Code: 500, Body: "boom"}
	})

	text, err := Collect(s)
	assert.Equal(t, "partial", text)
	require.Error(t, err)
	assert.Equal(t, 500, StatusCode(err))
}

func TestStream_CancelMidStream(t *testing.T) {
	release := make(chan struct{})
	s := NewStream(context.Background(), PurposeChat, func(ctx context.Context, emit Emit) error {
		if err := emit("before"); err != nil {
			return err
		}
		<-release
		for i := 0; i < 5; i++ {
			if err := emit("after"); err != nil {
				return err
			}
		}
		return nil
	})

	ev, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, "before", ev.Text)

	s.Cancel()
	s.Cancel()
	close(release)

	rec := &recorder{}
	Drive(s, rec)

	assert.Empty(t, rec.data)
	assert.Equal(t, 0, rec.done)
	assert.Equal(t, []string{"Cancelled"}, rec.errors)
	assert.True(t, s.Cancelled())
}

func TestStream_CancelAfterFinishIsNoop(t *testing.T) {
	s := NewStream(context.Background(), PurposeChat, func(ctx context.Context, emit Emit) error {
		return emit("only")
	})
	<-s.Done()
	s.Cancel()

	text, err := Collect(s)
	assert.NoError(t, err)
	assert.Equal(t, "only", text)
	assert.False(t, s.Cancelled())
}

func TestStream_ParentContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewStream(ctx, PurposeChat, func(ctx context.Context, emit Emit) error {
		<-ctx.Done()
		return ctx.Err()
	})
	cancel()

	_, err := Collect(s)
	assert.True(t, IsCancelled(err))
	assert.True(t, errors.Is(err, ErrCancelled))
}

func TestStream_DeadlineIsConnectionError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	s := NewStream(ctx, PurposeChat, func(ctx context.Context, emit Emit) error {
		<-ctx.Done()
		return ctx.Err()
	})

	_, err := Collect(s)
	var clientErr *ClientError
	require.True(t, errors.As(err, &clientErr))
	assert.Equal(t, ErrTypeConnection, clientErr.Type)
}

// =============================================================================
// INFLIGHT TESTS
// =============================================================================

func TestInflight_CancelChatUsesLatestHandle(t *testing.T) {
	in := NewInflight(0)
	block := func(ctx context.Context, emit Emit) error {
		<-ctx.Done()
		return ctx.Err()
	}
	first := in.Track(NewStream(context.Background(), PurposeChat, block))
	second := in.Track(NewStream(context.Background(), PurposeChat, block))
	instruct := in.Track(NewStream(context.Background(), PurposeQuickAction, block))

	in.Cancel(PurposeChat)

	_, err := Collect(second)
	assert.True(t, IsCancelled(err))
	assert.False(t, first.Cancelled())
	assert.False(t, instruct.Cancelled())

	first.Cancel()
	instruct.Cancel()
}

func TestInflight_CompleteLastRequestWins(t *testing.T) {
	in := NewInflight(0)
	started := make(chan struct{})

	var firstParts []string
	var firstErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		firstParts, firstErr = in.Complete(context.Background(), func(ctx context.Context) ([]string, error) {
			close(started)
			<-ctx.Done()
			return []string{"stale"}, nil
		})
	}()

	<-started
	parts, err := in.Complete(context.Background(), func(ctx context.Context) ([]string, error) {
		return []string{"fresh"}, nil
	})
	<-done

	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, parts)
	assert.Nil(t, firstParts)
	assert.True(t, IsCancelled(firstErr))
}

func TestInflight_CompleteRateLimited(t *testing.T) {
	in := NewInflight(1000)
	for i := 0; i < 3; i++ {
		parts, err := in.Complete(context.Background(), func(ctx context.Context) ([]string, error) {
			return []string{"x"}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"x"}, parts)
	}
}
