// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// Inflight tracks the latest request handle of each purpose for one provider
// instance. Chat and instruct handles are only recorded; a new autocomplete
// request cancels the previous one.
type Inflight struct {
	mu      sync.Mutex
	streams map[Purpose]*Stream

	completionSeq    uint64
	completionCancel context.CancelFunc
	limiter          *rate.Limiter
}

// NewInflight creates a tracker. completionRate limits autocomplete requests
// per second; zero or less disables the limit.
func NewInflight(completionRate float64) *Inflight {
	in := &Inflight{streams: make(map[Purpose]*Stream)}
	if completionRate > 0 {
		in.limiter = rate.NewLimiter(rate.Limit(completionRate), 1)
	}
	return in
}

// Track records s as the current handle of its purpose and returns it.
func (in *Inflight) Track(s *Stream) *Stream {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.streams[s.Purpose()] = s
	return s
}

// Current returns the latest handle of purpose p, or nil.
func (in *Inflight) Current(p Purpose) *Stream {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.streams[p]
}

// Cancel cancels the latest handle of purpose p. For PurposeCompletion it
// cancels the outstanding autocomplete request.
func (in *Inflight) Cancel(p Purpose) {
	if p == PurposeCompletion {
		in.mu.Lock()
		cancel := in.completionCancel
		in.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return
	}
	if s := in.Current(p); s != nil {
		s.Cancel()
	}
}

// Complete runs fn as the only outstanding autocomplete request. Starting
// a new one cancels the previous call, which then returns ErrCancelled and
// never its result.
func (in *Inflight) Complete(parent context.Context, fn func(ctx context.Context) ([]string, error)) ([]string, error) {
	ctx, cancel := context.WithCancel(parent)

	in.mu.Lock()
	if in.completionCancel != nil {
		in.completionCancel()
	}
	in.completionSeq++
	seq := in.completionSeq
	in.completionCancel = cancel
	in.mu.Unlock()

	defer func() {
		in.mu.Lock()
		if in.completionSeq == seq {
			in.completionCancel = nil
		}
		in.mu.Unlock()
		cancel()
	}()

	if in.limiter != nil {
		if err := in.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ErrCancelled
			}
			return nil, &ClientError{Type: ErrTypeConnection, Message: "completion throttled", Cause: err}
		}
	}

	parts, err := fn(ctx)

	in.mu.Lock()
	superseded := in.completionSeq != seq
	in.mu.Unlock()

	if superseded {
		return nil, ErrCancelled
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, ErrCancelled
		}
		return nil, err
	}
	return parts, nil
}
