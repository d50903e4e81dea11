// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llm defines the provider capability contract shared by every
// protocol adapter.
//
// # Key Types
//
//   - Provider: Instruct, AutoComplete, Chat and CancelCurrentChatRequest
//   - Stream: the owned handle of one streaming call, a channel of events
//     plus a cancellation token
//   - Callback: the onData / onDone / onError contract, driven from a Stream
//   - ProviderConfig: per-purpose endpoint, model, prompts and parameters
//
// # Event Ordering
//
// A Stream yields zero or more data events followed by exactly one terminal
// event, either done or error. Cancelling a stream is idempotent; once Cancel
// returns no further data is delivered and the terminal event is an error
// wrapping ErrCancelled, whose message is "Cancelled".
//
// # Failure Channels
//
// Precondition failures (missing model or endpoint) are returned
// synchronously by Instruct, Chat and AutoComplete before any I/O. Transport,
// HTTP status and cancellation failures of a started stream arrive only as
// its terminal error event.
//
// # Usage
//
//	stream, err := provider.Chat(ctx, chat)
//	if err != nil {
//	    return err
//	}
//	llm.Drive(stream, llm.CallbackFuncs{
//	    Data:  func(chunk string) { reply.Append(chunk) },
//	    Done:  func() { save() },
//	    Error: func(msg string) { status(msg) },
//	})
package llm
