// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package delivery runs one message submission from prompt to a single
// terminal transcript entry.
//
// The service's immediate reply to a prompt may not be the answer it later
// persists, and the model does not always honour the requested output
// format. Submit therefore dispatches the same prompt up to MaxRetries
// times, waiting for the service to settle after each dispatch, reading the
// authoritative history and checking the last assistant entry against the
// requested format.
//
// # Key Types
//
//   - Orchestrator: owns the in-flight set and the retry loop
//   - Request: text, format and optional conversation id for one submission
//   - Outcome: what happened, including every Attempt
//
// # Guarantees
//
// Per Submit call that is not rejected up front:
//
//   - exactly one optimistic user entry and one terminal assistant entry are
//     appended; retry indicators in between are transient
//   - at most MaxRetries dispatches are made
//   - the in-flight flag for the conversation is released on every path
//   - no error escapes: failures become the terminal entry
//
// # Usage
//
//	orch := delivery.New(delivery.Deps{...}, delivery.Options{})
//	out, err := orch.Submit(ctx, delivery.Request{Text: "Summarize", Format: format.PDF})
package delivery
