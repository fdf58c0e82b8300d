// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session ties the submission pipeline to one user's chat state.
//
// A Session owns the active conversation, the cached conversation list, the
// draft input, the pending attachments and the transcript, and runs
// submissions through a delivery.Orchestrator.
//
// # Key Types
//
//   - Session: Per-user chat state and the Send entry point
//   - Deps: Service-facing collaborators (directory, dispatcher, history)
//   - Status: Snapshot for status displays
//
// # Usage
//
//	s := session.New(deps, session.DefaultConfig())
//	s.SetDraft("Summarize the attached report")
//	s.AttachFile(uploaded.ID, uploaded.Filename)
//	out, err := s.Send(ctx, format.PDF)
//
// After a delivered answer the transcript is replaced with server history
// once the reconcile delay has passed.
package session
