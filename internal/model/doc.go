// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types used throughout the application
// for representing conversations, transcript entries, and the structured
// envelope some assistant replies are delivered in.
//
// # Key Types
//
//   - Conversation: Server-owned thread of messages identified by a stable id
//   - Message: Single transcript entry with role, content and delivery status
//   - Envelope: Parsed {status, message, document_id} reply content
//   - Transcript: Ordered, observable view of the active conversation
//
// # Usage
//
// Append optimistic entries and reconcile with server history:
//
//	tr := model.NewTranscript()
//	cancel := tr.Subscribe(func(ev model.Event) { render(ev) })
//	defer cancel()
//	tr.Append(model.NewUserMessage("Summarize"))
//	tr.Replace(history)
package model
