// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/docchat/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// ParseRole maps a wire role to a Role. Unknown roles report false.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleAssistant:
		return Role(s), true
	}
	// The service has historically used "bot" for assistant turns.
	if s == "bot" {
		return RoleAssistant, true
	}
	return "", false
}

// =============================================================================
// STATUS TYPE
// =============================================================================

// Status tracks whether a transcript entry has been confirmed by the server.
type Status string

const (
	// StatusOptimistic marks an entry appended locally before server confirmation.
	StatusOptimistic Status = "optimistic"

	// StatusConfirmed marks an entry that came from authoritative history.
	StatusConfirmed Status = "confirmed"

	// StatusTransient marks a non-terminal status indicator (e.g. a retry notice)
	// that is superseded by the next reconciliation.
	StatusTransient Status = "transient"
)

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single entry in a transcript.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`

	// Content is the raw content as delivered. It may itself be a JSON
	// envelope; Envelope holds the parsed form when it is.
	Content  string    `json:"content"`
	Envelope *Envelope `json:"-"`

	// Documents
	AttachedDocumentID  string `json:"attached_document_id,omitempty"`
	AttachedFileName    string `json:"attached_file_name,omitempty"`
	GeneratedDocumentID string `json:"generated_document_id,omitempty"`

	// Delivery information (assistant entries appended by a submission)
	Format       string `json:"format,omitempty"`
	WasRetried   bool   `json:"was_retried,omitempty"`
	Exhausted    bool   `json:"exhausted,omitempty"`
	AttemptCount int    `json:"attempt_count,omitempty"`
	IsError      bool   `json:"is_error,omitempty"`
}

// NewMessage creates a new optimistic message with a fresh local ID.
// The content envelope is parsed once here.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        generateID(),
		Role:      role,
		Status:    StatusOptimistic,
		Content:   content,
		Envelope:  ParseEnvelope(content),
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new optimistic user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new optimistic assistant message.
func NewAssistantMessage(content string) *Message {
	return NewMessage(RoleAssistant, content)
}

// NewErrorMessage creates the generic assistant entry used for failures.
func NewErrorMessage(content string) *Message {
	msg := NewAssistantMessage(content)
	msg.IsError = true
	return msg
}

// NewRetryIndicator creates the transient "retrying" status entry.
func NewRetryIndicator(content string) *Message {
	msg := NewAssistantMessage(content)
	msg.Status = StatusTransient
	return msg
}

// NewConfirmedMessage creates a message from authoritative server history.
// Server entries carry no id, so one is generated locally.
func NewConfirmedMessage(role Role, content, documentID string) *Message {
	msg := NewMessage(role, content)
	msg.Status = StatusConfirmed
	msg.GeneratedDocumentID = documentID
	if msg.GeneratedDocumentID == "" && msg.Envelope != nil {
		msg.GeneratedDocumentID = msg.Envelope.DocumentID
	}
	return msg
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// IsTransient reports whether the message is a non-terminal status indicator.
func (m *Message) IsTransient() bool {
	return m.Status == StatusTransient
}

// DisplayContent returns the content to show the user. Successful envelopes
// are unwrapped to their message.
func (m *Message) DisplayContent() string {
	if m.Envelope != nil && m.Envelope.IsSuccess() && m.Envelope.Message != "" {
		return m.Envelope.Message
	}
	return m.Content
}

// DocumentID returns the generated document id, if any.
func (m *Message) DocumentID() string {
	if m.GeneratedDocumentID != "" {
		return m.GeneratedDocumentID
	}
	if m.Envelope != nil {
		return m.Envelope.DocumentID
	}
	return ""
}

// Preview returns a truncated preview of the display content.
func (m *Message) Preview(maxLen int) string {
	return util.TruncateRunes(m.DisplayContent(), maxLen)
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// Clone returns a copy of the message. The envelope is immutable once
// parsed, so it is shared.
func (m *Message) Clone() *Message {
	c := *m
	return &c
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateID creates a unique message ID. IDs are never reused.
func generateID() string {
	return "msg_" + uuid.NewString()
}
