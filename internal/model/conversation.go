// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is a server-owned thread of messages identified by a stable id.
// Messages are authoritative and in server order when populated from history.
type Conversation struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Messages []*Message `json:"messages,omitempty"`
}

// NewConversation creates a conversation with the given id and title.
func NewConversation(id, title string) *Conversation {
	return &Conversation{
		ID:       id,
		Title:    title,
		Messages: make([]*Message, 0),
	}
}

// GetTitle returns the conversation title or a default.
func (c *Conversation) GetTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return "New Conversation"
}

// GetLastAssistantMessage returns the most recent assistant message.
func (c *Conversation) GetLastAssistantMessage() *Message {
	return LastAssistant(c.Messages)
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// LastAssistant returns the last assistant-role entry in msgs, skipping
// transient indicators, or nil if there is none.
func LastAssistant(msgs []*Message) *Message {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleAssistant && !msgs[i].IsTransient() {
			return msgs[i]
		}
	}
	return nil
}
