// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// =============================================================================
// CHAT TYPES
// =============================================================================

// SendRequest is the body of a prompt dispatch. Without a ConversationID the
// service creates a conversation as a side effect.
type SendRequest struct {
	Prompt          string `json:"prompt"`
	ConversationID  string `json:"conversation_id,omitempty"`
	InputDocumentID string `json:"input_document_id,omitempty"`
}

// SendResponse is the immediate reply to a dispatch. It may not yet reflect
// the answer the service eventually persists.
type SendResponse struct {
	ConversationID string `json:"conversation_id"`
	MessageContent string `json:"message_content,omitempty"`
	Content        string `json:"content,omitempty"`
	Response       string `json:"response,omitempty"`
	Message        string `json:"message,omitempty"`
	Answer         string `json:"answer,omitempty"`
	DocumentID     string `json:"document_id,omitempty"`
}

// Text returns the reply text from whichever field the service populated.
func (r *SendResponse) Text() string {
	if r == nil {
		return ""
	}
	for _, s := range []string{r.MessageContent, r.Content, r.Response, r.Message, r.Answer} {
		if s != "" {
			return s
		}
	}
	return ""
}

// HistoryEntry is one message of authoritative conversation history.
type HistoryEntry struct {
	Role                string    `json:"role"`
	Content             string    `json:"content"`
	DocumentID          string    `json:"document_id,omitempty"`
	GeneratedDocumentID string    `json:"generated_document_id,omitempty"`
	CreatedAt           time.Time `json:"-"`
}

// UnmarshalJSON accepts "sender" for role and a "timestamp" or "created_at"
// time.
func (h *HistoryEntry) UnmarshalJSON(data []byte) error {
	type plain HistoryEntry
	var raw struct {
		plain
		Sender    string `json:"sender"`
		Timestamp string `json:"timestamp"`
		CreatedAt string `json:"created_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*h = HistoryEntry(raw.plain)
	if h.Role == "" {
		h.Role = raw.Sender
	}
	h.CreatedAt = parseTime(raw.Timestamp, raw.CreatedAt)
	return nil
}

// DocID returns the document id the entry refers to, if any.
func (h HistoryEntry) DocID() string {
	if h.GeneratedDocumentID != "" {
		return h.GeneratedDocumentID
	}
	return h.DocumentID
}

// ConversationSummary is one entry of the conversation list.
type ConversationSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// UnmarshalJSON accepts either "_id" or "id".
func (s *ConversationSummary) UnmarshalJSON(data []byte) error {
	var raw struct {
		MongoID   string `json:"_id"`
		ID        string `json:"id"`
		Title     string `json:"title"`
		UpdatedAt string `json:"updated_at"`
		CreatedAt string `json:"created_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.ID = raw.MongoID
	if s.ID == "" {
		s.ID = raw.ID
	}
	s.Title = raw.Title
	s.UpdatedAt = parseTime(raw.UpdatedAt, raw.CreatedAt)
	return nil
}

func parseTime(values ...string) time.Time {
	for _, v := range values {
		if v == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// =============================================================================
// CHAT ENDPOINTS
// =============================================================================

// SendPrompt dispatches a prompt. The immediate reply is returned as-is.
func (c *Client) SendPrompt(ctx context.Context, req SendRequest) (*SendResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, &TransportError{Op: "send", Err: fmt.Errorf("prompt is empty")}
	}
	var resp SendResponse
	if err := c.doJSON(ctx, "send", http.MethodPost, c.baseURL+"/conversations", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConversationHistory returns the server-ordered messages of a conversation.
func (c *Client) ConversationHistory(ctx context.Context, conversationID string) ([]HistoryEntry, error) {
	if conversationID == "" {
		return nil, &TransportError{Op: "history", Err: ErrMissingID}
	}
	return getList[HistoryEntry](ctx, c, "history", c.conversationURL(conversationID), "messages", "history", "data")
}

// ListConversations returns the user's conversations.
func (c *Client) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	return getList[ConversationSummary](ctx, c, "conversations", c.baseURL+"/conversations", "conversations", "data")
}

// RenameConversation changes a conversation's title.
func (c *Client) RenameConversation(ctx context.Context, conversationID, title string) error {
	if conversationID == "" {
		return &TransportError{Op: "rename", Err: ErrMissingID}
	}
	if strings.TrimSpace(title) == "" {
		return &TransportError{Op: "rename", Err: fmt.Errorf("title is required")}
	}
	body := map[string]string{"new_title": strings.TrimSpace(title)}
	return c.doJSON(ctx, "rename", http.MethodPut, c.conversationURL(conversationID)+"/rename", body, nil)
}

// DeleteConversation removes a conversation.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return &TransportError{Op: "delete", Err: ErrMissingID}
	}
	return c.doJSON(ctx, "delete", http.MethodDelete, c.conversationURL(conversationID), nil, nil)
}

func (c *Client) conversationURL(id string) string {
	return c.baseURL + "/conversations/" + url.PathEscape(id)
}
