// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jeranaias/docchat/internal/cloud"
	"github.com/jeranaias/docchat/internal/metrics"
	"github.com/jeranaias/docchat/internal/model"
)

// Source returns the server-ordered history of a conversation.
// *cloud.Client satisfies it.
type Source interface {
	ConversationHistory(ctx context.Context, conversationID string) ([]cloud.HistoryEntry, error)
}

// Reconciler turns server history into confirmed transcript messages.
type Reconciler struct {
	source  Source
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewReconciler creates a reconciler reading from source.
func NewReconciler(source Source) *Reconciler {
	return &Reconciler{source: source, log: zerolog.Nop()}
}

// WithLogger sets the logger.
func (r *Reconciler) WithLogger(log zerolog.Logger) *Reconciler {
	r.log = log.With().Str("component", "history").Logger()
	return r
}

// WithMetrics counts fetch failures.
func (r *Reconciler) WithMetrics(m *metrics.Metrics) *Reconciler {
	r.metrics = m
	return r
}

// Fetch returns the conversation's messages in server order. Each message is
// confirmed and has its content envelope parsed. Entries with an unknown role
// are dropped.
func (r *Reconciler) Fetch(ctx context.Context, conversationID string) ([]*model.Message, error) {
	entries, err := r.source.ConversationHistory(ctx, conversationID)
	if err != nil {
		r.metrics.HistoryFetchFailed()
		r.log.Warn().Err(err).Str("conversation", conversationID).Msg("history fetch failed")
		return nil, fmt.Errorf("fetch history for %s: %w", conversationID, err)
	}

	msgs := make([]*model.Message, 0, len(entries))
	for _, e := range entries {
		role, ok := model.ParseRole(e.Role)
		if !ok {
			r.log.Debug().Str("role", e.Role).Msg("dropping history entry with unknown role")
			continue
		}
		msg := model.NewConfirmedMessage(role, e.Content, e.DocID())
		if !e.CreatedAt.IsZero() {
			msg.Timestamp = e.CreatedAt
		}
		if role == model.RoleUser && e.DocumentID != "" {
			// On user turns document_id is the attached input, not output.
			msg.AttachedDocumentID = e.DocumentID
			msg.GeneratedDocumentID = ""
		}
		msgs = append(msgs, msg)
	}

	r.log.Debug().Str("conversation", conversationID).Int("messages", len(msgs)).Msg("history fetched")
	return msgs, nil
}

// Reconcile fetches history and replaces the transcript with it. On failure
// the transcript is left untouched and the error returned.
func (r *Reconciler) Reconcile(ctx context.Context, t *model.Transcript, conversationID string) ([]*model.Message, error) {
	msgs, err := r.Fetch(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	t.Replace(msgs)
	return msgs, nil
}

// LastAssistant returns the last assistant entry in msgs, or nil.
func LastAssistant(msgs []*model.Message) *model.Message {
	return model.LastAssistant(msgs)
}
