// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/docchat/internal/cloud"
	"github.com/jeranaias/docchat/internal/metrics"
	"github.com/jeranaias/docchat/internal/model"
)

type fakeSource struct {
	entries []cloud.HistoryEntry
	err     error
	calls   int
}

func (f *fakeSource) ConversationHistory(ctx context.Context, id string) ([]cloud.HistoryEntry, error) {
	f.calls++
	return f.entries, f.err
}

func TestFetch_ConvertsEntries(t *testing.T) {
	when := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{entries: []cloud.HistoryEntry{
		{Role: "user", Content: "Summarize", DocumentID: "in-1"},
		{Role: "system", Content: "ignored"},
		{Role: "assistant", Content: `{"status":"success","message":"Done","document_id":"out-1","format":"pdf"}`, CreatedAt: when},
		{Role: "bot", Content: "plain answer"},
	}}

	msgs, err := NewReconciler(src).Fetch(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "in-1", msgs[0].AttachedDocumentID)
	assert.Empty(t, msgs[0].GeneratedDocumentID)

	assert.Equal(t, model.StatusConfirmed, msgs[1].Status)
	require.NotNil(t, msgs[1].Envelope)
	assert.Equal(t, "out-1", msgs[1].DocumentID())
	assert.Equal(t, "Done", msgs[1].DisplayContent())
	assert.Equal(t, when, msgs[1].Timestamp)

	assert.Equal(t, model.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "plain answer", LastAssistant(msgs).Content)
}

func TestFetch_ErrorCountsFailure(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	_, err := NewReconciler(src).WithMetrics(m).Fetch(context.Background(), "c1")
	require.Error(t, err)
	assert.ErrorIs(t, err, src.err)

	families, _ := reg.Gather()
	var failures float64
	for _, f := range families {
		if f.GetName() == "docchat_history_fetch_failures_total" {
			failures = f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, failures)
}

func TestReconcile_ReplacesTranscript(t *testing.T) {
	tr := model.NewTranscript()
	tr.Append(model.NewUserMessage("optimistic"), model.NewRetryIndicator("Retrying... (attempt 2/5)"))

	var events []model.Event
	tr.Subscribe(func(ev model.Event) { events = append(events, ev) })

	src := &fakeSource{entries: []cloud.HistoryEntry{
		{Role: "user", Content: "optimistic"},
		{Role: "assistant", Content: "authoritative"},
	}}
	_, err := NewReconciler(src).Reconcile(context.Background(), tr, "c1")
	require.NoError(t, err)

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "authoritative", snap[1].Content)
	for _, m := range snap {
		assert.Equal(t, model.StatusConfirmed, m.Status)
	}
	require.Len(t, events, 1)
	assert.Equal(t, model.EventReplaced, events[0].Kind)
}

func TestReconcile_FailureLeavesTranscript(t *testing.T) {
	tr := model.NewTranscript()
	tr.Append(model.NewUserMessage("keep me"))
	before := tr.Version()

	_, err := NewReconciler(&fakeSource{err: errors.New("down")}).Reconcile(context.Background(), tr, "c1")
	require.Error(t, err)
	assert.Equal(t, before, tr.Version())
	assert.Equal(t, 1, tr.Len())
}
