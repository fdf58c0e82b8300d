// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
	"testing"
)

// =============================================================================
// ENVELOPE TESTS
// =============================================================================

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantNil bool
		wantDoc string
	}{
		{name: "plain text", content: "Here is your summary", wantNil: true},
		{name: "broken json", content: `{"status": "success"`, wantNil: true},
		{name: "empty object", content: `{}`, wantNil: true},
		{name: "json array", content: `[1,2]`, wantNil: true},
		{
			name:    "document envelope",
			content: `{"status":"success","message":"Done","document_id":"doc-1","format":"pdf"}`,
			wantDoc: "doc-1",
		},
		{
			name:    "leading whitespace",
			content: "  \n{\"status\":\"error\",\"message\":\"failed\"}",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env := ParseEnvelope(tc.content)
			if tc.wantNil {
				if env != nil {
					t.Errorf("ParseEnvelope(%q) = %+v, want nil", tc.content, env)
				}
				return
			}
			if env == nil {
				t.Fatalf("ParseEnvelope(%q) = nil, want envelope", tc.content)
			}
			if env.DocumentID != tc.wantDoc {
				t.Errorf("DocumentID = %q, want %q", env.DocumentID, tc.wantDoc)
			}
		})
	}
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessage_DisplayContent(t *testing.T) {
	msg := NewAssistantMessage(`{"status":"success","message":"Report ready","document_id":"d9"}`)
	if got := msg.DisplayContent(); got != "Report ready" {
		t.Errorf("DisplayContent() = %q, want %q", got, "Report ready")
	}
	if got := msg.DocumentID(); got != "d9" {
		t.Errorf("DocumentID() = %q, want %q", got, "d9")
	}

	failed := NewAssistantMessage(`{"status":"error","message":"nope"}`)
	if got := failed.DisplayContent(); !strings.HasPrefix(got, "{") {
		t.Errorf("non-success envelope should display raw content, got %q", got)
	}
}

func TestMessage_IDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		id := NewUserMessage("x").ID
		if seen[id] {
			t.Fatalf("duplicate message id %q", id)
		}
		seen[id] = true
	}
}

func TestNewConfirmedMessage_DocumentFromEnvelope(t *testing.T) {
	msg := NewConfirmedMessage(RoleAssistant, `{"status":"success","message":"ok","document_id":"abc"}`, "")
	if msg.Status != StatusConfirmed {
		t.Errorf("Status = %q, want %q", msg.Status, StatusConfirmed)
	}
	if msg.GeneratedDocumentID != "abc" {
		t.Errorf("GeneratedDocumentID = %q, want abc", msg.GeneratedDocumentID)
	}
}

func TestParseRole(t *testing.T) {
	if r, ok := ParseRole("bot"); !ok || r != RoleAssistant {
		t.Errorf("ParseRole(bot) = %q, %v", r, ok)
	}
	if _, ok := ParseRole("system"); ok {
		t.Error("ParseRole(system) should be rejected")
	}
}

func TestLastAssistant_SkipsTransient(t *testing.T) {
	answer := NewAssistantMessage("answer")
	msgs := []*Message{
		NewUserMessage("q"),
		answer,
		NewRetryIndicator("Retrying... (attempt 2/5)"),
	}
	if got := LastAssistant(msgs); got != answer {
		t.Errorf("LastAssistant() = %+v, want the answer entry", got)
	}
	if LastAssistant(nil) != nil {
		t.Error("LastAssistant(nil) should be nil")
	}
}

// =============================================================================
// TRANSCRIPT TESTS
// =============================================================================

func TestTranscript_AppendAndReplace(t *testing.T) {
	tr := NewTranscript()

	var events []Event
	cancel := tr.Subscribe(func(ev Event) { events = append(events, ev) })

	tr.Append(NewUserMessage("one"), NewAssistantMessage("two"))
	if tr.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tr.Len())
	}

	tr.Replace([]*Message{NewConfirmedMessage(RoleUser, "one", "")})
	if tr.Len() != 1 {
		t.Fatalf("Len() after Replace = %d, want 1", tr.Len())
	}
	if tr.Version() != 2 {
		t.Errorf("Version() = %d, want 2", tr.Version())
	}

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Kind != EventAppended || len(events[0].Messages) != 2 {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Kind != EventReplaced || len(events[1].Messages) != 1 {
		t.Errorf("second event = %+v", events[1])
	}

	cancel()
	tr.Append(NewUserMessage("three"))
	if len(events) != 2 {
		t.Errorf("cancelled subscriber still notified")
	}
}

func TestTranscript_SubscribersNotifiedInOrder(t *testing.T) {
	tr := NewTranscript()

	var order []int
	var cancels []func()
	for i := 1; i <= 5; i++ {
		n := i
		cancels = append(cancels, tr.Subscribe(func(Event) { order = append(order, n) }))
	}

	tr.Append(NewUserMessage("one"))
	if got := fmt.Sprint(order); got != "[1 2 3 4 5]" {
		t.Fatalf("order = %s, want [1 2 3 4 5]", got)
	}

	order = nil
	cancels[2]()
	cancels[2]()
	tr.Replace(nil)
	if got := fmt.Sprint(order); got != "[1 2 4 5]" {
		t.Errorf("order after cancel = %s, want [1 2 4 5]", got)
	}

	order = nil
	tr.Subscribe(func(Event) { order = append(order, 6) })
	tr.Clear()
	if got := fmt.Sprint(order); got != "[1 2 4 5 6]" {
		t.Errorf("order after resubscribe = %s, want [1 2 4 5 6]", got)
	}
}

func TestTranscript_SnapshotIsCopy(t *testing.T) {
	tr := NewTranscript()
	tr.Append(NewUserMessage("original"))

	snap := tr.Snapshot()
	snap[0].Content = "mutated"

	if got := tr.Last().Content; got != "original" {
		t.Errorf("transcript mutated through snapshot: %q", got)
	}
}
