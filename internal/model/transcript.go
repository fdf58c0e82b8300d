// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "sync"

// =============================================================================
// TRANSCRIPT EVENTS
// =============================================================================

// EventKind identifies a transcript mutation.
type EventKind string

const (
	// EventAppended is emitted when entries are appended.
	EventAppended EventKind = "appended"

	// EventReplaced is emitted when the whole transcript is replaced by
	// reconciled history.
	EventReplaced EventKind = "replaced"
)

// Event describes one transcript mutation. Messages holds the appended
// entries for EventAppended and the full new transcript for EventReplaced.
type Event struct {
	Kind     EventKind
	Messages []*Message
	Version  uint64
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is the client's locally held, ordered view of a conversation.
//
// It has exactly two mutations: Append (optimistic entries) and Replace
// (reconciliation). There is no per-message merge; the most recent Replace
// wins.
type Transcript struct {
	mu          sync.Mutex
	messages    []*Message
	version     uint64
	subscribers []subscriber
	nextSubID   int
}

type subscriber struct {
	id int
	fn func(Event)
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{
		messages: make([]*Message, 0),
	}
}

// Append adds entries to the end of the transcript.
func (t *Transcript) Append(msgs ...*Message) {
	if len(msgs) == 0 {
		return
	}
	t.mu.Lock()
	t.messages = append(t.messages, msgs...)
	t.version++
	ev := Event{Kind: EventAppended, Messages: cloneMessages(msgs), Version: t.version}
	subs := t.subscriberList()
	t.mu.Unlock()

	notify(subs, ev)
}

// Replace swaps the whole transcript for msgs.
func (t *Transcript) Replace(msgs []*Message) {
	t.mu.Lock()
	t.messages = cloneMessages(msgs)
	t.version++
	ev := Event{Kind: EventReplaced, Messages: cloneMessages(msgs), Version: t.version}
	subs := t.subscriberList()
	t.mu.Unlock()

	notify(subs, ev)
}

// Clear empties the transcript. It is a Replace with no entries.
func (t *Transcript) Clear() {
	t.Replace(nil)
}

// Snapshot returns a copy of the current entries.
func (t *Transcript) Snapshot() []*Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneMessages(t.messages)
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// Version returns the mutation counter.
func (t *Transcript) Version() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.version
}

// Last returns a copy of the last entry, or nil when empty.
func (t *Transcript) Last() *Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.messages) == 0 {
		return nil
	}
	return t.messages[len(t.messages)-1].Clone()
}

// Subscribe registers fn to be called after every mutation. Callbacks run on
// the mutating goroutine, outside the transcript lock, in subscription order.
// The returned function removes the subscription.
func (t *Transcript) Subscribe(fn func(Event)) (cancel func()) {
	t.mu.Lock()
	id := t.nextSubID
	t.nextSubID++
	t.subscribers = append(t.subscribers, subscriber{id: id, fn: fn})
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, sub := range t.subscribers {
			if sub.id == id {
				t.subscribers = append(t.subscribers[:i:i], t.subscribers[i+1:]...)
				return
			}
		}
	}
}

// subscriberList copies the subscriber set. Caller holds t.mu.
func (t *Transcript) subscriberList() []func(Event) {
	subs := make([]func(Event), 0, len(t.subscribers))
	for _, sub := range t.subscribers {
		subs = append(subs, sub.fn)
	}
	return subs
}

func notify(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}

func cloneMessages(msgs []*Message) []*Message {
	out := make([]*Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
