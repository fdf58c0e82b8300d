// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attachment

import (
	"strings"
	"sync"
)

// Kind distinguishes uploaded files from templates.
type Kind string

const (
	KindFile     Kind = "file"
	KindTemplate Kind = "template"
)

// Attachment is one pending attachment.
type Attachment struct {
	ID          string
	DisplayName string
	Kind        Kind

	// HiddenInstructions is the template text that is folded into the prompt
	// without being shown as the user's own message. Empty for files.
	HiddenInstructions string
}

// Snapshot is an immutable copy of the pending attachments.
type Snapshot struct {
	File      *Attachment
	Templates []Attachment
}

// HasAny reports whether anything is attached.
func (s Snapshot) HasAny() bool {
	return s.File != nil || len(s.Templates) > 0
}

// FileID returns the pending file id, or "".
func (s Snapshot) FileID() string {
	if s.File == nil {
		return ""
	}
	return s.File.ID
}

// FileName returns the pending file display name, or "".
func (s Snapshot) FileName() string {
	if s.File == nil {
		return ""
	}
	return s.File.DisplayName
}

// HiddenInstructions returns the non-empty template instructions in attach order.
func (s Snapshot) HiddenInstructions() []string {
	out := make([]string, 0, len(s.Templates))
	for _, t := range s.Templates {
		if text := strings.TrimSpace(t.HiddenInstructions); text != "" {
			out = append(out, text)
		}
	}
	return out
}

// =============================================================================
// STATE
// =============================================================================

// State is the mutable set of pending attachments.
type State struct {
	mu        sync.Mutex
	file      *Attachment
	templates []Attachment

	listeners []func(Snapshot)
}

// NewState returns an empty attachment state.
func NewState() *State {
	return &State{}
}

// OnChange registers fn to receive the new snapshot after every mutation.
func (s *State) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// AttachFile sets the pending file. At most one file is pending; attaching
// another replaces it.
func (s *State) AttachFile(id, name string) {
	s.mutate(func() {
		s.file = &Attachment{ID: id, DisplayName: name, Kind: KindFile}
	})
}

// AttachTemplate adds a template. Attaching an id that is already pending
// updates it in place.
func (s *State) AttachTemplate(id, name, instructions string) {
	s.mutate(func() {
		t := Attachment{ID: id, DisplayName: name, Kind: KindTemplate, HiddenInstructions: instructions}
		for i := range s.templates {
			if s.templates[i].ID == id {
				s.templates[i] = t
				return
			}
		}
		s.templates = append(s.templates, t)
	})
}

// RemoveFile removes the pending file if its id matches. Unknown ids are ignored.
func (s *State) RemoveFile(id string) {
	s.mutate(func() {
		if s.file != nil && s.file.ID == id {
			s.file = nil
		}
	})
}

// RemoveTemplate removes the template with the given id. Unknown ids are ignored.
func (s *State) RemoveTemplate(id string) {
	s.mutate(func() {
		kept := s.templates[:0]
		for _, t := range s.templates {
			if t.ID != id {
				kept = append(kept, t)
			}
		}
		s.templates = kept
	})
}

// ClearAll removes every pending attachment.
func (s *State) ClearAll() {
	s.mutate(func() {
		s.file = nil
		s.templates = nil
	})
}

// Snapshot returns a copy of the pending attachments.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// File returns the pending file, or nil.
func (s *State) File() *Attachment {
	return s.Snapshot().File
}

// Templates returns the pending templates in attach order.
func (s *State) Templates() []Attachment {
	return s.Snapshot().Templates
}

// HiddenInstructions returns the template instructions in attach order.
func (s *State) HiddenInstructions() []string {
	return s.Snapshot().HiddenInstructions()
}

// HasAny reports whether anything is attached.
func (s *State) HasAny() bool {
	return s.Snapshot().HasAny()
}

func (s *State) mutate(fn func()) {
	s.mu.Lock()
	fn()
	snap := s.snapshotLocked()
	listeners := append([]func(Snapshot){}, s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

func (s *State) snapshotLocked() Snapshot {
	snap := Snapshot{Templates: append([]Attachment(nil), s.templates...)}
	if s.file != nil {
		f := *s.file
		snap.File = &f
	}
	return snap
}
