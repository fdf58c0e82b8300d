// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attachment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_AtMostOneFile(t *testing.T) {
	s := NewState()
	s.AttachFile("doc-1", "first.pdf")
	s.AttachFile("doc-2", "second.pdf")

	f := s.File()
	require.NotNil(t, f)
	assert.Equal(t, "doc-2", f.ID)
	assert.Equal(t, KindFile, f.Kind)
}

func TestState_TemplatesKeepOrder(t *testing.T) {
	s := NewState()
	s.AttachTemplate("t1", "Summary", "Summarize it")
	s.AttachTemplate("t2", "Blank", "")
	s.AttachTemplate("t3", "Tables", "Extract tables")

	assert.Len(t, s.Templates(), 3)
	assert.Equal(t, []string{"Summarize it", "Extract tables"}, s.HiddenInstructions())

	// Re-attaching an id updates in place.
	s.AttachTemplate("t1", "Summary", "Summarize briefly")
	assert.Equal(t, []string{"Summarize briefly", "Extract tables"}, s.HiddenInstructions())
}

func TestState_Remove(t *testing.T) {
	s := NewState()
	s.AttachFile("doc-1", "a.pdf")
	s.AttachTemplate("t1", "One", "x")
	s.AttachTemplate("t2", "Two", "y")

	s.RemoveFile("unknown")
	assert.NotNil(t, s.File())
	s.RemoveFile("doc-1")
	assert.Nil(t, s.File())

	s.RemoveTemplate("t1")
	require.Len(t, s.Templates(), 1)
	assert.Equal(t, "t2", s.Templates()[0].ID)
	s.RemoveTemplate("missing")
	assert.Len(t, s.Templates(), 1)
}

func TestState_ClearAllAndNotify(t *testing.T) {
	s := NewState()

	var seen []Snapshot
	s.OnChange(func(snap Snapshot) { seen = append(seen, snap) })

	s.AttachFile("doc-1", "a.pdf")
	s.AttachTemplate("t1", "One", "x")
	assert.True(t, s.HasAny())

	s.ClearAll()
	assert.False(t, s.HasAny())

	require.Len(t, seen, 3)
	assert.Equal(t, "doc-1", seen[0].FileID())
	assert.False(t, seen[2].HasAny())
}

func TestSnapshot_IsIndependent(t *testing.T) {
	s := NewState()
	s.AttachTemplate("t1", "One", "x")
	snap := s.Snapshot()

	s.RemoveTemplate("t1")
	assert.Len(t, snap.Templates, 1, "snapshot must not observe later mutations")
}
