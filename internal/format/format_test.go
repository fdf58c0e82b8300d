// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package format

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", Text},
		{"text", Text},
		{"TXT", Text},
		{"pdf", PDF},
		{" Word ", DOCX},
		{"docx", DOCX},
		{"xlsx", Excel},
		{"Excel", Excel},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if err != nil {
			t.Errorf("Parse(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := Parse("png"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("Parse(png) error = %v, want ErrUnknownFormat", err)
	}
}

func TestFormatProperties(t *testing.T) {
	tests := []struct {
		f         Format
		ext       string
		envelope  string
		isDefault bool
	}{
		{Text, "", "", true},
		{PDF, ".pdf", "pdf", false},
		{DOCX, ".docx", "docx", false},
		{Excel, ".xlsx", "xlsx", false},
	}
	for _, tt := range tests {
		if got := tt.f.Extension(); got != tt.ext {
			t.Errorf("%s.Extension() = %q, want %q", tt.f, got, tt.ext)
		}
		if got := tt.f.EnvelopeFormat(); got != tt.envelope {
			t.Errorf("%s.EnvelopeFormat() = %q, want %q", tt.f, got, tt.envelope)
		}
		if got := tt.f.IsDefault(); got != tt.isDefault {
			t.Errorf("%s.IsDefault() = %v, want %v", tt.f, got, tt.isDefault)
		}
	}
}
