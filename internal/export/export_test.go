// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/docchat/internal/model"
)

var fixedNow = time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)

func testConversation() *model.Conversation {
	user := model.NewConfirmedMessage(model.RoleUser, "Summarize the report", "")
	user.AttachedDocumentID = "up-1"
	user.AttachedFileName = "q3.xlsx"
	retry := model.NewRetryIndicator("Retrying (2/5)...")
	answer := model.NewConfirmedMessage(model.RoleAssistant, "Document generated successfully: summary.pdf", "gen-1")

	conv := model.NewConversation("conv-1", "Q3 report")
	conv.Messages = append(conv.Messages, user, retry, answer)
	return conv
}

func testOptions(dir string) *Options {
	opts := DefaultOptions()
	opts.OutputDir = dir
	opts.Now = func() time.Time { return fixedNow }
	return opts
}

func TestMarkdownExport(t *testing.T) {
	out, err := NewMarkdownExporter(testOptions("")).Export(testConversation())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	result := string(out)

	for _, want := range []string{
		"title: Q3 report\n",
		"conversation: conv-1\n",
		"messages: 2\n",
		"documents: [gen-1]\n",
		"# Q3 report",
		"### [User]",
		"Attached: `q3.xlsx`",
		"### [Assistant]",
		"Document: `gen-1`",
		"*Exported from docchat on March 4, 2025 at 10:30 AM*",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Contains(result, "Retrying") {
		t.Error("retry indicators must not be exported")
	}
}

func TestMarkdownExport_NoMetadata(t *testing.T) {
	opts := testOptions("")
	opts.IncludeMetadata = false
	opts.IncludeTimestamps = false

	out, err := NewMarkdownExporter(opts).Export(testConversation())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	result := string(out)
	if strings.HasPrefix(result, "---") {
		t.Error("frontmatter written without IncludeMetadata")
	}
	if strings.Contains(result, "<sub>20") {
		t.Error("timestamps written without IncludeTimestamps")
	}
}

// TestYAMLNewlineInjection checks that titles cannot break out of the frontmatter.
func TestYAMLNewlineInjection(t *testing.T) {
	conv := testConversation()
	conv.Title = "Test\nInjection: malicious"

	out, err := NewMarkdownExporter(testOptions("")).Export(conv)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if strings.Contains(string(out), "\nInjection: malicious") {
		t.Error("newline in title was not escaped in frontmatter")
	}
	if !strings.Contains(string(out), `title: "Test\nInjection: malicious"`) {
		t.Error("expected quoted, escaped title")
	}
	if !strings.Contains(string(out), "\n# Test Injection: malicious\n") {
		t.Error("newline in title was not collapsed in heading")
	}
}

func TestExport_Empty(t *testing.T) {
	conv := model.NewConversation("conv-1", "")
	conv.Messages = append(conv.Messages, model.NewRetryIndicator("Retrying (2/5)..."))

	for _, exp := range []Exporter{NewMarkdownExporter(nil), NewJSONExporter(nil)} {
		if _, err := exp.Export(conv); !errors.Is(err, ErrEmptyConversation) {
			t.Errorf("%T: err = %v, want ErrEmptyConversation", exp, err)
		}
		if _, err := exp.Export(nil); err == nil {
			t.Errorf("%T: expected error for nil conversation", exp)
		}
	}
}

func TestJSONExport(t *testing.T) {
	out, err := NewJSONExporter(testOptions("")).Export(testConversation())
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	var decoded struct {
		ID         string    `json:"id"`
		Title      string    `json:"title"`
		ExportedAt time.Time `json:"exported_at"`
		Messages   []struct {
			Role                string `json:"role"`
			GeneratedDocumentID string `json:"generated_document_id"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.ID != "conv-1" || decoded.Title != "Q3 report" || !decoded.ExportedAt.Equal(fixedNow) {
		t.Errorf("unexpected header %+v", decoded)
	}
	if len(decoded.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(decoded.Messages))
	}
	if decoded.Messages[1].GeneratedDocumentID != "gen-1" {
		t.Errorf("document id = %q", decoded.Messages[1].GeneratedDocumentID)
	}
}

func TestForName(t *testing.T) {
	tests := []struct {
		name    string
		wantExt string
		wantErr bool
	}{
		{"", ".md", false},
		{"Markdown", ".md", false},
		{"md", ".md", false},
		{"json", ".json", false},
		{"html", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp, err := ForName(tt.name, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ForName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if err == nil && exp.FileExtension() != tt.wantExt {
				t.Errorf("extension = %q, want %q", exp.FileExtension(), tt.wantExt)
			}
		})
	}
}

func TestToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	opts := testOptions(dir)

	path, err := ToFile(testConversation(), NewMarkdownExporter(opts), opts)
	if err != nil {
		t.Fatalf("ToFile failed: %v", err)
	}
	want := filepath.Join(dir, "conversation_Q3_report_20250304_103000.md")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "# Q3 report") {
		t.Error("export file has unexpected content")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Q3 report", "Q3_report"},
		{`a/b\c:d*e?f"g<h>i|j`, "a-b-c-d-e-f-g-h-i-j"},
		{"", "conversation"},
		{"   ", "conversation"},
		{"bell\x07", "bell-"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
