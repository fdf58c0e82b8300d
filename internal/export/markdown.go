// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/docchat/internal/model"
	"github.com/jeranaias/docchat/internal/util"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports conversations to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a conversation to Markdown. Transient retry indicators are
// skipped.
func (e *MarkdownExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}
	msgs := durable(conv.Messages)
	if len(msgs) == 0 {
		return nil, ErrEmptyConversation
	}

	var sb strings.Builder
	exported := e.options.now()

	// YAML frontmatter with metadata
	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(conv.GetTitle()))
		fmt.Fprintf(&sb, "conversation: %s\n", escapeYAML(conv.ID))
		fmt.Fprintf(&sb, "messages: %d\n", len(msgs))
		if docs := generatedDocuments(msgs); len(docs) > 0 {
			fmt.Fprintf(&sb, "documents: [%s]\n", strings.Join(docs, ", "))
		}
		fmt.Fprintf(&sb, "exported: %s\n", exported.Format(time.RFC3339))
		sb.WriteString("generator: docchat\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(util.SingleLine(conv.GetTitle())))

	for i, msg := range msgs {
		label := roleLabel(msg.Role)
		if e.options.IncludeTimestamps && !msg.Timestamp.IsZero() {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, msg.Timestamp.Format("2006-01-02 15:04"))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}

		sb.WriteString(strings.TrimSpace(msg.DisplayContent()))
		sb.WriteString("\n\n")

		if refs := documentRefs(msg); refs != "" {
			sb.WriteString(refs)
			sb.WriteString("\n\n")
		}

		if i < len(msgs)-1 {
			sb.WriteString("---\n\n")
		}
	}

	fmt.Fprintf(&sb, "\n---\n\n*Exported from docchat on %s*\n", exported.Format("January 2, 2006 at 3:04 PM"))
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func durable(msgs []*model.Message) []*model.Message {
	out := make([]*model.Message, 0, len(msgs))
	for _, m := range msgs {
		if m != nil && !m.IsTransient() {
			out = append(out, m)
		}
	}
	return out
}

func generatedDocuments(msgs []*model.Message) []string {
	var ids []string
	for _, m := range msgs {
		if m.Role != model.RoleAssistant {
			continue
		}
		if id := m.DocumentID(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func roleLabel(role model.Role) string {
	switch role {
	case model.RoleUser:
		return "[User]"
	case model.RoleAssistant:
		return "[Assistant]"
	case "":
		return "Unknown"
	default:
		r := []rune(string(role))
		return strings.ToUpper(string(r[0])) + string(r[1:])
	}
}

// documentRefs lists the attached and generated documents of one entry.
func documentRefs(msg *model.Message) string {
	var parts []string
	if msg.AttachedDocumentID != "" {
		name := msg.AttachedFileName
		if name == "" {
			name = msg.AttachedDocumentID
		}
		parts = append(parts, fmt.Sprintf("Attached: `%s`", name))
	}
	if msg.Role == model.RoleAssistant {
		if id := msg.DocumentID(); id != "" {
			parts = append(parts, fmt.Sprintf("Document: `%s`", id))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "<sub>" + strings.Join(parts, " | ") + "</sub>"
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	// Only characters that would break formatting in titles/headings
	r := strings.NewReplacer("#", "\\#", "*", "\\*", "_", "\\_", "[", "\\[", "]", "\\]")
	return r.Replace(s)
}

// escapeYAML quotes a YAML scalar when it contains special characters.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*\n\r\\") || strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		s = strings.ReplaceAll(s, "\\", "\\\\")
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return fmt.Sprintf("\"%s\"", s)
	}
	return s
}
