// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/docchat/internal/model"
	"github.com/jeranaias/docchat/internal/util"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// renderMarkdown renders markdown content for terminal display. The original
// content is returned if rendering fails.
func renderMarkdown(content string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// printer writes command output, styled only on a terminal.
type printer struct {
	w   io.Writer
	tty bool
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w, tty: isTerminalWriter(w)}
}

func (p *printer) printf(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) println(s string) {
	fmt.Fprintln(p.w, s)
}

// answer prints a terminal assistant entry with its delivery footnotes.
func (p *printer) answer(msg *model.Message) {
	if msg == nil {
		return
	}
	content := msg.DisplayContent()
	switch {
	case msg.IsError:
		p.println(ErrorStyle.Render(content))
		return
	case p.tty:
		p.printf("%s", renderMarkdown(content, GetTerminalWidth()-4))
	default:
		p.println(content)
	}

	if msg.Exhausted {
		p.println(WarningStyle.Render(fmt.Sprintf(
			"The requested %s document was not confirmed after %d attempts; showing the last reply.",
			msg.Format, msg.AttemptCount)))
	} else if msg.WasRetried {
		p.println(DimStyle.Render(fmt.Sprintf("Answered after %d attempts.", msg.AttemptCount)))
	}
	if id := msg.DocumentID(); id != "" {
		p.println(InfoStyle.Render("Document: " + id + "  (docchat download " + id + ")"))
	}
}

// transcriptEntry prints one history entry as "role: content".
func (p *printer) transcriptEntry(msg *model.Message) {
	role := string(msg.Role)
	label := LabelStyle.Render(fmt.Sprintf("[%s] %s:", msg.Timestamp.Format("2006-01-02 15:04"), role))
	body := msg.DisplayContent()
	if msg.AttachedDocumentID != "" {
		body += DimStyle.Render("  (attached " + msg.AttachedDocumentID + ")")
	}
	if id := msg.DocumentID(); id != "" && msg.Role == model.RoleAssistant {
		body += InfoStyle.Render("  (document " + id + ")")
	}
	p.println(label + " " + body)
}

// =============================================================================
// TABLES
// =============================================================================

// table prints rows in fixed-width columns. The last column is not padded.
func (p *printer) table(headers []string, widths []int, rows [][]string) {
	p.println(TitleStyle.Render(formatRow(headers, widths)))
	for _, row := range rows {
		p.println(formatRow(row, widths))
	}
}

func formatRow(cells []string, widths []int) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		c = util.SingleLine(c)
		if i < len(widths) && i < len(cells)-1 {
			parts[i] = util.PadRight(util.TruncateWidth(c, widths[i]), widths[i])
			continue
		}
		if i < len(widths) {
			c = util.TruncateWidth(c, widths[i])
		}
		parts[i] = c
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
