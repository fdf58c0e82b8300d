// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat command for docchat CLI.
//
// Interactive Commands (during chat):
//
//	/help               Show available commands
//	/format [name]      Show or set the output format
//	/attach PATH        Upload a file and attach it
//	/template ID        Attach a server template
//	/detach [ID]        Detach one attachment, or all
//	/new                Start a new conversation
//	/open ID            Switch to an existing conversation
//	/list               List conversations
//	/status             Show session status
//	/quit               Exit chat
//	Ctrl+D              Exit chat

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/docchat/internal/attachment"
	"github.com/jeranaias/docchat/internal/config"
	"github.com/jeranaias/docchat/internal/delivery"
	"github.com/jeranaias/docchat/internal/format"
	"github.com/jeranaias/docchat/internal/model"
	"github.com/jeranaias/docchat/internal/prompt"
	"github.com/jeranaias/docchat/internal/session"
)

// errQuit ends the REPL.
var errQuit = errors.New("quit")

func newChatCommand(a *app) *cobra.Command {
	var conversation, formatName string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := newREPL(a, formatName)
			if err != nil {
				return err
			}
			if conversation != "" {
				if err := r.open(ctx, conversation); err != nil {
					return err
				}
			}
			return r.run(ctx)
		},
	}
	cmd.Flags().StringVarP(&conversation, "conversation", "c", "", "open this conversation")
	cmd.Flags().StringVarP(&formatName, "format", "F", "", "initial output format")
	return cmd
}

// =============================================================================
// REPL
// =============================================================================

// repl is the interactive loop. Line reading is separate from handleLine so
// commands can be driven without a terminal.
type repl struct {
	app    *app
	s      *session.Session
	p      *printer
	format format.Format

	mu      sync.Mutex
	pending attachment.Snapshot
}

func newREPL(a *app, formatName string) (*repl, error) {
	f := a.cfg.DefaultFormat()
	if formatName != "" {
		parsed, err := format.Parse(formatName)
		if err != nil {
			return nil, err
		}
		f = parsed
	}

	r := &repl{app: a, s: a.newSession(), p: newPrinter(a.out), format: f}

	// Retry indicators are printed as they happen.
	r.s.Transcript().Subscribe(func(ev model.Event) {
		if ev.Kind != model.EventAppended {
			return
		}
		for _, m := range ev.Messages {
			if m.IsTransient() {
				r.p.println(DimStyle.Render(m.Content))
			}
		}
	})
	r.s.Attachments().OnChange(func(snap attachment.Snapshot) {
		r.mu.Lock()
		r.pending = snap
		r.mu.Unlock()
	})
	return r, nil
}

func (r *repl) prompt() string {
	label := "new"
	if id := r.s.ActiveConversation(); id != "" {
		label = id
		if len(label) > 8 {
			label = label[:8]
		}
	}
	if !r.format.IsDefault() {
		label += " " + r.format.String()
	}
	if names := r.pendingNames(); len(names) > 0 {
		label += fmt.Sprintf(" +%d", len(names))
	}
	return label + "> "
}

// pendingNames lists the attachments that go out with the next prompt.
func (r *repl) pendingNames() []string {
	r.mu.Lock()
	snap := r.pending
	r.mu.Unlock()

	var names []string
	if name := snap.FileName(); name != "" {
		names = append(names, name)
	}
	for _, t := range snap.Templates {
		names = append(names, t.DisplayName)
	}
	return names
}

// run reads lines until /quit or EOF.
func (r *repl) run(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	historyFile := ""
	if dir, err := config.ConfigDir(); err == nil {
		historyFile = filepath.Join(dir, "chat_history")
		if f, err := os.Open(historyFile); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}
	defer func() {
		if historyFile == "" {
			return
		}
		if err := os.MkdirAll(filepath.Dir(historyFile), 0700); err != nil {
			return
		}
		// SECURITY: History may contain document contents; owner only.
		if f, err := os.OpenFile(historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}()

	r.p.println(TitleStyle.Render("docchat") + DimStyle.Render("  /help for commands, Ctrl+D to exit"))
	for {
		input, err := line.Prompt(r.prompt())
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}

		if err := r.handleLine(ctx, input); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			r.p.println(ErrorStyle.Render(err.Error()))
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// handleLine runs a slash command or sends the line as a prompt.
func (r *repl) handleLine(ctx context.Context, input string) error {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "/") {
		name, arg := parseSlash(input)
		return r.command(ctx, name, arg)
	}
	if input == "" && !r.s.Attachments().HasAny() {
		return nil
	}
	return r.send(ctx, input)
}

// parseSlash splits "/cmd rest of line" into ("cmd", "rest of line").
func parseSlash(input string) (string, string) {
	input = strings.TrimPrefix(strings.TrimSpace(input), "/")
	name, arg, _ := strings.Cut(input, " ")
	return strings.ToLower(name), strings.TrimSpace(arg)
}

func (r *repl) command(ctx context.Context, name, arg string) error {
	switch name {
	case "help", "h", "?":
		r.help()
	case "quit", "q", "exit":
		return errQuit
	case "format", "f":
		if arg == "" {
			r.p.println(RenderLabel("format", r.format.String()))
			return nil
		}
		f, err := format.Parse(arg)
		if err != nil {
			return err
		}
		r.format = f
		r.p.println(RenderLabel("format", f.String()))
	case "attach", "a":
		if arg == "" {
			return errors.New("usage: /attach PATH")
		}
		doc, err := uploadAndAttach(ctx, r.app.client, r.s, arg)
		if err != nil {
			return err
		}
		r.p.println(SuccessStyle.Render("Attached " + doc.Filename))
	case "template", "t":
		if arg == "" {
			return errors.New("usage: /template ID")
		}
		tpl, err := r.s.AttachTemplateByID(ctx, arg)
		if err != nil {
			return err
		}
		r.p.println(SuccessStyle.Render("Attached template " + tpl.DisplayName()))
	case "detach", "d":
		r.detach(arg)
	case "new", "n":
		r.s.NewChat()
		r.p.println(DimStyle.Render("New conversation"))
	case "open", "o":
		if arg == "" {
			return errors.New("usage: /open ID")
		}
		return r.open(ctx, arg)
	case "list", "l":
		if err := r.s.Refresh(ctx); err != nil {
			return err
		}
		printConversations(r.p, r.s.Conversations())
	case "status", "s":
		r.status()
	default:
		return fmt.Errorf("unknown command /%s (try /help)", name)
	}
	return nil
}

func (r *repl) detach(id string) {
	if id == "" || id == "all" {
		r.s.ClearAttachments()
		r.p.println(DimStyle.Render("Attachments cleared"))
		return
	}
	r.s.RemoveFile(id)
	r.s.RemoveTemplate(id)
	r.p.println(DimStyle.Render("Detached " + id))
}

func (r *repl) open(ctx context.Context, id string) error {
	if err := r.s.SelectConversation(ctx, id); err != nil {
		return err
	}
	for _, m := range r.s.Transcript().Snapshot() {
		r.p.transcriptEntry(m)
	}
	return nil
}

func (r *repl) send(ctx context.Context, text string) error {
	r.s.SetDraft(text)
	out, err := r.s.Send(ctx, r.format)
	switch {
	case errors.Is(err, delivery.ErrInFlight):
		return errors.New("still waiting for the previous answer")
	case errors.Is(err, prompt.ErrEmptyInput):
		return nil
	case err != nil:
		return err
	}
	r.p.answer(out.Terminal)
	return nil
}

func (r *repl) status() {
	st := r.s.GetStatus()
	conv := st.Conversation
	if conv == "" {
		conv = "(new)"
	}
	r.p.println(RenderLabel("session", st.SessionID))
	r.p.println(RenderLabel("conversation", conv))
	r.p.println(RenderLabel("format", r.format.String()))
	r.p.println(RenderLabel("messages", fmt.Sprint(st.Messages)))
	attached := fmt.Sprint(st.Attachments)
	if names := r.pendingNames(); len(names) > 0 {
		attached += " (" + strings.Join(names, ", ") + ")"
	}
	r.p.println(RenderLabel("attachments", attached))
	r.p.println(RenderLabel("max attempts", fmt.Sprint(st.MaxRetries)))
	r.p.println(RenderLabel("uptime", session.FormatDuration(st.Duration)))
}

func (r *repl) help() {
	cmds := [][2]string{
		{"/format [name]", "show or set the output format (text, pdf, docx, excel)"},
		{"/attach PATH", "upload a file and attach it"},
		{"/template ID", "attach a server template"},
		{"/detach [ID]", "detach one attachment, or all"},
		{"/new", "start a new conversation"},
		{"/open ID", "switch to an existing conversation"},
		{"/list", "list conversations"},
		{"/status", "show session status"},
		{"/quit", "exit"},
	}
	for _, c := range cmds {
		r.p.printf("  %-18s %s\n", c[0], DimStyle.Render(c[1]))
	}
}
