// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot submission for docchat CLI.
//
// Examples:
//
//	docchat ask "Summarize the quarterly report"
//	docchat ask -f report.pdf -F pdf "Executive summary"
//	docchat ask --template 65f1c0 --document 65f1d2 -F docx
//	echo "List the totals" | docchat ask -c 65f0aa --json

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/docchat/internal/delivery"
	"github.com/jeranaias/docchat/internal/format"
)

type askOptions struct {
	format       string
	file         string
	document     string
	templates    []string
	conversation string
	json         bool
	download     string
}

// askResult is the --json payload of ask.
type askResult struct {
	ConversationID string `json:"conversation_id"`
	Created        bool   `json:"created"`
	Status         string `json:"status"`
	Format         string `json:"format"`
	Attempts       int    `json:"attempts"`
	Retried        bool   `json:"retried"`
	Exhausted      bool   `json:"exhausted"`
	Content        string `json:"content"`
	DocumentID     string `json:"document_id,omitempty"`
	DownloadedTo   string `json:"downloaded_to,omitempty"`
	HistoryErrors  int    `json:"history_errors,omitempty"`
}

func newAskCommand(a *app) *cobra.Command {
	opts := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask [text]",
		Short: "Send one prompt and print the answer",
		Long: `Send one prompt, with optional attachments, and print the answer.

When a document format is requested the reply is checked for the service's
"document generated" confirmation and the prompt is resent until it appears
or the retry limit is reached. Piped stdin is used when no text is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, a, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.format, "format", "F", "", "output format: text, pdf, docx, excel (default from config)")
	f.StringVarP(&opts.file, "file", "f", "", "upload this file and attach it")
	f.StringVar(&opts.document, "document", "", "attach an already uploaded document by id")
	f.StringArrayVar(&opts.templates, "template", nil, "attach a server template by id (repeatable)")
	f.StringVarP(&opts.conversation, "conversation", "c", "", "continue this conversation instead of starting a new one")
	f.BoolVar(&opts.json, "json", false, "print the result as JSON")
	f.StringVar(&opts.download, "download", "", "save the generated document into this directory")
	return cmd
}

func runAsk(cmd *cobra.Command, a *app, opts *askOptions, args []string) error {
	ctx := cmd.Context()
	text := strings.TrimSpace(strings.Join(args, " "))
	if in := cmd.InOrStdin(); text == "" && !isTerminalReader(in) {
		data, err := io.ReadAll(io.LimitReader(in, 1<<20))
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = strings.TrimSpace(string(data))
	}

	s := a.newSession()
	if opts.conversation != "" {
		if err := s.SelectConversation(ctx, opts.conversation); err != nil {
			a.log.Warn().Err(err).Msg("continuing without local history")
		}
	}
	if opts.file != "" {
		if _, err := uploadAndAttach(ctx, a.client, s, opts.file); err != nil {
			return err
		}
	}
	if opts.document != "" {
		s.AttachFile(opts.document, opts.document)
	}
	for _, id := range opts.templates {
		if _, err := s.AttachTemplateByID(ctx, id); err != nil {
			return err
		}
	}

	s.SetDraft(text)
	out, err := s.Send(ctx, format.Format(opts.format))
	if err != nil {
		return err
	}

	res := askResult{
		ConversationID: out.ConversationID,
		Created:        out.Created,
		Status:         string(out.Status),
		Attempts:       out.AttemptCount(),
		HistoryErrors:  len(out.HistoryErrors),
	}
	if t := out.Terminal; t != nil {
		res.Format = t.Format
		res.Retried = t.WasRetried
		res.Exhausted = t.Exhausted
		res.Content = t.DisplayContent()
		res.DocumentID = t.DocumentID()
	}

	var dlErr error
	if opts.download != "" && res.DocumentID != "" {
		dir := strings.TrimSuffix(opts.download, string(os.PathSeparator)) + string(os.PathSeparator)
		path, _, err := downloadDocument(ctx, a.client, res.DocumentID, dir)
		if err != nil {
			dlErr = err
		} else {
			res.DownloadedTo = path
		}
	}

	failure := errors.Join(outcomeError(out), dlErr)
	if opts.json {
		if failure != nil {
			_ = NewJSONErrorResponse("ask", failure, res).Print(a.out)
			return failure
		}
		return NewJSONResponse("ask", res).Print(a.out)
	}

	p := newPrinter(a.out)
	p.answer(out.Terminal)
	if out.Created {
		fmt.Fprintln(a.errOut, DimStyle.Render("Conversation: "+out.ConversationID))
	}
	if res.DownloadedTo != "" {
		fmt.Fprintln(a.errOut, SuccessStyle.Render("Saved "+res.DownloadedTo))
	}
	return failure
}

// outcomeError turns a failed submission into a command error.
func outcomeError(out *delivery.Outcome) error {
	if out.Delivered() {
		return nil
	}
	if out.Err != nil {
		return fmt.Errorf("%s: %w", out.Status, out.Err)
	}
	return errors.New(string(out.Status))
}
