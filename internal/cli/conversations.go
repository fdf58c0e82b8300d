// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// conversations.go - Conversation management for docchat CLI.
//
// Usage:
//
//	docchat conversations list [--json]
//	docchat conversations history ID [--json]
//	docchat conversations rename ID TITLE
//	docchat conversations delete ID
//	docchat conversations export ID [--as markdown|json] [-o DIR]

package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/docchat/internal/cloud"
	"github.com/jeranaias/docchat/internal/export"
	"github.com/jeranaias/docchat/internal/history"
	"github.com/jeranaias/docchat/internal/model"
)

func newConversationsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "List and manage conversations",
	}
	cmd.AddCommand(
		newConversationsListCommand(a),
		newConversationsHistoryCommand(a),
		newConversationsRenameCommand(a),
		newConversationsDeleteCommand(a),
		newConversationsExportCommand(a),
	)
	return cmd
}

func newConversationsListCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List conversations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			convs, err := a.client.ListConversations(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return NewJSONResponse("conversations list", convs).Print(a.out)
			}
			printConversations(newPrinter(a.out), convs)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func printConversations(p *printer, convs []cloud.ConversationSummary) {
	if len(convs) == 0 {
		p.println(DimStyle.Render("No conversations."))
		return
	}
	rows := make([][]string, 0, len(convs))
	for _, c := range convs {
		rows = append(rows, []string{c.ID, formatTime(c.UpdatedAt), c.Title})
	}
	p.table([]string{"ID", "UPDATED", "TITLE"}, []int{24, 16, 60}, rows)
}

func newConversationsHistoryCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history ID",
		Short: "Print a conversation's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := history.NewReconciler(a.client).
				WithLogger(a.log).
				WithMetrics(a.metrics).
				Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return NewJSONResponse("conversations history", msgs).Print(a.out)
			}
			p := newPrinter(a.out)
			if len(msgs) == 0 {
				p.println(DimStyle.Render("No messages."))
				return nil
			}
			for _, m := range msgs {
				p.transcriptEntry(m)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newConversationsRenameCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename ID TITLE",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args[1:], " "))
			if err := a.client.RenameConversation(cmd.Context(), args[0], title); err != nil {
				return err
			}
			newPrinter(a.out).println(SuccessStyle.Render("Renamed " + args[0]))
			return nil
		},
	}
}

func newConversationsDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeleteConversation(cmd.Context(), args[0]); err != nil {
				return err
			}
			newPrinter(a.out).println(SuccessStyle.Render("Deleted " + args[0]))
			return nil
		},
	}
}

func newConversationsExportCommand(a *app) *cobra.Command {
	var as, dir string
	var noMetadata bool
	cmd := &cobra.Command{
		Use:   "export ID",
		Short: "Save a conversation's history as Markdown or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]
			msgs, err := history.NewReconciler(a.client).WithLogger(a.log).WithMetrics(a.metrics).Fetch(ctx, id)
			if err != nil {
				return err
			}

			conv := model.NewConversation(id, "")
			conv.Messages = msgs
			// The title is cosmetic; a failed list leaves the default.
			if convs, err := a.client.ListConversations(ctx); err == nil {
				for _, c := range convs {
					if c.ID == id {
						conv.Title = c.Title
					}
				}
			}

			opts := export.DefaultOptions()
			opts.OutputDir = dir
			opts.IncludeMetadata = !noMetadata
			exp, err := export.ForName(as, opts)
			if err != nil {
				return err
			}
			path, err := export.ToFile(conv, exp, opts)
			if err != nil {
				return err
			}
			newPrinter(a.out).println(SuccessStyle.Render("Exported " + path))
			return nil
		},
	}
	cmd.Flags().StringVar(&as, "as", "markdown", "export format: markdown or json")
	cmd.Flags().StringVarP(&dir, "output", "o", ".", "directory to write to")
	cmd.Flags().BoolVar(&noMetadata, "no-metadata", false, "omit the metadata header")
	return cmd
}
