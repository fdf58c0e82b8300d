// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/jeranaias/docchat/internal/instructions"
)

func newTemplatesCommand(a *app) *cobra.Command {
	var (
		page, limit int
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List document templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			templates, err := a.client.ListTemplates(cmd.Context(), page, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return NewJSONResponse("templates", templates).Print(a.out)
			}

			p := newPrinter(a.out)
			if len(templates) == 0 {
				p.println(DimStyle.Render("No templates."))
				return nil
			}
			rows := make([][]string, 0, len(templates))
			for _, t := range templates {
				kind := t.InstructionKind()
				if kind == "" {
					kind = "-"
				}
				rows = append(rows, []string{t.ID, kind, t.DisplayName()})
			}
			p.table([]string{"ID", "TYPE", "NAME"}, []int{24, 14, 60}, rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 50, "templates per page")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	cmd.AddCommand(newTemplatesInstructionsCommand(a))
	return cmd
}

// instructionCategories is the display order for the local catalog.
var instructionCategories = []string{
	instructions.CategoryDocumentTemplates,
	instructions.CategoryConversionInstructions,
}

func newTemplatesInstructionsCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "instructions",
		Short: "Show the local hidden instructions sent with templates and formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := a.catalog()
			if asJSON {
				all := make(map[string]map[string]string, len(instructionCategories))
				for _, category := range instructionCategories {
					all[category] = catalog.Category(category)
				}
				return NewJSONResponse("templates instructions", all).Print(a.out)
			}

			p := newPrinter(a.out)
			for _, category := range instructionCategories {
				entries := catalog.Category(category)
				types := make([]string, 0, len(entries))
				for typ := range entries {
					types = append(types, typ)
				}
				sort.Strings(types)

				p.println(LabelStyle.Render(category))
				if len(types) == 0 {
					p.println(DimStyle.Render("  (none)"))
					continue
				}
				rows := make([][]string, 0, len(types))
				for _, typ := range types {
					rows = append(rows, []string{typ, entries[typ]})
				}
				p.table([]string{"TYPE", "INSTRUCTION"}, []int{20, 80}, rows)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
