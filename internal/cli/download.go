// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDownloadCommand(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download ID",
		Short: "Download a generated document",
		Long: `Download a generated document by id. With -o pointing at a directory (or
omitted) the service's file name is used.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, n, err := downloadDocument(cmd.Context(), a.client, args[0], output)
			if err != nil {
				return err
			}
			newPrinter(a.out).println(SuccessStyle.Render(fmt.Sprintf("Saved %s (%s)", path, formatBytes(n))))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file or directory to write to")
	return cmd
}

// formatBytes formats a byte count for display.
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)

	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
