// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration commands for docchat CLI.
//
// Usage:
//
//	docchat config show         Print the effective configuration
//	docchat config init         Write a default config file
//	docchat config path         Print the config file path

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/docchat/internal/config"
)

// skipSetup marks commands that must run without a loadable config.
var skipSetup = map[string]string{"skipSetup": "true"}

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration file",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration (token redacted)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprint(a.out, a.cfg.String())
				return nil
			},
		},
		newConfigInitCommand(a),
		&cobra.Command{
			Use:         "path",
			Short:       "Print the config file path",
			Args:        cobra.NoArgs,
			Annotations: skipSetup,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := a.resolveConfigPath()
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, path)
				return nil
			},
		},
	)
	return cmd
}

func newConfigInitCommand(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a default config file",
		Args:        cobra.NoArgs,
		Annotations: skipSetup,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.resolveConfigPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.SaveTOML(config.Default(), path); err != nil {
				return err
			}
			newPrinter(a.out).println(SuccessStyle.Render("Wrote " + path))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// resolveConfigPath returns --config or the default path.
func (a *app) resolveConfigPath() (string, error) {
	if a.configPath != "" {
		return a.configPath, nil
	}
	return config.ConfigPath()
}
