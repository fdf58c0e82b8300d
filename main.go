// docchat - A terminal client for document-chat assistants.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import "github.com/jeranaias/docchat/internal/cli"

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
}

func main() {
	cli.Execute()
}
