// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the docchat command tree.
//
// Commands are built with cobra. Every command except "config init" and
// "config path" loads configuration, builds the service client and wires a
// session before it runs.
//
// # Key Types
//
//   - NewRootCommand: The command tree, writing to caller-supplied streams
//   - JSONResponse: Envelope for --json output
//
// # Usage
//
//	func main() {
//	    cli.Execute()
//	}
//
// # Commands Overview
//
//   - ask: Send one prompt and print the answer
//   - chat: Interactive session with slash commands
//   - conversations: list, history, rename, delete, export
//   - templates: List document templates
//   - download: Save a generated document
//   - config: show, init, path
package cli
