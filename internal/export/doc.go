// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a conversation's server history to a local file.
//
// # Key Types
//
//   - Exporter: Converts a conversation to bytes in one format
//   - Options: Output directory and metadata switches
//
// # Supported Formats
//
//   - Markdown: Human-readable, with document references
//   - JSON: The conversation and its messages as stored
//
// # Usage
//
//	exp, err := export.ForName("markdown", nil)
//	path, err := export.ToFile(conv, exp, &export.Options{OutputDir: "."})
package export
