// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions shared across docchat.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe string truncation with ellipsis
//   - TruncateWidth, PadRight: display-width aware helpers for terminal tables
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//   - AtomicWriteStream: Same pattern for streamed content (downloads)
//
// Timing:
//   - Sleep: context-aware delay; SleepFunc lets tests skip real waits
//
// # Usage
//
//	display := util.TruncateRunes(longText, 50)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
