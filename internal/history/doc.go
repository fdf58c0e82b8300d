// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history fetches authoritative conversation history and reconciles
// the local transcript against it.
//
// Reconciliation is a wholesale replace of the transcript: there is no
// per-message merge, and the most recent reconciliation wins.
package history
