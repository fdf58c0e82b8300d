// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package attachment holds the pending attachments of the message being
// composed: zero or one uploaded file and any number of templates.
//
// Every mutation is synchronous and infallible. Subscribers are notified with
// the new snapshot after each change. The delivery orchestrator only ever
// calls ClearAll, and only after a terminal outcome.
package attachment
