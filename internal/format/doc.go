// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package format defines the output formats a user can request and the
// heuristic that decides whether a reply satisfies one.
//
// # Key Types
//
//   - Format: text, pdf, docx or excel
//   - Validator: the "document generated" marker heuristic
//   - Inspection: what the validator saw, for logging
//
// The validator is an approximate content classifier, not a schema check.
// A reply that merely talks about "a document generated successfully" in
// prose will be classified as a generated document. That is a known
// precision limit of the service's reply format.
package format
