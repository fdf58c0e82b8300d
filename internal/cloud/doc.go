// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud is the HTTP client for the document assistant service.
//
// It covers the chat endpoints the delivery loop depends on (send a prompt,
// fetch history, list conversations) and the surrounding document and
// template endpoints used by the CLI.
//
// # Key Types
//
//   - Client: HTTP/JSON client with bearer auth, rate limiting and size-capped reads
//   - SendRequest / SendResponse: the prompt dispatch contract
//   - HistoryEntry: one authoritative message from conversation history
//   - TransportError: wraps every failure so callers can treat them uniformly
//
// # Usage
//
//	client := cloud.NewClient(cfg.API.BaseURL, cfg.API.Token).
//	    WithTimeout(cfg.API.Timeout.Duration).
//	    WithLogger(log)
//	resp, err := client.SendPrompt(ctx, cloud.SendRequest{Prompt: "Summarize"})
//
// # Errors
//
// A 401 calls the OnUnauthorized hook (the session-invalidation collaborator)
// and returns ErrUnauthorized wrapped in a *TransportError. The client never
// retries on its own; retry policy belongs to the caller.
//
// # Security
//
// The token is never logged. All requests use TLS 1.2+ when the base URL is
// https.
package cloud
