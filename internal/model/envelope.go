// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
)

// EnvelopeStatusSuccess is the status the service sets on a completed document job.
const EnvelopeStatusSuccess = "success"

// Envelope is the structured form some assistant replies take:
//
//	{"status":"success","message":"...","document_id":"...","format":"pdf"}
//
// Content is parsed into an Envelope once, when a Message is created.
type Envelope struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	DocumentID string `json:"document_id"`
	Format     string `json:"format,omitempty"`
}

// IsSuccess reports whether the envelope status is "success".
func (e *Envelope) IsSuccess() bool {
	return e != nil && strings.EqualFold(e.Status, EnvelopeStatusSuccess)
}

// HasDocument reports whether the envelope names a generated document.
func (e *Envelope) HasDocument() bool {
	return e != nil && e.DocumentID != ""
}

// ParseEnvelope parses content as an Envelope. Only content that starts with
// '{' is considered; anything that fails to parse is "not structured" and
// yields nil rather than an error.
func ParseEnvelope(content string) *Envelope {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}
	var env Envelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return nil
	}
	if env == (Envelope{}) {
		return nil
	}
	return &env
}
