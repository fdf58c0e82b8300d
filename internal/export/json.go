// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jeranaias/docchat/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports conversations to JSON format.
// NOTE: JSON exports always include every durable message regardless of
// IncludeMetadata and IncludeTimestamps.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

type jsonExport struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	ExportedAt time.Time        `json:"exported_at"`
	Messages   []*model.Message `json:"messages"`
}

// Export converts a conversation to indented JSON.
func (e *JSONExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}
	msgs := durable(conv.Messages)
	if len(msgs) == 0 {
		return nil, ErrEmptyConversation
	}
	return json.MarshalIndent(jsonExport{
		ID:         conv.ID,
		Title:      conv.GetTitle(),
		ExportedAt: e.options.now().UTC(),
		Messages:   msgs,
	}, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
