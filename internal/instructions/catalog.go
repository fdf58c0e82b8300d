// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package instructions

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Categories shipped with the default catalog.
const (
	CategoryDocumentTemplates      = "documentTemplates"
	CategoryConversionInstructions = "conversionInstructions"
)

// DefaultTemplateType is used when a template does not declare a type.
const DefaultTemplateType = "pdf"

// Key addresses one instruction.
type Key struct {
	Category string
	Type     string
}

// String returns "category.type".
func (k Key) String() string {
	return k.Category + "." + k.Type
}

// defaultEntries are the built-in instructions.
var defaultEntries = map[Key]string{
	{CategoryDocumentTemplates, "pdf"}:               "Read the attached document and be ready to answer questions about it.",
	{CategoryDocumentTemplates, "technicalAnalysis"}: "Read the attached technical document and be ready to provide technical analysis.",
	{CategoryDocumentTemplates, "executiveSummary"}:  "Read the attached document and be ready to write executive summaries when asked.",
	{CategoryDocumentTemplates, "dataExtraction"}:    "Read the attached document and be ready to extract data when asked.",

	{CategoryConversionInstructions, "toPdf"}:   "Prepare to convert the content to PDF format when requested.",
	{CategoryConversionInstructions, "toDocx"}:  "Prepare to convert the content to DOCX format when requested.",
	{CategoryConversionInstructions, "toExcel"}: "Prepare to convert the content to Excel format when requested.",
}

// formatDirectiveTypes maps an output format to its conversion instruction.
// Plain text is the default format and has no directive.
var formatDirectiveTypes = map[string]string{
	"pdf":   "toPdf",
	"docx":  "toDocx",
	"excel": "toExcel",
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog is an immutable instruction lookup table.
type Catalog struct {
	entries map[Key]string
	log     zerolog.Logger
}

// New builds a catalog from entries. The map is copied.
func New(entries map[Key]string) *Catalog {
	c := &Catalog{entries: make(map[Key]string, len(entries)), log: zerolog.Nop()}
	for k, v := range entries {
		c.entries[k] = v
	}
	return c
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return New(defaultEntries)
}

// WithOverrides returns a new catalog with overrides applied on top of c.
// Overrides are keyed category -> type -> text; an empty text removes the entry.
func (c *Catalog) WithOverrides(overrides map[string]map[string]string) *Catalog {
	next := New(c.entries)
	next.log = c.log
	for category, types := range overrides {
		for typ, text := range types {
			key := Key{Category: category, Type: typ}
			if strings.TrimSpace(text) == "" {
				delete(next.entries, key)
				continue
			}
			next.entries[key] = text
		}
	}
	return next
}

// WithLogger returns a copy of c that logs missing lookups at debug level.
func (c *Catalog) WithLogger(log zerolog.Logger) *Catalog {
	next := New(c.entries)
	next.log = log.With().Str("component", "instructions").Logger()
	return next
}

// Lookup returns the instruction for (category, type).
func (c *Catalog) Lookup(category, typ string) (string, bool) {
	text, ok := c.entries[Key{Category: category, Type: typ}]
	return text, ok
}

// Instruction returns the instruction for (category, type), or "" when the
// category or type is unknown.
func (c *Catalog) Instruction(category, typ string) string {
	text, ok := c.Lookup(category, typ)
	if !ok {
		c.log.Debug().Str("category", category).Str("type", typ).Msg("instruction not found")
	}
	return text
}

// Category returns a copy of every instruction in category, keyed by type.
func (c *Catalog) Category(category string) map[string]string {
	out := make(map[string]string)
	for k, v := range c.entries {
		if k.Category == category {
			out[k.Type] = v
		}
	}
	return out
}

// Keys returns every key in the catalog, sorted.
func (c *Catalog) Keys() []Key {
	keys := make([]Key, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// ForTemplateType returns the hidden instruction for a server template type.
// An empty type means DefaultTemplateType. Types found in no category are
// looked up in documentTemplates.
func (c *Catalog) ForTemplateType(typ string) string {
	if typ == "" {
		typ = DefaultTemplateType
	}
	for _, category := range []string{CategoryDocumentTemplates, CategoryConversionInstructions} {
		if text, ok := c.Lookup(category, typ); ok {
			return text
		}
	}
	return c.Instruction(CategoryDocumentTemplates, typ)
}

// FormatDirective returns the directive for an output format name
// ("pdf", "docx", "excel"). Text and unknown formats have none.
func (c *Catalog) FormatDirective(format string) string {
	typ, ok := formatDirectiveTypes[format]
	if !ok {
		return ""
	}
	return c.Instruction(CategoryConversionInstructions, typ)
}
