// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package format

import (
	"errors"
	"fmt"
	"strings"
)

// Format is a requested output format.
type Format string

const (
	Text  Format = "text"
	PDF   Format = "pdf"
	DOCX  Format = "docx"
	Excel Format = "excel"
)

// Default is the format used when none is requested.
const Default = Text

// ErrUnknownFormat is returned by Parse for unrecognised names.
var ErrUnknownFormat = errors.New("unknown format")

// All lists the supported formats in display order.
var All = []Format{Text, PDF, DOCX, Excel}

var aliases = map[string]Format{
	"":      Text,
	"text":  Text,
	"txt":   Text,
	"plain": Text,
	"pdf":   PDF,
	"docx":  DOCX,
	"word":  DOCX,
	"doc":   DOCX,
	"excel": Excel,
	"xlsx":  Excel,
	"xls":   Excel,
}

// Parse converts a user-supplied name into a Format. Matching is
// case-insensitive and accepts common aliases. An empty name is Text.
func Parse(s string) (Format, error) {
	f, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q (want text, pdf, docx or excel)", ErrUnknownFormat, s)
	}
	return f, nil
}

// String returns the format name.
func (f Format) String() string {
	return string(f)
}

// IsDefault reports whether f is plain text, which needs no directive.
func (f Format) IsDefault() bool {
	return f == Text || f == ""
}

// Extension returns the file extension of a generated document, including
// the dot. Text has none.
func (f Format) Extension() string {
	switch f {
	case PDF:
		return ".pdf"
	case DOCX:
		return ".docx"
	case Excel:
		return ".xlsx"
	default:
		return ""
	}
}

// EnvelopeFormat returns the value the service puts in an envelope's
// "format" field for f. Excel documents are reported as "xlsx".
func (f Format) EnvelopeFormat() string {
	switch f {
	case Excel:
		return "xlsx"
	case Text:
		return ""
	default:
		return string(f)
	}
}
