// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package format

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/docchat/internal/model"
)

// Marker is a pair of phrases that together mean "a document was
// generated". Both must appear somewhere in the content, in any order.
type Marker struct {
	Subject string `toml:"subject"`
	Outcome string `toml:"outcome"`
}

// DefaultMarkers are the phrases the service is known to use.
var DefaultMarkers = []Marker{
	{Subject: "Document", Outcome: "generated successfully"},
	{Subject: "Documento", Outcome: "gerado com sucesso"},
}

// Inspection records what the validator found in a piece of content.
type Inspection struct {
	Marker         bool
	Extension      bool
	Structured     bool
	EnvelopeDocID  string
	EnvelopeFormat string
}

// Validator classifies replies against a requested format.
type Validator struct {
	markers []Marker
}

// NewValidator returns a validator using markers, or DefaultMarkers when
// none are given. Markers with an empty phrase are ignored.
func NewValidator(markers ...Marker) *Validator {
	if len(markers) == 0 {
		markers = DefaultMarkers
	}
	v := &Validator{}
	for _, m := range markers {
		subject := fold(m.Subject)
		outcome := fold(m.Outcome)
		if subject == "" || outcome == "" {
			continue
		}
		v.markers = append(v.markers, Marker{Subject: subject, Outcome: outcome})
	}
	return v
}

// Inspect checks content for the marker, the expected extension and a
// structured envelope.
func (v *Validator) Inspect(content string, expected Format) Inspection {
	folded := fold(content)

	var p Inspection
	for _, m := range v.markers {
		if strings.Contains(folded, m.Subject) && strings.Contains(folded, m.Outcome) {
			p.Marker = true
			break
		}
	}
	if ext := expected.Extension(); ext != "" {
		p.Extension = strings.Contains(folded, ext)
	}
	if env := model.ParseEnvelope(content); env != nil {
		p.Structured = true
		p.EnvelopeDocID = env.DocumentID
		p.EnvelopeFormat = strings.ToLower(env.Format)
	}
	return p
}

// IsValid reports whether content satisfies expected.
//
// Text is valid when no document was generated: no marker and no envelope
// document id. Any other format needs the marker plus either the matching
// file extension or a matching envelope format.
func (v *Validator) IsValid(content string, expected Format) bool {
	return v.Inspect(content, expected).Satisfies(expected)
}

// Satisfies applies the decision table to an inspection.
func (p Inspection) Satisfies(expected Format) bool {
	if expected.IsDefault() {
		return !p.Marker && p.EnvelopeDocID == ""
	}
	if !p.Marker {
		return false
	}
	return p.Extension || (p.EnvelopeFormat != "" && p.EnvelopeFormat == expected.EnvelopeFormat())
}

// fold normalises to NFC and lower case so composed and decomposed accents
// compare equal.
func fold(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}
