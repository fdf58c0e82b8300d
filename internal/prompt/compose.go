// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"errors"
	"strings"
)

const (
	// FallbackPrompt replaces empty user text when only attachments are present.
	FallbackPrompt = "Process this attached file"

	// FallbackDisplay is what the transcript shows for the same case.
	FallbackDisplay = "Process file"

	instructionSeparator = ". "
	directiveSeparator   = "\n\n"
)

// ErrEmptyInput is returned when there is nothing to send.
var ErrEmptyInput = errors.New("nothing to send: no text, attachment or template instruction")

// Input holds everything a prompt is built from.
type Input struct {
	// UserText is the literal text the user typed. It is trimmed.
	UserText string

	// HiddenInstructions are the template instructions in attach order.
	// Blank entries are ignored.
	HiddenInstructions []string

	// HasAttachment reports whether a file is attached.
	HasAttachment bool

	// FormatDirective is the conversion instruction for a non-default format,
	// or "" for plain text.
	FormatDirective string
}

// Compose builds the outbound prompt.
func Compose(in Input) (string, error) {
	text := strings.TrimSpace(in.UserText)
	hidden := nonBlank(in.HiddenInstructions)

	if text == "" && !in.HasAttachment && len(hidden) == 0 {
		return "", ErrEmptyInput
	}
	if text == "" {
		text = FallbackPrompt
	}

	var b strings.Builder
	if len(hidden) > 0 {
		b.WriteString(strings.Join(hidden, instructionSeparator))
		b.WriteString(instructionSeparator)
	}
	b.WriteString(text)

	if directive := strings.TrimSpace(in.FormatDirective); directive != "" {
		b.WriteString(directiveSeparator)
		b.WriteString(directive)
	}
	return b.String(), nil
}

// DisplayText returns the text shown on the optimistic user entry. Hidden
// instructions never appear there.
func DisplayText(userText string) string {
	if text := strings.TrimSpace(userText); text != "" {
		return text
	}
	return FallbackDisplay
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
