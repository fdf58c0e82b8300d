// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"errors"
	"strings"
	"testing"
)

func TestCompose(t *testing.T) {
	tests := []struct {
		name  string
		input Input
		want  string
	}{
		{
			name:  "text only",
			input: Input{UserText: "  Summarize  "},
			want:  "Summarize",
		},
		{
			name:  "attachment without text uses fallback",
			input: Input{HasAttachment: true},
			want:  FallbackPrompt,
		},
		{
			name:  "templates come first",
			input: Input{UserText: "Go", HiddenInstructions: []string{"Read it", "", "Be brief"}},
			want:  "Read it. Be brief. Go",
		},
		{
			name:  "directive comes last",
			input: Input{UserText: "Export table", FormatDirective: "Convert to Excel."},
			want:  "Export table\n\nConvert to Excel.",
		},
		{
			name: "all sources",
			input: Input{
				HiddenInstructions: []string{"Read it"},
				HasAttachment:      true,
				FormatDirective:    "Convert to PDF.",
			},
			want: "Read it. " + FallbackPrompt + "\n\nConvert to PDF.",
		},
		{
			name:  "template alone is enough",
			input: Input{HiddenInstructions: []string{"Summarize the document"}},
			want:  "Summarize the document. " + FallbackPrompt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compose(tt.input)
			if err != nil {
				t.Fatalf("Compose() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Compose() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompose_EmptyInput(t *testing.T) {
	inputs := []Input{
		{},
		{UserText: "   "},
		{HiddenInstructions: []string{"", "  "}},
		{FormatDirective: "Convert to PDF."},
	}
	for _, in := range inputs {
		if _, err := Compose(in); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Compose(%+v) error = %v, want ErrEmptyInput", in, err)
		}
	}
}

func TestCompose_DirectiveAfterUserText(t *testing.T) {
	directive := "Prepare to convert the content to PDF format when requested."
	texts := []string{"a", "Summarize this", "multi\nline text", FallbackPrompt, "text mentioning PDF"}

	for _, text := range texts {
		for _, hidden := range [][]string{nil, {"Template A"}, {"A", "B"}} {
			got, err := Compose(Input{UserText: text, HiddenInstructions: hidden, FormatDirective: directive})
			if err != nil {
				t.Fatalf("Compose() error = %v", err)
			}
			textAt := strings.Index(got, strings.TrimSpace(text))
			directiveAt := strings.LastIndex(got, directive)
			if textAt < 0 || directiveAt <= textAt {
				t.Errorf("directive not after user text in %q", got)
			}
			if !strings.HasSuffix(got, "\n\n"+directive) {
				t.Errorf("prompt %q does not end with the directive", got)
			}
		}
	}
}

func TestCompose_Deterministic(t *testing.T) {
	in := Input{UserText: "x", HiddenInstructions: []string{"y"}, FormatDirective: "z"}
	first, _ := Compose(in)
	for i := 0; i < 5; i++ {
		if again, _ := Compose(in); again != first {
			t.Fatalf("Compose not deterministic: %q vs %q", first, again)
		}
	}
}

func TestDisplayText(t *testing.T) {
	if got := DisplayText("  hello "); got != "hello" {
		t.Errorf("DisplayText = %q", got)
	}
	if got := DisplayText(""); got != FallbackDisplay {
		t.Errorf("DisplayText empty = %q", got)
	}
}
