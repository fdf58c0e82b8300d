// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logger provides structured logging for docchat.
//
// Components receive a zerolog.Logger and derive their own child with
// Component. The API token is never logged; prompts are logged only as a
// length and a short preview at debug level (see PromptFields).
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/docchat/internal/util"
)

// Config holds logger configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // human-readable console output
	Output     io.Writer
	WithCaller bool
}

// ParseLevel maps a level name to a zerolog level. Unknown names mean info.
func ParseLevel(name string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// New creates a structured logger. Logs go to stderr by default so they never
// mix with command output on stdout.
func New(cfg Config) zerolog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.Kitchen,
		}
	}

	zlog := zerolog.New(output).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", "docchat").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}
	return zlog
}

// Nop returns a logger that discards everything.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// Component returns a child logger tagged with the component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// promptPreviewRunes bounds the prompt text that reaches debug logs.
const promptPreviewRunes = 60

// PromptFields adds the prompt length and a truncated single-line preview.
func PromptFields(e *zerolog.Event, prompt string) *zerolog.Event {
	return e.Int("prompt_len", len(prompt)).
		Str("prompt_preview", util.TruncateRunes(util.SingleLine(prompt), promptPreviewRunes))
}
