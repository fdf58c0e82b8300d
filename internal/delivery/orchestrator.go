// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/docchat/internal/attachment"
	"github.com/jeranaias/docchat/internal/cloud"
	"github.com/jeranaias/docchat/internal/format"
	"github.com/jeranaias/docchat/internal/instructions"
	"github.com/jeranaias/docchat/internal/logger"
	"github.com/jeranaias/docchat/internal/metrics"
	"github.com/jeranaias/docchat/internal/model"
	"github.com/jeranaias/docchat/internal/prompt"
	"github.com/jeranaias/docchat/internal/provision"
	"github.com/jeranaias/docchat/internal/util"
)

// Defaults for Options.
const (
	DefaultMaxRetries        = 5
	DefaultSettleDelay       = 2 * time.Second
	DefaultInterAttemptDelay = 1 * time.Second
)

// Terminal entry texts for failures.
const (
	ConnectionErrorText   = "Connection or server error. Please try again."
	ProvisioningErrorText = "Could not start a new conversation. Please try again."
	NoContentText         = "Reply received, but its content could not be identified."

	retryIndicatorFormat = "Retrying... (attempt %d/%d)"
)

// ErrInFlight is returned when a submission is already running for the
// conversation. The new submission is dropped, not queued.
var ErrInFlight = errors.New("a submission is already in flight for this conversation")

// =============================================================================
// COLLABORATORS
// =============================================================================

// Dispatcher sends a prompt. *cloud.Client satisfies it.
type Dispatcher interface {
	SendPrompt(ctx context.Context, req cloud.SendRequest) (*cloud.SendResponse, error)
}

// HistoryFetcher returns authoritative history. *history.Reconciler satisfies it.
type HistoryFetcher interface {
	Fetch(ctx context.Context, conversationID string) ([]*model.Message, error)
}

// Provisioner resolves or creates a conversation. *provision.Provisioner
// satisfies it.
type Provisioner interface {
	Ensure(ctx context.Context, conversationID string, req cloud.SendRequest) (*provision.Result, error)
}

// Attachments is the pending attachment state. *attachment.State satisfies it.
type Attachments interface {
	Snapshot() attachment.Snapshot
	ClearAll()
}

// InputClearer clears the user's draft once the submission is accepted.
type InputClearer interface {
	ClearInput()
}

// InputClearerFunc adapts a function to InputClearer.
type InputClearerFunc func()

// ClearInput calls f.
func (f InputClearerFunc) ClearInput() { f() }

// Deps are the orchestrator's collaborators. Input is optional.
type Deps struct {
	Dispatcher  Dispatcher
	History     HistoryFetcher
	Provisioner Provisioner
	Attachments Attachments
	Transcript  *model.Transcript
	Catalog     *instructions.Catalog
	Validator   *format.Validator
	Input       InputClearer
}

// Options tunes the retry loop.
type Options struct {
	MaxRetries        int
	SettleDelay       time.Duration
	InterAttemptDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.InterAttemptDelay <= 0 {
		o.InterAttemptDelay = DefaultInterAttemptDelay
	}
	return o
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator runs submissions. It is safe for concurrent use; submissions
// for the same conversation are serialised by dropping the later one.
type Orchestrator struct {
	deps    Deps
	opts    Options
	sleep   util.SleepFunc
	log     zerolog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates an orchestrator. Missing Catalog and Validator get defaults.
func New(deps Deps, opts Options) *Orchestrator {
	if deps.Catalog == nil {
		deps.Catalog = instructions.Default()
	}
	if deps.Validator == nil {
		deps.Validator = format.NewValidator()
	}
	if deps.Transcript == nil {
		deps.Transcript = model.NewTranscript()
	}
	return &Orchestrator{
		deps:     deps,
		opts:     opts.withDefaults(),
		sleep:    util.Sleep,
		log:      zerolog.Nop(),
		inFlight: make(map[string]struct{}),
	}
}

// WithSleeper replaces the delay function.
func (o *Orchestrator) WithSleeper(fn util.SleepFunc) *Orchestrator {
	if fn != nil {
		o.sleep = fn
	}
	return o
}

// WithLogger sets the logger.
func (o *Orchestrator) WithLogger(log zerolog.Logger) *Orchestrator {
	o.log = logger.Component(log, "delivery")
	return o
}

// WithMetrics records submission and dispatch metrics.
func (o *Orchestrator) WithMetrics(m *metrics.Metrics) *Orchestrator {
	o.metrics = m
	return o
}

// MaxRetries returns the attempt bound.
func (o *Orchestrator) MaxRetries() int {
	return o.opts.MaxRetries
}

// InFlight reports whether a submission is running for conversationID. An
// empty id is the key shared by submissions that create a conversation.
func (o *Orchestrator) InFlight(conversationID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, busy := o.inFlight[conversationID]
	return busy
}

func (o *Orchestrator) acquire(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[key]; busy {
		return false
	}
	o.inFlight[key] = struct{}{}
	return true
}

func (o *Orchestrator) release(keys []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, k := range keys {
		delete(o.inFlight, k)
	}
}

// Submit runs one submission to completion.
//
// The only errors returned are rejections made before any network activity
// or transcript change: ErrInFlight, prompt.ErrEmptyInput and
// format.ErrUnknownFormat. Everything else, including transport and
// provisioning failures, is reported through the Outcome and a single
// terminal transcript entry.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*Outcome, error) {
	f, err := format.Parse(string(req.Format))
	if err != nil {
		return nil, err
	}

	key := req.ConversationID
	if !o.acquire(key) {
		o.log.Debug().Str("conversation", key).Msg("submission dropped: already in flight")
		return nil, ErrInFlight
	}
	held := []string{key}
	// RELIABILITY: The in-flight flag is released on every exit path.
	defer func() { o.release(held) }()

	snap := o.deps.Attachments.Snapshot()
	directive := ""
	if !f.IsDefault() {
		directive = o.deps.Catalog.FormatDirective(f.String())
	}
	text, err := prompt.Compose(prompt.Input{
		UserText:           req.Text,
		HiddenInstructions: snap.HiddenInstructions(),
		HasAttachment:      snap.File != nil,
		FormatDirective:    directive,
	})
	if err != nil {
		return nil, err
	}

	o.metrics.SubmissionStarted()
	out := &Outcome{ConversationID: key}
	defer func() { o.metrics.SubmissionFinished(string(out.Status), len(out.Attempts)) }()

	logger.PromptFields(o.log.Debug(), text).
		Str("conversation", key).
		Str("format", f.String()).
		Str("document", snap.FileID()).
		Int("templates", len(snap.Templates)).
		Msg("submission started")

	user := model.NewUserMessage(prompt.DisplayText(req.Text))
	user.AttachedDocumentID = snap.FileID()
	user.AttachedFileName = snap.FileName()
	user.Format = f.String()
	o.deps.Transcript.Append(user)
	out.UserMessage = user
	if o.deps.Input != nil {
		o.deps.Input.ClearInput()
	}

	send := cloud.SendRequest{Prompt: text, ConversationID: key, InputDocumentID: snap.FileID()}
	res, err := o.deps.Provisioner.Ensure(ctx, key, send)
	if err != nil {
		var perr *provision.ProvisioningError
		if errors.As(err, &perr) {
			o.log.Error().Err(err).Msg("conversation provisioning failed")
			return o.fail(out, StatusProvisioningError, ProvisioningErrorText, err), nil
		}
		o.log.Error().Err(err).Msg("creating dispatch failed")
		out.Attempts = append(out.Attempts, Attempt{Number: 1, Format: f, Prompt: text, Outcome: OutcomeTransportError})
		return o.fail(out, StatusTransportError, ConnectionErrorText, err), nil
	}

	out.ConversationID = res.ConversationID
	out.Conversation = res.Conversation
	out.Created = res.Created
	send.ConversationID = res.ConversationID
	if res.Created {
		if o.acquire(res.ConversationID) {
			held = append(held, res.ConversationID)
		} else {
			// The prompt is already on the wire; finish it without taking the key.
			o.log.Warn().Str("conversation", res.ConversationID).
				Msg("new conversation already has a submission in flight")
		}
	}

	o.runLoop(ctx, out, f, send, res.Immediate)
	return out, nil
}

// candidate is the content validated on one attempt.
type candidate struct {
	content     string
	fromHistory bool
	message     *model.Message
	reply       *cloud.SendResponse
}

// runLoop dispatches and validates until a valid answer, exhaustion or a
// transport failure, then appends the terminal entry.
func (o *Orchestrator) runLoop(ctx context.Context, out *Outcome, f format.Format, send cloud.SendRequest, immediate *cloud.SendResponse) {
	limit := o.opts.MaxRetries
	var last candidate

	for n := 1; n <= limit; n++ {
		att := Attempt{Number: n, Format: f, Prompt: send.Prompt, Outcome: OutcomePending}

		if n > 1 {
			o.deps.Transcript.Append(model.NewRetryIndicator(fmt.Sprintf(retryIndicatorFormat, n, limit)))
		}

		var reply *cloud.SendResponse
		if n == 1 && immediate != nil {
			reply = immediate
			att.Reused = true
		} else {
			start := time.Now()
			r, err := o.deps.Dispatcher.SendPrompt(ctx, send)
			o.metrics.ObserveDispatch(time.Since(start), err)
			if err != nil {
				o.log.Error().Err(err).Int("attempt", n).Msg("dispatch failed, aborting")
				att.Outcome = OutcomeTransportError
				out.Attempts = append(out.Attempts, att)
				o.fail(out, StatusTransportError, ConnectionErrorText, err)
				return
			}
			reply = r
		}

		if err := o.sleep(ctx, o.opts.SettleDelay); err != nil {
			att.Outcome = OutcomeTransportError
			out.Attempts = append(out.Attempts, att)
			o.fail(out, StatusTransportError, ConnectionErrorText, err)
			return
		}

		last = o.pickCandidate(ctx, out, reply)
		att.Candidate = last.content
		att.FromHistory = last.fromHistory

		inspection := o.deps.Validator.Inspect(last.content, f)
		valid := inspection.Satisfies(f)
		o.log.Debug().
			Int("attempt", n).
			Bool("from_history", last.fromHistory).
			Bool("marker", inspection.Marker).
			Bool("extension", inspection.Extension).
			Str("envelope_format", inspection.EnvelopeFormat).
			Bool("valid", valid).
			Msg("attempt validated")

		if valid {
			att.Outcome = OutcomeValid
			out.Attempts = append(out.Attempts, att)
			o.deliver(out, f, last, false)
			return
		}

		att.Outcome = OutcomeInvalid
		if n == limit {
			att.Outcome = OutcomeExhausted
			out.Attempts = append(out.Attempts, att)
			break
		}
		out.Attempts = append(out.Attempts, att)

		if err := o.sleep(ctx, o.opts.InterAttemptDelay); err != nil {
			o.fail(out, StatusTransportError, ConnectionErrorText, err)
			return
		}
	}

	o.log.Warn().Int("attempts", limit).Str("format", f.String()).Msg("no reply in the requested format, delivering last attempt")
	o.deliver(out, f, last, true)
}

// pickCandidate prefers the last assistant entry in history and falls back
// to the immediate reply when the fetch fails or has no assistant entry.
func (o *Orchestrator) pickCandidate(ctx context.Context, out *Outcome, reply *cloud.SendResponse) candidate {
	c := candidate{content: reply.Text(), reply: reply}

	msgs, err := o.deps.History.Fetch(ctx, out.ConversationID)
	if err != nil {
		out.HistoryErrors = append(out.HistoryErrors, err)
		return c
	}
	if m := model.LastAssistant(msgs); m != nil && m.Content != "" {
		c.content = m.Content
		c.fromHistory = true
		c.message = m
	}
	return c
}

// deliver clears attachments and appends the terminal answer.
func (o *Orchestrator) deliver(out *Outcome, f format.Format, c candidate, exhausted bool) {
	o.deps.Attachments.ClearAll()

	content := c.content
	if content == "" {
		content = NoContentText
	}
	msg := model.NewAssistantMessage(content)
	msg.Format = f.String()
	msg.AttemptCount = len(out.Attempts)
	msg.WasRetried = len(out.Attempts) > 1
	msg.Exhausted = exhausted
	msg.GeneratedDocumentID = generatedDocumentID(c, msg)

	o.deps.Transcript.Append(msg)
	out.Terminal = msg
	out.Status = StatusValid
	if exhausted {
		out.Status = StatusExhausted
	}

	o.log.Info().
		Str("conversation", out.ConversationID).
		Str("status", string(out.Status)).
		Int("attempts", msg.AttemptCount).
		Str("document", msg.GeneratedDocumentID).
		Msg("submission delivered")
}

// generatedDocumentID prefers the immediate reply's id, then the history
// entry's, then the terminal content's own envelope.
func generatedDocumentID(c candidate, msg *model.Message) string {
	if c.reply != nil && c.reply.DocumentID != "" {
		return c.reply.DocumentID
	}
	if c.message != nil {
		if id := c.message.DocumentID(); id != "" {
			return id
		}
	}
	if msg.Envelope != nil {
		return msg.Envelope.DocumentID
	}
	return ""
}

// fail appends the generic error entry. Attachments are kept so the user can
// resend without re-attaching.
func (o *Orchestrator) fail(out *Outcome, status Status, text string, err error) *Outcome {
	msg := model.NewErrorMessage(text)
	msg.AttemptCount = len(out.Attempts)
	o.deps.Transcript.Append(msg)
	out.Terminal = msg
	out.Status = status
	out.Err = err
	return out
}
