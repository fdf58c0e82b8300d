// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jeranaias/docchat/internal/attachment"
	"github.com/jeranaias/docchat/internal/cloud"
	"github.com/jeranaias/docchat/internal/delivery"
	"github.com/jeranaias/docchat/internal/format"
	"github.com/jeranaias/docchat/internal/instructions"
	"github.com/jeranaias/docchat/internal/logger"
	"github.com/jeranaias/docchat/internal/metrics"
	"github.com/jeranaias/docchat/internal/model"
	"github.com/jeranaias/docchat/internal/util"
)

// DefaultReconcileDelay is the pause between a delivered answer and the
// history reload that replaces the transcript.
const DefaultReconcileDelay = 1 * time.Second

// =============================================================================
// COLLABORATORS
// =============================================================================

// Directory lists conversations and templates. *cloud.Client satisfies it.
type Directory interface {
	ListConversations(ctx context.Context) ([]cloud.ConversationSummary, error)
	FindTemplate(ctx context.Context, id string) (*cloud.Template, error)
}

// History loads authoritative history. *history.Reconciler satisfies it.
type History interface {
	delivery.HistoryFetcher
	Reconcile(ctx context.Context, t *model.Transcript, conversationID string) ([]*model.Message, error)
}

// Deps are the session's collaborators.
type Deps struct {
	Directory   Directory
	Dispatcher  delivery.Dispatcher
	History     History
	Provisioner delivery.Provisioner
	Catalog     *instructions.Catalog
	Validator   *format.Validator
}

// Config holds configuration for the session.
type Config struct {
	Delivery delivery.Options

	// ReconcileDelay is the wait before reloading history after an answer.
	ReconcileDelay time.Duration

	// DefaultFormat is used when Send is called with an empty format.
	DefaultFormat format.Format
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		ReconcileDelay: DefaultReconcileDelay,
		DefaultFormat:  format.Default,
	}
}

// =============================================================================
// SESSION
// =============================================================================

// Session is the client-side state of one user's chat: the active
// conversation, the conversation list, the draft, pending attachments and
// the transcript.
type Session struct {
	mu sync.Mutex

	id        string
	startTime time.Time

	active        string
	conversations []cloud.ConversationSummary
	draft         string

	deps        Deps
	cfg         Config
	attachments *attachment.State
	transcript  *model.Transcript
	orch        *delivery.Orchestrator

	sleep util.SleepFunc
	log   zerolog.Logger
}

// New creates a session with no active conversation.
func New(deps Deps, cfg Config) *Session {
	if cfg.ReconcileDelay <= 0 {
		cfg.ReconcileDelay = DefaultReconcileDelay
	}
	if cfg.DefaultFormat == "" {
		cfg.DefaultFormat = format.Default
	}
	if deps.Catalog == nil {
		deps.Catalog = instructions.Default()
	}

	s := &Session{
		id:          "sess_" + uuid.NewString(),
		startTime:   time.Now(),
		deps:        deps,
		cfg:         cfg,
		attachments: attachment.NewState(),
		transcript:  model.NewTranscript(),
		sleep:       util.Sleep,
		log:         zerolog.Nop(),
	}
	s.orch = delivery.New(delivery.Deps{
		Dispatcher:  deps.Dispatcher,
		History:     deps.History,
		Provisioner: deps.Provisioner,
		Attachments: s.attachments,
		Transcript:  s.transcript,
		Catalog:     deps.Catalog,
		Validator:   deps.Validator,
		Input:       delivery.InputClearerFunc(s.clearDraft),
	}, cfg.Delivery)
	return s
}

// WithSleeper replaces the delay function for the session and its
// orchestrator.
func (s *Session) WithSleeper(fn util.SleepFunc) *Session {
	if fn != nil {
		s.sleep = fn
		s.orch.WithSleeper(fn)
	}
	return s
}

// WithLogger sets the logger for the session and its orchestrator.
func (s *Session) WithLogger(log zerolog.Logger) *Session {
	s.log = logger.Component(log, "session").With().Str("session", s.id).Logger()
	s.orch.WithLogger(log)
	return s
}

// WithMetrics records submission metrics.
func (s *Session) WithMetrics(m *metrics.Metrics) *Session {
	s.orch.WithMetrics(m)
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Transcript returns the live transcript.
func (s *Session) Transcript() *model.Transcript {
	return s.transcript
}

// Attachments returns the pending attachment state.
func (s *Session) Attachments() *attachment.State {
	return s.attachments
}

// Orchestrator returns the submission orchestrator.
func (s *Session) Orchestrator() *delivery.Orchestrator {
	return s.orch
}

// ActiveConversation returns the active conversation id, or "".
func (s *Session) ActiveConversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Conversations returns the cached conversation list.
func (s *Session) Conversations() []cloud.ConversationSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]cloud.ConversationSummary(nil), s.conversations...)
}

// Busy reports whether a submission is running for the active conversation.
func (s *Session) Busy() bool {
	return s.orch.InFlight(s.ActiveConversation())
}

// =============================================================================
// DRAFT AND ATTACHMENTS
// =============================================================================

// SetDraft replaces the draft input text.
func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()
}

// Draft returns the draft input text.
func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

func (s *Session) clearDraft() {
	s.SetDraft("")
}

// AttachFile sets the pending file.
func (s *Session) AttachFile(id, name string) {
	s.attachments.AttachFile(id, name)
}

// AttachTemplate adds a template with its hidden instruction.
func (s *Session) AttachTemplate(id, name, instruction string) {
	s.attachments.AttachTemplate(id, name, instruction)
}

// RemoveFile detaches the pending file.
func (s *Session) RemoveFile(id string) {
	s.attachments.RemoveFile(id)
}

// RemoveTemplate detaches a template.
func (s *Session) RemoveTemplate(id string) {
	s.attachments.RemoveTemplate(id)
}

// ClearAttachments detaches everything.
func (s *Session) ClearAttachments() {
	s.attachments.ClearAll()
}

// AttachTemplateByID looks a template up on the server and attaches it with
// the catalog instruction for its type.
func (s *Session) AttachTemplateByID(ctx context.Context, id string) (*cloud.Template, error) {
	tpl, err := s.deps.Directory.FindTemplate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up template: %w", err)
	}
	instruction := s.deps.Catalog.ForTemplateType(tpl.InstructionKind())
	s.attachments.AttachTemplate(tpl.ID, tpl.DisplayName(), instruction)
	s.log.Debug().Str("template", tpl.ID).Str("type", tpl.InstructionKind()).Msg("template attached")
	return tpl, nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// Refresh reloads the conversation list.
func (s *Session) Refresh(ctx context.Context) error {
	list, err := s.deps.Directory.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}
	s.mu.Lock()
	s.conversations = list
	s.mu.Unlock()
	return nil
}

// SelectConversation makes id active, drops the draft and attachments, and
// loads its history. On a history failure the transcript is left empty and
// the error returned.
func (s *Session) SelectConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	s.active = id
	s.draft = ""
	s.mu.Unlock()
	s.attachments.ClearAll()
	s.transcript.Clear()

	if _, err := s.deps.History.Reconcile(ctx, s.transcript, id); err != nil {
		s.log.Warn().Err(err).Str("conversation", id).Msg("could not load conversation history")
		return err
	}
	return nil
}

// NewChat resets to a fresh, not yet created conversation.
func (s *Session) NewChat() {
	s.mu.Lock()
	s.active = ""
	s.draft = ""
	s.mu.Unlock()
	s.attachments.ClearAll()
	s.transcript.Clear()
}

// =============================================================================
// SEND
// =============================================================================

// Send submits the draft in format f (the configured default when empty).
// Rejections (delivery.ErrInFlight, prompt.ErrEmptyInput,
// format.ErrUnknownFormat) are returned as errors and leave the draft as it
// was. Every other result is described by the Outcome.
func (s *Session) Send(ctx context.Context, f format.Format) (*delivery.Outcome, error) {
	if f == "" {
		f = s.cfg.DefaultFormat
	}

	out, err := s.orch.Submit(ctx, delivery.Request{
		Text:           s.Draft(),
		Format:         f,
		ConversationID: s.ActiveConversation(),
	})
	if err != nil {
		return nil, err
	}

	if out.Created {
		s.adopt(ctx, out)
	}
	if out.Delivered() && out.ConversationID != "" {
		s.reconcileAfterDelay(ctx, out.ConversationID)
	}
	return out, nil
}

// adopt makes a newly created conversation active and refreshes the list.
func (s *Session) adopt(ctx context.Context, out *delivery.Outcome) {
	s.mu.Lock()
	if s.active == "" {
		s.active = out.ConversationID
	}
	s.mu.Unlock()

	if err := s.Refresh(ctx); err != nil {
		s.log.Warn().Err(err).Msg("conversation list refresh failed")
		if out.Conversation != nil {
			s.mu.Lock()
			s.conversations = append([]cloud.ConversationSummary{*out.Conversation}, s.conversations...)
			s.mu.Unlock()
		}
	}
}

// reconcileAfterDelay replaces the transcript with server history, unless
// the user moved to another conversation in the meantime.
func (s *Session) reconcileAfterDelay(ctx context.Context, id string) {
	if err := s.sleep(ctx, s.cfg.ReconcileDelay); err != nil {
		return
	}
	if s.ActiveConversation() != id {
		return
	}
	if _, err := s.deps.History.Reconcile(ctx, s.transcript, id); err != nil {
		s.log.Warn().Err(err).Str("conversation", id).Msg("history reconciliation failed, keeping local transcript")
	}
}

// =============================================================================
// SESSION STATUS
// =============================================================================

// Status represents the current session status.
type Status struct {
	SessionID      string
	StartTime      time.Time
	Duration       time.Duration
	Conversation   string
	Messages       int
	Attachments    int
	Busy           bool
	MaxRetries     int
	DraftLength    int
	HasPendingFile bool
}

// GetStatus returns the current session status.
func (s *Session) GetStatus() Status {
	snap := s.attachments.Snapshot()
	s.mu.Lock()
	active, draft := s.active, s.draft
	s.mu.Unlock()

	n := len(snap.Templates)
	if snap.File != nil {
		n++
	}
	return Status{
		SessionID:      s.id,
		StartTime:      s.startTime,
		Duration:       time.Since(s.startTime),
		Conversation:   active,
		Messages:       s.transcript.Len(),
		Attachments:    n,
		Busy:           s.orch.InFlight(active),
		MaxRetries:     s.orch.MaxRetries(),
		DraftLength:    len([]rune(draft)),
		HasPendingFile: snap.File != nil,
	}
}

// FormatDuration returns a human-readable duration string.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm %ds", mins, secs)
}
