// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package delivery

import (
	"github.com/jeranaias/docchat/internal/cloud"
	"github.com/jeranaias/docchat/internal/format"
	"github.com/jeranaias/docchat/internal/model"
)

// Request is one submission.
type Request struct {
	// Text is what the user typed. It may be empty when something is attached.
	Text string

	// Format is the requested output format. Empty means text.
	Format format.Format

	// ConversationID is the active conversation, or "" to create one.
	ConversationID string
}

// Status is the terminal state of a submission.
type Status string

const (
	StatusValid             Status = "valid"
	StatusExhausted         Status = "exhausted"
	StatusTransportError    Status = "transport-error"
	StatusProvisioningError Status = "provisioning-error"
)

// AttemptOutcome is the state of one dispatch attempt.
type AttemptOutcome string

const (
	OutcomePending        AttemptOutcome = "pending"
	OutcomeValid          AttemptOutcome = "valid"
	OutcomeInvalid        AttemptOutcome = "invalid"
	OutcomeExhausted      AttemptOutcome = "exhausted"
	OutcomeTransportError AttemptOutcome = "transport-error"
)

// Attempt records one dispatch. Prompt is identical for every attempt of a
// submission.
type Attempt struct {
	Number  int
	Format  format.Format
	Prompt  string
	Outcome AttemptOutcome

	// Candidate is the content that was validated.
	Candidate string

	// FromHistory reports whether Candidate came from history rather than
	// the immediate reply.
	FromHistory bool

	// Reused reports whether the provisioning send served as this dispatch.
	Reused bool
}

// Outcome describes a finished submission.
type Outcome struct {
	ConversationID string

	// Conversation is set when the submission created the conversation.
	Conversation *cloud.ConversationSummary
	Created      bool

	Status   Status
	Attempts []Attempt

	UserMessage *model.Message
	Terminal    *model.Message

	// Err is the transport or provisioning failure behind a non-delivered
	// outcome.
	Err error

	// HistoryErrors are history fetch failures that were tolerated.
	HistoryErrors []error
}

// Delivered reports whether an answer was delivered, valid or degraded.
func (o *Outcome) Delivered() bool {
	return o.Status == StatusValid || o.Status == StatusExhausted
}

// AttemptCount returns the number of dispatch attempts made.
func (o *Outcome) AttemptCount() int {
	return len(o.Attempts)
}
