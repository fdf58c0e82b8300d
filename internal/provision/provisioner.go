// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/docchat/internal/cloud"
	"github.com/jeranaias/docchat/internal/metrics"
	"github.com/jeranaias/docchat/internal/util"
)

// Defaults for Options.
const (
	DefaultSettleDelay   = 100 * time.Millisecond
	DefaultListRefreshes = 3
)

var (
	// ErrNoConversationID means the creating send returned no conversation id.
	ErrNoConversationID = errors.New("send response carried no conversation id")

	// ErrNotListed means the new conversation never appeared in the list.
	ErrNotListed = errors.New("new conversation not found in conversation list")
)

// ProvisioningError is a terminal failure to establish a conversation. It is
// never retried.
type ProvisioningError struct {
	ConversationID string
	Err            error
}

// Error implements the error interface.
func (e *ProvisioningError) Error() string {
	if e.ConversationID != "" {
		return fmt.Sprintf("provision conversation %s: %v", e.ConversationID, e.Err)
	}
	return fmt.Sprintf("provision conversation: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// Client is the subset of *cloud.Client the provisioner needs.
type Client interface {
	SendPrompt(ctx context.Context, req cloud.SendRequest) (*cloud.SendResponse, error)
	ListConversations(ctx context.Context) ([]cloud.ConversationSummary, error)
}

// Options tunes provisioning.
type Options struct {
	// SettleDelay is waited before each list fetch.
	SettleDelay time.Duration

	// ListRefreshes is how many list fetches are made before giving up.
	ListRefreshes int
}

func (o Options) withDefaults() Options {
	if o.SettleDelay <= 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.ListRefreshes <= 0 {
		o.ListRefreshes = DefaultListRefreshes
	}
	return o
}

// Result is the outcome of Ensure.
type Result struct {
	ConversationID string

	// Conversation is the list entry found for a new conversation.
	Conversation *cloud.ConversationSummary

	// Immediate is the reply to the creating send. Nil when the id was supplied.
	Immediate *cloud.SendResponse

	// Created reports whether a conversation was created.
	Created bool
}

// Provisioner resolves conversation ids, creating conversations on first send.
type Provisioner struct {
	client  Client
	opts    Options
	sleep   util.SleepFunc
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// New creates a provisioner.
func New(client Client, opts Options) *Provisioner {
	return &Provisioner{
		client: client,
		opts:   opts.withDefaults(),
		sleep:  util.Sleep,
		log:    zerolog.Nop(),
	}
}

// WithSleeper replaces the delay function.
func (p *Provisioner) WithSleeper(fn util.SleepFunc) *Provisioner {
	if fn != nil {
		p.sleep = fn
	}
	return p
}

// WithLogger sets the logger.
func (p *Provisioner) WithLogger(log zerolog.Logger) *Provisioner {
	p.log = log.With().Str("component", "provision").Logger()
	return p
}

// WithMetrics records the creating dispatch and each provisioned conversation.
func (p *Provisioner) WithMetrics(m *metrics.Metrics) *Provisioner {
	p.metrics = m
	return p
}

// Ensure returns conversationID unchanged when it is set, without any network
// activity. Otherwise it sends req without a conversation id, which creates
// one, and locates the new conversation in the list.
//
// A failure of the creating send is returned as is (a transport error). Every
// later failure is a *ProvisioningError.
func (p *Provisioner) Ensure(ctx context.Context, conversationID string, req cloud.SendRequest) (*Result, error) {
	if conversationID != "" {
		return &Result{ConversationID: conversationID}, nil
	}

	req.ConversationID = ""
	start := time.Now()
	resp, err := p.client.SendPrompt(ctx, req)
	p.metrics.ObserveDispatch(time.Since(start), err)
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.ConversationID == "" {
		return nil, &ProvisioningError{Err: ErrNoConversationID}
	}

	newID := resp.ConversationID
	for refresh := 1; refresh <= p.opts.ListRefreshes; refresh++ {
		if err := p.sleep(ctx, p.opts.SettleDelay); err != nil {
			return nil, &ProvisioningError{ConversationID: newID, Err: err}
		}

		list, err := p.client.ListConversations(ctx)
		if err != nil {
			return nil, &ProvisioningError{ConversationID: newID, Err: err}
		}
		for i := range list {
			if list[i].ID == newID {
				p.metrics.ConversationProvisioned()
				p.log.Info().Str("conversation", newID).Int("refreshes", refresh).Msg("conversation provisioned")
				return &Result{
					ConversationID: newID,
					Conversation:   &list[i],
					Immediate:      resp,
					Created:        true,
				}, nil
			}
		}
		p.log.Debug().Str("conversation", newID).Int("refresh", refresh).Msg("new conversation not listed yet")
	}

	return nil, &ProvisioningError{ConversationID: newID, Err: ErrNotListed}
}
