// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package poller drives the polling loop: each cycle it pulls new
// inbound messages through the intake pipeline and, per message,
// resolves the sender in the CRM, generates an AI reply on the
// contact's conversation, dispatches the reply in-thread, and logs
// both directions as CRM activity.
//
// Processing is strictly sequential.  Messages within a cycle run in
// chronological order because each message's AI context may depend on
// conversation state accumulated for the same contact; cycles never
// overlap.
package poller

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/matta/inboxpilot/internal/message"
	"github.com/matta/inboxpilot/internal/reply"
	"github.com/matta/inboxpilot/internal/salesforce"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Intake produces the batch of new inbound messages for one cycle,
// oldest first.
type Intake interface {
	FetchNew(ctx context.Context, query string, maxResults int64) ([]message.Inbound, error)
}

// CRM resolves senders to person records and logs email activity
// against them.
type CRM interface {
	FindContactOrLeadByEmail(ctx context.Context, email string) (*salesforce.Record, error)
	CreateLead(ctx context.Context, fields map[string]any) (*salesforce.Record, error)
	LogActivity(ctx context.Context, personID, subject, body string, direction salesforce.Direction) (*salesforce.TaskResult, error)
}

// Generator mints AI conversations and produces reply text on them.
type Generator interface {
	CreateConversation(ctx context.Context) (string, error)
	GenerateReply(ctx context.Context, conversationID, input string) (string, error)
}

// Bindings maps a CRM record identifier to its AI conversation,
// creating the conversation lazily on first use.
type Bindings interface {
	GetOrCreate(contactID string, create func() (string, error)) (string, error)
}

// ReplySender dispatches one composed reply.
type ReplySender interface {
	SendReply(ctx context.Context, req reply.Request) (string, error)
}

// Config collects the Poller's collaborators and tuning.
type Config struct {
	Intake  Intake
	CRM     CRM
	AI      Generator
	Binding Bindings
	Replier ReplySender

	// Address the system reads and sends as.
	Mailbox string

	// Name rendered into the reply signature block.
	Signature string

	// Delay between poll cycles; also sets the recency window of
	// the provider query.
	Interval time.Duration

	// Maximum messages listed per cycle.
	MaxResults int64
}

// Poller runs the orchestration loop.
type Poller struct {
	cfg Config
}

func New(cfg Config) *Poller {
	return &Poller{cfg: cfg}
}

// Run polls until ctx is canceled.  A failed cycle is logged and the
// loop resumes on the next tick.
func (p *Poller) Run(ctx context.Context) error {
	for {
		if err := p.Cycle(ctx); err != nil {
			log.Error().Err(err).Msg("poll cycle failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.cfg.Interval):
		}
	}
}

// Cycle runs one poll cycle.  Per-message failures are logged and do
// not abort the batch; only intake-level failures (listing, saving
// the checkpoint) terminate the cycle.
func (p *Poller) Cycle(ctx context.Context) error {
	batch, err := p.cfg.Intake.FetchNew(ctx, recencyQuery(p.cfg.Interval), p.cfg.MaxResults)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		log.Info().Msg("no new messages to process")
		return nil
	}

	log.Info().Int("count", len(batch)).Msg("processing messages")
	for _, m := range batch {
		if err := p.process(ctx, m); err != nil {
			log.Error().Err(err).
				Str("id", m.PermID).
				Str("sender", m.Sender).
				Msg("message failed, continuing with batch")
		}
	}
	return nil
}

func (p *Poller) process(ctx context.Context, m message.Inbound) error {
	log.Info().Str("sender", m.Sender).Str("subject", m.Subject).Msg("processing email")

	record, err := p.cfg.CRM.FindContactOrLeadByEmail(ctx, m.Sender)
	if err != nil {
		return errors.Wrapf(err, "looking up %v in CRM", m.Sender)
	}
	if record == nil {
		record, err = p.cfg.CRM.CreateLead(ctx, map[string]any{
			"Email":    m.Sender,
			"LastName": "Unknown",
			"Company":  "Unknown",
		})
		if err != nil {
			return errors.Wrapf(err, "creating lead for %v", m.Sender)
		}
		log.Info().Str("leadId", record.ID).Str("sender", m.Sender).Msg("created new lead")
	}

	firstName := record.FirstName
	if firstName == "" {
		firstName = "there"
	}

	// Activity logging is best effort; the email workflow proceeds
	// even when the CRM rejects it.
	p.logActivity(ctx, record.ID, m.Subject, m.Body, salesforce.DirectionInbound)

	conversationID, err := p.cfg.Binding.GetOrCreate(record.ID, func() (string, error) {
		return p.cfg.AI.CreateConversation(ctx)
	})
	if err != nil {
		return errors.Wrapf(err, "binding conversation for %v", record.ID)
	}

	replyText, err := p.cfg.AI.GenerateReply(ctx, conversationID, p.buildInput(m))
	if err != nil {
		return errors.Wrap(err, "generating reply")
	}

	sentID, err := p.cfg.Replier.SendReply(ctx, reply.Request{
		To:        m.Sender,
		Subject:   m.Subject,
		HTMLBody:  renderHTML(firstName, replyText, p.cfg.Signature),
		ThreadID:  m.Reply.ThreadID,
		InReplyTo: m.Reply.MessageID,
	})
	if err != nil {
		return err
	}
	log.Info().Str("sentId", sentID).Str("to", m.Sender).Msg("reply sent")

	p.logActivity(ctx, record.ID, reply.Subject(m.Subject), replyText, salesforce.DirectionOutbound)
	return nil
}

func (p *Poller) logActivity(ctx context.Context, personID, subject, body string, direction salesforce.Direction) {
	result, err := p.cfg.CRM.LogActivity(ctx, personID, subject, body, direction)
	if err != nil {
		log.Warn().Err(err).Str("direction", string(direction)).Msg("failed to log CRM activity")
		return
	}
	if !result.Success {
		log.Warn().Str("error", result.Error).Str("direction", string(direction)).Msg("CRM rejected activity log")
		return
	}
	log.Info().Str("taskId", result.ID).Str("direction", string(direction)).Msg("logged CRM activity")
}

// buildInput assembles the AI input text, framing the prior thread
// context when the intake pipeline attached one.
func (p *Poller) buildInput(m message.Inbound) string {
	if m.PriorContext == "" {
		return m.Body
	}
	return fmt.Sprintf("Previous message from %s:\n%s\n\n---\n\nCurrent message from %s:\n%s",
		p.cfg.Mailbox, m.PriorContext, m.Sender, m.Body)
}

// renderHTML turns the plain text reply into the HTML email body:
// greeting, escaped text with newlines as line breaks, signature.
func renderHTML(firstName, replyText, signature string) string {
	body := strings.ReplaceAll(html.EscapeString(replyText), "\n", "<br>")
	return fmt.Sprintf("Hi %s,<br><br>%s<br><br>All the best,<br>%s",
		html.EscapeString(firstName), body, html.EscapeString(signature))
}

// recencyQuery builds the provider search query covering the last
// poll interval, using the coarsest granularity the provider's
// newer_than operator accepts for the window.
func recencyQuery(interval time.Duration) string {
	secs := int(interval / time.Second)
	if secs < 1 {
		secs = 1
	}
	switch {
	case secs < 60:
		return fmt.Sprintf("in:inbox newer_than:%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("in:inbox newer_than:%dm", secs/60)
	default:
		return fmt.Sprintf("in:inbox newer_than:%dh", secs/3600)
	}
}
