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

// Package intake implements the message intake pipeline: list recent
// messages, drop the already-seen ones using the checkpoint, fetch
// full content and thread context, and extract the normalized fields
// reply generation needs.
package intake

import (
	"context"

	"github.com/matta/inboxpilot/internal/message"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	gmail_api "google.golang.org/api/gmail/v1"
)

// MessageLister lists recent message identifiers from the mail
// provider, newest first.
type MessageLister interface {
	ListRecent(ctx context.Context, query string, maxResults int64) ([]message.ID, error)
}

// MessageGetter fetches a full message and its enclosing thread from
// the mail provider.
type MessageGetter interface {
	GetMessage(ctx context.Context, id string) (*gmail_api.Message, error)
	GetThread(ctx context.Context, id string) (*gmail_api.Thread, error)
}

// MailSource provides all mail provider actions the intake pipeline
// needs.
type MailSource interface {
	MessageLister
	MessageGetter
}

// CheckpointStore persists the identifier of the newest message
// observed, so later poll cycles do not reprocess it.
type CheckpointStore interface {
	// Load returns the last-seen identifier, or "" when no
	// checkpoint exists or it cannot be read.
	Load() string

	// Save durably records id as the new last-seen identifier.
	Save(id string) error
}

// Pipeline turns raw provider listings into extracted inbound
// messages.
type Pipeline struct {
	mail    MailSource
	marks   CheckpointStore
	mailbox string
}

// New returns a Pipeline reading through mail, checkpointing through
// marks.  The mailbox address identifies our own sent messages when
// deciding whether to attach prior thread context.
func New(mail MailSource, marks CheckpointStore, mailbox string) *Pipeline {
	return &Pipeline{mail: mail, marks: marks, mailbox: mailbox}
}

// FetchNew lists up to maxResults messages matching query and returns
// the not-yet-seen ones, extracted and ordered oldest first.
//
// The checkpoint is advanced to the newest listed message whenever
// the listing is non-empty, before extraction runs.  A message
// dropped later for lacking a plain text body is therefore never
// revisited.
func (p *Pipeline) FetchNew(ctx context.Context, query string, maxResults int64) ([]message.Inbound, error) {
	last := p.marks.Load()

	listed, err := p.mail.ListRecent(ctx, query, maxResults)
	if err != nil {
		return nil, errors.Wrap(err, "unable to list recent messages")
	}

	fresh := dropSeen(listed, last)

	if len(listed) > 0 {
		if err := p.marks.Save(listed[0].PermID); err != nil {
			return nil, errors.Wrap(err, "unable to save checkpoint")
		}
	}

	// Process oldest to newest so downstream reply generation sees
	// each thread in chronological order.
	var out []message.Inbound
	for i := len(fresh) - 1; i >= 0; i-- {
		in, err := p.extract(ctx, fresh[i])
		if err != nil {
			return nil, err
		}
		if in == nil {
			log.Warn().Str("id", fresh[i].PermID).Msg("message has no plain text body, skipping")
			continue
		}
		out = append(out, *in)
	}
	return out, nil
}

// dropSeen returns the prefix of the newest-first listing that
// precedes the checkpointed identifier.  With no checkpoint, or when
// the checkpointed message is no longer listed, the whole listing is
// new.
func dropSeen(listed []message.ID, last string) []message.ID {
	if last == "" {
		return listed
	}
	for i, m := range listed {
		if m.PermID == last {
			return listed[:i]
		}
	}
	return listed
}

// extract fetches the full message and its thread and builds the
// normalized Inbound.  Returns nil when the message has no plain text
// representation anywhere.
func (p *Pipeline) extract(ctx context.Context, id message.ID) (*message.Inbound, error) {
	full, err := p.mail.GetMessage(ctx, id.PermID)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to get message %v", id.PermID)
	}

	thread, err := p.mail.GetThread(ctx, full.ThreadId)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to get thread %v", full.ThreadId)
	}

	body, ok := bodyText(full)
	if !ok {
		return nil, nil
	}

	// When this is the second message of the thread and the first
	// was ours, carry the first body along as grounding context
	// for the reply.
	prior := ""
	if threadPosition(thread, full.Id) == 2 {
		first := thread.Messages[0]
		if senderAddress(first) == p.mailbox {
			if firstBody, ok := bodyText(first); ok {
				prior = firstBody
			}
		}
	}

	return &message.Inbound{
		ID:           message.ID{PermID: full.Id, ThreadID: full.ThreadId},
		Subject:      headerValue(full, "Subject"),
		Sender:       senderAddress(full),
		Body:         body,
		PriorContext: prior,
		Reply: message.ReplyHeaders{
			ThreadID:  full.ThreadId,
			MessageID: headerValue(full, "Message-ID"),
		},
	}, nil
}

// threadPosition returns the 1-based position of the message with the
// given identifier within the thread, or 0 when it is not present.
func threadPosition(t *gmail_api.Thread, id string) int {
	for i, m := range t.Messages {
		if m.Id == id {
			return i + 1
		}
	}
	return 0
}
