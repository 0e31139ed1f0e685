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

package gmail

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/matta/inboxpilot/internal/message"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	gmail_api "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	ReadonlyScope = gmail_api.GmailReadonlyScope
	SendScope     = gmail_api.GmailSendScope

	// See https://developers.google.com/gmail/api/v1/reference/quota
	quotaUnitsPerMessagesList = 1
	quotaUnitsPerGetProfile   = 2
	quotaUnitsPerMessagesGet  = 5
	quotaUnitsPerThreadsGet   = 10
	quotaUnitsPerMessagesSend = 100

	quotaUnitsPerSecond = 250
	rateLimitPerSecond  = quotaUnitsPerSecond * 0.8
	rateLimitBurst      = quotaUnitsPerSecond
)

var (
	ErrMessageNotFound = errors.New("gmail message not found")
)

// Service provides access to messages stored in Google's GMail
// system.
type Service struct {
	service *gmail_api.Service
	limiter *rate.Limiter
}

func New(ctx context.Context, client *http.Client) (*Service, error) {
	s, err := gmail_api.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, err
	}
	l := rate.NewLimiter(rateLimitPerSecond, rateLimitBurst)
	return &Service{service: s, limiter: l}, nil
}

// ListRecent lists up to maxResults message identifiers matching the
// given Gmail search query, in the provider's native newest-first
// order.  The order is preserved; the intake pipeline depends on it.
func (s *Service) ListRecent(ctx context.Context, query string, maxResults int64) ([]message.ID, error) {
	if err := s.limiter.WaitN(ctx, quotaUnitsPerMessagesList); err != nil {
		return nil, err
	}
	msgs := gmail_api.NewUsersMessagesService(s.service)
	resp, err := msgs.List("me").Context(ctx).Q(query).MaxResults(maxResults).Do()
	if err != nil {
		return nil, errors.Wrapf(err, "listing messages matching %q", query)
	}
	ids := make([]message.ID, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, message.ID{PermID: m.Id, ThreadID: m.ThreadId})
	}
	log.Debug().Str("query", query).Int("count", len(ids)).Msg("listed gmail messages")
	return ids, nil
}

func (s *Service) getMessage(ctx context.Context, call *gmail_api.UsersMessagesGetCall) (*gmail_api.Message, error) {
	for {
		if err := s.limiter.WaitN(ctx, quotaUnitsPerMessagesGet); err != nil {
			return nil, err
		}
		msg, err := call.Do()
		if err == nil {
			return msg, nil
		}

		switch cause := errors.Cause(err).(type) {
		case *googleapi.Error:
			if cause.Code == http.StatusTooManyRequests {
				continue // retry
			}
			if cause.Code == http.StatusNotFound {
				for _, item := range cause.Errors {
					if item.Reason == "notFound" {
						err = ErrMessageNotFound
					}
				}
			}
		}
		return nil, err
	}
}

// GetMessage retrieves the message with the given identifier in full
// format, with decoded-on-demand MIME part structure and headers.
func (s *Service) GetMessage(ctx context.Context, id string) (*gmail_api.Message, error) {
	msg, err := s.getMessage(ctx, gmail_api.NewUsersMessagesService(s.service).Get("me", id).
		Context(ctx).Format("full"))
	if err != nil {
		return nil, errors.Wrapf(err, "getting message %v from gmail", id)
	}
	return msg, nil
}

// GetThread retrieves the thread with the given identifier in full
// format.  Messages within the thread are in the provider's native
// oldest-first order.
func (s *Service) GetThread(ctx context.Context, id string) (*gmail_api.Thread, error) {
	if err := s.limiter.WaitN(ctx, quotaUnitsPerThreadsGet); err != nil {
		return nil, err
	}
	thread, err := gmail_api.NewUsersThreadsService(s.service).Get("me", id).
		Context(ctx).Format("full").Do()
	if err != nil {
		return nil, errors.Wrapf(err, "getting thread %v from gmail", id)
	}
	return thread, nil
}

// Send submits a raw RFC 2822 message.  When threadID is non-empty
// the provider files the sent message into that thread.  Returns the
// provider-assigned identifier of the sent message.
func (s *Service) Send(ctx context.Context, raw []byte, threadID string) (string, error) {
	if err := s.limiter.WaitN(ctx, quotaUnitsPerMessagesSend); err != nil {
		return "", err
	}
	msg := &gmail_api.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	if threadID != "" {
		msg.ThreadId = threadID
	}
	sent, err := gmail_api.NewUsersMessagesService(s.service).Send("me", msg).
		Context(ctx).Do()
	if err != nil {
		return "", errors.Wrap(err, "sending message via gmail")
	}
	log.Debug().Str("id", sent.Id).Str("threadId", sent.ThreadId).Msg("sent gmail message")
	return sent.Id, nil
}

func (s *Service) GetProfile(ctx context.Context) (*message.Profile, error) {
	if err := s.limiter.WaitN(ctx, quotaUnitsPerGetProfile); err != nil {
		return nil, err
	}
	u, err := gmail_api.NewUsersService(s.service).GetProfile("me").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return &message.Profile{EmailAddress: u.EmailAddress}, nil
}
