// Package reply composes outbound reply messages and dispatches them
// through the mail provider so they land in the original thread.
package reply

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Sender submits a raw RFC 2822 message, optionally filed into an
// existing thread, and returns the provider-assigned identifier of
// the sent message.
type Sender interface {
	Send(ctx context.Context, raw []byte, threadID string) (string, error)
}

// Request describes one outbound reply.
type Request struct {
	To       string
	Cc       string
	Subject  string
	HTMLBody string

	// Thread the reply belongs to.  Empty starts a new thread.
	ThreadID string

	// Message-ID header value of the message being replied to.
	// Empty omits the In-Reply-To and References headers.
	InReplyTo string
}

// Dispatcher sends replies as a fixed mailbox identity.
type Dispatcher struct {
	mail Sender
	from string
}

func NewDispatcher(mail Sender, from string) *Dispatcher {
	return &Dispatcher{mail: mail, from: from}
}

// Subject returns the reply form of a subject line: prefixed with
// "Re: " unless it already carries a reply marker in any case.
func Subject(s string) string {
	if strings.HasPrefix(strings.ToLower(s), "re:") {
		return s
	}
	return "Re: " + s
}

// SendReply composes and submits the reply.  Calling twice sends
// twice; the operation is not idempotent.
func (d *Dispatcher) SendReply(ctx context.Context, req Request) (string, error) {
	raw := compose(d.from, req)
	id, err := d.mail.Send(ctx, raw, req.ThreadID)
	if err != nil {
		return "", errors.Wrapf(err, "sending reply to %v", req.To)
	}
	log.Info().Str("to", req.To).Str("id", id).Str("threadId", req.ThreadID).Msg("reply dispatched")
	return id, nil
}

// compose renders the RFC 2822 wire form of the reply.
func compose(from string, req Request) []byte {
	var b bytes.Buffer
	header := func(name, value string) {
		fmt.Fprintf(&b, "%s: %s\r\n", name, value)
	}

	header("From", from)
	header("To", req.To)
	if req.Cc != "" {
		header("Cc", req.Cc)
	}
	header("Subject", Subject(req.Subject))
	header("Reply-To", from)
	if req.InReplyTo != "" {
		header("In-Reply-To", req.InReplyTo)
		header("References", req.InReplyTo)
	}
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="UTF-8"`)
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(req.HTMLBody)
	b.WriteString("\r\n")
	return b.Bytes()
}
