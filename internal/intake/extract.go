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

package intake

// Field extraction from the Gmail API's "full" message format.

import (
	"encoding/base64"
	"regexp"
	"strings"

	gmail_api "google.golang.org/api/gmail/v1"
)

var addressPattern = regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`)

// headerValue returns the value of the named payload header, or ""
// when absent.  Header names are compared case-insensitively.
func headerValue(m *gmail_api.Message, name string) string {
	if m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// senderAddress extracts the bare email address from the From header.
// Falls back to the trimmed raw header value when no address-shaped
// substring is present.
func senderAddress(m *gmail_api.Message) string {
	from := headerValue(m, "From")
	if addr := addressPattern.FindString(from); addr != "" {
		return addr
	}
	return strings.TrimSpace(from)
}

// decodePart returns the decoded body data of a single MIME part, or
// "" when the part carries no data.
func decodePart(part *gmail_api.MessagePart) string {
	if part.Body == nil || part.Body.Data == "" {
		return ""
	}
	// The Gmail API base64url-encodes part data; padding varies in
	// practice.
	decoded, err := base64.URLEncoding.DecodeString(part.Body.Data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(part.Body.Data)
	}
	if err != nil {
		return ""
	}
	return string(decoded)
}

// bodyText pulls the plain text body out of a message.  For multipart
// messages the decoded content of every text/plain part is
// concatenated in encounter order.  Reports false when the message
// has no plain text representation anywhere.
func bodyText(m *gmail_api.Message) (string, bool) {
	payload := m.Payload
	if payload == nil {
		return "", false
	}

	var b strings.Builder
	if len(payload.Parts) > 0 {
		for _, part := range payload.Parts {
			if part.MimeType == "text/plain" {
				b.WriteString(decodePart(part))
			}
		}
	} else if payload.MimeType == "text/plain" {
		b.WriteString(decodePart(payload))
	}

	body := strings.TrimSpace(b.String())
	if body == "" {
		return "", false
	}
	return body, true
}
