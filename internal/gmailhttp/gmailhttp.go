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

// Package gmailhttp implements an HTTP client for the Gmail API.
//
// Authentication uses a Google Cloud service account with domain-wide
// delegation: the service account key is loaded from a JSON file and a
// JWT token source is configured to impersonate the mailbox the
// program reads from and sends as.  Token refresh is handled by
// golang.org/x/oauth2.
package gmailhttp

import (
	"context"
	"net/http"
	"os"

	"github.com/matta/inboxpilot/internal/gmail"

	"github.com/pkg/errors"
	"golang.org/x/oauth2/google"
)

// New returns an HTTP client authorized to call the Gmail API as the
// given mailbox.  The credentials file must contain a service account
// key with domain-wide delegation over the mailbox's domain.
func New(ctx context.Context, credentialsFile, mailbox string) (*http.Client, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, errors.Wrapf(err, "reading service account key %q", credentialsFile)
	}
	conf, err := google.JWTConfigFromJSON(data, gmail.ReadonlyScope, gmail.SendScope)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing service account key %q", credentialsFile)
	}
	conf.Subject = mailbox
	return conf.Client(ctx), nil
}
