// The inboxpilot command polls a Gmail inbox, resolves each sender
// against Salesforce, generates an AI-drafted reply grounded in the
// contact's conversation history, sends the reply in the same thread,
// and records both directions as Salesforce activity.
package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/matta/inboxpilot/internal/checkpoint"
	"github.com/matta/inboxpilot/internal/config"
	"github.com/matta/inboxpilot/internal/conversation"
	"github.com/matta/inboxpilot/internal/gmail"
	"github.com/matta/inboxpilot/internal/gmailhttp"
	"github.com/matta/inboxpilot/internal/intake"
	"github.com/matta/inboxpilot/internal/openai"
	"github.com/matta/inboxpilot/internal/poller"
	"github.com/matta/inboxpilot/internal/reply"
	"github.com/matta/inboxpilot/internal/salesforce"
	"github.com/matta/inboxpilot/internal/tracehttp"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	flagTrace = flag.Bool("T", false, "request debug tracing")
	flagOnce  = flag.Bool("once", false, "run a single poll cycle and exit")
)

func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogFormat != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "unable to load configuration")
	}
	initLogger(cfg)

	if *flagTrace {
		tracehttp.WrapDefaultTransport()
	}

	if err := os.MkdirAll(cfg.StateDir, 0700); err != nil {
		return errors.Wrapf(err, "unable to create state directory %q", cfg.StateDir)
	}

	ctx := context.Background()

	httpClient, err := gmailhttp.New(ctx, cfg.GmailCredentialsFile, cfg.Mailbox)
	if err != nil {
		return errors.Wrap(err, "unable to initialize GMail HTTP client")
	}
	mail, err := gmail.New(ctx, httpClient)
	if err != nil {
		return errors.Wrap(err, "unable to initialize GMail")
	}

	// Confirm the delegation actually lands on the configured
	// mailbox before polling as it.
	profile, err := mail.GetProfile(ctx)
	if err != nil {
		return errors.Wrap(err, "unable to read GMail profile")
	}
	if !strings.EqualFold(profile.EmailAddress, cfg.Mailbox) {
		log.Warn().
			Str("profile", profile.EmailAddress).
			Str("configured", cfg.Mailbox).
			Msg("mailbox identity mismatch")
	}

	instanceURL, err := salesforce.InstanceURLFrom(cfg.SalesforceInstanceURL)
	if err != nil {
		return err
	}
	crm, err := salesforce.NewClient(instanceURL, cfg.SalesforceAccessToken, cfg.SalesforceAPIVersion)
	if err != nil {
		return errors.Wrap(err, "unable to initialize Salesforce client")
	}

	ai := openai.New(openai.Config{
		APIKey:   cfg.OpenAIAPIKey,
		APIBase:  cfg.OpenAIAPIBase,
		Model:    cfg.OpenAIModel,
		PromptID: cfg.OpenAIPromptID,
	})

	p := poller.New(poller.Config{
		Intake:     intake.New(mail, checkpoint.NewStore(cfg.CheckpointPath()), cfg.Mailbox),
		CRM:        crm,
		AI:         ai,
		Binding:    conversation.NewStore(cfg.ConversationMapPath()),
		Replier:    reply.NewDispatcher(mail, cfg.Mailbox),
		Mailbox:    cfg.Mailbox,
		Signature:  cfg.ReplySignature,
		Interval:   cfg.PollInterval,
		MaxResults: cfg.MaxResults,
	})

	log.Info().
		Str("mailbox", cfg.Mailbox).
		Dur("interval", cfg.PollInterval).
		Int64("maxResults", cfg.MaxResults).
		Msg("inboxpilot starting")

	if *flagOnce {
		return p.Cycle(ctx)
	}
	return p.Run(ctx)
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("inboxpilot failed")
	}
}
