// Package config loads the process configuration from the
// environment, with an optional .env file for development.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/matta/inboxpilot/internal/homedir"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Config holds all configuration for the process.  Construct it with
// Load and pass it down; nothing reads the environment after startup.
type Config struct {
	// Mailbox is the address the system reads and sends as, and
	// the marker for recognizing our own prior message in a
	// thread.
	Mailbox string

	// Path to the Gmail service account key with domain-wide
	// delegation.
	GmailCredentialsFile string

	// Delay between poll cycles.  Also sets the recency window of
	// the mailbox query.
	PollInterval time.Duration

	// Maximum messages listed per cycle.
	MaxResults int64

	// Directory holding the checkpoint and conversation map files.
	StateDir string

	OpenAIAPIKey   string
	OpenAIAPIBase  string
	OpenAIModel    string
	OpenAIPromptID string

	SalesforceInstanceURL string
	SalesforceAccessToken string
	SalesforceAPIVersion  string

	// Name rendered into the signature block of outbound replies.
	ReplySignature string

	LogLevel  string
	LogFormat string
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load reads configuration from the environment.  A .env file in the
// working directory is loaded first when present; real environment
// variables take precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file, relying on environment variables")
	}

	cfg := &Config{
		Mailbox:               os.Getenv("MAILBOX_ADDRESS"),
		GmailCredentialsFile:  getenv("GMAIL_CREDENTIALS_FILE", "gmail_auth.json"),
		StateDir:              getenv("STATE_DIR", filepath.Join(homedir.Get(), ".inboxpilot")),
		OpenAIAPIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIAPIBase:         os.Getenv("OPENAI_API_BASE"),
		OpenAIModel:           os.Getenv("OPENAI_MODEL"),
		OpenAIPromptID:        os.Getenv("OPENAI_PROMPT_ID"),
		SalesforceInstanceURL: os.Getenv("SALESFORCE_INSTANCE_URL"),
		SalesforceAccessToken: os.Getenv("SALESFORCE_ACCESS_TOKEN"),
		SalesforceAPIVersion:  getenv("SALESFORCE_API_VERSION", "v59.0"),
		ReplySignature:        getenv("REPLY_SIGNATURE", "The Workflow Pro"),
		LogLevel:              getenv("LOG_LEVEL", "info"),
		LogFormat:             getenv("LOG_FORMAT", "console"),
	}

	interval, err := time.ParseDuration(getenv("POLL_INTERVAL", "60s"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid POLL_INTERVAL")
	}
	cfg.PollInterval = interval

	maxResults, err := strconv.ParseInt(getenv("MAX_RESULTS", "10"), 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "invalid MAX_RESULTS")
	}
	cfg.MaxResults = maxResults

	if cfg.Mailbox == "" {
		return nil, errors.New("MAILBOX_ADDRESS is required")
	}
	if cfg.PollInterval <= 0 {
		return nil, errors.New("POLL_INTERVAL must be positive")
	}
	if cfg.MaxResults <= 0 {
		return nil, errors.New("MAX_RESULTS must be positive")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required")
	}
	if cfg.SalesforceInstanceURL == "" {
		return nil, errors.New("SALESFORCE_INSTANCE_URL is required")
	}
	if cfg.SalesforceAccessToken == "" {
		return nil, errors.New("SALESFORCE_ACCESS_TOKEN is required")
	}

	return cfg, nil
}

// CheckpointPath is the file holding the last-seen message id.
func (c *Config) CheckpointPath() string {
	return filepath.Join(c.StateDir, "last_msg.json")
}

// ConversationMapPath is the file holding the CRM id to conversation
// id mapping.
func (c *Config) ConversationMapPath() string {
	return filepath.Join(c.StateDir, "crm_id_to_conv_id.json")
}
