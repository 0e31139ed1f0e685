// Package openai is a client for the OpenAI Conversations and
// Responses APIs.  A conversation holds the server-side context for
// one CRM contact; each reply is generated with a stored prompt
// against that conversation.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultHTTPTimeout = 120 * time.Second

// Client calls the OpenAI API.
type Client struct {
	apiKey   string
	apiBase  string
	model    string
	promptID string
	client   *http.Client
}

type Config struct {
	APIKey  string
	APIBase string
	Model   string

	// Identifier of a stored prompt configured on the OpenAI
	// platform.  Optional; when empty the model runs without one.
	PromptID string
}

func New(cfg Config) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-5"
	}
	return &Client{
		apiKey:   cfg.APIKey,
		apiBase:  cfg.APIBase,
		model:    cfg.Model,
		promptID: cfg.PromptID,
		client:   &http.Client{Timeout: defaultHTTPTimeout},
	}
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiBase+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("openai %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

type conversationResponse struct {
	ID string `json:"id"`
}

// CreateConversation mints a fresh server-side conversation and
// returns its identifier.
func (c *Client) CreateConversation(ctx context.Context) (string, error) {
	var resp conversationResponse
	if err := c.post(ctx, "/conversations", map[string]any{}, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("openai: conversation create returned no id")
	}
	log.Debug().Str("conversationId", resp.ID).Msg("created openai conversation")
	return resp.ID, nil
}

type promptRef struct {
	ID string `json:"id"`
}

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesRequest struct {
	Model        string         `json:"model"`
	Prompt       *promptRef     `json:"prompt,omitempty"`
	Input        []inputMessage `json:"input"`
	Conversation string         `json:"conversation"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

// GenerateReply sends input as a user turn on the given conversation
// and returns the generated reply text.
func (c *Client) GenerateReply(ctx context.Context, conversationID, input string) (string, error) {
	body := responsesRequest{
		Model:        c.model,
		Input:        []inputMessage{{Role: "user", Content: input}},
		Conversation: conversationID,
	}
	if c.promptID != "" {
		body.Prompt = &promptRef{ID: c.promptID}
	}

	var resp responsesResponse
	if err := c.post(ctx, "/responses", body, &resp); err != nil {
		return "", err
	}

	var b strings.Builder
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, content := range item.Content {
			if content.Type == "output_text" {
				b.WriteString(content.Text)
			}
		}
	}
	text := b.String()
	if text == "" {
		return "", fmt.Errorf("openai: response contained no output text")
	}
	return text, nil
}
