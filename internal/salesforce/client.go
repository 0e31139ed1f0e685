// Package salesforce is a minimal Salesforce REST client covering the
// three operations the reply workflow needs: contact/lead lookup by
// email, lead creation, and activity logging as Task records.
package salesforce

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Direction marks whether a logged activity was received or sent.
type Direction string

const (
	DirectionInbound  Direction = "Inbound"
	DirectionOutbound Direction = "Outbound"
)

// Record identifies a Salesforce Contact or Lead.
type Record struct {
	ID        string
	FirstName string
}

// TaskResult reports the outcome of logging an activity.  A failed
// log is reported here rather than as an error so callers can treat
// it as non-fatal.
type TaskResult struct {
	Success bool
	ID      string
	Error   string
}

// Client calls the Salesforce REST API for one org.
type Client struct {
	httpClient *resty.Client
	apiVersion string
}

// NewClient creates a Salesforce client for the org at instanceURL
// authenticating with the given access token.
func NewClient(instanceURL, accessToken, apiVersion string) (*Client, error) {
	if instanceURL == "" {
		return nil, fmt.Errorf("Salesforce instanceURL cannot be empty")
	}
	if accessToken == "" {
		return nil, fmt.Errorf("Salesforce accessToken cannot be empty")
	}
	if apiVersion == "" {
		apiVersion = "v59.0"
	}

	client := resty.New().
		SetBaseURL(instanceURL).
		SetAuthToken(accessToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)

	log.Info().Str("instanceURL", instanceURL).Str("apiVersion", apiVersion).Msg("Salesforce client configured")

	return &Client{httpClient: client, apiVersion: apiVersion}, nil
}

type queryResponse struct {
	TotalSize int `json:"totalSize"`
	Records   []struct {
		ID        string `json:"Id"`
		FirstName string `json:"FirstName"`
	} `json:"records"`
}

type createResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Errors  []struct {
		Message    string `json:"message"`
		StatusCode string `json:"statusCode"`
	} `json:"errors"`
}

// soqlEscape escapes a string literal for interpolation into a SOQL
// query.
func soqlEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func (c *Client) query(ctx context.Context, soql string) (*queryResponse, error) {
	path := fmt.Sprintf("/services/data/%s/query", c.apiVersion)

	var result queryResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("q", soql).
		SetResult(&result).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("Salesforce query request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("Salesforce query error: status %s, body: %s", resp.Status(), resp.String())
	}
	return &result, nil
}

// FindContactOrLeadByEmail looks the address up as a Contact first,
// then as a Lead.  Returns (nil, nil) when neither exists.
func (c *Client) FindContactOrLeadByEmail(ctx context.Context, email string) (*Record, error) {
	escaped := soqlEscape(email)
	for _, object := range []string{"Contact", "Lead"} {
		soql := fmt.Sprintf("SELECT Id, FirstName FROM %s WHERE Email = '%s' LIMIT 1", object, escaped)
		result, err := c.query(ctx, soql)
		if err != nil {
			return nil, err
		}
		if len(result.Records) > 0 {
			r := result.Records[0]
			log.Debug().Str("email", email).Str("object", object).Str("id", r.ID).Msg("found Salesforce record")
			return &Record{ID: r.ID, FirstName: r.FirstName}, nil
		}
	}
	log.Debug().Str("email", email).Msg("no Salesforce record for address")
	return nil, nil
}

// CreateLead creates a Lead with the given fields and returns its
// identifier.
func (c *Client) CreateLead(ctx context.Context, fields map[string]any) (*Record, error) {
	path := fmt.Sprintf("/services/data/%s/sobjects/Lead", c.apiVersion)

	var result createResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(fields).
		SetResult(&result).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("Salesforce CreateLead request failed: %w", err)
	}
	if resp.IsError() || !result.Success {
		return nil, fmt.Errorf("Salesforce CreateLead error: status %s, body: %s", resp.Status(), resp.String())
	}

	log.Info().Str("leadId", result.ID).Msg("created Salesforce lead")
	return &Record{ID: result.ID}, nil
}

// LogActivity records an email exchange against the given Contact or
// Lead as a completed Task.  API-level rejection is reported in the
// result, not as an error; the caller decides whether that blocks
// anything.
func (c *Client) LogActivity(ctx context.Context, personID, subject, body string, direction Direction) (*TaskResult, error) {
	path := fmt.Sprintf("/services/data/%s/sobjects/Task", c.apiVersion)

	task := map[string]any{
		"WhoId":        personID,
		"Subject":      fmt.Sprintf("Email (%s): %s", direction, subject),
		"Description":  body,
		"Status":       "Completed",
		"TaskSubtype":  "Email",
		"ActivityDate": time.Now().Format("2006-01-02"),
	}

	var result createResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(task).
		SetResult(&result).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("Salesforce LogActivity request failed: %w", err)
	}
	if resp.IsError() || !result.Success {
		return &TaskResult{Success: false, Error: fmt.Sprintf("status %s, body: %s", resp.Status(), resp.String())}, nil
	}

	return &TaskResult{Success: true, ID: result.ID}, nil
}

// InstanceURLFrom normalizes a configured instance URL, tolerating a
// bare hostname.
func InstanceURLFrom(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid Salesforce instance URL %q: %w", raw, err)
	}
	return u.Scheme + "://" + u.Host, nil
}
