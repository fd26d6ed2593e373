package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const resendURL = "https://api.resend.com/emails"

// Client sends transactional mail through the Resend API.
type Client struct {
	apiKey     string
	fromEmail  string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(apiKey, fromEmail string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		fromEmail:  fromEmail,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type resendEmail struct {
	From    string            `json:"from"`
	To      []string          `json:"to"`
	Subject string            `json:"subject"`
	HTML    string            `json:"html"`
	Text    string            `json:"text"`
	Headers map[string]string `json:"headers,omitempty"`
}

// SendCheckIn delivers a generated check-in to a subscriber. refID becomes the
// X-Entity-Ref-ID header so the provider can deduplicate redelivered sends.
func (c *Client) SendCheckIn(ctx context.Context, toEmail, refID string, in CheckIn) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing API key")
	}

	payload := resendEmail{
		From:    c.fromEmail,
		To:      []string{toEmail},
		Subject: checkInSubject(in),
		HTML:    checkInHTML(in),
		Text:    checkInText(in),
	}
	if refID != "" {
		payload.Headers = map[string]string{"X-Entity-Ref-ID": refID}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", resendURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("resend API error: status %d", resp.StatusCode)
	}

	return nil
}
