package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/solsticehq/solstice/internal/model"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-1.5-pro"
	defaultTimeout = 20 * time.Second
	defaultRetries = 2
	defaultBackoff = time.Second
)

var (
	// ErrMissingKey means neither a shared nor a user-supplied key is available.
	ErrMissingKey = errors.New("no API key configured")
	// ErrInvalidKey means the upstream rejected the credential.
	ErrInvalidKey = errors.New("invalid API key")
	// ErrTimeout means generation did not finish within the configured window.
	ErrTimeout = errors.New("analysis timed out")
)

// Config holds Gemini client configuration.
type Config struct {
	SharedKey  string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries uint64
	Backoff    time.Duration
}

// Request is one analysis invocation. FormData is a pointer so a request that
// omits it entirely can be told apart from an all-blank submission.
type Request struct {
	FormData     *FormData       `json:"formData"`
	Framework    model.Framework `json:"framework"`
	CustomPrompt string          `json:"customPrompt,omitempty"`
	UserName     string          `json:"userName,omitempty"`
}

// Client calls the Gemini generateContent API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultRetries
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = defaultBackoff
	}
	c := &Client{
		cfg:        cfg,
		httpClient: http.DefaultClient,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Shared returns the deployment's shared credential.
func (c *Client) Shared() Credential {
	return sharedKey(c.cfg.SharedKey)
}

// Analyze runs a framework analysis over the submitted form and returns the
// generated text.
func (c *Client) Analyze(ctx context.Context, req Request, cred Credential) (string, error) {
	if req.FormData == nil {
		return "", fmt.Errorf("form data is required")
	}

	var prompt string
	if req.Framework == model.FrameworkCustom {
		if req.CustomPrompt == "" {
			return "", fmt.Errorf("custom framework requires a prompt")
		}
		prompt = req.CustomPrompt
	} else {
		p, err := frameworkPrompt(req.Framework)
		if err != nil {
			return "", err
		}
		prompt = p
	}

	data, err := frameworkData(req.Framework, *req.FormData)
	if err != nil {
		return "", err
	}
	dataJSON, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode analysis data: %w", err)
	}

	parts := []string{prompt}
	if req.UserName != "" {
		parts = append(parts, fmt.Sprintf("The person reflecting is named %s.", req.UserName))
	}
	parts = append(parts, string(dataJSON))

	return c.generate(ctx, cred, parts)
}

// Generate runs a single free-form prompt. Used by the check-in pipeline.
func (c *Client) Generate(ctx context.Context, prompt string, cred Credential) (string, error) {
	return c.generate(ctx, cred, []string{prompt})
}

// generate calls the upstream with a timeout window and a bounded number of
// retries on transient failures. A timeout abandons the request; it is not
// cancelled upstream.
func (c *Client) generate(ctx context.Context, cred Credential, parts []string) (string, error) {
	if !cred.Configured() {
		return "", ErrMissingKey
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var text string
	backoff := retry.WithMaxRetries(c.cfg.MaxRetries, retry.NewConstant(c.cfg.Backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		out, err := c.doGenerate(ctx, cred.Key(), parts)
		if err != nil {
			var te *transientError
			if errors.As(err, &te) {
				c.logger.Debug("retrying generation", "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		text = out
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		return "", err
	}
	return text, nil
}

// transientError marks failures worth retrying: network errors and 5xx.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) doGenerate(ctx context.Context, apiKey string, texts []string) (string, error) {
	parts := make([]part, len(texts))
	for i, t := range texts {
		parts[i] = part{Text: t}
	}
	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: parts}}})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.BaseURL, c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// The key travels in a header so it never lands in URLs or access logs.
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &transientError{fmt.Errorf("generation request: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decoding
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: upstream returned %d", ErrInvalidKey, resp.StatusCode)
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return "", &transientError{fmt.Errorf("upstream status %d", resp.StatusCode)}
	default:
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if gr.Error != nil {
		return "", fmt.Errorf("upstream error %d: %s", gr.Error.Code, gr.Error.Message)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty generation response")
	}

	var out string
	for _, p := range gr.Candidates[0].Content.Parts {
		out += p.Text
	}
	return out, nil
}
