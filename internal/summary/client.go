package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/novinai/sentinel/internal/domain"
)

// Client talks to the LLM summarizer sidecar. Any failure is surfaced as
// an error so the caller can fall back to the template.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a sidecar client from the summarizer configuration.
func NewClient(cfg domain.SummarizerConfig, logger *slog.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type sidecarResponse struct {
	Success        bool    `json:"success"`
	Summary        *string `json:"summary"`
	Style          *string `json:"style"`
	Model          *string `json:"model"`
	Error          *string `json:"error"`
	FallbackReason *string `json:"fallback_reason"`
}

// Summarize posts the assessment to the sidecar's /summary endpoint.
func (c *Client) Summarize(ctx context.Context, in Input) (string, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("marshal summary request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/summary", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build summary request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("summary request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("summary request: unexpected status %d", resp.StatusCode)
	}

	var out sidecarResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode summary response: %w", err)
	}
	if !out.Success || out.Summary == nil {
		reason := "no summary returned"
		if out.Error != nil {
			reason = *out.Error
		}
		return "", fmt.Errorf("summary sidecar: %s", reason)
	}

	if out.Model != nil {
		c.logger.Debug("llm summary generated", "model", *out.Model)
	}
	return *out.Summary, nil
}

// Healthy reports whether the sidecar responds on /health.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
