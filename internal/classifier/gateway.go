package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/dkoval/mailtriage/pkg/models"
)

// Failure classes of the classification backend. The orchestrator treats
// all three the same way (non-match for the message under the current
// task), but callers can still distinguish them for logging.
var (
	ErrUnavailable   = errors.New("classifier unavailable")
	ErrMalformed     = errors.New("malformed classifier response")
	ErrQuotaExceeded = errors.New("classifier quota exceeded")
)

// Gateway is the HTTP client for the external semantic classification
// backend.
type Gateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Config for the classifier gateway
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// classifyRequest is the body of one classification call.
type classifyRequest struct {
	Task    string `json:"task"`
	Subject string `json:"subject"`
	From    string `json:"from"`
	Body    string `json:"body"`
}

// NewGateway creates a new classifier gateway
func NewGateway(cfg Config) *Gateway {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Classify sends one message to the backend under the named task and
// returns its structured judgment. Message text is truncated before
// sending; classification quality does not improve past a few kilobytes
// of body.
func (g *Gateway) Classify(ctx context.Context, msg *models.Message, taskName string) (*Judgment, error) {
	req := classifyRequest{
		Task:    taskName,
		Subject: msg.Subject,
		From:    msg.From,
		Body:    truncate(msg.Text(), maxBodyBytes),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/v1/classify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrQuotaExceeded
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d: %s", ErrMalformed, resp.StatusCode, respBody)
	}

	var wire wireJudgment
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return wire.normalize(), nil
}

const maxBodyBytes = 4096

// truncate cuts s to at most n bytes without splitting a multi-byte
// rune, so the payload stays valid UTF-8 for json.Marshal.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
