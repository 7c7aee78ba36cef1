package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"repsum/internal/ledger"
)

const (
	// DefaultBaseURL is the chat-completions endpoint of the external
	// service.
	DefaultBaseURL = "https://models.inference.ai.azure.com"

	// DefaultModel is the summarization model.
	DefaultModel = "gpt-4o"

	// DefaultCooldown is the fixed pause after every successful call,
	// keeping the request rate inside the service's limits.
	DefaultCooldown = 2 * time.Second

	// SummarySuffix is appended to an artifact path to form its summary
	// artifact path.
	SummarySuffix = "_summary"
)

// Config configures the summarizer client. Temperature and TopP default to
// 1.0: summaries run at maximum sampling temperature on purpose, so
// determinism is explicitly not a goal.
type Config struct {
	BaseURL         string
	Model           string
	APIKey          string
	Preamble        string // fixed instruction text prepended to every request
	MaxOutputTokens int
	Temperature     float32
	TopP            float32
	Cooldown        time.Duration
	Retry           Policy
}

// Client wraps the external summarization service with retry, backoff, and
// summary artifact persistence.
type Client struct {
	cfg        Config
	httpClient *http.Client
	ledger     *ledger.Ledger

	// sleep is context-aware and injectable so tests don't wait out real
	// backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a summarizer client. The ledger records each artifact as done
// the moment its summary is on disk.
func New(cfg Config, led *ledger.Ledger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultPolicy()
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		ledger: led,
		sleep:  sleepContext,
	}
}

// Summarize sends the artifact's content to the external service and writes
// the response verbatim to "{artifactPath}_summary". On success the artifact
// is marked done in the ledger and the inter-request cooldown is enforced
// before returning. On failure no file is written.
func (c *Client) Summarize(ctx context.Context, artifactPath string) (string, error) {
	content, err := os.ReadFile(artifactPath)
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}

	prompt := c.cfg.Preamble + "\n" + string(content)

	var text string
	for attempt := 1; ; attempt++ {
		text, err = c.call(ctx, prompt)
		if err == nil {
			break
		}

		var svcErr *ServiceError
		if errors.As(err, &svcErr) && !svcErr.Transient() {
			return "", fmt.Errorf("%w: %s: %v", ErrServiceFailed, artifactPath, err)
		}

		delay, retry := c.cfg.Retry.NextDelay(attempt, err)
		if !retry {
			return "", fmt.Errorf("%w: %s after %d attempts: %v",
				ErrServiceFailed, artifactPath, c.cfg.Retry.MaxAttempts, err)
		}
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}

	summaryPath := artifactPath + SummarySuffix
	if err := os.WriteFile(summaryPath, []byte(text), 0644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}
	if err := c.ledger.MarkDone(artifactPath); err != nil {
		return "", fmt.Errorf("record completion: %w", err)
	}

	if err := c.sleep(ctx, c.cfg.Cooldown); err != nil {
		return "", err
	}
	return summaryPath, nil
}

// chat-completions wire types, trimmed to the fields this client uses.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	TopP        float32       `json:"top_p"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// call performs one request against the service.
func (c *Client) call(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: ""},
			{Role: "user", Content: prompt},
		},
		Temperature: c.cfg.Temperature,
		TopP:        c.cfg.TopP,
		MaxTokens:   c.cfg.MaxOutputTokens,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ServiceError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", &ServiceError{
			StatusCode: resp.StatusCode,
			Body:       string(bodyBytes),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var apiResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Choices) == 0 || apiResp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}

	return apiResp.Choices[0].Message.Content, nil
}

// parseRetryAfter interprets the delay-seconds form of the header. The
// HTTP-date form is rare on rate-limit responses and is ignored.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// sleepContext waits for d unless the context is done first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
