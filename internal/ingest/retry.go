package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Doer is the subset of http.Client the executor needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryConfig bounds the retry loop.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Timeout     time.Duration
}

// DefaultRetryConfig matches the portals' observed tolerance: five attempts,
// exponential backoff capped at five seconds, thirty seconds per call.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    5 * time.Second,
		Timeout:     30 * time.Second,
	}
}

// Executor is a Requester that retries transient failures with exponential
// backoff. Any non-2xx status counts as transient; the final failure is
// reported as a *RequestError with redacted URL and remediation hint.
type Executor struct {
	client Doer
	cfg    RetryConfig
	sleep  func(time.Duration)
	logger *zap.Logger
}

// NewExecutor builds an Executor. A nil client falls back to a plain
// http.Client.
func NewExecutor(client Doer, cfg RetryConfig, logger *zap.Logger) *Executor {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		client: client,
		cfg:    cfg,
		sleep:  time.Sleep,
		logger: logger,
	}
}

// Get fetches the URL, retrying until success or the attempts are exhausted.
func (e *Executor) Get(ctx context.Context, rawURL string) ([]byte, error) {
	var (
		lastStatus  int
		lastBody    string
		lastHeaders http.Header
		lastErr     error
	)

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			e.sleep(e.backoff(attempt))
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("request canceled: %w", err)
		}

		body, status, headers, err := e.attempt(ctx, rawURL)
		if err == nil && status >= 200 && status < 300 {
			return body, nil
		}

		lastStatus = status
		lastHeaders = headers
		lastErr = err
		if err != nil {
			lastBody = ""
		} else {
			lastBody = string(body)
		}
		e.logger.Warn("request attempt failed",
			zap.String("url", RedactURL(rawURL)),
			zap.Int("attempt", attempt),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	if len(lastBody) > 1000 {
		lastBody = lastBody[:1000]
	}
	return nil, &RequestError{
		URL:        RedactURL(rawURL),
		Attempts:   e.cfg.MaxAttempts,
		LastStatus: lastStatus,
		Body:       lastBody,
		Headers:    lastHeaders,
		Hint:       remediationHint(lastStatus),
		Err:        lastErr,
	}
}

func (e *Executor) attempt(ctx context.Context, rawURL string) ([]byte, int, http.Header, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, resp.Header, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, resp.Header, nil
}

// backoff returns the delay before the given attempt (attempt >= 2).
func (e *Executor) backoff(attempt int) time.Duration {
	delay := e.cfg.BaseDelay << (attempt - 2)
	if delay > e.cfg.MaxDelay || delay <= 0 {
		delay = e.cfg.MaxDelay
	}
	return delay
}

// RedactURL masks the serviceKey query value so credentials never reach logs
// or error payloads.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	for key := range q {
		if key == "serviceKey" || key == "ServiceKey" {
			q.Set(key, "REDACTED")
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
