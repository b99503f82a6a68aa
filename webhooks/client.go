package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/malwarebo/statsbot/config"
	"github.com/malwarebo/statsbot/utils"
)

// Client delivers payloads to one webhook endpoint. Each network attempt is
// recorded against the endpoint's circuit breaker; while the circuit is open
// no network call is made at all.
type Client struct {
	url        string
	httpClient *http.Client
	breaker    *utils.CircuitBreaker
	retry      *utils.RetryConfig
	logger     *utils.Logger
}

func NewClient(url string, cfg config.WebhookConfig, logger *utils.Logger) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		breaker:    utils.CreateCircuitBreaker(cfg.FailureThreshold, cfg.Cooldown),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.BaseDelay,
			MaxDelay:    cfg.MaxDelay,
			Multiplier:  2.0,
			Jitter:      true,
			BackoffType: utils.ExponentialJitter,
		},
		logger: logger,
	}
}

// Deliver posts the message, retrying with exponential backoff and jitter. A
// 429 response honors the server's Retry-After hint when it exceeds the
// computed backoff and does not count against the circuit breaker. An open
// circuit fails synthetically without touching the network.
func (c *Client) Deliver(ctx context.Context, msg Message) error {
	return utils.Retry(ctx, c.retry, func() error {
		if !c.breaker.Allow() {
			return utils.Permanent(utils.ErrCircuitOpen)
		}

		err := c.post(ctx, msg)
		if err == nil {
			c.breaker.RecordSuccess()
			return nil
		}

		if _, rateLimited := err.(*utils.RateLimitedError); !rateLimited {
			c.breaker.RecordFailure()
		}
		return err
	})
}

func (c *Client) post(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter, _ := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64)
		if retryAfter <= 0 {
			retryAfter = 1
		}
		return &utils.RateLimitedError{RetryAfter: retryAfter}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &utils.StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return nil
}

func (c *Client) State() utils.CircuitState {
	return c.breaker.GetState()
}
