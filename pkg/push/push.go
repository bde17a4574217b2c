// Package push implements the push-notification webhook dispatcher (C6):
// delivering task status and artifact events to a registered URL with
// retry and backoff, whether or not the task also has streaming
// subscribers.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kadirpekel/a2arun/pkg/a2a"
)

// RetryPolicy controls the backoff schedule for webhook delivery.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy makes up to 5 delivery attempts (the first try plus
// 4 retries) with delay = base * 2^(n-1) before retry n, capped at
// MaxDelay.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 5,
	BaseDelay:   time.Second,
	MaxDelay:    time.Minute,
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt-1)
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Dispatcher delivers task events to push-notification webhooks.
type Dispatcher struct {
	client *http.Client
	policy RetryPolicy
}

// New constructs a Dispatcher. A nil client is replaced by a new
// http.Client with a 10 second timeout.
func New(client *http.Client, policy RetryPolicy) *Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Dispatcher{client: client, policy: policy}
}

// Dispatch delivers ev to cfg.URL as the webhook request body, retrying on
// network errors and 5xx responses per the configured RetryPolicy. The
// body is the JSON encoding of ev itself, the same shape a streaming
// client would receive over the wire, so a webhook consumer and a
// streaming consumer parse identical payloads. 4xx responses are treated
// as a permanent rejection by the receiving endpoint and are not retried.
// Returns the last error encountered, or nil on success.
func (d *Dispatcher) Dispatch(ctx context.Context, cfg a2a.PushNotificationConfig, ev a2a.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("push: marshal event: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= d.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.policy.delay(attempt - 1)):
			}
		}

		retry, err := d.attempt(ctx, cfg, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			return lastErr
		}
		slog.Warn("push notification delivery failed, retrying",
			"url", cfg.URL, "attempt", attempt, "max", d.policy.MaxAttempts, "error", err)
	}
	return fmt.Errorf("push: giving up after %d attempts: %w", d.policy.MaxAttempts, lastErr)
}

// attempt makes one delivery attempt. The bool return reports whether
// the error, if any, is retryable.
func (d *Dispatcher) attempt(ctx context.Context, cfg a2a.PushNotificationConfig, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	applyAuth(req, cfg)

	resp, err := d.client.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return false, nil
	case resp.StatusCode >= 500:
		return true, fmt.Errorf("webhook returned %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
}

// applyAuth sets the outbound auth header from the push config. When the
// authentication descriptor carries credentials and lists a Bearer or
// Basic scheme, the credentials are sent under the first such scheme and
// Token is not used. Otherwise Token is treated as a bearer token unless
// the authentication schemes say otherwise, matching the A2A push
// notification authentication model.
func applyAuth(req *http.Request, cfg a2a.PushNotificationConfig) {
	if a := cfg.Authentication; a != nil && a.Credentials != "" {
		for _, scheme := range a.Schemes {
			switch scheme {
			case "Bearer", "bearer":
				req.Header.Set("Authorization", "Bearer "+a.Credentials)
				return
			case "Basic", "basic":
				req.Header.Set("Authorization", "Basic "+a.Credentials)
				return
			}
		}
	}
	if cfg.Token == "" {
		return
	}
	if cfg.Authentication == nil || len(cfg.Authentication.Schemes) == 0 {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
		return
	}
	for _, scheme := range cfg.Authentication.Schemes {
		switch scheme {
		case "Bearer":
			req.Header.Set("Authorization", "Bearer "+cfg.Token)
			return
		case "Basic":
			req.Header.Set("Authorization", "Basic "+cfg.Token)
			return
		}
	}
	req.Header.Set("Authorization", cfg.Token)
}
