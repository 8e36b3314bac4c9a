package subscriptions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

const maxAttempts = 3

// Notifier posts notifications to webhooks.
type Notifier struct {
	httpClient *http.Client
	logger     *log.Logger
	// Backoff is the base delay between attempts; attempt n waits n*n*Backoff.
	Backoff time.Duration
}

// NewNotifier creates a new notifier
func NewNotifier(logger *log.Logger) *Notifier {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Notifier{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:  logger,
		Backoff: time.Second,
	}
}

// SendWebhook sends a notification via HTTP POST, retrying failed attempts.
func (n *Notifier) SendWebhook(ctx context.Context, url string, notification Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt*attempt) * n.Backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("building webhook request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Ddrgraph-Subscription", notification.Subscription)
		req.Header.Set("X-Ddrgraph-Notification", notification.ID)

		resp, err := n.httpClient.Do(req)
		if err != nil {
			lastErr = err
			n.logger.Warn("webhook delivery failed", "url", url, "attempt", attempt+1, "err", err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			n.logger.Debug("webhook delivered", "url", url, "events", len(notification.Events))
			return nil
		}

		lastErr = &WebhookError{URL: url, StatusCode: resp.StatusCode}
		n.logger.Warn("webhook rejected", "url", url, "attempt", attempt+1, "status", resp.StatusCode)
	}

	return lastErr
}

// WebhookError represents a webhook delivery failure
type WebhookError struct {
	URL        string
	StatusCode int
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("webhook %s returned status %d", e.URL, e.StatusCode)
}
