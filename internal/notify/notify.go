// Package notify sends outbound participant notifications through a mail
// relay. Delivery is fire-and-forget: callers log failures and move on.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Notifier is the outbound notification interface.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// HTTPRelay posts messages to a mail relay service.
type HTTPRelay struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPRelay creates a new relay client.
func NewHTTPRelay(baseURL string) *HTTPRelay {
	return &HTTPRelay{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Send posts one message to the relay.
func (r *HTTPRelay) Send(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(message{To: to, Subject: subject, Body: body})
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/v1/send", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail relay returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier logs notifications instead of delivering them. Used in
// tests and in deployments without a relay configured.
type LogNotifier struct{}

// Send logs the notification.
func (LogNotifier) Send(_ context.Context, to, subject, _ string) error {
	slog.Info("notification (no relay configured)", "to", to, "subject", subject)
	return nil
}
