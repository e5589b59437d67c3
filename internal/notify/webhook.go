package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Guliveer/livetiming-connector/internal/model"
)

// Webhook sends notifications via a generic HTTP webhook.
type Webhook struct {
	baseNotifier
	url        string
	method     string
	httpClient *http.Client
}

type webhookPayload struct {
	Event     string `json:"event"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestampEpoch"`
}

// Send delivers a notification to the configured endpoint. POST sends a JSON
// body; GET appends the same fields as query parameters.
func (w *Webhook) Send(ctx context.Context, event model.Event, title, message string) error {
	p := webhookPayload{
		Event:     string(event),
		Title:     title,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	}

	var (
		req *http.Request
		err error
	)
	switch method := strings.ToUpper(w.method); method {
	case http.MethodGet:
		u, parseErr := url.Parse(w.url)
		if parseErr != nil {
			return fmt.Errorf("webhook: parse url: %w", parseErr)
		}
		q := u.Query()
		q.Set("event", p.Event)
		q.Set("title", p.Title)
		q.Set("message", p.Message)
		u.RawQuery = q.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)

	case http.MethodPost:
		body, marshalErr := json.Marshal(p)
		if marshalErr != nil {
			return fmt.Errorf("webhook: marshal payload: %w", marshalErr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}

	default:
		return fmt.Errorf("webhook: unsupported method %q (use GET or POST)", method)
	}
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}
