package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Guliveer/livetiming-connector/internal/model"
)

// Embed colors per event.
var discordColors = map[model.Event]int{
	model.EventSessionLive:      0x2ECC71,
	model.EventSessionEnded:     0x95A5A6,
	model.EventConnectorGaveUp:  0xE74C3C,
	model.EventConnectorStarted: 0x3498DB,
}

const discordDefaultColor = 0xE10600

// Discord sends notifications via a Discord webhook.
type Discord struct {
	baseNotifier
	webhookURL string
	httpClient *http.Client
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordEmbed struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Color       int           `json:"color"`
	Footer      discordFooter `json:"footer"`
	Timestamp   string        `json:"timestamp"`
}

type discordPayload struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

// Send posts an embed message to the configured Discord webhook.
func (d *Discord) Send(ctx context.Context, event model.Event, title, message string) error {
	color, ok := discordColors[event]
	if !ok {
		color = discordDefaultColor
	}
	embed := discordEmbed{
		Title:       title,
		Description: message,
		Color:       color,
		Footer:      discordFooter{Text: string(event)},
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(discordPayload{Username: Title, Embeds: []discordEmbed{embed}})
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("discord: unexpected status %d", resp.StatusCode)
	}
	return nil
}
