package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Embed colors per event kind.
const (
	colorGreen = 0x2ECC71
	colorRed   = 0xE74C3C
	colorBlue  = 0x3498DB
)

// Discord caps embed descriptions at 2048 chars; opportunity alerts keep the
// question short on purpose.
const (
	opportunityDescLimit = 200
	descLimit            = 2000
)

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
	Timestamp   string         `json:"timestamp"`
}

// DiscordSender delivers events to a Discord webhook as rich embeds.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL. It uses
// a default HTTP client with a 10-second timeout.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts one event to the webhook.
func (d *DiscordSender) Send(ctx context.Context, ev Event) error {
	embed := discordEmbed{
		Title:     ev.Title,
		Color:     embedColor(ev.Kind),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if ev.Kind == EventOpportunity {
		embed.Description = clip(ev.Message, opportunityDescLimit)
		if opp := ev.Opportunity; opp != nil {
			embed.Fields = []discordField{
				{Name: "Net Profit", Value: fmt.Sprintf("$%.4f", opp.NetProfit), Inline: true},
				{Name: "ROI", Value: fmt.Sprintf("%.2f%%", opp.ROIPct), Inline: true},
				{Name: "Total Cost", Value: fmt.Sprintf("$%.4f", opp.TotalCost), Inline: true},
			}
		}
	} else {
		embed.Description = clip(ev.Message, descLimit)
	}

	body, err := json.Marshal(map[string]any{"embeds": []discordEmbed{embed}})
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	// Discord returns 204 No Content on success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}

func embedColor(kind EventKind) int {
	switch kind {
	case EventOpportunity:
		return colorGreen
	case EventError, EventShutdown:
		return colorRed
	default:
		return colorBlue
	}
}

func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
