package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"
)

// webhookPayload carries the alert fields at the top level plus a one-line
// text rendering, which chat relays (Slack, Discord, Mattermost) display as-is.
type webhookPayload struct {
	Alert
	Text string `json:"text"`
}

// WebhookNotifier POSTs alerts to a generic HTTP endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: &http.Client{Timeout: sendTimeout}}
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	if alert.TS.IsZero() {
		alert.TS = time.Now().UTC()
	}
	p := webhookPayload{
		Alert: alert,
		Text:  fmt.Sprintf("[%s] %s: %s", alert.Level, alert.Title, alert.Message),
	}
	if err := postJSON(ctx, w.client, w.url, p); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	log.Printf("[webhook] delivered %s (%s)", alert.ID, alert.Title)
	return nil
}
