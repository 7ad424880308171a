// Package notification delivers strong-signal alerts to external channels
// (log, generic webhooks, Telegram).
package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"cryptodash/internal/signal"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	ID      string       `json:"id"`
	Level   AlertLevel   `json:"level"`
	Title   string       `json:"title"`
	Message string       `json:"message"`
	Symbol  string       `json:"symbol,omitempty"`
	Label   signal.Label `json:"label,omitempty"`
	TS      time.Time    `json:"ts"`
}

// NewSignalAlert builds the alert sent when symbol enters a strong signal tier.
// STRONG_BUY / STRONG_SELL are CRITICAL, anything else INFO.
func NewSignalAlert(symbol string, sig signal.Signal, price float64, ts time.Time) Alert {
	level := AlertInfo
	if sig.IsStrong() {
		level = AlertCritical
	}
	return Alert{
		ID:      uuid.NewString(),
		Level:   level,
		Title:   fmt.Sprintf("%s %s", symbol, sig.Label),
		Message: fmt.Sprintf("%s at %g: %s", symbol, price, sig.Description),
		Symbol:  symbol,
		Label:   sig.Label,
		TS:      ts.UTC(),
	}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts. It is always part of the chain built by New.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s (id=%s)", alert.Level, alert.Title, alert.Message, alert.ID)
	return nil
}

// Multi sends every alert to each notifier in order. A failing backend
// does not stop the others; their errors are joined.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New builds the notifier chain: log always, webhook and Telegram when configured.
func New(webhookURL, telegramToken, telegramChatID string) Notifier {
	chain := Multi{NewLogNotifier()}
	if webhookURL != "" {
		chain = append(chain, NewWebhookNotifier(webhookURL))
	}
	if telegramToken != "" && telegramChatID != "" {
		chain = append(chain, NewTelegramNotifier(telegramToken, telegramChatID))
	}
	return chain
}
