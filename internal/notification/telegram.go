package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"cryptodash/internal/signal"
)

const telegramAPI = "https://api.telegram.org"

// TelegramNotifier posts alerts to one chat through the Bot API sendMessage call.
type TelegramNotifier struct {
	apiBase  string
	botToken string
	chatID   string
	client   *http.Client
}

func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		apiBase:  telegramAPI,
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: sendTimeout},
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	msg := telegramMessage{
		ChatID:    t.chatID,
		Text:      telegramText(alert),
		ParseMode: "MarkdownV2",
	}
	url := t.apiBase + "/bot" + t.botToken + "/sendMessage"
	if err := postJSON(ctx, t.client, url, msg); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	log.Printf("[telegram] delivered %s to chat %s", alert.ID, t.chatID)
	return nil
}

// telegramText renders a bold title line, the message body and the bar time.
func telegramText(a Alert) string {
	var b strings.Builder
	b.WriteString(marker(a))
	b.WriteString(" *")
	b.WriteString(escapeMarkdown(a.Title))
	b.WriteString("*\n\n")
	b.WriteString(escapeMarkdown(a.Message))
	if !a.TS.IsZero() {
		b.WriteString("\n_")
		b.WriteString(escapeMarkdown(a.TS.Format("2006-01-02 15:04 UTC")))
		b.WriteString("_")
	}
	return b.String()
}

func marker(a Alert) string {
	switch {
	case a.Label == signal.StrongBuy:
		return "🟢"
	case a.Label == signal.StrongSell:
		return "🔴"
	case a.Level == AlertWarning:
		return "⚠️"
	}
	return "ℹ️"
}

var markdownV2 = strings.NewReplacer(
	`\`, `\\`, "_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`,
	"~", `\~`, "`", "\\`", ">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`,
	"=", `\=`, "|", `\|`, "{", `\{`, "}", `\}`, ".", `\.`, "!", `\!`,
)

// escapeMarkdown escapes the characters MarkdownV2 reserves.
func escapeMarkdown(s string) string { return markdownV2.Replace(s) }
