package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"MemeFarm/internal/domain"
	"MemeFarm/internal/infrastructure/httpclient"
	"MemeFarm/internal/ports"
)

const (
	defaultAPIURL  = "https://api.telegram.org"
	maxMessageSize = 4000
)

// Notifier sends run reports to a Telegram chat via bot API.
type Notifier struct {
	apiURL   string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		apiURL:   defaultAPIURL,
		botToken: botToken,
		chatID:   chatID,
		client:   httpclient.New(5 * time.Second),
	}
}

// WithAPIURL points the notifier at another Bot API host.
func (n *Notifier) WithAPIURL(apiURL string, client *http.Client) *Notifier {
	n.apiURL = strings.TrimSuffix(apiURL, "/")
	if client != nil {
		n.client = client
	}
	return n
}

// PublishReport posts a plain-text report to Telegram.
func (n *Notifier) PublishReport(ctx context.Context, report string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}
	if strings.TrimSpace(report) == "" {
		return nil
	}
	if utf8.RuneCountInString(report) > maxMessageSize {
		report = domain.TruncateRunes(report, maxMessageSize) + "\n…"
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiURL, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", report)
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if err := httpclient.Do(n.client, req, nil); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}
