package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramSink posts alerts to a Telegram chat via the Bot API
type TelegramSink struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

// NewTelegramSink creates a Telegram sink for the given bot token and chat
func NewTelegramSink(token, chatID string) *TelegramSink {
	return &TelegramSink{
		token:   token,
		chatID:  chatID,
		baseURL: telegramAPIBase,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *TelegramSink) Name() string {
	return "telegram"
}

// Send posts the message, retrying transient failures with backoff. The
// whole attempt is bounded so a dead Telegram API cannot pile up goroutines.
func (s *TelegramSink) Send(ctx context.Context, message string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		return s.send(ctx, message)
	})
}

func (s *TelegramSink) send(ctx context.Context, message string) error {
	form := url.Values{}
	form.Set("chat_id", s.chatID)
	form.Set("text", message)

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return retry.RetryableError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return retry.RetryableError(fmt.Errorf("telegram api returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("telegram api returned %d: %s", resp.StatusCode, apiErr.Description)
	}
	return nil
}
