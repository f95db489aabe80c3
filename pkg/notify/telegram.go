package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Telegram sends messages through the Bot API. Forum chats route posts
// into a specific thread via message_thread_id.
type Telegram struct {
	token   string
	client  *http.Client
	baseURL string
}

// NewTelegram creates a Telegram notifier for the given bot token.
func NewTelegram(token string) *Telegram {
	return &Telegram{
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: "https://api.telegram.org",
	}
}

func (t *Telegram) Send(ctx context.Context, msg Message) error {
	if t.token == "" {
		return fmt.Errorf("telegram token not configured")
	}

	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(msg.ChatID, 10))
	form.Set("text", msg.Text)
	form.Set("disable_web_page_preview", "true")
	if msg.MessageThreadID != 0 {
		form.Set("message_thread_id", strconv.FormatInt(msg.MessageThreadID, 10))
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram API status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
