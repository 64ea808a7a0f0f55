package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramSink posts alerts through the Bot API sendMessage method using HTML
// parse mode with link previews disabled.
type TelegramSink struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
}

// TelegramOption customizes a TelegramSink.
type TelegramOption func(*TelegramSink)

// WithTelegramAPI overrides the Bot API base URL.
func WithTelegramAPI(baseURL string) TelegramOption {
	return func(s *TelegramSink) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) TelegramOption {
	return func(s *TelegramSink) {
		s.client = client
	}
}

func NewTelegramSink(token, chatID string, opts ...TelegramOption) (*TelegramSink, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if strings.TrimSpace(chatID) == "" {
		return nil, fmt.Errorf("telegram chat id is required")
	}
	sink := &TelegramSink{
		token:   token,
		chatID:  chatID,
		baseURL: defaultTelegramAPI,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(sink)
	}
	return sink, nil
}

type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

func (s *TelegramSink) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(telegramMessage{
		ChatID:                s.chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// The request URL embeds the bot token.
		return fmt.Errorf("send telegram message: %s", strings.ReplaceAll(err.Error(), s.token, "***"))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read telegram response: %w", err)
	}
	var decoded telegramResponse
	if err := json.Unmarshal(payload, &decoded); err != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return fmt.Errorf("decode telegram response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !decoded.OK {
		return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode, decoded.Description)
	}
	return nil
}
