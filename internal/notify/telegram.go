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

const telegramAPIBase = "https://api.telegram.org"

// TelegramChannel sends messages through the Telegram Bot API.
type TelegramChannel struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewTelegramChannel constructs a channel for the given bot token.
func NewTelegramChannel(token string) *TelegramChannel {
	return &TelegramChannel{
		token:   token,
		baseURL: telegramAPIBase,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts a sendMessage call; target is the chat or channel id.
func (t *TelegramChannel) Send(ctx context.Context, text, target string) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:    target,
		Text:      text,
		ParseMode: "Markdown",
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("telegram: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram: read response: %w", err)
	}

	var apiResp sendMessageResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return fmt.Errorf("telegram: status %d: %s", resp.StatusCode, string(body))
	}
	if !apiResp.OK {
		return fmt.Errorf("telegram: API error: %s", apiResp.Description)
	}
	return nil
}
