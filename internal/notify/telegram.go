package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nodewarden/nodewarden/internal/logger"
)

// defaultAPIBase is the Telegram Bot API host.
const defaultAPIBase = "https://api.telegram.org"

// Telegram delivers notifications through the Telegram Bot API.
// All calls are fire-and-forget: errors are logged and swallowed.
type Telegram struct {
	// apiBase is the Bot API host, overridable for tests.
	apiBase string
	// token authenticates the bot.
	token string
	// chatID is the chat receiving notifications.
	chatID string
	// client issues the API calls.
	client *http.Client
	// callTimeout bounds each API call.
	callTimeout time.Duration
}

// NewTelegram creates a Telegram notifier. When token or chat id is empty the
// returned Notifier is a silent no-op.
func NewTelegram(token, chatID string, callTimeout time.Duration) Notifier {
	if token == "" || chatID == "" {
		return Nop{}
	}

	return &Telegram{
		apiBase:     defaultAPIBase,
		token:       token,
		chatID:      chatID,
		client:      &http.Client{},
		callTimeout: callTimeout,
	}
}

// sendResponse is the Bot API answer to sendMessage.
type sendResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Send delivers a message to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) (string, bool) {
	body, err := t.call(ctx, "sendMessage", map[string]any{
		"chat_id": t.chatID,
		"text":    text,
	})
	if err != nil {
		logger.WarnKV(ctx, "Notification send failed", "error", err)
		return "", false
	}

	var response sendResponse
	if err = json.Unmarshal(body, &response); err != nil || !response.OK {
		logger.WarnKV(ctx, "Notification send rejected", "error", err)
		return "", false
	}

	return strconv.FormatInt(response.Result.MessageID, 10), true
}

// Pin pins a previously sent message without sounding a second notification.
func (t *Telegram) Pin(ctx context.Context, id string) {
	messageID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		logger.WarnKV(ctx, "Notification pin skipped, bad message id", "id", id)
		return
	}

	_, err = t.call(ctx, "pinChatMessage", map[string]any{
		"chat_id":              t.chatID,
		"message_id":           messageID,
		"disable_notification": true,
	})
	if err != nil {
		logger.WarnKV(ctx, "Notification pin failed", "id", id, "error", err)
	}
}

// Unpin removes the pin from a previously sent message.
func (t *Telegram) Unpin(ctx context.Context, id string) {
	messageID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		logger.WarnKV(ctx, "Notification unpin skipped, bad message id", "id", id)
		return
	}

	_, err = t.call(ctx, "unpinChatMessage", map[string]any{
		"chat_id":    t.chatID,
		"message_id": messageID,
	})
	if err != nil {
		logger.WarnKV(ctx, "Notification unpin failed", "id", id, "error", err)
	}
}

// call issues one Bot API method with the per-call timeout.
func (t *Telegram) call(ctx context.Context, method string, payload map[string]any) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, t.callTimeout)
	defer cancel()

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", t.apiBase, t.token, method)

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	response, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected http status %s", method, response.Status)
	}

	buf := new(bytes.Buffer)
	if _, err = buf.ReadFrom(response.Body); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
