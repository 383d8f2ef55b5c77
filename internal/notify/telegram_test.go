package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestNewTelegram_UnconfiguredIsNop degrades to a silent no-op without credentials.
func TestNewTelegram_UnconfiguredIsNop(t *testing.T) {
	t.Parallel()

	n := NewTelegram("", "", time.Second)

	id, ok := n.Send(context.Background(), "hello")
	require.False(t, ok)
	require.Empty(t, id)

	// Pin/Unpin on the no-op must not panic.
	n.Pin(context.Background(), "1")
	n.Unpin(context.Background(), "1")
}

// TestTelegram_SendPinUnpin exercises the Bot API calls against a fake server.
func TestTelegram_SendPinUnpin(t *testing.T) {
	t.Parallel()

	var methods []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		methods = append(methods, parts[len(parts)-1])

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "-1000042", payload["chat_id"])

		_, _ = w.Write([]byte(`{"ok": true, "result": {"message_id": 311}}`))
	}))
	t.Cleanup(srv.Close)

	n := &Telegram{
		apiBase:     srv.URL,
		token:       "token",
		chatID:      "-1000042",
		client:      srv.Client(),
		callTimeout: time.Second,
	}

	ctx := context.Background()

	id, ok := n.Send(ctx, "upgrade committed")
	require.True(t, ok)
	require.Equal(t, "311", id)

	n.Pin(ctx, id)
	n.Unpin(ctx, id)

	require.Equal(t, []string{"sendMessage", "pinChatMessage", "unpinChatMessage"}, methods)
}

// TestTelegram_SendFailureIsSwallowed reports not-ok on channel errors.
func TestTelegram_SendFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	n := &Telegram{
		apiBase:     srv.URL,
		token:       "token",
		chatID:      "-1000042",
		client:      srv.Client(),
		callTimeout: time.Second,
	}

	_, ok := n.Send(context.Background(), "hello")
	require.False(t, ok)
}
