package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/GojoViv/ai.service.suvi.main/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostThreadedMessage_RepliesToRoot(t *testing.T) {
	var mu sync.Mutex
	var sent []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botT0K/sendMessage", r.URL.Path)
		var m map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&m))
		mu.Lock()
		sent = append(sent, m)
		n := len(sent)
		mu.Unlock()
		_, _ = fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d}}`, 100+n)
	}))
	defer srv.Close()

	c := NewClient(config.Config{TelegramBaseURL: srv.URL, TelegramToken: "T0K"}, zerolog.Nop())
	id, err := c.PostThreadedMessage(context.Background(), "-1001", "title", "body")
	require.NoError(t, err)
	assert.Equal(t, "101", id)

	require.Len(t, sent, 2)
	assert.EqualValues(t, -1001, sent[0]["chat_id"])
	assert.Nil(t, sent[0]["reply_to_message_id"])
	assert.EqualValues(t, 101, sent[1]["reply_to_message_id"])
	assert.Equal(t, "Markdown", sent[1]["parse_mode"])
}

func TestPostMessage_FallsBackToPlain(t *testing.T) {
	var modes []any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&m))
		modes = append(modes, m["parse_mode"])
		if m["parse_mode"] == "Markdown" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"description":"can't parse entities"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7}}`))
	}))
	defer srv.Close()

	c := NewClient(config.Config{TelegramBaseURL: srv.URL, TelegramToken: "T0K"}, zerolog.Nop())
	id, err := c.PostMessage(context.Background(), "@team", "*unbalanced")
	require.NoError(t, err)
	assert.Equal(t, "7", id)
	assert.Equal(t, []any{"Markdown", nil}, modes)
}

func TestPostMessage_MissingToken(t *testing.T) {
	c := NewClient(config.Config{}, zerolog.Nop())
	_, err := c.PostMessage(context.Background(), "1", "x")
	require.Error(t, err)
}
