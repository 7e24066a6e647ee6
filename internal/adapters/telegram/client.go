/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GojoViv/ai.service.suvi.main/internal/config"
	"github.com/GojoViv/ai.service.suvi.main/internal/report"
	"github.com/rs/zerolog"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	return &Client{baseURL: strings.TrimRight(cfg.TelegramBaseURL, "/"), token: cfg.TelegramToken, http: &http.Client{Timeout: 10 * time.Second}, log: log}
}

// chatID accepts a numeric chat id or an @channel username.
func chatID(channel string) any {
	channel = strings.TrimSpace(channel)
	if n, err := strconv.ParseInt(channel, 10, 64); err == nil {
		return n
	}
	return channel
}

type sendResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("telegram sendMessage status=%d body=%s", e.status, e.body)
}

func (c *Client) PostMessage(ctx context.Context, channel, text string) (string, error) {
	return c.send(ctx, channel, text, 0)
}

func (c *Client) PostReply(ctx context.Context, channel, threadID, text string) (string, error) {
	id, err := strconv.ParseInt(threadID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("telegram: bad message id %q", threadID)
	}
	return c.send(ctx, channel, text, id)
}

// PostThreadedMessage sends title, then body as replies to it.
func (c *Client) PostThreadedMessage(ctx context.Context, channel, title, body string) (string, error) {
	root, err := c.PostMessage(ctx, channel, title)
	if err != nil {
		return "", err
	}
	for _, part := range report.ChunkText(body, report.MessageLimit) {
		if strings.TrimSpace(part) == "" {
			continue
		}
		if _, err := c.PostReply(ctx, channel, root, part); err != nil {
			return root, err
		}
	}
	return root, nil
}

// send tries Markdown first and resends plain when Telegram rejects the markup.
func (c *Client) send(ctx context.Context, channel, text string, replyTo int64) (string, error) {
	if c.token == "" || strings.TrimSpace(channel) == "" {
		return "", fmt.Errorf("telegram: missing token or chat id")
	}
	id, err := c.sendMessage(ctx, channel, text, replyTo, "Markdown")
	if se, ok := err.(*statusError); ok && se.status == http.StatusBadRequest {
		c.log.Warn().Str("chat", channel).Msg("telegram: markdown rejected, sending plain")
		id, err = c.sendMessage(ctx, channel, text, replyTo, "")
	}
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

func (c *Client) sendMessage(ctx context.Context, channel, text string, replyTo int64, parseMode string) (int64, error) {
	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	body := map[string]any{"chat_id": chatID(channel), "text": text, "disable_web_page_preview": true}
	if parseMode != "" {
		body["parse_mode"] = parseMode
	}
	if replyTo != 0 {
		body["reply_to_message_id"] = replyTo
	}
	b, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return 0, &statusError{status: resp.StatusCode, body: string(bodyBytes)}
	}
	var r sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return 0, err
	}
	if !r.OK {
		return 0, fmt.Errorf("telegram: %s", r.Description)
	}
	return r.Result.MessageID, nil
}
