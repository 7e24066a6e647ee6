/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/GojoViv/ai.service.suvi.main/internal/config"
	"github.com/GojoViv/ai.service.suvi.main/internal/report"
	"github.com/rs/zerolog"
)

type APIResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type PostMessageRequest struct {
	Channel         string `json:"channel"`
	Text            string `json:"text"`
	ThreadTimestamp string `json:"thread_ts,omitempty"`
	Markdown        bool   `json:"mrkdwn"`
	UnfurlLinks     bool   `json:"unfurl_links"`
}

type PostMessageResponse struct {
	APIResponse

	Channel   string `json:"channel"`
	Timestamp string `json:"ts"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	return &Client{baseURL: strings.TrimRight(cfg.SlackBaseURL, "/"), token: cfg.SlackToken, http: &http.Client{Timeout: 10 * time.Second}, log: log}
}

// PostMessage posts text and returns the message timestamp, which doubles as its id.
func (c *Client) PostMessage(ctx context.Context, channel, text string) (string, error) {
	return c.post(ctx, PostMessageRequest{Channel: channel, Text: text, Markdown: true})
}

// PostReply posts text under an existing message.
func (c *Client) PostReply(ctx context.Context, channel, threadID, text string) (string, error) {
	if threadID == "" {
		return "", errors.New("slack: empty thread id")
	}
	return c.post(ctx, PostMessageRequest{Channel: channel, Text: text, ThreadTimestamp: threadID, Markdown: true})
}

// PostThreadedMessage posts title as the root and body as replies under it.
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

func (c *Client) post(ctx context.Context, msg PostMessageRequest) (string, error) {
	if c.token == "" || msg.Channel == "" {
		return "", fmt.Errorf("slack: missing token or channel")
	}
	var out PostMessageResponse
	if err := c.call(ctx, http.MethodPost, "chat.postMessage", msg, &out); err != nil {
		return "", err
	}
	return out.Timestamp, nil
}

type apiResult interface{ result() APIResponse }

func (r *PostMessageResponse) result() APIResponse { return r.APIResponse }

func (c *Client) call(ctx context.Context, method, endpoint string, body any, out apiResult) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("slack: marshal: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+endpoint, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("slack %s status=%d body=%s", endpoint, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("slack %s: decode: %w", endpoint, err)
	}
	if res := out.result(); !res.OK {
		return fmt.Errorf("slack %s: %s", endpoint, res.Error)
	}
	return nil
}
