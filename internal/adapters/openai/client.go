/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GojoViv/ai.service.suvi.main/internal/config"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/rs/zerolog"
)

const summaryPrompt = "You summarize software tasks for a sprint report. Given a task title and its description, " +
	"reply with at most three short sentences covering the goal, the scope and any open question. No preamble."

// maxInputRunes bounds the description sent for summarization.
const maxInputRunes = 12000

type Client struct {
	key     string
	model   string
	timeout time.Duration
	cli     openai.Client
	log     zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	model := cfg.OpenAIModel
	if strings.TrimSpace(model) == "" {
		model = "gpt-4.1-mini"
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.OpenAIKey))
	return &Client{key: cfg.OpenAIKey, model: model, timeout: cfg.OpenAITimeout, cli: cli, log: log}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return strings.TrimSpace(c.key) != "" }

// SummarizeTask returns a short summary of a task description. People names are aliased
// and contact details scrubbed before the text leaves the process.
func (c *Client) SummarizeTask(ctx context.Context, title, description string, people []string) (string, error) {
	if !c.Enabled() {
		return "", errors.New("openai: missing key")
	}
	if strings.TrimSpace(description) == "" {
		return "", nil
	}
	if r := []rune(description); len(r) > maxInputRunes {
		description = string(r[:maxInputRunes])
	}
	user := fmt.Sprintf("Title: %s\n\n%s", Redact(title, people), Redact(description, people))
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	c.log.Debug().Str("model", c.model).Msg("openai SummarizeTask call")
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(summaryPrompt),
			openai.UserMessage(user),
		},
	}
	resp, err := c.cli.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
