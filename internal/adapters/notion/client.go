/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GojoViv/ai.service.suvi.main/internal/config"
	"github.com/GojoViv/ai.service.suvi.main/internal/domain"
	"github.com/rs/zerolog"
)

const pageSize = 100

type Client struct {
	baseURL string
	token   string
	version string
	http    *http.Client
	log     zerolog.Logger
	backoff time.Duration
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	return &Client{
		baseURL: cfg.NotionBaseURL,
		token:   cfg.NotionToken,
		version: cfg.NotionVersion,
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
		log:     log,
		backoff: 300 * time.Millisecond,
	}
}

func (c *Client) apiURL(path string, q url.Values) string {
	base := strings.TrimRight(c.baseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := base + path
	if len(q) > 0 {
		u = u + "?" + q.Encode()
	}
	return u
}

// StatusError is a non-retryable API response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("notion api status=%d body=%s", e.Status, e.Body)
}

func (c *Client) doJSON(ctx context.Context, method, u string, body any, out any) error {
	if c.baseURL == "" {
		return errors.New("notion: empty baseURL")
	}
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			// backoff
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff * time.Duration(1<<(attempt-1))):
			}
		}
		var r io.Reader
		if payload != nil {
			r = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, r)
		if err != nil {
			return err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Notion-Version", c.version)
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		done, err := c.decode(resp, out)
		if done {
			return err
		}
		lastErr = err
		c.log.Warn().Err(err).Int("attempt", attempt+1).Str("url", u).Msg("notion: retrying")
	}
	return lastErr
}

// decode reports done=false when the response is worth retrying.
func (c *Client) decode(resp *http.Response, out any) (bool, error) {
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
		// retry on 429/5xx
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return false, err
		}
		return true, err
	}
	if out == nil {
		return true, nil
	}
	return true, json.NewDecoder(resp.Body).Decode(out)
}

type queryResponse struct {
	Results    []domain.RawRecord `json:"results"`
	HasMore    bool               `json:"has_more"`
	NextCursor *string            `json:"next_cursor"`
}

// ListEntries returns one page of a board query.
func (c *Client) ListEntries(ctx context.Context, boardID, cursor string) (domain.Page, error) {
	if strings.TrimSpace(boardID) == "" {
		return domain.Page{}, errors.New("notion: empty board id")
	}
	body := map[string]any{"page_size": pageSize}
	if cursor != "" {
		body["start_cursor"] = cursor
	}
	var out queryResponse
	u := c.apiURL("/v1/databases/"+url.PathEscape(boardID)+"/query", nil)
	if err := c.doJSON(ctx, http.MethodPost, u, body, &out); err != nil {
		return domain.Page{}, err
	}
	p := domain.Page{Entries: out.Results, HasMore: out.HasMore}
	if out.NextCursor != nil {
		p.NextCursor = *out.NextCursor
	}
	return p, nil
}

// Lister is the single-page query AllEntries drives.
type Lister interface {
	ListEntries(ctx context.Context, boardID, cursor string) (domain.Page, error)
}

// AllEntries follows the cursor until the board is exhausted. Errors are SourceFetchErrors.
func AllEntries(ctx context.Context, l Lister, boardID string) ([]domain.RawRecord, error) {
	var all []domain.RawRecord
	cursor := ""
	for {
		p, err := l.ListEntries(ctx, boardID, cursor)
		if err != nil {
			return nil, &domain.SourceFetchError{Board: boardID, Err: err}
		}
		all = append(all, p.Entries...)
		if !p.HasMore {
			return all, nil
		}
		if p.NextCursor == "" || p.NextCursor == cursor {
			return nil, &domain.SourceFetchError{Board: boardID, Err: errors.New("has_more without a new cursor")}
		}
		cursor = p.NextCursor
	}
}

func (c *Client) AllEntries(ctx context.Context, boardID string) ([]domain.RawRecord, error) {
	return AllEntries(ctx, c, boardID)
}

// UserName resolves a workspace user's display name.
func (c *Client) UserName(ctx context.Context, userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("notion: empty user id")
	}
	var out struct {
		Name string `json:"name"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.apiURL("/v1/users/"+url.PathEscape(userID), nil), nil, &out); err != nil {
		return "", err
	}
	return out.Name, nil
}
