/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package notion

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const maxBlockDepth = 3

type block struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	HasChildren bool           `json:"has_children"`
	Raw         map[string]any `json:"-"`
}

type blocksResponse struct {
	Results    []map[string]any `json:"results"`
	HasMore    bool             `json:"has_more"`
	NextCursor *string          `json:"next_cursor"`
}

var hexID = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)

// PageID extracts the 32 hex page id from a task id or page URL and formats it as a uuid.
func PageID(s string) string {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	compact := strings.ReplaceAll(s, "-", "")
	if len(compact) < 32 {
		return ""
	}
	id := strings.ToLower(compact[len(compact)-32:])
	if !hexID.MatchString(id) {
		return ""
	}
	return id[0:8] + "-" + id[8:12] + "-" + id[12:16] + "-" + id[16:20] + "-" + id[20:]
}

func (c *Client) children(ctx context.Context, blockID string) ([]block, error) {
	var out []block
	cursor := ""
	for {
		q := url.Values{}
		q.Set("page_size", strconv.Itoa(pageSize))
		if cursor != "" {
			q.Set("start_cursor", cursor)
		}
		var resp blocksResponse
		if err := c.doJSON(ctx, http.MethodGet, c.apiURL("/v1/blocks/"+url.PathEscape(blockID)+"/children", q), nil, &resp); err != nil {
			return nil, err
		}
		for _, raw := range resp.Results {
			b := block{Raw: raw}
			b.ID, _ = raw["id"].(string)
			b.Type, _ = raw["type"].(string)
			b.HasChildren, _ = raw["has_children"].(bool)
			out = append(out, b)
		}
		if !resp.HasMore {
			return out, nil
		}
		if resp.NextCursor == nil || *resp.NextCursor == "" || *resp.NextCursor == cursor {
			return nil, fmt.Errorf("notion: block %s: has_more without a new cursor", blockID)
		}
		cursor = *resp.NextCursor
	}
}

// PageContent renders the page body as plain markdown-like text.
func (c *Client) PageContent(ctx context.Context, pageID string) (string, error) {
	var b strings.Builder
	if err := c.render(ctx, &b, pageID, 0); err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()), nil
}

func (c *Client) render(ctx context.Context, b *strings.Builder, blockID string, depth int) error {
	blocks, err := c.children(ctx, blockID)
	if err != nil {
		return err
	}
	number := 0
	for _, bl := range blocks {
		if bl.Type == "numbered_list_item" {
			number++
		} else {
			number = 0
		}
		line := RenderBlock(bl.Type, bl.Raw, number)
		if line != "" {
			b.WriteString(strings.Repeat("  ", depth))
			b.WriteString(line)
			b.WriteString("\n")
		}
		if bl.HasChildren && depth+1 < maxBlockDepth && bl.Type != "child_page" && bl.Type != "child_database" {
			if err := c.render(ctx, b, bl.ID, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// RenderBlock renders one block. number is the position inside a numbered list.
func RenderBlock(typ string, raw map[string]any, number int) string {
	body, _ := raw[typ].(map[string]any)
	text := RichText(body["rich_text"])
	switch typ {
	case "paragraph":
		return text
	case "heading_1":
		return "# " + text
	case "heading_2":
		return "## " + text
	case "heading_3":
		return "### " + text
	case "bulleted_list_item":
		return "- " + text
	case "numbered_list_item":
		return fmt.Sprintf("%d. %s", number, text)
	case "to_do":
		if checked, _ := body["checked"].(bool); checked {
			return "- [x] " + text
		}
		return "- [ ] " + text
	case "quote":
		return "> " + text
	case "callout":
		icon := ""
		if ic, ok := body["icon"].(map[string]any); ok {
			icon, _ = ic["emoji"].(string)
		}
		return strings.TrimSpace("> " + icon + " " + text)
	case "code":
		lang, _ := body["language"].(string)
		return "```" + lang + "\n" + text + "\n```"
	case "divider":
		return "---"
	case "toggle":
		return "▸ " + text
	case "equation":
		expr, _ := body["expression"].(string)
		return "$$" + expr + "$$"
	case "bookmark", "embed", "link_preview":
		u, _ := body["url"].(string)
		if caption := RichText(body["caption"]); caption != "" {
			return "[" + caption + "](" + u + ")"
		}
		return u
	case "table_row":
		cells, _ := body["cells"].([]any)
		parts := make([]string, 0, len(cells))
		for _, cell := range cells {
			parts = append(parts, RichText(cell))
		}
		return "| " + strings.Join(parts, " | ") + " |"
	case "child_page":
		title, _ := body["title"].(string)
		return "📄 " + title
	default:
		return text
	}
}

// RichText concatenates the plain_text of a rich text array.
func RichText(v any) string {
	arr, _ := v.([]any)
	var b strings.Builder
	for _, it := range arr {
		m, _ := it.(map[string]any)
		if s, ok := m["plain_text"].(string); ok {
			b.WriteString(s)
		}
	}
	return b.String()
}
