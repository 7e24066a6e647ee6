package notion

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GojoViv/ai.service.suvi.main/internal/config"
	"github.com/GojoViv/ai.service.suvi.main/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(config.Config{NotionBaseURL: srv.URL, NotionToken: "secret", NotionVersion: "2022-06-28", HTTPTimeout: 5 * time.Second}, zerolog.Nop())
	c.backoff = time.Millisecond
	return c
}

func TestAllEntries_FollowsCursor(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/v1/databases/db1/query", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "2022-06-28", r.Header.Get("Notion-Version"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch body["start_cursor"] {
		case nil:
			_, _ = w.Write([]byte(`{"results":[{"id":"a","properties":{}},{"id":"b","properties":{}}],"has_more":true,"next_cursor":"c2"}`))
		case "c2":
			_, _ = w.Write([]byte(`{"results":[{"id":"c","url":"https://x/c","properties":{"Task name":{}}}],"has_more":false,"next_cursor":null}`))
		default:
			t.Errorf("unexpected cursor %v", body["start_cursor"])
		}
	})
	recs, err := c.AllEntries(context.Background(), "db1")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "c", recs[2].ID)
	assert.Equal(t, "https://x/c", recs[2].URL)
	assert.Contains(t, recs[2].Properties, "Task name")
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestDoJSON_RetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"results":[],"has_more":false}`))
	})
	p, err := c.ListEntries(context.Background(), "db1", "")
	require.NoError(t, err)
	assert.Empty(t, p.Entries)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestDoJSON_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"no such database"}`))
	})
	_, err := c.AllEntries(context.Background(), "db1")
	var sfe *domain.SourceFetchError
	require.ErrorAs(t, err, &sfe)
	assert.Equal(t, "db1", sfe.Board)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

type pages []domain.Page

func (p pages) ListEntries(_ context.Context, _ string, cursor string) (domain.Page, error) {
	if cursor == "" {
		return p[0], nil
	}
	for i, pg := range p {
		if i > 0 && p[i-1].NextCursor == cursor {
			return pg, nil
		}
	}
	return domain.Page{}, errors.New("unknown cursor")
}

func TestAllEntries_MalformedPagination(t *testing.T) {
	_, err := AllEntries(context.Background(), pages{{Entries: []domain.RawRecord{{ID: "a"}}, HasMore: true}}, "db")
	var sfe *domain.SourceFetchError
	require.ErrorAs(t, err, &sfe)

	_, err = AllEntries(context.Background(), pages{
		{HasMore: true, NextCursor: "x"},
		{HasMore: true, NextCursor: "x"},
	}, "db")
	require.ErrorAs(t, err, &sfe)
}

// longBoard serves n single-entry pages with numeric cursors.
type longBoard int

func (n longBoard) ListEntries(ctx context.Context, boardID, cursor string) (domain.Page, error) {
	i := 0
	if cursor != "" {
		i, _ = strconv.Atoi(cursor)
	}
	p := domain.Page{Entries: []domain.RawRecord{{ID: strconv.Itoa(i)}}}
	if i+1 < int(n) {
		p.HasMore, p.NextCursor = true, strconv.Itoa(i+1)
	}
	return p, nil
}

func TestAllEntries_NoPageLimit(t *testing.T) {
	all, err := AllEntries(context.Background(), longBoard(12000), "db")
	require.NoError(t, err)
	require.Len(t, all, 12000)
	assert.Equal(t, "11999", all[len(all)-1].ID)
}

func TestPageContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/blocks/page-1/children":
			_, _ = w.Write([]byte(`{"results":[
				{"id":"b1","type":"heading_1","heading_1":{"rich_text":[{"plain_text":"Goal"}]}},
				{"id":"b2","type":"paragraph","paragraph":{"rich_text":[{"plain_text":"Ship "},{"plain_text":"it"}]}},
				{"id":"b3","type":"numbered_list_item","numbered_list_item":{"rich_text":[{"plain_text":"one"}]}},
				{"id":"b4","type":"numbered_list_item","numbered_list_item":{"rich_text":[{"plain_text":"two"}]}},
				{"id":"b5","type":"to_do","has_children":true,"to_do":{"checked":true,"rich_text":[{"plain_text":"done"}]}},
				{"id":"b6","type":"divider","divider":{}}
			],"has_more":false}`))
		case "/v1/blocks/b5/children":
			_, _ = w.Write([]byte(`{"results":[{"id":"c1","type":"bulleted_list_item","bulleted_list_item":{"rich_text":[{"plain_text":"nested"}]}}],"has_more":false}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	got, err := c.PageContent(context.Background(), "page-1")
	require.NoError(t, err)
	assert.Equal(t, "# Goal\nShip it\n1. one\n2. two\n- [x] done\n  - nested\n---", got)
}

func TestPageID(t *testing.T) {
	assert.Equal(t, "1a2b3c4d-5e6f-7a8b-9c0d-1e2f3a4b5c6d", PageID("1a2b3c4d-5e6f-7a8b-9c0d-1e2f3a4b5c6d"))
	assert.Equal(t, "1a2b3c4d-5e6f-7a8b-9c0d-1e2f3a4b5c6d", PageID("https://www.notion.so/Task-1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d"))
	assert.Equal(t, "1a2b3c4d-5e6f-7a8b-9c0d-1e2f3a4b5c6d", PageID("https://www.notion.so/Feed-1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d?pvs=4"))
	assert.Equal(t, "", PageID("not-an-id"))
}

func TestUserName(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/users/u1", r.URL.Path)
		_, _ = w.Write([]byte(`{"object":"user","id":"u1","name":"Ada Lovelace"}`))
	})
	name, err := c.UserName(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", name)
}
