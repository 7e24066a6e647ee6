package domain

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRunKey(t *testing.T) {
	ts := time.Date(2024, 3, 5, 9, 30, 15, 123_000_000, time.UTC)
	assert.Equal(t, "2024-03-05T09-30-15-123Z", RunKey(ts))

	loc := time.FixedZone("x", 3*3600)
	assert.Equal(t, RunKey(ts), RunKey(ts.In(loc)))
}

func TestChangeLog_AppendKeepsOrder(t *testing.T) {
	var l ChangeLog
	assert.True(t, l.Append(ChangeLogEntry{Key: "b", Fields: TaskSnapshot{Status: "To Do"}}))
	assert.True(t, l.Append(ChangeLogEntry{Key: "a", Fields: TaskSnapshot{Status: "In progress"}}))
	assert.False(t, l.Append(ChangeLogEntry{Key: "b", Fields: TaskSnapshot{Status: "Done"}}))

	entries := l.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Key)
	assert.Equal(t, "Done", entries[0].Fields.Status)
	assert.Equal(t, "a", entries[1].Key)

	last, ok := l.Last()
	require.True(t, ok)
	assert.Equal(t, "a", last.Key)
}

func TestChangeLog_EntriesIsACopy(t *testing.T) {
	var l ChangeLog
	l.Append(ChangeLogEntry{Key: "k", Fields: TaskSnapshot{Status: "To Do"}})
	e := l.Entries()
	e[0].Fields.Status = "mutated"
	got, _ := l.Get("k")
	assert.Equal(t, "To Do", got.Fields.Status)
}

func TestChangeLog_JSONPreservesOrder(t *testing.T) {
	var l ChangeLog
	for _, k := range []string{"z", "m", "a"} {
		l.Append(ChangeLogEntry{Key: k})
	}
	b, err := json.Marshal(l)
	require.NoError(t, err)

	var back ChangeLog
	require.NoError(t, json.Unmarshal(b, &back))
	keys := []string{}
	for _, e := range back.Entries() {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"z", "m", "a"}, keys)

	var empty ChangeLog
	b, err = json.Marshal(empty)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))
}

func TestChangeLog_DistinctKeysAreAppendOnly(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 50).Draw(t, "n")
		var l ChangeLog
		for i := 0; i < n; i++ {
			l.Append(ChangeLogEntry{Key: fmt.Sprintf("k%03d", i)})
			if l.Len() != i+1 {
				t.Fatalf("len = %d after %d appends", l.Len(), i+1)
			}
		}
		for i, e := range l.Entries() {
			if e.Key != fmt.Sprintf("k%03d", i) {
				t.Fatalf("entry %d has key %s", i, e.Key)
			}
		}
	})
}
