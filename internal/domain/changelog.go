/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// TaskSnapshot holds the mutable task fields recorded at each reconciliation.
type TaskSnapshot struct {
	TaskName    string `json:"taskName"`
	Assignee    string `json:"assignee"`
	Status      string `json:"status"`
	DueDate     string `json:"dueDate"`
	Priority    string `json:"priority"`
	Sprint      string `json:"sprint"`
	StoryPoints string `json:"storyPoints"`
	Project     string `json:"project"`
	Type        string `json:"type"`
}

type ChangeLogEntry struct {
	Key    string       `json:"key"`
	At     time.Time    `json:"date"`
	Fields TaskSnapshot `json:"fields"`
}

// ChangeLog is an insertion-ordered, append-only history keyed by run timestamp.
// The zero value is empty and ready to use.
type ChangeLog struct {
	entries []ChangeLogEntry
}

// RunKey formats the change-log key for a reconciliation run started at t.
func RunKey(t time.Time) string {
	s := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return strings.NewReplacer(":", "-", ".", "-").Replace(s)
}

// Append adds e at the end. An entry already stored under the same key is replaced in
// place, keeping its position; Append reports whether a new entry was added.
func (l *ChangeLog) Append(e ChangeLogEntry) bool {
	for i := range l.entries {
		if l.entries[i].Key == e.Key {
			l.entries[i] = e
			return false
		}
	}
	l.entries = append(l.entries, e)
	return true
}

func (l ChangeLog) Len() int { return len(l.entries) }

// Entries returns a copy in insertion order.
func (l ChangeLog) Entries() []ChangeLogEntry {
	out := make([]ChangeLogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l ChangeLog) Get(key string) (ChangeLogEntry, bool) {
	for _, e := range l.entries {
		if e.Key == key {
			return e, true
		}
	}
	return ChangeLogEntry{}, false
}

func (l ChangeLog) Last() (ChangeLogEntry, bool) {
	if len(l.entries) == 0 {
		return ChangeLogEntry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Clone returns an independent copy.
func (l ChangeLog) Clone() ChangeLog { return ChangeLog{entries: l.Entries()} }

func (l ChangeLog) MarshalJSON() ([]byte, error) {
	if l.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.entries)
}

func (l *ChangeLog) UnmarshalJSON(b []byte) error {
	var entries []ChangeLogEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return err
	}
	l.entries = nil
	for _, e := range entries {
		l.Append(e)
	}
	return nil
}
