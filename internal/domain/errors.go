/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import (
	"errors"
	"fmt"
)

// ErrNoCurrentSprint marks the analytics skip outcome. It is not a failure.
var ErrNoCurrentSprint = errors.New("no current sprint")

// SourceFetchError aborts the reconciliation of one project.
type SourceFetchError struct {
	Board string
	Err   error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("source fetch %s: %v", e.Board, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// RecordMappingError is raised for a single raw record; the batch continues.
type RecordMappingError struct {
	Kind     string
	RecordID string
	Err      error
}

func (e *RecordMappingError) Error() string {
	return fmt.Sprintf("map %s %q: %v", e.Kind, e.RecordID, e.Err)
}

func (e *RecordMappingError) Unwrap() error { return e.Err }

type StoreWriteError struct {
	Op  string
	ID  string
	Err error
}

func (e *StoreWriteError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %q: %v", e.Op, e.ID, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

type WorkerShardError struct {
	Shard int
	Err   error
}

func (e *WorkerShardError) Error() string {
	return fmt.Sprintf("worker shard %d: %v", e.Shard, e.Err)
}

func (e *WorkerShardError) Unwrap() error { return e.Err }

type NotifierError struct {
	Channel string
	Err     error
}

func (e *NotifierError) Error() string {
	return fmt.Sprintf("notify %s: %v", e.Channel, e.Err)
}

func (e *NotifierError) Unwrap() error { return e.Err }
