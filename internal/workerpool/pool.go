/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package workerpool fans a record set out over a fixed number of shards and gathers
// whatever the healthy shards produced.
package workerpool

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/GojoViv/ai.service.suvi.main/internal/domain"
)

// Size returns n, or the CPU count when n <= 0. Never less than 1.
func Size(n int) int {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Shard splits items into at most n contiguous shards of ceil(len/n) items.
func Shard[T any](items []T, n int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if n < 1 {
		n = 1
	}
	size := (len(items) + n - 1) / n
	out := make([][]T, 0, n)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end:end])
	}
	return out
}

// Func processes one shard sequentially.
type Func[T, R any] func(ctx context.Context, shard int, items []T) ([]R, error)

// Run starts one goroutine per shard and waits for all of them. A shard that returns an
// error or panics contributes nothing; the results of the others are returned flattened
// in shard order.
func Run[T, R any](ctx context.Context, shards [][]T, fn Func[T, R]) ([]R, []*domain.WorkerShardError) {
	results := make([][]R, len(shards))
	errs := make([]error, len(shards))

	var g errgroup.Group
	for i, items := range shards {
		g.Go(func() error {
			results[i], errs[i] = runShard(ctx, i, items, fn)
			return nil
		})
	}
	_ = g.Wait()

	var (
		out    []R
		failed []*domain.WorkerShardError
	)
	for i := range shards {
		if errs[i] != nil {
			failed = append(failed, &domain.WorkerShardError{Shard: i, Err: errs[i]})
			continue
		}
		out = append(out, results[i]...)
	}
	return out, failed
}

func runShard[T, R any](ctx context.Context, i int, items []T, fn Func[T, R]) (res []R, err error) {
	defer func() {
		if v := recover(); v != nil {
			res, err = nil, fmt.Errorf("panic: %v", v)
		}
	}()
	return fn(ctx, i, items)
}
