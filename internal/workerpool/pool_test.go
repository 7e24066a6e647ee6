package workerpool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"pgregory.net/rapid"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestShard(t *testing.T) {
	assert.Nil(t, Shard([]int{}, 4))
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, Shard([]int{1, 2, 3, 4, 5}, 3))
	assert.Equal(t, [][]int{{1}, {2}}, Shard([]int{1, 2}, 8))
	assert.Equal(t, [][]int{{1, 2, 3}}, Shard([]int{1, 2, 3}, 0))
}

func TestShard_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		items := rapid.SliceOf(rapid.Int()).Draw(t, "items")
		n := rapid.IntRange(1, 64).Draw(t, "n")
		shards := Shard(items, n)
		if len(shards) > n {
			t.Fatalf("%d shards for n=%d", len(shards), n)
		}
		var flat []int
		for _, s := range shards {
			if len(s) == 0 {
				t.Fatalf("empty shard")
			}
			flat = append(flat, s...)
		}
		if len(flat) != len(items) {
			t.Fatalf("lost items: %d of %d", len(flat), len(items))
		}
		for i := range items {
			if flat[i] != items[i] {
				t.Fatalf("order changed at %d", i)
			}
		}
	})
}

func TestSize(t *testing.T) {
	assert.Equal(t, 3, Size(3))
	assert.GreaterOrEqual(t, Size(0), 1)
}

func double(ctx context.Context, shard int, items []int) ([]int, error) {
	out := make([]int, 0, len(items))
	for _, v := range items {
		out = append(out, v*2)
	}
	return out, nil
}

func TestRun_AllShards(t *testing.T) {
	out, failed := Run(context.Background(), Shard([]int{1, 2, 3, 4, 5, 6, 7}, 3), double)
	assert.Empty(t, failed)
	assert.Equal(t, []int{2, 4, 6, 8, 10, 12, 14}, out)
}

func TestRun_ShardErrorIsIsolated(t *testing.T) {
	boom := errors.New("boom")
	out, failed := Run(context.Background(), Shard([]int{0, 1, 2, 3}, 4), func(ctx context.Context, shard int, items []int) ([]int, error) {
		if shard == 2 {
			return []int{99}, boom
		}
		return items, nil
	})
	assert.Equal(t, []int{0, 1, 3}, out)
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].Shard)
	assert.ErrorIs(t, failed[0], boom)
}

func TestRun_ShardPanicIsIsolated(t *testing.T) {
	out, failed := Run(context.Background(), Shard([]int{0, 1, 2, 3}, 4), func(ctx context.Context, shard int, items []int) ([]int, error) {
		if shard == 2 {
			panic("nil map")
		}
		return items, nil
	})
	assert.Equal(t, []int{0, 1, 3}, out)
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].Shard)
	assert.Contains(t, failed[0].Error(), "panic: nil map")
}

func TestRun_NoShards(t *testing.T) {
	out, failed := Run(context.Background(), Shard([]string{}, 4), func(ctx context.Context, shard int, items []string) ([]string, error) {
		return items, nil
	})
	assert.Empty(t, out)
	assert.Empty(t, failed)
}
