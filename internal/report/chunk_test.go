package report

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestChunkText(t *testing.T) {
	assert.Equal(t, []string{""}, ChunkText("", 10))
	assert.Equal(t, []string{"ab\ncd"}, ChunkText("ab\ncd", 10))
	assert.Equal(t, []string{"abcd", "efgh"}, ChunkText("abcd\nefgh", 6))
	assert.Equal(t, []string{"abcde", "fghij", "k", "xy"}, ChunkText("abcdefghijk\nxy", 5))
	assert.Equal(t, []string{"🥇🥈", "🥉"}, ChunkText("🥇🥈🥉", 2))
}

func TestChunkText_RespectsLimitAndKeepsContent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lines := rapid.SliceOf(rapid.StringMatching(`[a-z ]{0,30}`)).Draw(t, "lines")
		max := rapid.IntRange(1, 40).Draw(t, "max")
		in := strings.Join(lines, "\n")
		chunks := ChunkText(in, max)
		for _, c := range chunks {
			if utf8.RuneCountInString(c) > max {
				t.Fatalf("chunk %q longer than %d", c, max)
			}
		}
		strip := func(s string) string { return strings.ReplaceAll(s, "\n", "") }
		if strip(strings.Join(chunks, "")) != strip(in) {
			t.Fatalf("content changed: %q -> %q", in, chunks)
		}
	})
}
