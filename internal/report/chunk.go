/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package report

import "strings"

// MessageLimit keeps a single chat message under both Slack and Telegram limits.
const MessageLimit = 3800

// ChunkText splits text into chunks of up to max runes, attempting to break on line boundaries.
func ChunkText(s string, max int) []string {
	if max <= 0 {
		return []string{s}
	}
	var chunks []string
	var cur strings.Builder
	curlen := 0
	flush := func() {
		if curlen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curlen = 0
		}
	}
	for _, ln := range strings.Split(s, "\n") {
		r := []rune(ln)
		// a single line over max is hard-split
		if len(r) > max {
			flush()
			for i := 0; i < len(r); i += max {
				j := min(i+max, len(r))
				chunks = append(chunks, string(r[i:j]))
			}
			continue
		}
		extra := len(r)
		if curlen > 0 {
			extra++
		}
		if curlen+extra > max {
			flush()
			extra = len(r)
		}
		if curlen > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(ln)
		curlen += extra
	}
	flush()
	if len(chunks) == 0 {
		chunks = []string{""}
	}
	return chunks
}
