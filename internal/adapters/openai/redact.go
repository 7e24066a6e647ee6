/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package openai

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+`)
	phoneRe = regexp.MustCompile(`\+?\d[\d\-\s]{7,}\d`)
	urlRe   = regexp.MustCompile(`https?://[^\s)]+`)
	tokenRe = regexp.MustCompile(`(?i)\b(?:token|secret|password|apikey|api_key|bearer)[:=\s]+[A-Za-z0-9\-\._~+/]{8,}`)
)

// Redact masks emails, phone numbers, urls and secrets, and replaces each known person
// name with a stable alias (user01, user02, ... in the order given).
func Redact(s string, people []string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = emailRe.ReplaceAllString(s, "<email>")
	s = tokenRe.ReplaceAllString(s, "<secret>")
	s = urlRe.ReplaceAllString(s, "<url>")
	s = phoneRe.ReplaceAllString(s, "<phone>")

	alias := map[string]string{}
	next := 1
	for _, p := range people {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := alias[p]; !ok {
			alias[p] = fmt.Sprintf("user%02d", next)
			next++
		}
	}
	// longest first so "Ada Lovelace" wins over "Ada"
	names := make([]string, 0, len(alias))
	for n := range alias {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	for _, n := range names {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(n) + `\b`)
		s = re.ReplaceAllString(s, alias[n])
	}
	return s
}
