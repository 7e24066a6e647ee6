/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import (
	"math"
	"strconv"
	"strings"
)

// ParseStoryPoints parses the whole story points label as a number.
// Anything else, including "5 pts" or NaN, is 0.
func ParseStoryPoints(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
