package domain

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestParseStoryPoints(t *testing.T) {
	cases := map[string]float64{
		"":         0,
		"3":        3,
		" 5 ":      5,
		"0.5":      0.5,
		"8 pts":    0,
		"1-2":      0,
		"3abc":     0,
		"1e3":      1000,
		"XL":       0,
		"?":        0,
		"NaN":      0,
		"Inf":      0,
		".5":       0.5,
		"-2":       -2,
		"13.":      13,
		"points 3": 0,
		"Infinity": 0,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseStoryPoints(in), "input %q", in)
	}
}

func TestParseStoryPoints_NumbersRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 1000).Draw(t, "n")
		if got := ParseStoryPoints(strconv.Itoa(n)); got != float64(n) {
			t.Fatalf("ParseStoryPoints(%d) = %v", n, got)
		}
	})
}

func TestParseStoryPoints_NonNumericIsZero(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.StringMatching(`[A-Za-z?!_ ]{0,12}`).Draw(t, "label")
		if got := ParseStoryPoints(s); got != 0 {
			t.Fatalf("ParseStoryPoints(%q) = %v, want 0", s, got)
		}
	})
}

func TestTaskPoints(t *testing.T) {
	task := Task{StoryPoints: Option{Name: "not a number"}}
	assert.Equal(t, 0.0, task.Points())
	task.StoryPoints.Name = "5"
	assert.Equal(t, 5.0, task.Points())
}
