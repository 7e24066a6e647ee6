/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package analytics

import (
	"sort"

	"github.com/GojoViv/ai.service.suvi.main/internal/domain"
)

const unassigned = "Unassigned"

// TopStatuses are the statuses that count towards the top performers list.
var TopStatuses = []string{domain.StatusQAReview, domain.StatusDone}

type StatusPoints struct {
	Status string
	Points float64
}

type AssigneePoints struct {
	Assignee string
	Statuses []StatusPoints
	Total    float64
}

// Ranked is one leaderboard line.
type Ranked struct {
	Name  string
	Value float64
}

func assigneeName(p *domain.Person) string {
	if n := p.DisplayName(); n != "" {
		return n
	}
	return unassigned
}

// LatestEntries takes the last daily entry of each analysis, skipping empty histories.
func LatestEntries(analyses []domain.SprintAnalysis) []domain.DailyMetrics {
	out := make([]domain.DailyMetrics, 0, len(analyses))
	for _, a := range analyses {
		if m, ok := a.Latest(); ok {
			out = append(out, m)
		}
	}
	return out
}

// tally sums values by key and remembers first-encounter order.
type tally struct {
	order []string
	sum   map[string]float64
}

func newTally() *tally { return &tally{sum: map[string]float64{}} }

func (t *tally) add(key string, v float64) {
	if _, ok := t.sum[key]; !ok {
		t.order = append(t.order, key)
	}
	t.sum[key] += v
}

// ranked sorts descending; equal values keep first-encounter order.
func (t *tally) ranked() []Ranked {
	out := make([]Ranked, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, Ranked{Name: k, Value: t.sum[k]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}

// PointsByAssigneeStatus sums story points per assignee and status over the entries.
func PointsByAssigneeStatus(entries []domain.DailyMetrics) []AssigneePoints {
	var (
		order []string
		by    = map[string]*tally{}
	)
	for _, m := range entries {
		for _, g := range m.TasksByStatus {
			for _, d := range g.Tasks {
				name := assigneeName(d.Assignee)
				t, ok := by[name]
				if !ok {
					t = newTally()
					by[name] = t
					order = append(order, name)
				}
				t.add(g.Status, d.StoryPoints)
			}
		}
	}
	out := make([]AssigneePoints, 0, len(order))
	for _, name := range order {
		t := by[name]
		ap := AssigneePoints{Assignee: name}
		for _, s := range t.order {
			ap.Statuses = append(ap.Statuses, StatusPoints{Status: s, Points: t.sum[s]})
			ap.Total += t.sum[s]
		}
		out = append(out, ap)
	}
	return out
}

// TopPerformers ranks assignees by points in TopStatuses and keeps the first n.
func TopPerformers(entries []domain.DailyMetrics, n int) []Ranked {
	t := newTally()
	for _, m := range entries {
		for _, g := range m.TasksByStatus {
			if !contains(TopStatuses, g.Status) {
				continue
			}
			for _, d := range g.Tasks {
				t.add(assigneeName(d.Assignee), d.StoryPoints)
			}
		}
	}
	out := t.ranked()
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// BugCreators counts bug tasks per assignee across projects, without truncation.
func BugCreators(perProject [][]domain.Task) []Ranked {
	t := newTally()
	for _, tasks := range perProject {
		for _, task := range tasks {
			if task.IsBug() {
				t.add(assigneeName(task.Assignee), 1)
			}
		}
	}
	return t.ranked()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
