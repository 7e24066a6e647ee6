/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package analytics

import (
	"time"

	"github.com/GojoViv/ai.service.suvi.main/internal/domain"
)

const metricsNote = "Daily metrics updated with detailed task lists and bug tracking"

const day = 24 * time.Hour

// Health thresholds: completion rate below the limit once the sprint is older than the age.
const (
	atRiskRate  = 50.0
	atRiskAge   = 5 * day
	delayedRate = 25.0
	delayedAge  = 7 * day
)

// Rules parameterises the daily metrics.
type Rules struct {
	ReviewStatuses []string
	// Loc resolves sprint dates that carry no time zone.
	Loc *time.Location
}

func DefaultRules() Rules {
	return Rules{ReviewStatuses: domain.ReviewStatuses, Loc: time.Local}
}

// ComputeDailyMetrics computes the snapshot with the default rules.
func ComputeDailyMetrics(tasks []domain.Task, sprint domain.Sprint, now time.Time) domain.DailyMetrics {
	return DefaultRules().Compute(tasks, sprint, now)
}

// ClassifyHealth evaluates both thresholds independently against now; Delayed wins.
// A sprint without a start date is On Track.
func ClassifyHealth(rate float64, start, now time.Time) domain.Health {
	health := domain.HealthOnTrack
	if start.IsZero() {
		return health
	}
	if rate < atRiskRate && now.After(start.Add(atRiskAge)) {
		health = domain.HealthAtRisk
	}
	if rate < delayedRate && now.After(start.Add(delayedAge)) {
		health = domain.HealthDelayed
	}
	return health
}

// CompletionRate is done/total*100, 0 for an empty sprint.
func CompletionRate(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total) * 100
}

// groups accumulates status breakdowns in first-seen order.
type groups struct {
	order []string
	by    map[string]*domain.StatusBreakdown
}

func newGroups() *groups { return &groups{by: map[string]*domain.StatusBreakdown{}} }

func (g *groups) add(t domain.Task) {
	name := t.Status.Name
	b, ok := g.by[name]
	if !ok {
		b = &domain.StatusBreakdown{Status: name}
		g.by[name] = b
		g.order = append(g.order, name)
	}
	d := domain.NewTaskDetail(t)
	b.Count++
	b.StoryPoints += d.StoryPoints
	b.Tasks = append(b.Tasks, d)
}

func (g *groups) list() []domain.StatusBreakdown {
	out := make([]domain.StatusBreakdown, 0, len(g.order))
	for _, s := range g.order {
		out = append(out, *g.by[s])
	}
	return out
}

func (r Rules) isReview(status string) bool {
	for _, s := range r.ReviewStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (r Rules) Compute(tasks []domain.Task, sprint domain.Sprint, now time.Time) domain.DailyMetrics {
	m := domain.DailyMetrics{
		Date:                 now,
		TotalTasks:           len(tasks),
		StoryPointsCompleted: domain.PointsBreakdown{Tasks: []domain.TaskDetail{}},
		StoryPointsRemaining: domain.PointsBreakdown{Tasks: []domain.TaskDetail{}},
		Bottlenecks:          []domain.StatusBreakdown{},
		QARejectionsDetails:  []domain.TaskDetail{},
		Notes:                metricsNote,
	}
	all, bugs := newGroups(), newGroups()
	for _, t := range tasks {
		d := domain.NewTaskDetail(t)
		all.add(t)
		if t.IsDone() {
			m.CompletedTasks++
			m.StoryPointsCompleted.Total += d.StoryPoints
			m.StoryPointsCompleted.Tasks = append(m.StoryPointsCompleted.Tasks, d)
		} else {
			m.StoryPointsRemaining.Total += d.StoryPoints
			m.StoryPointsRemaining.Tasks = append(m.StoryPointsRemaining.Tasks, d)
		}
		if t.IsBug() {
			m.TotalBugs++
			if t.IsDone() {
				m.CompletedBugs++
			}
			bugs.add(t)
		}
		if t.Status.Name == domain.StatusQARejected {
			m.QARejectionsDetails = append(m.QARejectionsDetails, d)
		}
	}
	m.TasksByStatus = all.list()
	m.BugsByStatus = bugs.list()
	m.QARejections = len(m.QARejectionsDetails)
	for _, g := range m.TasksByStatus {
		if r.isReview(g.Status) {
			m.Bottlenecks = append(m.Bottlenecks, g)
		}
	}
	m.EstimatedCompletionRate = CompletionRate(m.CompletedTasks, m.TotalTasks)

	start, _ := sprint.Start(r.Loc)
	m.SprintHealth = ClassifyHealth(m.EstimatedCompletionRate, start, now)
	return m
}

// QAReport holds the tasks waiting on or bounced by QA.
type QAReport struct {
	Review   []domain.Task
	Rejected []domain.Task
}

func (q QAReport) Empty() bool { return len(q.Review) == 0 && len(q.Rejected) == 0 }

func QAStatus(tasks []domain.Task) QAReport {
	var q QAReport
	for _, t := range tasks {
		switch t.Status.Name {
		case domain.StatusQAReview:
			q.Review = append(q.Review, t)
		case domain.StatusQARejected:
			q.Rejected = append(q.Rejected, t)
		}
	}
	return q
}
