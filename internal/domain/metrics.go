/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import "time"

type Health string

const (
	HealthOnTrack Health = "On Track"
	HealthAtRisk  Health = "At Risk"
	HealthDelayed Health = "Delayed"
)

type TaskDetail struct {
	TaskID      string  `json:"taskId"`
	TaskName    string  `json:"taskName"`
	TaskType    string  `json:"taskType,omitempty"`
	StoryPoints float64 `json:"storyPoints"`
	Assignee    *Person `json:"assignee,omitempty"`
}

func NewTaskDetail(t Task) TaskDetail {
	d := TaskDetail{TaskID: t.TaskID, TaskName: t.Name, TaskType: t.Type.Name, StoryPoints: t.Points()}
	if t.Assignee != nil {
		a := *t.Assignee
		d.Assignee = &a
	}
	return d
}

// StatusBreakdown groups the tasks that share a status.
type StatusBreakdown struct {
	Status      string       `json:"status"`
	Count       int          `json:"count"`
	StoryPoints float64      `json:"storyPoints"`
	Tasks       []TaskDetail `json:"tasks"`
}

type PointsBreakdown struct {
	Total float64      `json:"total"`
	Tasks []TaskDetail `json:"tasks"`
}

type DailyMetrics struct {
	Date                    time.Time         `json:"date"`
	TotalTasks              int               `json:"totalTasks"`
	CompletedTasks          int               `json:"completedTasks"`
	TotalBugs               int               `json:"totalBugs"`
	CompletedBugs           int               `json:"completedBugs"`
	TasksByStatus           []StatusBreakdown `json:"tasksByStatus"`
	BugsByStatus            []StatusBreakdown `json:"bugsByStatus"`
	StoryPointsCompleted    PointsBreakdown   `json:"storyPointsCompleted"`
	StoryPointsRemaining    PointsBreakdown   `json:"storyPointsRemaining"`
	EstimatedCompletionRate float64           `json:"estimatedCompletionRate"`
	Bottlenecks             []StatusBreakdown `json:"bottlenecks"`
	QARejections            int               `json:"qaRejections"`
	QARejectionsDetails     []TaskDetail      `json:"qaRejectionsDetails"`
	SprintHealth            Health            `json:"sprintHealth"`
	Notes                   string            `json:"notes,omitempty"`
}

// StatusGroup returns the breakdown for a status, if any task had it.
func (m DailyMetrics) StatusGroup(status string) (StatusBreakdown, bool) {
	for _, g := range m.TasksByStatus {
		if g.Status == status {
			return g, true
		}
	}
	return StatusBreakdown{}, false
}

// SameDay reports whether both metrics fall on the same calendar date in loc.
func (m DailyMetrics) SameDay(o DailyMetrics, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	y1, m1, d1 := m.Date.In(loc).Date()
	y2, m2, d2 := o.Date.In(loc).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

type SprintAnalysisHeader struct {
	SprintID   string    `json:"sprintId"`
	ProjectID  string    `json:"projectId"`
	ProjectTag string    `json:"projectTag"`
	SprintName string    `json:"sprintName"`
	StartDate  DateRange `json:"startDate"`
	EndDate    DateRange `json:"endDate"`
}

// SprintAnalysis is the per-sprint snapshot document; DailyMetrics is append-only.
type SprintAnalysis struct {
	SprintAnalysisHeader
	DailyMetrics []DailyMetrics `json:"dailyMetrics"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// Latest returns the most recent entry without touching the history.
func (a SprintAnalysis) Latest() (DailyMetrics, bool) {
	if len(a.DailyMetrics) == 0 {
		return DailyMetrics{}, false
	}
	return a.DailyMetrics[len(a.DailyMetrics)-1], true
}
