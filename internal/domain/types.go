/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import (
	"strings"
	"time"
)

// Status and type names the board uses. Compared by name, as the boards do.
const (
	StatusDone       = "Done"
	StatusQAReview   = "QA Review"
	StatusCodeReview = "Code Review"
	StatusQARejected = "QA Rejected"
	StatusInProgress = "In progress"

	TypeBug = "Bug"

	// SprintStatusCurrent is the status id the sprint board gives the running sprint.
	SprintStatusCurrent = "current"
)

// ReviewStatuses are the statuses reported as bottlenecks.
var ReviewStatuses = []string{StatusQAReview, StatusCodeReview}

type Person struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// DisplayName falls back to the id when the board did not send a name.
func (p *Person) DisplayName() string {
	if p == nil {
		return ""
	}
	if strings.TrimSpace(p.Name) != "" {
		return p.Name
	}
	return p.ID
}

// Option is a select/status value.
type Option struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type DateRange struct {
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// StartTime parses Start in the range time zone, or loc when none is set.
func (d DateRange) StartTime(loc *time.Location) (time.Time, bool) {
	return parseBoardDate(d.Start, d.TimeZone, loc)
}

func (d DateRange) EndTime(loc *time.Location) (time.Time, bool) {
	return parseBoardDate(d.End, d.TimeZone, loc)
}

func parseBoardDate(s, tz string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	for _, layout := range []string{"2006-01-02T15:04:05.000", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type DescriptionMeta struct {
	PageID        string    `json:"pageId"`
	ContentLength int       `json:"contentLength"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Task struct {
	TaskID      string  `json:"taskId"`
	Name        string  `json:"taskName"`
	Description string  `json:"taskDescription"`
	Summary     string  `json:"summary,omitempty"`
	AISummary   string  `json:"aiSummary,omitempty"`
	Assignee    *Person `json:"assignee,omitempty"`
	Status      Option  `json:"status"`
	DueDate     string  `json:"dueDate,omitempty"`
	Priority    Option  `json:"priority"`
	SprintRef   string  `json:"sprint,omitempty"`
	EpicRef     string  `json:"epic,omitempty"`
	Type        Option  `json:"type"`
	StoryPoints Option  `json:"storyPoints"`
	ProjectTag  string  `json:"projectTag"`
	URL         string  `json:"url,omitempty"`

	ChangeLog ChangeLog `json:"changeLog"`

	LastDescriptionUpdate *time.Time       `json:"lastDescriptionUpdate,omitempty"`
	DescriptionMeta       *DescriptionMeta `json:"descriptionMetadata,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Points parses the story points display value; anything unparsable counts as 0.
func (t Task) Points() float64 { return ParseStoryPoints(t.StoryPoints.Name) }

func (t Task) IsDone() bool { return t.Status.Name == StatusDone }

func (t Task) IsBug() bool { return t.Type.Name == TypeBug }

// Snapshot captures the fields tracked by the change log.
func (t Task) Snapshot() TaskSnapshot {
	s := TaskSnapshot{
		TaskName:    t.Name,
		Status:      t.Status.Name,
		DueDate:     t.DueDate,
		Priority:    t.Priority.Name,
		Sprint:      t.SprintRef,
		StoryPoints: t.StoryPoints.Name,
		Project:     t.ProjectTag,
		Type:        t.Type.Name,
	}
	if t.Assignee != nil {
		s.Assignee = t.Assignee.DisplayName()
	}
	return s
}

type Sprint struct {
	SprintID       string    `json:"sprintId"`
	Name           string    `json:"sprintName"`
	StartDate      DateRange `json:"startDate"`
	EndDate        DateRange `json:"endDate"`
	Dates          DateRange `json:"dates"`
	Tasks          []string  `json:"tasks"`
	TotalTasks     int       `json:"totalTasks"`
	CompletedTasks int       `json:"completedTasks"`
	Status         Option    `json:"sprintStatus"`
	ProjectTag     string    `json:"projectTag"`
	URL            string    `json:"url,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (s Sprint) IsCurrent() bool { return s.Status.ID == SprintStatusCurrent }

// HasTask reports whether id is in the sprint's task references.
func (s Sprint) HasTask(id string) bool {
	for _, t := range s.Tasks {
		if t == id {
			return true
		}
	}
	return false
}

// Start prefers the dedicated start date property and falls back to the date range.
func (s Sprint) Start(loc *time.Location) (time.Time, bool) {
	if t, ok := s.StartDate.StartTime(loc); ok {
		return t, true
	}
	return s.Dates.StartTime(loc)
}

type Epic struct {
	EpicID     string    `json:"epicId"`
	Name       string    `json:"epicName"`
	Owner      *Person   `json:"owner,omitempty"`
	Status     Option    `json:"status"`
	Completion float64   `json:"completion"`
	Priority   Option    `json:"priority"`
	Dates      DateRange `json:"dates"`
	Summary    string    `json:"summary,omitempty"`
	Tasks      []string  `json:"tasks"`
	IsBlocking []string  `json:"isBlocking"`
	BlockedBy  []string  `json:"blockedBy"`
	ProjectTag string    `json:"projectTag"`
	URL        string    `json:"url,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ProjectDocument is one entry of a project's PRD board.
type ProjectDocument struct {
	DocumentID string    `json:"documentId"`
	ProjectTag string    `json:"projectTag"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	URL        string    `json:"url,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// RawRecord is a board entry as the source returns it.
type RawRecord struct {
	ID         string         `json:"id"`
	URL        string         `json:"url"`
	Properties map[string]any `json:"properties"`
}

// Page is one page of a paginated board query.
type Page struct {
	Entries    []RawRecord
	HasMore    bool
	NextCursor string
}
