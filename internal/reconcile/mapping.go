/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package reconcile

import (
	"errors"
	"math"
	"strings"

	"github.com/GojoViv/ai.service.suvi.main/internal/domain"
)

var errMissingID = errors.New("missing external id")

// Property names used on the boards.
const (
	propTaskName    = "Task name"
	propSummary     = "Summary"
	propAssignee    = "Assignee"
	propStatus      = "Status"
	propDue         = "Due"
	propPriority    = "Priority"
	propSprint      = "Sprint"
	propEpic        = "Epic"
	propType        = "Type"
	propStoryPoints = "Story Points"

	propSprintName     = "Sprint name"
	propStartDate      = "Start Date"
	propEndDate        = "End Date"
	propDates          = "Dates"
	propTasks          = "Tasks"
	propCompletedTasks = "Completed tasks"
	propSprintStatus   = "Sprint status"

	propEpicName   = "Epic name"
	propOwner      = "Owner"
	propCompletion = "Completion"
	propIsBlocking = "Is Blocking"
	propBlockedBy  = "Blocked By"
)

// bag wraps a raw property map. Every accessor tolerates missing or mistyped values.
type bag map[string]any

func (b bag) value(name, key string) any {
	p, _ := b[name].(map[string]any)
	if p == nil {
		return nil
	}
	return p[key]
}

func plainText(v any) string {
	arr, _ := v.([]any)
	var sb strings.Builder
	for _, it := range arr {
		m, _ := it.(map[string]any)
		if s, ok := m["plain_text"].(string); ok {
			sb.WriteString(s)
			continue
		}
		if t, ok := m["text"].(map[string]any); ok {
			if s, ok := t["content"].(string); ok {
				sb.WriteString(s)
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

func (b bag) title(name string) string { return plainText(b.value(name, "title")) }

func (b bag) richText(name string) string { return plainText(b.value(name, "rich_text")) }

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func option(v any) domain.Option {
	m, _ := v.(map[string]any)
	if m == nil {
		return domain.Option{}
	}
	return domain.Option{ID: str(m, "id"), Name: str(m, "name"), Color: str(m, "color")}
}

func (b bag) status(name string) domain.Option { return option(b.value(name, "status")) }

func (b bag) selectOption(name string) domain.Option {
	if v := b.value(name, "select"); v != nil {
		return option(v)
	}
	// some boards model these as status
	return option(b.value(name, "status"))
}

func (b bag) person(name string) *domain.Person {
	arr, _ := b.value(name, "people").([]any)
	if len(arr) == 0 {
		return nil
	}
	m, _ := arr[0].(map[string]any)
	if m == nil || str(m, "id") == "" {
		return nil
	}
	p := &domain.Person{ID: str(m, "id"), Name: str(m, "name"), AvatarURL: str(m, "avatar_url")}
	if person, ok := m["person"].(map[string]any); ok {
		p.Email = str(person, "email")
	}
	return p
}

func (b bag) relations(name string) []string {
	arr, _ := b.value(name, "relation").([]any)
	out := make([]string, 0, len(arr))
	for _, it := range arr {
		m, _ := it.(map[string]any)
		if id := str(m, "id"); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func (b bag) firstRelation(name string) string {
	if r := b.relations(name); len(r) > 0 {
		return r[0]
	}
	return ""
}

func (b bag) date(name string) domain.DateRange {
	m, _ := b.value(name, "date").(map[string]any)
	if m == nil {
		return domain.DateRange{}
	}
	return domain.DateRange{Start: str(m, "start"), End: str(m, "end"), TimeZone: str(m, "time_zone")}
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// number reads a number, rollup or formula property.
func (b bag) number(name string) float64 {
	if f, ok := b.value(name, "number").(float64); ok {
		return finite(f)
	}
	if r, ok := b.value(name, "rollup").(map[string]any); ok {
		if f, ok := r["number"].(float64); ok {
			return finite(f)
		}
	}
	if r, ok := b.value(name, "formula").(map[string]any); ok {
		if f, ok := r["number"].(float64); ok {
			return finite(f)
		}
	}
	return 0
}

func mappingError(kind string, rec domain.RawRecord) error {
	return &domain.RecordMappingError{Kind: kind, RecordID: rec.ID, Err: errMissingID}
}

// MapTask maps a task board entry. Only the external id is required.
func MapTask(rec domain.RawRecord, projectTag string) (domain.Task, error) {
	if strings.TrimSpace(rec.ID) == "" {
		return domain.Task{}, mappingError("task", rec)
	}
	b := bag(rec.Properties)
	return domain.Task{
		TaskID:      rec.ID,
		Name:        b.title(propTaskName),
		Summary:     b.richText(propSummary),
		Assignee:    b.person(propAssignee),
		Status:      b.status(propStatus),
		DueDate:     b.date(propDue).Start,
		Priority:    b.selectOption(propPriority),
		SprintRef:   b.firstRelation(propSprint),
		EpicRef:     b.firstRelation(propEpic),
		Type:        b.selectOption(propType),
		StoryPoints: b.selectOption(propStoryPoints),
		ProjectTag:  projectTag,
		URL:         rec.URL,
	}, nil
}

// MapSprint maps a sprint board entry. totalTasks always equals the reference count.
func MapSprint(rec domain.RawRecord, projectTag string) (domain.Sprint, error) {
	if strings.TrimSpace(rec.ID) == "" {
		return domain.Sprint{}, mappingError("sprint", rec)
	}
	b := bag(rec.Properties)
	tasks := b.relations(propTasks)
	return domain.Sprint{
		SprintID:       rec.ID,
		Name:           b.title(propSprintName),
		StartDate:      b.date(propStartDate),
		EndDate:        b.date(propEndDate),
		Dates:          b.date(propDates),
		Tasks:          tasks,
		TotalTasks:     len(tasks),
		CompletedTasks: int(b.number(propCompletedTasks)),
		Status:         b.status(propSprintStatus),
		ProjectTag:     projectTag,
		URL:            rec.URL,
	}, nil
}

func MapEpic(rec domain.RawRecord, projectTag string) (domain.Epic, error) {
	if strings.TrimSpace(rec.ID) == "" {
		return domain.Epic{}, mappingError("epic", rec)
	}
	b := bag(rec.Properties)
	return domain.Epic{
		EpicID:     rec.ID,
		Name:       b.title(propEpicName),
		Owner:      b.person(propOwner),
		Status:     b.status(propStatus),
		Completion: b.number(propCompletion),
		Priority:   b.selectOption(propPriority),
		Dates:      b.date(propDates),
		Summary:    b.richText(propSummary),
		Tasks:      b.relations(propTasks),
		IsBlocking: b.relations(propIsBlocking),
		BlockedBy:  b.relations(propBlockedBy),
		ProjectTag: projectTag,
		URL:        rec.URL,
	}, nil
}

// RecordTitle returns the text of the record's title property, whatever its name.
func RecordTitle(rec domain.RawRecord) string {
	for _, v := range rec.Properties {
		p, _ := v.(map[string]any)
		if p == nil {
			continue
		}
		if t, ok := p["title"]; ok {
			return plainText(t)
		}
	}
	return ""
}
