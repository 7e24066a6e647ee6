/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GojoViv/ai.service.suvi.main/internal/domain"
)

// Memory is an in-process store with the same semantics as Repository. Reads return copies.
type Memory struct {
	mu  sync.RWMutex
	now func() time.Time

	tasks     map[string]domain.Task
	taskOrder []string
	sprints   map[string]domain.Sprint
	sprintOrd []string
	epics     map[string]domain.Epic
	epicOrder []string
	analyses  map[string]domain.SprintAnalysis
	docs      map[string][]domain.ProjectDocument

	runs  []LastRun
	locks map[int64]bool
}

func NewMemory() *Memory {
	return &Memory{
		now:      time.Now,
		tasks:    map[string]domain.Task{},
		sprints:  map[string]domain.Sprint{},
		epics:    map[string]domain.Epic{},
		analyses: map[string]domain.SprintAnalysis{},
		docs:     map[string][]domain.ProjectDocument{},
		locks:    map[int64]bool{},
	}
}

// WithClock replaces the clock used for timestamps.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func cloneTask(t domain.Task) domain.Task {
	t.ChangeLog = t.ChangeLog.Clone()
	if t.Assignee != nil {
		a := *t.Assignee
		t.Assignee = &a
	}
	if t.LastDescriptionUpdate != nil {
		ts := *t.LastDescriptionUpdate
		t.LastDescriptionUpdate = &ts
	}
	if t.DescriptionMeta != nil {
		dm := *t.DescriptionMeta
		t.DescriptionMeta = &dm
	}
	return t
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneSprint(s domain.Sprint) domain.Sprint {
	s.Tasks = cloneStrings(s.Tasks)
	return s
}

func cloneEpic(e domain.Epic) domain.Epic {
	e.Tasks = cloneStrings(e.Tasks)
	e.IsBlocking = cloneStrings(e.IsBlocking)
	e.BlockedBy = cloneStrings(e.BlockedBy)
	if e.Owner != nil {
		o := *e.Owner
		e.Owner = &o
	}
	return e
}

func (m *Memory) UpsertTask(ctx context.Context, t domain.Task, entry domain.ChangeLogEntry) (domain.Task, error) {
	if t.TaskID == "" {
		return domain.Task{}, errors.New("memory: empty task id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	log := domain.ChangeLog{}
	if prev, ok := m.tasks[t.TaskID]; ok {
		log = prev.ChangeLog.Clone()
		// description fields belong to the maintenance job
		t.Description = prev.Description
		t.AISummary = prev.AISummary
		t.LastDescriptionUpdate = prev.LastDescriptionUpdate
		t.DescriptionMeta = prev.DescriptionMeta
		t.CreatedAt = prev.CreatedAt
	} else {
		t.CreatedAt = now
		m.taskOrder = append(m.taskOrder, t.TaskID)
	}
	log.Append(entry)
	t.ChangeLog = log
	t.UpdatedAt = now
	m.tasks[t.TaskID] = cloneTask(t)
	return cloneTask(t), nil
}

func (m *Memory) FindTasks(ctx context.Context, f TaskFilter) ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Task
	for _, id := range m.taskOrder {
		t := m.tasks[id]
		if f.match(t) {
			out = append(out, cloneTask(t))
		}
	}
	return out, nil
}

func (m *Memory) UpsertSprint(ctx context.Context, s domain.Sprint) (domain.Sprint, error) {
	if s.SprintID == "" {
		return domain.Sprint{}, errors.New("memory: empty sprint id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if prev, ok := m.sprints[s.SprintID]; ok {
		s.CreatedAt = prev.CreatedAt
	} else {
		s.CreatedAt = now
		m.sprintOrd = append(m.sprintOrd, s.SprintID)
	}
	s.UpdatedAt = now
	m.sprints[s.SprintID] = cloneSprint(s)
	return cloneSprint(s), nil
}

func (m *Memory) AttachTaskToSprint(ctx context.Context, sprintID, taskID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sprints[sprintID]
	if !ok {
		return false, fmt.Errorf("memory: sprint %q not found", sprintID)
	}
	if s.HasTask(taskID) {
		return false, nil
	}
	s = cloneSprint(s)
	s.Tasks = append(s.Tasks, taskID)
	s.TotalTasks++
	s.UpdatedAt = m.now()
	m.sprints[sprintID] = s
	return true, nil
}

func (m *Memory) FindSprints(ctx context.Context, f SprintFilter) ([]domain.Sprint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Sprint
	for _, id := range m.sprintOrd {
		s := m.sprints[id]
		if f.match(s) {
			out = append(out, cloneSprint(s))
		}
	}
	return out, nil
}

func (m *Memory) UpsertEpic(ctx context.Context, e domain.Epic) (domain.Epic, error) {
	if e.EpicID == "" {
		return domain.Epic{}, errors.New("memory: empty epic id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if prev, ok := m.epics[e.EpicID]; ok {
		e.CreatedAt = prev.CreatedAt
	} else {
		e.CreatedAt = now
		m.epicOrder = append(m.epicOrder, e.EpicID)
	}
	e.UpdatedAt = now
	m.epics[e.EpicID] = cloneEpic(e)
	return cloneEpic(e), nil
}

func (m *Memory) FindEpics(ctx context.Context, f EpicFilter) ([]domain.Epic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Epic
	for _, id := range m.epicOrder {
		e := m.epics[id]
		if f.match(e) {
			out = append(out, cloneEpic(e))
		}
	}
	return out, nil
}

// BulkUpdateDescriptions applies all updates under one lock. Unknown ids are skipped.
func (m *Memory) BulkUpdateDescriptions(ctx context.Context, updates []DescriptionUpdate) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range updates {
		t, ok := m.tasks[u.TaskID]
		if !ok {
			continue
		}
		t = cloneTask(t)
		t.Description = u.Description
		if u.AISummary != "" {
			t.AISummary = u.AISummary
		}
		ts := u.Meta.UpdatedAt
		t.LastDescriptionUpdate = &ts
		meta := u.Meta
		t.DescriptionMeta = &meta
		m.tasks[u.TaskID] = t
		n++
	}
	return n, nil
}

func (m *Memory) AppendDailyMetrics(ctx context.Context, h domain.SprintAnalysisHeader, dm domain.DailyMetrics, replaceSameDay bool) error {
	if h.SprintID == "" {
		return errors.New("memory: empty sprint id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	a, ok := m.analyses[h.SprintID]
	if !ok {
		a.CreatedAt = now
	}
	a.SprintAnalysisHeader = h
	list := append([]domain.DailyMetrics(nil), a.DailyMetrics...)
	replaced := false
	if replaceSameDay {
		for i := range list {
			if list[i].SameDay(dm, time.Local) {
				list[i] = dm
				replaced = true
				break
			}
		}
	}
	if !replaced {
		list = append(list, dm)
	}
	a.DailyMetrics = list
	a.UpdatedAt = now
	m.analyses[h.SprintID] = a
	return nil
}

func (m *Memory) FindSprintAnalyses(ctx context.Context, sprintIDs []string) ([]domain.SprintAnalysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.SprintAnalysis
	for _, id := range sprintIDs {
		if a, ok := m.analyses[id]; ok {
			a.DailyMetrics = append([]domain.DailyMetrics(nil), a.DailyMetrics...)
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Memory) ReplaceProjectDocuments(ctx context.Context, projectTag string, docs []domain.ProjectDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[projectTag] = append([]domain.ProjectDocument(nil), docs...)
	return nil
}

func (m *Memory) ProjectDocuments(ctx context.Context, projectTag string) ([]domain.ProjectDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.ProjectDocument(nil), m.docs[projectTag]...), nil
}

func (m *Memory) StartJobRun(ctx context.Context, runID, job string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, LastRun{RunID: runID, Job: job, StartedAt: m.now()})
	return int64(len(m.runs)), nil
}

func (m *Memory) FinishJobRun(ctx context.Context, id int64, success bool, errStr, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id <= 0 || int(id) > len(m.runs) {
		return fmt.Errorf("memory: job run %d not found", id)
	}
	now := m.now()
	r := &m.runs[id-1]
	r.FinishedAt = &now
	r.Success = success
	r.Error = errStr
	r.Summary = summary
	return nil
}

func (m *Memory) GetLastRun(ctx context.Context) (*LastRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.runs) == 0 {
		return nil, ErrNotFound
	}
	lr := m.runs[len(m.runs)-1]
	return &lr, nil
}

func (m *Memory) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] {
		return false, nil
	}
	m.locks[key] = true
	return true, nil
}

func (m *Memory) AdvisoryUnlock(ctx context.Context, key int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.locks[key] {
		return errors.New("advisory unlock returned false")
	}
	delete(m.locks, key)
	return nil
}
