/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/GojoViv/ai.service.suvi.main/internal/domain"
	"github.com/GojoViv/ai.service.suvi.main/internal/repo"
)

var (
	ErrNoCurrentSprints = errors.New("no current sprints found")
	ErrNoAnalyses       = errors.New("no sprint analysis data found for current sprints")
)

type Store interface {
	FindTasks(ctx context.Context, f repo.TaskFilter) ([]domain.Task, error)
	FindSprints(ctx context.Context, f repo.SprintFilter) ([]domain.Sprint, error)
	AppendDailyMetrics(ctx context.Context, h domain.SprintAnalysisHeader, dm domain.DailyMetrics, replaceSameDay bool) error
	FindSprintAnalyses(ctx context.Context, sprintIDs []string) ([]domain.SprintAnalysis, error)
}

// NameResolver fills in assignee names the board left empty.
type NameResolver interface {
	Resolve(ctx context.Context, tasks []domain.Task)
}

// Outcome is the result of one analytics run for a project.
type Outcome struct {
	Header  domain.SprintAnalysisHeader
	Metrics domain.DailyMetrics
	Tasks   []domain.Task
}

type Engine struct {
	store     Store
	rules     Rules
	onePerDay bool
	names     NameResolver
	now       func() time.Time
	log       zerolog.Logger
}

type Option func(*Engine)

func WithRules(r Rules) Option { return func(e *Engine) { e.rules = r } }

// WithOnePerDay updates an entry of the same calendar date instead of appending.
func WithOnePerDay(on bool) Option { return func(e *Engine) { e.onePerDay = on } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithNameResolver(r NameResolver) Option { return func(e *Engine) { e.names = r } }

func NewEngine(store Store, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		rules: DefaultRules(),
		now:   time.Now,
		log:   log.With().Str("component", "analytics").Logger(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) findTasks(ctx context.Context, f repo.TaskFilter) ([]domain.Task, error) {
	tasks, err := e.store.FindTasks(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("analytics: load tasks: %w", err)
	}
	if e.names != nil {
		e.names.Resolve(ctx, tasks)
	}
	return tasks, nil
}

// CurrentSprint returns the project's sprint marked current, or domain.ErrNoCurrentSprint.
func (e *Engine) CurrentSprint(ctx context.Context, projectTag string) (domain.Sprint, error) {
	sprints, err := e.store.FindSprints(ctx, repo.SprintFilter{ProjectTag: projectTag, CurrentOnly: true})
	if err != nil {
		return domain.Sprint{}, fmt.Errorf("analytics: load sprints: %w", err)
	}
	if len(sprints) == 0 {
		return domain.Sprint{}, domain.ErrNoCurrentSprint
	}
	return sprints[0], nil
}

// ComputeDailyMetrics computes and persists today's snapshot for the project's current
// sprint. It returns nil, nil when the project has no current sprint.
func (e *Engine) ComputeDailyMetrics(ctx context.Context, projectTag string) (*Outcome, error) {
	log := e.log.With().Str("project", projectTag).Logger()
	sprint, err := e.CurrentSprint(ctx, projectTag)
	if errors.Is(err, domain.ErrNoCurrentSprint) {
		log.Info().Msg("analytics: no current sprint, skipped")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	tasks, err := e.findTasks(ctx, repo.TaskFilter{ProjectTag: projectTag, SprintID: sprint.SprintID})
	if err != nil {
		return nil, err
	}

	m := e.rules.Compute(tasks, sprint, e.now())
	h := domain.SprintAnalysisHeader{
		SprintID:   sprint.SprintID,
		ProjectID:  projectTag,
		ProjectTag: projectTag,
		SprintName: sprint.Name,
		StartDate:  sprint.StartDate,
		EndDate:    sprint.EndDate,
	}
	if err := e.store.AppendDailyMetrics(ctx, h, m, e.onePerDay); err != nil {
		return nil, &domain.StoreWriteError{Op: "append daily metrics", ID: sprint.SprintID, Err: err}
	}
	log.Info().
		Str("sprint", sprint.Name).
		Int("tasks", m.TotalTasks).
		Float64("rate", m.EstimatedCompletionRate).
		Str("health", string(m.SprintHealth)).
		Msg("analytics: daily metrics stored")
	return &Outcome{Header: h, Metrics: m, Tasks: tasks}, nil
}

// QA loads the QA-bound tasks of a project, across all sprints.
func (e *Engine) QA(ctx context.Context, projectTag string) (QAReport, error) {
	tasks, err := e.findTasks(ctx, repo.TaskFilter{
		ProjectTag: projectTag,
		Statuses:   []string{domain.StatusQAReview, domain.StatusQARejected},
	})
	if err != nil {
		return QAReport{}, err
	}
	return QAStatus(tasks), nil
}

// LatestMetrics returns the most recent entry of every current sprint's snapshot.
// Stored histories are not modified.
func (e *Engine) LatestMetrics(ctx context.Context) ([]domain.DailyMetrics, error) {
	sprints, err := e.store.FindSprints(ctx, repo.SprintFilter{CurrentOnly: true})
	if err != nil {
		return nil, fmt.Errorf("analytics: load sprints: %w", err)
	}
	if len(sprints) == 0 {
		return nil, ErrNoCurrentSprints
	}
	ids := make([]string, 0, len(sprints))
	for _, s := range sprints {
		ids = append(ids, s.SprintID)
	}
	analyses, err := e.store.FindSprintAnalyses(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("analytics: load analyses: %w", err)
	}
	if len(analyses) == 0 {
		return nil, ErrNoAnalyses
	}
	return LatestEntries(analyses), nil
}

// CurrentBugs returns the bug tasks of each project's current sprint.
func (e *Engine) CurrentBugs(ctx context.Context, projectTags []string) ([][]domain.Task, error) {
	var out [][]domain.Task
	for _, tag := range projectTags {
		sprint, err := e.CurrentSprint(ctx, tag)
		if errors.Is(err, domain.ErrNoCurrentSprint) {
			e.log.Info().Str("project", tag).Msg("analytics: no current sprint for bug ranking")
			continue
		}
		if err != nil {
			return nil, err
		}
		tasks, err := e.findTasks(ctx, repo.TaskFilter{ProjectTag: tag, SprintID: sprint.SprintID})
		if err != nil {
			return nil, err
		}
		var bugs []domain.Task
		for _, t := range tasks {
			if t.IsBug() {
				bugs = append(bugs, t)
			}
		}
		out = append(out, bugs)
	}
	return out, nil
}

// ProjectTasks returns every task of a project regardless of sprint or status.
func (e *Engine) ProjectTasks(ctx context.Context, projectTag string) ([]domain.Task, error) {
	return e.findTasks(ctx, repo.TaskFilter{ProjectTag: projectTag})
}
