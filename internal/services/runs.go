/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/GojoViv/ai.service.suvi.main/internal/analytics"
	"github.com/GojoViv/ai.service.suvi.main/internal/config"
	"github.com/GojoViv/ai.service.suvi.main/internal/reconcile"
	"github.com/GojoViv/ai.service.suvi.main/internal/report"
)

// ProjectRun is the outcome of one project's reconciliation.
type ProjectRun struct {
	Result reconcile.Result
	Err    error
}

// RunReconcile reconciles every active project concurrently. A failed project does not
// stop the others; the failures are returned joined after all projects finished.
func (s *Service) RunReconcile(ctx context.Context) ([]ProjectRun, error) {
	projects := s.projects.Active()
	runs := make([]ProjectRun, len(projects))

	var g errgroup.Group
	for i, p := range projects {
		g.Go(func() error {
			res, err := s.reconciler.ReconcileProject(ctx, p)
			runs[i] = ProjectRun{Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for i, r := range runs {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("project %s: %w", projects[i].Tag, r.Err))
		}
	}
	return runs, errors.Join(errs...)
}

func (s *Service) reconcileJob(ctx context.Context) (string, error) {
	runs, err := s.RunReconcile(ctx)
	tasks, failed, aborted := 0, 0, 0
	for _, r := range runs {
		if r.Err != nil {
			aborted++
			continue
		}
		tasks += r.Result.Tasks.Upserted
		failed += r.Result.Failed()
	}
	return fmt.Sprintf("reconcile: %d projects, %d tasks, %d record failures, %d aborted", len(runs), tasks, failed, aborted), err
}

// RunDailyAnalysis computes each active project's sprint snapshot and posts the sprint
// thread. The snapshot is stored before delivery and stays stored if delivery fails.
func (s *Service) RunDailyAnalysis(ctx context.Context) ([]*analytics.Outcome, error) {
	var (
		outs []*analytics.Outcome
		errs []error
	)
	for _, p := range s.projects.Active() {
		out, err := s.engine.ComputeDailyMetrics(ctx, p.Tag)
		if err != nil {
			s.log.Error().Err(err).Str("project", p.Tag).Msg("analytics: project failed")
			errs = append(errs, fmt.Errorf("project %s: %w", p.Tag, err))
			continue
		}
		if out == nil {
			continue
		}
		outs = append(outs, out)
		title := report.SprintTitle(out.Header.SprintName, out.Metrics, s.now())
		s.notifyThread(ctx, s.channel(p), title, report.ProgressReport(out.Metrics))
	}
	return outs, errors.Join(errs...)
}

func (s *Service) analyzeJob(ctx context.Context) (string, error) {
	outs, err := s.RunDailyAnalysis(ctx)
	return fmt.Sprintf("analytics: %d snapshots", len(outs)), err
}

// RunQA posts the QA status thread for every active project with QA-bound tasks.
func (s *Service) RunQA(ctx context.Context) (int, error) {
	posted := 0
	var errs []error
	for _, p := range s.projects.Active() {
		q, err := s.engine.QA(ctx, p.Tag)
		if err != nil {
			s.log.Error().Err(err).Str("project", p.Tag).Msg("qa: project failed")
			errs = append(errs, err)
			continue
		}
		if q.Empty() {
			s.log.Info().Str("project", p.Tag).Msg("qa: no qa tasks")
			continue
		}
		if s.notifyThread(ctx, s.channel(p), report.QATitle(p.DisplayName(), q, s.now()), report.QABody(q)) {
			posted++
		}
	}
	return posted, errors.Join(errs...)
}

func (s *Service) qaJob(ctx context.Context) (string, error) {
	n, err := s.RunQA(ctx)
	return fmt.Sprintf("qa: %d reports", n), err
}

// RunLeaderboards posts the cross-project leaderboards. Aggregation failures are logged
// and reported to the error channel; they are not returned.
func (s *Service) RunLeaderboards(ctx context.Context) {
	latest, err := s.engine.LatestMetrics(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("leaderboard: no data")
		s.notify(ctx, s.cfg.ErrorChannel, report.ErrorMessage("Leaderboard", err))
	} else {
		s.notify(ctx, s.cfg.LeaderboardChannel, report.PointsByAssignee(analytics.PointsByAssigneeStatus(latest)))
		s.notify(ctx, s.cfg.LeaderboardChannel, report.TopPerformers(analytics.TopPerformers(latest, 3)))
	}

	bugs, err := s.engine.CurrentBugs(ctx, tags(s.projects.Active()))
	if err != nil {
		s.log.Error().Err(err).Msg("leaderboard: bug ranking failed")
		s.notify(ctx, s.cfg.ErrorChannel, report.ErrorMessage("Bug Ranking", err))
		return
	}
	s.notify(ctx, s.cfg.LeaderboardChannel, report.BugCreators(analytics.BugCreators(bugs)))
}

func (s *Service) leaderboardJob(ctx context.Context) (string, error) {
	s.RunLeaderboards(ctx)
	return "leaderboards posted", nil
}

// RunFinancial posts story point hours per project over every configured project.
func (s *Service) RunFinancial(ctx context.Context) {
	var sections []analytics.ProjectHours
	for _, p := range s.projects.All() {
		tasks, err := s.engine.ProjectTasks(ctx, p.Tag)
		if err != nil {
			s.log.Error().Err(err).Str("project", p.Tag).Msg("finance: load failed")
			s.notify(ctx, s.cfg.ErrorChannel, report.ErrorMessage("Financial Analysis", err))
			return
		}
		ph := analytics.FinancialHours(p.Tag, tasks)
		s.log.Info().Str("project", p.Tag).Int("tasks", len(tasks)).Float64("hours", ph.Total).Msg("finance: project done")
		sections = append(sections, ph)
	}
	s.notify(ctx, s.cfg.FinanceChannel, report.Financial(sections, s.now()))
}

func (s *Service) financeJob(ctx context.Context) (string, error) {
	s.RunFinancial(ctx)
	return "financial report posted", nil
}

func tags(ps []config.Project) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Tag)
	}
	return out
}
