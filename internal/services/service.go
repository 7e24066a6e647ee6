/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/GojoViv/ai.service.suvi.main/internal/analytics"
	"github.com/GojoViv/ai.service.suvi.main/internal/config"
	"github.com/GojoViv/ai.service.suvi.main/internal/domain"
	"github.com/GojoViv/ai.service.suvi.main/internal/maintenance"
	"github.com/GojoViv/ai.service.suvi.main/internal/people"
	"github.com/GojoViv/ai.service.suvi.main/internal/reconcile"
	"github.com/GojoViv/ai.service.suvi.main/internal/repo"
)

// Job names accepted by Run.
const (
	JobReconcile    = "reconcile"
	JobDaily        = "daily"
	JobAnalyze      = "analyze"
	JobEvening      = "evening"
	JobQA           = "qa"
	JobPRD          = "prd"
	JobDescriptions = "descriptions"
	JobWeekly       = "weekly"
	JobLeaderboard  = "leaderboard"
	JobFinance      = "finance"
)

var ErrUnknownJob = errors.New("unknown job")

// Source is the board service: record feed, page bodies and users.
type Source interface {
	AllEntries(ctx context.Context, boardID string) ([]domain.RawRecord, error)
	PageContent(ctx context.Context, pageID string) (string, error)
	UserName(ctx context.Context, userID string) (string, error)
}

type Notifier interface {
	PostMessage(ctx context.Context, channel, text string) (string, error)
	PostThreadedMessage(ctx context.Context, channel, title, body string) (string, error)
}

// Store is satisfied by repo.Repository and repo.Memory.
type Store interface {
	reconcile.Store
	analytics.Store
	maintenance.Store
	FindEpics(ctx context.Context, f repo.EpicFilter) ([]domain.Epic, error)
	ReplaceProjectDocuments(ctx context.Context, projectTag string, docs []domain.ProjectDocument) error
	StartJobRun(ctx context.Context, runID, job string) (int64, error)
	FinishJobRun(ctx context.Context, id int64, success bool, errStr, summary string) error
	GetLastRun(ctx context.Context) (*repo.LastRun, error)
}

type Service struct {
	cfg      config.Config
	log      zerolog.Logger
	store    Store
	source   Source
	notifier Notifier
	projects *config.ProjectRegistry

	reconciler   *reconcile.Reconciler
	engine       *analytics.Engine
	descriptions *maintenance.DescriptionJob

	now  func() time.Time
	jobs map[string]func(context.Context) (string, error)
}

type Option func(*options)

type options struct {
	summarizer maintenance.Summarizer
	now        func() time.Time
}

// WithSummarizer enables task summaries during the description refresh.
func WithSummarizer(s maintenance.Summarizer) Option { return func(o *options) { o.summarizer = s } }

func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

func New(cfg config.Config, log zerolog.Logger, store Store, source Source, notifier Notifier, projects *config.ProjectRegistry, opts ...Option) *Service {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	dir := people.NewDirectory(source, cfg.UserCacheTTL, log)

	descOpts := []maintenance.Option{maintenance.WithWorkers(cfg.DescriptionWorkers), maintenance.WithClock(o.now)}
	if o.summarizer != nil && cfg.SummarizeDescriptions {
		descOpts = append(descOpts, maintenance.WithSummarizer(o.summarizer))
	}
	rules := analytics.DefaultRules()
	if len(cfg.ReviewStatuses) > 0 {
		rules.ReviewStatuses = cfg.ReviewStatuses
	}
	rules.Loc = cfg.Location()

	s := &Service{
		cfg:      cfg,
		log:      log,
		store:    store,
		source:   source,
		notifier: notifier,
		projects: projects,
		reconciler: reconcile.New(source, store, log,
			reconcile.WithBatchSize(cfg.BatchSize), reconcile.WithClock(o.now)),
		engine: analytics.NewEngine(store, log,
			analytics.WithRules(rules),
			analytics.WithOnePerDay(cfg.MetricsOnePerDay),
			analytics.WithNameResolver(dir),
			analytics.WithClock(o.now)),
		descriptions: maintenance.NewDescriptionJob(store, source, log, descOpts...),
		now:          o.now,
	}
	s.jobs = map[string]func(context.Context) (string, error){
		JobReconcile:    s.reconcileJob,
		JobDaily:        s.dailyJob,
		JobAnalyze:      s.analyzeJob,
		JobEvening:      s.eveningJob,
		JobQA:           s.qaJob,
		JobPRD:          s.prdJob,
		JobDescriptions: s.descriptionsJob,
		JobWeekly:       s.weeklyJob,
		JobLeaderboard:  s.leaderboardJob,
		JobFinance:      s.financeJob,
	}
	return s
}

// Jobs lists the runnable job names.
func (s *Service) Jobs() []string {
	out := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Run executes a job by name and records it in the job run log.
func (s *Service) Run(ctx context.Context, job string) error {
	fn, ok := s.jobs[job]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJob, job)
	}
	runID := uuid.NewString()
	log := s.log.With().Str("job", job).Str("run_id", runID).Logger()
	ctx = log.WithContext(ctx)

	id, err := s.store.StartJobRun(ctx, runID, job)
	if err != nil {
		log.Error().Err(err).Msg("job: start run record failed")
	}
	start := s.now()
	log.Info().Msg("job: start")

	summary, runErr := fn(ctx)

	if id != 0 {
		errStr := ""
		if runErr != nil {
			errStr = runErr.Error()
		}
		if err := s.store.FinishJobRun(context.WithoutCancel(ctx), id, runErr == nil, errStr, summary); err != nil {
			log.Error().Err(err).Msg("job: finish run record failed")
		}
	}
	ev := log.Info()
	if runErr != nil {
		ev = log.Error().Err(runErr)
	}
	ev.Str("summary", summary).Dur("took", s.now().Sub(start)).Msg("job: done")
	return runErr
}

func (s *Service) GetLastRun(ctx context.Context) (any, error) {
	return s.store.GetLastRun(ctx)
}

// channel returns the project's report channel, or the default one.
func (s *Service) channel(p config.Project) string {
	if strings.TrimSpace(p.Channel) != "" {
		return p.Channel
	}
	return s.cfg.DefaultChannel
}

// notify posts text and logs delivery failures; they are never returned.
func (s *Service) notify(ctx context.Context, channel, text string) {
	if _, err := s.notifier.PostMessage(ctx, channel, text); err != nil {
		s.log.Error().Err(&domain.NotifierError{Channel: channel, Err: err}).Msg("notify: post failed")
	}
}

func (s *Service) notifyThread(ctx context.Context, channel, title, body string) bool {
	if _, err := s.notifier.PostThreadedMessage(ctx, channel, title, body); err != nil {
		s.log.Error().Err(&domain.NotifierError{Channel: channel, Err: err}).Msg("notify: thread failed")
		return false
	}
	return true
}

func joinSummary(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "; ")
}

func (s *Service) dailyJob(ctx context.Context) (string, error) {
	rs, rerr := s.reconcileJob(ctx)
	as, aerr := s.analyzeJob(ctx)
	return joinSummary(rs, as), errors.Join(rerr, aerr)
}

func (s *Service) eveningJob(ctx context.Context) (string, error) {
	qs, qerr := s.qaJob(ctx)
	ps, perr := s.prdJob(ctx)
	ds, derr := s.descriptionsJob(ctx)
	return joinSummary(qs, ps, ds), errors.Join(qerr, perr, derr)
}

func (s *Service) weeklyJob(ctx context.Context) (string, error) {
	ls, lerr := s.leaderboardJob(ctx)
	fs, ferr := s.financeJob(ctx)
	return joinSummary(ls, fs), errors.Join(lerr, ferr)
}
