/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/GojoViv/ai.service.suvi.main/internal/config"
	"github.com/GojoViv/ai.service.suvi.main/internal/domain"
)

const DefaultBatchSize = 10

// Source returns the complete record set of a board.
type Source interface {
	AllEntries(ctx context.Context, boardID string) ([]domain.RawRecord, error)
}

type Store interface {
	UpsertTask(ctx context.Context, t domain.Task, entry domain.ChangeLogEntry) (domain.Task, error)
	UpsertSprint(ctx context.Context, s domain.Sprint) (domain.Sprint, error)
	UpsertEpic(ctx context.Context, e domain.Epic) (domain.Epic, error)
	AttachTaskToSprint(ctx context.Context, sprintID, taskID string) (bool, error)
}

type Counts struct {
	Fetched  int `json:"fetched"`
	Upserted int `json:"upserted"`
	Failed   int `json:"failed"`
}

type Result struct {
	ProjectTag string    `json:"projectTag"`
	RunKey     string    `json:"runKey"`
	Tasks      Counts    `json:"tasks"`
	Sprints    Counts    `json:"sprints"`
	Epics      Counts    `json:"epics"`
	Attached   int       `json:"attached"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
}

func (r Result) Failed() int { return r.Tasks.Failed + r.Sprints.Failed + r.Epics.Failed }

type Reconciler struct {
	src       Source
	store     Store
	log       zerolog.Logger
	batchSize int
	now       func() time.Time
}

type Option func(*Reconciler)

func WithBatchSize(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithClock sets the run clock the change-log key is derived from.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func New(src Source, store Store, log zerolog.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		src:       src,
		store:     store,
		log:       log.With().Str("component", "reconcile").Logger(),
		batchSize: DefaultBatchSize,
		now:       time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

type boardSet struct {
	tasks, sprints, epics []domain.RawRecord
}

func (r *Reconciler) fetch(ctx context.Context, p config.Project) (boardSet, error) {
	var bs boardSet
	g, gctx := errgroup.WithContext(ctx)
	get := func(board, id string, dst *[]domain.RawRecord) {
		if id == "" {
			return
		}
		g.Go(func() error {
			recs, err := r.src.AllEntries(gctx, id)
			if err != nil {
				var sfe *domain.SourceFetchError
				if errors.As(err, &sfe) {
					return err
				}
				return &domain.SourceFetchError{Board: board, Err: err}
			}
			*dst = recs
			return nil
		})
	}
	get("tasks", p.Boards.Tasks, &bs.tasks)
	get("sprints", p.Boards.Sprints, &bs.sprints)
	get("epics", p.Boards.Epics, &bs.epics)
	return bs, g.Wait()
}

// ReconcileProject mirrors the three boards of a project into the store. Only a board
// fetch failure is returned; per-record failures are logged and counted.
func (r *Reconciler) ReconcileProject(ctx context.Context, p config.Project) (Result, error) {
	runAt := r.now()
	res := Result{ProjectTag: p.Tag, RunKey: domain.RunKey(runAt), StartTime: runAt}
	log := r.log.With().Str("project", p.Tag).Str("run_key", res.RunKey).Logger()

	bs, err := r.fetch(ctx, p)
	if err != nil {
		log.Error().Err(err).Msg("reconcile: fetch failed, project aborted")
		res.EndTime = r.now()
		return res, err
	}
	var (
		mu      sync.Mutex
		sprints = map[string]domain.Sprint{}
		refs    = map[string]string{} // task id -> sprint id
	)

	var g errgroup.Group
	g.Go(func() error {
		res.Sprints = r.runBatches(ctx, log, "sprint", bs.sprints, func(ctx context.Context, rec domain.RawRecord) error {
			s, err := MapSprint(rec, p.Tag)
			if err != nil {
				return err
			}
			stored, err := r.store.UpsertSprint(ctx, s)
			if err != nil {
				return &domain.StoreWriteError{Op: "upsert sprint", ID: s.SprintID, Err: err}
			}
			mu.Lock()
			sprints[stored.SprintID] = stored
			mu.Unlock()
			return nil
		})
		return nil
	})
	g.Go(func() error {
		res.Epics = r.runBatches(ctx, log, "epic", bs.epics, func(ctx context.Context, rec domain.RawRecord) error {
			e, err := MapEpic(rec, p.Tag)
			if err != nil {
				return err
			}
			if _, err := r.store.UpsertEpic(ctx, e); err != nil {
				return &domain.StoreWriteError{Op: "upsert epic", ID: e.EpicID, Err: err}
			}
			return nil
		})
		return nil
	})
	g.Go(func() error {
		res.Tasks = r.runBatches(ctx, log, "task", bs.tasks, func(ctx context.Context, rec domain.RawRecord) error {
			t, err := MapTask(rec, p.Tag)
			if err != nil {
				return err
			}
			entry := domain.ChangeLogEntry{Key: res.RunKey, At: runAt, Fields: t.Snapshot()}
			if _, err := r.store.UpsertTask(ctx, t, entry); err != nil {
				return &domain.StoreWriteError{Op: "upsert task", ID: t.TaskID, Err: err}
			}
			if t.SprintRef != "" {
				mu.Lock()
				refs[t.TaskID] = t.SprintRef
				mu.Unlock()
			}
			return nil
		})
		return nil
	})
	_ = g.Wait()

	res.Attached = r.attach(ctx, log, sprints, refs)
	res.EndTime = r.now()

	log.Info().
		Int("tasks", res.Tasks.Upserted).
		Int("sprints", res.Sprints.Upserted).
		Int("epics", res.Epics.Upserted).
		Int("failed", res.Failed()).
		Int("attached", res.Attached).
		Dur("took", res.EndTime.Sub(res.StartTime)).
		Msg("reconcile: project done")
	return res, nil
}

// runBatches processes records in sequential batches; records of a batch run concurrently
// and every record runs regardless of its siblings' failures.
func (r *Reconciler) runBatches(ctx context.Context, log zerolog.Logger, kind string, recs []domain.RawRecord, fn func(context.Context, domain.RawRecord) error) Counts {
	c := Counts{Fetched: len(recs)}
	for start := 0; start < len(recs); start += r.batchSize {
		if err := ctx.Err(); err != nil {
			c.Failed += len(recs) - start
			log.Warn().Err(err).Str("kind", kind).Int("skipped", len(recs)-start).Msg("reconcile: stopped before batch")
			break
		}
		end := start + r.batchSize
		if end > len(recs) {
			end = len(recs)
		}
		batch := recs[start:end]
		errs := make([]error, len(batch))

		var g errgroup.Group
		for i, rec := range batch {
			g.Go(func() error {
				errs[i] = safeCall(ctx, rec, fn)
				return nil
			})
		}
		_ = g.Wait()

		for i, err := range errs {
			if err == nil {
				c.Upserted++
				continue
			}
			c.Failed++
			log.Error().Err(err).Str("kind", kind).Str("record_id", batch[i].ID).Int("batch", start/r.batchSize).Msg("reconcile: record failed")
		}
	}
	return c
}

func safeCall(ctx context.Context, rec domain.RawRecord, fn func(context.Context, domain.RawRecord) error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("panic: %v", v)
		}
	}()
	return fn(ctx, rec)
}

// attach adds tasks to sprints of this run that do not list them yet.
func (r *Reconciler) attach(ctx context.Context, log zerolog.Logger, sprints map[string]domain.Sprint, refs map[string]string) int {
	n := 0
	for taskID, sprintID := range refs {
		s, ok := sprints[sprintID]
		if !ok || s.HasTask(taskID) {
			continue
		}
		added, err := r.store.AttachTaskToSprint(ctx, sprintID, taskID)
		if err != nil {
			log.Error().Err(&domain.StoreWriteError{Op: "attach task", ID: taskID, Err: err}).Str("sprint_id", sprintID).Msg("reconcile: attach failed")
			continue
		}
		if added {
			n++
		}
	}
	return n
}
