/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jobs

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/GojoViv/ai.service.suvi.main/internal/config"
)

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrBusy       = errors.New("job already running")
	ErrStopped    = errors.New("scheduler stopped")
)

// Runner executes a named job.
type Runner interface {
	Run(ctx context.Context, job string) error
	Jobs() []string
}

// Locker is the cross-process lock; nil disables it.
type Locker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (bool, error)
	AdvisoryUnlock(ctx context.Context, key int64) error
}

// Entry is one scheduled job.
type Entry struct {
	Job  string    `json:"job"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next"`
}

type Scheduler struct {
	log     zerolog.Logger
	runner  Runner
	locker  Locker
	timeout time.Duration
	c       *cron.Cron

	mu      sync.Mutex
	stopped bool
	running map[string]bool
	entries map[string]cron.EntryID
	specs   map[string]string
	wg      sync.WaitGroup
}

// Schedule maps the cron jobs to their expressions.
func Schedule(cfg config.Config) map[string]string {
	return map[string]string{
		"reconcile": cfg.CronReconcile,
		"daily":     cfg.CronDaily,
		"evening":   cfg.CronEvening,
		"weekly":    cfg.CronWeekly,
	}
}

func New(cfg config.Config, log zerolog.Logger, runner Runner, locker Locker) (*Scheduler, error) {
	c := cron.New(cron.WithLocation(cfg.Location()), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
	s := &Scheduler{
		log:     log.With().Str("component", "scheduler").Logger(),
		runner:  runner,
		locker:  locker,
		timeout: cfg.JobTimeout,
		c:       c,
		running: map[string]bool{},
		entries: map[string]cron.EntryID{},
		specs:   map[string]string{},
	}
	for job, spec := range Schedule(cfg) {
		if spec == "" {
			s.log.Info().Str("job", job).Msg("scheduler: disabled")
			continue
		}
		id, err := c.AddFunc(spec, func() { s.exec(job) })
		if err != nil {
			return nil, fmt.Errorf("scheduler: job %s spec %q: %w", job, spec, err)
		}
		s.entries[job] = id
		s.specs[job] = spec
	}
	return s, nil
}

func (s *Scheduler) Start() { s.c.Start() }

// Stop halts the cron and waits for running jobs, including triggered ones.
// Triggers after Stop fail with ErrStopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	<-s.c.Stop().Done()
	s.wg.Wait()
}

func (s *Scheduler) Entries() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for job, id := range s.entries {
		out = append(out, Entry{Job: job, Spec: s.specs[job], Next: s.c.Entry(id).Next})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Job < out[j].Job })
	return out
}

func (s *Scheduler) known(job string) bool {
	for _, j := range s.runner.Jobs() {
		if j == job {
			return true
		}
	}
	return false
}

// Trigger starts a job in the background, detached from the caller's context.
func (s *Scheduler) Trigger(job string) error {
	if !s.known(job) {
		return fmt.Errorf("%w: %q", ErrUnknownJob, job)
	}
	if err := s.claim(job); err != nil {
		return err
	}
	go func() {
		defer s.wg.Done()
		defer s.release(job)
		s.run(job)
	}()
	return nil
}

// claim marks job running and counts it in wg. It fails once Stop has begun.
func (s *Scheduler) claim(job string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if s.running[job] {
		return ErrBusy
	}
	s.running[job] = true
	s.wg.Add(1)
	return nil
}

func (s *Scheduler) release(job string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, job)
}

// exec is the cron callback; an overlapping tick is skipped.
func (s *Scheduler) exec(job string) {
	if err := s.claim(job); err != nil {
		if errors.Is(err, ErrBusy) {
			s.log.Warn().Str("job", job).Msg("scheduler: previous run still active, skipped")
		}
		return
	}
	defer s.wg.Done()
	defer s.release(job)
	s.run(job)
}

func lockKey(job string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("sprint-pulse:" + job))
	return int64(h.Sum64() &^ (1 << 63))
}

func (s *Scheduler) run(job string) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	log := s.log.With().Str("job", job).Logger()

	if s.locker != nil {
		key := lockKey(job)
		ok, err := s.locker.TryAdvisoryLock(ctx, key)
		if err != nil {
			log.Error().Err(err).Msg("scheduler: lock error")
			return
		}
		if !ok {
			log.Info().Msg("scheduler: already running elsewhere")
			return
		}
		defer func() {
			if err := s.locker.AdvisoryUnlock(context.Background(), key); err != nil {
				log.Error().Err(err).Msg("scheduler: unlock failed")
			}
		}()
	}

	defer func() {
		if v := recover(); v != nil {
			log.Error().Interface("panic", v).Msg("scheduler: job panicked")
		}
	}()
	if err := s.runner.Run(ctx, job); err != nil {
		log.Error().Err(err).Msg("scheduler: job failed")
	}
}
