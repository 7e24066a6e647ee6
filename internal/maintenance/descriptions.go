/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package maintenance

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/GojoViv/ai.service.suvi.main/internal/adapters/notion"
	"github.com/GojoViv/ai.service.suvi.main/internal/domain"
	"github.com/GojoViv/ai.service.suvi.main/internal/repo"
	"github.com/GojoViv/ai.service.suvi.main/internal/workerpool"
)

type Store interface {
	FindTasks(ctx context.Context, f repo.TaskFilter) ([]domain.Task, error)
	BulkUpdateDescriptions(ctx context.Context, updates []repo.DescriptionUpdate) (int, error)
}

// PageFetcher renders the body of a task page.
type PageFetcher interface {
	PageContent(ctx context.Context, pageID string) (string, error)
}

type Summarizer interface {
	Enabled() bool
	SummarizeTask(ctx context.Context, title, description string, people []string) (string, error)
}

// DescriptionJob refreshes task descriptions from their pages.
type DescriptionJob struct {
	store      Store
	pages      PageFetcher
	summarizer Summarizer
	workers    int
	projectTag string
	now        func() time.Time
	log        zerolog.Logger
}

type Option func(*DescriptionJob)

// WithWorkers sets the shard count; 0 means one per CPU.
func WithWorkers(n int) Option { return func(j *DescriptionJob) { j.workers = n } }

func WithSummarizer(s Summarizer) Option { return func(j *DescriptionJob) { j.summarizer = s } }

// WithProject restricts the job to one project.
func WithProject(tag string) Option { return func(j *DescriptionJob) { j.projectTag = tag } }

func WithClock(now func() time.Time) Option { return func(j *DescriptionJob) { j.now = now } }

func NewDescriptionJob(store Store, pages PageFetcher, log zerolog.Logger, opts ...Option) *DescriptionJob {
	j := &DescriptionJob{
		store: store,
		pages: pages,
		now:   time.Now,
		log:   log.With().Str("component", "descriptions").Logger(),
	}
	for _, o := range opts {
		o(j)
	}
	return j
}

// RefreshStaleDescriptions re-reads the page of every task whose description is empty or
// whose status is not Done, and writes the changed ones back in one bulk write. Failed
// shards are logged and skipped. It returns the number of updated tasks.
func (j *DescriptionJob) RefreshStaleDescriptions(ctx context.Context) (int, error) {
	tasks, err := j.store.FindTasks(ctx, repo.TaskFilter{ProjectTag: j.projectTag, StaleDescription: true})
	if err != nil {
		return 0, fmt.Errorf("descriptions: load candidates: %w", err)
	}
	if len(tasks) == 0 {
		j.log.Info().Msg("descriptions: nothing to refresh")
		return 0, nil
	}

	n := workerpool.Size(j.workers)
	shards := workerpool.Shard(tasks, n)
	j.log.Info().Int("candidates", len(tasks)).Int("shards", len(shards)).Msg("descriptions: refresh started")

	updates, failed := workerpool.Run(ctx, shards, j.refreshShard)
	for _, f := range failed {
		j.log.Error().Err(f).Int("shard", f.Shard).Msg("descriptions: shard failed")
	}
	if len(updates) == 0 {
		return 0, nil
	}

	written, err := j.store.BulkUpdateDescriptions(ctx, updates)
	if err != nil {
		return 0, &domain.StoreWriteError{Op: "bulk update descriptions", Err: err}
	}
	j.log.Info().Int("updated", written).Int("failed_shards", len(failed)).Msg("descriptions: refresh done")
	return written, nil
}

func (j *DescriptionJob) refreshShard(ctx context.Context, shard int, tasks []domain.Task) ([]repo.DescriptionUpdate, error) {
	var out []repo.DescriptionUpdate
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pageID := pageIDOf(t)
		content, err := j.pages.PageContent(ctx, pageID)
		if err != nil {
			j.log.Warn().Err(err).Int("shard", shard).Str("task_id", t.TaskID).Msg("descriptions: page fetch failed")
			continue
		}
		if content == t.Description {
			continue
		}
		u := repo.DescriptionUpdate{
			TaskID:      t.TaskID,
			Description: content,
			Meta: domain.DescriptionMeta{
				PageID:        pageID,
				ContentLength: utf8.RuneCountInString(content),
				UpdatedAt:     j.now(),
			},
		}
		u.AISummary = j.summarize(ctx, t, content)
		out = append(out, u)
	}
	return out, nil
}

func (j *DescriptionJob) summarize(ctx context.Context, t domain.Task, content string) string {
	if j.summarizer == nil || !j.summarizer.Enabled() || content == "" {
		return ""
	}
	var people []string
	if t.Assignee != nil {
		people = append(people, t.Assignee.Name)
	}
	s, err := j.summarizer.SummarizeTask(ctx, t.Name, content, people)
	if err != nil {
		j.log.Warn().Err(err).Str("task_id", t.TaskID).Msg("descriptions: summary failed")
		return ""
	}
	return s
}

func pageIDOf(t domain.Task) string {
	if id := notion.PageID(t.TaskID); id != "" {
		return id
	}
	if id := notion.PageID(t.URL); id != "" {
		return id
	}
	return t.TaskID
}
