/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/GojoViv/ai.service.suvi.main/internal/domain"
	"github.com/GojoViv/ai.service.suvi.main/internal/epicgraph"
	"github.com/GojoViv/ai.service.suvi.main/internal/reconcile"
	"github.com/GojoViv/ai.service.suvi.main/internal/repo"
)

// RunDescriptions refreshes stale task descriptions across all projects.
func (s *Service) RunDescriptions(ctx context.Context) (int, error) {
	return s.descriptions.RefreshStaleDescriptions(ctx)
}

func (s *Service) descriptionsJob(ctx context.Context) (string, error) {
	n, err := s.RunDescriptions(ctx)
	return fmt.Sprintf("descriptions: %d updated", n), err
}

// RunPRD stores the pages of each project's PRD board as project documents. A page that
// cannot be read is skipped; a board that cannot be listed leaves the stored set as is.
func (s *Service) RunPRD(ctx context.Context) (int, error) {
	total := 0
	var errs []error
	for _, p := range s.projects.Active() {
		if p.Boards.PRD == "" {
			continue
		}
		log := s.log.With().Str("project", p.Tag).Logger()
		recs, err := s.source.AllEntries(ctx, p.Boards.PRD)
		if err != nil {
			log.Error().Err(err).Msg("prd: fetch failed")
			errs = append(errs, err)
			continue
		}
		docs := make([]domain.ProjectDocument, 0, len(recs))
		for _, rec := range recs {
			content, err := s.source.PageContent(ctx, rec.ID)
			if err != nil {
				log.Warn().Err(err).Str("page_id", rec.ID).Msg("prd: page skipped")
				continue
			}
			docs = append(docs, domain.ProjectDocument{
				DocumentID: rec.ID,
				ProjectTag: p.Tag,
				Title:      reconcile.RecordTitle(rec),
				Content:    content,
				URL:        rec.URL,
				UpdatedAt:  s.now(),
			})
		}
		if err := s.store.ReplaceProjectDocuments(ctx, p.Tag, docs); err != nil {
			errs = append(errs, &domain.StoreWriteError{Op: "replace project documents", ID: p.Tag, Err: err})
			continue
		}
		log.Info().Int("documents", len(docs)).Msg("prd: refreshed")
		total += len(docs)
	}
	return total, errors.Join(errs...)
}

func (s *Service) prdJob(ctx context.Context) (string, error) {
	n, err := s.RunPRD(ctx)
	return fmt.Sprintf("prd: %d documents", n), err
}

// EpicRef names an epic in blocking answers.
type EpicRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type EpicBlocking struct {
	Epic       EpicRef     `json:"epic"`
	Blockers   []EpicRef   `json:"blockers"`
	Dependents []EpicRef   `json:"dependents"`
	Cycles     [][]EpicRef `json:"cycles"`
}

// EpicBlockers answers what blocks an epic and what it blocks, within its project.
func (s *Service) EpicBlockers(ctx context.Context, epicID string) (*EpicBlocking, error) {
	found, err := s.store.FindEpics(ctx, repo.EpicFilter{IDs: []string{epicID}})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, repo.ErrNotFound
	}
	epics, err := s.store.FindEpics(ctx, repo.EpicFilter{ProjectTag: found[0].ProjectTag})
	if err != nil {
		return nil, err
	}
	g := epicgraph.New(epics)
	ref := func(id string) EpicRef {
		e, _ := g.Epic(id)
		return EpicRef{ID: id, Name: e.Name}
	}
	refs := func(ids []string) []EpicRef {
		out := make([]EpicRef, 0, len(ids))
		for _, id := range ids {
			out = append(out, ref(id))
		}
		return out
	}
	res := &EpicBlocking{
		Epic:       ref(epicID),
		Blockers:   refs(g.Blockers(epicID)),
		Dependents: refs(g.Dependents(epicID)),
		Cycles:     [][]EpicRef{},
	}
	for _, c := range g.Cycles() {
		if i := sort.SearchStrings(c, epicID); i < len(c) && c[i] == epicID {
			res.Cycles = append(res.Cycles, refs(c))
		}
	}
	return res, nil
}
