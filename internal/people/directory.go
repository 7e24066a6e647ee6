/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package people

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/GojoViv/ai.service.suvi.main/internal/cache"
	"github.com/GojoViv/ai.service.suvi.main/internal/domain"
)

// UserLookup resolves a board user id to a display name.
type UserLookup interface {
	UserName(ctx context.Context, userID string) (string, error)
}

// Directory resolves display names through a cache-aside lookup.
type Directory struct {
	users UserLookup
	cache *cache.Cache[string, string]
	log   zerolog.Logger
}

func NewDirectory(users UserLookup, ttl time.Duration, log zerolog.Logger) *Directory {
	return &Directory{
		users: users,
		cache: cache.New[string, string](ttl),
		log:   log.With().Str("component", "people").Logger(),
	}
}

// Name returns the display name for userID, or fallback when the lookup fails.
func (d *Directory) Name(ctx context.Context, userID, fallback string) string {
	if userID == "" {
		return fallback
	}
	name, err := d.cache.GetOrFetch(ctx, userID, d.users.UserName)
	if err != nil || name == "" {
		if err != nil {
			d.log.Warn().Err(err).Str("user_id", userID).Msg("people: lookup failed")
		}
		return fallback
	}
	return name
}

// Resolve fills missing assignee names in place.
func (d *Directory) Resolve(ctx context.Context, tasks []domain.Task) {
	for i := range tasks {
		a := tasks[i].Assignee
		if a == nil || a.Name != "" {
			continue
		}
		p := *a
		p.Name = d.Name(ctx, p.ID, "")
		tasks[i].Assignee = &p
	}
}

// Forget drops a cached name, e.g. after a rename.
func (d *Directory) Forget(userID string) { d.cache.Invalidate(userID) }
