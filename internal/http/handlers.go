/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/GojoViv/ai.service.suvi.main/internal/config"
	"github.com/GojoViv/ai.service.suvi.main/internal/jobs"
	"github.com/GojoViv/ai.service.suvi.main/internal/repo"
	"github.com/GojoViv/ai.service.suvi.main/internal/services"
)

type service interface {
	GetLastRun(ctx context.Context) (any, error)
	EpicBlockers(ctx context.Context, epicID string) (*services.EpicBlocking, error)
}

type scheduler interface {
	Trigger(job string) error
	Entries() []jobs.Entry
}

type Handlers struct {
	cfg   config.Config
	log   zerolog.Logger
	svc   service
	sched scheduler
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc service, sched scheduler) *Handlers {
	return &Handlers{cfg: cfg, log: log, svc: svc, sched: sched}
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) LastRun(c *gin.Context) {
	lr, err := h.svc.GetLastRun(c.Request.Context())
	if errors.Is(err, repo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no runs yet"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, lr)
}

// RunNow queues a job; it runs detached from the request.
func (h *Handlers) RunNow(c *gin.Context) {
	job := c.Param("job")
	switch err := h.sched.Trigger(job); {
	case errors.Is(err, jobs.ErrUnknownJob):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, jobs.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, jobs.ErrStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		h.log.Info().Str("job", job).Str("ip", c.ClientIP()).Msg("admin: job queued")
		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "job": job})
	}
}

func (h *Handlers) Schedule(c *gin.Context) {
	c.JSON(http.StatusOK, h.sched.Entries())
}

func (h *Handlers) EpicBlockers(c *gin.Context) {
	b, err := h.svc.EpicBlockers(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "epic not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, b)
}
