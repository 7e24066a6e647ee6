/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/GojoViv/ai.service.suvi.main/internal/config"
)

func NewRouter(cfg config.Config, log zerolog.Logger, svc service, sched scheduler) *gin.Engine {
	if cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		c.Next()
		log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
	})

	h := NewHandlers(cfg, log, svc, sched)

	r.GET("/healthz", h.Healthz)
	admin := r.Group("/admin")
	admin.GET("/last-run", h.LastRun)
	admin.GET("/schedule", h.Schedule)
	admin.POST("/run/:job", h.RunNow)
	admin.GET("/epics/:id/blockers", h.EpicBlockers)

	return r
}
