/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/GojoViv/ai.service.suvi.main/internal/adapters/notion"
	"github.com/GojoViv/ai.service.suvi.main/internal/adapters/openai"
	"github.com/GojoViv/ai.service.suvi.main/internal/adapters/slack"
	"github.com/GojoViv/ai.service.suvi.main/internal/adapters/telegram"
	"github.com/GojoViv/ai.service.suvi.main/internal/config"
	apihttp "github.com/GojoViv/ai.service.suvi.main/internal/http"
	"github.com/GojoViv/ai.service.suvi.main/internal/jobs"
	"github.com/GojoViv/ai.service.suvi.main/internal/logger"
	"github.com/GojoViv/ai.service.suvi.main/internal/repo"
	"github.com/GojoViv/ai.service.suvi.main/internal/services"
)

type rootFlags struct {
	store    string
	projects string
}

// app holds the wired service and whatever must be closed after it.
type app struct {
	cfg    config.Config
	log    zerolog.Logger
	svc    *services.Service
	reg    *config.ProjectRegistry
	locker jobs.Locker
	close  func()
}

func loadConfig(f *rootFlags) config.Config {
	cfg := config.Load()
	if f.store != "" {
		cfg.Store = f.store
	}
	if f.projects != "" {
		cfg.ProjectsFile = f.projects
	}
	return cfg
}

func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (services.Store, jobs.Locker, func(), error) {
	switch cfg.Store {
	case "memory":
		log.Warn().Msg("using in-memory store; nothing is persisted")
		return repo.NewMemory(), nil, func() {}, nil
	case "postgres", "":
		db := repo.MustOpen(ctx, cfg, log)
		r := repo.NewRepository(db, log)
		if err := r.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return r, r, db.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func newNotifier(cfg config.Config, log zerolog.Logger) (services.Notifier, error) {
	switch cfg.Notifier {
	case "slack", "":
		return slack.NewClient(cfg, log), nil
	case "telegram":
		return telegram.NewClient(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown notifier %q", cfg.Notifier)
	}
}

func newApp(ctx context.Context, f *rootFlags) (*app, error) {
	cfg := loadConfig(f)
	log := logger.New(cfg)

	reg, err := config.NewProjectRegistry(cfg.ProjectsFile, logger.Component(log, "projects"))
	if err != nil {
		return nil, fmt.Errorf("projects: %w", err)
	}
	notifier, err := newNotifier(cfg, log)
	if err != nil {
		return nil, err
	}
	store, locker, closeFn, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	svc := services.New(cfg, log, store, notion.NewClient(cfg, log), notifier, reg,
		services.WithSummarizer(openai.NewClient(cfg, log)))
	return &app{cfg: cfg, log: log, svc: svc, reg: reg, locker: locker, close: closeFn}, nil
}

func jobCmd(f *rootFlags, use, short, job string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			a, err := newApp(ctx, f)
			if err != nil {
				return err
			}
			defer a.close()
			if a.cfg.JobTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, a.cfg.JobTimeout)
				defer cancel()
			}
			return a.svc.Run(ctx, job)
		},
	}
}

func migrateCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(f)
			log := logger.New(cfg)
			db := repo.MustOpen(cmd.Context(), cfg, log)
			defer db.Close()
			if err := repo.NewRepository(db, log).Migrate(cmd.Context()); err != nil {
				return err
			}
			log.Info().Msg("migrations applied")
			return nil
		},
	}
}

func serveCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler and the admin HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			a, err := newApp(ctx, f)
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	sched, err := jobs.New(a.cfg, a.log, a.svc, a.locker)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()
	for _, e := range sched.Entries() {
		a.log.Info().Str("job", e.Job).Str("spec", e.Spec).Time("next", e.Next).Msg("scheduled")
	}

	go func() {
		if err := a.reg.Watch(ctx); err != nil {
			a.log.Error().Err(err).Msg("projects watcher stopped")
		}
	}()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           apihttp.NewRouter(a.cfg, a.log, a.svc, sched),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	a.log.Info().Str("addr", a.cfg.HTTPAddr).Msg("http listening")

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
