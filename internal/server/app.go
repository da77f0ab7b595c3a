// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/vinovest/sqlx"

	"codeberg.org/willtank/willtank/internal/config"
	"codeberg.org/willtank/willtank/internal/database"
	"codeberg.org/willtank/willtank/internal/handlers"
	"codeberg.org/willtank/willtank/internal/repository"
	"codeberg.org/willtank/willtank/internal/scheduler"
	"codeberg.org/willtank/willtank/internal/services/access"
	authsvc "codeberg.org/willtank/willtank/internal/services/auth"
	"codeberg.org/willtank/willtank/internal/services/checkin"
	"codeberg.org/willtank/willtank/internal/services/email"
	"codeberg.org/willtank/willtank/internal/services/harness"
	"codeberg.org/willtank/willtank/internal/services/session"
	"codeberg.org/willtank/willtank/internal/services/verification"
	"codeberg.org/willtank/willtank/internal/sse"
	"codeberg.org/willtank/willtank/internal/storage"
)

// app is the wired service graph shared by the serve and scan commands.
type app struct {
	cfg          *config.Config
	db           *sqlx.DB
	repo         *repository.Repository
	store        storage.Store
	hub          *sse.Hub
	scheduler    *scheduler.Scheduler
	sessions     *session.Manager
	auth         *authsvc.Service
	checkins     *checkin.Service
	verification *verification.Service
	gate         *access.Gate
	harness      *harness.Harness
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a := &app{
		cfg:  cfg,
		db:   db,
		repo: repository.New(db),
		hub:  sse.NewHub(),
	}

	if a.store, err = storage.New(ctx, &cfg.Storage, cfg.Server.BaseURL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set up storage: %w", err)
	}
	mailer, err := email.NewFromConfig(&cfg.SMTP, cfg.Server.BaseURL)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set up email: %w", err)
	}
	a.sessions, err = session.NewManager(&cfg.Session, strings.HasPrefix(cfg.Server.BaseURL, "https://"))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set up sessions: %w", err)
	}

	a.gate = access.NewGate(a.repo, a.store, &cfg.Verification)
	a.verification = verification.NewService(a.repo, mailer, a.gate, &cfg.Verification,
		verification.WithListener(a.hub.PublishStatus))
	a.scheduler = scheduler.New(a.verification.RunUser)
	a.checkins = checkin.NewService(a.repo, &cfg.Verification,
		checkin.WithScheduler(a.scheduler),
		checkin.WithCanceller(a.verification),
		checkin.WithCancelListener(a.hub.PublishStatus))
	a.auth = authsvc.NewService(a.repo, a.checkins)
	if cfg.Verification.TestHarness {
		a.harness = harness.New(a.repo, a.verification, nil)
	}
	return a, nil
}

func (a *app) handlers() *handlers.Handlers {
	return handlers.New(handlers.Deps{
		Repo:         a.repo,
		Auth:         a.auth,
		Sessions:     a.sessions,
		Checkins:     a.checkins,
		Verification: a.verification,
		Gate:         a.gate,
		Store:        a.store,
		Hub:          a.hub,
		Harness:      a.harness,
		MaxUpload:    int64(a.cfg.Server.MaxBodySize) << 20,
	})
}

func (a *app) Close() error {
	return a.db.Close()
}
