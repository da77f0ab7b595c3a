// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"

	"codeberg.org/willtank/willtank/internal/config"
	"codeberg.org/willtank/willtank/internal/database"
	"codeberg.org/willtank/willtank/internal/i18n"
	"codeberg.org/willtank/willtank/internal/middleware"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(os.Stdout, cfg.Log)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"storage", cfg.Storage.Driver,
	)

	if !cfg.Server.UseTLS() && !config.IsLocalhost(cfg.Server.Host) {
		slog.Warn("serving without TLS on a public host, put a TLS proxy in front", "host", cfg.Server.Host)
	}

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	setupMiddleware(e, cfg, a)

	// Routes
	setupRoutes(e, a)

	// Scheduler
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	if cfg.Verification.SchedulerEnabled {
		n, err := a.checkins.ArmAll(runCtx)
		if err != nil {
			return fmt.Errorf("failed to load due times: %w", err)
		}
		slog.Info("scheduler armed", "users", n)
		go func() {
			if err := a.scheduler.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("scheduler stopped", "error", err)
			}
		}()
	}

	// Start server
	return startWithGracefulShutdown(e, cfg)
}

func setupRoutes(e *echo.Echo, a *app) {
	h := a.handlers()

	e.GET("/health", h.Health)
	e.GET("/", h.Home)

	// Auth
	e.GET("/auth/login", h.LoginPage)
	e.POST("/auth/login", h.Login)
	e.POST("/auth/register", h.Register)
	e.POST("/auth/logout", h.Logout)

	// Owner API
	me := e.Group("/api/me", middleware.RequireAuth)
	me.GET("/settings", h.GetSettings)
	me.PUT("/settings", h.UpdateSettings)
	me.POST("/checkin", h.CheckIn)
	me.GET("/checkins", h.CheckinHistory)
	me.GET("/contacts", h.ListContacts)
	me.POST("/contacts", h.CreateContact)
	me.GET("/contacts/:id", h.GetContact)
	me.DELETE("/contacts/:id", h.DeleteContact)
	me.GET("/will", h.GetWill)
	me.PUT("/will", h.PutWill)
	me.GET("/documents", h.ListDocuments)
	me.POST("/documents", h.UploadDocument)
	me.DELETE("/documents/:id", h.DeleteDocument)
	me.GET("/audit", h.AuditLog)

	// Executor API
	e.POST("/api/check-executor-verification", h.CheckVerification)
	e.POST("/api/submit-executor-pins", h.SubmitPins)
	e.POST("/api/get-executor-documents", h.ExecutorDocuments)
	e.POST("/api/get-document-download-url", h.DocumentDownloadURL)
	e.POST("/api/get-all-documents-zip", h.DocumentsZip)

	// Scheduled callers and operators
	scanner := middleware.RequireScannerToken(a.cfg.Verification.ScannerToken)
	e.POST("/api/trigger-death-verification", h.TriggerVerification, scanner)
	e.POST("/api/scan", h.Scan, scanner)
	e.POST("/api/send-executor-pin", h.SendPin, scanner)
	if a.harness != nil {
		e.POST("/api/test-executor-access", h.TestExecutorAccess, scanner)
	}

	// Unlock portal
	for _, prefix := range []string{"/verify", "/will-unlock"} {
		e.GET(prefix+"/:id", h.PortalPage)
	}
	e.GET("/verify/:id/status", h.PortalStatus)
	e.GET("/verify/:id/events", h.Events)
	e.POST("/verify/:id/pins", h.PortalSubmitPins)
	e.POST("/verify/:id/documents/:doc", h.PortalDownload)
	e.POST("/verify/:id/zip", h.PortalZip)

	// Signed links of the local storage driver
	e.GET("/files", h.File)
}

func startWithGracefulShutdown(e *echo.Echo, cfg *config.Config) error {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	// Channel for server errors
	errChan := make(chan error, 1)

	go func() {
		slog.Info("Server running", "url", cfg.Server.BaseURL, "tls", cfg.Server.UseTLS())
		var err error
		if cfg.Server.UseTLS() {
			err = e.StartTLS(addr, cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

// Scan runs one inactivity scan and prints the counts. It is the entry
// point for cron-driven deployments.
func Scan(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(os.Stderr, cfg.Log)

	if err := i18n.Init(); err != nil {
		return fmt.Errorf("failed to init i18n: %w", err)
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.verification.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	enc := json.NewEncoder(cmd.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// Migrate applies schema migrations in the direction given as the first
// argument: up (default), down or reset.
func Migrate(_ context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(os.Stderr, cfg.Log)

	direction := cmd.Args().First()
	db, err := database.Connect(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(db.DB, direction); err != nil {
		return fmt.Errorf("migrate %s: %w", direction, err)
	}
	slog.Info("migrations applied", "direction", direction)
	return nil
}
