package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/opsboard/opsboard/internal/accessrequest"
	"github.com/opsboard/opsboard/internal/api"
	"github.com/opsboard/opsboard/internal/audit"
	"github.com/opsboard/opsboard/internal/auth"
	"github.com/opsboard/opsboard/internal/config"
	"github.com/opsboard/opsboard/internal/municipality"
	"github.com/opsboard/opsboard/internal/resource"
	"github.com/opsboard/opsboard/internal/roster"
	"github.com/opsboard/opsboard/internal/store"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	db, err := store.New(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	users := auth.NewRepository(db.Pool())
	authService := auth.NewService(users, []byte(cfg.AuthSecret),
		time.Duration(cfg.TokenTTLHours)*time.Hour, cfg.BcryptCost)

	if _, err := authService.Bootstrap(context.Background(), cfg.AdminEmail, cfg.AdminPassword); err != nil {
		slog.Error("failed to bootstrap admin account", "error", err)
		os.Exit(1)
	}

	auditLog := audit.NewLog(db.Pool())

	router := api.NewRouter(api.RouterDeps{
		AuthService:    authService,
		Users:          users,
		Resources:      resource.NewStore(db.Pool()),
		Recorder:       auditLog,
		AuditLog:       auditLog,
		Municipalities: municipality.NewRepository(db.Pool()),
		Swapper:        roster.NewSwapper(db.Pool()),
		AccessRequests: accessrequest.NewRepository(db.Pool()),
		DBPinger:       db,
		Version:        cfg.Version,
		CORSOrigins:    cfg.CORSOrigins,
		LoginRate:      cfg.LoginRate,
		LoginBurst:     cfg.LoginBurst,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting opsboard server", "port", cfg.Port, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
