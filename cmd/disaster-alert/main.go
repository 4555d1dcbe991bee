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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AgileSeagull/DIAS/internal/api"
	"github.com/AgileSeagull/DIAS/internal/app"
	"github.com/AgileSeagull/DIAS/internal/config"
	"github.com/AgileSeagull/DIAS/internal/logging"
	"github.com/AgileSeagull/DIAS/internal/observability"
	"github.com/AgileSeagull/DIAS/internal/scheduler"
	"github.com/AgileSeagull/DIAS/internal/stream"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("Server starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"db_driver", cfg.DB.Driver,
		"transport", cfg.Notify.Transport)

	a, err := app.New(cfg, observability.NewMetrics())
	if err != nil {
		logging.Fatalf("Failed to initialize: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("close error", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Job.Init(ctx); err != nil {
		logging.Fatalf("Failed to seed processed disasters: %v", err)
	}

	sched := scheduler.New(a.Orchestrator, a.Job, scheduler.Options{
		SyncInterval:      cfg.Schedule.SyncInterval,
		AlertInterval:     cfg.Schedule.AlertInterval,
		RunOnStart:        cfg.Schedule.SyncOnStart,
		AlertInitialDelay: cfg.Schedule.AlertInitialDelay,
	})
	sched.Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	handler := api.NewHandler(api.Deps{
		Store:         a.Store,
		Triggers:      sched,
		Sync:          a.Orchestrator,
		Alerts:        a.Job,
		Subscriptions: a.Topics,
		Resolver:      a.Resolver,
		Stream:        stream.NewHandler(a.Broadcaster, nil),
		Metrics:       promhttp.Handler(),
	})
	router := api.NewRouter(cfg.Server, handler)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	sched.Stop()
	a.Broadcaster.Close() // ends open alert streams

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
