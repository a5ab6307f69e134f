package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pokedex-live/internal/capture"
	"pokedex-live/internal/platform/config"
	"pokedex-live/internal/platform/logger"
	"pokedex-live/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("error", "json").Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	met := metrics.New()
	hub := capture.NewHub(log, met)
	store := capture.NewFileStore(cfg.DBPath)
	svc := capture.NewService(capture.NewRegistry(), store, hub, log, met)
	svc.Restore()

	hcfg := capture.HandlerConfig{
		AdminSecret:       capture.NewSecret(cfg.AdminSecret),
		WebhookSecret:     capture.NewSecret(cfg.WebhookSecret),
		EnforceIDRange:    cfg.EnforceIDRange,
		ViewerIdleTimeout: cfg.ViewerIdleTimeout,
	}
	if cfg.StaticDir != "" {
		hcfg.Static = http.FileServer(http.Dir(cfg.StaticDir))
	}
	h := capture.NewHandler(svc, log, met, hcfg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			met.SetConnectedViewers(svc.ViewerCount())
			met.SetCapturedEntities(svc.CapturedCount())
		}).ServeHTTP(w, r)
	})
	h.Routes(r)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"db_path", store.Path(),
		"captured", svc.CapturedCount(),
		"webhook_secret", hcfg.WebhookSecret.String(),
		"enforce_id_range", cfg.EnforceIDRange,
		"viewer_idle_timeout", cfg.ViewerIdleTimeout.String(),
		"static_dir", cfg.StaticDir,
		"log_level", cfg.LogLevel,
	)
	if !hcfg.WebhookSecret.Configured() {
		log.Warn("WEBHOOK_SECRET is not set; /capture accepts unauthenticated requests")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked viewer connections are not tracked by Shutdown.
	svc.Shutdown()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
