package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"writer-backend/internal/bootstrap"
	"writer-backend/internal/pipeline"
	"writer-backend/internal/shared/config"
	"writer-backend/internal/shared/server"
	"writer-backend/internal/shared/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadWithSecrets(ctx)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	telemetry.Init(telemetry.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Service: "writer-api"})

	app, err := bootstrap.Build(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	go sweep(ctx, app.Pipeline, cfg.SweepInterval)

	srv := &http.Server{
		Addr:              server.Addr(cfg.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	telemetry.Info("api.started", map[string]any{"addr": srv.Addr, "env": cfg.Env, "queue": cfg.QueueBackend})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

// sweep fails generations that outlived the timeout until ctx ends.
func sweep(ctx context.Context, svc *pipeline.Service, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := svc.SweepTimeouts(ctx, now); err != nil {
				telemetry.Error("api.sweep_failed", map[string]any{"error": err})
			}
		}
	}
}
