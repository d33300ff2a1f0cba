// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gemini-batch-ocr/internal/application"
	"gemini-batch-ocr/internal/config"
	"gemini-batch-ocr/internal/domain/ports/adapter"
	"gemini-batch-ocr/internal/infra/amqp"
	"gemini-batch-ocr/internal/infra/logging"
	"gemini-batch-ocr/internal/infra/metrics"
	"gemini-batch-ocr/internal/infra/scheduler"
	"gemini-batch-ocr/internal/infra/sink"
	"gemini-batch-ocr/internal/infra/web"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (no login, secrets in logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] enabled: authentication is bypassed")
	} else if cfg.HTTP.JWTSecret == "" || cfg.HTTP.AdminPassword == "" {
		logger.Fatal().Msg("http.jwt_secret and http.admin_password are required outside dev mode")
	}

	// ---- Metrics ----
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Sinks ----
	sinks := []adapter.ResultSink{sink.NewLogSink(logger)}
	if cfg.Events.AMQPURL != "" {
		events, closeEvents, err := amqp.Dial(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("amqp")
		}
		defer closeEvents()
		sinks = append(sinks, events)
		logger.Info().Str("exchange", cfg.Events.Exchange).Msg("publishing batch events")
	}

	// ---- Services ----
	svc, err := application.Build(ctx, cfg, sink.NewMulti(sinks...), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("services")
	}
	defer svc.Close()

	// ---- Retention ----
	sched := scheduler.NewScheduler(time.Minute, cfg.Batch.Retention, svc.Batches, logger)
	sched.Start(ctx)
	defer sched.Stop()

	// ---- HTTP ----
	var limiter web.LoginLimiter
	if svc.Limiter != nil {
		limiter = svc.Limiter
	}
	srv := web.NewServer(
		svc.Credentials,
		svc.Models,
		svc.Batches,
		web.NewAuthManager(cfg.HTTP.JWTSecret, cfg.HTTP.SecureCookie, cfg.HTTP.SessionTTL),
		limiter,
		web.Options{
			AdminPassword:  cfg.HTTP.AdminPassword,
			Dev:            cfg.Runtime.Dev,
			MaxUploadBytes: int64(cfg.Batch.MaxImages)*cfg.Batch.MaxFileSize*2 + 1<<20,
		},
		logger,
	)
	go func() {
		if err := srv.Start(cfg.HTTP); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown requested")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
