package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"idvgate/internal/audit"
	auditkafka "idvgate/internal/audit/kafka"
	"idvgate/internal/database"
	"idvgate/internal/platform/config"
	"idvgate/internal/platform/httpserver"
	"idvgate/internal/platform/logger"
	platformmetrics "idvgate/internal/platform/metrics"
	"idvgate/internal/platform/middleware"
	platformredis "idvgate/internal/platform/redis"
	httptransport "idvgate/internal/transport/http"
	"idvgate/internal/userattrs"
	"idvgate/internal/verification/handler"
	"idvgate/internal/verification/metrics"
	"idvgate/internal/verification/provider"
	"idvgate/internal/verification/replay"
	"idvgate/internal/verification/service"
	"idvgate/internal/verification/store"
)

// main wires dependencies and owns the server lifecycle. Business logic
// lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := platformmetrics.New(registry)
	idvMetrics := metrics.New(registry)

	// Stores: Postgres when configured, in-memory otherwise so the service
	// runs standalone in development.
	var (
		claimStore  store.ClaimStore     = store.NewMemoryStore()
		configStore provider.ConfigStore = provider.NewMemoryConfigStore()
	)
	if cfg.DatabaseURL != "" {
		pool, err := database.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("connecting database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		claimStore = store.NewPostgresStore(pool)
		configStore = provider.NewPostgresConfigStore(pool)
	} else {
		log.Warn("no database configured, using in-memory stores")
	}
	configStore = provider.NewCachingConfigStore(configStore, cfg.ConfigCacheTTL)

	redisClient, err := platformredis.New(cfg.Redis())
	if err != nil {
		log.Error("connecting redis", "error", err)
		os.Exit(1)
	}
	var replayStore replay.Store = replay.NewMemoryStore(cfg.ReplayRetention)
	if redisClient != nil {
		defer redisClient.Close()
		replayStore = replay.NewRedisStore(redisClient.Client, cfg.ReplayRetention)
	}

	var auditor audit.Publisher = audit.NewLogPublisher(log)
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := auditkafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaAuditTopic, log)
		if err != nil {
			log.Error("connecting kafka", "error", err)
			os.Exit(1)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = kafkaPublisher.Close(closeCtx)
		}()
		auditor = kafkaPublisher
	}

	svc := service.New(
		claimStore,
		configStore,
		provider.NewClient(provider.WithLogger(log)),
		userattrs.NewMemoryStore(),
		service.WithLogger(log),
		service.WithMetrics(idvMetrics),
		service.WithAuditor(auditor),
		service.WithReplayStore(replayStore),
	)

	if cfg.JWTSigningKey == "" {
		log.Warn("IDVGATE_JWT_SIGNING_KEY is not set, using a development key")
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	idvHandler := handler.New(svc, log, httpMetrics, middleware.NewHMACValidator(cfg.JWTSigningKey),
		handler.WithWebhookRateLimit(cfg.WebhookRatePerSecond, cfg.WebhookBurst))

	checks := map[string]httptransport.HealthChecker{}
	if redisClient != nil {
		checks["redis"] = redisClient
	}
	router := httptransport.NewRouter(registry, []httptransport.Registrar{idvHandler}, checks)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting idvgate", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("idvgate stopped")
}
