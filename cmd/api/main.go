package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crowndesk/receptionist/internal/adapters/cache"
	"github.com/crowndesk/receptionist/internal/adapters/database"
	"github.com/crowndesk/receptionist/internal/adapters/events"
	"github.com/crowndesk/receptionist/internal/api/handlers"
	"github.com/crowndesk/receptionist/internal/api/middleware"
	"github.com/crowndesk/receptionist/internal/api/routes"
	"github.com/crowndesk/receptionist/internal/application/services"
	domainproviders "github.com/crowndesk/receptionist/internal/domain/providers"
	"github.com/crowndesk/receptionist/internal/infrastructure/clients/postgres"
	"github.com/crowndesk/receptionist/internal/infrastructure/clients/redis"
	"github.com/crowndesk/receptionist/internal/infrastructure/observability"
	"github.com/crowndesk/receptionist/internal/voice"
	"github.com/crowndesk/receptionist/pkg/config"
	"github.com/crowndesk/receptionist/pkg/secrets"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hydrate environment from Vault before reading config
	vaultResult, err := secrets.ApplyVaultSecrets(ctx, secrets.LoadVaultConfigFromEnv(""))
	if err != nil {
		log.Warn().Err(err).Msg("failed to load secrets from Vault")
	} else if vaultResult.Enabled {
		log.Info().Int("loaded", vaultResult.Loaded).Int("skipped", vaultResult.Skipped).
			Str("path", vaultResult.Path).Msg("Vault secrets applied")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()
	log.Info().Msg("PostgreSQL client initialized")

	// Redis is degraded-mode optional: without it there is no response cache,
	// no approval stream, and tool rate limits are not enforced.
	var (
		cacheProvider domainproviders.CacheProvider
		rateLimiter   domainproviders.RateLimiter
		eventBus      domainproviders.EventBus
	)
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, continuing without cache, rate limits, and approval stream")
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient)
		rateLimiter = cache.NewRedisRateLimiter(redisClient, cfg.Voice.ToolRateWindow)
		eventBus = events.NewRedisEventBus(redisClient)
		log.Info().Msg("Redis client initialized")
	}

	// Adapters
	patientAdapter := database.NewPatientAdapter(pgClient)
	providerAdapter := database.NewProviderAdapter(pgClient)
	appointmentAdapter := database.NewAppointmentAdapter(pgClient)
	approvalAdapter := database.NewApprovalAdapter(pgClient)
	callAdapter := database.NewCallAdapter(pgClient)
	insuranceAdapter := database.NewInsuranceAdapter(pgClient)

	// Services
	resolver := services.NewPatientResolverService(patientAdapter, &cfg.Voice)
	availability := services.NewAvailabilityService(providerAdapter, appointmentAdapter, &cfg.Voice)
	approvals := services.NewApprovalService(approvalAdapter, approvalAdapter, appointmentAdapter, eventBus)
	recorder := services.NewTranscriptRecorder(callAdapter, metrics)
	defer recorder.Close()
	analysis := services.NewCallAnalysisService(callAdapter)
	dispatcher := services.NewToolDispatchService(resolver, availability, approvals,
		patientAdapter, appointmentAdapter, insuranceAdapter, recorder, rateLimiter,
		&cfg.Voice, metrics)
	planner := services.NewTurnPlannerService(&cfg.Voice)

	registry := voice.NewRegistry()

	// Handlers
	voiceHandler := handlers.NewVoiceHandler(&cfg.Voice, planner, dispatcher, recorder,
		analysis, registry, metrics)
	approvalHandler := handlers.NewApprovalHandler(approvals)
	callHandler := handlers.NewCallHandler(analysis)
	webhookHandler := handlers.NewVoiceWebhookHandler(pgClient.DBX(), analysis, cfg.Webhook.SigningSecret)
	sseHandler := handlers.NewSSEHandler(eventBus)

	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider)
	}

	router := routes.NewRouter(voiceHandler, approvalHandler, callHandler,
		webhookHandler, sseHandler, cacheMiddleware, metrics)
	handler := router.SetupRoutes()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: handler,
		// No blanket read/write timeouts: voice websockets and approval
		// streams are long-lived. Per-write deadlines live in the session
		// transport instead.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")

	// End live calls first so their records finalize before the recorder
	// drains
	registry.Each(func(s *voice.Session) {
		s.Shutdown()
	})

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("error closing event bus")
		}
	}

	log.Info().Msg("server stopped")
}
