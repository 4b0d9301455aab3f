package main

import (
	"context"
	"log"
	"strings"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"

	"github.com/getsentry/sentry-go"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/claimwatch/claim-analysis/internal/analysis"
	"github.com/claimwatch/claim-analysis/internal/engine"
	"github.com/claimwatch/claim-analysis/internal/monitoring"
	"github.com/claimwatch/claim-analysis/internal/remote"
	"github.com/claimwatch/claim-analysis/pkg/common"
	"github.com/claimwatch/claim-analysis/pkg/config"
	"github.com/claimwatch/claim-analysis/pkg/logger"
	"github.com/claimwatch/claim-analysis/pkg/middleware"
	"github.com/claimwatch/claim-analysis/pkg/redis"
	"github.com/claimwatch/claim-analysis/pkg/resilience"
	ws "github.com/claimwatch/claim-analysis/pkg/websocket"
)

const serviceName = "analysis"

func main() {
	// Load configuration
	cfg, err := config.Load(serviceName)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logging
	if err := logger.Init(cfg.Server.Environment); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Error reporting
	if cfg.Sentry.Enabled && cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Server.Environment,
		}); err != nil {
			logger.Warn("sentry initialization failed", zap.Error(err))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Connect to Redis. The verdict cache is optional; run without it when
	// Redis is unreachable.
	var redisClient *redis.Client
	redisClient, err = redis.NewClient(&cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, verdict caching disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	// WebSocket hub for the live alert stream
	hub := ws.NewHub(logger.Named("websocket"))
	go hub.Run()

	// Remote scoring gateway behind a circuit breaker
	var remoteScorer analysis.RemoteScorer
	if cfg.Remote.Enabled && cfg.Remote.APIKey != "" {
		breaker := resilience.NewBreaker(
			resilience.BuildSettings("remote-scorer",
				cfg.Breaker.IntervalSeconds,
				cfg.Breaker.TimeoutSeconds,
				cfg.Breaker.FailureThreshold,
				cfg.Breaker.SuccessThreshold,
			),
			resilience.GracefulDegradation("remote-scorer"),
		)

		var cache *remote.VerdictCache
		if redisClient != nil {
			cache = remote.NewVerdictCache(redisClient, cfg.Remote.CacheExpiration())
		}

		remoteScorer = remote.NewOpenRouterClient(&cfg.Remote, breaker, cache, logger.Named("remote"))
	} else {
		logger.Warn("remote scoring disabled, using local engine only")
	}

	// Core services
	localEngine := engine.NewEngine(engine.NewEvaluator(), nil)
	monitor := monitoring.NewService(hub, logger.Named("monitoring"))
	analysisService := analysis.NewService(localEngine, remoteScorer, monitor, hub, analysis.Config{
		RemoteTimeout: cfg.Remote.RequestTimeout(),
	}, logger.Named("analysis"))

	analysisHandler := analysis.NewHandler(analysisService, cfg.Remote.MaxBatchSize, logger.Named("analysis"))
	monitoringHandler := monitoring.NewHandler(monitor, hub, logger.Named("monitoring"))

	// Set up Gin router
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics(serviceName))
	router.Use(middleware.Recovery())
	if cfg.Sentry.Enabled {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.Server.CORSOrigins, ",")
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	// Health check and metrics (no auth required)
	healthChecks := map[string]func() error{}
	if redisClient != nil {
		healthChecks["redis"] = func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Ping(ctx).Err()
		}
	}
	router.GET("/healthz", common.HealthCheck(serviceName, "1.0.0", healthChecks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api/v1")
	{
		analysisHandler.RegisterRoutes(api)
		monitoringHandler.RegisterRoutes(api)
	}

	// Start server
	addr := ":" + cfg.Server.Port
	logger.Info("claim analysis service starting",
		zap.String("port", cfg.Server.Port),
		zap.String("environment", cfg.Server.Environment),
	)
	if err := router.Run(addr); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
