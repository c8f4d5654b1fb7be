package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/docs"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/api"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/auth"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/cache"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/config"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/database"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/delivery"
	apperrors "github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/errors"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/health"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/invitation"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/llm"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/middleware"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/monitoring"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/narrative"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/pipeline"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/questionnaire"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/ratelimit"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/resilience"
	"github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/security"
)

const (
	questionnaireCacheTTL = 15 * time.Minute
	memoryStatsInterval   = 30 * time.Second
	healthCheckTimeout    = 5 * time.Second
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app owns every long-lived dependency of the server process
type app struct {
	cfg    *config.Config
	logger *monitoring.Logger

	db          *database.DB
	repo        *database.Repository
	metrics     *monitoring.Metrics
	redis       *ratelimit.RedisClient
	limiter     *ratelimit.RateLimiter
	cache       *cache.Cache
	compression *middleware.CompressionMiddleware
	dispatcher  *pipeline.Dispatcher
	invitations *invitation.Service
	submissions *pipeline.Service
	checker     *health.Checker
	breakers    *resilience.CircuitBreakerRegistry
	tokens      *auth.TokenService
	catalog     *questionnaire.Catalog
}

// newApp opens storage and wires the services. Redis and the text
// generator are optional: failures there are logged and the server starts
// degraded.
func newApp(ctx context.Context, cfg *config.Config, logger *monitoring.Logger) (*app, error) {
	db, err := database.Open(cfg.DBDriver, cfg.DataDir)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		repo:    database.NewRepository(db),
		metrics: monitoring.NewMetrics(),
	}

	a.catalog, err = questionnaire.DefaultCatalog()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load questionnaire catalog: %w", err)
	}

	profile, err := loadProfile(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	generator, generatorEnabled := newGenerator(cfg, logger)

	a.breakers = resilience.NewCircuitBreakerRegistry()
	breaker := a.breakers.GetOrCreate(pipeline.GeneratorService, resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  time.Minute,
		SuccessThreshold: 2,
	})
	degradation := resilience.NewDegradationManager(resilience.DefaultDegradationConfig())

	a.dispatcher = pipeline.NewDispatcher(logger.Logger)
	analyzer := pipeline.NewAnalyzer(a.repo, generator,
		narrative.NewBuilder(profile, cfg.NarrativeFormat),
		narrative.NewParser(profile.Markers),
		pipeline.AnalyzerConfig{
			Provider:    cfg.LLMProvider,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
			Timeout:     cfg.AnalysisTimeout,
			MaxAttempts: cfg.AnalysisMaxAttempts,
		},
		breaker, degradation, logger.Logger)
	a.submissions = pipeline.NewService(a.repo, analyzer, a.dispatcher, a.metrics, logger.Logger)
	a.invitations = invitation.NewService(a.repo, newSender(cfg, logger), cfg.AppURL, cfg.LinkDefaultExpiryDays, logger.Logger)

	a.redis, err = ratelimit.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("Redis unavailable, rate limiting falls back to memory", "addr", cfg.RedisAddr, "error", err)
	}
	limiterConfig := ratelimit.DefaultConfig()
	limiterConfig.IPLimitPerMin = cfg.RateLimitPerMin
	a.limiter = ratelimit.NewRateLimiter(a.redis, limiterConfig, a.metrics)

	a.cache = cache.NewCache(questionnaireCacheTTL)
	a.compression = middleware.NewCompressionMiddleware(middleware.DefaultCompressionConfig())
	a.tokens = auth.NewTokenService(cfg.JWTSecret)

	a.checker = health.NewChecker(health.Config{
		Database:         db,
		Redis:            a.redis,
		Breakers:         a.breakers,
		Degradation:      degradation,
		GeneratorService: pipeline.GeneratorService,
		GeneratorEnabled: generatorEnabled,
		Environment:      cfg.Environment,
		Version:          version,
		Timeout:          healthCheckTimeout,
	})

	return a, nil
}

// loadProfile picks the narrative profile and applies a marker file
// override when one is configured.
func loadProfile(cfg *config.Config) (*narrative.Profile, error) {
	profile, err := narrative.LoadProfile(cfg.MarkersVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to load narrative profile: %w", err)
	}
	if cfg.MarkersFile == "" {
		return profile, nil
	}

	markers, err := narrative.LoadMarkerFile(cfg.MarkersFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load marker file: %w", err)
	}
	return profile.WithMarkers(markers), nil
}

func newGenerator(cfg *config.Config, logger *monitoring.Logger) (llm.Provider, bool) {
	provider, err := llm.NewProvider(cfg.LLMConfig())
	if err != nil {
		logger.Warn("Narrative generation disabled", "provider", cfg.LLMProvider, "error", err)
		disabled, _ := llm.NewProvider(llm.Config{Provider: "none"})
		return disabled, false
	}
	if cfg.LLMProvider == "none" {
		logger.Warn("Narrative generation disabled by configuration")
		return provider, false
	}
	return provider, true
}

func newSender(cfg *config.Config, logger *monitoring.Logger) delivery.Sender {
	if cfg.SMTPHost == "" {
		logger.Info("SMTP not configured, invitation emails are logged only")
		return delivery.NewLogSender(logger.Logger)
	}
	return delivery.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
}

// router builds the gin engine with the full middleware chain
func (a *app) router() *gin.Engine {
	r := gin.New()

	r.Use(monitoring.RequestIDMiddleware())
	r.Use(monitoring.MonitoringMiddleware(a.metrics, a.logger))
	r.Use(monitoring.SecurityMonitoringMiddleware(a.logger))

	r.Use(apperrors.ErrorHandler())
	r.Use(apperrors.RecoveryHandler())

	r.Use(cors.New(cors.Config{
		AllowOrigins:  a.cfg.CORSAllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", monitoring.RequestIDHeader},
		ExposeHeaders: []string{monitoring.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}))

	securityConfig := security.DefaultConfig()
	r.Use(security.SecurityHeadersMiddleware(a.cfg.EnableHSTS))
	r.Use(security.RequestTimeout(securityConfig.RequestTimeout))
	r.Use(security.BodyLimit(securityConfig.MaxBodyBytes))
	r.Use(security.ValidateContentType())
	r.Use(a.compression.Handler())

	r.GET("/health", a.checker.Handler())
	r.GET("/metrics", a.metricsHandler)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if a.cfg.EnableProfiling {
		a.logger.Info("Enabling performance profiling endpoints")
		r.GET("/debug/pprof/", gin.WrapF(pprof.Index))
		r.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
		r.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
		r.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
		r.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
		r.GET("/debug/pprof/:profile", func(c *gin.Context) {
			pprof.Handler(c.Param("profile")).ServeHTTP(c.Writer, c.Request)
		})
	}

	api.NewHandler(a.repo, a.invitations, a.submissions, a.catalog, a.logger.Logger).
		RegisterRoutes(r, api.RouteOptions{
			Auth:               auth.Middleware(a.tokens),
			PublicRateLimit:    a.limiter.IPRateLimitMiddleware(),
			QuestionnaireCache: a.cache.Middleware(a.metrics),
		})

	return r
}

func (a *app) metricsHandler(c *gin.Context) {
	stats := a.metrics.GetStats()
	stats["analyses_in_flight"] = a.dispatcher.InFlight()
	stats["rate_limiter"] = a.limiter.GetStats()
	stats["cache"] = a.cache.Stats()
	stats["compression"] = a.compression.GetStats()
	stats["database"] = a.db.GetPoolStats()
	stats["circuit_breakers"] = a.breakers.GetStats()
	if a.redis.IsEnabled() {
		stats["redis"] = a.redis.GetPoolStats()
	}
	c.JSON(http.StatusOK, stats)
}

// close waits for background work and releases resources. Analyses still
// running when ctx expires are abandoned and stay in processing.
func (a *app) close(ctx context.Context) error {
	var errs []error

	if err := a.dispatcher.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("analyses still running: %w", err))
	}
	a.invitations.WaitAudits()

	a.limiter.Close()
	a.cache.Close()
	if a.redis.Configured() {
		apperrors.SafeClose(a.redis, "redis")
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}

	return errors.Join(errs...)
}
