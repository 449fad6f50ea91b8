package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/labalert/internal/config"
	alerthandler "github.com/jwalitptl/labalert/internal/handler/alert"
	authhandler "github.com/jwalitptl/labalert/internal/handler/auth"
	"github.com/jwalitptl/labalert/internal/handler/health"
	prometheushandler "github.com/jwalitptl/labalert/internal/handler/prometheus"
	resultshandler "github.com/jwalitptl/labalert/internal/handler/results"
	"github.com/jwalitptl/labalert/internal/middleware"
	"github.com/jwalitptl/labalert/internal/repository/postgres"
	"github.com/jwalitptl/labalert/internal/router"
	"github.com/jwalitptl/labalert/internal/service/alert"
	authservice "github.com/jwalitptl/labalert/internal/service/auth"
	"github.com/jwalitptl/labalert/internal/service/results"
	"github.com/jwalitptl/labalert/pkg/auth"
	"github.com/jwalitptl/labalert/pkg/logger"
	"github.com/jwalitptl/labalert/pkg/messaging"
	"github.com/jwalitptl/labalert/pkg/messaging/memory"
	"github.com/jwalitptl/labalert/pkg/messaging/redis"
	"github.com/jwalitptl/labalert/pkg/metrics"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLog := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Logging.Level),
		TimeFormat: time.RFC3339,
		Pretty:     cfg.Logging.Pretty,
	})
	log.Logger = *appLog.Zerolog()
	gin.SetMode(gin.ReleaseMode)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(cfg.Metrics.Namespace, registry)

	broker, err := openBroker(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("channels unavailable, running with the local alert queue only")
	}

	alertRouter := alert.NewRouter(broker, alert.Config{
		ArchiveTopic:   cfg.Channels.ArchiveTopic,
		AlertTopic:     cfg.Channels.AlertTopic,
		PublishTimeout: cfg.Channels.PublishTimeout,
		Source:         cfg.Channels.Source,
	}, appLog, m)
	defer alertRouter.Close()

	opts := results.Options{Forwarder: alertRouter, Logger: appLog, Metrics: m}
	var checks []health.Check
	if results.Backend(cfg.Results.Backend) == results.BackendPostgres {
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()

		base := postgres.NewBaseRepository(db)
		opts.Repository = postgres.NewResultRepository(base)
		checks = append(checks, health.Check{Name: "database", Check: base.Ping})
	}

	svc, err := results.Open(results.Backend(cfg.Results.Backend), opts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open results backend")
	}

	authMiddleware, authSvc := setupAuth(cfg)

	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg.RateLimit))

	r := router.NewRouter(
		authMiddleware,
		resultshandler.NewHandler(svc, cfg.Results.RecentDefault),
		alerthandler.NewHandler(alertRouter),
		authhandler.NewHandler(authSvc),
		health.NewHandler(svc, checks...),
		prometheushandler.New(registry, cfg.Metrics.Namespace),
		rateLimiter,
		router.RouterConfig{
			RequestTimeout: cfg.Server.RequestTimeout,
			MaxBodyBytes:   cfg.Server.MaxBodyBytes,
			CORSOrigins:    cfg.Server.CORSOrigins,
		},
	)
	r.Setup()

	config.Watch(func(next *config.Config) {
		rateLimiter.Update(rateLimiterConfig(next.RateLimit))
		zerolog.SetGlobalLevel(logger.ParseLevel(next.Logging.Level))
		log.Info().
			Bool("rate_limit", next.RateLimit.Enabled).
			Str("level", next.Logging.Level).
			Msg("configuration reloaded")
	}, func(err error) {
		log.Warn().Err(err).Msg("configuration reload rejected")
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("backend", cfg.Results.Backend).
			Bool("channels", alertRouter.ChannelsEnabled()).
			Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}

// openBroker returns nil without error when channels are disabled.
func openBroker(cfg *config.Config) (messaging.Broker, error) {
	switch cfg.Channels.Transport {
	case "none":
		return nil, nil
	case "memory":
		return memory.NewBroker(100), nil
	default:
		b, err := redis.NewRedisBroker(redis.Config{
			URL:            cfg.Redis.URL,
			MaxRetries:     cfg.Redis.MaxRetries,
			RetryBackoff:   cfg.Redis.RetryBackoff,
			PoolSize:       cfg.Redis.PoolSize,
			MinIdleConns:   cfg.Redis.MinIdleConns,
			PublishTimeout: cfg.Channels.PublishTimeout,
		}, &log.Logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

// setupAuth leaves the operator routes answering 503 when no signing
// secret is configured.
func setupAuth(cfg *config.Config) (*middleware.AuthMiddleware, authhandler.Authenticator) {
	if cfg.Auth.JWTSecret == "" || cfg.Auth.OperatorPasswordHash == "" {
		log.Warn().Msg("operator authentication not configured, alert administration disabled")
		return middleware.NewAuthMiddleware(nil), authservice.NewService(cfg.Auth.OperatorUsername, "", nil)
	}

	jwtSvc, err := auth.NewJWTService(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token service")
	}
	return middleware.NewAuthMiddleware(jwtSvc),
		authservice.NewService(cfg.Auth.OperatorUsername, cfg.Auth.OperatorPasswordHash, jwtSvc)
}

func rateLimiterConfig(c config.RateLimitConfig) middleware.RateLimiterConfig {
	return middleware.RateLimiterConfig{
		Enabled: c.Enabled,
		Rate:    rate.Limit(c.RequestsPerSecond),
		Burst:   c.Burst,
	}
}
