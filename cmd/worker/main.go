package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/jwalitptl/labalert/internal/config"
	"github.com/jwalitptl/labalert/internal/email"
	"github.com/jwalitptl/labalert/internal/repository/postgres"
	"github.com/jwalitptl/labalert/internal/worker"
	"github.com/jwalitptl/labalert/pkg/logger"
	"github.com/jwalitptl/labalert/pkg/messaging/redis"
	"github.com/jwalitptl/labalert/pkg/metrics"
)

// Settings are worker-only knobs read from LABWORKER_* variables.
type Settings struct {
	DedupWindow       time.Duration `envconfig:"DEDUP_WINDOW" default:"10m"`
	RetentionDays     int           `envconfig:"RETENTION_DAYS" default:"0"`
	RetentionInterval time.Duration `envconfig:"RETENTION_INTERVAL" default:"24h"`
	HealthAddr        string        `envconfig:"HEALTH_ADDR" default:":8081"`
}

func setupHealthCheck(addr string, registry *prometheus.Registry, ready func(context.Context) error) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ready(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func main() {
	_ = godotenv.Load()

	var settings Settings
	if err := envconfig.Process("labworker", &settings); err != nil {
		log.Fatal().Err(err).Msg("Failed to read worker settings")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	appLog := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Logging.Level),
		TimeFormat: time.RFC3339,
		Pretty:     cfg.Logging.Pretty,
	})
	log.Logger = *appLog.Zerolog()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(cfg.Metrics.Namespace, registry)

	// Initialize database
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := postgres.Migrate(db.DB); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	// Initialize Redis broker
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:            cfg.Redis.URL,
		MaxRetries:     cfg.Redis.MaxRetries,
		RetryBackoff:   cfg.Redis.RetryBackoff,
		PoolSize:       cfg.Redis.PoolSize,
		MinIdleConns:   cfg.Redis.MinIdleConns,
		PublishTimeout: cfg.Channels.PublishTimeout,
	}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Redis broker")
	}
	defer broker.Close()

	var notifier email.Notifier = email.NewLogNotifier(appLog)
	if cfg.SMTP.Enabled {
		smtp, err := email.NewSMTPNotifier(cfg.SMTP)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to configure SMTP notifier")
		}
		notifier = smtp
	}

	base := postgres.NewBaseRepository(db)
	repo := postgres.NewResultRepository(base)

	archive := worker.NewArchiveConsumer(broker, repo, worker.ArchiveConsumerConfig{
		Topic:       cfg.Channels.ArchiveTopic,
		DedupWindow: settings.DedupWindow,
	}, appLog, m)
	alerts := worker.NewAlertConsumer(broker, notifier, cfg.Channels.AlertTopic, appLog, m)
	retention := worker.NewRetentionWorker(repo, settings.RetentionDays, settings.RetentionInterval, appLog)

	healthSrv := setupHealthCheck(settings.HealthAddr, registry, base.Ping)

	// Handle shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return archive.Start(ctx) })
	g.Go(func() error { return alerts.Start(ctx) })
	g.Go(func() error { return retention.Start(ctx) })
	g.Go(func() error {
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return healthSrv.Shutdown(shutdownCtx)
	})

	log.Info().
		Str("archive_topic", cfg.Channels.ArchiveTopic).
		Str("alert_topic", cfg.Channels.AlertTopic).
		Str("health_addr", settings.HealthAddr).
		Msg("Worker started")

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker stopped with error")
		os.Exit(1)
	}
}
