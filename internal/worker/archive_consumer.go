package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/labalert/internal/repository"
	"github.com/jwalitptl/labalert/pkg/logger"
	"github.com/jwalitptl/labalert/pkg/messaging"
	"github.com/jwalitptl/labalert/pkg/metrics"
	"github.com/jwalitptl/labalert/pkg/payload"
)

type ArchiveConsumerConfig struct {
	Topic string
	// DedupWindow is how long a record id is remembered. Zero disables
	// deduplication.
	DedupWindow time.Duration
}

// ArchiveConsumer persists every result published on the archive topic.
type ArchiveConsumer struct {
	broker  messaging.Broker
	repo    repository.ResultRepository
	config  ArchiveConsumerConfig
	seen    *cache.Cache
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewArchiveConsumer(
	broker messaging.Broker,
	repo repository.ResultRepository,
	config ArchiveConsumerConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) *ArchiveConsumer {
	c := &ArchiveConsumer{
		broker:  broker,
		repo:    repo,
		config:  config,
		logger:  log.WithFields(map[string]interface{}{"consumer": "archive", "topic": config.Topic}),
		metrics: m,
	}
	if config.DedupWindow > 0 {
		c.seen = cache.New(config.DedupWindow, 2*config.DedupWindow)
	}
	return c
}

// Start consumes until ctx is done.
func (c *ArchiveConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting archive consumer")
	defer c.logger.Info("Shutting down archive consumer")
	return messaging.Consume(ctx, c.broker, c.config.Topic, c.Handle, c.logger.Zerolog())
}

func (c *ArchiveConsumer) Handle(ctx context.Context, msg messaging.Message) error {
	id := msg.Attr(payload.AttrRecordID)
	if id != "" && c.seen != nil {
		if err := c.seen.Add(id, struct{}{}, cache.DefaultExpiration); err != nil {
			c.logger.Debug("skipping duplicate result", "record_id", id)
			c.count("duplicate")
			return nil
		}
	}

	rec := recordFromMessage(msg)

	start := time.Now()
	inserted, err := c.repo.Insert(ctx, rec)
	if c.metrics != nil {
		c.metrics.DatabaseOperations.WithLabelValues("insert", metrics.Status(err)).Inc()
		c.metrics.DatabaseLatency.WithLabelValues("insert").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if id != "" && c.seen != nil {
			c.seen.Delete(id)
		}
		c.count("error")
		return fmt.Errorf("failed to archive result %s: %w", rec.ID(), err)
	}

	if !inserted {
		c.count("duplicate")
		return nil
	}
	c.count("stored")
	c.logger.Info("Result archived",
		"record_id", rec.ID(),
		"patient", rec.PatientName(),
		"test_type", rec.TestType(),
		"critical", rec.Critical(),
	)
	return nil
}

func (c *ArchiveConsumer) count(status string) {
	if c.metrics != nil {
		c.metrics.MessagesConsumed.WithLabelValues(c.config.Topic, status).Inc()
	}
}
