package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/labalert/internal/email"
	"github.com/jwalitptl/labalert/pkg/logger"
	"github.com/jwalitptl/labalert/pkg/messaging"
	"github.com/jwalitptl/labalert/pkg/metrics"
)

// AlertConsumer turns critical results on the alert topic into doctor
// notifications.
type AlertConsumer struct {
	broker   messaging.Broker
	notifier email.Notifier
	topic    string
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewAlertConsumer(broker messaging.Broker, notifier email.Notifier, topic string, log *logger.Logger, m *metrics.Metrics) *AlertConsumer {
	return &AlertConsumer{
		broker:   broker,
		notifier: notifier,
		topic:    topic,
		logger:   log.WithFields(map[string]interface{}{"consumer": "alert", "topic": topic}),
		metrics:  m,
		now:      time.Now,
	}
}

func (c *AlertConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting doctor alert consumer")
	defer c.logger.Info("Shutting down doctor alert consumer")
	return messaging.Consume(ctx, c.broker, c.topic, c.Handle, c.logger.Zerolog())
}

func (c *AlertConsumer) Handle(ctx context.Context, msg messaging.Message) error {
	rec := recordFromMessage(msg)
	if !rec.Critical() {
		c.logger.Info("Non-critical message received", "patient_id", rec.PatientID(), "test_type", rec.TestType())
		c.count("ignored")
		return nil
	}

	subject, body := email.FormatAlert(rec, c.now())
	err := c.notifier.Send(ctx, subject, body)
	if c.metrics != nil {
		c.metrics.NotificationsSent.WithLabelValues(metrics.Status(err)).Inc()
	}
	if err != nil {
		c.count("error")
		return fmt.Errorf("failed to notify critical result %s: %w", rec.ID(), err)
	}

	c.count("notified")
	c.logger.Warn("Critical result notified", "record_id", rec.ID(), "patient_id", rec.PatientID())
	return nil
}

func (c *AlertConsumer) count(status string) {
	if c.metrics != nil {
		c.metrics.MessagesConsumed.WithLabelValues(c.topic, status).Inc()
	}
}
