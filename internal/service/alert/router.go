// Package alert routes classified results to the archive and alert channels
// and keeps the local queue of critical results awaiting acknowledgment.
package alert

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jwalitptl/labalert/internal/model"
	"github.com/jwalitptl/labalert/pkg/logger"
	"github.com/jwalitptl/labalert/pkg/messaging"
	"github.com/jwalitptl/labalert/pkg/metrics"
	"github.com/jwalitptl/labalert/pkg/payload"
)

const (
	DefaultArchiveTopic = "MedicalResultsQueue"
	DefaultAlertTopic   = "MedicalAlertsQueue"
	DefaultSource       = "labalert"
)

type Config struct {
	ArchiveTopic   string
	AlertTopic     string
	PublishTimeout time.Duration
	Source         string
}

func (c *Config) withDefaults() {
	if c.ArchiveTopic == "" {
		c.ArchiveTopic = DefaultArchiveTopic
	}
	if c.AlertTopic == "" {
		c.AlertTopic = DefaultAlertTopic
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 2 * time.Second
	}
	if c.Source == "" {
		c.Source = DefaultSource
	}
}

// Router forwards every result to the archive channel and critical ones to
// the alert channel, then queues critical results locally until they are
// acknowledged. Without a broker it runs in local-only mode.
type Router struct {
	broker  messaging.Broker
	config  Config
	logger  *logger.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	pending []*model.ResultRecord
}

func NewRouter(broker messaging.Broker, config Config, log *logger.Logger, m *metrics.Metrics) *Router {
	config.withDefaults()
	if log == nil {
		log = logger.Nop()
	}
	if broker == nil {
		log.Warn("message channels unavailable, alert routing is local only")
	}
	return &Router{
		broker:  broker,
		config:  config,
		logger:  log.WithFields(map[string]interface{}{"component": "alert_router"}),
		metrics: m,
	}
}

// ChannelsEnabled is false in local-only mode.
func (r *Router) ChannelsEnabled() bool {
	return r.broker != nil
}

// Submit forwards rec and queues it when critical. Channel failures are
// logged; the local queue is updated regardless.
func (r *Router) Submit(ctx context.Context, rec *model.ResultRecord) {
	if rec == nil {
		return
	}

	if r.broker != nil {
		msg := Message(rec, r.config.Source)
		r.publish(ctx, r.config.ArchiveTopic, msg)
		if rec.Critical() {
			r.publish(ctx, r.config.AlertTopic, msg)
		}
	}

	if !rec.Critical() {
		return
	}

	r.mu.Lock()
	r.pending = append(r.pending, rec.Clone())
	n := len(r.pending)
	r.mu.Unlock()

	r.setGauge(n)
	r.logger.Info("critical result queued",
		"patient_id", rec.PatientID(),
		"test_type", rec.TestType(),
		"value", rec.Value(),
	)
}

func (r *Router) publish(ctx context.Context, topic string, msg messaging.Message) {
	ctx, cancel := context.WithTimeout(ctx, r.config.PublishTimeout)
	defer cancel()

	start := time.Now()
	err := r.broker.Publish(ctx, topic, msg)
	if r.metrics != nil {
		r.metrics.PublishLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
		r.metrics.ChannelPublishes.WithLabelValues(topic, metrics.Status(err)).Inc()
	}
	if err != nil {
		r.logger.Error(err, "failed to forward result", "topic", topic, "record_id", msg.Attr(payload.AttrRecordID))
	}
}

// Acknowledge removes every pending entry for patientID and returns how many
// were removed.
func (r *Router) Acknowledge(patientID string) int {
	r.mu.Lock()
	kept := r.pending[:0]
	for _, rec := range r.pending {
		if rec.PatientID() != patientID {
			kept = append(kept, rec)
		}
	}
	removed := len(r.pending) - len(kept)
	for i := len(kept); i < len(r.pending); i++ {
		r.pending[i] = nil
	}
	r.pending = kept
	n := len(kept)
	r.mu.Unlock()

	if removed > 0 {
		r.setGauge(n)
		if r.metrics != nil {
			r.metrics.AlertsAcked.Add(float64(removed))
		}
		r.logger.Info("alerts acknowledged", "patient_id", patientID, "removed", removed)
	}
	return removed
}

func (r *Router) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

func (r *Router) HasPending() bool {
	return r.PendingCount() > 0
}

// ListPending returns copies of the pending entries.
func (r *Router) ListPending() []*model.ResultRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*model.ResultRecord, len(r.pending))
	for i, rec := range r.pending {
		out[i] = rec.Clone()
	}
	return out
}

// Clear empties the queue and returns how many entries were dropped.
func (r *Router) Clear() int {
	r.mu.Lock()
	n := len(r.pending)
	r.pending = nil
	r.mu.Unlock()

	r.setGauge(0)
	if n > 0 {
		r.logger.Info("pending alerts cleared", "dropped", n)
	}
	return n
}

// GenerateTestAlerts submits count synthetic critical results.
func (r *Router) GenerateTestAlerts(ctx context.Context, count int) {
	for i := 1; i <= count; i++ {
		rec := model.FromPrimaryFields(
			fmt.Sprintf("TEST_PAT_%d", i),
			fmt.Sprintf("Patient Test %d", i),
			"Simulation",
			float64(100+i),
			"unit",
			true,
		)
		r.Submit(ctx, rec)
	}
}

// Close releases the broker.
func (r *Router) Close() error {
	if r.broker == nil {
		return nil
	}
	if err := r.broker.Close(); err != nil {
		return fmt.Errorf("failed to close broker: %w", err)
	}
	return nil
}

func (r *Router) setGauge(n int) {
	if r.metrics != nil {
		r.metrics.PendingAlerts.Set(float64(n))
	}
}

// Message builds the channel message for rec: the flat payload plus the
// out-of-band attributes.
func Message(rec *model.ResultRecord, source string) messaging.Message {
	return messaging.Message{
		Body: payload.Encode(payload.Fields{
			PatientName:    rec.PatientName(),
			TestType:       rec.TestType(),
			ResultValue:    rec.Value(),
			Unit:           rec.Unit(),
			ReferenceRange: rec.ReferenceRange(),
			Critical:       rec.Critical(),
		}),
		Attributes: map[string]string{
			payload.AttrRecordID:  rec.ID(),
			payload.AttrPatientID: rec.PatientID(),
			payload.AttrTestType:  rec.TestType(),
			payload.AttrValue:     payload.FormatFloat(rec.Value()),
			payload.AttrCritical:  strconv.FormatBool(rec.Critical()),
			payload.AttrTimestamp: rec.Timestamp().UTC().Format(time.RFC3339Nano),
			payload.AttrSource:    source,
		},
	}
}
