package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Ingestion
	ResultsIngested *prometheus.CounterVec
	PendingAlerts   prometheus.Gauge
	AlertsAcked     prometheus.Counter

	// Channel forwarding
	ChannelPublishes *prometheus.CounterVec
	PublishLatency   *prometheus.HistogramVec

	// Archive consumers
	MessagesConsumed  *prometheus.CounterVec
	NotificationsSent *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
	DatabaseLatency    *prometheus.HistogramVec
}

// New creates the application metrics and registers them with reg. A nil
// registerer leaves them unregistered.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ResultsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_ingested_total",
			Help:      "Total number of results stored, by backend and criticality",
		}, []string{"backend", "critical"}),
		PendingAlerts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_alerts",
			Help:      "Critical results awaiting acknowledgment",
		}),
		AlertsAcked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_acknowledged_total",
			Help:      "Total number of pending alerts removed by acknowledgment",
		}),

		ChannelPublishes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_publishes_total",
			Help:      "Publishes to the archive and alert channels",
		}, []string{"channel", "status"}),
		PublishLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "channel_publish_duration_seconds",
			Help:      "Duration of channel publishes",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"channel"}),

		MessagesConsumed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Messages handled by the consumers, by topic and outcome",
		}, []string{"topic", "status"}),
		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Critical alert notifications, by outcome",
		}, []string{"status"}),

		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
		DatabaseLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "database_operation_duration_seconds",
			Help:      "Duration of database operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
	}
}

// Status turns an error into the status label value.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
