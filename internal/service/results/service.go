// Package results stores classified lab results and answers queries and
// statistics over them. Backends share one contract and are chosen at
// startup with Open.
package results

import (
	"context"
	"fmt"
	"strings"

	"github.com/montanaflynn/stats"

	"github.com/jwalitptl/labalert/internal/model"
	"github.com/jwalitptl/labalert/internal/repository"
	"github.com/jwalitptl/labalert/pkg/logger"
	"github.com/jwalitptl/labalert/pkg/metrics"
)

// Service is the query/statistics contract. No method fails: bad input and
// lookup misses produce empty or neutral results.
type Service interface {
	// AddResult classifies and stores a measurement and returns a summary.
	AddResult(ctx context.Context, patientName, testType string, value float64) string
	// SubmitResult stores an already built record. Resubmitting a stored id
	// is a no-op: it is not counted or forwarded again.
	SubmitResult(ctx context.Context, rec *model.ResultRecord) string
	PatientResults(ctx context.Context, patientName string) []*model.ResultRecord
	CriticalResults(ctx context.Context) []*model.ResultRecord
	// RecentResults returns the last limit records, oldest first.
	RecentResults(ctx context.Context, limit int) []*model.ResultRecord
	Statistics(ctx context.Context) model.StatisticsSnapshot
	TotalCount(ctx context.Context) int
	CriticalCount(ctx context.Context) int
	// PendingAlertCount counts every critical result accepted by this service.
	// Acknowledgments do not lower it.
	PendingAlertCount(ctx context.Context) int
	IsAlive(ctx context.Context) bool
	SystemStatus(ctx context.Context) string
}

// Forwarder receives every record a service stores.
type Forwarder interface {
	Submit(ctx context.Context, rec *model.ResultRecord)
	ChannelsEnabled() bool
}

type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendStub     Backend = "stub"
	BackendPostgres Backend = "postgres"
)

// Options carries the collaborators a backend may need.
type Options struct {
	Forwarder  Forwarder
	Repository repository.ResultRepository
	Logger     *logger.Logger
	Metrics    *metrics.Metrics
}

// Open builds the backend named by backend.
func Open(backend Backend, opts Options) (Service, error) {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	switch backend {
	case BackendMemory, "":
		return NewLiveService(opts), nil
	case BackendStub:
		return NewStubService(opts)
	case BackendPostgres:
		if opts.Repository == nil {
			return nil, fmt.Errorf("postgres backend requires a result repository")
		}
		return NewArchiveService(opts.Repository, opts), nil
	default:
		return nil, fmt.Errorf("unknown results backend %q", backend)
	}
}

const nilRecordSummary = "ERROR: result record is nil"

func summary(rec *model.ResultRecord, channels string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Result recorded\n")
	fmt.Fprintf(&b, "Patient: %s (%s)\n", rec.PatientName(), rec.PatientID())
	fmt.Fprintf(&b, "Test: %s\n", rec.TestType())
	fmt.Fprintf(&b, "Value: %s (reference %s)\n", rec.FormattedValue(), rec.ReferenceRange())
	fmt.Fprintf(&b, "Status: %s\n", rec.Status())
	fmt.Fprintf(&b, "Channels: %s", channels)
	return b.String()
}

func channelState(f Forwarder) string {
	switch {
	case f == nil:
		return "not attached"
	case f.ChannelsEnabled():
		return "message sent"
	default:
		return "unavailable (local queue only)"
	}
}

func statusText(backend Backend, snap model.StatisticsSnapshot, pending int, f Forwarder, store string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Backend: %s\n", backend)
	fmt.Fprintf(&b, "Store: %s\n", store)
	fmt.Fprintf(&b, "Results: %d\n", snap.Total)
	fmt.Fprintf(&b, "Critical: %d\n", snap.Critical)
	fmt.Fprintf(&b, "Critical events: %d\n", pending)
	fmt.Fprintf(&b, "Average value: %.2f\n", snap.Mean)
	fmt.Fprintf(&b, "Channels: %s", channelState(f))
	return b.String()
}

// snapshotOf aggregates values; an empty input yields the zero snapshot.
func snapshotOf(values []float64, critical int) model.StatisticsSnapshot {
	snap := model.StatisticsSnapshot{Total: len(values), Critical: critical}
	if len(values) == 0 {
		return snap
	}
	snap.Mean, _ = stats.Mean(values)
	snap.Min, _ = stats.Min(values)
	snap.Max, _ = stats.Max(values)
	return snap
}

func cloneAll(recs []*model.ResultRecord) []*model.ResultRecord {
	out := make([]*model.ResultRecord, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}
