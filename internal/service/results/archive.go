package results

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jwalitptl/labalert/internal/model"
	"github.com/jwalitptl/labalert/internal/repository"
	"github.com/jwalitptl/labalert/pkg/logger"
	"github.com/jwalitptl/labalert/pkg/metrics"
)

// ArchiveService answers the same contract from the relational store. Store
// failures are logged and reported as empty results; SystemStatus says
// whether the store is reachable.
type ArchiveService struct {
	repo           repository.ResultRepository
	forwarder      Forwarder
	logger         *logger.Logger
	metrics        *metrics.Metrics
	criticalEvents atomic.Int64
}

func NewArchiveService(repo repository.ResultRepository, opts Options) *ArchiveService {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &ArchiveService{
		repo:      repo,
		forwarder: opts.Forwarder,
		logger:    opts.Logger.WithFields(map[string]interface{}{"component": "results", "backend": "postgres"}),
		metrics:   opts.Metrics,
	}
}

func (s *ArchiveService) AddResult(ctx context.Context, patientName, testType string, value float64) string {
	return s.store(ctx, classify(patientName, testType, value))
}

func (s *ArchiveService) SubmitResult(ctx context.Context, rec *model.ResultRecord) string {
	if rec == nil {
		s.logger.Warn("rejected nil result record")
		return nilRecordSummary
	}
	return s.store(ctx, rec)
}

func (s *ArchiveService) store(ctx context.Context, rec *model.ResultRecord) string {
	start := time.Now()
	inserted, err := s.repo.Insert(ctx, rec)
	s.observe("insert", start, err)
	if err != nil {
		s.logger.Error(err, "failed to store result", "record_id", rec.ID())
		return "ERROR: result store unavailable, result not recorded"
	}
	if !inserted {
		s.logger.Debug("duplicate result ignored", "record_id", rec.ID())
		return summary(rec, channelState(s.forwarder))
	}

	if rec.Critical() {
		s.criticalEvents.Add(1)
	}
	if s.metrics != nil {
		s.metrics.ResultsIngested.WithLabelValues(string(BackendPostgres), strconv.FormatBool(rec.Critical())).Inc()
	}
	if s.forwarder != nil {
		s.forwarder.Submit(ctx, rec)
	}
	return summary(rec, channelState(s.forwarder))
}

func (s *ArchiveService) PatientResults(ctx context.Context, patientName string) []*model.ResultRecord {
	name := strings.TrimSpace(patientName)
	if name == "" {
		return []*model.ResultRecord{}
	}
	return s.list("select_by_patient_name", func() ([]*model.ResultRecord, error) {
		return s.repo.SelectByPatientName(ctx, name)
	})
}

func (s *ArchiveService) CriticalResults(ctx context.Context) []*model.ResultRecord {
	return s.list("select_critical", func() ([]*model.ResultRecord, error) {
		return s.repo.SelectCritical(ctx)
	})
}

func (s *ArchiveService) RecentResults(ctx context.Context, limit int) []*model.ResultRecord {
	if limit <= 0 {
		return []*model.ResultRecord{}
	}
	return s.list("select_recent", func() ([]*model.ResultRecord, error) {
		return s.repo.SelectRecent(ctx, limit)
	})
}

// list runs a newest-first query and returns its rows in insertion order.
func (s *ArchiveService) list(op string, query func() ([]*model.ResultRecord, error)) []*model.ResultRecord {
	start := time.Now()
	recs, err := query()
	s.observe(op, start, err)
	if err != nil {
		s.logger.Error(err, "result query failed", "operation", op)
		return []*model.ResultRecord{}
	}

	out := make([]*model.ResultRecord, len(recs))
	for i, r := range recs {
		out[len(recs)-1-i] = r
	}
	return out
}

func (s *ArchiveService) Statistics(ctx context.Context) model.StatisticsSnapshot {
	start := time.Now()
	snap, err := s.repo.Stats(ctx)
	s.observe("stats", start, err)
	if err != nil {
		s.logger.Error(err, "failed to compute statistics")
		return model.StatisticsSnapshot{}
	}
	return snap
}

func (s *ArchiveService) TotalCount(ctx context.Context) int {
	n, err := s.repo.Count(ctx)
	if err != nil {
		s.logger.Error(err, "failed to count results")
		return 0
	}
	return n
}

func (s *ArchiveService) CriticalCount(ctx context.Context) int {
	n, err := s.repo.CountCritical(ctx)
	if err != nil {
		s.logger.Error(err, "failed to count critical results")
		return 0
	}
	return n
}

func (s *ArchiveService) PendingAlertCount(context.Context) int {
	return int(s.criticalEvents.Load())
}

func (s *ArchiveService) IsAlive(context.Context) bool {
	return true
}

func (s *ArchiveService) SystemStatus(ctx context.Context) string {
	store := "reachable"
	if err := s.repo.Ping(ctx); err != nil {
		store = "unreachable: " + err.Error()
	}
	return statusText(BackendPostgres, s.Statistics(ctx), s.PendingAlertCount(ctx), s.forwarder, store)
}

func (s *ArchiveService) observe(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.DatabaseOperations.WithLabelValues(op, metrics.Status(err)).Inc()
	s.metrics.DatabaseLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
