package results

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jwalitptl/labalert/internal/classification"
	"github.com/jwalitptl/labalert/internal/model"
	"github.com/jwalitptl/labalert/pkg/logger"
	"github.com/jwalitptl/labalert/pkg/metrics"
)

// LiveService keeps results in memory in insertion order. One lock guards
// the sequence and the critical count so statistics never see half an
// insert. A record id is stored once.
type LiveService struct {
	mu       sync.RWMutex
	records  []*model.ResultRecord
	ids      map[string]struct{}
	critical int

	criticalEvents atomic.Int64

	backend   Backend
	forwarder Forwarder
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewLiveService(opts Options) *LiveService {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &LiveService{
		backend:   BackendMemory,
		ids:       make(map[string]struct{}),
		forwarder: opts.Forwarder,
		logger:    opts.Logger.WithFields(map[string]interface{}{"component": "results"}),
		metrics:   opts.Metrics,
	}
}

func (s *LiveService) AddResult(ctx context.Context, patientName, testType string, value float64) string {
	return s.store(ctx, classify(patientName, testType, value))
}

func (s *LiveService) SubmitResult(ctx context.Context, rec *model.ResultRecord) string {
	if rec == nil {
		s.logger.Warn("rejected nil result record")
		return nilRecordSummary
	}
	return s.store(ctx, rec)
}

func (s *LiveService) store(ctx context.Context, rec *model.ResultRecord) string {
	if !s.insert(rec) {
		s.logger.Debug("duplicate result ignored", "record_id", rec.ID())
		return summary(rec, channelState(s.forwarder))
	}

	if s.metrics != nil {
		s.metrics.ResultsIngested.WithLabelValues(string(s.backend), strconv.FormatBool(rec.Critical())).Inc()
	}
	s.logger.Info("result stored",
		"record_id", rec.ID(),
		"patient_id", rec.PatientID(),
		"test_type", rec.TestType(),
		"critical", rec.Critical(),
	)

	if s.forwarder != nil {
		s.forwarder.Submit(ctx, rec)
	}
	return summary(rec, channelState(s.forwarder))
}

// insert reports false when a record with the same id is already stored.
func (s *LiveService) insert(rec *model.ResultRecord) bool {
	s.mu.Lock()
	if _, ok := s.ids[rec.ID()]; ok {
		s.mu.Unlock()
		return false
	}
	s.ids[rec.ID()] = struct{}{}
	s.records = append(s.records, rec.Clone())
	if rec.Critical() {
		s.critical++
	}
	s.mu.Unlock()

	if rec.Critical() {
		s.criticalEvents.Add(1)
	}
	return true
}

func (s *LiveService) PatientResults(_ context.Context, patientName string) []*model.ResultRecord {
	out := []*model.ResultRecord{}
	name := strings.TrimSpace(patientName)
	if name == "" {
		return out
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if strings.EqualFold(r.PatientName(), name) {
			out = append(out, r.Clone())
		}
	}
	return out
}

func (s *LiveService) CriticalResults(context.Context) []*model.ResultRecord {
	out := []*model.ResultRecord{}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.Critical() {
			out = append(out, r.Clone())
		}
	}
	return out
}

func (s *LiveService) RecentResults(_ context.Context, limit int) []*model.ResultRecord {
	if limit <= 0 {
		return []*model.ResultRecord{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.records) - limit
	if start < 0 {
		start = 0
	}
	return cloneAll(s.records[start:])
}

func (s *LiveService) Statistics(context.Context) model.StatisticsSnapshot {
	s.mu.RLock()
	values := make([]float64, len(s.records))
	for i, r := range s.records {
		values[i] = r.Value()
	}
	critical := s.critical
	s.mu.RUnlock()

	return snapshotOf(values, critical)
}

func (s *LiveService) TotalCount(context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *LiveService) CriticalCount(context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.critical
}

func (s *LiveService) PendingAlertCount(context.Context) int {
	return int(s.criticalEvents.Load())
}

func (s *LiveService) IsAlive(context.Context) bool {
	return true
}

func (s *LiveService) SystemStatus(ctx context.Context) string {
	return statusText(s.backend, s.Statistics(ctx), s.PendingAlertCount(ctx), s.forwarder, "in memory")
}

// classify builds a fully classified record for a patient known by name.
func classify(patientName, testType string, value float64) *model.ResultRecord {
	c := classification.Classify(testType, value)
	rec := model.FromNameFirst(patientName, testType, value, c.Unit, c.Critical)
	rec.SetReferenceRange(c.ReferenceRange)
	return rec
}
