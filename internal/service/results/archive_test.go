package results

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/labalert/internal/model"
)

// fakeRepo is an in-memory ResultRepository returning newest first, like
// the postgres one.
type fakeRepo struct {
	mu   sync.Mutex
	rows []*model.ResultRecord
	err  error
}

func newFakeRepo() *fakeRepo { return &fakeRepo{} }

func (f *fakeRepo) Insert(_ context.Context, rec *model.ResultRecord) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	for _, r := range f.rows {
		if r.ID() == rec.ID() {
			return false, nil
		}
	}
	f.rows = append(f.rows, rec.Clone())
	return true, nil
}

func (f *fakeRepo) newestFirst(keep func(*model.ResultRecord) bool) ([]*model.ResultRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.ResultRecord
	for i := len(f.rows) - 1; i >= 0; i-- {
		if keep(f.rows[i]) {
			out = append(out, f.rows[i].Clone())
		}
	}
	return out, nil
}

func (f *fakeRepo) SelectRecent(_ context.Context, limit int) ([]*model.ResultRecord, error) {
	all, err := f.newestFirst(func(*model.ResultRecord) bool { return true })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, err
}

func (f *fakeRepo) SelectByPatient(_ context.Context, id string) ([]*model.ResultRecord, error) {
	return f.newestFirst(func(r *model.ResultRecord) bool { return r.PatientID() == id })
}

func (f *fakeRepo) SelectByPatientName(_ context.Context, name string) ([]*model.ResultRecord, error) {
	return f.newestFirst(func(r *model.ResultRecord) bool { return strings.EqualFold(r.PatientName(), name) })
}

func (f *fakeRepo) SelectCritical(context.Context) ([]*model.ResultRecord, error) {
	return f.newestFirst(func(r *model.ResultRecord) bool { return r.Critical() })
}

func (f *fakeRepo) Count(ctx context.Context) (int, error) {
	all, err := f.newestFirst(func(*model.ResultRecord) bool { return true })
	return len(all), err
}

func (f *fakeRepo) CountCritical(ctx context.Context) (int, error) {
	crit, err := f.SelectCritical(ctx)
	return len(crit), err
}

func (f *fakeRepo) Stats(ctx context.Context) (model.StatisticsSnapshot, error) {
	all, err := f.newestFirst(func(*model.ResultRecord) bool { return true })
	if err != nil {
		return model.StatisticsSnapshot{}, err
	}
	values := make([]float64, len(all))
	critical := 0
	for i, r := range all {
		values[i] = r.Value()
		if r.Critical() {
			critical++
		}
	}
	sort.Float64s(values)
	return snapshotOf(values, critical), nil
}

func (f *fakeRepo) DeleteOlderThan(context.Context, int) (int64, error) { return 0, f.err }

func (f *fakeRepo) Ping(context.Context) error { return f.err }

func TestArchiveServiceStoresAndQueries(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	fwd := &recordingForwarder{enabled: true}
	s := NewArchiveService(repo, Options{Forwarder: fwd})

	s.AddResult(ctx, "Ali", "Glucose", 1.45)
	s.AddResult(ctx, "Fatima", "Tension", 120)
	s.AddResult(ctx, "Sophie", "Température", 39.2)

	assert.Equal(t, 3, s.TotalCount(ctx))
	assert.Equal(t, 2, s.CriticalCount(ctx))
	assert.Equal(t, 2, s.PendingAlertCount(ctx))
	assert.Len(t, fwd.records, 3)

	recent := s.RecentResults(ctx, 2)
	require.Len(t, recent, 2)
	assert.Equal(t, "Fatima", recent[0].PatientName())
	assert.Equal(t, "Sophie", recent[1].PatientName())

	crit := s.CriticalResults(ctx)
	require.Len(t, crit, 2)
	assert.Equal(t, "Ali", crit[0].PatientName())

	assert.Len(t, s.PatientResults(ctx, "ALI"), 1)
	assert.Empty(t, s.PatientResults(ctx, " "))
	assert.Empty(t, s.RecentResults(ctx, -1))

	snap := s.Statistics(ctx)
	assert.Equal(t, 3, snap.Total)
	assert.InDelta(t, (1.45+120+39.2)/3, snap.Mean, 1e-9)
	assert.Contains(t, s.SystemStatus(ctx), "Store: reachable")
}

func TestArchiveServiceSubmitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	fwd := &recordingForwarder{enabled: true}
	s := NewArchiveService(repo, Options{Forwarder: fwd})
	rec := model.FromPrimaryFields("P1", "Ali", "Glucose", 1.45, "g/L", true)

	first := s.SubmitResult(ctx, rec)
	again := s.SubmitResult(ctx, rec)

	assert.Equal(t, first, again)
	assert.Equal(t, 1, s.TotalCount(ctx))
	assert.Equal(t, 1, s.CriticalCount(ctx))
	assert.Equal(t, 1, s.PendingAlertCount(ctx))
	assert.Len(t, fwd.records, 1)
	assert.Equal(t, nilRecordSummary, s.SubmitResult(ctx, nil))
}

func TestArchiveServiceDegradesOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.err = errors.New("connection refused")
	fwd := &recordingForwarder{enabled: true}
	s := NewArchiveService(repo, Options{Forwarder: fwd})

	summary := s.AddResult(ctx, "Ali", "Glucose", 2)

	assert.Contains(t, summary, "result store unavailable")
	assert.Empty(t, fwd.records)
	assert.Equal(t, 0, s.PendingAlertCount(ctx))
	assert.Empty(t, s.RecentResults(ctx, 5))
	assert.NotNil(t, s.CriticalResults(ctx))
	assert.Empty(t, s.PatientResults(ctx, "Ali"))
	assert.Equal(t, model.StatisticsSnapshot{}, s.Statistics(ctx))
	assert.Equal(t, 0, s.TotalCount(ctx))
	assert.Equal(t, 0, s.CriticalCount(ctx))
	assert.True(t, s.IsAlive(ctx))
	assert.Contains(t, s.SystemStatus(ctx), "unreachable: connection refused")
}
