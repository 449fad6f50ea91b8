package results

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/labalert/internal/model"
)

func TestStubIsSeeded(t *testing.T) {
	ctx := context.Background()
	s, err := NewStubService(Options{})
	require.NoError(t, err)

	assert.Equal(t, 4, s.TotalCount(ctx))
	assert.Equal(t, 2, s.CriticalCount(ctx))

	sophie := s.PatientResults(ctx, "sophie martin")
	require.Len(t, sophie, 1)
	assert.Equal(t, 39.2, sophie[0].Value())
	assert.Equal(t, "36.5-37.5 °C", sophie[0].ReferenceRange())
	assert.Equal(t, "Fever, recheck in 2 hours", sophie[0].DoctorNotes())

	snap := s.Statistics(ctx)
	assert.InDelta(t, (1.30+120+1.80+39.2)/4, snap.Mean, 1e-9)
}

func TestStubNeverForwards(t *testing.T) {
	ctx := context.Background()
	f := &recordingForwarder{enabled: true}
	s, err := NewStubService(Options{Forwarder: f})
	require.NoError(t, err)

	summary := s.AddResult(ctx, "New Patient", "Glucose", 2)

	assert.Empty(t, f.records)
	assert.Contains(t, summary, "[simulation]")
	assert.Equal(t, 5, s.TotalCount(ctx))
	assert.Equal(t, 3, s.CriticalCount(ctx))
}

func TestStubSubmitNil(t *testing.T) {
	s, err := NewStubService(Options{})
	require.NoError(t, err)
	assert.Equal(t, nilRecordSummary, s.SubmitResult(context.Background(), nil))

	rec := model.FromPrimaryFields("P9", "X", "Glucose", 1, "g/L", false)
	assert.Contains(t, s.SubmitResult(context.Background(), rec), "[simulation]")
}

func TestStubStatus(t *testing.T) {
	s, err := NewStubService(Options{})
	require.NoError(t, err)
	status := s.SystemStatus(context.Background())
	assert.Contains(t, status, "Backend: stub")
	assert.Contains(t, status, "simulation")
}

func TestLoadSeedRejectsBadYAML(t *testing.T) {
	_, err := loadSeed([]byte("results: [unterminated"))
	assert.Error(t, err)
}

// Both in-memory backends answer the shared contract the same way.
func TestBackendsShareContract(t *testing.T) {
	stub, err := NewStubService(Options{})
	require.NoError(t, err)
	backends := map[string]Service{
		"memory": NewLiveService(Options{}),
		"stub":   stub,
	}

	for name, svc := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			total := svc.TotalCount(ctx)
			critical := svc.CriticalCount(ctx)

			svc.AddResult(ctx, "Contract", "Creatinine", 14)
			svc.AddResult(ctx, "Contract", "Creatinine", 8)

			assert.Equal(t, total+2, svc.TotalCount(ctx))
			assert.Equal(t, critical+1, svc.CriticalCount(ctx))
			assert.Len(t, svc.PatientResults(ctx, "contract"), 2)
			assert.Len(t, svc.RecentResults(ctx, 2), 2)
			assert.Empty(t, svc.RecentResults(ctx, 0))
			assert.True(t, svc.IsAlive(ctx))
		})
	}
}
