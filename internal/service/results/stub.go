package results

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jwalitptl/labalert/internal/model"
)

//go:embed seed.yaml
var seedFixture []byte

type seedRecord struct {
	PatientID   string  `yaml:"patient_id"`
	PatientName string  `yaml:"patient_name"`
	TestType    string  `yaml:"test_type"`
	Value       float64 `yaml:"value"`
	Unit        string  `yaml:"unit"`
	Critical    bool    `yaml:"critical"`
	DoctorNotes string  `yaml:"doctor_notes"`
}

type seedFile struct {
	Results []seedRecord `yaml:"results"`
}

// StubService is the test double backend: an in-memory store preloaded with
// a fixed fixture that never forwards to the channels.
type StubService struct {
	*LiveService
}

func NewStubService(opts Options) (*StubService, error) {
	seed, err := loadSeed(seedFixture)
	if err != nil {
		return nil, err
	}

	opts.Forwarder = nil
	live := NewLiveService(opts)
	live.backend = BackendStub
	for _, rec := range seed {
		live.insert(rec)
	}
	return &StubService{LiveService: live}, nil
}

func loadSeed(data []byte) ([]*model.ResultRecord, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed fixture: %w", err)
	}

	out := make([]*model.ResultRecord, 0, len(f.Results))
	for _, r := range f.Results {
		rec := model.FromPrimaryFields(r.PatientID, r.PatientName, r.TestType, r.Value, r.Unit, r.Critical)
		rec.SetDoctorNotes(r.DoctorNotes)
		out = append(out, rec)
	}
	return out, nil
}

func (s *StubService) AddResult(ctx context.Context, patientName, testType string, value float64) string {
	return "[simulation] " + s.LiveService.AddResult(ctx, patientName, testType, value)
}

func (s *StubService) SubmitResult(ctx context.Context, rec *model.ResultRecord) string {
	if rec == nil {
		return s.LiveService.SubmitResult(ctx, rec)
	}
	return "[simulation] " + s.LiveService.SubmitResult(ctx, rec)
}

func (s *StubService) SystemStatus(ctx context.Context) string {
	return statusText(BackendStub, s.Statistics(ctx), s.PendingAlertCount(ctx), nil, "seeded fixture (simulation)")
}
