package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/labalert/internal/model"
	"github.com/jwalitptl/labalert/pkg/logger"
	"github.com/jwalitptl/labalert/pkg/messaging"
	"github.com/jwalitptl/labalert/pkg/messaging/memory"
	"github.com/jwalitptl/labalert/pkg/metrics"
	"github.com/jwalitptl/labalert/pkg/payload"
)

type mockBroker struct {
	mock.Mock
}

func (m *mockBroker) Publish(ctx context.Context, topic string, msg messaging.Message) error {
	return m.Called(ctx, topic, msg).Error(0)
}

func (m *mockBroker) Subscribe(ctx context.Context, topic string) (<-chan messaging.Message, error) {
	args := m.Called(ctx, topic)
	ch, _ := args.Get(0).(<-chan messaging.Message)
	return ch, args.Error(1)
}

func (m *mockBroker) Close() error {
	return m.Called().Error(0)
}

func critical(patientID string) *model.ResultRecord {
	return model.FromPrimaryFields(patientID, "Patient "+patientID, "Glucose", 1.45, "g/L", true)
}

func normal(patientID string) *model.ResultRecord {
	return model.FromPrimaryFields(patientID, "Patient "+patientID, "Tension", 120, "mmHg", false)
}

func TestSubmitNormalResultOnlyArchives(t *testing.T) {
	b := new(mockBroker)
	b.On("Publish", mock.Anything, DefaultArchiveTopic, mock.Anything).Return(nil).Once()

	r := NewRouter(b, Config{}, logger.Nop(), nil)
	r.Submit(context.Background(), normal("P1"))

	b.AssertExpectations(t)
	b.AssertNotCalled(t, "Publish", mock.Anything, DefaultAlertTopic, mock.Anything)
	assert.Equal(t, 0, r.PendingCount())
	assert.False(t, r.HasPending())
}

func TestSubmitCriticalResultArchivesAlertsAndQueues(t *testing.T) {
	var topics []string
	b := new(mockBroker)
	b.On("Publish", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { topics = append(topics, args.String(1)) }).
		Return(nil)

	r := NewRouter(b, Config{}, logger.Nop(), nil)
	r.Submit(context.Background(), critical("P1"))

	assert.Equal(t, []string{DefaultArchiveTopic, DefaultAlertTopic}, topics)
	assert.Equal(t, 1, r.PendingCount())
	assert.True(t, r.HasPending())
}

func TestSubmitQueuesEvenWhenChannelsFail(t *testing.T) {
	b := new(mockBroker)
	b.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	reg := prometheus.NewRegistry()
	m := metrics.New("test", reg)
	r := NewRouter(b, Config{}, logger.Nop(), m)

	assert.NotPanics(t, func() { r.Submit(context.Background(), critical("P1")) })
	assert.Equal(t, 1, r.PendingCount())
	b.AssertNumberOfCalls(t, "Publish", 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChannelPublishes.WithLabelValues(DefaultAlertTopic, "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PendingAlerts))
}

func TestSubmitNil(t *testing.T) {
	b := new(mockBroker)
	r := NewRouter(b, Config{}, logger.Nop(), nil)

	r.Submit(context.Background(), nil)

	b.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 0, r.PendingCount())
}

func TestLocalOnlyMode(t *testing.T) {
	r := NewRouter(nil, Config{}, nil, nil)
	assert.False(t, r.ChannelsEnabled())

	r.Submit(context.Background(), critical("P1"))
	r.Submit(context.Background(), normal("P2"))

	assert.Equal(t, 1, r.PendingCount())
	assert.NoError(t, r.Close())
}

func TestPublishIsBoundedByTimeout(t *testing.T) {
	b := memory.NewBroker(1)
	defer b.Close()
	// Subscriber that never reads: the second publish has to wait.
	_, err := b.Subscribe(context.Background(), DefaultArchiveTopic)
	require.NoError(t, err)

	r := NewRouter(b, Config{PublishTimeout: 20 * time.Millisecond}, logger.Nop(), nil)

	done := make(chan struct{})
	go func() {
		r.Submit(context.Background(), normal("P1"))
		r.Submit(context.Background(), critical("P2"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("submit blocked past the publish timeout")
	}
	assert.Equal(t, 1, r.PendingCount())
}

func TestAcknowledgeRemovesAllEntriesForPatient(t *testing.T) {
	r := NewRouter(nil, Config{}, logger.Nop(), nil)
	ctx := context.Background()
	r.Submit(ctx, critical("P1"))
	r.Submit(ctx, critical("P2"))
	r.Submit(ctx, critical("P1"))

	removed := r.Acknowledge("P1")

	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, r.PendingCount())
	assert.Equal(t, "P2", r.ListPending()[0].PatientID())
}

func TestAcknowledgeIsExactAndCaseSensitive(t *testing.T) {
	r := NewRouter(nil, Config{}, logger.Nop(), nil)
	r.Submit(context.Background(), critical("P1"))

	assert.Equal(t, 0, r.Acknowledge("p1"))
	assert.Equal(t, 0, r.Acknowledge("P"))
	assert.Equal(t, 0, r.Acknowledge("unknown"))
	assert.Equal(t, 1, r.PendingCount())

	assert.Equal(t, 1, r.Acknowledge("P1"))
	assert.Equal(t, 0, r.Acknowledge("P1"))
}

func TestListPendingIsSnapshot(t *testing.T) {
	r := NewRouter(nil, Config{}, logger.Nop(), nil)
	r.Submit(context.Background(), critical("P1"))

	snapshot := r.ListPending()
	snapshot[0].SetPatientID("tampered")
	r.Submit(context.Background(), critical("P2"))
	r.Acknowledge("P1")

	assert.Len(t, snapshot, 1)
	assert.Equal(t, "P2", r.ListPending()[0].PatientID())
	assert.Equal(t, 0, r.Acknowledge("tampered"))
}

func TestQueueDoesNotAliasSubmittedRecord(t *testing.T) {
	r := NewRouter(nil, Config{}, logger.Nop(), nil)
	rec := critical("P1")
	r.Submit(context.Background(), rec)

	rec.SetPatientID("P9")
	assert.Equal(t, 1, r.Acknowledge("P1"))
}

func TestClear(t *testing.T) {
	r := NewRouter(nil, Config{}, logger.Nop(), nil)
	r.GenerateTestAlerts(context.Background(), 3)
	require.Equal(t, 3, r.PendingCount())

	assert.Equal(t, 3, r.Clear())
	assert.Equal(t, 0, r.PendingCount())
	assert.Equal(t, 0, r.Clear())
}

func TestGenerateTestAlerts(t *testing.T) {
	r := NewRouter(nil, Config{}, logger.Nop(), nil)
	r.GenerateTestAlerts(context.Background(), 2)

	pending := r.ListPending()
	require.Len(t, pending, 2)
	assert.Equal(t, "TEST_PAT_1", pending[0].PatientID())
	assert.Equal(t, "Patient Test 2", pending[1].PatientName())
	assert.Equal(t, "Simulation", pending[1].TestType())
	assert.Equal(t, 102.0, pending[1].Value())
	assert.True(t, pending[1].Critical())
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRouter(memory.NewBroker(1), Config{}, logger.Nop(), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			r.Submit(ctx, critical(fmt.Sprintf("P%d", i%5)))
		}(i)
		go func() {
			defer wg.Done()
			_ = r.ListPending()
			_ = r.PendingCount()
		}()
		go func(i int) {
			defer wg.Done()
			r.Acknowledge(fmt.Sprintf("P%d", (i+1)%5))
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, r.PendingCount(), 50)
	assert.Len(t, r.ListPending(), r.PendingCount())
}

func TestMessage(t *testing.T) {
	rec := critical("P1")
	msg := Message(rec, "lab-a")

	decoded := payload.Decode(msg.Body)
	assert.Equal(t, rec.PatientName(), decoded.PatientName)
	assert.Equal(t, 1.45, decoded.ResultValue)
	assert.True(t, decoded.Critical)
	assert.Equal(t, "0.70-1.10 g/L", decoded.ReferenceRange)

	assert.Equal(t, rec.ID(), msg.Attr(payload.AttrRecordID))
	assert.Equal(t, "P1", msg.Attr(payload.AttrPatientID))
	assert.Equal(t, "true", msg.Attr(payload.AttrCritical))
	assert.Equal(t, "1.45", msg.Attr(payload.AttrValue))
	assert.Equal(t, "lab-a", msg.Attr(payload.AttrSource))
}

func TestCloseClosesBroker(t *testing.T) {
	b := new(mockBroker)
	b.On("Close").Return(errors.New("already closed"))

	r := NewRouter(b, Config{}, logger.Nop(), nil)
	assert.Error(t, r.Close())
	b.AssertExpectations(t)
}
