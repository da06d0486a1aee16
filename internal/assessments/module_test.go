package assessments

import (
	"context"
	"errors"
	"sync"
	"testing"

	"vehicle_inspection_backend/internal/adapters/storage"
	"vehicle_inspection_backend/internal/assessments/domain"
	"vehicle_inspection_backend/internal/assessments/repository"
	"vehicle_inspection_backend/internal/detection"
	"vehicle_inspection_backend/internal/events"
	"vehicle_inspection_backend/platform/lock"
	"vehicle_inspection_backend/platform/logger"
	"vehicle_inspection_backend/platform/validator"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeScheduler struct {
	mu     sync.Mutex
	err    error
	queued []domain.Phase
}

func (f *fakeScheduler) EnqueueAnalyzePhase(_ context.Context, _ uuid.UUID, phase domain.Phase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = append(f.queued, phase)
	return f.err
}

func newTestModule(t *testing.T, bus events.Bus) *Module {
	t.Helper()
	m, err := NewModule(Deps{
		Repo:     repository.NewMemoryRepository(),
		Analyzer: detection.NewRegistry(logger.Nop()),
		Store:    storage.NewMemoryStore(),
		Locker:   lock.NewKeyedMutex(),
		Bus:      bus,
		Val:      validator.New(),
		Log:      logger.Nop(),
	})
	require.NoError(t, err)
	return m
}

func TestAutoAnalysisQueuesCompletedPhases(t *testing.T) {
	bus := events.NewInMemoryBus(logger.Nop())
	m := newTestModule(t, bus)
	sched := &fakeScheduler{}
	m.EnableAutoAnalysis(bus, sched)

	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, bus.PublishSync(ctx, events.PhotoUploaded{AssessmentID: id, Phase: "pickup", PhaseComplete: false}))
	require.NoError(t, bus.PublishSync(ctx, events.PhotoUploaded{AssessmentID: id, Phase: "pickup", PhaseComplete: true}))
	require.NoError(t, bus.PublishSync(ctx, events.PhaseAnalyzed{AssessmentID: id, Phase: "pickup"}))

	require.Equal(t, []domain.Phase{domain.PhasePickup}, sched.queued)

	sched.err = errors.New("redis down")
	err := bus.PublishSync(ctx, events.PhotoUploaded{AssessmentID: id, Phase: "return", PhaseComplete: true})
	require.ErrorContains(t, err, "redis down")
}

func TestHandleWithoutSchedulerIsNoop(t *testing.T) {
	m := newTestModule(t, events.NewInMemoryBus(logger.Nop()))
	err := m.Handle(context.Background(), events.PhotoUploaded{AssessmentID: uuid.New(), Phase: "pickup", PhaseComplete: true})
	require.NoError(t, err)
	require.Equal(t, "assessments", m.Name())
	require.NotNil(t, m.Service())
}
