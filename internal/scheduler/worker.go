package scheduler

import (
	"context"
	"fmt"

	"vehicle_inspection_backend/internal/assessments/domain"
	"vehicle_inspection_backend/platform/apperr"
	"vehicle_inspection_backend/platform/config"
	"vehicle_inspection_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// PhaseAnalyzer runs one phase analysis. The assessments service satisfies it.
type PhaseAnalyzer interface {
	AnalyzePhase(ctx context.Context, id uuid.UUID, phase domain.Phase) (domain.Assessment, error)
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	analyzer PhaseAnalyzer
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, analyzer PhaseAnalyzer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 4
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		analyzer: analyzer,
		log:      log,
	}

	mux.HandleFunc(TaskAnalyzePhase, w.handleAnalyzePhase)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleAnalyzePhase lets asynq retry provider failures. Requests the
// workflow no longer accepts, such as a phase that moved on, are dropped.
func (w *Worker) handleAnalyzePhase(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAnalyzePhasePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	id, err := uuid.Parse(payload.AssessmentID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	phase, err := domain.ParsePhase(payload.Phase)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	a, err := w.analyzer.AnalyzePhase(ctx, id, phase)
	switch apperr.GetKind(err) {
	case apperr.KindUnknown:
		if err != nil {
			return err
		}
	case apperr.KindNotFound, apperr.KindPrecondition, apperr.KindValidation:
		w.log.Info("queued analysis skipped", "assessmentId", id, "phase", phase, "reason", err.Error())
		return nil
	default:
		return err
	}

	w.log.Info("queued analysis finished", "assessmentId", id, "phase", phase, "status", a.Status)
	return nil
}
