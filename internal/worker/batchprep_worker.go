package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/mealweek/api/internal/pipeline"
)

// BatchPrepWorker runs the secondary pipeline. Its asynq server is started
// with a fixed low concurrency, which is what bounds batch generation
// system-wide.
type BatchPrepWorker struct {
	orchestrator *pipeline.Orchestrator
	logger       *zap.SugaredLogger
}

func NewBatchPrepWorker(orchestrator *pipeline.Orchestrator) *BatchPrepWorker {
	return &BatchPrepWorker{
		orchestrator: orchestrator,
		logger:       zap.S().Named("batchprep_worker"),
	}
}

func (w *BatchPrepWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload struct {
		PlanID string `json:"plan_id"`
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid batch prep payload: %w", err)
	}
	planID, err := uuid.Parse(payload.PlanID)
	if err != nil {
		return fmt.Errorf("invalid plan id %q: %w", payload.PlanID, err)
	}

	w.logger.Infow("processing batch prep", "plan_id", planID)
	return w.orchestrator.RunBatchPrep(ctx, planID)
}
