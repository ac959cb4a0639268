package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/mealweek/api/internal/model"
	"github.com/mealweek/api/internal/pipeline"
	"github.com/mealweek/api/internal/store"
)

// PlanWorker runs the primary generation pipeline for queued jobs. The task
// has MaxRetry(0): a failed job stays failed, and retry means a new job. The
// step ledger absorbs substrate-level redelivery.
type PlanWorker struct {
	store        store.Store
	orchestrator *pipeline.Orchestrator
	logger       *zap.SugaredLogger
}

func NewPlanWorker(st store.Store, orchestrator *pipeline.Orchestrator) *PlanWorker {
	return &PlanWorker{
		store:        st,
		orchestrator: orchestrator,
		logger:       zap.S().Named("plan_worker"),
	}
}

func (w *PlanWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload struct {
		JobID  string `json:"job_id"`
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid plan task payload: %w", err)
	}
	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", payload.JobID, err)
	}

	job, err := w.store.Jobs().Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("loading job %s: %w", jobID, err)
	}
	if job.Status.Terminal() {
		w.logger.Infow("skipping terminal job", "job_id", jobID, "status", job.Status)
		return nil
	}

	var opts model.PlanOptions
	if len(job.Options) > 0 {
		if err := json.Unmarshal(job.Options, &opts); err != nil {
			return fmt.Errorf("decoding job options: %w", err)
		}
	}

	w.logger.Infow("processing plan job", "job_id", jobID, "user_id", payload.UserID)
	if _, err := w.orchestrator.Run(ctx, jobID, payload.UserID, &opts); err != nil {
		// the orchestrator already moved the job to failed
		return fmt.Errorf("pipeline run for job %s: %w", jobID, err)
	}
	return nil
}
