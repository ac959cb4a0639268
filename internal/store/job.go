package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mealweek/api/internal/model"
)

// Jobs is the single-writer state machine around GenerationJob rows. Status
// never moves backwards and terminal rows reject all further writes; there is
// deliberately no raw update method.
type Jobs interface {
	Create(ctx context.Context, job *model.GenerationJob) error
	Get(ctx context.Context, id uuid.UUID) (*model.GenerationJob, error)
	// Transition advances the status from 'from' to 'to', updating the
	// progress message. Re-applying a transition the job has already made is
	// a no-op, which makes stage-boundary writes idempotent per job.
	Transition(ctx context.Context, id uuid.UUID, from, to model.JobStatus, progress string) error
	// Fail moves any non-terminal job to failed with a user-safe message and
	// an optional structured debug payload. Debug data is never cleared.
	Fail(ctx context.Context, id uuid.UUID, message string, debug []byte) error
	// Complete moves a job in 'saving' to completed and records the plan id.
	Complete(ctx context.Context, id uuid.UUID, planID uuid.UUID) error
}

type JobStore struct {
	db *gorm.DB
}

var _ Jobs = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) Jobs {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, job *model.GenerationJob) error {
	if err := s.getDB(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("creating generation job: %w", err)
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*model.GenerationJob, error) {
	var job model.GenerationJob
	result := s.getDB(ctx).First(&job, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying generation job: %w", result.Error)
	}
	return &job, nil
}

func (s *JobStore) Transition(ctx context.Context, id uuid.UUID, from, to model.JobStatus, progress string) error {
	if to.Rank() <= from.Rank() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if from.Terminal() {
		return ErrJobTerminal
	}

	result := s.getDB(ctx).Model(&model.GenerationJob{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "progress_message": progress})
	if result.Error != nil {
		return fmt.Errorf("transitioning job: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// The guarded update missed: the job is not in 'from'. Distinguish an
	// already-applied transition (re-delivery) from a genuine violation.
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return ErrJobTerminal
	}
	if job.Status.Rank() >= to.Rank() {
		return nil
	}
	return fmt.Errorf("%w: job is %s, expected %s", ErrInvalidTransition, job.Status, from)
}

func (s *JobStore) Fail(ctx context.Context, id uuid.UUID, message string, debug []byte) error {
	updates := map[string]interface{}{
		"status":        model.JobStatusFailed,
		"error_message": message,
	}
	if len(debug) > 0 {
		updates["debug_data"] = debug
	}

	result := s.getDB(ctx).Model(&model.GenerationJob{}).
		Where("id = ? AND status NOT IN ?", id, []model.JobStatus{model.JobStatusCompleted, model.JobStatusFailed}).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failing job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrJobTerminal
	}
	return nil
}

func (s *JobStore) Complete(ctx context.Context, id uuid.UUID, planID uuid.UUID) error {
	result := s.getDB(ctx).Model(&model.GenerationJob{}).
		Where("id = ? AND status NOT IN ?", id, []model.JobStatus{model.JobStatusCompleted, model.JobStatusFailed}).
		Updates(map[string]interface{}{
			"status":           model.JobStatusCompleted,
			"progress_message": "Your meal plan is ready",
			"result_plan_id":   planID,
		})
	if result.Error != nil {
		return fmt.Errorf("completing job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Re-delivery after completion is fine as long as the outcome matches.
		job, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if job.Status == model.JobStatusCompleted && job.ResultPlanID != nil && *job.ResultPlanID == planID {
			return nil
		}
		return ErrJobTerminal
	}
	return nil
}

func (s *JobStore) getDB(ctx context.Context) *gorm.DB {
	if tx := FromContext(ctx); tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
