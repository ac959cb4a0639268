package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mealweek/api/internal/model"
)

// Steps is the per-job idempotency ledger. MarkCompleted is first-writer-wins:
// under at-least-once delivery two runners may race on the same step, and the
// ledger keeps whichever result landed first.
type Steps interface {
	Get(ctx context.Context, jobID uuid.UUID, step string) (*model.PipelineStep, error)
	MarkCompleted(ctx context.Context, jobID uuid.UUID, step string, result []byte) error
}

type StepStore struct {
	db *gorm.DB
}

var _ Steps = (*StepStore)(nil)

func NewStepStore(db *gorm.DB) Steps {
	return &StepStore{db: db}
}

func (s *StepStore) Get(ctx context.Context, jobID uuid.UUID, step string) (*model.PipelineStep, error) {
	var row model.PipelineStep
	result := s.getDB(ctx).First(&row, "job_id = ? AND step_name = ?", jobID, step)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying pipeline step: %w", result.Error)
	}
	return &row, nil
}

func (s *StepStore) MarkCompleted(ctx context.Context, jobID uuid.UUID, step string, result []byte) error {
	row := model.PipelineStep{
		JobID:       jobID,
		StepName:    step,
		Result:      result,
		CompletedAt: time.Now(),
	}
	err := s.getDB(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("recording pipeline step: %w", err)
	}
	return nil
}

func (s *StepStore) getDB(ctx context.Context) *gorm.DB {
	if tx := FromContext(ctx); tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
