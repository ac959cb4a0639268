package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/mealweek/api/internal/model"
	"github.com/mealweek/api/internal/store"
	"github.com/mealweek/api/internal/tasks"
)

var (
	ErrProfileNotFound = errors.New("user profile not found")
	ErrJobNotFound     = errors.New("job not found")
	ErrPlanNotFound    = errors.New("plan not found")
	ErrUnknownTheme    = errors.New("unknown theme")
)

// completed job records stay queryable in asynq for a day
const taskRetention = 24 * time.Hour

// PlanService owns the submit/poll/result surface of plan generation. The
// pipeline itself runs out-of-band in the worker.
type PlanService struct {
	store    store.Store
	enqueuer tasks.Enqueuer
	logger   *zap.SugaredLogger
}

func NewPlanService(st store.Store, enqueuer tasks.Enqueuer) *PlanService {
	return &PlanService{
		store:    st,
		enqueuer: enqueuer,
		logger:   zap.S().Named("plans"),
	}
}

// GeneratePlan validates the request, creates the job record in pending and
// queues the pipeline. The response carries the job id for polling.
func (s *PlanService) GeneratePlan(ctx context.Context, userID string, req *model.GeneratePlanRequest) (*model.GeneratePlanResponse, error) {
	if _, err := s.store.Profiles().Get(ctx, userID); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	if err := s.validateThemeSelection(ctx, req.ThemeSelection); err != nil {
		return nil, err
	}

	options := model.PlanOptions{
		ThemeSelection: req.ThemeSelection,
		ProteinFocus:   req.ProteinFocus,
	}
	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("marshalling plan options: %w", err)
	}

	job := &model.GenerationJob{
		ID:              uuid.New(),
		UserID:          userID,
		Status:          model.JobStatusPending,
		ProgressMessage: "Your plan is in the queue",
		Options:         optionsJSON,
	}
	if err := s.store.Jobs().Create(ctx, job); err != nil {
		return nil, err
	}

	task, err := tasks.NewPlanGenerateTask(&tasks.PlanTaskPayload{
		JobID:  job.ID.String(),
		UserID: userID,
	})
	if err == nil {
		_, err = s.enqueuer.Enqueue(task, asynq.Retention(taskRetention))
	}
	if err != nil {
		// the job record exists; mark it failed rather than leaving it
		// pending forever
		if failErr := s.store.Jobs().Fail(ctx, job.ID, "We couldn't start your plan, please try again", nil); failErr != nil {
			s.logger.Errorw("failed to fail unqueued job", "job_id", job.ID, "error", failErr)
		}
		return nil, fmt.Errorf("enqueueing plan job: %w", err)
	}

	s.logger.Infow("plan job queued", "job_id", job.ID, "user_id", userID)
	return &model.GeneratePlanResponse{
		JobID:     job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	}, nil
}

// GetJobStatus returns the polling view of a job, scoped to its owner.
// Another user's job reads as not found.
func (s *PlanService) GetJobStatus(ctx context.Context, userID string, jobID uuid.UUID) (*model.JobStatusResponse, error) {
	job, err := s.store.Jobs().Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	if job.UserID != userID {
		return nil, ErrJobNotFound
	}

	return &model.JobStatusResponse{
		JobID:           job.ID,
		Status:          job.Status,
		ProgressMessage: job.ProgressMessage,
		ErrorMessage:    job.ErrorMessage,
		ResultPlanID:    job.ResultPlanID,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}, nil
}

// GetPlan loads a plan with its slots, meals and prep artifacts.
func (s *PlanService) GetPlan(ctx context.Context, userID string, planID uuid.UUID) (*model.PlanResponse, error) {
	plan, err := s.store.Plans().GetForUser(ctx, userID, planID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	artifacts, err := s.store.Artifacts().ListForPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	return &model.PlanResponse{Plan: plan, Artifacts: artifacts}, nil
}

// ToggleFavorite flips the favorite flag on a plan the user owns.
func (s *PlanService) ToggleFavorite(ctx context.Context, userID string, planID uuid.UUID) (*model.FavoriteResponse, error) {
	plan, err := s.store.Plans().GetForUser(ctx, userID, planID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	next := !plan.IsFavorite
	if err := s.store.Plans().SetFavorite(ctx, planID, next); err != nil {
		return nil, err
	}
	return &model.FavoriteResponse{PlanID: planID, IsFavorite: next}, nil
}

// ListThemes returns the theme catalog.
func (s *PlanService) ListThemes(ctx context.Context) ([]model.Theme, error) {
	return s.store.Themes().List(ctx)
}

func (s *PlanService) validateThemeSelection(ctx context.Context, selection string) error {
	switch selection {
	case "", model.ThemeSelectionSurprise, model.ThemeSelectionNone:
		return nil
	}
	if _, err := s.store.Themes().Get(ctx, selection); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return ErrUnknownTheme
		}
		return err
	}
	return nil
}
