package model

import (
	"time"

	"github.com/google/uuid"
)

// GeneratePlanRequest is the job submission body.
type GeneratePlanRequest struct {
	ThemeSelection string        `json:"themeSelection" validate:"omitempty,max=64"`
	ProteinFocus   *ProteinFocus `json:"proteinFocus" validate:"omitempty"`
}

// GeneratePlanResponse acknowledges the queued job.
type GeneratePlanResponse struct {
	JobID     uuid.UUID `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// JobStatusResponse is the polling shape.
type JobStatusResponse struct {
	JobID           uuid.UUID  `json:"jobId"`
	Status          JobStatus  `json:"status"`
	ProgressMessage string     `json:"progressMessage"`
	ErrorMessage    *string    `json:"errorMessage,omitempty"`
	ResultPlanID    *uuid.UUID `json:"resultPlanId,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// PlanResponse is the full plan with slots, meals and prep artifacts.
type PlanResponse struct {
	Plan      *MealPlan      `json:"plan"`
	Artifacts []PrepArtifact `json:"prepArtifacts"`
}

// FavoriteResponse reports the new favorite state.
type FavoriteResponse struct {
	PlanID     uuid.UUID `json:"planId"`
	IsFavorite bool      `json:"isFavorite"`
}
