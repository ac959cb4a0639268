package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// GenerationJob is the persisted lifecycle record of one plan-generation
// request. It is read by polling clients and written only by the pipeline
// orchestrator, via the store's Transition API.
type GenerationJob struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          string         `gorm:"size:64;index;not null" json:"userId"`
	Status          JobStatus      `gorm:"size:32;not null;default:'pending'" json:"status"`
	ProgressMessage string         `gorm:"size:255" json:"progressMessage"`
	ErrorMessage    *string        `gorm:"size:1024" json:"errorMessage,omitempty"`
	DebugData       datatypes.JSON `json:"-"`
	ResultPlanID    *uuid.UUID     `gorm:"type:uuid" json:"resultPlanId,omitempty"`
	Options         datatypes.JSON `json:"-"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// PlanOptions is the job submission payload stored on the job record so a
// worker re-invocation sees the same inputs.
type PlanOptions struct {
	ThemeSelection string        `json:"themeSelection,omitempty"` // "surprise", "none", or a theme id
	ProteinFocus   *ProteinFocus `json:"proteinFocus,omitempty"`
}

// ProteinFocus pins one meal type of the week to a protein.
type ProteinFocus struct {
	Protein  string   `json:"protein"`
	MealType MealType `json:"mealType"`
}

// PipelineStep is the per-job idempotency ledger. A step whose row exists has
// fully completed and must not re-execute; Result carries whatever the step
// produced so a re-run can pick up where it left off.
type PipelineStep struct {
	JobID       uuid.UUID      `gorm:"type:uuid;primaryKey"`
	StepName    string         `gorm:"size:64;primaryKey"`
	Result      datatypes.JSON `gorm:"type:json"`
	CompletedAt time.Time
}

// PrepDebugData is the structured payload captured when the prep-authoring
// stage fails. The raw response is kept un-parsed for offline diagnosis.
type PrepDebugData struct {
	Stage        string `json:"stage"`
	RawResponse  string `json:"rawResponse"`
	DayCount     int    `json:"dayCount"`
	MealCount    int    `json:"mealCount"`
	DietaryPrefs int    `json:"dietaryPrefs"`
	Allergies    int    `json:"allergies"`
	ArchiveURL   string `json:"archiveUrl,omitempty"`
}
