package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MealPlan is one generated week. It does not embed meal content: slots
// reference Meal rows, which is what lets one meal appear in many plans.
type MealPlan struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          string          `gorm:"size:64;index;not null" json:"userId"`
	WeekStartDate   time.Time       `json:"weekStartDate"`
	Title           string          `gorm:"size:255" json:"title,omitempty"`
	ThemeID         *string         `gorm:"size:64" json:"themeId,omitempty"`
	ThemeReason     string          `gorm:"size:255" json:"themeReason,omitempty"`
	PrepStyle       PrepStyle       `gorm:"size:16" json:"prepStyle"`
	ProteinFocus    datatypes.JSON  `json:"proteinFocus,omitempty"`
	CoreIngredients datatypes.JSON  `json:"coreIngredients"`
	IsFavorite      bool            `gorm:"default:false" json:"isFavorite"`
	BatchPrepStatus BatchPrepStatus `gorm:"size:16;default:'pending'" json:"batchPrepStatus"`
	CreatedAt       time.Time       `json:"createdAt"`

	Slots []PlanSlot `gorm:"foreignKey:PlanID" json:"slots,omitempty"`
}

// Meal is canonical meal content, deduplicated per user by
// (meal_type, name_normalized). Reused meals are never content-mutated;
// only TimesUsed moves.
type Meal struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          string         `gorm:"size:64;not null;uniqueIndex:idx_meal_dedup_key" json:"userId"`
	MealType        MealType       `gorm:"size:16;not null;uniqueIndex:idx_meal_dedup_key" json:"mealType"`
	NameNormalized  string         `gorm:"size:255;not null;uniqueIndex:idx_meal_dedup_key" json:"-"`
	Name            string         `gorm:"size:255;not null" json:"name"`
	Ingredients     datatypes.JSON `json:"ingredients"`
	Instructions    datatypes.JSON `json:"instructions"`
	Macros          datatypes.JSON `json:"macros"`
	PrepTimeMinutes int            `json:"prepTimeMinutes"`
	TimesUsed       int            `gorm:"default:0" json:"timesUsed"`
	SourceType      SourceType     `gorm:"size:24;default:'generated'" json:"sourceType"`
	SourcePlanID    *uuid.UUID     `gorm:"type:uuid" json:"-"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// PlanSlot places a Meal at (day, meal type, position) within a plan.
type PlanSlot struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PlanID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_slot_placement" json:"planId"`
	MealID      uuid.UUID `gorm:"type:uuid;not null;index" json:"mealId"`
	Day         Day       `gorm:"size:12;not null;uniqueIndex:idx_slot_placement" json:"day"`
	MealType    MealType  `gorm:"size:16;not null;uniqueIndex:idx_slot_placement" json:"mealType"`
	SnackNumber int       `gorm:"not null;default:0;uniqueIndex:idx_slot_placement" json:"snackNumber,omitempty"`
	Position    int       `gorm:"not null;default:0;uniqueIndex:idx_slot_placement" json:"position"`
	IsOriginal  bool      `gorm:"default:true" json:"isOriginal"`

	Meal *Meal `gorm:"foreignKey:MealID" json:"meal,omitempty"`
}

// Theme is a read-only catalog entry. IDs are stable slugs so clients and
// user preferences can reference them directly.
type Theme struct {
	ID                string         `gorm:"size:64;primaryKey" json:"id"`
	Name              string         `gorm:"size:64;not null" json:"name"`
	DisplayName       string         `gorm:"size:128" json:"displayName"`
	Description       string         `gorm:"size:512" json:"description"`
	CompatibleDiets   datatypes.JSON `json:"compatibleDiets"`
	IncompatibleDiets datatypes.JSON `json:"incompatibleDiets"`
	PeakMonths        datatypes.JSON `json:"peakMonths"`
}

// PrepArtifact holds a prep schedule attached to a plan: the day-of variant
// written by the primary pipeline and the batch variant written by the
// secondary pipeline. Absence of the batch row is a valid, temporary state.
type PrepArtifact struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PlanID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_artifact_kind" json:"planId"`
	Kind          ArtifactKind    `gorm:"size:12;not null;uniqueIndex:idx_artifact_kind" json:"kind"`
	Status        BatchPrepStatus `gorm:"size:16;default:'completed'" json:"status"`
	Sessions      datatypes.JSON  `json:"sessions"`
	AssemblyGuide datatypes.JSON  `json:"assemblyGuide"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// UserProfile is the fetch_inputs read model.
type UserProfile struct {
	UserID            string         `gorm:"size:64;primaryKey" json:"userId"`
	DietaryPrefs      datatypes.JSON `json:"dietaryPrefs"`
	Allergies         datatypes.JSON `json:"allergies"`
	LikedMeals        datatypes.JSON `json:"likedMeals"`
	DislikedMeals     datatypes.JSON `json:"dislikedMeals"`
	PreferredThemeIDs datatypes.JSON `json:"preferredThemeIds"`
	BlockedThemeIDs   datatypes.JSON `json:"blockedThemeIds"`
	HouseholdSize     int            `gorm:"default:1" json:"householdSize"`
	PrepStyle         PrepStyle      `gorm:"size:16;default:'day_of'" json:"prepStyle"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// ThemeHistory records which theme (and protein focus, if any) each generated
// plan used, for the selector's recent-repeat lookback and for analytics.
type ThemeHistory struct {
	ID           uint           `gorm:"primaryKey" json:"-"`
	UserID       string         `gorm:"size:64;index;not null" json:"userId"`
	PlanID       uuid.UUID      `gorm:"type:uuid;not null" json:"planId"`
	ThemeID      *string        `gorm:"size:64" json:"themeId,omitempty"`
	ProteinFocus datatypes.JSON `json:"proteinFocus,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// NextMonday normalizes a point in time to the plan week start: the next
// Monday, or the same day when it already is a Monday.
func NextMonday(from time.Time) time.Time {
	t := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	offset := (int(time.Monday) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, offset)
}
