package gateway

import (
	"fmt"

	"github.com/mealweek/api/internal/model"
)

// Stage names, used in errors and debug payloads.
const (
	StageIngredients = "generate_core_ingredients"
	StageMeals       = "generate_meals"
	StagePrep        = "generate_prep_sessions"
	StageBatchPrep   = "generate_batch_prep"
)

// StageError is a typed failure from one generation stage. Raw keeps the
// unparsed model output for offline diagnosis.
type StageError struct {
	Stage   string
	Message string
	Raw     string
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

// Macros are the aggregate nutrition numbers for one meal.
type Macros struct {
	Calories int `json:"calories"`
	Protein  int `json:"protein"`
	Carbs    int `json:"carbs"`
	Fat      int `json:"fat"`
}

// IngredientLine is one ingredient of a generated meal.
type IngredientLine struct {
	Name     string  `json:"name"`
	Amount   float64 `json:"amount"`
	Unit     string  `json:"unit"`
	Category string  `json:"category"`
}

// CoreIngredients maps a category to the ingredient names the week is
// built around.
type CoreIngredients map[string][]string

// GeneratedMeal is one meal authored by the generation service.
type GeneratedMeal struct {
	Name            string           `json:"name"`
	MealType        model.MealType   `json:"meal_type"`
	Ingredients     []IngredientLine `json:"ingredients"`
	Instructions    []string         `json:"instructions"`
	Macros          Macros           `json:"macros"`
	PrepTimeMinutes int              `json:"prep_time_minutes"`
}

// GeneratedDay is one day of the generated week.
type GeneratedDay struct {
	Day   model.Day       `json:"day"`
	Meals []GeneratedMeal `json:"meals"`
}

// WeeklyMeals is the meal-authoring stage output.
type WeeklyMeals struct {
	Title string         `json:"title"`
	Days  []GeneratedDay `json:"days"`
}

// PrepSession is one block of prep work.
type PrepSession struct {
	Name            string   `json:"name"`
	Day             string   `json:"day"`
	DurationMinutes int      `json:"duration_minutes"`
	Tasks           []string `json:"tasks"`
}

// DayAssembly describes how to assemble one day's meals from prepped
// components.
type DayAssembly struct {
	Day   string   `json:"day"`
	Steps []string `json:"steps"`
}

// PrepSchedule is the prep-authoring stage output, and also the shape of
// the consolidated batch variant.
type PrepSchedule struct {
	Sessions      []PrepSession `json:"sessions"`
	AssemblyGuide []DayAssembly `json:"assembly_guide"`
}

// IngredientsInput is the context for the ingredient-selection stage.
type IngredientsInput struct {
	DietaryPrefs    []string
	Allergies       []string
	LikedMeals      []string
	DislikedMeals   []string
	RecentMealNames []string
	HouseholdSize   int
	ThemeName       string
	ThemeDesc       string
	ProteinFocus    *model.ProteinFocus
}

// MealsInput is the context for the meal-authoring stage.
type MealsInput struct {
	DietaryPrefs    []string
	Allergies       []string
	HouseholdSize   int
	SnacksPerDay    int
	CoreIngredients CoreIngredients
	ThemeName       string
	ThemeDesc       string
	ProteinFocus    *model.ProteinFocus
}

// PrepInput is the context for the prep-authoring stage.
type PrepInput struct {
	Days            []GeneratedDay
	CoreIngredients CoreIngredients
	DietaryPrefs    []string
	PrepStyle       model.PrepStyle
}

// BatchPrepInput is the context for the batch consolidation stage of the
// secondary pipeline.
type BatchPrepInput struct {
	DayOf           *PrepSchedule
	Days            []GeneratedDay
	CoreIngredients CoreIngredients
}
