package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// TextGenerator is the single call the gateway makes per stage.
type TextGenerator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Gateway turns stage-specific prompts into validated, typed content.
// Malformed model output becomes a *StageError carrying the raw response;
// it is never silently coerced.
type Gateway struct {
	generator TextGenerator
	logger    *zap.SugaredLogger
}

// New creates a content-generation gateway over the given text generator.
func New(generator TextGenerator) *Gateway {
	return &Gateway{
		generator: generator,
		logger:    zap.S().Named("gateway"),
	}
}

// GenerateCoreIngredients runs the ingredient-selection stage.
func (g *Gateway) GenerateCoreIngredients(ctx context.Context, in *IngredientsInput) (CoreIngredients, error) {
	raw, err := g.generator.Generate(ctx, ingredientsSystemPrompt, buildIngredientsPrompt(in))
	if err != nil {
		return nil, &StageError{Stage: StageIngredients, Message: err.Error()}
	}

	var out struct {
		CoreIngredients CoreIngredients `json:"core_ingredients"`
	}
	if err := parseJSON(raw, &out); err != nil {
		return nil, &StageError{Stage: StageIngredients, Message: err.Error(), Raw: raw}
	}
	if len(out.CoreIngredients) == 0 {
		return nil, &StageError{Stage: StageIngredients, Message: "missing core_ingredients", Raw: raw}
	}
	for category, items := range out.CoreIngredients {
		if len(items) == 0 {
			return nil, &StageError{Stage: StageIngredients, Message: fmt.Sprintf("empty ingredient category %q", category), Raw: raw}
		}
	}

	g.logger.Debugw("ingredients generated", "categories", len(out.CoreIngredients))
	return out.CoreIngredients, nil
}

// GenerateMeals runs the meal-authoring stage.
func (g *Gateway) GenerateMeals(ctx context.Context, in *MealsInput) (*WeeklyMeals, error) {
	raw, err := g.generator.Generate(ctx, mealsSystemPrompt, buildMealsPrompt(in))
	if err != nil {
		return nil, &StageError{Stage: StageMeals, Message: err.Error()}
	}

	var out WeeklyMeals
	if err := parseJSON(raw, &out); err != nil {
		return nil, &StageError{Stage: StageMeals, Message: err.Error(), Raw: raw}
	}
	if len(out.Days) == 0 {
		return nil, &StageError{Stage: StageMeals, Message: "missing days", Raw: raw}
	}
	for _, day := range out.Days {
		if !day.Day.Valid() {
			return nil, &StageError{Stage: StageMeals, Message: fmt.Sprintf("invalid day %q", day.Day), Raw: raw}
		}
		if len(day.Meals) == 0 {
			return nil, &StageError{Stage: StageMeals, Message: fmt.Sprintf("day %s has no meals", day.Day), Raw: raw}
		}
		for _, meal := range day.Meals {
			if meal.Name == "" {
				return nil, &StageError{Stage: StageMeals, Message: fmt.Sprintf("unnamed meal on %s", day.Day), Raw: raw}
			}
			if !meal.MealType.Valid() {
				return nil, &StageError{Stage: StageMeals, Message: fmt.Sprintf("meal %q has invalid meal_type %q", meal.Name, meal.MealType), Raw: raw}
			}
			if len(meal.Ingredients) == 0 {
				return nil, &StageError{Stage: StageMeals, Message: fmt.Sprintf("meal %q has no ingredients", meal.Name), Raw: raw}
			}
		}
	}

	g.logger.Debugw("meals generated", "title", out.Title, "days", len(out.Days))
	return &out, nil
}

// GeneratePrepSessions runs the prep-authoring stage. The raw response is
// returned even on failure so callers can attach it to debug data.
func (g *Gateway) GeneratePrepSessions(ctx context.Context, in *PrepInput) (*PrepSchedule, string, error) {
	raw, err := g.generator.Generate(ctx, prepSystemPrompt, buildPrepPrompt(in))
	if err != nil {
		return nil, raw, &StageError{Stage: StagePrep, Message: err.Error()}
	}

	schedule, err := parsePrepSchedule(StagePrep, raw)
	if err != nil {
		return nil, raw, err
	}

	g.logger.Debugw("prep sessions generated", "sessions", len(schedule.Sessions))
	return schedule, raw, nil
}

// GenerateBatchPrep runs the batch consolidation stage of the secondary
// pipeline.
func (g *Gateway) GenerateBatchPrep(ctx context.Context, in *BatchPrepInput) (*PrepSchedule, string, error) {
	raw, err := g.generator.Generate(ctx, batchPrepSystemPrompt, buildBatchPrepPrompt(in))
	if err != nil {
		return nil, raw, &StageError{Stage: StageBatchPrep, Message: err.Error()}
	}

	schedule, err := parsePrepSchedule(StageBatchPrep, raw)
	if err != nil {
		return nil, raw, err
	}

	g.logger.Debugw("batch prep generated", "sessions", len(schedule.Sessions))
	return schedule, raw, nil
}

func parsePrepSchedule(stage, raw string) (*PrepSchedule, error) {
	var out PrepSchedule
	if err := parseJSON(raw, &out); err != nil {
		return nil, &StageError{Stage: stage, Message: err.Error(), Raw: raw}
	}
	if len(out.Sessions) == 0 {
		return nil, &StageError{Stage: stage, Message: "missing sessions", Raw: raw}
	}
	for _, session := range out.Sessions {
		if len(session.Tasks) == 0 {
			return nil, &StageError{Stage: stage, Message: fmt.Sprintf("session %q has no tasks", session.Name), Raw: raw}
		}
	}
	if len(out.AssemblyGuide) == 0 {
		return nil, &StageError{Stage: stage, Message: "missing assembly_guide", Raw: raw}
	}
	return &out, nil
}

// parseJSON strips markdown code fences before unmarshalling. Models wrap
// JSON in ```json fences often enough that this is load-bearing.
func parseJSON(raw string, v interface{}) error {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}
		cleaned = strings.TrimSpace(cleaned)
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("invalid JSON: %v", err)
	}
	return nil
}
