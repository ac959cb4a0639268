package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mealweek/api/internal/gateway"
	"github.com/mealweek/api/internal/model"
	"github.com/mealweek/api/internal/store"
)

// RunBatchPrep is the secondary pipeline: it consolidates a plan's day-of
// prep schedule into batch sessions. Failure marks the batch artifact failed
// and leaves the plan fully usable with its day-of schedule.
func (o *Orchestrator) RunBatchPrep(ctx context.Context, planID uuid.UUID) error {
	log := o.logger.With("plan_id", planID)

	plan, err := o.store.Plans().Get(ctx, planID)
	if err != nil {
		return fmt.Errorf("loading plan for batch prep: %w", err)
	}
	if plan.BatchPrepStatus == model.BatchPrepCompleted {
		log.Debugw("batch prep already completed")
		return nil
	}

	dayOf, err := o.store.Artifacts().Get(ctx, planID, model.ArtifactKindDayOf)
	if err != nil {
		return fmt.Errorf("loading day-of artifact: %w", err)
	}

	if err := o.store.Plans().SetBatchPrepStatus(ctx, planID, model.BatchPrepGenerating); err != nil {
		return err
	}

	input, err := buildBatchInput(plan, dayOf)
	if err != nil {
		return o.failBatchPrep(ctx, planID, err)
	}

	schedule, _, err := o.gen.GenerateBatchPrep(ctx, input)
	if err != nil {
		return o.failBatchPrep(ctx, planID, err)
	}

	artifact, err := buildArtifact(planID, model.ArtifactKindBatch, schedule, model.BatchPrepCompleted)
	if err != nil {
		return o.failBatchPrep(ctx, planID, err)
	}

	err = o.store.Transaction(ctx, func(ctx context.Context) error {
		if err := o.store.Artifacts().Upsert(ctx, artifact); err != nil {
			return err
		}
		return o.store.Plans().SetBatchPrepStatus(ctx, planID, model.BatchPrepCompleted)
	})
	if err != nil {
		return o.failBatchPrep(ctx, planID, err)
	}

	log.Infow("batch prep completed", "sessions", len(schedule.Sessions))
	return nil
}

// failBatchPrep marks the artifact failed and returns the cause so the task
// queue can retry. The plan itself is never touched beyond its batch status.
func (o *Orchestrator) failBatchPrep(ctx context.Context, planID uuid.UUID, cause error) error {
	o.logger.Errorw("batch prep failed", "plan_id", planID, "error", cause)

	if err := o.store.Plans().SetBatchPrepStatus(ctx, planID, model.BatchPrepFailed); err != nil {
		o.logger.Errorw("failed to mark batch prep failed", "plan_id", planID, "error", err)
	}
	if err := o.store.Artifacts().SetStatus(ctx, planID, model.ArtifactKindBatch, model.BatchPrepFailed); err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		o.logger.Errorw("failed to mark batch artifact failed", "plan_id", planID, "error", err)
	}
	return cause
}

// buildBatchInput reconstructs the generated week from the persisted slots
// and meals, and decodes the day-of schedule.
func buildBatchInput(plan *model.MealPlan, dayOf *model.PrepArtifact) (*gateway.BatchPrepInput, error) {
	var schedule gateway.PrepSchedule
	if len(dayOf.Sessions) > 0 {
		if err := json.Unmarshal(dayOf.Sessions, &schedule.Sessions); err != nil {
			return nil, fmt.Errorf("decoding day-of sessions: %w", err)
		}
	}
	if len(dayOf.AssemblyGuide) > 0 {
		if err := json.Unmarshal(dayOf.AssemblyGuide, &schedule.AssemblyGuide); err != nil {
			return nil, fmt.Errorf("decoding assembly guide: %w", err)
		}
	}

	var ingredients gateway.CoreIngredients
	if len(plan.CoreIngredients) > 0 {
		if err := json.Unmarshal(plan.CoreIngredients, &ingredients); err != nil {
			return nil, fmt.Errorf("decoding core ingredients: %w", err)
		}
	}

	byDay := make(map[model.Day][]gateway.GeneratedMeal)
	for _, slot := range plan.Slots {
		if slot.Meal == nil {
			continue
		}
		meal := gateway.GeneratedMeal{
			Name:            slot.Meal.Name,
			MealType:        slot.Meal.MealType,
			PrepTimeMinutes: slot.Meal.PrepTimeMinutes,
		}
		if len(slot.Meal.Ingredients) > 0 {
			_ = json.Unmarshal(slot.Meal.Ingredients, &meal.Ingredients)
		}
		byDay[slot.Day] = append(byDay[slot.Day], meal)
	}

	var days []gateway.GeneratedDay
	for _, day := range model.WeekDays {
		if meals, ok := byDay[day]; ok {
			days = append(days, gateway.GeneratedDay{Day: day, Meals: meals})
		}
	}

	return &gateway.BatchPrepInput{
		DayOf:           &schedule,
		Days:            days,
		CoreIngredients: ingredients,
	}, nil
}
