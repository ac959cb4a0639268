package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/mealweek/api/internal/gateway"
	"github.com/mealweek/api/internal/model"
	"github.com/mealweek/api/internal/tasks"
	"github.com/mealweek/api/internal/themes"
)

// recentPlanLookback bounds how many past plans feed variety hints and the
// theme selector's repeat filter.
const recentPlanLookback = 3

// inputsProfile is the decoded user profile the stages consume.
type inputsProfile struct {
	DietaryPrefs      []string        `json:"dietaryPrefs"`
	Allergies         []string        `json:"allergies"`
	LikedMeals        []string        `json:"likedMeals"`
	DislikedMeals     []string        `json:"dislikedMeals"`
	PreferredThemeIDs []string        `json:"preferredThemeIds"`
	BlockedThemeIDs   []string        `json:"blockedThemeIds"`
	HouseholdSize     int             `json:"householdSize"`
	PrepStyle         model.PrepStyle `json:"prepStyle"`
}

// pipelineInputs is the fetch_inputs step output.
type pipelineInputs struct {
	Profile         inputsProfile `json:"profile"`
	RecentMealNames []string      `json:"recentMealNames"`
	RecentThemeIDs  []string      `json:"recentThemeIds"`
	Catalog         []model.Theme `json:"catalog"`
}

// themeSelection is the select_theme step output. A nil ThemeID means a
// classic, theme-less plan.
type themeSelection struct {
	ThemeID   *string `json:"themeId,omitempty"`
	ThemeName string  `json:"themeName,omitempty"`
	ThemeDesc string  `json:"themeDesc,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

// persistResult is the persist_plan step output.
type persistResult struct {
	PlanID uuid.UUID `json:"planId"`
	Title  string    `json:"title"`
}

func (o *Orchestrator) fetchInputs(ctx context.Context, userID string) (*pipelineInputs, error) {
	profile, err := o.store.Profiles().Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile for %s: %w", userID, err)
	}

	recentNames, err := o.store.Plans().RecentMealNames(ctx, userID, recentPlanLookback)
	if err != nil {
		return nil, err
	}
	recentThemes, err := o.store.History().RecentThemeIDs(ctx, userID, recentPlanLookback)
	if err != nil {
		return nil, err
	}
	catalog, err := o.store.Themes().List(ctx)
	if err != nil {
		return nil, err
	}

	prepStyle := profile.PrepStyle
	if prepStyle == "" {
		prepStyle = model.PrepStyleDayOf
	}

	return &pipelineInputs{
		Profile: inputsProfile{
			DietaryPrefs:      decodeStrings(profile.DietaryPrefs),
			Allergies:         decodeStrings(profile.Allergies),
			LikedMeals:        decodeStrings(profile.LikedMeals),
			DislikedMeals:     decodeStrings(profile.DislikedMeals),
			PreferredThemeIDs: decodeStrings(profile.PreferredThemeIDs),
			BlockedThemeIDs:   decodeStrings(profile.BlockedThemeIDs),
			HouseholdSize:     profile.HouseholdSize,
			PrepStyle:         prepStyle,
		},
		RecentMealNames: recentNames,
		RecentThemeIDs:  recentThemes,
		Catalog:         catalog,
	}, nil
}

func (o *Orchestrator) selectTheme(ctx context.Context, inputs *pipelineInputs, opts *model.PlanOptions) (*themeSelection, error) {
	explicit := ""
	if opts != nil {
		explicit = opts.ThemeSelection
	}

	selection := themes.Select(&themes.Input{
		Catalog:        inputs.Catalog,
		DietaryPrefs:   inputs.Profile.DietaryPrefs,
		RecentThemeIDs: inputs.RecentThemeIDs,
		PreferredIDs:   inputs.Profile.PreferredThemeIDs,
		BlockedIDs:     inputs.Profile.BlockedThemeIDs,
		DislikedMeals:  inputs.Profile.DislikedMeals,
		Month:          time.Now().Month(),
		ExplicitChoice: explicit,
	})

	if selection.Theme == nil {
		return &themeSelection{}, nil
	}
	return &themeSelection{
		ThemeID:   &selection.Theme.ID,
		ThemeName: selection.Theme.DisplayName,
		ThemeDesc: selection.Theme.Description,
		Reason:    selection.Reason,
	}, nil
}

func buildIngredientsInput(inputs *pipelineInputs, selection *themeSelection, opts *model.PlanOptions) *gateway.IngredientsInput {
	return &gateway.IngredientsInput{
		DietaryPrefs:    inputs.Profile.DietaryPrefs,
		Allergies:       inputs.Profile.Allergies,
		LikedMeals:      inputs.Profile.LikedMeals,
		DislikedMeals:   inputs.Profile.DislikedMeals,
		RecentMealNames: inputs.RecentMealNames,
		HouseholdSize:   inputs.Profile.HouseholdSize,
		ThemeName:       selection.ThemeName,
		ThemeDesc:       selection.ThemeDesc,
		ProteinFocus:    proteinFocus(opts),
	}
}

func buildMealsInput(inputs *pipelineInputs, selection *themeSelection, opts *model.PlanOptions, ingredients gateway.CoreIngredients, snacksPerDay int) *gateway.MealsInput {
	return &gateway.MealsInput{
		DietaryPrefs:    inputs.Profile.DietaryPrefs,
		Allergies:       inputs.Profile.Allergies,
		HouseholdSize:   inputs.Profile.HouseholdSize,
		SnacksPerDay:    snacksPerDay,
		CoreIngredients: ingredients,
		ThemeName:       selection.ThemeName,
		ThemeDesc:       selection.ThemeDesc,
		ProteinFocus:    proteinFocus(opts),
	}
}

func buildPrepInput(inputs *pipelineInputs, week *gateway.WeeklyMeals, ingredients gateway.CoreIngredients) *gateway.PrepInput {
	return &gateway.PrepInput{
		Days:            week.Days,
		CoreIngredients: ingredients,
		DietaryPrefs:    inputs.Profile.DietaryPrefs,
		PrepStyle:       inputs.Profile.PrepStyle,
	}
}

// persistPlan writes the plan, its deduplicated meals, its slots and the
// day-of prep artifact in one transaction, and records its own ledger row
// inside that transaction so the whole step is all-or-nothing.
func (o *Orchestrator) persistPlan(ctx context.Context, jobID uuid.UUID, userID string,
	inputs *pipelineInputs, selection *themeSelection, opts *model.PlanOptions,
	ingredients gateway.CoreIngredients, week *gateway.WeeklyMeals, prep *gateway.PrepSchedule) (*persistResult, error) {

	coreJSON, err := json.Marshal(ingredients)
	if err != nil {
		return nil, fmt.Errorf("marshalling core ingredients: %w", err)
	}

	title := week.Title
	if title == "" {
		title = "Your Weekly Plan"
	}

	plan := &model.MealPlan{
		ID:              uuid.New(),
		UserID:          userID,
		WeekStartDate:   model.NextMonday(time.Now()),
		Title:           title,
		ThemeID:         selection.ThemeID,
		ThemeReason:     selection.Reason,
		PrepStyle:       inputs.Profile.PrepStyle,
		CoreIngredients: coreJSON,
		BatchPrepStatus: model.BatchPrepPending,
	}
	if pf := proteinFocus(opts); pf != nil {
		pfJSON, err := json.Marshal(pf)
		if err != nil {
			return nil, fmt.Errorf("marshalling protein focus: %w", err)
		}
		plan.ProteinFocus = pfJSON
	}

	result := &persistResult{PlanID: plan.ID, Title: title}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshalling persist result: %w", err)
	}

	err = o.store.Transaction(ctx, func(ctx context.Context) error {
		if err := o.store.Plans().Create(ctx, plan); err != nil {
			return err
		}

		resolver := newMealResolver(o.store)
		var slots []model.PlanSlot
		for _, day := range week.Days {
			snackCount := 0
			position := make(map[model.MealType]int)
			for i := range day.Meals {
				meal := &day.Meals[i]
				mealID, err := resolver.Resolve(ctx, userID, plan.ID, meal)
				if err != nil {
					return err
				}

				snackNumber := 0
				if meal.MealType == model.MealTypeSnack {
					snackCount++
					snackNumber = snackCount
				}
				slots = append(slots, model.PlanSlot{
					ID:          uuid.New(),
					PlanID:      plan.ID,
					MealID:      mealID,
					Day:         day.Day,
					MealType:    meal.MealType,
					SnackNumber: snackNumber,
					Position:    position[meal.MealType],
					IsOriginal:  true,
				})
				position[meal.MealType]++
			}
		}
		if err := o.store.Plans().CreateSlots(ctx, slots); err != nil {
			return err
		}

		artifact, err := buildArtifact(plan.ID, model.ArtifactKindDayOf, prep, model.BatchPrepCompleted)
		if err != nil {
			return err
		}
		if err := o.store.Artifacts().Upsert(ctx, artifact); err != nil {
			return err
		}

		return o.store.Steps().MarkCompleted(ctx, jobID, stepPersistPlan, resultJSON)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func buildArtifact(planID uuid.UUID, kind model.ArtifactKind, prep *gateway.PrepSchedule, status model.BatchPrepStatus) (*model.PrepArtifact, error) {
	sessions, err := json.Marshal(prep.Sessions)
	if err != nil {
		return nil, fmt.Errorf("marshalling prep sessions: %w", err)
	}
	guide, err := json.Marshal(prep.AssemblyGuide)
	if err != nil {
		return nil, fmt.Errorf("marshalling assembly guide: %w", err)
	}
	return &model.PrepArtifact{
		ID:            uuid.New(),
		PlanID:        planID,
		Kind:          kind,
		Status:        status,
		Sessions:      sessions,
		AssemblyGuide: guide,
	}, nil
}

// enqueueFanout queues the post-completion side effects as independent
// retryable tasks. Any enqueue failure is logged and swallowed; the plan is
// already durable and usable without them.
func (o *Orchestrator) enqueueFanout(jobID uuid.UUID, userID string, selection *themeSelection, opts *model.PlanOptions, persisted *persistResult) {
	if o.enqueuer == nil {
		return
	}

	batchTask, err := tasks.NewBatchPrepTask(&tasks.BatchPrepPayload{
		PlanID: persisted.PlanID.String(),
		UserID: userID,
	})
	if err == nil {
		_, err = o.enqueuer.Enqueue(batchTask)
	}
	if err != nil {
		o.logger.Warnw("batch prep enqueue failed", "job_id", jobID, "error", err)
	}

	payload := &tasks.FanoutPayload{
		JobID:     jobID.String(),
		PlanID:    persisted.PlanID.String(),
		UserID:    userID,
		PlanTitle: persisted.Title,
		WeekStart: model.NextMonday(time.Now()).Format("2006-01-02"),
	}
	if selection.ThemeID != nil {
		payload.ThemeID = *selection.ThemeID
	}

	for _, taskType := range []string{tasks.TypeFanoutEmail, tasks.TypeFanoutCounters, tasks.TypeFanoutThemeUsage} {
		task, err := tasks.NewFanoutTask(taskType, payload)
		if err == nil {
			_, err = o.enqueuer.Enqueue(task)
		}
		if err != nil {
			o.logger.Warnw("fanout enqueue failed", "job_id", jobID, "task", taskType, "error", err)
		}
	}
}

func proteinFocus(opts *model.PlanOptions) *model.ProteinFocus {
	if opts == nil {
		return nil
	}
	return opts.ProteinFocus
}

func decodeStrings(data datatypes.JSON) []string {
	if len(data) == 0 {
		return nil
	}
	var out []string
	_ = json.Unmarshal(data, &out)
	return out
}
