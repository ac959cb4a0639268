package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mealweek/api/internal/client"
	"github.com/mealweek/api/internal/gateway"
	"github.com/mealweek/api/internal/model"
	"github.com/mealweek/api/internal/store"
	"github.com/mealweek/api/internal/tasks"
)

// Step names recorded in the idempotency ledger.
const (
	stepFetchInputs   = "fetch_inputs"
	stepSelectTheme   = "select_theme"
	stepIngredients   = "generate_core_ingredients"
	stepMeals         = "generate_meals"
	stepPrep          = "generate_prep_sessions"
	stepPersistPlan   = "persist_plan"
	stepEnqueueFanout = "enqueue_fanout"
)

// ContentGenerator is the stage surface the orchestrator calls. Production
// uses the gateway; test mode uses the fixture generator.
type ContentGenerator interface {
	GenerateCoreIngredients(ctx context.Context, in *gateway.IngredientsInput) (gateway.CoreIngredients, error)
	GenerateMeals(ctx context.Context, in *gateway.MealsInput) (*gateway.WeeklyMeals, error)
	GeneratePrepSessions(ctx context.Context, in *gateway.PrepInput) (*gateway.PrepSchedule, string, error)
	GenerateBatchPrep(ctx context.Context, in *gateway.BatchPrepInput) (*gateway.PrepSchedule, string, error)
}

// ProgressNotifier pushes live job updates (websocket hub). Nil-safe.
type ProgressNotifier interface {
	NotifyProgress(jobID string, status model.JobStatus, message string)
	NotifyComplete(jobID, planID string)
	NotifyError(jobID, message string)
}

// Config wires an Orchestrator.
type Config struct {
	Store        store.Store
	Generator    ContentGenerator
	Enqueuer     tasks.Enqueuer
	Archive      client.StorageClient // optional, raw prep payload archive
	Notifier     ProgressNotifier     // optional
	SnacksPerDay int
}

// Orchestrator drives one generation job through its steps. Every step is
// memoized through the ledger, so a re-delivered job replays cached results
// instead of re-running paid generation stages or re-creating rows.
type Orchestrator struct {
	store        store.Store
	gen          ContentGenerator
	enqueuer     tasks.Enqueuer
	archive      client.StorageClient
	notifier     ProgressNotifier
	snacksPerDay int
	logger       *zap.SugaredLogger
}

func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		store:        cfg.Store,
		gen:          cfg.Generator,
		enqueuer:     cfg.Enqueuer,
		archive:      cfg.Archive,
		notifier:     cfg.Notifier,
		snacksPerDay: cfg.SnacksPerDay,
		logger:       zap.S().Named("pipeline"),
	}
}

// Run executes the pipeline for one job and returns the plan id. Whole-job
// retry is deliberately disabled: any stage failure moves the job to failed,
// and retry means a new job. Fan-out failures never fail the job.
func (o *Orchestrator) Run(ctx context.Context, jobID uuid.UUID, userID string, opts *model.PlanOptions) (uuid.UUID, error) {
	log := o.logger.With("job_id", jobID, "user_id", userID)

	inputs, err := runStep(ctx, o, jobID, stepFetchInputs,
		model.JobStatusPending, model.JobStatusFetchingInputs, "Gathering your preferences",
		func(ctx context.Context) (*pipelineInputs, error) {
			return o.fetchInputs(ctx, userID)
		})
	if err != nil {
		return uuid.Nil, o.failJob(ctx, jobID, "We couldn't load your profile", err, nil)
	}

	selection, err := runStep(ctx, o, jobID, stepSelectTheme, "", "", "",
		func(ctx context.Context) (*themeSelection, error) {
			return o.selectTheme(ctx, inputs, opts)
		})
	if err != nil {
		return uuid.Nil, o.failJob(ctx, jobID, "Something went wrong preparing your plan", err, nil)
	}

	ingredients, err := runStep(ctx, o, jobID, stepIngredients,
		model.JobStatusFetchingInputs, model.JobStatusGeneratingIngredients, "Choosing this week's ingredients",
		func(ctx context.Context) (gateway.CoreIngredients, error) {
			return o.gen.GenerateCoreIngredients(ctx, buildIngredientsInput(inputs, selection, opts))
		})
	if err != nil {
		return uuid.Nil, o.failJob(ctx, jobID, "We couldn't put together ingredients for your week", err, nil)
	}

	week, err := runStep(ctx, o, jobID, stepMeals,
		model.JobStatusGeneratingIngredients, model.JobStatusGeneratingMeals, "Creating your meals",
		func(ctx context.Context) (*gateway.WeeklyMeals, error) {
			return o.gen.GenerateMeals(ctx, buildMealsInput(inputs, selection, opts, ingredients, o.snacksPerDay))
		})
	if err != nil {
		return uuid.Nil, o.failJob(ctx, jobID, "We couldn't create your meals this time", err, nil)
	}

	prep, err := runStep(ctx, o, jobID, stepPrep,
		model.JobStatusGeneratingMeals, model.JobStatusGeneratingPrep, "Planning your prep",
		func(ctx context.Context) (*gateway.PrepSchedule, error) {
			schedule, raw, prepErr := o.gen.GeneratePrepSessions(ctx, buildPrepInput(inputs, week, ingredients))
			if prepErr != nil {
				return nil, o.capturePrepFailure(ctx, jobID, inputs, week, raw, prepErr)
			}
			return schedule, nil
		})
	if err != nil {
		return uuid.Nil, o.failJob(ctx, jobID, "We couldn't build your prep schedule", err, debugFromError(err))
	}

	persisted, err := runStep(ctx, o, jobID, stepPersistPlan,
		model.JobStatusGeneratingPrep, model.JobStatusSaving, "Saving your plan",
		func(ctx context.Context) (*persistResult, error) {
			return o.persistPlan(ctx, jobID, userID, inputs, selection, opts, ingredients, week, prep)
		})
	if err != nil {
		return uuid.Nil, o.failJob(ctx, jobID, "We couldn't save your plan", err, nil)
	}

	if err := o.store.Jobs().Complete(ctx, jobID, persisted.PlanID); err != nil {
		return uuid.Nil, o.failJob(ctx, jobID, "We couldn't finish your plan", err, nil)
	}
	if o.notifier != nil {
		o.notifier.NotifyComplete(jobID.String(), persisted.PlanID.String())
	}

	// fan-out is best-effort; each side effect retries independently
	if _, err := runStep(ctx, o, jobID, stepEnqueueFanout, "", "", "",
		func(ctx context.Context) (struct{}, error) {
			o.enqueueFanout(jobID, userID, selection, opts, persisted)
			return struct{}{}, nil
		}); err != nil {
		log.Warnw("fanout enqueue failed", "error", err)
	}

	log.Infow("plan generated", "plan_id", persisted.PlanID)
	return persisted.PlanID, nil
}

// runStep executes fn once per job: a ledger hit replays the recorded result,
// a miss advances the job status, runs fn and records the result. toStatus ""
// means the step has no status of its own.
func runStep[T any](ctx context.Context, o *Orchestrator, jobID uuid.UUID, name string,
	fromStatus, toStatus model.JobStatus, progress string,
	fn func(ctx context.Context) (T, error)) (T, error) {

	var zero T

	row, err := o.store.Steps().Get(ctx, jobID, name)
	if err == nil {
		var out T
		if len(row.Result) > 0 {
			if err := json.Unmarshal(row.Result, &out); err != nil {
				return zero, fmt.Errorf("decoding cached result of %s: %w", name, err)
			}
		}
		o.logger.Debugw("step replayed from ledger", "job_id", jobID, "step", name)
		return out, nil
	}
	if !errors.Is(err, store.ErrRecordNotFound) {
		return zero, err
	}

	if toStatus != "" {
		if err := o.store.Jobs().Transition(ctx, jobID, fromStatus, toStatus, progress); err != nil {
			return zero, err
		}
		if o.notifier != nil {
			o.notifier.NotifyProgress(jobID.String(), toStatus, progress)
		}
	}

	out, err := fn(ctx)
	if err != nil {
		return zero, err
	}

	result, err := json.Marshal(out)
	if err != nil {
		return zero, fmt.Errorf("encoding result of %s: %w", name, err)
	}
	if err := o.store.Steps().MarkCompleted(ctx, jobID, name, result); err != nil {
		return zero, err
	}
	return out, nil
}

// failJob moves the job to failed with a user-safe message; the underlying
// error goes to the log, not the client.
func (o *Orchestrator) failJob(ctx context.Context, jobID uuid.UUID, message string, cause error, debug []byte) error {
	o.logger.Errorw("pipeline failed", "job_id", jobID, "error", cause)

	if err := o.store.Jobs().Fail(ctx, jobID, message, debug); err != nil && !errors.Is(err, store.ErrJobTerminal) {
		o.logger.Errorw("failed to mark job failed", "job_id", jobID, "error", err)
	}
	if o.notifier != nil {
		o.notifier.NotifyError(jobID.String(), message)
	}
	return cause
}

// capturePrepFailure wraps a prep-stage error with the structured debug
// payload, archiving the raw response when storage is configured.
func (o *Orchestrator) capturePrepFailure(ctx context.Context, jobID uuid.UUID, inputs *pipelineInputs, week *gateway.WeeklyMeals, raw string, cause error) error {
	debug := model.PrepDebugData{
		Stage:        gateway.StagePrep,
		RawResponse:  raw,
		DietaryPrefs: len(inputs.Profile.DietaryPrefs),
		Allergies:    len(inputs.Profile.Allergies),
	}
	if week != nil {
		debug.DayCount = len(week.Days)
		for _, day := range week.Days {
			debug.MealCount += len(day.Meals)
		}
	}

	if o.archive != nil && raw != "" {
		key := fmt.Sprintf("prep-failures/%s.json", jobID)
		url, archiveErr := o.archive.ArchiveJSON(ctx, key, map[string]interface{}{
			"job_id":       jobID,
			"raw_response": raw,
		})
		if archiveErr != nil {
			o.logger.Warnw("prep payload archive failed", "job_id", jobID, "error", archiveErr)
		} else {
			debug.ArchiveURL = url
		}
	}

	return &prepFailure{cause: cause, debug: debug}
}

// prepFailure carries debug data from the prep stage up to failJob.
type prepFailure struct {
	cause error
	debug model.PrepDebugData
}

func (e *prepFailure) Error() string { return e.cause.Error() }
func (e *prepFailure) Unwrap() error { return e.cause }

func debugFromError(err error) []byte {
	var pf *prepFailure
	if !errors.As(err, &pf) {
		return nil
	}
	data, marshalErr := json.Marshal(pf.debug)
	if marshalErr != nil {
		return nil
	}
	return data
}
