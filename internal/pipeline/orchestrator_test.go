package pipeline

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealweek/api/internal/config"
	"github.com/mealweek/api/internal/gateway"
	"github.com/mealweek/api/internal/model"
	"github.com/mealweek/api/internal/store"
	"github.com/mealweek/api/internal/tasks"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	db, err := store.InitDB(&config.DatabaseConfig{Type: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	st := store.NewStore(db)
	require.NoError(t, st.Migrate())
	t.Cleanup(func() { st.Close() })
	return st
}

func seedUser(t *testing.T, st store.Store, userID string) {
	t.Helper()
	err := st.Profiles().Upsert(context.Background(), &model.UserProfile{
		UserID:        userID,
		HouseholdSize: 2,
		PrepStyle:     model.PrepStyleDayOf,
	})
	require.NoError(t, err)
}

func newJob(t *testing.T, st store.Store, userID string) uuid.UUID {
	t.Helper()
	job := &model.GenerationJob{ID: uuid.New(), UserID: userID, Status: model.JobStatusPending}
	require.NoError(t, st.Jobs().Create(context.Background(), job))
	return job.ID
}

type fakeEnqueuer struct {
	enqueued []*asynq.Task
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.enqueued = append(f.enqueued, task)
	return &asynq.TaskInfo{ID: uuid.NewString(), Type: task.Type()}, nil
}

func (f *fakeEnqueuer) types() []string {
	var out []string
	for _, task := range f.enqueued {
		out = append(out, task.Type())
	}
	return out
}

// mealFailGenerator fails the meal-authoring stage.
type mealFailGenerator struct {
	FixtureGenerator
}

func (g *mealFailGenerator) GenerateMeals(ctx context.Context, in *gateway.MealsInput) (*gateway.WeeklyMeals, error) {
	return nil, &gateway.StageError{Stage: gateway.StageMeals, Message: "service unavailable"}
}

// prepFailGenerator returns a malformed prep payload.
type prepFailGenerator struct {
	FixtureGenerator
}

func (g *prepFailGenerator) GeneratePrepSessions(ctx context.Context, in *gateway.PrepInput) (*gateway.PrepSchedule, string, error) {
	raw := `{"sessions": "not an array"}`
	return nil, raw, &gateway.StageError{Stage: gateway.StagePrep, Message: "invalid JSON", Raw: raw}
}

// batchFailGenerator fails the batch consolidation stage.
type batchFailGenerator struct {
	FixtureGenerator
}

func (g *batchFailGenerator) GenerateBatchPrep(ctx context.Context, in *gateway.BatchPrepInput) (*gateway.PrepSchedule, string, error) {
	return nil, "", &gateway.StageError{Stage: gateway.StageBatchPrep, Message: "service unavailable"}
}

func newOrchestrator(st store.Store, gen ContentGenerator, enq tasks.Enqueuer) *Orchestrator {
	return New(Config{Store: st, Generator: gen, Enqueuer: enq})
}

func TestRunHappyPath(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "user-1")
	jobID := newJob(t, st, "user-1")
	enq := &fakeEnqueuer{}

	o := newOrchestrator(st, &FixtureGenerator{}, enq)
	planID, err := o.Run(ctx, jobID, "user-1", &model.PlanOptions{ThemeSelection: model.ThemeSelectionNone})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, planID)

	job, err := st.Jobs().Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	require.NotNil(t, job.ResultPlanID)
	assert.Equal(t, planID, *job.ResultPlanID)

	plan, err := st.Plans().Get(ctx, planID)
	require.NoError(t, err)
	assert.Equal(t, "Fixture Week", plan.Title)
	assert.Len(t, plan.Slots, 21) // 7 days x 3 meals
	assert.Nil(t, plan.ThemeID)

	artifact, err := st.Artifacts().Get(ctx, planID, model.ArtifactKindDayOf)
	require.NoError(t, err)
	assert.NotEmpty(t, artifact.Sessions)

	types := enq.types()
	assert.Contains(t, types, tasks.TypeBatchPrep)
	assert.Contains(t, types, tasks.TypeFanoutEmail)
	assert.Contains(t, types, tasks.TypeFanoutCounters)
	assert.Contains(t, types, tasks.TypeFanoutThemeUsage)
}

func TestRunRedeliveryCreatesNoDuplicates(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "user-1")
	jobID := newJob(t, st, "user-1")
	enq := &fakeEnqueuer{}

	o := newOrchestrator(st, &FixtureGenerator{}, enq)
	firstPlan, err := o.Run(ctx, jobID, "user-1", nil)
	require.NoError(t, err)
	firstEnqueues := len(enq.enqueued)

	// simulate at-least-once redelivery of the whole job
	secondPlan, err := o.Run(ctx, jobID, "user-1", nil)
	require.NoError(t, err)
	assert.Equal(t, firstPlan, secondPlan)

	plan, err := st.Plans().Get(ctx, firstPlan)
	require.NoError(t, err)
	assert.Len(t, plan.Slots, 21)

	job, err := st.Jobs().Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)

	// fan-out is ledger-guarded too
	assert.Equal(t, firstEnqueues, len(enq.enqueued))

	for _, slot := range plan.Slots {
		count, err := st.Plans().SlotCountForMeal(ctx, slot.MealID)
		require.NoError(t, err)
		meal, err := st.Meals().Get(ctx, slot.MealID)
		require.NoError(t, err)
		assert.Equal(t, count, int64(meal.TimesUsed), "meal %s", meal.Name)
	}
}

func TestRunMealStageFailure(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "user-1")
	jobID := newJob(t, st, "user-1")

	o := newOrchestrator(st, &mealFailGenerator{}, &fakeEnqueuer{})
	_, err := o.Run(ctx, jobID, "user-1", nil)
	require.Error(t, err)

	job, err := st.Jobs().Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.NotEmpty(t, *job.ErrorMessage)
	assert.Nil(t, job.ResultPlanID)
}

func TestRunPrepStageMalformedCapturesDebug(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "user-1")
	jobID := newJob(t, st, "user-1")

	o := newOrchestrator(st, &prepFailGenerator{}, &fakeEnqueuer{})
	_, err := o.Run(ctx, jobID, "user-1", nil)
	require.Error(t, err)

	job, err := st.Jobs().Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	require.NotEmpty(t, job.DebugData)
	assert.Contains(t, string(job.DebugData), "not an array")
	assert.Contains(t, string(job.DebugData), `"dayCount":7`)
	assert.Nil(t, job.ResultPlanID)
}

func TestRunMissingProfile(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	jobID := newJob(t, st, "user-without-profile")

	o := newOrchestrator(st, &FixtureGenerator{}, &fakeEnqueuer{})
	_, err := o.Run(ctx, jobID, "user-without-profile", nil)
	require.Error(t, err)

	job, getErr := st.Jobs().Get(ctx, jobID)
	require.NoError(t, getErr)
	assert.Equal(t, model.JobStatusFailed, job.Status)
}

func TestRunBatchPrep(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "user-1")
	jobID := newJob(t, st, "user-1")

	o := newOrchestrator(st, &FixtureGenerator{}, &fakeEnqueuer{})
	planID, err := o.Run(ctx, jobID, "user-1", nil)
	require.NoError(t, err)

	require.NoError(t, o.RunBatchPrep(ctx, planID))

	plan, err := st.Plans().Get(ctx, planID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchPrepCompleted, plan.BatchPrepStatus)

	artifact, err := st.Artifacts().Get(ctx, planID, model.ArtifactKindBatch)
	require.NoError(t, err)
	assert.Equal(t, model.BatchPrepCompleted, artifact.Status)
	assert.NotEmpty(t, artifact.Sessions)
}

func TestRunBatchPrepFailureLeavesPlanUsable(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedUser(t, st, "user-1")
	jobID := newJob(t, st, "user-1")

	o := newOrchestrator(st, &FixtureGenerator{}, &fakeEnqueuer{})
	planID, err := o.Run(ctx, jobID, "user-1", nil)
	require.NoError(t, err)

	failing := newOrchestrator(st, &batchFailGenerator{}, &fakeEnqueuer{})
	require.Error(t, failing.RunBatchPrep(ctx, planID))

	plan, err := st.Plans().Get(ctx, planID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchPrepFailed, plan.BatchPrepStatus)
	assert.Len(t, plan.Slots, 21)

	// day-of schedule untouched
	dayOf, err := st.Artifacts().Get(ctx, planID, model.ArtifactKindDayOf)
	require.NoError(t, err)
	assert.NotEmpty(t, dayOf.Sessions)
}
