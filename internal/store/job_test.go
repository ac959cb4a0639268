package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealweek/api/internal/config"
	"github.com/mealweek/api/internal/model"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{Type: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	st := NewStore(db)
	require.NoError(t, st.Migrate())
	t.Cleanup(func() { st.Close() })
	return st
}

func createJob(t *testing.T, st Store) uuid.UUID {
	t.Helper()
	job := &model.GenerationJob{ID: uuid.New(), UserID: "user-1", Status: model.JobStatusPending}
	require.NoError(t, st.Jobs().Create(context.Background(), job))
	return job.ID
}

func TestTransitionAdvances(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	id := createJob(t, st)

	err := st.Jobs().Transition(ctx, id, model.JobStatusPending, model.JobStatusFetchingInputs, "Gathering your preferences")
	require.NoError(t, err)

	job, err := st.Jobs().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFetchingInputs, job.Status)
	assert.Equal(t, "Gathering your preferences", job.ProgressMessage)
}

func TestTransitionRejectsRegression(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	id := createJob(t, st)

	require.NoError(t, st.Jobs().Transition(ctx, id, model.JobStatusPending, model.JobStatusGeneratingMeals, "Creating your meals"))

	err := st.Jobs().Transition(ctx, id, model.JobStatusGeneratingMeals, model.JobStatusFetchingInputs, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	job, err := st.Jobs().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusGeneratingMeals, job.Status)
}

func TestTransitionIdempotentOnRedelivery(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	id := createJob(t, st)

	require.NoError(t, st.Jobs().Transition(ctx, id, model.JobStatusPending, model.JobStatusFetchingInputs, "Gathering your preferences"))
	require.NoError(t, st.Jobs().Transition(ctx, id, model.JobStatusFetchingInputs, model.JobStatusGeneratingIngredients, "Choosing this week's ingredients"))

	// re-applying an already-made transition is a no-op
	err := st.Jobs().Transition(ctx, id, model.JobStatusPending, model.JobStatusFetchingInputs, "Gathering your preferences")
	require.NoError(t, err)

	job, err := st.Jobs().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusGeneratingIngredients, job.Status)
}

func TestTerminalJobRejectsWrites(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	id := createJob(t, st)
	planID := uuid.New()

	require.NoError(t, st.Jobs().Complete(ctx, id, planID))

	// a worker redelivered with a stale view of the job cannot move it
	err := st.Jobs().Transition(ctx, id, model.JobStatusSaving, model.JobStatusFailed, "")
	assert.ErrorIs(t, err, ErrJobTerminal)

	err = st.Jobs().Fail(ctx, id, "boom", nil)
	assert.ErrorIs(t, err, ErrJobTerminal)

	job, err := st.Jobs().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	require.NotNil(t, job.ResultPlanID)
	assert.Equal(t, planID, *job.ResultPlanID)
}

func TestCompleteIdempotentForSamePlan(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	id := createJob(t, st)
	planID := uuid.New()

	require.NoError(t, st.Jobs().Complete(ctx, id, planID))
	require.NoError(t, st.Jobs().Complete(ctx, id, planID))

	err := st.Jobs().Complete(ctx, id, uuid.New())
	assert.ErrorIs(t, err, ErrJobTerminal)
}

func TestFailKeepsErrorAndDebug(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	id := createJob(t, st)

	require.NoError(t, st.Jobs().Fail(ctx, id, "We couldn't build your prep schedule", []byte(`{"stage":"generate_prep_sessions"}`)))

	job, err := st.Jobs().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Equal(t, "We couldn't build your prep schedule", *job.ErrorMessage)
	assert.Contains(t, string(job.DebugData), "generate_prep_sessions")
}
