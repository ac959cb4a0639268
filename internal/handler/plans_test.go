package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealweek/api/internal/config"
	"github.com/mealweek/api/internal/middleware"
	"github.com/mealweek/api/internal/model"
	"github.com/mealweek/api/internal/service"
	"github.com/mealweek/api/internal/store"
)

const testJWTSecret = "test-secret"

type fakeEnqueuer struct {
	enqueued []*asynq.Task
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.enqueued = append(f.enqueued, task)
	return &asynq.TaskInfo{ID: uuid.NewString(), Type: task.Type()}, nil
}

type testEnv struct {
	app      *fiber.App
	store    store.Store
	enqueuer *fakeEnqueuer
	authMW   *middleware.AuthMiddleware
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := store.InitDB(&config.DatabaseConfig{Type: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	st := store.NewStore(db)
	require.NoError(t, st.Migrate())
	t.Cleanup(func() { st.Close() })

	enqueuer := &fakeEnqueuer{}
	svc := service.NewPlanService(st, enqueuer)

	planHandler := NewPlanHandler(svc, validator.New())
	themeHandler := NewThemeHandler(svc)

	authMW := middleware.NewLegacyAuthMiddleware(testJWTSecret)

	app := fiber.New()
	api := app.Group("/api", authMW.Authenticate())
	plans := api.Group("/plans")
	plans.Post("/generate", planHandler.Generate)
	plans.Get("/jobs/:jobId", planHandler.JobStatus)
	plans.Get("/:planId", planHandler.GetPlan)
	plans.Post("/:planId/favorite", planHandler.Favorite)
	api.Get("/themes", themeHandler.List)

	return &testEnv{app: app, store: st, enqueuer: enqueuer, authMW: authMW}
}

func (e *testEnv) request(t *testing.T, method, path, userID string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token, err := e.authMW.GenerateToken(userID, userID+"@example.com")
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	return body
}

func seedProfile(t *testing.T, st store.Store, userID string) {
	t.Helper()
	err := st.Profiles().Upsert(t.Context(), &model.UserProfile{
		UserID:        userID,
		HouseholdSize: 2,
		PrepStyle:     model.PrepStyleDayOf,
	})
	require.NoError(t, err)
}

func TestGenerateAcceptsAndQueues(t *testing.T) {
	env := newTestEnv(t)
	seedProfile(t, env.store, "user-1")

	resp := env.request(t, fiber.MethodPost, "/api/plans/generate", "user-1", fiber.Map{
		"themeSelection": "surprise",
	})
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, string(model.JobStatusPending), body["status"])

	jobID, err := uuid.Parse(body["jobId"].(string))
	require.NoError(t, err)

	job, err := env.store.Jobs().Get(t.Context(), jobID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", job.UserID)
	assert.Equal(t, model.JobStatusPending, job.Status)

	require.Len(t, env.enqueuer.enqueued, 1)
	assert.Equal(t, "plans:generate", env.enqueuer.enqueued[0].Type())
}

func TestGenerateWithoutProfile(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, fiber.MethodPost, "/api/plans/generate", "user-1", nil)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	body := decodeBody(t, resp)
	errDetail := body["error"].(map[string]interface{})
	assert.Equal(t, "PROFILE_REQUIRED", errDetail["code"])
	assert.Empty(t, env.enqueuer.enqueued)
}

func TestGenerateUnknownTheme(t *testing.T) {
	env := newTestEnv(t)
	seedProfile(t, env.store, "user-1")

	resp := env.request(t, fiber.MethodPost, "/api/plans/generate", "user-1", fiber.Map{
		"themeSelection": "no-such-theme",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, env.enqueuer.enqueued)
}

func TestJobStatusReflectsStore(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	job := &model.GenerationJob{ID: uuid.New(), UserID: "user-1", Status: model.JobStatusPending}
	require.NoError(t, env.store.Jobs().Create(ctx, job))
	require.NoError(t, env.store.Jobs().Transition(ctx, job.ID, model.JobStatusPending, model.JobStatusGeneratingMeals, "Creating your meals"))

	resp := env.request(t, fiber.MethodGet, "/api/plans/jobs/"+job.ID.String(), "user-1", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, string(model.JobStatusGeneratingMeals), body["status"])
	assert.Equal(t, "Creating your meals", body["progressMessage"])
}

func TestJobStatusForeignUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	job := &model.GenerationJob{ID: uuid.New(), UserID: "user-1", Status: model.JobStatusPending}
	require.NoError(t, env.store.Jobs().Create(ctx, job))

	resp := env.request(t, fiber.MethodGet, "/api/plans/jobs/"+job.ID.String(), "user-2", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestJobStatusInvalidID(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, fiber.MethodGet, "/api/plans/jobs/not-a-uuid", "user-1", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestFavoriteToggle(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	plan := &model.MealPlan{ID: uuid.New(), UserID: "user-1", Title: "Test Week"}
	require.NoError(t, env.store.Plans().Create(ctx, plan))

	resp := env.request(t, fiber.MethodPost, "/api/plans/"+plan.ID.String()+"/favorite", "user-1", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, true, body["isFavorite"])

	resp = env.request(t, fiber.MethodPost, "/api/plans/"+plan.ID.String()+"/favorite", "user-1", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, false, body["isFavorite"])
}

func TestGetPlanForeignUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	plan := &model.MealPlan{ID: uuid.New(), UserID: "user-1", Title: "Test Week"}
	require.NoError(t, env.store.Plans().Create(ctx, plan))

	resp := env.request(t, fiber.MethodGet, "/api/plans/"+plan.ID.String(), "user-2", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestListThemes(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Seed(t.Context()))

	resp := env.request(t, fiber.MethodGet, "/api/themes", "user-1", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	themes := body["themes"].([]interface{})
	assert.NotEmpty(t, themes)
}

func TestMissingAuthHeader(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(fiber.MethodGet, "/api/themes", nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
