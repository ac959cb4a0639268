package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mealweek/api/internal/client"
	"github.com/mealweek/api/internal/model"
	"github.com/mealweek/api/internal/store"
	"github.com/mealweek/api/internal/tasks"
)

// FanoutWorker handles the post-completion side effects. Each task type is
// an independent job on the fanout queue, so one failing side effect retries
// alone without touching the others or the completed plan.
type FanoutWorker struct {
	store  store.Store
	mailer client.Notifier
	redis  *redis.Client
	logger *zap.SugaredLogger
}

func NewFanoutWorker(st store.Store, mailer client.Notifier, redisClient *redis.Client) *FanoutWorker {
	return &FanoutWorker{
		store:  st,
		mailer: mailer,
		redis:  redisClient,
		logger: zap.S().Named("fanout_worker"),
	}
}

func (w *FanoutWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.FanoutPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid fanout payload: %w", err)
	}

	switch t.Type() {
	case tasks.TypeFanoutEmail:
		return w.sendEmail(ctx, &payload)
	case tasks.TypeFanoutCounters:
		return w.incrementCounters(ctx, &payload)
	case tasks.TypeFanoutThemeUsage:
		return w.recordThemeUsage(ctx, &payload)
	default:
		return fmt.Errorf("unknown fanout task type %q", t.Type())
	}
}

func (w *FanoutWorker) sendEmail(ctx context.Context, payload *tasks.FanoutPayload) error {
	if w.mailer == nil {
		w.logger.Debugw("mailer not configured, skipping notification", "plan_id", payload.PlanID)
		return nil
	}
	return w.mailer.SendPlanReady(ctx, &client.PlanReadyRequest{
		UserID:    payload.UserID,
		PlanID:    payload.PlanID,
		PlanTitle: payload.PlanTitle,
		WeekStart: payload.WeekStart,
	})
}

func (w *FanoutWorker) incrementCounters(ctx context.Context, payload *tasks.FanoutPayload) error {
	pipe := w.redis.Pipeline()
	pipe.Incr(ctx, "stats:plans_generated:total")
	pipe.Incr(ctx, "stats:plans_generated:"+payload.UserID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("incrementing plan counters: %w", err)
	}
	return nil
}

func (w *FanoutWorker) recordThemeUsage(ctx context.Context, payload *tasks.FanoutPayload) error {
	planID, err := uuid.Parse(payload.PlanID)
	if err != nil {
		return fmt.Errorf("invalid plan id %q: %w", payload.PlanID, err)
	}

	entry := &model.ThemeHistory{
		UserID: payload.UserID,
		PlanID: planID,
	}
	if payload.ThemeID != "" {
		entry.ThemeID = &payload.ThemeID
	}

	// protein focus comes from the plan row, not the payload
	if plan, err := w.store.Plans().Get(ctx, planID); err == nil {
		entry.ProteinFocus = plan.ProteinFocus
	}

	return w.store.History().Record(ctx, entry)
}
