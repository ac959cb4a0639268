package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task type names, namespaced by queue.
const (
	TypePlanGenerate     = "plans:generate"
	TypeBatchPrep        = "batchprep:generate"
	TypeFanoutEmail      = "fanout:email"
	TypeFanoutCounters   = "fanout:counters"
	TypeFanoutThemeUsage = "fanout:theme_usage"
)

// Queue names. Plan generation and fan-out share a server; batch prep runs
// on its own server so its concurrency cap holds system-wide.
const (
	QueuePlans     = "plans"
	QueueBatchPrep = "batchprep"
	QueueFanout    = "fanout"
)

// PlanTaskPayload carries a plan-generation job to the worker.
type PlanTaskPayload struct {
	JobID  string `json:"job_id"`
	UserID string `json:"user_id"`
}

// BatchPrepPayload carries a batch-prep consolidation request.
type BatchPrepPayload struct {
	PlanID string `json:"plan_id"`
	UserID string `json:"user_id"`
}

// FanoutPayload carries the post-completion side effects. Each fan-out task
// type reads the fields it needs and ignores the rest.
type FanoutPayload struct {
	JobID     string `json:"job_id"`
	PlanID    string `json:"plan_id"`
	UserID    string `json:"user_id"`
	PlanTitle string `json:"plan_title,omitempty"`
	WeekStart string `json:"week_start,omitempty"`
	ThemeID   string `json:"theme_id,omitempty"`
}

// Enqueuer is the subset of asynq.Client the service and pipeline need.
// Tests substitute a recorder.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewPlanGenerateTask creates a task to run the full generation pipeline
// for a job. Retries are disabled: a failed job is terminal and the user
// resubmits.
func NewPlanGenerateTask(payload *PlanTaskPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal plan task payload: %w", err)
	}
	return asynq.NewTask(TypePlanGenerate, data, asynq.Queue(QueuePlans), asynq.MaxRetry(0)), nil
}

// NewBatchPrepTask creates a task to consolidate a plan's batch-eligible
// meals into prep sessions.
func NewBatchPrepTask(payload *BatchPrepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch prep payload: %w", err)
	}
	return asynq.NewTask(TypeBatchPrep, data, asynq.Queue(QueueBatchPrep), asynq.MaxRetry(3)), nil
}

// NewFanoutTask creates one independent post-completion side-effect task.
// Each retries on its own schedule without affecting the others.
func NewFanoutTask(taskType string, payload *FanoutPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fanout payload: %w", err)
	}
	return asynq.NewTask(taskType, data, asynq.Queue(QueueFanout), asynq.MaxRetry(5)), nil
}
