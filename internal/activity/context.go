package activity

import (
	"context"

	sdkactivity "go.temporal.io/sdk/activity"
)

// ExecutionContext identifies the activity execution a log line belongs to.
// Outside a Temporal activity (plain unit tests) it is empty.
type ExecutionContext struct {
	WorkflowID string
	RunID      string
	ActivityID string
	Attempt    int32
}

// executionContext extracts the execution details from ctx without
// panicking when ctx is not an activity context.
func executionContext(ctx context.Context) ExecutionContext {
	if !sdkactivity.IsActivity(ctx) {
		return ExecutionContext{}
	}
	info := sdkactivity.GetInfo(ctx)
	return ExecutionContext{
		WorkflowID: info.WorkflowExecution.ID,
		RunID:      info.WorkflowExecution.RunID,
		ActivityID: info.ActivityID,
		Attempt:    info.Attempt,
	}
}

// LogArgs renders the context as slog key/value pairs.
func (e ExecutionContext) LogArgs() []any {
	if e.WorkflowID == "" {
		return nil
	}
	return []any{
		"workflow_id", e.WorkflowID,
		"run_id", e.RunID,
		"activity_id", e.ActivityID,
		"attempt", e.Attempt,
	}
}
