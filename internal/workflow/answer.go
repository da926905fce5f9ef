package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ada-assist/ada/internal/activity"
)

// Activity timing for AnswerWorkflow. A full pipeline run makes five model
// calls, each bounded by the HTTP timeout, with fallback on top.
const (
	AnswerStartToClose = 5 * time.Minute
	AnswerHeartbeat    = 3 * activity.HeartbeatInterval
	AnswerMaxAttempts  = 3
)

// AnswerWorkflow answers a question durably by running the Answer activity
// under a retry policy. All workflow code must use workflow-safe APIs only.
func AnswerWorkflow(ctx workflow.Context, in activity.AnswerInput) (*activity.AnswerOutput, error) {
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "answer.v", workflow.DefaultVersion, currentVersion)

	if err := in.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError("invalid answer request", "Validation", err)
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: AnswerStartToClose,
		HeartbeatTimeout:    AnswerHeartbeat,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    AnswerMaxAttempts,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	logger := workflow.GetLogger(ctx)
	logger.Info("answering question", "question_runes", len([]rune(in.Question)))

	var acts *activity.Activities
	var out activity.AnswerOutput
	if err := workflow.ExecuteActivity(ctx, acts.Answer, in).Get(ctx, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
