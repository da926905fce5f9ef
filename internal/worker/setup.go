package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ada-assist/ada/internal/activity"
	"github.com/ada-assist/ada/internal/llm/configuration"
	"github.com/ada-assist/ada/internal/workflow"
)

// Dial connects to the Temporal frontend described by cfg, logging through
// the default slog logger.
func Dial(cfg configuration.TemporalConfig) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    log.NewStructuredLogger(slog.Default().With("component", "temporal")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to temporal at %s: %w", cfg.HostPort, err)
	}
	return c, nil
}

// Run registers everything on a worker for cfg.TaskQueue and blocks until
// ctx is cancelled or the worker fails.
func Run(ctx context.Context, c client.Client, cfg configuration.TemporalConfig, asker activity.Asker) error {
	w := sdkworker.New(c, cfg.TaskQueue, sdkworker.Options{})
	RegisterAll(w, asker)

	stop := make(chan interface{})
	go func() {
		<-ctx.Done()
		close(stop)
	}()

	slog.Default().Info("temporal worker started", "component", "worker", "task_queue", cfg.TaskQueue)
	if err := w.Run(stop); err != nil {
		return fmt.Errorf("temporal worker stopped: %w", err)
	}
	return nil
}

// Submit starts AnswerWorkflow for question and waits for its result.
func Submit(ctx context.Context, c client.Client, taskQueue, question string) (*activity.AnswerOutput, error) {
	opts := client.StartWorkflowOptions{
		ID:        "ada-answer-" + uuid.NewString(),
		TaskQueue: taskQueue,
	}
	run, err := c.ExecuteWorkflow(ctx, opts, workflow.AnswerWorkflow, activity.AnswerInput{Question: question})
	if err != nil {
		return nil, fmt.Errorf("failed to start answer workflow: %w", err)
	}

	var out activity.AnswerOutput
	if err := run.Get(ctx, &out); err != nil {
		return nil, fmt.Errorf("answer workflow %s failed: %w", run.GetID(), err)
	}
	return &out, nil
}
