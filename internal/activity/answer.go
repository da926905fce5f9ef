// Package activity holds the Temporal activities that answer questions
// durably.
package activity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	sdkactivity "go.temporal.io/sdk/activity"

	"github.com/ada-assist/ada/internal/chat"
	llmerrors "github.com/ada-assist/ada/internal/llm/errors"
	"github.com/ada-assist/ada/internal/pipeline"
)

// HeartbeatInterval is how often a running Answer reports liveness.
const HeartbeatInterval = 10 * time.Second

// Asker answers questions. *chat.Service implements it.
type Asker interface {
	Ask(ctx context.Context, question string) (chat.Answer, error)
}

// AnswerInput is the payload of the Answer activity and AnswerWorkflow.
type AnswerInput struct {
	Question string `json:"question"`
}

// Validate rejects blank questions before any work is scheduled.
func (in AnswerInput) Validate() error {
	if strings.TrimSpace(in.Question) == "" {
		return &llmerrors.ValidationError{Field: "question", Message: "question is required"}
	}
	return nil
}

// AnswerOutput is the result of the Answer activity.
type AnswerOutput struct {
	Result pipeline.Result `json:"result"`
	Cached bool            `json:"cached"`
}

// Activities provides activity functions with their dependencies injected.
type Activities struct {
	asker  Asker
	logger *slog.Logger
}

// NewActivities creates activities backed by asker.
func NewActivities(asker Asker) *Activities {
	return &Activities{
		asker:  asker,
		logger: slog.Default().With("component", "activity"),
	}
}

// Answer runs the question through the chat service. Bad input and
// permanent pipeline failures are non-retryable; transient provider
// failures are returned as retryable so the workflow's policy applies.
func (a *Activities) Answer(ctx context.Context, in AnswerInput) (*AnswerOutput, error) {
	if a.asker == nil {
		return nil, nonRetryable(ErrorTypeAnswer, ErrNoAsker, "activity misconfigured")
	}
	if err := in.Validate(); err != nil {
		return nil, nonRetryable(ErrorTypeAnswer, err, "invalid input")
	}

	logger := a.logger.With(executionContext(ctx).LogArgs()...)

	stop := a.heartbeat(ctx)
	defer stop()

	ans, err := a.asker.Ask(ctx, in.Question)
	if err != nil {
		var valErr *llmerrors.ValidationError
		if errors.As(err, &valErr) {
			return nil, nonRetryable(ErrorTypeAnswer, err, valErr.Message)
		}
		if shouldRetry(err) {
			return nil, retryable(ErrorTypeAnswer, err, err.Error())
		}
		return nil, nonRetryable(ErrorTypeAnswer, err, "answer failed")
	}

	if ans.Result.Failed() {
		cause := ans.Result.Err
		if cause == nil {
			cause = errors.New(ans.Result.Error)
		}
		logger.Warn("answer failed", "error", ans.Result.Error, "retry", shouldRetry(cause))
		if shouldRetry(cause) {
			return nil, retryable(ErrorTypeAnswer, cause, ans.Result.Error)
		}
		return nil, nonRetryable(ErrorTypeAnswer, cause, ans.Result.Error)
	}

	logger.Debug("answer ready", "cached", ans.Cached)
	return &AnswerOutput{Result: ans.Result, Cached: ans.Cached}, nil
}

// heartbeat records liveness until the returned stop function is called.
func (a *Activities) heartbeat(ctx context.Context) func() {
	if !sdkactivity.IsActivity(ctx) {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sdkactivity.RecordHeartbeat(ctx, "answering")
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() { close(done) }
}

// shouldRetry reports whether a failure is worth another attempt. Exhausted
// fallback chains and provider quota can recover on their own.
func shouldRetry(err error) bool {
	if errors.Is(err, llmerrors.ErrFallbackExhausted) {
		return true
	}
	var quota *llmerrors.QuotaExhaustedError
	if errors.As(err, &quota) {
		return true
	}
	wfErr := llmerrors.Classify(err)
	return wfErr != nil && wfErr.ShouldRetry()
}
