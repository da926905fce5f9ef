// Package pipeline turns a question into a structured answer. A regular
// question runs through five agents: draft, validate and simplify in
// sequence, then test-plan and further-reading in parallel. The two special
// commands, /simular and /refatorar, call a single agent each.
//
// Only the draft stage is mandatory. Every later stage degrades to an
// earlier stage's text or to a canned message, so a partial outage still
// produces an answer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ada-assist/ada/internal/agent"
	llmerrors "github.com/ada-assist/ada/internal/llm/errors"
	"github.com/ada-assist/ada/internal/metrics"
)

const msgUnexpected = "An unexpected error occurred while processing your question. Please try again."

// Recorder receives request and stage measurements. *metrics.Collector
// implements it.
type Recorder interface {
	RecordRequest()
	RecordResponseTime(d time.Duration)
	StartTimer(stage string) *metrics.Timer
}

// StageResult is the text one stage produced and whether it came from the
// stage's fallback source rather than its agent.
type StageResult struct {
	Text         string
	UsedFallback bool
}

// state accumulates stage results for one question. Stages take a state
// and return a new one; nothing is shared between requests.
type state struct {
	question       string
	draft          StageResult
	validated      StageResult
	final          StageResult
	testPlan       StageResult
	furtherReading StageResult
}

// Orchestrator runs questions through the agents.
type Orchestrator struct {
	agents   agent.Capability
	recorder Recorder
	logger   *slog.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder sets where measurements go. The default discards them.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithLogger sets the orchestrator's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l.With("component", "pipeline") }
}

// New creates an orchestrator over agents.
func New(agents agent.Capability, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		agents: agents,
		logger: slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.recorder == nil {
		o.recorder = metrics.NewCollector(1)
	}
	return o
}

// Run answers question. The question is expected to be validated and
// sanitized already. Run never panics and never returns a Go error: every
// failure is reported through Result.Error.
func (o *Orchestrator) Run(ctx context.Context, question string) (result Result) {
	start := time.Now()
	o.recorder.RecordRequest()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline panicked", "panic", r)
			result = Failure(msgUnexpected, fmt.Errorf("pipeline panic: %v", r))
		}
		o.recorder.RecordResponseTime(time.Since(start))
	}()

	question = strings.TrimSpace(question)
	if args, ok := command(question, CommandSimulate); ok {
		return o.simulate(ctx, args)
	}
	if args, ok := command(question, CommandRefactor); ok {
		return o.refactor(ctx, args)
	}

	o.logger.Info("pipeline started", "question", truncate(question, 50))

	st, err := o.draft(ctx, state{question: question})
	if err != nil {
		return Failure(describe(err), err)
	}
	st = o.validate(ctx, st)
	st = o.simplify(ctx, st)
	st = o.fanOut(ctx, st)

	o.logger.Info("pipeline completed",
		"validated_fallback", st.validated.UsedFallback,
		"simplified_fallback", st.final.UsedFallback,
		"test_plan_fallback", st.testPlan.UsedFallback,
		"further_reading_fallback", st.furtherReading.UsedFallback,
		"duration", time.Since(start))
	return assemble(st)
}

// invoke calls one agent and records the stage duration.
func (o *Orchestrator) invoke(ctx context.Context, id agent.ID, prompt string) (string, error) {
	timer := o.recorder.StartTimer(id.String())
	defer timer.Stop()
	return o.agents.Invoke(ctx, id, prompt, id.String())
}

// draft is mandatory: an error or error-like text ends the pipeline.
func (o *Orchestrator) draft(ctx context.Context, st state) (state, error) {
	text, err := o.invoke(ctx, agent.Draft, st.question)
	if err != nil {
		o.logger.Error("draft stage failed", "error", err)
		return st, err
	}
	if IsErrorText(text) {
		o.logger.Error("draft stage returned an error text", "text", truncate(text, 200))
		return st, &llmerrors.AgentError{Message: "Failed to generate the initial answer: " + text}
	}
	st.draft = StageResult{Text: text}
	return st, nil
}

// validate keeps the draft when the validator answers "OK" or fails.
func (o *Orchestrator) validate(ctx context.Context, st state) state {
	prompt := "Review this technical answer about digital accessibility:\n\n" + st.draft.Text
	text, err := o.invoke(ctx, agent.Validate, prompt)

	switch {
	case err != nil:
		o.logger.Warn("validate stage failed, keeping draft", "error", err)
		st.validated = StageResult{Text: st.draft.Text, UsedFallback: true}
	case IsErrorText(text):
		o.logger.Warn("validate stage returned an error text, keeping draft")
		st.validated = StageResult{Text: st.draft.Text, UsedFallback: true}
	case strings.TrimSpace(text) == "OK":
		st.validated = StageResult{Text: st.draft.Text}
	default:
		st.validated = StageResult{Text: text}
	}
	return st
}

// simplify falls back to the validated text.
func (o *Orchestrator) simplify(ctx context.Context, st state) state {
	prompt := "Rewrite this text about digital accessibility in plain, inclusive language:\n\n" + st.validated.Text
	text, err := o.invoke(ctx, agent.Simplify, prompt)

	switch {
	case err != nil:
		o.logger.Warn("simplify stage failed, keeping validated text", "error", err)
		st.final = StageResult{Text: st.validated.Text, UsedFallback: true}
	case IsErrorText(text):
		o.logger.Warn("simplify stage returned an error text, keeping validated text")
		st.final = StageResult{Text: st.validated.Text, UsedFallback: true}
	default:
		st.final = StageResult{Text: text}
	}
	return st
}

// fanOut runs test-plan and further-reading concurrently. Each branch
// degrades on its own; neither can cancel or fail the other.
func (o *Orchestrator) fanOut(ctx context.Context, st state) (out state) {
	out = st
	testPrompt := fmt.Sprintf("Write a practical test plan to validate this accessibility solution:\n\nQuestion: %s\n\nAnswer: %s",
		st.question, st.final.Text)
	readingPrompt := "Find trustworthy references and study material on this topic:\n\nQuestion: " + st.question

	var testPlan, reading StageResult
	var g errgroup.Group
	g.Go(func() error {
		return o.branch(ctx, agent.TestPlan, testPrompt, FallbackTestPlan, &testPlan)
	})
	g.Go(func() error {
		return o.branch(ctx, agent.FurtherReading, readingPrompt, FallbackFurtherReading, &reading)
	})

	if err := g.Wait(); err != nil {
		o.logger.Warn("parallel stage recovered from a panic", "error", err)
	}

	out.testPlan = testPlan
	out.furtherReading = reading
	return out
}

// branch runs one optional parallel stage into *dst. A panic is recovered
// into the fallback text and reported to the group.
func (o *Orchestrator) branch(ctx context.Context, id agent.ID, prompt, fallback string, dst *StageResult) (err error) {
	*dst = StageResult{Text: fallback, UsedFallback: true}
	defer func() {
		if r := recover(); r != nil {
			*dst = StageResult{Text: fallback, UsedFallback: true}
			err = fmt.Errorf("%s stage panic: %v", id, r)
		}
	}()

	text, callErr := o.invoke(ctx, id, prompt)
	switch {
	case callErr != nil:
		o.logger.Warn("parallel stage failed, using fallback text", "stage", id, "error", callErr)
	case IsErrorText(text):
		o.logger.Warn("parallel stage returned an error text, using fallback text", "stage", id)
	default:
		*dst = StageResult{Text: text}
	}
	return nil
}

// describe turns an error into the message shown to the user.
func describe(err error) string {
	var (
		apiErr   *llmerrors.APIError
		agentErr *llmerrors.AgentError
		valErr   *llmerrors.ValidationError
	)
	switch {
	case errors.As(err, &valErr):
		return valErr.Message
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.As(err, &agentErr):
		return agentErr.Message
	default:
		return msgUnexpected
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
