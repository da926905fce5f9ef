// Package chat is the entry point shared by every surface that answers
// questions: it sanitizes and bounds the question, serves repeated
// questions from the response cache and stores fresh successful answers.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/ada-assist/ada/internal/cache"
	"github.com/ada-assist/ada/internal/llm"
	"github.com/ada-assist/ada/internal/llm/configuration"
	llmerrors "github.com/ada-assist/ada/internal/llm/errors"
	"github.com/ada-assist/ada/internal/pipeline"
)

// Answerer produces a result for a sanitized question.
// *pipeline.Orchestrator implements it.
type Answerer interface {
	Run(ctx context.Context, question string) pipeline.Result
}

// CacheRecorder counts cache lookups. *metrics.Collector implements it.
type CacheRecorder interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// Answer is the outcome of Ask.
type Answer struct {
	Result pipeline.Result
	Cached bool
}

// Service answers questions.
type Service struct {
	answerer Answerer
	cache    *cache.Cache[pipeline.Result]
	recorder CacheRecorder
	bounds   configuration.QuestionConfig
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService creates a service. cache and recorder may be nil.
func NewService(answerer Answerer, c *cache.Cache[pipeline.Result], recorder CacheRecorder, bounds configuration.QuestionConfig) *Service {
	return &Service{
		answerer: answerer,
		cache:    c,
		recorder: recorder,
		bounds:   bounds,
		validate: validator.New(),
		logger:   slog.Default().With("component", "chat"),
	}
}

// Ask answers question. Bad input yields a *llmerrors.ValidationError; every
// other failure is carried by the returned result's Error.
func (s *Service) Ask(ctx context.Context, question string) (Answer, error) {
	clean := Sanitize(question)
	if err := s.check(clean); err != nil {
		return Answer{}, err
	}
	if kinds := DetectInjection(clean); len(kinds) > 0 {
		s.logger.Warn("suspicious patterns in question", "patterns", kinds)
	}

	if res, ok := s.lookup(clean); ok {
		return Answer{Result: res, Cached: true}, nil
	}

	res := s.answerer.Run(ctx, clean)
	if res.Failed() {
		if llmerrors.IsValidation(res.Err) {
			return Answer{}, &llmerrors.ValidationError{Field: "question", Message: res.Error}
		}
		return Answer{Result: res}, nil
	}

	if s.cache != nil && !isMaintenance(res) {
		s.cache.Set(clean, res)
		s.logger.Debug("answer cached", "question", preview(clean))
	}
	return Answer{Result: res}, nil
}

// check enforces the question length bounds.
func (s *Service) check(question string) error {
	if question == "" {
		return &llmerrors.ValidationError{Field: "question", Message: "Please type a question about digital accessibility."}
	}
	tag := fmt.Sprintf("min=%d,max=%d", s.bounds.MinLength, s.bounds.MaxLength)
	if err := s.validate.Var(question, tag); err != nil {
		n := utf8.RuneCountInString(question)
		msg := fmt.Sprintf("The question must have at least %d characters.", s.bounds.MinLength)
		if n > s.bounds.MaxLength {
			msg = fmt.Sprintf("The question cannot have more than %d characters.", s.bounds.MaxLength)
		}
		return &llmerrors.ValidationError{Field: "question", Message: msg}
	}
	return nil
}

func (s *Service) lookup(question string) (pipeline.Result, bool) {
	if s.cache == nil || !s.cache.Enabled() {
		return pipeline.Result{}, false
	}

	if res, ok := s.cache.Get(question); ok {
		s.hit()
		s.logger.Info("cache hit", "question", preview(question))
		return res, true
	}
	if res, score, ok := s.cache.FindSimilar(question); ok {
		s.hit()
		s.logger.Info("similar cache hit", "question", preview(question), "similarity", score)
		return res, true
	}

	if s.recorder != nil {
		s.recorder.RecordCacheMiss()
	}
	s.logger.Debug("cache miss", "question", preview(question))
	return pipeline.Result{}, false
}

func (s *Service) hit() {
	if s.recorder != nil {
		s.recorder.RecordCacheHit()
	}
}

// Cache exposes the response cache for administrative endpoints.
func (s *Service) Cache() *cache.Cache[pipeline.Result] {
	return s.cache
}

func isMaintenance(res pipeline.Result) bool {
	for _, sec := range res.Sections {
		if llm.IsMaintenanceText(sec.Body) {
			return true
		}
	}
	return false
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= 50 {
		return s
	}
	return string(r[:50]) + "..."
}
