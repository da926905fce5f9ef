package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ada-assist/ada/internal/cache"
	llmerrors "github.com/ada-assist/ada/internal/llm/errors"
	"github.com/ada-assist/ada/internal/llm/retry"
	"github.com/ada-assist/ada/internal/metrics"
	"github.com/ada-assist/ada/internal/pipeline"
)

const msgUnexpected = "An unexpected error occurred while processing your question. Please try again."

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Question string `json:"question"`
}

// MetricsResponse is the body of GET /api/metrics: the collector snapshot
// plus, when wired, the transport retry counters.
type MetricsResponse struct {
	metrics.Snapshot
	Retry *retry.Stats `json:"retry,omitempty"`
}

// ChatResponse is the body of a successful POST /api/chat.
type ChatResponse struct {
	Response pipeline.Result `json:"response"`
	Cached   bool            `json:"cached"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Cache   *cache.Stats `json:"cache,omitempty"`
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := dec.Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ans, err := s.asker.Ask(r.Context(), req.Question)
	if err != nil {
		var valErr *llmerrors.ValidationError
		if errors.As(err, &valErr) {
			s.logger.Warn("question rejected", "reason", valErr.Message)
			Error(w, http.StatusBadRequest, valErr.Message)
			return
		}
		s.logger.Error("chat failed", "error", err)
		Error(w, http.StatusInternalServerError, msgUnexpected)
		return
	}

	if ans.Result.Failed() {
		s.logger.Error("pipeline failed", "error", ans.Result.Error)
		Error(w, http.StatusInternalServerError, ans.Result.Error)
		return
	}

	JSON(w, http.StatusOK, ChatResponse{Response: ans.Result, Cached: ans.Cached})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Message: "Ada accessibility assistant API is running",
	}
	if s.cache != nil {
		stats := s.cache.Stats()
		resp.Cache = &stats
	}
	JSON(w, http.StatusOK, resp)
}

func (s *Server) getMetrics(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		Error(w, http.StatusNotFound, "metrics disabled")
		return
	}
	resp := MetricsResponse{Snapshot: s.metrics.Snapshot()}
	if s.retries != nil {
		stats := s.retries.RetryStats()
		resp.Retry = &stats
	}
	JSON(w, http.StatusOK, resp)
}

func (s *Server) getConfig(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]int{
		"request_timeout_ms":             RequestTimeoutMS,
		"error_announcement_duration_ms": ErrorAnnouncementDurationMS,
	})
}

func (s *Server) cacheStats(w http.ResponseWriter, _ *http.Request) {
	if s.cache == nil {
		Error(w, http.StatusNotFound, "cache disabled")
		return
	}
	JSON(w, http.StatusOK, s.cache.Stats())
}

func (s *Server) clearCache(w http.ResponseWriter, _ *http.Request) {
	if s.cache == nil {
		Error(w, http.StatusNotFound, "cache disabled")
		return
	}
	s.cache.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
