package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ada-assist/ada/internal/cache"
	"github.com/ada-assist/ada/internal/chat"
	"github.com/ada-assist/ada/internal/llm/configuration"
	llmerrors "github.com/ada-assist/ada/internal/llm/errors"
	"github.com/ada-assist/ada/internal/llm/retry"
	"github.com/ada-assist/ada/internal/metrics"
	"github.com/ada-assist/ada/internal/pipeline"
	"github.com/ada-assist/ada/internal/ratelimit"
	"github.com/ada-assist/ada/internal/server"
)

type stubAnswerer struct {
	calls  atomic.Int64
	result pipeline.Result
}

func (s *stubAnswerer) Run(context.Context, string) pipeline.Result {
	s.calls.Add(1)
	return s.result
}

type fixture struct {
	answerer  *stubAnswerer
	cache     *cache.Cache[pipeline.Result]
	collector *metrics.Collector
	handler   http.Handler
}

func newFixture(t *testing.T, result pipeline.Result, opts ...server.Option) *fixture {
	t.Helper()
	f := &fixture{
		answerer:  &stubAnswerer{result: result},
		collector: metrics.NewCollector(0),
		cache: cache.New[pipeline.Result](configuration.CacheConfig{
			Enabled: true,
			TTL:     time.Hour,
			MaxSize: 10,
		}),
	}
	svc := chat.NewService(f.answerer, f.cache, f.collector, configuration.QuestionConfig{MinLength: 3, MaxLength: 2000})
	opts = append([]server.Option{server.WithCache(f.cache)}, opts...)
	f.handler = server.New(svc, f.collector, configuration.ServerConfig{Addr: ":0"}, opts...).Handler()
	return f
}

func (f *fixture) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func answer() pipeline.Result {
	return pipeline.Result{Sections: []pipeline.Section{
		{Title: pipeline.TitleIntroduction, Body: "Alt text describes images."},
		{Title: pipeline.TitleConcepts, Body: "WCAG 1.1.1"},
	}}
}

type chatBody struct {
	Response map[string]string `json:"response"`
	Cached   bool              `json:"cached"`
}

func TestChatAnswersAndCaches(t *testing.T) {
	f := newFixture(t, answer())

	rec := f.do(http.MethodPost, "/api/chat", `{"question": "What is alt text?"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var first chatBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.False(t, first.Cached)
	assert.Equal(t, "Alt text describes images.", first.Response[pipeline.TitleIntroduction])

	introAt := strings.Index(rec.Body.String(), "Introduction")
	conceptsAt := strings.Index(rec.Body.String(), "Essential Concepts")
	assert.Less(t, introAt, conceptsAt, "sections keep their order")

	rec = f.do(http.MethodPost, "/api/chat", `{"question": "what is ALT text?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var second chatBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.True(t, second.Cached)
	assert.Equal(t, first.Response, second.Response)
	assert.Equal(t, int64(1), f.answerer.calls.Load())
}

func TestChatStatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		result    pipeline.Result
		body      string
		wantCode  int
		wantError string
	}{
		{
			name:      "malformed body",
			result:    answer(),
			body:      `{"question":`,
			wantCode:  http.StatusBadRequest,
			wantError: "invalid request body",
		},
		{
			name:      "too short",
			result:    answer(),
			body:      `{"question": "ab"}`,
			wantCode:  http.StatusBadRequest,
			wantError: "at least 3 characters",
		},
		{
			name:      "empty",
			result:    answer(),
			body:      `{"question": "   "}`,
			wantCode:  http.StatusBadRequest,
			wantError: "Please type a question",
		},
		{
			name:      "pipeline validation",
			result:    pipeline.Failure("model required", &llmerrors.ValidationError{Message: "model required"}),
			body:      `{"question": "What is ARIA?"}`,
			wantCode:  http.StatusBadRequest,
			wantError: "model required",
		},
		{
			name:      "pipeline failure",
			result:    pipeline.Failure("All available models failed. Please try again later.", &llmerrors.APIError{}),
			body:      `{"question": "What is ARIA?"}`,
			wantCode:  http.StatusInternalServerError,
			wantError: "All available models failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.result)
			rec := f.do(http.MethodPost, "/api/chat", tt.body)
			require.Equal(t, tt.wantCode, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body["error"], tt.wantError)
		})
	}
}

func TestChatFailuresAreNotCached(t *testing.T) {
	f := newFixture(t, pipeline.Failure("boom", &llmerrors.APIError{}))

	for range 2 {
		rec := f.do(http.MethodPost, "/api/chat", `{"question": "What is ARIA?"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	}
	assert.Equal(t, int64(2), f.answerer.calls.Load())
	assert.Zero(t, f.cache.Len())
}

func TestChatRateLimitPerClient(t *testing.T) {
	limiter := ratelimit.New(configuration.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 2,
		IdleTTL:           time.Minute,
	})
	f := newFixture(t, answer(), server.WithLimiter(limiter))
	const body = `{"question": "What is ARIA?"}`

	for range 2 {
		rec := f.do(http.MethodPost, "/api/chat", body, "X-Forwarded-For", "203.0.113.7")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := f.do(http.MethodPost, "/api/chat", body, "X-Forwarded-For", "203.0.113.7")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	var errBody map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Equal(t, "Rate limit exceeded: 2 per 1 minute", errBody["error"])

	rec = f.do(http.MethodPost, "/api/chat", body, "X-Forwarded-For", "198.51.100.9")
	assert.Equal(t, http.StatusOK, rec.Code, "other clients keep their own budget")
}

func TestRateLimitOnlyGuardsChat(t *testing.T) {
	limiter := ratelimit.New(configuration.RateLimitConfig{Enabled: true, RequestsPerMinute: 1})
	f := newFixture(t, answer(), server.WithLimiter(limiter))

	for range 3 {
		assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/health", "").Code)
	}
}

func TestHealthIncludesCacheStats(t *testing.T) {
	f := newFixture(t, answer())
	f.do(http.MethodPost, "/api/chat", `{"question": "What is alt text?"}`)

	rec := f.do(http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body server.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	require.NotNil(t, body.Cache)
	assert.True(t, body.Cache.Enabled)
	assert.Equal(t, 1, body.Cache.Size)
	assert.Equal(t, 10, body.Cache.MaxSize)
	assert.Equal(t, int64(3600), body.Cache.TTLSeconds)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, answer())
	f.do(http.MethodPost, "/api/chat", `{"question": "What is alt text?"}`)
	f.do(http.MethodPost, "/api/chat", `{"question": "What is alt text?"}`)

	rec := f.do(http.MethodGet, "/api/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, int64(1), snap.Cache.Hits)
	assert.Equal(t, int64(1), snap.Cache.Misses)
	assert.Equal(t, 50.0, snap.Cache.HitRate)
	assert.NotContains(t, rec.Body.String(), `"retry"`)
}

type fixedRetryStats retry.Stats

func (f fixedRetryStats) RetryStats() retry.Stats { return retry.Stats(f) }

func TestMetricsEndpointIncludesRetryStats(t *testing.T) {
	f := newFixture(t, answer(), server.WithRetryStats(fixedRetryStats{
		TotalAttempts:     7,
		SuccessfulRetries: 2,
		NonRetryable:      1,
		AverageAttempts:   1.75,
	}))
	f.do(http.MethodPost, "/api/chat", `{"question": "What is alt text?"}`)

	rec := f.do(http.MethodGet, "/api/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body server.MetricsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1), body.Cache.Misses)
	require.NotNil(t, body.Retry)
	assert.Equal(t, int64(7), body.Retry.TotalAttempts)
	assert.Equal(t, int64(2), body.Retry.SuccessfulRetries)
	assert.Equal(t, 1.75, body.Retry.AverageAttempts)
}

func TestCacheAdministration(t *testing.T) {
	f := newFixture(t, answer())
	f.do(http.MethodPost, "/api/chat", `{"question": "What is alt text?"}`)
	require.Equal(t, 1, f.cache.Len())

	rec := f.do(http.MethodGet, "/api/cache/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats cache.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Size)

	rec = f.do(http.MethodDelete, "/api/cache", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, f.cache.Len())
}

func TestCacheRoutesWithoutCache(t *testing.T) {
	svc := chat.NewService(&stubAnswerer{result: answer()}, nil, nil, configuration.QuestionConfig{MinLength: 3, MaxLength: 10})
	h := server.New(svc, nil, configuration.ServerConfig{Addr: ":0"}).Handler()

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/cache/stats"},
		{http.MethodDelete, "/api/cache"},
		{http.MethodGet, "/api/metrics"},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, tc.path)
	}
}

func TestConfigAndSecurityHeaders(t *testing.T) {
	f := newFixture(t, answer())

	rec := f.do(http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, server.RequestTimeoutMS, cfg["request_timeout_ms"])
	assert.Equal(t, server.ErrorAnnouncementDurationMS, cfg["error_announcement_duration_ms"])

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestUnknownRouteAndMethod(t *testing.T) {
	f := newFixture(t, answer())
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/nope", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodGet, "/api/chat", "").Code)
}

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	server.JSON(rec, http.StatusCreated, map[string]string{"foo": "bar"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"foo":"bar"}`, rec.Body.String())
}
