package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ada-assist/ada/internal/agent"
	"github.com/ada-assist/ada/internal/cache"
	"github.com/ada-assist/ada/internal/chat"
	"github.com/ada-assist/ada/internal/llm"
	"github.com/ada-assist/ada/internal/llm/configuration"
	"github.com/ada-assist/ada/internal/metrics"
	"github.com/ada-assist/ada/internal/pipeline"
	"github.com/ada-assist/ada/internal/ratelimit"
)

// app is the assembled object graph shared by every subcommand.
type app struct {
	cfg         *configuration.Config
	collector   *metrics.Collector
	coordinator *llm.Coordinator
	cache       *cache.Cache[pipeline.Result]
	limiter     *ratelimit.Limiter
	chat        *chat.Service
}

// newApp loads configuration, installs the default logger and wires
// config → fallback coordinator → dispatcher → orchestrator → chat service.
func newApp(configPath string, logOut io.Writer) (*app, error) {
	cfg, err := configuration.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger(cfg.Observability, logOut)
	slog.SetDefault(logger)

	collector := metrics.NewCollector(metrics.DefaultWindow)

	coordinator, err := llm.NewCoordinatorFromConfig(cfg, collector, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM providers: %w", err)
	}

	dispatcher := agent.NewDispatcher(coordinator)
	orchestrator := pipeline.New(dispatcher, pipeline.WithRecorder(collector))
	responses := cache.New[pipeline.Result](cfg.Cache)

	return &app{
		cfg:         cfg,
		collector:   collector,
		coordinator: coordinator,
		cache:       responses,
		limiter:     ratelimit.New(cfg.RateLimit),
		chat:        chat.NewService(orchestrator, responses, collector, cfg.Question),
	}, nil
}

// newLogger builds the process logger from the observability settings.
func newLogger(cfg configuration.ObservabilityConfig, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// renderMarkdown prints a result the way the chat frontend shows it.
func renderMarkdown(w io.Writer, res pipeline.Result, cached bool) {
	if res.Failed() {
		fmt.Fprintf(w, "error: %s\n", res.Error)
		return
	}
	for i, sec := range res.Sections {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s\n\n%s\n", sec.Title, sec.Body)
	}
	if cached {
		fmt.Fprintln(w, "\n(served from cache)")
	}
}
