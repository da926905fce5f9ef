package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ada-assist/ada/internal/llm/configuration"
	llmerrors "github.com/ada-assist/ada/internal/llm/errors"
	"github.com/ada-assist/ada/internal/mcpserver"
	"github.com/ada-assist/ada/internal/pipeline"
	"github.com/ada-assist/ada/internal/server"
	"github.com/ada-assist/ada/internal/worker"
)

func newServeCmd(configPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, os.Stderr)
			if err != nil {
				return err
			}
			if addr != "" {
				a.cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(a.chat, a.collector, a.cfg.Server,
				server.WithCache(a.cache),
				server.WithLimiter(a.limiter),
				server.WithRetryStats(a.coordinator),
			)
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func newWorkerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the Temporal worker that answers questions durably",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, os.Stderr)
			if err != nil {
				return err
			}

			c, err := worker.Dial(a.cfg.Temporal)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return worker.Run(ctx, c, a.cfg.Temporal, a.chat)
		},
	}
}

func newAskCmd(configPath *string) *cobra.Command {
	var (
		asJSON  bool
		durable bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one accessibility question and print it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			out := cmd.OutOrStdout()

			if durable {
				cfg, err := configuration.Load(*configPath)
				if err != nil {
					return err
				}
				c, err := worker.Dial(cfg.Temporal)
				if err != nil {
					return err
				}
				defer c.Close()

				res, err := worker.Submit(cmd.Context(), c, cfg.Temporal.TaskQueue, question)
				if err != nil {
					return err
				}
				return printAnswer(out, res.Result, res.Cached, asJSON)
			}

			a, err := newApp(*configPath, os.Stderr)
			if err != nil {
				return err
			}
			ans, err := a.chat.Ask(cmd.Context(), question)
			if err != nil {
				var valErr *llmerrors.ValidationError
				if errors.As(err, &valErr) {
					return errors.New(valErr.Message)
				}
				return err
			}
			if err := printAnswer(out, ans.Result, ans.Cached, asJSON); err != nil {
				return err
			}
			if ans.Result.Failed() {
				return errors.New("the question could not be answered")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the answer as JSON")
	cmd.Flags().BoolVar(&durable, "durable", false, "submit the question to the Temporal worker instead of answering in-process")
	return cmd
}

func newMCPCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the assistant as MCP tools over stdio",
		RunE: func(_ *cobra.Command, _ []string) error {
			// stdout carries the protocol; logs go to stderr.
			a, err := newApp(*configPath, os.Stderr)
			if err != nil {
				return err
			}
			mcpserver.Version = version
			return mcpserver.ServeStdio(mcpserver.New(a.chat, a.collector))
		},
	}
}

func newConfigCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := configuration.Settings(*configPath)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(settings)
		},
	}
}

// printAnswer writes res as markdown, or as the HTTP API's JSON body.
func printAnswer(w io.Writer, res pipeline.Result, cached, asJSON bool) error {
	if !asJSON {
		renderMarkdown(w, res, cached)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(struct {
		Response pipeline.Result `json:"response"`
		Cached   bool            `json:"cached"`
	}{res, cached}); err != nil {
		return fmt.Errorf("failed to encode answer: %w", err)
	}
	return nil
}
