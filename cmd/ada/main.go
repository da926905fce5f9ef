// Command ada runs the Ada accessibility assistant: the HTTP API, the
// Temporal worker, the MCP server and one-shot questions from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "ada",
		Short:         "Ada, a digital accessibility assistant",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newWorkerCmd(&configPath),
		newAskCmd(&configPath),
		newMCPCmd(&configPath),
		newConfigCmd(&configPath),
	)
	return root
}
