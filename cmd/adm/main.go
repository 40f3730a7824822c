// Package main provides the admin CLI for offline inspection of the chat
// pipeline: classifier, dialect rules, drift detection and the fallback quiz.
package main

import (
	"context"
	"fmt"
	"os"

	"derjachat/cmd/adm/commands"
	"derjachat/internal/config"
	"derjachat/internal/observability"
	"derjachat/internal/services"

	"github.com/spf13/cobra"
)

func main() {
	ctx := context.Background()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// The admin tool works offline; keep telemetry exporters off
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	_, _, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "derja-admin", "error")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	classifier := services.NewIntentClassifier(&cfg.Search, logger)

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "Derja chat administration tool",
		Long: `Derja chat administration tool

Offline commands for inspecting how the pipeline treats a message:
classification, dialect normalization, drift detection and the fallback quiz.
Text is read from the arguments, or from stdin when it is piped.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.ClassifyCommand(classifier))
	rootCmd.AddCommand(commands.DialectCommands(cfg)...)
	rootCmd.AddCommand(commands.FallbackQuizCommand())
	rootCmd.AddCommand(commands.VersionCommand(cfg.OpenTelemetry.ServiceName))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
