package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tendant/simple-thumbnail-pipeline/internal/progress"
	"github.com/tendant/simple-thumbnail-pipeline/pkg/runner"
)

// runGenerate runs one batch. Partial failure is returned as an error so the exit status is non-zero.
func runGenerate(cmd *cobra.Command, args []string) error {
	logger.Debug("Resolved configuration",
		zap.String("source", cfg.SourceDir),
		zap.String("dest", cfg.DestDir),
		zap.Int("width", cfg.TargetWidth),
		zap.Int("quality", cfg.Quality),
		zap.String("format", cfg.Format),
		zap.Int("concurrency", cfg.Concurrency),
		zap.Strings("extensions", cfg.Extensions))

	r, err := runner.New(cfg.Options,
		runner.WithReporter(progress.NewConsole(cmd.OutOrStdout(), cmd.ErrOrStderr())),
		runner.WithLogger(logger),
		runner.WithMetricsFile(cfg.MetricsFile),
	)
	if err != nil {
		return err
	}

	_, err = r.Run(cmd.Context())
	return err
}
