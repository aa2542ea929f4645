package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tendant/simple-thumbnail-pipeline/internal/config"
	"github.com/tendant/simple-thumbnail-pipeline/internal/logging"
)

var (
	// Global flags
	configPath string
	envFile    string
	verbose    bool

	// Option flags, applied only when set explicitly
	sourceDir   string
	destDir     string
	width       int
	quality     int
	format      string
	concurrency int
	extensions  string
	metricsFile string

	withMetadata bool

	cfg    *config.Config
	logger *zap.Logger
)

// newRootCmd builds the command tree. Each call binds fresh flags.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "thumbgen",
		Short: "Generate web thumbnails for a photo portfolio",
		Long: `thumbgen resizes every photo in the source directory to a fixed width,
recompresses it and writes it under the same file name into the thumbnail
directory. Running it with no arguments is the same as "thumbgen generate".`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = resolveConfig(cmd)
			if err != nil {
				return err
			}
			logger, err = logging.New(cfg.LogLevel)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
		RunE: runGenerate,
	}

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Create or refresh all thumbnails",
		Args:  cobra.NoArgs,
		RunE:  runGenerate,
	}

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Print the photo/thumbnail pairing as JSON",
		Long: `index lists every supported photo together with the thumbnail the gallery
will show for it. Photos without a thumbnail fall back to the full-size file.`,
		Args: cobra.NoArgs,
		RunE: runIndex,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML config file")
	pf.StringVar(&envFile, "env-file", "", "dotenv file to read (default: .env if present)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&sourceDir, "source", "", "Directory of full-resolution photos (default ./src/photos)")
	pf.StringVar(&destDir, "dest", "", "Directory to write thumbnails to (default ./src/thumbnails)")
	pf.StringVar(&extensions, "extensions", "", "Comma separated list of file extensions to process")

	gf := rootCmd.Flags()
	gf.IntVarP(&width, "width", "w", 0, "Target thumbnail width in pixels (default 800)")
	gf.IntVarP(&quality, "quality", "q", 0, "Encoder quality 1-100 (default 80)")
	gf.StringVarP(&format, "format", "f", "", "Output encoding: webp or jpeg (default webp)")
	gf.IntVarP(&concurrency, "concurrency", "j", 0, "Maximum thumbnails generated at once (default: CPU count)")
	gf.StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")
	generateCmd.Flags().AddFlagSet(gf)

	indexCmd.Flags().BoolVar(&withMetadata, "metadata", false, "Include EXIF capture settings for each photo")

	rootCmd.AddCommand(generateCmd, indexCmd)
	return rootCmd
}

// resolveConfig layers flags over the file and environment configuration
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	c, err := config.Load(configPath, envFiles...)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("source") {
		c.SourceDir = sourceDir
	}
	if flags.Changed("dest") {
		c.DestDir = destDir
	}
	if flags.Changed("extensions") {
		c.Extensions = config.SplitList(extensions)
	}
	if flags.Changed("width") {
		c.TargetWidth = width
	}
	if flags.Changed("quality") {
		c.Quality = quality
	}
	if flags.Changed("format") {
		c.Format = format
	}
	if flags.Changed("concurrency") {
		c.Concurrency = concurrency
	}
	if flags.Changed("metrics-file") {
		c.MetricsFile = metricsFile
	}
	if verbose {
		c.LogLevel = "debug"
	}

	if err := c.Finalize(); err != nil {
		return nil, err
	}
	return c, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "thumbgen:", err)
		os.Exit(1)
	}
}
