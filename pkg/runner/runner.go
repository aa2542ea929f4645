package runner

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tendant/simple-thumbnail-pipeline/internal/executors"
	"github.com/tendant/simple-thumbnail-pipeline/internal/metrics"
	"github.com/tendant/simple-thumbnail-pipeline/internal/progress"
	"github.com/tendant/simple-thumbnail-pipeline/internal/storage"
	"github.com/tendant/simple-thumbnail-pipeline/internal/workflows"
	"github.com/tendant/simple-thumbnail-pipeline/pkg/pipeline"
)

// ErrDirectoryNotFound is returned by New when the source directory is missing
var ErrDirectoryNotFound = storage.ErrDirectoryNotFound

// Option configures a Runner
type Option func(*Runner)

// WithReporter sets where per-file progress goes (default: discard)
func WithReporter(r pipeline.Reporter) Option {
	return func(rn *Runner) { rn.reporter = r }
}

// WithLogger sets the logger (default: no-op)
func WithLogger(l *zap.Logger) Option {
	return func(rn *Runner) { rn.logger = l }
}

// WithMetricsFile dumps Prometheus metrics to path after every run
func WithMetricsFile(path string) Option {
	return func(rn *Runner) { rn.metricsFile = path }
}

// Runner provides a high-level API for generating a thumbnail directory
type Runner struct {
	opts        pipeline.Options
	executor    *executors.BatchExecutor
	metrics     *metrics.Metrics
	reporter    pipeline.Reporter
	logger      *zap.Logger
	metricsFile string
}

// New validates opts and wires storage, workflow and executor.
// The source directory must exist; the destination is created if absent.
func New(opts pipeline.Options, options ...Option) (*Runner, error) {
	opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		opts:     opts,
		metrics:  metrics.New(),
		reporter: progress.Nop{},
		logger:   zap.NewNop(),
	}
	for _, o := range options {
		o(r)
	}

	// Setup storage adapters
	source, err := storage.NewFilesystemStorage(opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open source directory: %w", err)
	}
	writer, err := storage.NewThumbnailWriter(opts.DestDir)
	if err != nil {
		return nil, err
	}

	thumbnailWorkflow := workflows.NewThumbnailWorkflow(source, writer)
	r.logger.Debug("Registered workflow", zap.String("workflow", thumbnailWorkflow.Name()))

	r.executor = executors.NewBatchExecutor(source, thumbnailWorkflow, opts,
		executors.WithReporter(r.reporter),
		executors.WithMetrics(r.metrics),
		executors.WithLogger(r.logger),
	)

	return r, nil
}

// Options returns the resolved options
func (r *Runner) Options() pipeline.Options {
	return r.opts
}

// Registry exposes the metrics collected by this runner
func (r *Runner) Registry() *prometheus.Registry {
	return r.metrics.Registry()
}

// Run processes the whole source directory once. See executors.BatchExecutor.Execute
// for the result/error contract.
func (r *Runner) Run(ctx context.Context) (*pipeline.BatchResult, error) {
	result, err := r.executor.Execute(ctx)

	if r.metricsFile != "" {
		if werr := r.metrics.WriteTextfile(r.metricsFile); werr != nil {
			r.logger.Warn("Failed to write metrics", zap.String("path", r.metricsFile), zap.Error(werr))
		}
	}

	return result, err
}
