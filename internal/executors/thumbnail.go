package executors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tendant/simple-thumbnail-pipeline/internal/metrics"
	"github.com/tendant/simple-thumbnail-pipeline/internal/progress"
	"github.com/tendant/simple-thumbnail-pipeline/internal/storage"
	"github.com/tendant/simple-thumbnail-pipeline/internal/workflows"
	"github.com/tendant/simple-thumbnail-pipeline/pkg/pipeline"
)

// BatchExecutor runs the thumbnail workflow once per supported file in the source directory
type BatchExecutor struct {
	source   storage.Reader
	workflow workflows.Workflow
	opts     pipeline.Options
	reporter pipeline.Reporter
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// Option configures a BatchExecutor
type Option func(*BatchExecutor)

// WithReporter sets the progress reporter (default: discard)
func WithReporter(r pipeline.Reporter) Option {
	return func(e *BatchExecutor) { e.reporter = r }
}

// WithMetrics records unit outcomes into m
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *BatchExecutor) { e.metrics = m }
}

// WithLogger sets the logger (default: no-op)
func WithLogger(l *zap.Logger) Option {
	return func(e *BatchExecutor) { e.logger = l }
}

// NewBatchExecutor creates a new batch executor. opts should already be validated;
// a concurrency below 1 is raised to 1.
func NewBatchExecutor(source storage.Reader, workflow workflows.Workflow, opts pipeline.Options, options ...Option) *BatchExecutor {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	e := &BatchExecutor{
		source:   source,
		workflow: workflow,
		opts:     opts,
		reporter: progress.Nop{},
		logger:   zap.NewNop(),
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// Execute lists the source directory and fans out one unit per supported file,
// at most opts.Concurrency at a time. It returns only after every issued unit has
// resolved. Setup failures (e.g. a missing source directory) return a nil result.
// Otherwise the result is always returned, together with pipeline.ErrPartialFailure
// when any file failed or was canceled.
func (e *BatchExecutor) Execute(ctx context.Context) (*pipeline.BatchResult, error) {
	start := time.Now()
	runID := uuid.New().String()
	log := e.logger.With(zap.String("run_id", runID))

	entries, err := e.source.List(ctx)
	if err != nil {
		log.Error("Failed to list source directory", zap.String("dir", e.opts.SourceDir), zap.Error(err))
		return nil, fmt.Errorf("failed to list source directory: %w", err)
	}

	result := &pipeline.BatchResult{
		RunID:   runID,
		DestDir: e.opts.DestDir,
	}

	matched := make([]string, 0, len(entries))
	for _, entry := range entries {
		if workflows.Supported(entry.Name, e.opts.Extensions) {
			matched = append(matched, entry.Name)
		} else {
			result.Ignored = append(result.Ignored, entry.Name)
		}
	}
	e.metrics.Ignored(len(result.Ignored))

	log.Info("Starting thumbnail batch",
		zap.String("source", e.opts.SourceDir),
		zap.String("dest", e.opts.DestDir),
		zap.Int("files", len(matched)),
		zap.Int("ignored", len(result.Ignored)),
		zap.Int("concurrency", e.opts.Concurrency))

	result.Files = make([]pipeline.FileResult, len(matched))
	e.reporter.Start(len(matched), e.opts.DestDir)

	var g errgroup.Group
	g.SetLimit(e.opts.Concurrency)

	for i, name := range matched {
		if err := ctx.Err(); err != nil {
			// Stop issuing; whatever is in flight finishes on its own
			for j := i; j < len(matched); j++ {
				result.Files[j] = pipeline.FileResult{Name: matched[j], Status: pipeline.StatusCanceled, Err: err}
				e.metrics.FileResolved(result.Files[j])
			}
			log.Warn("Batch canceled, not issuing remaining files", zap.Int("remaining", len(matched)-i))
			break
		}

		g.Go(func() error {
			// Per-file errors are recorded, never returned, so one failure cannot cancel the rest
			result.Files[i] = e.runUnit(ctx, runID, name, log)
			return nil
		})
	}

	// Join: every issued unit has resolved past this point
	_ = g.Wait()

	result.Tally()
	result.Duration = time.Since(start)
	e.metrics.BatchFinished(result.Duration)
	e.reporter.Done(result)

	log.Info("Thumbnail batch finished",
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("canceled", result.Canceled),
		zap.Duration("duration", result.Duration))

	return result, result.Err()
}

// runUnit executes the workflow for one file and reports its outcome
func (e *BatchExecutor) runUnit(ctx context.Context, runID, name string, log *zap.Logger) pipeline.FileResult {
	// Canceled while waiting for a free slot
	if err := ctx.Err(); err != nil {
		file := pipeline.FileResult{Name: name, Status: pipeline.StatusCanceled, Err: err}
		e.metrics.FileResolved(file)
		return file
	}

	e.metrics.UnitStarted()

	wctx := &workflows.WorkflowContext{
		Ctx: ctx,
		Request: pipeline.ProcessRequest{
			Name:        name,
			TargetWidth: e.opts.TargetWidth,
			Quality:     e.opts.Quality,
			Format:      e.opts.Format,
		},
		RunID:  runID,
		Logger: e.logger,
	}

	res, err := e.workflow.Execute(wctx)

	var file pipeline.FileResult
	switch {
	case res != nil:
		file = res.File
	case err != nil:
		file = pipeline.FileResult{Name: name, Status: pipeline.StatusFailed, Err: err}
	default:
		file = pipeline.FileResult{Name: name, Status: pipeline.StatusSucceeded}
	}
	if file.Name == "" {
		file.Name = name
	}
	if err != nil && file.Status == pipeline.StatusSucceeded {
		file.Status = pipeline.StatusFailed
	}
	if file.Err == nil {
		file.Err = err
	}

	switch file.Status {
	case pipeline.StatusSucceeded:
		e.reporter.Success(name)
	case pipeline.StatusCanceled:
		log.Debug("Unit canceled", zap.String("file", name))
	default:
		if errors.Is(file.Err, context.Canceled) || errors.Is(file.Err, context.DeadlineExceeded) {
			file.Status = pipeline.StatusCanceled
			break
		}
		log.Warn("Thumbnail generation failed", zap.String("file", name), zap.Error(file.Err))
		e.reporter.Failure(name, file.Err)
	}

	e.metrics.UnitFinished(file)
	return file
}
