package workflows

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/tendant/simple-thumbnail-pipeline/pkg/pipeline"
)

// SourceReader interface for reading source photos
type SourceReader interface {
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)
}

// ThumbnailWriter interface for writing derived thumbnails
type ThumbnailWriter interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
}

// ThumbnailWorkflow turns one source photo into one thumbnail of the same name
type ThumbnailWorkflow struct {
	sourceReader    SourceReader
	thumbnailWriter ThumbnailWriter
}

// NewThumbnailWorkflow creates a new thumbnail generation workflow
func NewThumbnailWorkflow(sourceReader SourceReader, thumbnailWriter ThumbnailWriter) *ThumbnailWorkflow {
	return &ThumbnailWorkflow{
		sourceReader:    sourceReader,
		thumbnailWriter: thumbnailWriter,
	}
}

// Name returns the workflow name
func (w *ThumbnailWorkflow) Name() string {
	return "ThumbnailWorkflow"
}

// Execute runs the thumbnail generation workflow.
// A failed result is returned together with the error so callers can record it.
func (w *ThumbnailWorkflow) Execute(wctx *WorkflowContext) (*WorkflowResult, error) {
	start := time.Now()
	req := wctx.Request
	log := wctx.logger().With(zap.String("run_id", wctx.RunID), zap.String("file", req.Name))

	fail := func(err error) (*WorkflowResult, error) {
		status := pipeline.StatusFailed
		if ctxErr := wctx.Ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			status = pipeline.StatusCanceled
		}
		log.Debug("Thumbnail workflow failed", zap.Error(err))
		return &WorkflowResult{
			Success: false,
			Error:   err,
			File: pipeline.FileResult{
				Name:     req.Name,
				Status:   status,
				Err:      err,
				Duration: time.Since(start),
			},
		}, err
	}

	// Step 1: Validate request
	if err := w.validateRequest(&req); err != nil {
		return fail(err)
	}
	if err := wctx.Ctx.Err(); err != nil {
		return fail(err)
	}

	// Step 2: Open and decode source
	reader, err := w.sourceReader.GetReader(wctx.Ctx, req.Name)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrRead, err))
	}
	img, err := Decode(reader)
	reader.Close()
	if err != nil {
		return fail(err)
	}
	srcBounds := img.Bounds()
	log.Debug("Image decoded", zap.Int("width", srcBounds.Dx()), zap.Int("height", srcBounds.Dy()))

	if err := wctx.Ctx.Err(); err != nil {
		return fail(err)
	}

	// Step 3: Resize down to the target width
	thumbnail := ResizeToWidth(img, req.TargetWidth)
	bounds := thumbnail.Bounds()

	// Step 4: Recompress
	var buf bytes.Buffer
	if err := Encode(&buf, thumbnail, req.Format, req.Quality); err != nil {
		return fail(err)
	}
	log.Debug("Thumbnail encoded",
		zap.String("format", req.Format),
		zap.Int("width", bounds.Dx()),
		zap.Int("height", bounds.Dy()),
		zap.Int("bytes", buf.Len()))

	if err := wctx.Ctx.Err(); err != nil {
		return fail(err)
	}

	// Step 5: Write under the source's own name
	n, err := w.thumbnailWriter.Put(wctx.Ctx, req.Name, &buf)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrWrite, err))
	}

	log.Debug("Thumbnail workflow completed successfully")

	return &WorkflowResult{
		Success: true,
		File: pipeline.FileResult{
			Name:         req.Name,
			Status:       pipeline.StatusSucceeded,
			SourceWidth:  srcBounds.Dx(),
			SourceHeight: srcBounds.Dy(),
			Width:        bounds.Dx(),
			Height:       bounds.Dy(),
			Bytes:        n,
			Duration:     time.Since(start),
		},
	}, nil
}

// validateRequest validates the workflow request
func (w *ThumbnailWorkflow) validateRequest(req *pipeline.ProcessRequest) error {
	if req.Name == "" {
		return fmt.Errorf("%w: file name is required", ErrInvalidRequest)
	}
	if req.TargetWidth <= 0 {
		return fmt.Errorf("%w: invalid target width: %d", ErrInvalidRequest, req.TargetWidth)
	}
	if req.Quality < 1 || req.Quality > 100 {
		return fmt.Errorf("%w: invalid quality: %d", ErrInvalidRequest, req.Quality)
	}
	return nil
}
