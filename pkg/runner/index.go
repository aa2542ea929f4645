package runner

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tendant/simple-thumbnail-pipeline/internal/gallery"
	"github.com/tendant/simple-thumbnail-pipeline/internal/storage"
	"github.com/tendant/simple-thumbnail-pipeline/pkg/pipeline"
)

// Index builds the name-keyed gallery index over opts.SourceDir and opts.DestDir.
// A missing thumbnail directory is not an error; every item then falls back to its
// full-resolution photo. When withMetadata is set, EXIF fields are attached per item.
func Index(ctx context.Context, opts pipeline.Options, withMetadata bool, logger *zap.Logger) (*gallery.Index, error) {
	opts.WithDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	photos, err := storage.NewFilesystemStorage(opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open source directory: %w", err)
	}

	var thumbs gallery.Dir
	thumbStorage, err := storage.NewFilesystemStorage(opts.DestDir)
	switch {
	case err == nil:
		thumbs = thumbStorage
	case errors.Is(err, storage.ErrDirectoryNotFound):
		logger.Debug("No thumbnail directory, using full-size fallbacks", zap.String("dir", opts.DestDir))
	default:
		return nil, err
	}

	idx, err := gallery.Build(ctx, photos, thumbs, opts.Extensions)
	if err != nil {
		return nil, err
	}
	if withMetadata {
		idx.LoadMetadata(ctx, photos, logger)
	}
	return idx, nil
}
