package storage

import (
	"context"
	"fmt"
	"io"
	"os"
)

// ThumbnailWriter writes derived images into a flat output directory
type ThumbnailWriter struct {
	baseDir string
}

// NewThumbnailWriter creates the output directory (including parents) if needed
func NewThumbnailWriter(baseDir string) (*ThumbnailWriter, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &ThumbnailWriter{
		baseDir: baseDir,
	}, nil
}

// Put writes r to key, truncating any existing file. No backup is kept.
func (tw *ThumbnailWriter) Put(ctx context.Context, key string, r io.Reader) (int64, error) {
	path, err := resolve(tw.baseDir, key)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}

	n, err := io.Copy(file, r)
	if err != nil {
		file.Close()
		return n, fmt.Errorf("failed to write file: %w", err)
	}
	if err := file.Close(); err != nil {
		return n, fmt.Errorf("failed to close file: %w", err)
	}

	return n, nil
}
