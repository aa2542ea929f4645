package storage

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrDirectoryNotFound is returned when a source directory is missing or not a directory
	ErrDirectoryNotFound = errors.New("directory not found")

	// ErrInvalidKey is returned when a key escapes the base directory
	ErrInvalidKey = errors.New("invalid key: path traversal detected")

	// ErrNotFound is returned when a key does not exist
	ErrNotFound = errors.New("file not found")
)

// Entry is a regular file (or a symlink to one) found in a directory listing
type Entry struct {
	Name string
	Size int64
}

// Reader provides read access to stored content
type Reader interface {
	// List returns the files directly under the base directory, sorted by name
	List(ctx context.Context) ([]Entry, error)

	// GetReader returns a reader for the content at the given key
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)
}

// Metadata contains storage object metadata
type Metadata struct {
	Size        int64
	ContentType string
}

// ReaderWithMetadata provides read access with metadata
type ReaderWithMetadata interface {
	Reader

	// GetMetadata returns metadata for content at the given key
	GetMetadata(ctx context.Context, key string) (*Metadata, error)
}
