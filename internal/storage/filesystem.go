package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
)

// FilesystemStorage implements ReaderWithMetadata for a flat local directory
type FilesystemStorage struct {
	baseDir string
}

// NewFilesystemStorage opens an existing directory for reading
func NewFilesystemStorage(baseDir string) (*FilesystemStorage, error) {
	info, err := os.Stat(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, baseDir)
		}
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrDirectoryNotFound, baseDir)
	}

	return &FilesystemStorage{
		baseDir: baseDir,
	}, nil
}

// BaseDir returns the directory this storage reads from
func (fs *FilesystemStorage) BaseDir() string {
	return fs.baseDir
}

// List returns every regular file in the base directory. Subdirectories are not descended into.
func (fs *FilesystemStorage) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDirectoryNotFound, fs.baseDir)
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		var info os.FileInfo
		switch {
		case de.Type().IsRegular():
			info, err = de.Info()
			if err != nil {
				// Removed between ReadDir and Info
				continue
			}
		case de.Type()&os.ModeSymlink != 0:
			// Follow links so photos symlinked in from an export folder are processed
			info, err = os.Stat(filepath.Join(fs.baseDir, de.Name()))
			if err != nil {
				// Dangling link: keep it so the read failure is reported per file
				entries = append(entries, Entry{Name: de.Name()})
				continue
			}
			if !info.Mode().IsRegular() {
				continue
			}
		default:
			continue
		}
		entries = append(entries, Entry{Name: de.Name(), Size: info.Size()})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// GetReader returns a reader for the file at the given key
func (fs *FilesystemStorage) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := resolve(fs.baseDir, key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// GetMetadata returns size and sniffed content type for the file at the given key
func (fs *FilesystemStorage) GetMetadata(ctx context.Context, key string) (*Metadata, error) {
	path, err := resolve(fs.baseDir, key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("failed to read file header: %w", err)
	}

	return &Metadata{
		Size:        info.Size(),
		ContentType: http.DetectContentType(head[:n]),
	}, nil
}

// resolve maps a flat key onto the base directory
func resolve(baseDir, key string) (string, error) {
	if key == "" || key == "." || key == ".." || filepath.Base(key) != key {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(baseDir, key), nil
}
