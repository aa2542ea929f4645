package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Format constants for the thumbnail encoder
const (
	FormatJPEG = "jpeg"
	FormatWebP = "webp"
)

// Default option values
const (
	DefaultSourceDir   = "./src/photos"
	DefaultDestDir     = "./src/thumbnails"
	DefaultTargetWidth = 800
	DefaultQuality     = 80
	DefaultFormat      = FormatWebP
)

// DefaultExtensions is the allow-list of image suffixes (matched case-insensitively)
var DefaultExtensions = []string{"jpg", "jpeg", "png", "webp"}

// ErrInvalidOptions is returned when Options fail validation
var ErrInvalidOptions = errors.New("invalid options")

// ErrPartialFailure is returned when at least one file in a batch did not succeed
var ErrPartialFailure = errors.New("batch completed with failures")

// Options configures a thumbnail batch
type Options struct {
	SourceDir   string   `yaml:"source_dir" json:"source_dir"`
	DestDir     string   `yaml:"dest_dir" json:"dest_dir"`
	TargetWidth int      `yaml:"target_width" json:"target_width"`
	Quality     int      `yaml:"quality" json:"quality"`
	Format      string   `yaml:"format" json:"format"`           // jpeg, webp
	Concurrency int      `yaml:"concurrency" json:"concurrency"` // max units in flight
	Extensions  []string `yaml:"extensions" json:"extensions"`
}

// WithDefaults fills in default values for unset fields
func (o *Options) WithDefaults() {
	if o.SourceDir == "" {
		o.SourceDir = DefaultSourceDir
	}
	if o.DestDir == "" {
		o.DestDir = DefaultDestDir
	}
	if o.TargetWidth == 0 {
		o.TargetWidth = DefaultTargetWidth
	}
	if o.Quality == 0 {
		o.Quality = DefaultQuality
	}
	if o.Format == "" {
		o.Format = DefaultFormat
	}
	if o.Concurrency == 0 {
		o.Concurrency = runtime.NumCPU()
	}
	if len(o.Extensions) == 0 {
		o.Extensions = append([]string(nil), DefaultExtensions...)
	}
}

// Validate checks the options after defaults have been applied
func (o Options) Validate() error {
	if o.SourceDir == "" {
		return fmt.Errorf("%w: source_dir is required", ErrInvalidOptions)
	}
	if o.DestDir == "" {
		return fmt.Errorf("%w: dest_dir is required", ErrInvalidOptions)
	}
	if o.TargetWidth <= 0 {
		return fmt.Errorf("%w: target_width must be positive, got %d", ErrInvalidOptions, o.TargetWidth)
	}
	if o.Quality < 1 || o.Quality > 100 {
		return fmt.Errorf("%w: quality must be between 1 and 100, got %d", ErrInvalidOptions, o.Quality)
	}
	switch strings.ToLower(o.Format) {
	case FormatJPEG, FormatWebP:
	default:
		return fmt.Errorf("%w: unknown format %q", ErrInvalidOptions, o.Format)
	}
	if o.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalidOptions, o.Concurrency)
	}
	// Thumbnails keep the source names, so a shared directory would overwrite the originals
	if samePath(o.SourceDir, o.DestDir) {
		return fmt.Errorf("%w: dest_dir must differ from source_dir %q", ErrInvalidOptions, o.SourceDir)
	}
	return nil
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// ProcessRequest asks for one source file to be turned into a thumbnail
type ProcessRequest struct {
	Name        string `json:"name"` // source and output file name
	TargetWidth int    `json:"target_width"`
	Quality     int    `json:"quality"`
	Format      string `json:"format"`
}

// FileStatus is the outcome of one unit of work
type FileStatus string

const (
	StatusSucceeded FileStatus = "succeeded"
	StatusFailed    FileStatus = "failed"
	StatusCanceled  FileStatus = "canceled"
)

// FileResult describes what happened to a single source file
type FileResult struct {
	Name         string        `json:"name"`
	Status       FileStatus    `json:"status"`
	Err          error         `json:"-"`
	SourceWidth  int           `json:"source_width,omitempty"`
	SourceHeight int           `json:"source_height,omitempty"`
	Width        int           `json:"width,omitempty"`
	Height       int           `json:"height,omitempty"`
	Bytes        int64         `json:"bytes,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// BatchResult is reported once every unit of a batch has resolved
type BatchResult struct {
	RunID     string        `json:"run_id"`
	DestDir   string        `json:"dest_dir"`
	Files     []FileResult  `json:"files"`
	Ignored   []string      `json:"ignored,omitempty"` // entries not on the allow-list
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Canceled  int           `json:"canceled"`
	Duration  time.Duration `json:"duration"`
}

// Tally recomputes the per-status counters from Files
func (r *BatchResult) Tally() {
	r.Succeeded, r.Failed, r.Canceled = 0, 0, 0
	for _, f := range r.Files {
		switch f.Status {
		case StatusSucceeded:
			r.Succeeded++
		case StatusFailed:
			r.Failed++
		case StatusCanceled:
			r.Canceled++
		}
	}
}

// Err returns ErrPartialFailure if any unit failed or was canceled
func (r *BatchResult) Err() error {
	if r.Failed == 0 && r.Canceled == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d failed, %d canceled of %d", ErrPartialFailure, r.Failed, r.Canceled, len(r.Files))
}

// Reporter receives batch progress. Success and Failure may be called concurrently;
// Done is called once, after every unit has resolved.
type Reporter interface {
	Start(total int, destDir string)
	Success(name string)
	Failure(name string, err error)
	Done(result *BatchResult)
}
