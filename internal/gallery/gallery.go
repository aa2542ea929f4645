// Package gallery pairs full-resolution photos with their thumbnails by file name.
package gallery

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/tendant/simple-thumbnail-pipeline/internal/exif"
	"github.com/tendant/simple-thumbnail-pipeline/internal/storage"
	"github.com/tendant/simple-thumbnail-pipeline/internal/workflows"
)

// Dir is a listable directory of assets
type Dir interface {
	List(ctx context.Context) ([]storage.Entry, error)
	GetMetadata(ctx context.Context, key string) (*storage.Metadata, error)
	BaseDir() string
}

// Item is one displayable photo. Thumb equals Full when no thumbnail exists.
type Item struct {
	Name         string         `json:"name"`
	Full         string         `json:"full"`
	Thumb        string         `json:"thumb"`
	HasThumbnail bool           `json:"has_thumbnail"`
	ContentType  string         `json:"content_type,omitempty"` // sniffed from the Thumb asset, may disagree with its suffix
	Metadata     *exif.Metadata `json:"metadata,omitempty"`
}

// Index is a read-only name lookup built from two directory scans
type Index struct {
	items   []Item
	byName  map[string]int
	orphans []string
}

// Build scans photos and thumbs. thumbs may be nil when the thumbnail directory does not exist,
// in which case every item falls back to its full-resolution asset.
func Build(ctx context.Context, photos Dir, thumbs Dir, exts []string) (*Index, error) {
	photoEntries, err := photos.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}

	var thumbEntries []storage.Entry
	thumbSet := make(map[string]bool)
	if thumbs != nil {
		thumbEntries, err = thumbs.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list thumbnails: %w", err)
		}
		for _, e := range thumbEntries {
			thumbSet[e.Name] = true
		}
	}

	idx := &Index{byName: make(map[string]int)}
	for _, e := range photoEntries {
		if !workflows.Supported(e.Name, exts) {
			continue
		}
		item := Item{
			Name: e.Name,
			Full: filepath.Join(photos.BaseDir(), e.Name),
		}
		if thumbSet[e.Name] {
			item.Thumb = filepath.Join(thumbs.BaseDir(), e.Name)
			item.HasThumbnail = true
			delete(thumbSet, e.Name)
		} else {
			item.Thumb = item.Full
		}

		shown := photos
		if item.HasThumbnail {
			shown = thumbs
		}
		if meta, err := shown.GetMetadata(ctx, e.Name); err == nil {
			item.ContentType = meta.ContentType
		}
		idx.byName[e.Name] = len(idx.items)
		idx.items = append(idx.items, item)
	}

	for _, e := range thumbEntries {
		if thumbSet[e.Name] {
			idx.orphans = append(idx.orphans, e.Name)
		}
	}

	return idx, nil
}

// Len returns the number of photos
func (idx *Index) Len() int {
	return len(idx.items)
}

// Items returns a copy of the items in name order
func (idx *Index) Items() []Item {
	return append([]Item(nil), idx.items...)
}

// Lookup finds a photo by exact file name
func (idx *Index) Lookup(name string) (Item, bool) {
	i, ok := idx.byName[name]
	if !ok {
		return Item{}, false
	}
	return idx.items[i], true
}

// Orphans lists thumbnails with no matching photo
func (idx *Index) Orphans() []string {
	return append([]string(nil), idx.orphans...)
}

// LoadMetadata attaches EXIF metadata to every item. Extraction failures are
// logged at debug level and leave Metadata nil so the display is suppressed.
func (idx *Index) LoadMetadata(ctx context.Context, photos storage.Reader, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for i := range idx.items {
		if ctx.Err() != nil {
			return
		}
		name := idx.items[i].Name
		rc, err := photos.GetReader(ctx, name)
		if err != nil {
			logger.Debug("Cannot open photo for metadata", zap.String("file", name), zap.Error(err))
			continue
		}
		m, err := exif.Extract(rc)
		rc.Close()
		if err != nil {
			logger.Debug("No metadata found", zap.String("file", name), zap.Error(err))
			continue
		}
		if !m.Empty() {
			idx.items[i].Metadata = &m
		}
	}
}
