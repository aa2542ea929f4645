package workflows

import (
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"io"
	"strings"

	"github.com/chai2010/webp" // also registers the WebP decoder
	"github.com/disintegration/imaging"

	"github.com/tendant/simple-thumbnail-pipeline/pkg/pipeline"
)

// Decode reads an image and applies its EXIF orientation so portrait shots stay upright
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// ResizeToWidth scales img down to width, keeping the aspect ratio.
// Images already at or below width are returned unchanged; they are never upscaled.
func ResizeToWidth(img image.Image, width int) image.Image {
	if img.Bounds().Dx() <= width {
		return img
	}
	return imaging.Resize(img, width, 0, imaging.Lanczos)
}

// Encode writes img in the given lossy format at quality (1-100)
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	var err error
	switch strings.ToLower(format) {
	case pipeline.FormatJPEG:
		err = imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case pipeline.FormatWebP:
		err = webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return nil
}
