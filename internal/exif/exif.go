// Package exif extracts the handful of capture settings shown next to a photo.
// Every field is optional; an empty string means the tag was absent and should not be displayed.
package exif

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	goexif "github.com/rwcarlsen/goexif/exif"
)

// ErrNoMetadata is returned when the file carries no readable EXIF block
var ErrNoMetadata = errors.New("no exif metadata")

// Metadata holds display-ready capture settings
type Metadata struct {
	ISO     string `json:"iso,omitempty"`
	FStop   string `json:"fstop,omitempty"`
	Shutter string `json:"shutter,omitempty"`
	Date    string `json:"date,omitempty"`
}

// Empty reports whether no field was found
func (m Metadata) Empty() bool {
	return m == Metadata{}
}

// Extract reads EXIF from a full-resolution image. On failure it returns an
// empty Metadata and an error wrapping ErrNoMetadata.
func Extract(r io.Reader) (Metadata, error) {
	x, err := goexif.Decode(r)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrNoMetadata, err)
	}

	var m Metadata
	if tag, err := x.Get(goexif.ISOSpeedRatings); err == nil {
		if iso, err := tag.Int(0); err == nil && iso > 0 {
			m.ISO = strconv.Itoa(iso)
		}
	}
	if tag, err := x.Get(goexif.FNumber); err == nil {
		if rat, err := tag.Rat(0); err == nil {
			m.FStop = formatFNumber(rat)
		}
	}
	if tag, err := x.Get(goexif.ExposureTime); err == nil {
		if rat, err := tag.Rat(0); err == nil {
			m.Shutter = formatExposure(rat)
		}
	}
	if tag, err := x.Get(goexif.DateTimeOriginal); err == nil {
		if s, err := tag.StringVal(); err == nil {
			m.Date = formatDate(s)
		}
	}

	return m, nil
}

// formatFNumber renders 28/10 as "f/2.8"
func formatFNumber(r *big.Rat) string {
	if r == nil || r.Sign() <= 0 {
		return ""
	}
	f, _ := r.Float64()
	return "f/" + strconv.FormatFloat(math.Round(f*10)/10, 'f', -1, 64)
}

// formatExposure renders sub-second exposures as a fraction ("1/250s") and longer ones in seconds ("2s")
func formatExposure(r *big.Rat) string {
	if r == nil || r.Sign() <= 0 {
		return ""
	}
	f, _ := r.Float64()
	if f >= 1 {
		return strconv.FormatFloat(math.Round(f*10)/10, 'f', -1, 64) + "s"
	}
	return "1/" + strconv.FormatFloat(math.Round(1/f), 'f', 0, 64) + "s"
}

// formatDate turns an EXIF timestamp ("2006:01:02 15:04:05") into "Jan 2, 2006"
func formatDate(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), "\x00")
	datePart, _, _ := strings.Cut(s, " ")
	t, err := time.Parse("2006:01:02", datePart)
	if err != nil {
		return ""
	}
	return t.Format("Jan 2, 2006")
}
