package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// GPSCoord is a decoded GPS position
type GPSCoord struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

// ExifResult is the extract_exif step payload. Parse failures do not
// fail the step; photos without EXIF are normal.
type ExifResult struct {
	Tags      map[string]string `json:"tags,omitempty"`
	GPS       *GPSCoord         `json:"gps,omitempty"`
	Timestamp *time.Time        `json:"timestamp,omitempty"`
	Error     string            `json:"error,omitempty"`
}

type tagCollector struct {
	tags map[string]string
}

func (c *tagCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	c.tags[string(name)] = tag.String()
	return nil
}

// extractEXIF parses EXIF metadata out of the photo bytes
func (r *Registry) extractEXIF(ctx context.Context, sc *StepContext) (any, error) {
	obj, _, err := r.store.Get(ctx, sc.Photo.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("read photo object: %w", err)
	}
	defer obj.Close()

	parsed, err := exif.Decode(obj)
	if err != nil {
		return &ExifResult{Error: err.Error()}, nil
	}

	collector := &tagCollector{tags: make(map[string]string)}
	if err := parsed.Walk(collector); err != nil {
		return &ExifResult{Error: err.Error()}, nil
	}

	result := &ExifResult{Tags: collector.tags}

	if lat, long, err := parsed.LatLong(); err == nil {
		result.GPS = &GPSCoord{Lat: lat, Long: long}
	}
	if ts, err := parsed.DateTime(); err == nil {
		result.Timestamp = &ts
	}

	return result, nil
}
