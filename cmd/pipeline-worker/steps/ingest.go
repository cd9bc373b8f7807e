package steps

import (
	"context"
	"fmt"
)

// IngestResult is the ingest step payload
type IngestResult struct {
	ObjectKey   string `json:"object_key"`
	SizeBytes   int64  `json:"size_bytes"`
	ContentType string `json:"content_type"`
}

// ingest verifies the photo bytes exist in the object store before any
// downstream step spends work on them.
func (r *Registry) ingest(ctx context.Context, sc *StepContext) (any, error) {
	info, err := r.store.Stat(ctx, sc.Photo.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("photo object not found: %s: %w", sc.Photo.ObjectKey, err)
	}

	return &IngestResult{
		ObjectKey:   info.Key,
		SizeBytes:   info.Size,
		ContentType: info.ContentType,
	}, nil
}
