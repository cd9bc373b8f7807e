package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gridlens/inspector/common/logger"
	"github.com/gridlens/inspector/common/models"
	"github.com/gridlens/inspector/common/repository"
	"github.com/gridlens/inspector/common/storage"
)

// PhotoService handles photo upload and lookup. Byte storage is
// delegated to the object store; only the metadata row lives here.
type PhotoService struct {
	photos  *repository.PhotoRepository
	storage *storage.Store
	log     *logger.Logger
}

// NewPhotoService creates a new photo service
func NewPhotoService(photos *repository.PhotoRepository, store *storage.Store, log *logger.Logger) *PhotoService {
	return &PhotoService{photos: photos, storage: store, log: log}
}

// Upload stores the photo bytes and records the photo
func (s *PhotoService) Upload(ctx context.Context, filename, contentType string, body io.Reader, size int64) (*models.Photo, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	photo := &models.Photo{
		ID:          uuid.New(),
		Filename:    filepath.Base(filename),
		ContentType: contentType,
		UploadedAt:  time.Now().UTC(),
	}
	photo.ObjectKey = fmt.Sprintf("uploads/%s_%s", photo.ID, photo.Filename)

	if err := s.storage.Put(ctx, photo.ObjectKey, body, size, contentType); err != nil {
		return nil, fmt.Errorf("store photo bytes: %w", err)
	}

	if err := s.photos.Create(ctx, photo); err != nil {
		return nil, err
	}

	s.log.Info("photo uploaded",
		"photo_id", photo.ID,
		"filename", photo.Filename,
		"size_bytes", size)

	return photo, nil
}

// Get retrieves a photo by id
func (s *PhotoService) Get(ctx context.Context, photoID uuid.UUID) (*models.Photo, error) {
	return s.photos.GetByID(ctx, photoID)
}

// List retrieves photos, most recent first
func (s *PhotoService) List(ctx context.Context, limit int) ([]*models.Photo, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.photos.List(ctx, limit)
}
