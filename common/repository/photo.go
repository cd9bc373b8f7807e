package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/gridlens/inspector/common/db"
	"github.com/gridlens/inspector/common/models"
	"github.com/jackc/pgx/v5"
)

// PhotoRepository handles database operations for photos
type PhotoRepository struct {
	db *db.DB
}

// NewPhotoRepository creates a new photo repository
func NewPhotoRepository(database *db.DB) *PhotoRepository {
	return &PhotoRepository{db: database}
}

// Create inserts a new photo
func (r *PhotoRepository) Create(ctx context.Context, photo *models.Photo) error {
	query := `
		INSERT INTO photos (id, filename, content_type, object_key, uploaded_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Exec(ctx, query,
		photo.ID,
		photo.Filename,
		photo.ContentType,
		photo.ObjectKey,
		photo.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create photo: %w", err)
	}

	return nil
}

// GetByID retrieves a photo by its ID
func (r *PhotoRepository) GetByID(ctx context.Context, photoID uuid.UUID) (*models.Photo, error) {
	query := `
		SELECT id, filename, content_type, object_key, uploaded_at
		FROM photos
		WHERE id = $1
	`

	photo := &models.Photo{}
	err := r.db.QueryRow(ctx, query, photoID).Scan(
		&photo.ID,
		&photo.Filename,
		&photo.ContentType,
		&photo.ObjectKey,
		&photo.UploadedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("photo %s: %w", photoID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get photo: %w", err)
	}

	return photo, nil
}

// List retrieves photos ordered by upload time, most recent first
func (r *PhotoRepository) List(ctx context.Context, limit int) ([]*models.Photo, error) {
	query := `
		SELECT id, filename, content_type, object_key, uploaded_at
		FROM photos
		ORDER BY uploaded_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	var photos []*models.Photo
	for rows.Next() {
		photo := &models.Photo{}
		err := rows.Scan(
			&photo.ID,
			&photo.Filename,
			&photo.ContentType,
			&photo.ObjectKey,
			&photo.UploadedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, photo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating photos: %w", err)
	}

	return photos, nil
}
