package repository

import (
	"context"
	"errors"
	"time"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// BlobRepository defines storage operations for staged image blobs.
type BlobRepository interface {
	Create(ctx context.Context, blob *models.StagedBlob) error
	GetByRef(ctx context.Context, ref string) (*models.StagedBlob, error)
	MarkUploaded(ctx context.Context, ref, contentType string, sizeBytes int64, path, thumbPath string) error
	MarkCommitted(ctx context.Context, ref string) error
	Delete(ctx context.Context, ref string) error
	ListStale(ctx context.Context, olderThan time.Duration) ([]*models.StagedBlob, error)
}

type blobRepository struct {
	db *gorm.DB
}

// NewBlobRepository returns a repository implementation for staged blobs.
func NewBlobRepository(db *gorm.DB) BlobRepository {
	return &blobRepository{db: db}
}

func (r *blobRepository) Create(ctx context.Context, blob *models.StagedBlob) error {
	return r.db.WithContext(ctx).Create(blob).Error
}

func (r *blobRepository) GetByRef(ctx context.Context, ref string) (*models.StagedBlob, error) {
	var blob models.StagedBlob
	if err := r.db.WithContext(ctx).Where("ref = ?", ref).First(&blob).Error; err != nil {
		return nil, err
	}
	return &blob, nil
}

// MarkUploaded transitions a reserved slot to uploaded. The status guard
// makes a second upload against the same slot fail with ErrRecordNotFound.
func (r *blobRepository) MarkUploaded(ctx context.Context, ref, contentType string, sizeBytes int64, path, thumbPath string) error {
	res := r.db.WithContext(ctx).Model(&models.StagedBlob{}).
		Where("ref = ? AND status = ?", ref, models.BlobStatusReserved).
		Updates(map[string]interface{}{
			"status":       models.BlobStatusUploaded,
			"content_type": contentType,
			"size_bytes":   sizeBytes,
			"path":         path,
			"thumb_path":   thumbPath,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *blobRepository) MarkCommitted(ctx context.Context, ref string) error {
	res := r.db.WithContext(ctx).Model(&models.StagedBlob{}).
		Where("ref = ? AND status = ?", ref, models.BlobStatusUploaded).
		Update("status", models.BlobStatusCommitted)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *blobRepository) Delete(ctx context.Context, ref string) error {
	return r.db.WithContext(ctx).Unscoped().Where("ref = ?", ref).Delete(&models.StagedBlob{}).Error
}

// ListStale returns uncommitted blobs older than the given age. Committed
// blobs are owned by their posts and never swept.
func (r *blobRepository) ListStale(ctx context.Context, olderThan time.Duration) ([]*models.StagedBlob, error) {
	if olderThan <= 0 {
		return nil, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	var blobs []*models.StagedBlob
	err := r.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", []string{models.BlobStatusReserved, models.BlobStatusUploaded}, cutoff).
		Order("id ASC").
		Find(&blobs).Error
	return blobs, err
}
