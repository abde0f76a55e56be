// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Blob lifecycle states. A slot is reserved before any bytes arrive,
// uploaded once bytes are staged on disk, and committed when a post
// references it. Anything not committed is eligible for the sweeper.
const (
	BlobStatusReserved  = "reserved"
	BlobStatusUploaded  = "uploaded"
	BlobStatusCommitted = "committed"
)

// StagedBlob tracks an image blob through the staging area.
type StagedBlob struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Ref         string         `gorm:"unique;not null" json:"ref"`
	Status      string         `gorm:"not null;default:reserved;index" json:"status"`
	ContentType string         `json:"content_type"`
	SizeBytes   int64          `json:"size_bytes"`
	Path        string         `json:"-"`
	ThumbPath   string         `json:"-"`
	UserID      uint           `gorm:"index" json:"user_id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
