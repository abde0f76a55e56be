// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sync"
	"time"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// BlobRepoStub is an in-memory staged blob repository for tests.
type BlobRepoStub struct {
	mu     sync.Mutex
	items  map[string]*models.StagedBlob
	nextID uint
}

// NewBlobRepoStub creates an in-memory blob repository stub for tests.
func NewBlobRepoStub() *BlobRepoStub {
	return &BlobRepoStub{items: make(map[string]*models.StagedBlob), nextID: 1}
}

// Create stores blob metadata in-memory.
func (s *BlobRepoStub) Create(_ context.Context, blob *models.StagedBlob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if blob.ID == 0 {
		blob.ID = s.nextID
		s.nextID++
	}
	now := time.Now().UTC()
	blob.CreatedAt = now
	blob.UpdatedAt = now
	copied := *blob
	s.items[blob.Ref] = &copied
	return nil
}

// GetByRef fetches a blob by staging reference.
func (s *BlobRepoStub) GetByRef(_ context.Context, ref string) (*models.StagedBlob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[ref]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *item
	return &copied, nil
}

// MarkUploaded transitions a reserved blob to uploaded.
func (s *BlobRepoStub) MarkUploaded(_ context.Context, ref, contentType string, sizeBytes int64, path, thumbPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[ref]
	if !ok || item.Status != models.BlobStatusReserved {
		return gorm.ErrRecordNotFound
	}
	item.Status = models.BlobStatusUploaded
	item.ContentType = contentType
	item.SizeBytes = sizeBytes
	item.Path = path
	item.ThumbPath = thumbPath
	item.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkCommitted transitions an uploaded blob to committed.
func (s *BlobRepoStub) MarkCommitted(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[ref]
	if !ok || item.Status != models.BlobStatusUploaded {
		return gorm.ErrRecordNotFound
	}
	item.Status = models.BlobStatusCommitted
	item.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes a blob record.
func (s *BlobRepoStub) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, ref)
	return nil
}

// ListStale returns uncommitted blobs older than the given age.
func (s *BlobRepoStub) ListStale(_ context.Context, olderThan time.Duration) ([]*models.StagedBlob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	var out []*models.StagedBlob
	for _, item := range s.items {
		if item.Status == models.BlobStatusCommitted {
			continue
		}
		if item.CreatedAt.Before(cutoff) {
			copied := *item
			out = append(out, &copied)
		}
	}
	return out, nil
}

// Age backdates a blob's creation time for sweep tests.
func (s *BlobRepoStub) Age(ref string, by time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item, ok := s.items[ref]; ok {
		item.CreatedAt = item.CreatedAt.Add(-by)
	}
}

// TinyPNG encodes a blank PNG of the given dimensions.
func TinyPNG(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
