// Package blobstore implements the image staging area: reserved upload
// slots, byte staging on disk, commit on post creation, and sweeping of
// abandoned slots.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/repository"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	"gorm.io/gorm"

	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	_ "golang.org/x/image/webp" // register WebP decoder
)

const (
	DefaultUploadDir = "/tmp/inkwell/uploads"
	ThumbMaxSize     = 512
	WebPQuality      = 70

	sweepInterval = time.Minute
)

// ErrSlotNotFound is returned when an upload references an unknown or
// already-consumed slot.
var ErrSlotNotFound = errors.New("upload slot not found")

// Service owns the staging area lifecycle.
type Service struct {
	repo      repository.BlobRepository
	uploadDir string
	maxBytes  int64
	ttl       time.Duration

	sweeperOnce sync.Once
}

// NewService builds the staging service from config.
func NewService(repo repository.BlobRepository, cfg *config.Config) *Service {
	uploadDir := DefaultUploadDir
	maxUploadSizeMB := 5
	ttlMinutes := 60

	if cfg != nil {
		if cfg.UploadDir != "" {
			uploadDir = cfg.UploadDir
		}
		if cfg.ImageMaxUploadSizeMB > 0 {
			maxUploadSizeMB = cfg.ImageMaxUploadSizeMB
		}
		if cfg.StagingTTLMinutes > 0 {
			ttlMinutes = cfg.StagingTTLMinutes
		}
	}

	return &Service{
		repo:      repo,
		uploadDir: uploadDir,
		maxBytes:  int64(maxUploadSizeMB) * 1024 * 1024,
		ttl:       time.Duration(ttlMinutes) * time.Minute,
	}
}

// Reserve creates a new upload slot and returns its blob record.
func (s *Service) Reserve(ctx context.Context, userID uint) (*models.StagedBlob, error) {
	blob := &models.StagedBlob{
		Ref:    uuid.New().String(),
		Status: models.BlobStatusReserved,
		UserID: userID,
	}
	if err := s.repo.Create(ctx, blob); err != nil {
		return nil, fmt.Errorf("reserve upload slot: %w", err)
	}
	return blob, nil
}

// SaveUpload validates and stages the uploaded bytes against a reserved
// slot. A slot accepts bytes exactly once.
func (s *Service) SaveUpload(ctx context.Context, ref, contentType string, content []byte) (*models.StagedBlob, error) {
	if len(content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(content)) > s.maxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxBytes/(1024*1024)))
	}

	detectedType := http.DetectContentType(content)
	if !isAllowedImageMIME(detectedType) {
		return nil, models.NewValidationError("Invalid image type")
	}
	if provided := normalizeContentType(contentType); strings.HasPrefix(provided, "image/") && provided != normalizeContentType(detectedType) && !isJPEGAlias(provided, detectedType) {
		return nil, models.NewValidationError("Image content type mismatch")
	}

	decoded, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}

	blob, err := s.repo.GetByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSlotNotFound
		}
		return nil, models.NewInternalError(err)
	}
	if blob.Status != models.BlobStatusReserved {
		return nil, ErrSlotNotFound
	}

	path := filepath.Join(s.uploadDir, ref)
	thumbPath := path + ".webp"
	written := []string{path}

	if err := writeBytesToFile(path, content); err != nil {
		return nil, models.NewInternalError(err)
	}

	thumb := resizeToFit(decoded, ThumbMaxSize, ThumbMaxSize)
	encodedThumb, err := encodeWebP(thumb, WebPQuality)
	if err != nil {
		cleanupFiles(written)
		return nil, models.NewInternalError(err)
	}
	written = append(written, thumbPath)
	if err := writeBytesToFile(thumbPath, encodedThumb); err != nil {
		cleanupFiles(written)
		return nil, models.NewInternalError(err)
	}

	if err := s.repo.MarkUploaded(ctx, ref, normalizeContentType(detectedType), int64(len(content)), path, thumbPath); err != nil {
		cleanupFiles(written)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSlotNotFound
		}
		return nil, models.NewInternalError(err)
	}

	return s.repo.GetByRef(ctx, ref)
}

// Commit pins an uploaded blob to a post so the sweeper leaves it alone.
func (s *Service) Commit(ctx context.Context, ref string) error {
	return s.repo.MarkCommitted(ctx, ref)
}

// GetByRef returns the blob record for a staging reference.
func (s *Service) GetByRef(ctx context.Context, ref string) (*models.StagedBlob, error) {
	return s.repo.GetByRef(ctx, ref)
}

// Delete removes the staged files and the blob record. Unknown refs are
// not an error; delete is best-effort by contract.
func (s *Service) Delete(ctx context.Context, ref string) error {
	blob, err := s.repo.GetByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	cleanupFiles([]string{blob.Path, blob.ThumbPath})
	return s.repo.Delete(ctx, ref)
}

// StartSweeper launches the background loop that removes slots never
// committed within the staging TTL.
func (s *Service) StartSweeper(ctx context.Context) {
	s.sweeperOnce.Do(func() {
		go s.sweepLoop(ctx)
	})
}

func (s *Service) sweepLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if n, err := s.sweepOnce(ctx); err != nil {
			middleware.Logger.Warn("blob sweep failed", slog.String("error", err.Error()))
		} else if n > 0 {
			middleware.Logger.Info("swept stale upload slots", slog.Int("count", n))
		}
		if !sleepContext(ctx, sweepInterval) {
			return
		}
	}
}

func (s *Service) sweepOnce(ctx context.Context) (int, error) {
	stale, err := s.repo.ListStale(ctx, s.ttl)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, blob := range stale {
		cleanupFiles([]string{blob.Path, blob.ThumbPath})
		if err := s.repo.Delete(ctx, blob.Ref); err != nil {
			middleware.Logger.Warn("failed to delete stale blob",
				slog.String("ref", blob.Ref), slog.String("error", err.Error()))
			continue
		}
		removed++
	}
	return removed, nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isJPEGAlias(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeBytesToFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func cleanupFiles(paths []string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		_ = os.Remove(p)
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
