package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"inkwell/internal/middleware"
)

// UploadSlot is a reserved destination for exactly one image upload.
type UploadSlot struct {
	Ref       string `json:"ref"`
	UploadURL string `json:"upload_url"`
}

// UploadResult is the staging area's acknowledgement of stored bytes.
type UploadResult struct {
	StorageID string `json:"storageId"`
}

// Stager is the staging contract the publish pipeline depends on:
// reserve a slot, push bytes to it, commit once a post references the
// blob, and best-effort delete by reference.
type Stager interface {
	Reserve(ctx context.Context) (*UploadSlot, error)
	Upload(ctx context.Context, uploadURL, contentType string, content []byte) (string, error)
	Commit(ctx context.Context, ref string) error
	Delete(ctx context.Context, ref string) error
}

// HTTPStager talks to a staging area over HTTP. The zero Timeout of the
// provided client is respected; callers bound calls with ctx.
type HTTPStager struct {
	BaseURL   string
	AuthToken string
	Client    *http.Client
}

// NewHTTPStager returns a stager client for the given base URL.
func NewHTTPStager(baseURL, authToken string) *HTTPStager {
	return &HTTPStager{
		BaseURL:   baseURL,
		AuthToken: authToken,
		Client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPStager) Reserve(ctx context.Context) (*UploadSlot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/api/blobs/reserve", nil)
	if err != nil {
		return nil, err
	}
	s.authorize(req)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("reserve returned status %d", resp.StatusCode)
	}

	var slot UploadSlot
	if err := json.NewDecoder(resp.Body).Decode(&slot); err != nil {
		return nil, fmt.Errorf("decode reserve response: %w", err)
	}
	if slot.Ref == "" || slot.UploadURL == "" {
		return nil, fmt.Errorf("reserve response missing slot fields")
	}
	return &slot, nil
}

// Upload posts the raw bytes to the slot's upload URL with the image's
// content type and returns the storage id acknowledged by the staging area.
func (s *HTTPStager) Upload(ctx context.Context, uploadURL, contentType string, content []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	s.authorize(req)

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("upload returned status %d: %s", resp.StatusCode, string(body))
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if result.StorageID == "" {
		return "", fmt.Errorf("upload response missing storageId")
	}
	return result.StorageID, nil
}

// Commit marks the uploaded blob as referenced by a post so the staging
// sweeper leaves it alone.
func (s *HTTPStager) Commit(ctx context.Context, ref string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/api/blobs/"+ref+"/commit", nil)
	if err != nil {
		return err
	}
	s.authorize(req)

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("commit returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *HTTPStager) Delete(ctx context.Context, ref string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.BaseURL+"/api/blobs/"+ref, nil)
	if err != nil {
		return err
	}
	s.authorize(req)

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("delete returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *HTTPStager) authorize(req *http.Request) {
	if s.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.AuthToken)
	}
}

// LocalStager adapts the in-process staging Service to the Stager
// contract. Used when the staging area lives in the same process as the
// publish pipeline. Slots are attributed to the user carried in ctx.
type LocalStager struct {
	Service *Service
}

func (l *LocalStager) Reserve(ctx context.Context) (*UploadSlot, error) {
	var userID uint
	if uid, ok := ctx.Value(middleware.UserIDKey).(uint); ok {
		userID = uid
	}
	blob, err := l.Service.Reserve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UploadSlot{
		Ref:       blob.Ref,
		UploadURL: "/api/blobs/upload/" + blob.Ref,
	}, nil
}

func (l *LocalStager) Upload(ctx context.Context, uploadURL, contentType string, content []byte) (string, error) {
	// The upload URL suffix is the slot ref for local slots.
	ref := uploadURL[strings.LastIndex(uploadURL, "/")+1:]
	blob, err := l.Service.SaveUpload(ctx, ref, contentType, content)
	if err != nil {
		return "", err
	}
	return blob.Ref, nil
}

func (l *LocalStager) Commit(ctx context.Context, ref string) error {
	return l.Service.Commit(ctx, ref)
}

func (l *LocalStager) Delete(ctx context.Context, ref string) error {
	return l.Service.Delete(ctx, ref)
}
