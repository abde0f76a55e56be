package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"inkwell/internal/blobstore"
	"inkwell/internal/cache"
	"inkwell/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStager records staging calls and fails on demand.
type stubStager struct {
	reserveErr error
	uploadErr  error
	deleteErr  error

	reserves int
	uploads  int
	commits  int
	deletes  []string

	lastContentType string
	lastContent     []byte
}

func (s *stubStager) Reserve(_ context.Context) (*blobstore.UploadSlot, error) {
	s.reserves++
	if s.reserveErr != nil {
		return nil, s.reserveErr
	}
	return &blobstore.UploadSlot{Ref: "blob-1", UploadURL: "/api/blobs/upload/blob-1"}, nil
}

func (s *stubStager) Upload(_ context.Context, _, contentType string, content []byte) (string, error) {
	s.uploads++
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	s.lastContentType = contentType
	s.lastContent = content
	return "blob-1", nil
}

func (s *stubStager) Commit(_ context.Context, _ string) error {
	s.commits++
	return nil
}

func (s *stubStager) Delete(_ context.Context, ref string) error {
	s.deletes = append(s.deletes, ref)
	return s.deleteErr
}

// stubPostRepo is an in-memory post store whose Create can be forced to fail.
type stubPostRepo struct {
	createErr error
	nextID    uint
	posts     map[uint]*models.Post
}

func newStubPostRepo() *stubPostRepo {
	return &stubPostRepo{nextID: 1, posts: make(map[uint]*models.Post)}
}

func (r *stubPostRepo) Create(_ context.Context, post *models.Post) error {
	if r.createErr != nil {
		return r.createErr
	}
	post.ID = r.nextID
	r.nextID++
	copied := *post
	r.posts[post.ID] = &copied
	return nil
}

func (r *stubPostRepo) GetByID(_ context.Context, id uint, _ uint) (*models.Post, error) {
	post, ok := r.posts[id]
	if !ok {
		return nil, models.NewNotFoundError("Post", id)
	}
	copied := *post
	return &copied, nil
}

func (r *stubPostRepo) GetByUserID(_ context.Context, userID uint, _, _ int) ([]*models.Post, error) {
	var out []*models.Post
	for _, p := range r.posts {
		if p.UserID == userID {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *stubPostRepo) List(_ context.Context, _, _ int, _ uint) ([]*models.Post, error) {
	var out []*models.Post
	for _, p := range r.posts {
		copied := *p
		out = append(out, &copied)
	}
	return out, nil
}

func (r *stubPostRepo) Search(_ context.Context, query string, _, _ int) ([]*models.Post, error) {
	var out []*models.Post
	for _, p := range r.posts {
		if strings.Contains(strings.ToLower(p.Title), strings.ToLower(query)) {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *stubPostRepo) Update(_ context.Context, post *models.Post) error {
	copied := *post
	r.posts[post.ID] = &copied
	return nil
}

func (r *stubPostRepo) Delete(_ context.Context, id uint) error {
	delete(r.posts, id)
	return nil
}

func validPublishInput() PublishInput {
	return PublishInput{
		UserID:           7,
		Title:            "A Perfectly Fine Title",
		Content:          "This body comfortably clears the minimum length.",
		Image:            bytes.Repeat([]byte{0xAB}, 2048),
		ImageContentType: "image/png",
	}
}

func TestPublisher_Success(t *testing.T) {
	mr := miniredis.RunT(t)
	cache.InitRedis(mr.Addr())
	mr.Set(cache.PostsListKey(10, 0), `["stale"]`)
	mr.SetAdd("tag:"+cache.PostsListTag, cache.PostsListKey(10, 0))

	stager := &stubStager{}
	repo := newStubPostRepo()
	publisher := NewPublisher(repo, stager)

	post, err := publisher.Publish(context.Background(), validPublishInput())
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, "blob-1", post.ImageRef)
	assert.Equal(t, uint(7), post.UserID)

	assert.Equal(t, 1, stager.reserves)
	assert.Equal(t, 1, stager.uploads)
	assert.Equal(t, 1, stager.commits)
	assert.Empty(t, stager.deletes, "a successful publish must not delete the blob")
	assert.Equal(t, "image/png", stager.lastContentType)

	assert.False(t, mr.Exists(cache.PostsListKey(10, 0)), "stale list pages must be invalidated")
}

func TestPublisher_InvalidInputHasNoSideEffects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *PublishInput)
	}{
		{"Short Title", func(in *PublishInput) { in.Title = "Hey" }},
		{"Short Body", func(in *PublishInput) { in.Content = "too short" }},
		{"Empty Image", func(in *PublishInput) { in.Image = nil }},
		{"Oversized Image", func(in *PublishInput) { in.Image = bytes.Repeat([]byte{1}, 5_000_001) }},
		{"Non-Image Content Type", func(in *PublishInput) { in.ImageContentType = "application/pdf" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stager := &stubStager{}
			repo := newStubPostRepo()
			publisher := NewPublisher(repo, stager)

			in := validPublishInput()
			tt.mutate(&in)

			_, err := publisher.Publish(context.Background(), in)
			require.Error(t, err)
			assert.Equal(t, models.CodeInvalidInput, models.CodeOf(err))
			assert.Zero(t, stager.reserves, "validation failures must precede any staging call")
			assert.Empty(t, repo.posts)
		})
	}
}

func TestPublisher_ReserveFailure(t *testing.T) {
	stager := &stubStager{reserveErr: errors.New("staging down")}
	repo := newStubPostRepo()
	publisher := NewPublisher(repo, stager)

	_, err := publisher.Publish(context.Background(), validPublishInput())
	require.Error(t, err)
	assert.Equal(t, models.CodeStagingUnavailable, models.CodeOf(err))
	assert.Zero(t, stager.uploads)
	assert.Empty(t, repo.posts)
}

func TestPublisher_UploadFailure(t *testing.T) {
	stager := &stubStager{uploadErr: fmt.Errorf("upload returned status 500")}
	repo := newStubPostRepo()
	publisher := NewPublisher(repo, stager)

	_, err := publisher.Publish(context.Background(), validPublishInput())
	require.Error(t, err)
	assert.Equal(t, models.CodeUploadFailed, models.CodeOf(err))
	assert.Empty(t, repo.posts)
	assert.Empty(t, stager.deletes, "nothing was stored, so nothing gets compensated")
}

func TestPublisher_CreateFailureCompensatesExactlyOnce(t *testing.T) {
	stager := &stubStager{}
	repo := newStubPostRepo()
	repo.createErr = errors.New("db write rejected")
	publisher := NewPublisher(repo, stager)

	_, err := publisher.Publish(context.Background(), validPublishInput())
	require.Error(t, err)
	assert.Equal(t, models.CodePostCreationFailed, models.CodeOf(err))
	assert.Equal(t, []string{"blob-1"}, stager.deletes)
	assert.Zero(t, stager.commits)
}

func TestPublisher_CompensationFailureIsSwallowed(t *testing.T) {
	stager := &stubStager{deleteErr: errors.New("staging area refused delete")}
	repo := newStubPostRepo()
	repo.createErr = errors.New("db write rejected")
	publisher := NewPublisher(repo, stager)

	_, err := publisher.Publish(context.Background(), validPublishInput())
	require.Error(t, err)
	assert.Equal(t, models.CodePostCreationFailed, models.CodeOf(err),
		"the caller sees the post creation failure, never the cleanup failure")
	assert.Len(t, stager.deletes, 1, "the compensating delete is attempted once and only once")
}
