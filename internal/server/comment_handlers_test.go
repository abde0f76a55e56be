package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCommentRepository is a mock of the CommentRepository interface
type MockCommentRepository struct {
	mock.Mock
}

func (m *MockCommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	args := m.Called(ctx, comment)
	return args.Error(0)
}

func (m *MockCommentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Comment), args.Error(1)
}

func (m *MockCommentRepository) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	args := m.Called(ctx, postID)
	return args.Get(0).([]*models.Comment), args.Error(1)
}

func (m *MockCommentRepository) Update(ctx context.Context, comment *models.Comment) error {
	args := m.Called(ctx, comment)
	return args.Error(0)
}

func (m *MockCommentRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

const commentTestSecret = "comment-test-secret-1234567890"

func bearerFor(t *testing.T, userID uint) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iss": tokenIssuer,
		"aud": tokenAudience,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	str, err := token.SignedString([]byte(commentTestSecret))
	require.NoError(t, err)
	return "Bearer " + str
}

func newCommentTestServer(postRepo *MockPostRepository, commentRepo *MockCommentRepository) *Server {
	s := &Server{
		config:      &config.Config{JWTSecret: commentTestSecret},
		postRepo:    postRepo,
		commentRepo: commentRepo,
	}
	s.commentService = service.NewCommentService(commentRepo, postRepo, nil)
	s.feedHub = notifications.NewFeedHub(s.loadFeedComments, nil)
	return s
}

func TestGetComments_AnonymousGetsLoggedOutState(t *testing.T) {
	postRepo := new(MockPostRepository)
	commentRepo := new(MockCommentRepository)
	s := newCommentTestServer(postRepo, commentRepo)

	app := fiber.New()
	app.Get("/posts/:id/comments", s.GetComments)

	req := httptest.NewRequest(http.MethodGet, "/posts/1/comments", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Authenticated bool              `json:"authenticated"`
		Comments      []*models.Comment `json:"comments"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Authenticated)
	assert.Empty(t, body.Comments)
	commentRepo.AssertNotCalled(t, "ListByPost", mock.Anything, mock.Anything)
}

func TestGetComments_AuthenticatedGetsOrderedComments(t *testing.T) {
	postRepo := new(MockPostRepository)
	commentRepo := new(MockCommentRepository)
	s := newCommentTestServer(postRepo, commentRepo)

	postRepo.On("GetByID", mock.Anything, uint(1), uint(42)).
		Return(&models.Post{ID: 1}, nil)
	commentRepo.On("ListByPost", mock.Anything, uint(1)).
		Return([]*models.Comment{
			{ID: 1, Content: "first", PostID: 1},
			{ID: 2, Content: "second", PostID: 1},
		}, nil)

	app := fiber.New()
	app.Get("/posts/:id/comments", s.GetComments)

	req := httptest.NewRequest(http.MethodGet, "/posts/1/comments", nil)
	req.Header.Set("Authorization", bearerFor(t, 42))
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Authenticated bool              `json:"authenticated"`
		Comments      []*models.Comment `json:"comments"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Authenticated)
	require.Len(t, body.Comments, 2)
	assert.Equal(t, "first", body.Comments[0].Content)
	assert.Equal(t, "second", body.Comments[1].Content)
}

func TestCreateComment(t *testing.T) {
	postRepo := new(MockPostRepository)
	commentRepo := new(MockCommentRepository)
	s := newCommentTestServer(postRepo, commentRepo)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", uint(42))
		return c.Next()
	})
	app.Post("/posts/:id/comments", s.CreateComment)

	t.Run("Success", func(t *testing.T) {
		postRepo.On("GetByID", mock.Anything, uint(1), uint(42)).
			Return(&models.Post{ID: 1}, nil)
		commentRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
		commentRepo.On("GetByID", mock.Anything, mock.Anything).
			Return(&models.Comment{ID: 7, Content: "a fine comment", PostID: 1, UserID: 42}, nil)

		body, _ := json.Marshal(map[string]string{"content": "a fine comment"})
		req := httptest.NewRequest(http.MethodPost, "/posts/1/comments", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("Too Short", func(t *testing.T) {
		postRepo.On("GetByID", mock.Anything, uint(1), uint(42)).
			Return(&models.Post{ID: 1}, nil)

		body, _ := json.Marshal(map[string]string{"content": "no"})
		req := httptest.NewRequest(http.MethodPost, "/posts/1/comments", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Post Not Found", func(t *testing.T) {
		postRepo.On("GetByID", mock.Anything, uint(9), uint(42)).
			Return(nil, models.NewNotFoundError("Post", 9))

		body, _ := json.Marshal(map[string]string{"content": "a fine comment"})
		req := httptest.NewRequest(http.MethodPost, "/posts/9/comments", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestDeleteComment_OwnerOnly(t *testing.T) {
	postRepo := new(MockPostRepository)
	commentRepo := new(MockCommentRepository)
	s := newCommentTestServer(postRepo, commentRepo)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", uint(42))
		return c.Next()
	})
	app.Delete("/posts/:id/comments/:commentId", s.DeleteComment)

	commentRepo.On("GetByID", mock.Anything, uint(7)).
		Return(&models.Comment{ID: 7, PostID: 1, UserID: 99}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/posts/1/comments/7", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	commentRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}
