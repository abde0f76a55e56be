package repository

import (
	"context"
	"regexp"
	"testing"

	"inkwell/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestPostRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	post := &models.Post{Title: "Test Post", Content: "Content"}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "posts"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Create(ctx, post)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	tests := []struct {
		name          string
		postID        uint
		currentUserID uint
		mockBehavior  func()
		expectedTitle string
		expectedError bool
	}{
		{
			name:          "Success With Comment Count",
			postID:        1,
			currentUserID: 2,
			mockBehavior: func() {
				// single query: posts.* plus comments_count subselect
				mock.ExpectQuery(`SELECT posts\.\*.+comments_count FROM "posts"`).
					WithArgs(1, 1).
					WillReturnRows(sqlmock.NewRows([]string{"id", "title", "user_id", "comments_count"}).
						AddRow(1, "Post 1", 10, 5))

				// preload user - GORM preloads after main query
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 AND "users"."deleted_at" IS NULL`)).
					WithArgs(10).
					WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).AddRow(10, "user10"))
			},
			expectedTitle: "Post 1",
		},
		{
			name:          "Not Found",
			postID:        99,
			currentUserID: 2,
			mockBehavior: func() {
				mock.ExpectQuery(`SELECT posts\.\*.+comments_count FROM "posts"`).
					WithArgs(99, 1).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			post, err := repo.GetByID(ctx, tt.postID, tt.currentUserID)

			if tt.expectedError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedTitle, post.Title)
				assert.Equal(t, 5, post.CommentsCount)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostRepository_Search(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT posts\.\*.+FROM "posts" WHERE \(title ILIKE .+ OR content ILIKE .+\)`).
		WithArgs("%go%", "%go%", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "user_id"}).
			AddRow(1, "Going concurrent", 10).
			AddRow(2, "Go generics", 10))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).AddRow(10, "user10"))

	posts, err := repo.Search(ctx, "go", 5, 0)
	assert.NoError(t, err)
	assert.Len(t, posts, 2)
	assert.Equal(t, "Going concurrent", posts[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}
