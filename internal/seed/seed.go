// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"inkwell/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
}

// defaultPassword is the login password for every seeded account.
const defaultPassword = "Password123!"

// Seeder populates the database with demo users, posts and comments.
type Seeder struct {
	db  *gorm.DB
	rnd *rand.Rand
}

// NewSeeder creates a Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB) *Seeder {
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{
		db:  db,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run seeds the database according to opts.
func (s *Seeder) Run(opts Options) error {
	log.Printf("🌱 Starting database seeding with %d users and %d posts...", opts.NumUsers, opts.NumPosts)

	if opts.ShouldClean {
		if err := s.ClearAll(); err != nil {
			log.Println("⚠️  Warning: Could not clear all existing data, but continuing anyway...")
		}
	}

	users, err := s.createUsers(opts.NumUsers)
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("✓ %d users created", len(users))

	posts, err := s.createPosts(users, opts.NumPosts)
	if err != nil {
		return fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("✓ %d posts created", len(posts))

	comments, err := s.createComments(users, posts)
	if err != nil {
		return fmt.Errorf("failed to create comments: %w", err)
	}
	log.Printf("✓ %d comments created", comments)

	log.Println("🎉 Database seeding completed successfully!")
	return nil
}

// ClearAll removes all seeded rows. Order matters because of foreign keys.
func (s *Seeder) ClearAll() error {
	for _, table := range []string{"comments", "staged_blobs", "posts", "users"} {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

func (s *Seeder) createUsers(n int) ([]*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(defaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, n)
	for i := 0; i < n; i++ {
		user := &models.User{
			Username: fmt.Sprintf("%s%d", strings.ToLower(gofakeit.Username()), i),
			Email:    fmt.Sprintf("seed%d_%s", i, strings.ToLower(gofakeit.Email())),
			Password: string(hashed),
			Bio:      gofakeit.Sentence(8),
			Avatar:   fmt.Sprintf("https://picsum.photos/seed/%s/200/200", gofakeit.UUID()),
		}
		if err := s.db.Create(user).Error; err != nil {
			return nil, fmt.Errorf("create user %d: %w", i, err)
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Seeder) createPosts(users []*models.User, n int) ([]*models.Post, error) {
	if len(users) == 0 {
		return nil, nil
	}

	posts := make([]*models.Post, 0, n)
	for i := 0; i < n; i++ {
		author := users[s.rnd.Intn(len(users))]
		post := &models.Post{
			Title:     Title(),
			Content:   Body(),
			ImageURL:  fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID()),
			UserID:    author.ID,
			CreatedAt: s.pastTimestamp(90),
		}
		if err := s.db.Create(post).Error; err != nil {
			return nil, fmt.Errorf("create post %d: %w", i, err)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (s *Seeder) createComments(users []*models.User, posts []*models.Post) (int, error) {
	if len(users) == 0 || len(posts) == 0 {
		return 0, nil
	}

	created := 0
	for _, post := range posts {
		for i := 0; i < s.rnd.Intn(6); i++ {
			comment := &models.Comment{
				Content:   CommentBody(),
				UserID:    users[s.rnd.Intn(len(users))].ID,
				PostID:    post.ID,
				CreatedAt: post.CreatedAt.Add(time.Duration(i+1) * time.Hour),
			}
			if err := s.db.Create(comment).Error; err != nil {
				return created, fmt.Errorf("create comment on post %d: %w", post.ID, err)
			}
			created++
		}
	}
	return created, nil
}

// pastTimestamp returns a random time within the last maxDays days.
func (s *Seeder) pastTimestamp(maxDays int) time.Time {
	daysBack := s.rnd.Intn(maxDays)
	hoursBack := s.rnd.Intn(24)
	return time.Now().Add(-time.Duration(daysBack)*24*time.Hour - time.Duration(hoursBack)*time.Hour)
}

// Title generates a post title that satisfies the publishing minimum length.
func Title() string {
	title := strings.TrimSuffix(gofakeit.Sentence(5), ".")
	for len(title) < 5 {
		title += " " + gofakeit.Word()
	}
	return title
}

// Body generates post body text that satisfies the publishing minimum length.
func Body() string {
	body := gofakeit.Paragraph(2, 4, 8, "\n\n")
	for len(body) < 20 {
		body += " " + gofakeit.Sentence(8)
	}
	return body
}

// CommentBody generates comment text within the accepted length bounds.
func CommentBody() string {
	body := gofakeit.Sentence(10)
	if len(body) > 2000 {
		body = body[:2000]
	}
	for len(body) < 3 {
		body += gofakeit.Word()
	}
	return body
}
