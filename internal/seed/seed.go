// Package seed fills a database with fake users, posts and follow edges for
// development and demos.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"blogsphere/internal/models"
	"blogsphere/internal/observability"
)

// DefaultPassword is the password every seeded user can log in with.
const DefaultPassword = "password123"

const batchSize = 100

// Options configures a seeding run.
type Options struct {
	NumUsers       int
	NumPosts       int
	FollowsPerUser int
	ShouldClean    bool
	// MaxDays spreads post creation dates over this many days back from now.
	MaxDays int
	// RandSeed makes a run reproducible. Zero picks a time-based seed.
	RandSeed int64
	// PasswordCost is the bcrypt cost; zero means bcrypt.DefaultCost.
	PasswordCost int
}

// Result counts what a run created.
type Result struct {
	Users   []models.User
	Posts   int
	Follows int
}

// Seeder writes fake data through GORM.
type Seeder struct {
	db    *gorm.DB
	opts  Options
	faker *gofakeit.Faker
	now   time.Time
}

// NewSeeder creates a Seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	if opts.RandSeed == 0 {
		opts.RandSeed = time.Now().UnixNano()
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}
	if opts.PasswordCost == 0 {
		opts.PasswordCost = bcrypt.DefaultCost
	}
	return &Seeder{
		db:    db,
		opts:  opts,
		faker: gofakeit.New(opts.RandSeed),
		now:   time.Now().UTC(),
	}
}

// Run seeds users, then posts spread across them, then follow edges.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	log := observability.Logger
	log.InfoContext(ctx, "seeding database",
		slog.Int("users", s.opts.NumUsers),
		slog.Int("posts", s.opts.NumPosts),
		slog.Bool("clean", s.opts.ShouldClean),
	)

	if s.opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, fmt.Errorf("clear data: %w", err)
		}
	}

	users, err := s.createUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("create users: %w", err)
	}
	posts, err := s.createPosts(ctx, users)
	if err != nil {
		return nil, fmt.Errorf("create posts: %w", err)
	}
	follows, err := s.createFollows(ctx, users)
	if err != nil {
		return nil, fmt.Errorf("create follows: %w", err)
	}

	log.InfoContext(ctx, "seeding complete",
		slog.Int("users", len(users)),
		slog.Int("posts", posts),
		slog.Int("follows", follows),
	)
	return &Result{Users: users, Posts: posts, Follows: follows}, nil
}

// ClearAll removes every follow, post and user, including soft-deleted users.
func (s *Seeder) ClearAll(ctx context.Context) error {
	tx := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{&models.Follow{}, &models.Post{}, &models.User{}} {
		if err := tx.Unscoped().Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) createUsers(ctx context.Context) ([]models.User, error) {
	if s.opts.NumUsers <= 0 {
		return nil, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), s.opts.PasswordCost)
	if err != nil {
		return nil, err
	}

	users := make([]models.User, 0, s.opts.NumUsers)
	for i := 0; i < s.opts.NumUsers; i++ {
		// The index suffix keeps usernames and emails unique across a run.
		name := fmt.Sprintf("%s%d", strings.ToLower(s.faker.Username()), i)
		users = append(users, models.User{
			Username: name,
			Email:    name + "@" + s.faker.DomainName(),
			Password: string(hash),
		})
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&users, batchSize).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Seeder) createPosts(ctx context.Context, users []models.User) (int, error) {
	if len(users) == 0 || s.opts.NumPosts <= 0 {
		return 0, nil
	}

	posts := make([]models.Post, 0, s.opts.NumPosts)
	for i := 0; i < s.opts.NumPosts; i++ {
		author := users[s.faker.Number(0, len(users)-1)]
		posts = append(posts, models.Post{
			Title:     strings.TrimSuffix(s.faker.Sentence(s.faker.Number(3, 8)), "."),
			Body:      s.faker.Paragraph(s.faker.Number(1, 3), 4, 12, "\n\n"),
			AuthorID:  author.ID,
			CreatedAt: s.createdAt(),
		})
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&posts, batchSize).Error; err != nil {
		return 0, err
	}
	return len(posts), nil
}

func (s *Seeder) createdAt() time.Time {
	back := time.Duration(s.faker.Number(0, s.opts.MaxDays*24*60)) * time.Minute
	return s.now.Add(-back)
}

// createFollows gives each user up to FollowsPerUser distinct followees,
// never themselves.
func (s *Seeder) createFollows(ctx context.Context, users []models.User) (int, error) {
	if len(users) < 2 || s.opts.FollowsPerUser <= 0 {
		return 0, nil
	}
	perUser := min(s.opts.FollowsPerUser, len(users)-1)

	follows := make([]models.Follow, 0, len(users)*perUser)
	for i, follower := range users {
		picked := make(map[int]struct{}, perUser)
		for len(picked) < perUser {
			j := s.faker.Number(0, len(users)-1)
			if j == i {
				continue
			}
			if _, dup := picked[j]; dup {
				continue
			}
			picked[j] = struct{}{}
			follows = append(follows, models.Follow{
				AuthorID:   follower.ID,
				FollowedID: users[j].ID,
				CreatedAt:  s.now,
			})
		}
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&follows, batchSize).Error; err != nil {
		return 0, err
	}
	return len(follows), nil
}
