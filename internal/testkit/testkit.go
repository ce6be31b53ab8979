// Package testkit builds migrated in-memory databases and fixtures for
// package tests.
package testkit

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"blogsphere/internal/database"
	"blogsphere/internal/models"
)

// NewDB returns a migrated SQLite database private to t.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	// One connection keeps the shared in-memory database alive and serialises writers.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// CreateUser inserts a user named username.
func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "not-a-real-hash",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

// CreatePost inserts a post written by author at createdAt.
func CreatePost(t *testing.T, db *gorm.DB, author uuid.UUID, title, body string, createdAt time.Time) *models.Post {
	t.Helper()
	post := &models.Post{
		Title:     title,
		Body:      body,
		AuthorID:  author,
		CreatedAt: createdAt.UTC(),
	}
	if err := db.Create(post).Error; err != nil {
		t.Fatalf("create post %q: %v", title, err)
	}
	return post
}

// Follow records that follower follows followed.
func Follow(t *testing.T, db *gorm.DB, follower, followed uuid.UUID) {
	t.Helper()
	if err := db.Create(&models.Follow{AuthorID: follower, FollowedID: followed}).Error; err != nil {
		t.Fatalf("create follow: %v", err)
	}
}

// LoadPost reads the stored post row, bypassing the aggregator.
func LoadPost(t *testing.T, db *gorm.DB, id uuid.UUID) *models.Post {
	t.Helper()
	var post models.Post
	if err := db.First(&post, "id = ?", id).Error; err != nil {
		t.Fatalf("load post %s: %v", id, err)
	}
	return &post
}

// PostExists reports whether a post row with id is stored.
func PostExists(t *testing.T, db *gorm.DB, id uuid.UUID) bool {
	t.Helper()
	var count int64
	if err := db.Model(&models.Post{}).Where("id = ?", id).Count(&count).Error; err != nil {
		t.Fatalf("count post %s: %v", id, err)
	}
	return count > 0
}
