// Package models contains data structures for the application's domain models.
package models

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultAvatarURL is shown for authors that no longer resolve to a user.
const DefaultAvatarURL = "https://gravatar.com/avatar/?d=mp&s=128"

// DeletedUsername replaces the username of an author that no longer resolves.
const DeletedUsername = "[deleted]"

// User represents an account. Authentication lives outside this module;
// posts only read the public projection exposed by Author.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Username  string         `gorm:"uniqueIndex;not null" json:"username"`
	Email     string         `gorm:"uniqueIndex;not null" json:"-"`
	Password  string         `gorm:"not null" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns the primary key.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Author is the view-safe projection of a user attached to posts.
type Author struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// AvatarURL returns the Gravatar image for an email address.
func AvatarURL(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return DefaultAvatarURL
	}
	sum := md5.Sum([]byte(normalized))
	return fmt.Sprintf("https://gravatar.com/avatar/%s?s=128", hex.EncodeToString(sum[:]))
}

// Author returns the public projection of the user.
func (u *User) Author() Author {
	return Author{Username: u.Username, Avatar: AvatarURL(u.Email)}
}

// DeletedAuthor is the placeholder for posts whose author no longer resolves.
func DeletedAuthor() Author {
	return Author{Username: DeletedUsername, Avatar: DefaultAvatarURL}
}
