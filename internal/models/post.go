package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post is a persisted blog post. AuthorID and CreatedAt are written once on
// insert; updates only ever touch Title and Body.
type Post struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	AuthorID  uuid.UUID `gorm:"type:uuid;not null;index" json:"author_id"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_date"`
}

// BeforeCreate assigns the primary key.
func (p *Post) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ViewPost is the shape every read path returns: the post joined with its
// author's public projection and the per-request ownership flag.
type ViewPost struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	CreatedDate    time.Time `json:"created_date"`
	Author         Author    `json:"author"`
	IsVisitorOwner bool      `json:"is_visitor_owner"`
}
