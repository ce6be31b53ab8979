package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Follow records that AuthorID follows FollowedID.
type Follow struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AuthorID   uuid.UUID `gorm:"type:uuid;not null;index:idx_follows_author" json:"author_id"`
	FollowedID uuid.UUID `gorm:"type:uuid;not null;index" json:"followed_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Follow) TableName() string {
	return "follows"
}

// BeforeCreate assigns the primary key.
func (f *Follow) BeforeCreate(_ *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
