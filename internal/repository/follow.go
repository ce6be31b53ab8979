package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"blogsphere/internal/models"
	"blogsphere/internal/observability"
)

// FollowRepository reads the follow graph. Follow edges are written by the
// account layer and the seeder; posts only read them.
type FollowRepository interface {
	// FollowedIDs returns the ids followerID follows. Duplicate edges may
	// yield duplicate ids.
	FollowedIDs(ctx context.Context, followerID uuid.UUID) ([]uuid.UUID, error)
	Create(ctx context.Context, follow *models.Follow) error
}

type followRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db, log: observability.NewRepoLogger("follows")}
}

func (r *followRepository) FollowedIDs(ctx context.Context, followerID uuid.UUID) ([]uuid.UUID, error) {
	defer observability.TrackQuery("followed_ids", "follows")()
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("author_id = ?", followerID).
		Pluck("followed_id", &ids).Error
	if err != nil {
		r.log.LogError(ctx, err, "followed_ids")
		return nil, err
	}
	return ids, nil
}

func (r *followRepository) Create(ctx context.Context, follow *models.Follow) error {
	if err := r.db.WithContext(ctx).Create(follow).Error; err != nil {
		r.log.LogError(ctx, err, "insert")
		return err
	}
	r.log.LogCreate(ctx, map[string]any{
		"author_id":   follow.AuthorID.String(),
		"followed_id": follow.FollowedID.String(),
	})
	return nil
}
