package service

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"blogsphere/internal/models"
	"blogsphere/internal/observability"
	"blogsphere/internal/repository"
)

type FeedService struct {
	follows repository.FollowRepository
	posts   repository.PostRepository
}

func NewFeedService(follows repository.FollowRepository, posts repository.PostRepository) *FeedService {
	return &FeedService{follows: follows, posts: posts}
}

// GetFeed returns posts by everyone viewer follows, newest first. A viewer
// who follows nobody gets an empty feed without a post query.
func (s *FeedService) GetFeed(ctx context.Context, viewer uuid.UUID) (posts []models.ViewPost, err error) {
	span, ctx := observability.StartSpan(ctx, "FeedService.GetFeed",
		attribute.String("user_id", viewer.String()))
	defer func() { finish(span, "feed", err) }()

	ids, err := s.follows.FollowedIDs(ctx, viewer)
	if err != nil {
		return nil, storageError(ctx, "feed_follows", err)
	}
	if len(ids) == 0 {
		return []models.ViewPost{}, nil
	}

	posts, err = s.posts.Aggregate(ctx, repository.Pipeline{
		repository.MatchIn(repository.FieldAuthor, ids),
		repository.Sort(repository.FieldCreatedDate, true),
	}, uuid.Nil)
	if err != nil {
		return nil, storageError(ctx, "feed", err)
	}
	return posts, nil
}
