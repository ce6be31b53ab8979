package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogsphere/internal/models"
	"blogsphere/internal/repository"
	"blogsphere/internal/testkit"
)

type followRepoStub struct {
	followedIDsFn func(context.Context, uuid.UUID) ([]uuid.UUID, error)
}

func (s *followRepoStub) FollowedIDs(ctx context.Context, followerID uuid.UUID) ([]uuid.UUID, error) {
	return s.followedIDsFn(ctx, followerID)
}
func (s *followRepoStub) Create(context.Context, *models.Follow) error { return nil }

func TestFeedService_NoFollowsSkipsPostQuery(t *testing.T) {
	follows := &followRepoStub{followedIDsFn: func(context.Context, uuid.UUID) ([]uuid.UUID, error) {
		return nil, nil
	}}
	svc := NewFeedService(follows, failingPostRepo(t))

	posts, err := svc.GetFeed(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestFeedService_FollowLookupFailure(t *testing.T) {
	follows := &followRepoStub{followedIDsFn: func(context.Context, uuid.UUID) ([]uuid.UUID, error) {
		return nil, errors.New("connection reset")
	}}
	svc := NewFeedService(follows, failingPostRepo(t))

	_, err := svc.GetFeed(context.Background(), uuid.New())
	assertCode(t, err, models.CodeStorageFailure)
}

func TestFeedService_GetFeed(t *testing.T) {
	db := testkit.NewDB(t)
	svc := NewFeedService(repository.NewFollowRepository(db), repository.NewPostRepository(db))
	ctx := context.Background()

	viewer := testkit.CreateUser(t, db, "viewer")
	bob := testkit.CreateUser(t, db, "bob")
	carol := testkit.CreateUser(t, db, "carol")
	stranger := testkit.CreateUser(t, db, "stranger")

	testkit.Follow(t, db, viewer.ID, bob.ID)
	testkit.Follow(t, db, viewer.ID, carol.ID)
	testkit.Follow(t, db, viewer.ID, carol.ID)
	testkit.Follow(t, db, bob.ID, viewer.ID)

	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	b1 := testkit.CreatePost(t, db, bob.ID, "bob 1", "x", base)
	c1 := testkit.CreatePost(t, db, carol.ID, "carol 1", "x", base.Add(time.Hour))
	b2 := testkit.CreatePost(t, db, bob.ID, "bob 2", "x", base.Add(2*time.Hour))
	testkit.CreatePost(t, db, stranger.ID, "stranger", "x", base.Add(3*time.Hour))
	testkit.CreatePost(t, db, viewer.ID, "own", "x", base.Add(4*time.Hour))

	posts, err := svc.GetFeed(ctx, viewer.ID)
	require.NoError(t, err)

	ids := make([]uuid.UUID, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
		assert.False(t, p.IsVisitorOwner)
	}
	assert.Equal(t, []uuid.UUID{b2.ID, c1.ID, b1.ID}, ids, "duplicate follow edges must not duplicate posts")

	posts, err = svc.GetFeed(ctx, stranger.ID)
	require.NoError(t, err)
	assert.Empty(t, posts)
}
