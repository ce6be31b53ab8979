package seed

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"blogsphere/internal/models"
	"blogsphere/internal/repository"
	"blogsphere/internal/service"
	"blogsphere/internal/testkit"
)

func testOptions() Options {
	return Options{
		NumUsers:       6,
		NumPosts:       20,
		FollowsPerUser: 2,
		MaxDays:        10,
		RandSeed:       42,
		PasswordCost:   bcrypt.MinCost,
	}
}

func TestSeeder_Run(t *testing.T) {
	db := testkit.NewDB(t)
	ctx := context.Background()

	res, err := NewSeeder(db, testOptions()).Run(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Users, 6)
	assert.Equal(t, 20, res.Posts)
	assert.Equal(t, 12, res.Follows)

	var posts []models.Post
	require.NoError(t, db.Find(&posts).Error)
	require.Len(t, posts, 20)

	ids := make(map[uuid.UUID]bool, len(res.Users))
	for _, u := range res.Users {
		ids[u.ID] = true
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(DefaultPassword)))
	}
	oldest := time.Now().Add(-11 * 24 * time.Hour)
	for _, p := range posts {
		assert.True(t, ids[p.AuthorID], "post author must be a seeded user")
		assert.NotEmpty(t, p.Title)
		assert.NotEmpty(t, p.Body)
		assert.True(t, p.CreatedAt.After(oldest))
	}

	var follows []models.Follow
	require.NoError(t, db.Find(&follows).Error)
	seen := make(map[[2]uuid.UUID]bool)
	for _, f := range follows {
		assert.NotEqual(t, f.AuthorID, f.FollowedID, "users never follow themselves")
		edge := [2]uuid.UUID{f.AuthorID, f.FollowedID}
		assert.False(t, seen[edge], "no duplicate edges")
		seen[edge] = true
	}
}

func TestSeeder_FeedIsPopulated(t *testing.T) {
	db := testkit.NewDB(t)
	ctx := context.Background()

	opts := testOptions()
	opts.NumUsers = 2
	opts.FollowsPerUser = 5
	res, err := NewSeeder(db, opts).Run(ctx)
	require.NoError(t, err)
	// Capped at every other user.
	assert.Equal(t, 2, res.Follows)

	postRepo := repository.NewPostRepository(db)
	feed := service.NewFeedService(repository.NewFollowRepository(db), postRepo)
	posts := service.NewPostService(postRepo)

	viewer := res.Users[0].ID
	other := res.Users[1].ID
	want, err := posts.CountPostsByAuthor(ctx, other)
	require.NoError(t, err)

	got, err := feed.GetFeed(ctx, viewer)
	require.NoError(t, err)
	assert.Len(t, got, int(want))
}

func TestSeeder_Clean(t *testing.T) {
	db := testkit.NewDB(t)
	ctx := context.Background()

	_, err := NewSeeder(db, testOptions()).Run(ctx)
	require.NoError(t, err)

	opts := testOptions()
	opts.ShouldClean = true
	opts.NumUsers = 3
	opts.NumPosts = 4
	_, err = NewSeeder(db, opts).Run(ctx)
	require.NoError(t, err)

	var users, posts int64
	require.NoError(t, db.Unscoped().Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.Post{}).Count(&posts).Error)
	assert.EqualValues(t, 3, users)
	assert.EqualValues(t, 4, posts)
}

func TestSeeder_Empty(t *testing.T) {
	db := testkit.NewDB(t)
	res, err := NewSeeder(db, Options{PasswordCost: bcrypt.MinCost}).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Users)
	assert.Zero(t, res.Posts)
	assert.Zero(t, res.Follows)
}
