// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"blogsphere/internal/models"
	"blogsphere/internal/observability"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	// Aggregate runs stages, joins each post to its author and shapes the
	// rows into view posts for viewer. final stages run after the join.
	Aggregate(ctx context.Context, stages Pipeline, viewer uuid.UUID, final ...Stage) ([]models.ViewPost, error)
	Create(ctx context.Context, post *models.Post) error
	// UpdateOwned rewrites title and body of the post only if authorID owns
	// it. It reports whether a row matched.
	UpdateOwned(ctx context.Context, id, authorID uuid.UUID, title, body string) (bool, error)
	// DeleteOwned removes the post only if authorID owns it.
	DeleteOwned(ctx context.Context, id, authorID uuid.UUID) (bool, error)
	CountByAuthor(ctx context.Context, authorID uuid.UUID) (int64, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

// postRow is the projection produced by the author join.
type postRow struct {
	ID             uuid.UUID
	Title          string
	Body           string
	CreatedAt      time.Time
	AuthorID       uuid.UUID
	AuthorUsername sql.NullString
	AuthorEmail    sql.NullString
}

const postProjection = "posts.id, posts.title, posts.body, posts.created_at, posts.author_id, " +
	"users.username AS author_username, users.email AS author_email"

func (r *postRepository) Aggregate(ctx context.Context, stages Pipeline, viewer uuid.UUID, final ...Stage) ([]models.ViewPost, error) {
	if err := stages.Validate(); err != nil {
		return nil, err
	}
	if err := Pipeline(final).Validate(); err != nil {
		return nil, err
	}
	defer observability.TrackQuery("aggregate", "posts")()

	q := r.db.WithContext(ctx).Table("posts")
	q = stages.apply(q)
	q = q.Select(postProjection).
		Joins("LEFT JOIN users ON users.id = posts.author_id AND users.deleted_at IS NULL")
	q = Pipeline(final).apply(q)

	var rows []postRow
	if err := q.Scan(&rows).Error; err != nil {
		r.log.LogError(ctx, err, "aggregate")
		return nil, err
	}

	posts := make([]models.ViewPost, 0, len(rows))
	for _, row := range rows {
		posts = append(posts, shapePost(row, viewer))
	}
	return posts, nil
}

// shapePost swaps the raw author id for the author's public projection and
// computes the ownership flag. An anonymous viewer never owns a post.
func shapePost(row postRow, viewer uuid.UUID) models.ViewPost {
	author := models.DeletedAuthor()
	if row.AuthorUsername.Valid {
		u := models.User{Username: row.AuthorUsername.String, Email: row.AuthorEmail.String}
		author = u.Author()
	}
	return models.ViewPost{
		ID:             row.ID,
		Title:          row.Title,
		Body:           row.Body,
		CreatedDate:    row.CreatedAt,
		Author:         author,
		IsVisitorOwner: viewer != uuid.Nil && row.AuthorID == viewer,
	}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("insert", "posts")()
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		r.log.LogError(ctx, err, "insert")
		return err
	}
	r.log.LogCreate(ctx, map[string]any{"post_id": post.ID.String(), "author_id": post.AuthorID.String()})
	return nil
}

func (r *postRepository) UpdateOwned(ctx context.Context, id, authorID uuid.UUID, title, body string) (bool, error) {
	defer observability.TrackQuery("update", "posts")()
	res := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ? AND author_id = ?", id, authorID).
		Updates(map[string]any{"title": title, "body": body})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "update")
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		r.log.LogUpdate(ctx, map[string]any{"post_id": id.String()})
	}
	return res.RowsAffected > 0, nil
}

func (r *postRepository) DeleteOwned(ctx context.Context, id, authorID uuid.UUID) (bool, error) {
	defer observability.TrackQuery("delete", "posts")()
	res := r.db.WithContext(ctx).
		Where("id = ? AND author_id = ?", id, authorID).
		Delete(&models.Post{})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "delete")
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		r.log.LogDelete(ctx, map[string]any{"post_id": id.String()})
	}
	return res.RowsAffected > 0, nil
}

func (r *postRepository) CountByAuthor(ctx context.Context, authorID uuid.UUID) (int64, error) {
	defer observability.TrackQuery("count", "posts")()
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("author_id = ?", authorID).
		Count(&count).Error
	if err != nil {
		r.log.LogError(ctx, err, "count")
	}
	return count, err
}
