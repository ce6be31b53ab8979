// Package service holds the post and feed operations route handlers call.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"blogsphere/internal/identifier"
	"blogsphere/internal/models"
	"blogsphere/internal/observability"
	"blogsphere/internal/repository"
	"blogsphere/internal/sanitize"
)

// Validation messages returned when a post field is empty after cleaning.
const (
	MsgTitleRequired = "You must provide a title"
	MsgBodyRequired  = "You must provide post content"
)

type PostService struct {
	posts repository.PostRepository
	now   func() time.Time
}

// CreatePostInput carries a new post. AuthorID always comes from the
// session, never from the request body.
type CreatePostInput struct {
	AuthorID uuid.UUID
	Title    string
	Body     string
}

type UpdatePostInput struct {
	PostID string
	UserID uuid.UUID
	Title  string
	Body   string
}

func NewPostService(posts repository.PostRepository) *PostService {
	return &PostService{
		posts: posts,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// cleanText trims, strips all markup and trims again so markup-only input
// ends up empty.
func cleanText(s string) string {
	return strings.TrimSpace(sanitize.Strict(strings.TrimSpace(s)))
}

// cleanPost returns the cleaned title and body, or a validation error
// listing every empty field.
func cleanPost(title, body string) (string, string, error) {
	title, body = cleanText(title), cleanText(body)

	var msgs []string
	if title == "" {
		msgs = append(msgs, MsgTitleRequired)
	}
	if body == "" {
		msgs = append(msgs, MsgBodyRequired)
	}
	if len(msgs) > 0 {
		return "", "", models.NewValidationError(msgs...)
	}
	return title, body, nil
}

// storageError passes AppErrors through and wraps anything else as a
// storage failure after logging the cause.
func storageError(ctx context.Context, op string, err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	observability.Logger.ErrorContext(ctx, "post storage operation failed",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
	return models.NewStorageFailure(err)
}

// finish records the outcome of op on the span and the operation counter.
func finish(span *observability.Span, op string, err error) {
	outcome := ""
	if err != nil {
		span.SetError(err)
		outcome = "error"
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			outcome = appErr.Code
		}
	}
	observability.RecordPostOperation(op, outcome)
	span.End()
}

// Create validates and stores a new post, returning its id.
func (s *PostService) Create(ctx context.Context, in CreatePostInput) (id uuid.UUID, err error) {
	span, ctx := observability.StartSpan(ctx, "PostService.Create",
		attribute.String("author_id", in.AuthorID.String()))
	defer func() { finish(span, "create", err) }()

	title, body, err := cleanPost(in.Title, in.Body)
	if err != nil {
		return uuid.Nil, err
	}

	post := &models.Post{
		Title:     title,
		Body:      body,
		AuthorID:  in.AuthorID,
		CreatedAt: s.now(),
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return uuid.Nil, storageError(ctx, "create", err)
	}
	return post.ID, nil
}

// Update rewrites title and body of a post the acting user owns. Nothing
// else about the post changes.
func (s *PostService) Update(ctx context.Context, in UpdatePostInput) (err error) {
	span, ctx := observability.StartSpan(ctx, "PostService.Update",
		attribute.String("post_id", in.PostID),
		attribute.String("user_id", in.UserID.String()))
	defer func() { finish(span, "update", err) }()

	post, err := s.findSingle(ctx, in.PostID, in.UserID)
	if err != nil {
		return err
	}
	if !post.IsVisitorOwner {
		return models.NewUnauthorizedError("You do not have permission to perform that action.")
	}

	title, body, err := cleanPost(in.Title, in.Body)
	if err != nil {
		return err
	}

	ok, err := s.posts.UpdateOwned(ctx, post.ID, in.UserID, title, body)
	if err != nil {
		return storageError(ctx, "update", err)
	}
	if !ok {
		// Deleted or reassigned since the ownership check.
		return models.NewUnauthorizedError("You do not have permission to perform that action.")
	}
	return nil
}

// Delete removes a post the acting user owns.
func (s *PostService) Delete(ctx context.Context, postID string, userID uuid.UUID) (err error) {
	span, ctx := observability.StartSpan(ctx, "PostService.Delete",
		attribute.String("post_id", postID),
		attribute.String("user_id", userID.String()))
	defer func() { finish(span, "delete", err) }()

	post, err := s.findSingle(ctx, postID, userID)
	if err != nil {
		return err
	}
	if !post.IsVisitorOwner {
		return models.NewUnauthorizedError("You do not have permission to perform that action.")
	}

	ok, err := s.posts.DeleteOwned(ctx, post.ID, userID)
	if err != nil {
		return storageError(ctx, "delete", err)
	}
	if !ok {
		return models.NewUnauthorizedError("You do not have permission to perform that action.")
	}
	return nil
}

// FindSingleByID returns the post with id as seen by viewer. Malformed ids
// are rejected before storage is queried.
func (s *PostService) FindSingleByID(ctx context.Context, id string, viewer uuid.UUID) (post *models.ViewPost, err error) {
	span, ctx := observability.StartSpan(ctx, "PostService.FindSingleByID",
		attribute.String("post_id", id))
	defer func() { finish(span, "find_single", err) }()

	return s.findSingle(ctx, id, viewer)
}

func (s *PostService) findSingle(ctx context.Context, id string, viewer uuid.UUID) (*models.ViewPost, error) {
	postID, err := identifier.Parse(id)
	if err != nil {
		return nil, err
	}

	posts, err := s.posts.Aggregate(ctx, repository.Pipeline{
		repository.Match(repository.FieldID, postID),
	}, viewer)
	if err != nil {
		return nil, storageError(ctx, "find_single", err)
	}
	if len(posts) == 0 {
		return nil, models.NewNotFoundError("Post", id)
	}
	return &posts[0], nil
}

// FindByAuthorID lists an author's posts, newest first.
func (s *PostService) FindByAuthorID(ctx context.Context, authorID uuid.UUID) (posts []models.ViewPost, err error) {
	span, ctx := observability.StartSpan(ctx, "PostService.FindByAuthorID",
		attribute.String("author_id", authorID.String()))
	defer func() { finish(span, "find_by_author", err) }()

	posts, err = s.posts.Aggregate(ctx, repository.Pipeline{
		repository.Match(repository.FieldAuthor, authorID),
		repository.Sort(repository.FieldCreatedDate, true),
	}, uuid.Nil)
	if err != nil {
		return nil, storageError(ctx, "find_by_author", err)
	}
	return posts, nil
}

// Search runs a full-text search ordered by relevance. term must be a
// string; a blank term matches nothing.
func (s *PostService) Search(ctx context.Context, term any) (posts []models.ViewPost, err error) {
	span, ctx := observability.StartSpan(ctx, "PostService.Search")
	defer func() { finish(span, "search", err) }()

	q, ok := term.(string)
	if !ok {
		return nil, models.NewInvalidInputError("Search term must be a string")
	}
	if strings.TrimSpace(q) == "" {
		return []models.ViewPost{}, nil
	}

	posts, err = s.posts.Aggregate(ctx, repository.Pipeline{
		repository.TextSearch(q),
	}, uuid.Nil, repository.SortByTextScore(q))
	if err != nil {
		return nil, storageError(ctx, "search", err)
	}
	return posts, nil
}

// CountPostsByAuthor returns how many posts authorID has written.
func (s *PostService) CountPostsByAuthor(ctx context.Context, authorID uuid.UUID) (int64, error) {
	n, err := s.posts.CountByAuthor(ctx, authorID)
	if err != nil {
		err = storageError(ctx, "count", err)
		observability.RecordPostOperation("count", models.CodeStorageFailure)
		return 0, err
	}
	observability.RecordPostOperation("count", "")
	return n, nil
}
