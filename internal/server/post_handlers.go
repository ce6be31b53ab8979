package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"blogsphere/internal/identifier"
	"blogsphere/internal/middleware"
	"blogsphere/internal/models"
	"blogsphere/internal/sanitize"
	"blogsphere/internal/service"
)

// postRequest is the body of create and update calls. Fields are decoded
// loosely so a non-string title or body fails validation instead of parsing.
// Any author field the client sends is ignored.
type postRequest struct {
	Title any `json:"title"`
	Body  any `json:"body"`
}

// postResponse is a single post with its body rendered for display.
type postResponse struct {
	models.ViewPost
	BodyHTML string `json:"body_html"`
}

// profileResponse is the author page: the author, their posts and a count.
type profileResponse struct {
	Author    models.Author     `json:"author"`
	Posts     []models.ViewPost `json:"posts"`
	PostCount int64             `json:"post_count"`
}

func textField(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func parsePostRequest(c *fiber.Ctx) (postRequest, error) {
	var req postRequest
	if err := c.BodyParser(&req); err != nil {
		return req, models.NewInvalidInputError("Invalid request body")
	}
	return req, nil
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	req, err := parsePostRequest(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	id, err := s.postService.Create(c.UserContext(), service.CreatePostInput{
		AuthorID: middleware.UserID(c),
		Title:    textField(req.Title),
		Body:     textField(req.Body),
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.postService.FindSingleByID(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}

	return c.JSON(postResponse{ViewPost: *post, BodyHTML: sanitize.Markdown(post.Body)})
}

// UpdatePost handles PUT /api/posts/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	req, err := parsePostRequest(c)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	userID := middleware.UserID(c)
	err = s.postService.Update(ctx, service.UpdatePostInput{
		PostID: c.Params("id"),
		UserID: userID,
		Title:  textField(req.Title),
		Body:   textField(req.Body),
	})
	if err != nil {
		return models.RespondWithError(c, err)
	}

	post, err := s.postService.FindSingleByID(ctx, c.Params("id"), userID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(postResponse{ViewPost: *post, BodyHTML: sanitize.Markdown(post.Body)})
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	if err := s.postService.Delete(c.UserContext(), c.Params("id"), middleware.UserID(c)); err != nil {
		return models.RespondWithError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetUserPosts handles GET /api/users/:id/posts
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	ctx := c.UserContext()
	authorID, err := identifier.Parse(c.Params("id"))
	if err != nil {
		return models.RespondWithError(c, err)
	}

	user, err := s.userRepo.GetByID(ctx, authorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RespondWithError(c, models.NewNotFoundError("User", authorID))
		}
		return models.RespondWithError(c, models.NewStorageFailure(err))
	}

	posts, err := s.postService.FindByAuthorID(ctx, authorID)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	count, err := s.postService.CountPostsByAuthor(ctx, authorID)
	if err != nil {
		return models.RespondWithError(c, err)
	}

	return c.JSON(profileResponse{Author: user.Author(), Posts: posts, PostCount: count})
}

// SearchPosts handles POST /api/search with body {"searchTerm": "..."}
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	var req struct {
		SearchTerm any `json:"searchTerm"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, models.NewInvalidInputError("Invalid request body"))
	}

	posts, err := s.postService.Search(c.UserContext(), req.SearchTerm)
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(posts)
}

// GetFeed handles GET /api/feed
func (s *Server) GetFeed(c *fiber.Ctx) error {
	posts, err := s.feedService.GetFeed(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return models.RespondWithError(c, err)
	}
	return c.JSON(posts)
}
