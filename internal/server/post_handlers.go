package server

import (
	"context"

	"vibefeed/internal/feed"
	"vibefeed/internal/models"
	"vibefeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// createPostRequest is the JSON form of a post without media.
type createPostRequest struct {
	Type     string   `json:"type"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags"`
	Category string   `json:"category"`
}

// GetPosts handles GET /api/posts
// @Summary List posts
// @Description Newest first, filtered by exact match on userId, category and type
// @Tags posts
// @Produce json
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (default 10, max 100)"
// @Param userId query int false "Author"
// @Param category query string false "Category"
// @Param type query string false "text, image or video"
// @Success 200 {object} models.Envelope{data=[]models.Post,pagination=models.Pagination}
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	posts, page, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		Filter: feed.Filter{
			UserID:   queryUint(c, "userId"),
			Category: c.Query("category"),
			Type:     models.PostType(c.Query("type")),
		},
		Page:     parsePage(c, feed.DefaultLimit),
		ViewerID: s.optionalUserID(c),
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithPage(c, posts, page)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.GetPost(c.UserContext(), id, s.optionalUserID(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, post)
}

// CreatePost handles POST /api/users/:id/posts. The body is either JSON or
// multipart with the fields type, content, tags and category plus an
// optional "media" file.
// @Summary Create a post as yourself
// @Tags posts
// @Security BearerAuth
// @Accept json,mpfd
// @Produce json
// @Param id path int true "User ID"
// @Param content formData string false "Text content"
// @Param tags formData string false "JSON array or comma separated list"
// @Param category formData string false "Category"
// @Param media formData file false "Image or video"
// @Success 201 {object} models.Envelope{data=models.Post}
// @Failure 400 {object} models.Envelope
// @Failure 403 {object} models.Envelope
// @Router /users/{id}/posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	in := service.CreatePostInput{ActorID: userID, UserID: targetID}

	if isMultipart(c) {
		// Ownership first so a stranger's upload is never read
		if userID != targetID {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Can only create posts as yourself"))
		}
		in.Type = c.FormValue("type")
		in.Content = c.FormValue("content")
		in.Category = c.FormValue("category")
		if in.Tags, err = service.ParseTags(c.FormValue("tags")); err != nil {
			return respondServiceError(c, err)
		}
		media, ok, err := readFormFile(c, "media")
		if err != nil {
			return respondServiceError(c, err)
		}
		if ok {
			in.Media = &media
		}
	} else {
		var req createPostRequest
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
		in.Type, in.Content, in.Tags, in.Category = req.Type, req.Content, req.Tags, req.Category
	}

	post, err := s.postService.CreatePost(c.UserContext(), in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusCreated, post)
}

type postAction func(ctx context.Context, userID, postID uint) (*models.Post, error)

// togglePost runs a like or bookmark action and answers with the updated post.
func (s *Server) togglePost(c *fiber.Ctx, action postAction) error {
	userID := c.Locals("userID").(uint)
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := action(c.UserContext(), userID, postID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, post)
}

// LikePost handles POST /api/posts/:id/like
// @Summary Like a post
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.Envelope{data=models.Post}
// @Failure 404 {object} models.Envelope
// @Router /posts/{id}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	return s.togglePost(c, s.postService.LikePost)
}

// UnlikePost handles DELETE /api/posts/:id/like
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	return s.togglePost(c, s.postService.UnlikePost)
}

// SavePost handles POST /api/posts/:id/save
func (s *Server) SavePost(c *fiber.Ctx) error {
	return s.togglePost(c, s.postService.SavePost)
}

// UnsavePost handles DELETE /api/posts/:id/save
func (s *Server) UnsavePost(c *fiber.Ctx) error {
	return s.togglePost(c, s.postService.UnsavePost)
}
