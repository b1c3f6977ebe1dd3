package server

import (
	"vibefeed/internal/models"

	"github.com/gofiber/fiber/v2"
)

// AvatarResponse is returned after an avatar upload.
type AvatarResponse struct {
	AvatarURL string       `json:"avatarUrl"`
	User      *models.User `json:"user"`
}

// GetMyProfile handles GET /api/users/me
// @Summary Current user
// @Tags users
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.Envelope{data=models.User}
// @Failure 401 {object} models.Envelope
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	user, err := s.userService.GetUserByID(c.UserContext(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, user)
}

// GetUserProfile handles GET /api/users/:id
// @Summary User by id
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.Envelope{data=models.User}
// @Failure 404 {object} models.Envelope
// @Router /users/{id} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.GetUserByID(c.UserContext(), id)
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, user)
}

// GetUserByUsername handles GET /api/users/username/:username
func (s *Server) GetUserByUsername(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, user)
}

// UpdateUser handles PUT /api/users/:id
// @Summary Update own profile
// @Tags users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body models.UserPatch true "Fields to change"
// @Success 200 {object} models.Envelope{data=models.User}
// @Failure 400 {object} models.Envelope
// @Failure 403 {object} models.Envelope
// @Router /users/{id} [put]
func (s *Server) UpdateUser(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var patch models.UserPatch
	if err := c.BodyParser(&patch); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), userID, targetID, patch)
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, user)
}

// UploadAvatar handles POST /api/users/:id/avatar (multipart field "avatar")
// @Summary Upload own avatar
// @Tags users
// @Security BearerAuth
// @Accept mpfd
// @Produce json
// @Param id path int true "User ID"
// @Param avatar formData file true "jpeg, png, gif or webp image up to 5MB"
// @Success 200 {object} models.Envelope{data=AvatarResponse}
// @Failure 400 {object} models.Envelope
// @Failure 403 {object} models.Envelope
// @Router /users/{id}/avatar [post]
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	// Ownership first so a stranger's upload is never read
	if userID != targetID {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Can only update own avatar"))
	}

	file, ok, err := readFormFile(c, "avatar")
	if err != nil {
		return respondServiceError(c, err)
	}
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("No file uploaded"))
	}

	user, err := s.userService.UploadAvatar(c.UserContext(), userID, targetID, file)
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, AvatarResponse{AvatarURL: user.Avatar, User: user})
}

// GetSavedPosts handles GET /api/users/me/saved
// @Summary Bookmarked posts of the current user
// @Tags users
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (default 10, max 100)"
// @Success 200 {object} models.Envelope{data=[]models.Post}
// @Router /users/me/saved [get]
func (s *Server) GetSavedPosts(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	posts, page, err := s.postService.ListSaved(c.UserContext(), userID, parsePage(c, 10))
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithPage(c, posts, page)
}
