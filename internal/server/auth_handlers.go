package server

import (
	"vibefeed/internal/models"
	"vibefeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Signup handles POST /api/auth/signup
// @Summary User signup
// @Description Register a new user account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.SignupInput true "Signup request"
// @Success 201 {object} models.Envelope{data=service.AuthResult}
// @Failure 400 {object} models.Envelope
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req service.SignupInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	res, err := s.authService.Signup(c.UserContext(), req)
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusCreated, res)
}

// Login handles POST /api/auth/login
// @Summary User login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "Login request"
// @Success 200 {object} models.Envelope{data=service.AuthResult}
// @Failure 401 {object} models.Envelope
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req service.LoginInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	res, err := s.authService.Login(c.UserContext(), req)
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, res)
}

// Logout handles POST /api/auth/logout. Tokens are stateless and stay valid
// until they expire; the client drops its copy.
// @Summary User logout
// @Tags auth
// @Security BearerAuth
// @Success 200 {object} models.Envelope
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	return models.RespondWithMessage(c, fiber.StatusOK, "Logged out successfully")
}
