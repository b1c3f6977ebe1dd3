package server

import (
	"vibefeed/internal/models"
	"vibefeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

const defaultMessageLimit = 50

// GetConversations handles GET /api/conversations
// @Summary Conversations of the current user, most recent activity first
// @Tags chat
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.Envelope{data=[]models.Conversation}
// @Router /conversations [get]
func (s *Server) GetConversations(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	convs, err := s.chatService.GetConversations(c.UserContext(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, convs)
}

// CreateConversation handles POST /api/conversations. An existing direct
// conversation with the same participant is returned with 200 instead of
// creating a duplicate.
// @Summary Start a conversation
// @Tags chat
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{participantIds=[]int} true "Other participants"
// @Success 201 {object} models.Envelope{data=models.Conversation}
// @Success 200 {object} models.Envelope{data=models.Conversation}
// @Failure 400 {object} models.Envelope
// @Failure 404 {object} models.Envelope
// @Router /conversations [post]
func (s *Server) CreateConversation(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req struct {
		ParticipantIDs []uint `json:"participantIds"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	conv, created, err := s.chatService.CreateConversation(c.UserContext(), service.CreateConversationInput{
		UserID:         userID,
		ParticipantIDs: req.ParticipantIDs,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return models.RespondWithData(c, status, conv)
}

// GetConversation handles GET /api/conversations/:id
func (s *Server) GetConversation(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	convID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	conv, err := s.chatService.GetConversationForUser(c.UserContext(), convID, userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, conv)
}

// GetMessages handles GET /api/conversations/:id/messages
// @Summary Message history, oldest first within the page
// @Tags chat
// @Security BearerAuth
// @Produce json
// @Param id path int true "Conversation ID"
// @Param page query int false "Page, counted from the newest messages (default 1)"
// @Param limit query int false "Page size (default 50, max 100)"
// @Success 200 {object} models.Envelope{data=[]models.Message,pagination=models.Pagination}
// @Failure 403 {object} models.Envelope
// @Failure 404 {object} models.Envelope
// @Router /conversations/{id}/messages [get]
func (s *Server) GetMessages(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	convID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	msgs, page, err := s.chatService.GetMessages(c.UserContext(), convID, userID, parsePage(c, defaultMessageLimit))
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithPage(c, msgs, page)
}

// SendMessage handles POST /api/conversations/:id/messages
// @Summary Send a message
// @Tags chat
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Conversation ID"
// @Param request body object{text=string} true "Message"
// @Success 201 {object} models.Envelope{data=models.Message}
// @Failure 400 {object} models.Envelope
// @Failure 403 {object} models.Envelope
// @Router /conversations/{id}/messages [post]
func (s *Server) SendMessage(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	convID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	msg, err := s.chatService.SendMessage(c.UserContext(), service.SendMessageInput{
		UserID:         userID,
		ConversationID: convID,
		Text:           req.Text,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusCreated, msg)
}
