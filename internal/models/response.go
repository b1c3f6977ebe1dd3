package models

import (
	"github.com/gofiber/fiber/v2"
)

// Pagination describes one page of a paginated collection.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// Envelope is the body shape of every API response.
type Envelope struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Message    string      `json:"message,omitempty"`
	Code       string      `json:"code,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// RespondWithData writes a success envelope carrying data.
func RespondWithData(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(Envelope{Success: true, Data: data})
}

// RespondWithMessage writes a success envelope carrying only a message.
func RespondWithMessage(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(Envelope{Success: true, Message: message})
}

// RespondWithPage writes a success envelope for a paginated collection.
func RespondWithPage(c *fiber.Ctx, data any, page Pagination) error {
	return c.Status(fiber.StatusOK).JSON(Envelope{Success: true, Data: data, Pagination: &page})
}
