package server

import (
	"vibefeed/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Search handles GET /api/search?q=...&type=all|users|posts
// @Summary Search users and posts
// @Description Case-insensitive substring match. Results keep collection order.
// @Tags search
// @Produce json
// @Param q query string true "Query"
// @Param type query string false "all (default), users or posts"
// @Success 200 {object} models.Envelope{data=search.Result}
// @Failure 400 {object} models.Envelope
// @Router /search [get]
func (s *Server) Search(c *fiber.Ctx) error {
	res, err := s.searchService.Search(c.UserContext(), c.Query("q"), c.Query("type"))
	if err != nil {
		return respondServiceError(c, err)
	}
	return models.RespondWithData(c, fiber.StatusOK, res)
}
