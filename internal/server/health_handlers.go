package server

import (
	"context"
	"time"

	"vibefeed/internal/database"
	"vibefeed/internal/middleware"
	"vibefeed/internal/models"

	"github.com/gofiber/fiber/v2"
)

// HealthResponse is the payload of GET /api/health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime"`
}

// HealthCheck handles GET /api/health
// @Summary Service health
// @Tags health
// @Produce json
// @Success 200 {object} models.Envelope{data=HealthResponse}
// @Router /health [get]
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	return models.RespondWithData(c, fiber.StatusOK, HealthResponse{
		Status:    "OK",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(s.startedAt).Seconds(),
	})
}

// LivenessCheck handles GET /api/health/live. It answers as long as the
// process can serve requests.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "up", "time": time.Now().UTC()})
}

const (
	checkHealthy   = "healthy"
	checkUnhealthy = "unhealthy"
	checkDisabled  = "disabled"
)

// ReadinessResponse is the payload of GET /api/health/ready.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Time   time.Time         `json:"time"`
}

// ReadinessCheck handles GET /api/health/ready. The database must answer;
// Redis is optional but reported unhealthy when configured and down. The
// media entry names the active backend.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	res := ReadinessResponse{
		Status: checkHealthy,
		Checks: map[string]string{
			"database": probe(database.Ping(ctx, s.db)),
			"redis":    checkDisabled,
			"media":    s.store.Backend(),
		},
		Time: time.Now().UTC(),
	}
	if s.redis != nil {
		res.Checks["redis"] = probe(s.redis.Ping(ctx).Err())
	}

	for _, name := range []string{"database", "redis"} {
		if res.Checks[name] == checkUnhealthy {
			res.Status = checkUnhealthy
			middleware.Logger.WarnContext(ctx, "readiness check failed", "dependency", name)
		}
	}
	if res.Status != checkHealthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(res)
	}
	return c.JSON(res)
}

func probe(err error) string {
	if err != nil {
		return checkUnhealthy
	}
	return checkHealthy
}
