package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Pinger is any dependency that can report its reachability.
// *sql.DB and storage.Storage both satisfy it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthCheck pings every dependency and reports 503 if any of them fails.
//
//	@Summary	Dependency health
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	map[string]string
//	@Failure	503	{object}	errorPayload
//	@Router		/health [get]
func HealthCheck(deps ...Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		for _, d := range deps {
			if d == nil {
				continue
			}
			if err := d.PingContext(ctx); err != nil {
				return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
			}
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is the dependency-free liveness check.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}
