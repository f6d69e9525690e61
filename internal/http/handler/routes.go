package handler

import (
	"github.com/gofiber/fiber/v2"

	"assetapi/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// deps are pinged by /health; nil entries are skipped.
func RegisterRoutes(app *fiber.App, svc service.AssetService, deps ...Pinger) {
	app.Get("/health", HealthCheck(deps...))
	app.Get("/healthz", LivenessProbe())

	api := app.Group("/api")
	api.Post("/upload-image", UploadImage(svc))
	api.Delete("/delete-image/:filename", DeleteImage(svc))
	api.Get("/check-image/:filename", CheckImage(svc))
	api.Get("/images", ListImages(svc))
	api.Get("/image-events", ListImageEvents(svc))

	// fiber registers HEAD alongside GET
	app.Get("/uploads/:filename", ServeImage(svc))
}
