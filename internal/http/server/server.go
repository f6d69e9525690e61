// Package server assembles the fiber application: middleware chain, metrics,
// API docs and routes.
package server

import (
	"log/slog"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"assetapi/docs"
	"assetapi/internal/config"
	handlers "assetapi/internal/http/handler"
	"assetapi/internal/http/middleware"
	"assetapi/internal/service"
)

// BodyLimit is the transport cap on a request body. It sits well above the
// per-file ceiling so oversized images still reach the upload handler and get a
// JSON 413; bodies past it are cut off by fasthttp before fiber runs.
const BodyLimit = 4 * int(config.MaxUploadBytes)

// Options configure New.
type Options struct {
	Service service.AssetService
	// Deps are pinged by /health.
	Deps []handlers.Pinger
	// Registry receives the HTTP metrics and backs /metrics. A fresh one is used when nil.
	Registry     *prometheus.Registry
	Logger       *slog.Logger
	AllowOrigins string
	// Tracing enables the otelfiber middleware.
	Tracing bool
	// DocsHost is the host advertised by /swagger/doc.json. Empty leaves it
	// out so Swagger UI calls the origin it was loaded from.
	DocsHost string
}

// New builds the application.
func New(opt Options) (*fiber.App, error) {
	reg := opt.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	prom, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return nil, err
	}
	origins := opt.AllowOrigins
	if origins == "" {
		origins = "*"
	}

	app := fiber.New(fiber.Config{
		AppName:               "assetapi",
		BodyLimit:             BodyLimit,
		ErrorHandler:          handlers.ErrorHandler(),
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  "GET,HEAD,POST,DELETE,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Accept, X-Request-ID",
		ExposeHeaders: "X-Request-ID",
	}))
	if opt.Tracing {
		app.Use(otelfiber.Middleware())
	}
	// RequestID adds/propagates X-Request-ID and stores it in locals
	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(opt.Logger))
	app.Use(prom.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// set before serving; handlers only read SwaggerInfo
	docs.SwaggerInfo.Host = opt.DocsHost
	docs.SwaggerInfo.Schemes = []string{}
	app.Get("/swagger/*", swagger.HandlerDefault)

	handlers.RegisterRoutes(app, opt.Service, opt.Deps...)
	return app, nil
}
