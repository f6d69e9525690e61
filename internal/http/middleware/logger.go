package middleware

import (
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/trace"

	"assetapi/internal/logger"
)

// Logger is a middleware that logs each HTTP request as one structured line.
// Fields: request_id (from RequestID), method, path, status, latency (ms, float).
// It also stores a request-scoped logger carrying request_id in the user context,
// plus trace_id when an upstream middleware has started a span.
func Logger(l *slog.Logger) fiber.Handler {
	if l == nil {
		l = logger.L
	}
	return func(c *fiber.Ctx) error {
		start := time.Now()

		reqLog := l.With(slog.String("request_id", RequestIDFrom(c)))
		if sc := trace.SpanContextFromContext(c.UserContext()); sc.HasTraceID() {
			reqLog = reqLog.With(slog.String("trace_id", sc.TraceID().String()))
		}
		c.SetUserContext(logger.WithContext(c.UserContext(), reqLog))

		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		level := slog.LevelInfo
		switch {
		case status >= fiber.StatusInternalServerError:
			level = slog.LevelError
		case status >= fiber.StatusBadRequest:
			level = slog.LevelWarn
		}

		reqLog.LogAttrs(c.UserContext(), level, "http_request",
			slog.String("method", c.Method()),
			// path only, no query string
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Float64("latency", float64(time.Since(start).Microseconds())/1000),
		)
		return err
	}
}

// LoggerWithWriter logs JSON lines to w with the timestamp under "ts" rendered in loc.
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	if loc == nil {
		loc = time.Local
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.String("ts", a.Value.Time().In(loc).Format(time.RFC3339Nano))
			}
			return a
		},
	})
	return Logger(slog.New(h))
}
