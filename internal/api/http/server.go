package httpapi

import (
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Franciscooxz/Neo-Tracker/internal/neo"
	"github.com/Franciscooxz/Neo-Tracker/internal/store"
	"github.com/Franciscooxz/Neo-Tracker/pkg/logger"
	"github.com/Franciscooxz/Neo-Tracker/pkg/metrics"
)

const serviceName = "neo-tracker"

// CacheInspector exposes cache metadata for the health endpoint.
type CacheInspector interface {
	Entries() []store.EntryInfo
}

// Pinger is a downstream dependency reported by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures NewApp.
type Options struct {
	Cache CacheInspector
	// Dependencies are pinged by /health; a failing one degrades the status.
	Dependencies map[string]Pinger
	Log          logger.Logger
	// AccessLog receives one line per request; nil means stdout.
	AccessLog io.Writer
}

// NewApp builds the Fiber app with middleware, error mapping, health, metrics and API routes.
func NewApp(service *neo.Service, opts Options) *fiber.App {
	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}
	log = log.Named("http")
	accessLog := opts.AccessLog
	if accessLog == nil {
		accessLog = os.Stdout
	}

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          errorHandler(log),
	})

	// Global middleware
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} ${locals:requestid} ${status} ${latency} ${method} ${path}\n",
		Output: accessLog,
	}))
	app.Use(recover.New())
	app.Use(requestMetrics())

	app.Get("/health", healthHandler(opts.Cache, opts.Dependencies))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})))

	RegisterRoutes(app, service)
	return app
}

func requestMetrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		started := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = statusFor(err)
		}
		metrics.RecordHTTPRequest(c.Route().Path, c.Method(), strconv.Itoa(status),
			float64(time.Since(started).Microseconds())/1000)
		return err
	}
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, neo.ErrInvalidArgument):
		return fiber.StatusBadRequest
	case errors.Is(err, neo.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, neo.ErrUpstreamUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, neo.ErrUpstream):
		return fiber.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func errorHandler(log logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := statusFor(err)
		msg := err.Error()
		if code >= fiber.StatusInternalServerError {
			log.Error(c.UserContext(), "request failed",
				logger.String("method", c.Method()),
				logger.String("path", c.Path()),
				logger.Int("status", code),
				logger.Any("request_id", c.Locals("requestid")),
				logger.Error(err))
			if code == fiber.StatusInternalServerError {
				msg = "internal server error"
			}
		}
		return c.Status(code).JSON(fiber.Map{
			"error":     true,
			"message":   msg,
			"requestId": c.Locals("requestid"),
		})
	}
}

func healthHandler(cache CacheInspector, deps map[string]Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status := "ok"
		checks := make(map[string]string, len(deps))
		for name, d := range deps {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			err := d.Ping(ctx)
			cancel()
			if err != nil {
				status = "degraded"
				checks[name] = err.Error()
				continue
			}
			checks[name] = "ok"
		}

		body := fiber.Map{
			"status":       status,
			"service":      serviceName,
			"dependencies": checks,
		}
		if cache != nil {
			body["cache"] = cache.Entries()
		}
		return c.JSON(body)
	}
}
