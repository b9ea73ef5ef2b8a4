// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cache"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/amirphl/Yata-no-Kagami/app/dto"
	"github.com/amirphl/Yata-no-Kagami/app/handlers"
	"github.com/amirphl/Yata-no-Kagami/app/middleware"
	"github.com/amirphl/Yata-no-Kagami/utils"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	Shutdown() error
	GetApp() *fiber.App
}

// Options configures the HTTP surface
type Options struct {
	AllowOrigins   []string
	RateLimit      int
	BodyLimit      int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MetricsEnabled bool
	MetricsPath    string
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app                   *fiber.App
	opts                  Options
	logger                *logrus.Logger
	reconciliationHandler handlers.ReconciliationHandlerInterface
	auth                  *middleware.AuthMiddleware
}

// NewFiberRouter creates a new Fiber router. A nil auth leaves the reconciliation routes open.
func NewFiberRouter(opts Options, logger *logrus.Logger, reconciliationHandler handlers.ReconciliationHandlerInterface, auth *middleware.AuthMiddleware) Router {
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = 4 * 1024 * 1024
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 600
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}

	r := &FiberRouter{
		opts:                  opts,
		logger:                logger,
		reconciliationHandler: reconciliationHandler,
		auth:                  auth,
	}
	r.app = fiber.New(fiber.Config{
		AppName:      "Yata no Kagami API",
		ServerHeader: "Yata-no-Kagami",
		ErrorHandler: r.errorHandler,
		BodyLimit:    opts.BodyLimit,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.logger.Info("Setting up routes")

	r.setupMiddleware()

	if r.opts.MetricsEnabled {
		r.app.Get(r.opts.MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1")

	api.Get("/health", handlers.Health)
	api.Get("/docs", cache.New(cache.Config{
		Expiration:   30 * time.Minute,
		CacheControl: true,
	}), r.getAPIDocumentation)

	api.Use(limiter.New(limiter.Config{
		Max:        r.opts.RateLimit,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
	}))

	reconciliation := api.Group("/reconciliation")
	if r.auth != nil {
		reconciliation.Use(r.auth.Authenticate())
	} else {
		r.logger.Warn("JWT secret not configured, reconciliation routes are unauthenticated")
	}

	reconciliation.Post("/run", r.reconciliationHandler.Run)
	reconciliation.Get("/ledger", r.reconciliationHandler.Ledger)
	reconciliation.Patch("/ledger/:key/verification", r.reconciliationHandler.UpdateVerification)
	reconciliation.Get("/summary", r.reconciliationHandler.Summary)
	reconciliation.Get("/export.csv", r.reconciliationHandler.ExportCSV)
	reconciliation.Get("/export.xlsx", r.reconciliationHandler.ExportExcel)

	r.app.Use(r.notFoundHandler)

	r.logger.Info("Routes configured successfully")
}

// SetupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.WithFields(logrus.Fields{
				"request_id": c.Locals("requestid"),
				"event":      "panic",
				"error":      e,
				"path":       c.Path(),
				"method":     c.Method(),
				"ip":         c.IP(),
			}).Error("Recovered from panic")
		},
	}))

	if r.opts.MetricsEnabled {
		r.app.Use(middleware.Metrics())
	}

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none';",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	if len(r.opts.AllowOrigins) > 0 {
		r.app.Use(cors.New(cors.Config{
			AllowOrigins: r.opts.AllowOrigins,
			AllowMethods: []string{"GET", "POST", "PATCH", "HEAD", "OPTIONS"},
			AllowHeaders: []string{
				"Origin",
				"Content-Type",
				"Accept",
				"Authorization",
				"X-Request-ID",
			},
			ExposeHeaders: []string{
				"X-Request-ID",
				"Content-Disposition",
			},
			MaxAge: utils.CORSMaxAge,
		}))
	}

	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		Next: func(c fiber.Ctx) bool {
			// Workbooks are already zip-compressed
			return strings.HasSuffix(c.Path(), ".xlsx")
		},
	}))

	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Stream:     r.logger.Writer(),
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health" || c.Path() == r.opts.MetricsPath
		},
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	r.logger.WithField("address", address).Info("Starting server")
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown stops accepting connections and waits for in-flight requests
func (r *FiberRouter) Shutdown() error {
	return r.app.Shutdown()
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// API documentation endpoint
func (r *FiberRouter) getAPIDocumentation(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "API documentation retrieved successfully",
		Data: fiber.Map{
			"title":       "Yata no Kagami API Documentation",
			"version":     "1.0.0",
			"description": "Attendance to payment reconciliation API",
			"endpoints":   GetRouteDocumentation(),
		},
	})
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	requestID := c.Locals("requestid")

	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestID,
			},
		},
	})
}

func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}

	r.logger.WithError(err).WithField("status", code).Error("Request failed")

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": c.Locals("requestid"),
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// GetRouteDocumentation returns API documentation
func GetRouteDocumentation() []map[string]any {
	return []map[string]any{
		{
			"method":      "POST",
			"path":        "/api/v1/reconciliation/run",
			"description": "Reconcile attendance against payments for an optional date window",
			"parameters": map[string]any{
				"from_date":      "string (optional) - first day of the window, YYYY-MM-DD",
				"to_date":        "string (optional) - last day of the window, YYYY-MM-DD",
				"force_reverify": "bool (optional) - recompute rows already in the ledger",
				"clear_existing": "bool (optional) - discard the ledger and rebuild it from the window",
			},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/reconciliation/ledger",
			"description": "List every master ledger row with its summary",
		},
		{
			"method":      "PATCH",
			"path":        "/api/v1/reconciliation/ledger/:key/verification",
			"description": "Set the verification status of one ledger row",
			"parameters": map[string]any{
				"verification_status": "string (required) - Verified|Not Verified",
			},
		},
		{
			"method":      "GET",
			"path":        "/api/v1/reconciliation/summary",
			"description": "Verification counts over the ledger",
		},
		{
			"method":      "GET",
			"path":        "/api/v1/reconciliation/export.csv",
			"description": "Download the ledger as CSV",
		},
		{
			"method":      "GET",
			"path":        "/api/v1/reconciliation/export.xlsx",
			"description": "Download the ledger as an xlsx workbook",
		},
	}
}
