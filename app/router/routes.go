// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/amirphl/ams-registry/app/dto"
	"github.com/amirphl/ams-registry/app/handlers"
	"github.com/amirphl/ams-registry/app/middleware"
	"github.com/amirphl/ams-registry/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthPath = "/api/v1/health"

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	Shutdown(ctx context.Context) error
	GetApp() *fiber.App
}

// Config holds the router settings taken from the server configuration
type Config struct {
	AppName        string
	Version        string
	AllowedOrigins []string
	BodyLimit      int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	APIRateLimit   int
	AuthRateLimit  int
	MetricsEnabled bool
	MetricsPath    string
	// HealthCheck reports dependency health; nil means always healthy
	HealthCheck func(ctx context.Context) error
}

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Auth     handlers.AuthHandlerInterface
	User     handlers.UserHandlerInterface
	Category handlers.CategoryHandlerInterface
	Client   handlers.ClientHandlerInterface
	Serial   handlers.SerialHandlerInterface
	Audit    handlers.AuditHandlerInterface
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app            *fiber.App
	cfg            Config
	handlers       Handlers
	authMiddleware *middleware.AuthMiddleware
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(cfg Config, h Handlers, authMiddleware *middleware.AuthMiddleware) Router {
	if cfg.BodyLimit == 0 {
		cfg.BodyLimit = 4 * 1024 * 1024
	}
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.BodyLimit,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:            app,
		cfg:            cfg,
		handlers:       h,
		authMiddleware: authMiddleware,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	if r.cfg.MetricsEnabled {
		r.app.Get(r.cfg.MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	api.Use(r.rateLimiter(r.cfg.APIRateLimit, func(c fiber.Ctx) bool {
		return c.Path() == healthPath
	}))

	auth := api.Group("/auth")
	auth.Use(r.rateLimiter(r.cfg.AuthRateLimit, nil))
	auth.Post("/signup", r.handlers.Auth.Signup)
	auth.Post("/login", r.handlers.Auth.Login)
	auth.Post("/refresh", r.handlers.Auth.Refresh)
	auth.Post("/logout", r.authMiddleware.Authenticate(), r.handlers.Auth.Logout)

	authenticate := r.authMiddleware.Authenticate()

	users := api.Group("/users", authenticate)
	users.Get("/", r.handlers.User.ListUsers)
	users.Get("/:id", r.handlers.User.GetUser)
	users.Put("/:id", r.handlers.User.UpdateUser)
	users.Delete("/:id", r.handlers.User.DeleteUser)

	categories := api.Group("/categories", authenticate)
	categories.Get("/", r.handlers.Category.ListCategories)
	categories.Post("/", r.handlers.Category.CreateCategory)

	clients := api.Group("/clients", authenticate)
	clients.Post("/", r.handlers.Client.RegisterClient)
	clients.Get("/", r.handlers.Client.ListClients)
	clients.Get("/export", r.handlers.Client.ExportClients)
	clients.Get("/serial/:serial", r.handlers.Client.GetClientBySerial)
	clients.Get("/:id", r.handlers.Client.GetClient)
	clients.Put("/:id", r.handlers.Client.UpdateClient)
	clients.Delete("/:id", r.handlers.Client.DeleteClient)

	serials := api.Group("/serials", authenticate)
	serials.Post("/reservations", r.handlers.Serial.Reserve)
	serials.Delete("/reservations/:serial", r.handlers.Serial.Release)
	serials.Get("/next", r.handlers.Serial.PreviewNext)
	serials.Get("/active", r.handlers.Serial.ListActive)
	serials.Get("/retired", r.handlers.Serial.ListRetired)
	serials.Get("/reserved", r.handlers.Serial.ListReserved)
	serials.Get("/usage", r.handlers.Serial.Usage)
	serials.Post("/sweep", r.handlers.Serial.Sweep)
	serials.Get("/:serial/history", r.handlers.Audit.SerialHistory)

	api.Get("/audit-logs", authenticate, r.handlers.Audit.ListAuditLogs)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    fiber.HeaderXRequestID,
		Generator: generateRequestID,
	}))

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000,
		ContentSecurityPolicy:     "default-src 'self'; frame-ancestors 'none';",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "same-origin",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	if len(r.cfg.AllowedOrigins) > 0 {
		r.app.Use(cors.New(cors.Config{
			AllowOrigins: r.cfg.AllowedOrigins,
			AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS"},
			AllowHeaders: []string{
				"Origin",
				"Content-Type",
				"Accept",
				"Authorization",
				"X-Requested-With",
				"X-Request-ID",
			},
			ExposeHeaders:    []string{"X-Request-ID", "Retry-After", "Content-Disposition"},
			AllowCredentials: !contains(strings.Join(r.cfg.AllowedOrigins, ","), "*"),
			MaxAge:           utils.CORSMaxAge,
		}))
	}

	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		Next: func(c fiber.Ctx) bool {
			// xlsx is already zip-compressed
			return contains(c.Path(), "/export")
		},
	}))

	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			return c.Path() == healthPath || c.Path() == r.cfg.MetricsPath
		},
	}))

	if r.cfg.MetricsEnabled {
		r.app.Use(middleware.Metrics(r.cfg.MetricsPath))
	}

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				requestid.FromContext(c),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

func (r *FiberRouter) rateLimiter(max int, next func(c fiber.Ctx) bool) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
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
		Next: next,
	})
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown stops accepting connections and waits for in-flight requests
func (r *FiberRouter) Shutdown(ctx context.Context) error {
	return r.app.ShutdownWithContext(ctx)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	status := "ok"
	code := fiber.StatusOK
	if r.cfg.HealthCheck != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := r.cfg.HealthCheck(ctx); err != nil {
			log.Printf("health check failed: %v", err)
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: code == fiber.StatusOK,
		Message: "Service is " + status,
		Data: fiber.Map{
			"status":    status,
			"timestamp": utils.UTCNow().Unix(),
			"version":   r.cfg.Version,
			"service":   r.cfg.AppName,
		},
	})
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"

	// Retrieve the custom status code if it's a fiber.*Error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	log.Printf("Error %d: %v", code, err)

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestid.FromContext(c),
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

func contains(str, substr string) bool {
	return strings.Contains(str, substr)
}
