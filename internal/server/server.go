// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"blogsphere/internal/config"
	"blogsphere/internal/database"
	"blogsphere/internal/middleware"
	"blogsphere/internal/models"
	"blogsphere/internal/notifications"
	"blogsphere/internal/observability"
	"blogsphere/internal/repository"
	"blogsphere/internal/service"
)

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// metrics returns the process-wide HTTP metrics middleware. Its collectors
// live in the default registry and can only be registered once.
func metrics() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New("blogsphere")
	})
	return prom
}

// Server holds all dependencies and provides handlers
type Server struct {
	config *config.Config
	db     *gorm.DB
	redis  *redis.Client
	app    *fiber.App

	shutdownCtx context.Context
	shutdownFn  context.CancelFunc

	userRepo    repository.UserRepository
	postService *service.PostService
	feedService *service.FeedService
	chatHub     *notifications.ChatHub
}

// NewServer wires a Server on already-open handles. redisClient may be nil,
// in which case chat is relayed in-process and rate limits are off.
func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Server {
	middleware.InitMiddleware(cfg)

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	followRepo := repository.NewFollowRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:      cfg,
		db:          db,
		redis:       redisClient,
		shutdownCtx: ctx,
		shutdownFn:  cancel,
		userRepo:    userRepo,
		postService: service.NewPostService(postRepo),
		feedService: service.NewFeedService(followRepo, postRepo),
		chatHub: notifications.NewChatHub(notifications.ChatHubConfig{
			Redis:      redisClient,
			RateLimit:  cfg.RateLimitChat,
			RateWindow: time.Minute,
			Users:      userRepo,
		}),
	}

	s.app = fiber.New(fiber.Config{
		AppName:      "blogsphere",
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(s.app)
	s.SetupRoutes(s.app)
	return s
}

// App returns the configured fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	observability.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
	return models.RespondWithError(c, err)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(metrics().Middleware)

	// CORS runs before anything that can short-circuit so error responses
	// still carry CORS headers.
	app.Use(cors.New(cors.Config{
		AllowOrigins: s.config.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		MaxAge:       86400,
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.HealthCheck)
	metrics().RegisterAt(app, "/metrics")

	// Authentication runs before the context middleware so request logs
	// carry the user id.
	public := func(h ...fiber.Handler) []fiber.Handler {
		return chain(middleware.OptionalAuth, h...)
	}
	protected := func(h ...fiber.Handler) []fiber.Handler {
		return chain(middleware.AuthRequired, h...)
	}

	api := app.Group("/api")

	api.Post("/posts", protected(
		middleware.RateLimit(s.limiter(), s.config.RateLimitPosts, time.Minute, "create_post"),
		s.CreatePost)...)
	api.Get("/posts/:id", public(s.GetPost)...)
	api.Put("/posts/:id", protected(s.UpdatePost)...)
	api.Delete("/posts/:id", protected(s.DeletePost)...)

	api.Get("/users/:id/posts", public(s.GetUserPosts)...)
	api.Post("/search", public(s.SearchPosts)...)
	api.Get("/feed", protected(s.GetFeed)...)

	app.Get("/ws/chat", middleware.WebSocketAuthRequired, requireUpgrade, websocket.New(s.chatHub.Serve))
}

// chain puts auth, then request context and logging, in front of handlers.
func chain(auth fiber.Handler, handlers ...fiber.Handler) []fiber.Handler {
	out := []fiber.Handler{auth, middleware.ContextMiddleware(), middleware.StructuredLogger()}
	return append(out, handlers...)
}

// limiter returns the Redis client as a rate limit store, or nil when Redis
// is not configured.
func (s *Server) limiter() redis.Cmdable {
	if s.redis == nil {
		return nil
	}
	return s.redis
}

func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// HealthCheck reports whether the database (and Redis, when configured)
// answers.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now().UTC(),
	})
}

// Serve starts the chat relay and serves HTTP on ln until shutdown.
func (s *Server) Serve(ln net.Listener) error {
	if err := s.chatHub.Start(s.shutdownCtx); err != nil {
		observability.Logger.Warn("chat relay subscription failed, relaying in-process only",
			slog.String("error", err.Error()))
	}
	observability.Logger.Info("server listening", slog.String("addr", ln.Addr().String()))
	return s.app.Listener(ln)
}

// Start listens on the configured port.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", ":"+s.config.Port)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownFn()

	if err := s.app.ShutdownWithContext(ctx); err != nil {
		observability.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
	}
	if err := s.chatHub.Shutdown(ctx); err != nil {
		observability.Logger.Error("error shutting down chat hub", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			observability.Logger.Error("error closing database", slog.String("error", cerr.Error()))
		}
	}
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			observability.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	observability.Logger.Info("server shutdown complete")
	return nil
}
