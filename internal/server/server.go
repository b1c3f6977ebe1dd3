// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"vibefeed/internal/auth"
	"vibefeed/internal/cache"
	"vibefeed/internal/config"
	"vibefeed/internal/database"
	_ "vibefeed/internal/docs" // swagger docs
	"vibefeed/internal/middleware"
	"vibefeed/internal/models"
	"vibefeed/internal/notifications"
	"vibefeed/internal/repository"
	"vibefeed/internal/service"
	"vibefeed/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// multipart framing on top of the largest accepted file
const bodyOverhead = 1 << 20

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	store          storage.Store
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	startedAt      time.Time
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	userRepo       repository.UserRepository
	postRepo       repository.PostRepository
	chatRepo       repository.ChatRepository
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	authService    *service.AuthService
	userService    *service.UserService
	postService    *service.PostService
	searchService  *service.SearchService
	chatService    *service.ChatService
}

// NewServer connects the datastore, Redis and the media backend named in cfg
// and builds a server on top of them.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Without Redis the cache, rate limits and fan-out degrade to local behavior
	redisClient, err := cache.Dial(ctx, cfg.RedisURL)
	if err != nil {
		middleware.Logger.Warn("redis unavailable, continuing without it", "error", err)
		redisClient = nil
	} else {
		middleware.Logger.Info("redis connected")
	}

	store, err := storage.NewStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("media storage setup failed: %w", err)
	}

	return NewServerWithDeps(cfg, db, redisClient, store)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and optionally
// performs explicit seeding. redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, store storage.Store) (*Server, error) {
	if db == nil {
		return nil, errors.New("database is required")
	}
	if store == nil {
		return nil, errors.New("media store is required")
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		store:          store,
		promMiddleware: middleware.InitMetrics("vibefeed-api"),
		startedAt:      time.Now(),
		userRepo:       repository.NewUserRepository(db),
		postRepo:       repository.NewPostRepository(db),
		chatRepo:       repository.NewChatRepository(db),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
	}
	s.shutdownCtx, s.shutdownFn = context.WithCancel(context.Background())
	cache.SetClient(redisClient)

	uploader := storage.NewUploader(store)
	s.authService = service.NewAuthService(s.userRepo, auth.NewTokenIssuer(cfg.JWTSecret))
	s.userService = service.NewUserService(s.userRepo, uploader)
	s.postService = service.NewPostService(s.postRepo, uploader, s.maxUploadBytes())
	s.searchService = service.NewSearchService(s.userRepo, s.postRepo)
	s.chatService = service.NewChatService(s.chatRepo, s.userRepo, s.notifier)

	// Pushes go straight to this hub without Redis, or through the
	// notifications:user:* subscription with it.
	if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
		middleware.Logger.Warn("realtime fan-out unavailable, falling back to local delivery", "error", err)
	}

	return s, nil
}

func (s *Server) maxUploadBytes() int64 {
	return int64(s.config.MaxUploadSizeMB) * 1024 * 1024
}

// App builds the fiber application on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}

	app := fiber.New(fiber.Config{
		AppName:      "vibefeed API",
		BodyLimit:    int(s.maxUploadBytes()) + bodyOverhead,
		ErrorHandler: s.handleError,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Security headers. Uploaded media is embedded by the web client from another origin.
	app.Use(helmet.New(helmet.Config{
		CrossOriginResourcePolicy: "cross-origin",
	}))

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400, // 24 hours
	}))

	if !s.config.RateLimitEnabled {
		return
	}

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.Envelope{
				Error: "Too many requests, please try again later.",
			})
		},
	}))
}

var (
	signupRule      = middleware.RateRule{Name: "signup", Limit: 3, Window: 10 * time.Minute}
	loginRule       = middleware.RateRule{Name: "login", Limit: 10, Window: 5 * time.Minute}
	searchRule      = middleware.RateRule{Name: "search", Limit: 30, Window: time.Minute}
	createPostRule  = middleware.RateRule{Name: "create_post", Limit: 10, Window: time.Minute}
	sendMessageRule = middleware.RateRule{Name: "send_message", Limit: 30, Window: time.Minute}
)

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Orchestrator probes sit outside /api
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	api := app.Group("/api")
	api.Get("/health", s.HealthCheck)
	api.Get("/health/live", s.LivenessCheck)
	api.Get("/health/ready", s.ReadinessCheck)

	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "vibefeed Metrics Dashboard",
	}))

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	authed := s.AuthRequired()
	limiter := middleware.NewLimiter(s.redis, s.config.RateLimitEnabled && s.config.IsProduction())

	// Auth routes
	authGroup := api.Group("/auth")
	authGroup.Post("/signup", limiter.Handler(signupRule), s.Signup)
	authGroup.Post("/login", limiter.Handler(loginRule), s.Login)
	authGroup.Post("/logout", authed, s.Logout)

	api.Get("/search", limiter.Handler(searchRule), s.Search)

	// User routes. Specific paths are registered BEFORE the generic /:id route.
	users := api.Group("/users")
	users.Get("/me", authed, s.GetMyProfile)
	users.Get("/me/saved", authed, s.GetSavedPosts)
	users.Get("/username/:username", s.GetUserByUsername)
	users.Put("/:id", authed, s.UpdateUser)
	users.Post("/:id/avatar", authed, s.UploadAvatar)
	users.Post("/:id/posts", authed, limiter.Handler(createPostRule), s.CreatePost)
	users.Get("/:id", s.GetUserProfile)

	// Post routes; reads are public and personalized when a token is present
	posts := api.Group("/posts")
	posts.Get("/", s.GetPosts)
	posts.Post("/:id/like", authed, s.LikePost)
	posts.Delete("/:id/like", authed, s.UnlikePost)
	posts.Post("/:id/save", authed, s.SavePost)
	posts.Delete("/:id/save", authed, s.UnsavePost)
	posts.Get("/:id", s.GetPost)

	// Chat routes
	conversations := api.Group("/conversations")
	conversations.Get("/", authed, s.GetConversations)
	conversations.Post("/", authed, s.CreateConversation)
	conversations.Get("/:id/messages", authed, s.GetMessages)
	conversations.Post("/:id/messages", authed, limiter.Handler(sendMessageRule), s.SendMessage)
	conversations.Get("/:id", authed, s.GetConversation)

	// Realtime delivery of new messages
	api.Get("/ws", authed, s.WebsocketHandler())

	if local, ok := s.store.(*storage.LocalStore); ok {
		app.Static(storage.LocalURLPrefix, local.Dir(), fiber.Static{MaxAge: 3600})
	}

	// Anything that fell through every route above
	app.Use(func(c *fiber.Ctx) error {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundMessage("Endpoint not found"))
	})
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
		// Browsers cannot set headers on a websocket handshake
		if token == "" && strings.HasPrefix(c.Path(), "/api/ws") {
			token = c.Query("token")
		}

		userID, err := s.authService.Authenticate(token)
		if err != nil {
			return models.RespondWithError(c, mapServiceError(err), err)
		}

		// Store user ID in context
		c.Locals("userID", userID)
		c.SetUserContext(middleware.WithUserID(c.UserContext(), userID))

		return c.Next()
	}
}

// optionalUserID resolves the caller from a bearer token without enforcing it.
func (s *Server) optionalUserID(c *fiber.Ctx) uint {
	token := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	if token == "" {
		return 0
	}
	userID, err := s.authService.Authenticate(token)
	if err != nil {
		return 0
	}
	return userID
}

// handleError is the fiber ErrorHandler for errors no handler turned into a response.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		switch {
		case fe.Code == fiber.StatusRequestEntityTooLarge:
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("File too large."))
		case fe.Code == fiber.StatusNotFound:
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundMessage("Endpoint not found"))
		case fe.Code < fiber.StatusInternalServerError:
			return models.RespondWithError(c, fe.Code, err)
		}
	}

	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error",
		"method", c.Method(),
		"path", c.Path(),
		"error", err,
	)
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// Start starts the server
func (s *Server) Start() error {
	app := s.App()
	middleware.Logger.Info("server starting", "port", s.config.Port, "media_backend", s.store.Backend())
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the Redis subscriber
	s.shutdownFn()

	// Shutdown the HTTP/WS server
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	// Close WebSocket connections gracefully
	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down websocket hub", "error", err)
	}

	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	if s.redis != nil {
		rerr := s.redis.Close()
		if cache.GetClient() == s.redis {
			rerr = cache.Close()
		}
		if rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
