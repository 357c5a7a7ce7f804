package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/taskboard/kanban/docs"
	httpHandlers "github.com/taskboard/kanban/internal/adapters/http"
	"github.com/taskboard/kanban/internal/adapters/repository"
	"github.com/taskboard/kanban/internal/application/services"
	"github.com/taskboard/kanban/internal/infrastructure/config"
	"github.com/taskboard/kanban/internal/infrastructure/database"
	"github.com/taskboard/kanban/internal/infrastructure/logger"
	"github.com/taskboard/kanban/internal/ports"
)

// Server represents the HTTP server
type Server struct {
	echo   *echo.Echo
	config *config.Config
	logger *logger.Logger
	db     *database.DB
}

type handlers struct {
	auth       *httpHandlers.AuthHandler
	user       *httpHandlers.UserHandler
	task       *httpHandlers.TaskHandler
	label      *httpHandlers.LabelHandler
	comment    *httpHandlers.CommentHandler
	attachment *httpHandlers.AttachmentHandler
	dashboard  *httpHandlers.DashboardHandler
	search     *httpHandlers.SearchHandler
}

// New creates a new server instance
func New(cfg *config.Config, db *database.DB, files ports.FileStore, appLogger *logger.Logger) (*Server, error) {
	e := echo.New()

	e.Validator = NewValidator()
	e.JSONSerializer = JSONSerializer{}

	// Configure Echo
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	// Custom error handler
	e.HTTPErrorHandler = customErrorHandler(appLogger)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.DB)
	authRepo := repository.NewAuthRepository(db.DB)
	labelRepo := repository.NewLabelRepository(db.DB)
	taskRepo := repository.NewTaskRepository(db.DB)
	commentRepo := repository.NewCommentRepository(db.DB)
	attachmentRepo := repository.NewAttachmentRepository(db.DB)
	activityRepo := repository.NewActivityRepository(db.DB)
	statsRepo := repository.NewStatsRepository(db.DB)

	// Initialize services
	authService := services.NewAuthService(userRepo, authRepo, cfg.JWT, appLogger)
	userService := services.NewUserService(userRepo, authRepo, attachmentRepo, files, appLogger)
	taskService := services.NewTaskService(taskRepo, userRepo, labelRepo, attachmentRepo, files, appLogger)
	labelService := services.NewLabelService(labelRepo, appLogger)
	commentService := services.NewCommentService(commentRepo, taskRepo, appLogger)
	attachmentService := services.NewAttachmentService(attachmentRepo, taskRepo, files, appLogger)
	dashboardService := services.NewDashboardService(taskRepo, statsRepo, userRepo, activityRepo, appLogger)
	searchService := services.NewSearchService(taskRepo, userRepo)

	// Initialize handlers
	h := handlers{
		auth:       httpHandlers.NewAuthHandler(authService, userService, appLogger),
		user:       httpHandlers.NewUserHandler(userService, appLogger),
		task:       httpHandlers.NewTaskHandler(taskService, cfg.Pagination, appLogger),
		label:      httpHandlers.NewLabelHandler(labelService, appLogger),
		comment:    httpHandlers.NewCommentHandler(commentService, appLogger),
		attachment: httpHandlers.NewAttachmentHandler(attachmentService, cfg.Storage.PublicBaseURL, cfg.Storage.MaxUploadSize, appLogger),
		dashboard:  httpHandlers.NewDashboardHandler(dashboardService, appLogger),
		search:     httpHandlers.NewSearchHandler(searchService, appLogger),
	}

	server := &Server{
		echo:   e,
		config: cfg,
		logger: appLogger,
		db:     db,
	}

	// Setup middleware
	server.setupMiddleware()

	// Setup metrics
	if cfg.Metrics.Enabled {
		server.setupMetrics()
	}

	// Setup routes
	server.setupRoutes(h, authService)

	return server, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID middleware
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	// Logger middleware
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			latencyMS := float64(values.Latency.Nanoseconds()) / 1000000
			if values.Error != nil {
				s.logger.WithRequestID(values.RequestID).WithError(values.Error).Warnw("HTTP request failed",
					"method", values.Method,
					"uri", values.URI,
					"status", values.Status,
					"latency_ms", latencyMS,
				)
				return nil
			}
			s.logger.LogHTTPRequest(values.RequestID, values.Method, values.URI, values.UserAgent, values.RemoteIP, values.Status, latencyMS)
			return nil
		},
	}))

	// CORS middleware
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  s.config.Security.AllowedOrigins(),
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods:  []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		ExposeHeaders: []string{echo.HeaderContentDisposition, echo.HeaderXRequestID},
	}))

	// Rate limiting middleware
	if s.config.Security.RateLimitRequests > 0 && s.config.Security.RateLimitWindow > 0 {
		perSecond := float64(s.config.Security.RateLimitRequests) / s.config.Security.RateLimitWindow.Seconds()
		s.echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/health" || c.Path() == "/ready"
			},
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(
				middleware.RateLimiterMemoryStoreConfig{
					Rate:      rate.Limit(perSecond),
					Burst:     s.config.Security.RateLimitRequests,
					ExpiresIn: s.config.Security.RateLimitWindow,
				},
			),
			IdentifierExtractor: func(ctx echo.Context) (string, error) {
				return ctx.RealIP(), nil
			},
			ErrorHandler: func(c echo.Context, err error) error {
				return c.JSON(http.StatusForbidden, httpHandlers.ErrorResponse{Error: "rate limit exceeded"})
			},
			DenyHandler: func(c echo.Context, identifier string, err error) error {
				return c.JSON(http.StatusTooManyRequests, httpHandlers.ErrorResponse{Error: "rate limit exceeded"})
			},
		}))
	}

	// Security headers
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         31536000,
	}))

	// Attachments are the largest bodies; leave room for multipart framing.
	if s.config.Storage.MaxUploadSize > 0 {
		limit := s.config.Storage.MaxUploadSize + 1<<20
		s.echo.Use(middleware.BodyLimit(strconv.FormatInt(limit, 10)))
	}

	// Timeout middleware
	if s.config.Server.RequestTimeout > 0 {
		s.echo.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{
			Timeout: s.config.Server.RequestTimeout,
		}))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(h handlers, authService *services.AuthService) {
	requireAuth := s.authMiddleware(authService)
	optionalAuth := s.optionalAuthMiddleware(authService)

	// Health check routes
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/health/detailed", s.detailedHealthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	// API documentation
	s.echo.GET("/docs/*", echoSwagger.WrapHandler)

	api := s.echo.Group("/api")

	// Auth routes
	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.auth.Register)
	authGroup.POST("/login", h.auth.Login)
	authGroup.POST("/refresh", h.auth.RefreshToken)
	authGroup.POST("/logout", h.auth.Logout, requireAuth)
	authGroup.GET("/me", h.auth.Me, requireAuth)

	// User routes
	userGroup := api.Group("/users")
	userGroup.GET("", h.user.ListUsers)
	userGroup.GET("/:id", h.user.GetUser, requireAuth)
	userGroup.PUT("/:id", h.user.UpdateUser, requireAuth)
	userGroup.PATCH("/:id", h.user.UpdateUser, requireAuth)
	userGroup.DELETE("/:id", h.user.DeleteUser, requireAuth)

	// Task routes; list and create are open to anonymous callers
	taskGroup := api.Group("/tasks")
	taskGroup.GET("", h.task.ListTasks, optionalAuth)
	taskGroup.POST("", h.task.CreateTask, optionalAuth)
	taskGroup.GET("/analytics", h.dashboard.TaskAnalytics, requireAuth)
	taskGroup.GET("/:id", h.task.GetTask, requireAuth)
	taskGroup.PUT("/:id", h.task.UpdateTask, requireAuth)
	taskGroup.PATCH("/:id", h.task.UpdateTask, requireAuth)
	taskGroup.DELETE("/:id", h.task.DeleteTask, requireAuth)
	taskGroup.PATCH("/:id/status", h.task.UpdateTaskStatus, requireAuth)
	taskGroup.PATCH("/:id/assignee", h.task.UpdateTaskAssignee, requireAuth)
	taskGroup.GET("/:id/comments", h.comment.ListComments, requireAuth)
	taskGroup.POST("/:id/comments", h.comment.CreateComment, requireAuth)
	taskGroup.GET("/:id/attachments", h.attachment.ListAttachments, requireAuth)
	taskGroup.POST("/:id/attachments", h.attachment.UploadAttachment, requireAuth)

	// Label routes
	labelGroup := api.Group("/labels")
	labelGroup.GET("", h.label.ListLabels)
	labelGroup.POST("", h.label.CreateLabel)
	labelGroup.PUT("/:id", h.label.UpdateLabel, requireAuth)
	labelGroup.DELETE("/:id", h.label.DeleteLabel, requireAuth)

	// Comment routes
	commentGroup := api.Group("/comments", requireAuth)
	commentGroup.PUT("/:id", h.comment.UpdateComment)
	commentGroup.PATCH("/:id", h.comment.UpdateComment)
	commentGroup.DELETE("/:id", h.comment.DeleteComment)

	// Attachment routes
	attachmentGroup := api.Group("/attachments", requireAuth)
	attachmentGroup.DELETE("/:id", h.attachment.DeleteAttachment)
	attachmentGroup.GET("/:id/download", h.attachment.DownloadAttachment)

	// Dashboard routes
	dashboardGroup := api.Group("/dashboard", requireAuth)
	dashboardGroup.GET("/stats", h.dashboard.Stats)
	dashboardGroup.GET("/activity", h.dashboard.RecentActivity)

	// Search routes
	searchGroup := api.Group("/search", requireAuth)
	searchGroup.GET("/tasks", h.search.SearchTasks)
	searchGroup.GET("/users", h.search.SearchUsers)
	searchGroup.GET("/global", h.search.GlobalSearch)
}

// setupMetrics configures Prometheus metrics
func (s *Server) setupMetrics() {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	registry.MustRegister(
		requestsTotal,
		requestDuration,
		collectors.NewGoCollector(),
		collectors.NewDBStatsCollector(s.db.DB.DB, "kanban"),
	)

	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				status, _ = errorResponse(err)
			}

			requestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				strconv.Itoa(status),
			).Inc()

			requestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
			).Observe(time.Since(start).Seconds())

			return err
		}
	})

	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	s.echo.GET("/metrics", echo.WrapHandler(metricsHandler))
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) detailedHealthCheck(c echo.Context) error {
	status := "ok"
	checks := make(map[string]interface{})

	if err := s.db.HealthCheck(c.Request().Context()); err != nil {
		status = "error"
		checks["database"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	} else {
		checks["database"] = map[string]interface{}{
			"status": "ok",
			"stats":  s.db.PoolStats(),
		}
	}

	response := map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": checks,
		"version": map[string]string{
			"app": s.config.App.Version,
		},
	}

	if status == "ok" {
		return c.JSON(http.StatusOK, response)
	}
	return c.JSON(http.StatusServiceUnavailable, response)
}

func (s *Server) readinessCheck(c echo.Context) error {
	if err := s.db.HealthCheck(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "database_not_ready",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.Infow("Starting server", "address", address)
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	return s.echo.Shutdown(ctx)
}
