package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/ophion/companion/docs"
	httpHandlers "github.com/ophion/companion/internal/adapters/http"
	"github.com/ophion/companion/internal/application/board"
	"github.com/ophion/companion/internal/application/services"
	"github.com/ophion/companion/internal/application/workspace"
	"github.com/ophion/companion/internal/infrastructure/config"
	"github.com/ophion/companion/internal/infrastructure/logger"
	"github.com/ophion/companion/internal/infrastructure/metrics"
	"github.com/ophion/companion/internal/ports"
)

// Dependencies are the adapters the server is assembled from
type Dependencies struct {
	Store    ports.RemoteStore
	Projects ports.ProjectRepository
	// Cache is optional; nil disables response caching
	Cache   ports.CacheRepository
	AI      ports.AIGateway
	Metrics *metrics.Metrics
}

// Server represents the HTTP server
type Server struct {
	echo    *echo.Echo
	config  *config.Config
	logger  *logger.Logger
	deps    Dependencies
	started time.Time

	identity   *services.IdentityService
	workspaces *services.WorkspaceService
	reminders  *services.ReminderJob
}

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

type handlers struct {
	session   *httpHandlers.SessionHandler
	themes    *httpHandlers.ThemeHandler
	workspace *httpHandlers.WorkspaceHandler
	board     *httpHandlers.BoardHandler
	planner   *httpHandlers.PlannerHandler
	projects  *httpHandlers.ProjectHandler
	chat      *httpHandlers.ChatHandler
}

// New creates a new server instance
func New(cfg *config.Config, deps Dependencies, appLogger *logger.Logger) (*Server, error) {
	if deps.Store == nil || deps.Projects == nil || deps.AI == nil {
		return nil, fmt.Errorf("server requires a store, a project catalog and an AI gateway")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	e := echo.New()

	// Set custom validator
	e.Validator = &CustomValidator{validator: validator.New()}

	// Configure Echo
	e.HideBanner = true
	e.HidePort = true

	// Custom error handler
	e.HTTPErrorHandler = customErrorHandler(appLogger)

	// Initialize services
	assistant := services.NewAssistantService(deps.AI, deps.Cache, cfg.AI.CacheTTL, appLogger)
	workspaces := services.NewWorkspaceService(deps.Store, assistant, workspace.Options{
		TickInterval: cfg.Workspace.TickInterval,
	}, appLogger)
	boards := services.NewBoardService(workspaces, assistant, board.Geometry{
		Height:      cfg.Board.Height,
		ConvertZone: cfg.Board.ConvertZone,
		MinWidth:    cfg.Board.MinWidth,
		MinHeight:   cfg.Board.MinHeight,
	}, appLogger)
	planner := services.NewPlannerService(workspaces, assistant, appLogger)
	wrapped := services.NewWrappedService(workspaces, deps.Projects, assistant, appLogger)
	analytics := services.NewAnalyticsService(workspaces)
	projects := services.NewProjectService(deps.Projects, workspaces, assistant, appLogger)
	identity := services.NewIdentityService(nil, cfg.JWT, appLogger)
	chat := services.NewChatService(deps.AI, appLogger)

	// Initialize handlers
	h := handlers{
		session:   httpHandlers.NewSessionHandler(identity, appLogger),
		themes:    httpHandlers.NewThemeHandler(),
		workspace: httpHandlers.NewWorkspaceHandler(workspaces, analytics, wrapped, appLogger),
		board:     httpHandlers.NewBoardHandler(boards, workspaces, appLogger),
		planner:   httpHandlers.NewPlannerHandler(planner, appLogger),
		projects:  httpHandlers.NewProjectHandler(projects, appLogger),
		chat:      httpHandlers.NewChatHandler(chat, appLogger),
	}

	server := &Server{
		echo:       e,
		config:     cfg,
		logger:     appLogger,
		deps:       deps,
		started:    time.Now(),
		identity:   identity,
		workspaces: workspaces,
		reminders:  services.NewReminderJob(planner, cfg.Planner.ReminderInterval, appLogger),
	}

	// Setup middleware
	server.setupMiddleware()

	// Setup metrics
	if cfg.Metrics.Enabled {
		server.setupMetrics()
	}

	// Setup routes
	server.setupRoutes(h)

	return server, nil
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(h handlers) {
	// Health check routes
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/health/detailed", s.detailedHealthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	// Swagger documentation
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	// API v1 routes
	v1 := s.echo.Group("/api/v1")
	auth := s.authMiddleware(s.identity)

	// Public routes
	v1.POST("/session", h.session.StartSession)
	v1.GET("/themes", h.themes.ListThemes)
	v1.GET("/themes/:id", h.themes.GetTheme)

	v1.PUT("/session/name", h.session.Rename, auth)

	// Workspace routes (authenticated)
	ws := v1.Group("/workspace", auth)
	ws.GET("", h.workspace.GetView)
	ws.GET("/events", h.workspace.Events)
	ws.GET("/motivation", h.workspace.Motivation)

	v1.GET("/analytics", h.workspace.Analytics, auth)
	v1.GET("/wrapped", h.workspace.Wrapped, auth)

	// Task routes (authenticated)
	tasks := v1.Group("/tasks", auth)
	tasks.GET("", h.workspace.ListTasks)
	tasks.POST("", h.workspace.CreateTask)
	tasks.POST("/generate", h.workspace.GenerateTasks)
	tasks.POST("/magic", h.workspace.MagicSetup)
	tasks.PATCH("/:id", h.workspace.UpdateTask)
	tasks.DELETE("/:id", h.workspace.DeleteTask)
	tasks.POST("/:id/toggle", h.workspace.ToggleTask)
	tasks.POST("/:id/timer", h.workspace.ToggleTimer)
	tasks.POST("/:id/timer/reset", h.workspace.ResetTimer)

	// Note routes (authenticated)
	notes := v1.Group("/notes", auth)
	notes.GET("", h.board.ListNotes)
	notes.POST("", h.board.CreateNote)
	notes.PATCH("/:id", h.board.UpdateNote)
	notes.DELETE("/:id", h.board.DeleteNote)
	notes.POST("/:id/complete", h.board.CompleteNote)
	notes.POST("/:id/pin", h.board.TogglePin)
	notes.POST("/:id/skin", h.board.CycleSkin)
	notes.POST("/:id/color", h.board.CycleColor)
	notes.POST("/:id/opacity", h.board.SetOpacity)
	notes.POST("/:id/dictation", h.board.Dictation)
	notes.POST("/:id/enhance", h.board.Enhance)
	notes.POST("/:id/analyze", h.board.Analyze)

	// Board gesture routes (authenticated)
	b := v1.Group("/board", auth)
	b.GET("", h.board.GetBoard)
	b.POST("/drag", h.board.BeginDrag)
	b.POST("/resize", h.board.BeginResize)
	b.POST("/move", h.board.Move)
	b.POST("/release", h.board.Release)
	b.POST("/conversion/confirm", h.board.ConfirmConversion)
	b.POST("/conversion/cancel", h.board.CancelConversion)

	// Planner routes (authenticated)
	planner := v1.Group("/planner", auth)
	planner.GET("/week", h.planner.GetWeek)
	planner.POST("/reschedule", h.planner.Reschedule)

	// Project routes (authenticated)
	projects := v1.Group("/projects", auth)
	projects.GET("", h.projects.ListProjects)
	projects.GET("/:id", h.projects.GetProject)
	projects.POST("/:id/health", h.projects.Health)
	v1.GET("/members", h.projects.ListMembers, auth)

	// Chat routes (authenticated)
	chat := v1.Group("/chat", auth)
	chat.GET("/messages", h.chat.History)
	chat.POST("/messages", h.chat.Send)
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// pooledStore is a remote store backed by a SQL connection pool
type pooledStore interface {
	HealthCheck(ctx context.Context) error
	PoolStats() map[string]interface{}
}

func (s *Server) detailedHealthCheck(c echo.Context) error {
	status := "ok"
	checks := make(map[string]interface{})

	// Remote store
	storeCheck := map[string]interface{}{
		"status": "ok",
		"driver": s.config.Store.Driver,
	}
	if !s.deps.Store.Connected() {
		status = "degraded"
		storeCheck["status"] = "disconnected"
	} else if pool, ok := s.deps.Store.(pooledStore); ok {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := pool.HealthCheck(ctx); err != nil {
			status = "degraded"
			storeCheck["status"] = "error"
			storeCheck["error"] = err.Error()
		}
		storeCheck["pool"] = pool.PoolStats()
	}
	checks["store"] = storeCheck

	// Cache
	if s.deps.Cache != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Cache.Ping(ctx); err != nil {
			status = "degraded"
			checks["cache"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		} else {
			checks["cache"] = map[string]interface{}{"status": "ok"}
		}
	} else {
		checks["cache"] = map[string]interface{}{"status": "disabled"}
	}

	// Generative model. Unconfigured is not an error, features fall back.
	aiStatus := "fallback"
	if configured, ok := s.deps.AI.(interface{ Configured() bool }); ok && configured.Configured() {
		aiStatus = "ok"
	}
	checks["ai"] = map[string]interface{}{"status": aiStatus}

	response := map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
		"uptime": time.Since(s.started).Round(time.Second).String(),
		"checks": checks,
		"version": map[string]string{
			"app": s.config.App.Version,
			"go":  "1.21",
		},
	}

	if status == "ok" {
		return c.JSON(http.StatusOK, response)
	}
	return c.JSON(http.StatusServiceUnavailable, response)
}

func (s *Server) readinessCheck(c echo.Context) error {
	if !s.deps.Store.Connected() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "store_not_connected",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// ServeHTTP lets the server be driven without a listener
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start starts the reminder job and the HTTP server
func (s *Server) Start(address string) error {
	s.logger.Infow("Starting server", "address", address)
	s.reminders.Start()

	s.echo.Server.ReadTimeout = s.config.Server.ReadTimeout
	s.echo.Server.IdleTimeout = s.config.Server.IdleTimeout
	// Event streams stay open, so no write timeout on the listener.
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server and the per-user workspaces
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infow("Shutting down server")
	s.reminders.Stop()
	err := s.echo.Shutdown(ctx)
	s.workspaces.Close()
	return err
}

// customErrorHandler handles HTTP errors
func customErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code = http.StatusInternalServerError
			msg  interface{}
		)

		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			msg = map[string]interface{}{"message": he.Message}
			if he.Internal != nil {
				err = fmt.Errorf("%v, %v", err, he.Internal)
			}
		} else if e, ok := err.(validator.ValidationErrors); ok {
			code = http.StatusBadRequest
			msg = map[string]string{"message": "validation failed", "details": e.Error()}
		} else {
			msg = map[string]string{"message": http.StatusText(code)}
		}

		if code >= http.StatusInternalServerError {
			logger.Errorw("Internal server error", "error", err.Error(), "path", c.Request().URL.Path)
		}

		// Send response
		if !c.Response().Committed {
			if c.Request().Method == http.MethodHead {
				err = c.NoContent(code)
			} else {
				err = c.JSON(code, msg)
			}
			if err != nil {
				logger.Errorw("Error sending response", "error", err.Error())
			}
		}
	}
}
