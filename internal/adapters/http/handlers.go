package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ophion/companion/internal/application/services"
	"github.com/ophion/companion/internal/domain/entities"
	"github.com/ophion/companion/internal/domain/themes"
	"github.com/ophion/companion/internal/infrastructure/logger"
	"github.com/ophion/companion/internal/ports"
)

// Context keys set by the auth middleware
const (
	ContextUserID   = "user"
	ContextUserName = "user_name"
)

// SessionHandler starts guest sessions
type SessionHandler struct {
	identityService *services.IdentityService
	logger          *logger.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(identityService *services.IdentityService, logger *logger.Logger) *SessionHandler {
	return &SessionHandler{
		identityService: identityService,
		logger:          logger,
	}
}

// StartSession godoc
// @Summary Start a guest session
// @Description Issue a bearer token for a device identity, creating a guest id when none is given
// @Tags session
// @Accept json
// @Produce json
// @Param request body SessionRequest false "Device identity"
// @Success 201 {object} services.Session
// @Router /session [post]
func (h *SessionHandler) StartSession(c echo.Context) error {
	var req SessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	session, err := h.identityService.StartSession(req.GuestID, req.DisplayName)
	if err != nil {
		return h.fail(c, "Start session failed", err)
	}
	return c.JSON(http.StatusCreated, session)
}

// Rename godoc
// @Summary Set the display name
// @Tags session
// @Accept json
// @Produce json
// @Param request body RenameRequest true "Display name"
// @Success 200 {object} services.Session
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /session/name [put]
func (h *SessionHandler) Rename(c echo.Context) error {
	var req RenameRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	userID := userIDFromContext(c)
	session, err := h.identityService.RenameSession(userID, req.DisplayName)
	if err != nil {
		return h.fail(c, "Rename failed", err)
	}

	h.logger.LogUserAction(userID, "rename", nil)
	return c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) fail(c echo.Context, msg string, err error) error {
	return failWith(h.logger, c, msg, err)
}

// ThemeHandler serves the theme registry
type ThemeHandler struct{}

func NewThemeHandler() *ThemeHandler {
	return &ThemeHandler{}
}

// ListThemes godoc
// @Summary List themes
// @Tags themes
// @Produce json
// @Param type query string false "STATIC or LIVE"
// @Success 200 {array} themes.Theme
// @Router /themes [get]
func (h *ThemeHandler) ListThemes(c echo.Context) error {
	list := themes.All()
	if t := strings.ToUpper(c.QueryParam("type")); t != "" {
		list = append([]themes.Theme{}, themes.ByType(themes.Type(t))...)
	}
	return c.JSON(http.StatusOK, list)
}

// GetTheme godoc
// @Summary Get a theme
// @Tags themes
// @Produce json
// @Param id path string true "Theme ID"
// @Success 200 {object} themes.Theme
// @Failure 404 {object} ErrorResponse
// @Router /themes/{id} [get]
func (h *ThemeHandler) GetTheme(c echo.Context) error {
	theme, err := themes.Lookup(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Theme not found")
	}
	return c.JSON(http.StatusOK, theme)
}

// Utility functions and helper types

func userIDFromContext(c echo.Context) string {
	userID, _ := c.Get(ContextUserID).(string)
	return userID
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// StatusFor maps domain errors to HTTP status codes
func StatusFor(err error) int {
	switch {
	case errors.Is(err, entities.ErrTaskNotFound),
		errors.Is(err, entities.ErrNoteNotFound),
		errors.Is(err, entities.ErrProjectNotFound),
		errors.Is(err, entities.ErrThemeNotFound):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrInvalidTransition),
		errors.Is(err, entities.ErrNoPendingConversion):
		return http.StatusConflict
	case errors.Is(err, entities.ErrEmptyTitle),
		errors.Is(err, entities.ErrEmptyContent),
		errors.Is(err, entities.ErrInvalidDisplayName),
		errors.Is(err, entities.ErrUnknownField),
		errors.Is(err, entities.ErrRequiredField):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrInvalidProjectType):
		return http.StatusBadRequest
	case errors.Is(err, ports.ErrStoreDisconnected):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// failWith logs err and converts it to an HTTP error. Client errors keep
// their message; everything else is reported generically.
func failWith(log *logger.Logger, c echo.Context, msg string, err error) error {
	code := StatusFor(err)
	fields := []interface{}{"error", err.Error(), "user_id", userIDFromContext(c), "path", c.Path()}
	if code >= http.StatusInternalServerError {
		log.Errorw(msg, fields...)
		return echo.NewHTTPError(code, msg).SetInternal(err)
	}
	log.Warnw(msg, fields...)
	return echo.NewHTTPError(code, err.Error())
}

// Request/Response types
type SessionRequest struct {
	GuestID     string `json:"guestId"`
	DisplayName string `json:"displayName"`
}

type RenameRequest struct {
	DisplayName string `json:"displayName" validate:"required,max=64"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
