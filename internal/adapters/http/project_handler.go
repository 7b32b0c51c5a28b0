package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ophion/companion/internal/application/services"
	"github.com/ophion/companion/internal/infrastructure/logger"
)

// ProjectHandler handles project-related requests
type ProjectHandler struct {
	projectService *services.ProjectService
	logger         *logger.Logger
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(projectService *services.ProjectService, logger *logger.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		logger:         logger,
	}
}

// ListProjects godoc
// @Summary List projects
// @Description List projects, optionally only personal or group ones
// @Tags projects
// @Produce json
// @Param type query string false "ALL, PERSONAL or GROUP"
// @Success 200 {array} entities.Project
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects [get]
func (h *ProjectHandler) ListProjects(c echo.Context) error {
	projectType, err := services.ParseProjectType(c.QueryParam("type"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid type parameter")
	}

	projects, err := h.projectService.ListProjects(c.Request().Context(), projectType)
	if err != nil {
		return failWith(h.logger, c, "List projects failed", err)
	}
	return c.JSON(http.StatusOK, projects)
}

// GetProject godoc
// @Summary Get project by ID
// @Description Get a project together with the caller's tasks filed under it
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} services.ProjectDetail
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects/{id} [get]
func (h *ProjectHandler) GetProject(c echo.Context) error {
	project, err := h.projectService.GetProject(c.Request().Context(), userIDFromContext(c), c.Param("id"))
	if err != nil {
		return failWith(h.logger, c, "Get project failed", err)
	}
	return c.JSON(http.StatusOK, project)
}

// ListMembers godoc
// @Summary List people who can be assigned tasks
// @Tags projects
// @Produce json
// @Success 200 {array} entities.Member
// @Security BearerAuth
// @Router /members [get]
func (h *ProjectHandler) ListMembers(c echo.Context) error {
	members, err := h.projectService.Members(c.Request().Context())
	if err != nil {
		return failWith(h.logger, c, "List members failed", err)
	}
	return c.JSON(http.StatusOK, members)
}

// Health godoc
// @Summary Assistant health check of a project
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} TextResponse
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/health [post]
func (h *ProjectHandler) Health(c echo.Context) error {
	report, err := h.projectService.Health(c.Request().Context(), userIDFromContext(c), c.Param("id"))
	if err != nil {
		return failWith(h.logger, c, "Project health failed", err)
	}
	return c.JSON(http.StatusOK, TextResponse{Text: report})
}
