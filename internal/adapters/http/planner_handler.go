package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ophion/companion/internal/application/services"
	"github.com/ophion/companion/internal/infrastructure/logger"
)

// PlannerHandler serves the weekly planner
type PlannerHandler struct {
	planner *services.PlannerService
	logger  *logger.Logger
}

// NewPlannerHandler creates a new planner handler
func NewPlannerHandler(planner *services.PlannerService, logger *logger.Logger) *PlannerHandler {
	return &PlannerHandler{
		planner: planner,
		logger:  logger,
	}
}

// GetWeek godoc
// @Summary Week view of the planner
// @Description Monday-start week with backlog, scheduled blocks on the 06:00-22:00 grid and per-day intensity
// @Tags planner
// @Produce json
// @Param date query string false "Any day of the week (YYYY-MM-DD), defaults to today"
// @Success 200 {object} services.Week
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /planner/week [get]
func (h *PlannerHandler) GetWeek(c echo.Context) error {
	date := time.Now()
	if raw := c.QueryParam("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid date parameter")
		}
		date = parsed
	}

	return c.JSON(http.StatusOK, h.planner.Week(c.Request().Context(), userIDFromContext(c), date))
}

// Reschedule godoc
// @Summary Let the assistant slot the backlog into the week
// @Tags planner
// @Produce json
// @Success 200 {array} entities.Task
// @Security BearerAuth
// @Router /planner/reschedule [post]
func (h *PlannerHandler) Reschedule(c echo.Context) error {
	tasks, err := h.planner.Reschedule(c.Request().Context(), userIDFromContext(c))
	if err != nil {
		return failWith(h.logger, c, "Reschedule failed", err)
	}
	return c.JSON(http.StatusOK, tasks)
}
