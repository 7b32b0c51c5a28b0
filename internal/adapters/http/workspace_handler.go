package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ophion/companion/internal/application/services"
	"github.com/ophion/companion/internal/application/workspace"
	"github.com/ophion/companion/internal/domain/entities"
	"github.com/ophion/companion/internal/infrastructure/logger"
)

// Reminder buffer per connection. Views never queue: a slow consumer
// only ever sees the newest one.
const reminderBuffer = 16

// WorkspaceHandler serves the dashboard, task list and derived views
type WorkspaceHandler struct {
	workspaces *services.WorkspaceService
	analytics  *services.AnalyticsService
	wrapped    *services.WrappedService
	logger     *logger.Logger

	// PingInterval is how often an idle event stream sends a comment
	PingInterval time.Duration
}

// NewWorkspaceHandler creates a new workspace handler
func NewWorkspaceHandler(workspaces *services.WorkspaceService, analytics *services.AnalyticsService, wrapped *services.WrappedService, logger *logger.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{
		workspaces:   workspaces,
		analytics:    analytics,
		wrapped:      wrapped,
		logger:       logger,
		PingInterval: 15 * time.Second,
	}
}

func (h *WorkspaceHandler) workspace(c echo.Context) *workspace.Workspace {
	return h.workspaces.Get(c.Request().Context(), userIDFromContext(c))
}

// GetView godoc
// @Summary Current workspace view
// @Tags workspace
// @Produce json
// @Success 200 {object} workspace.View
// @Security BearerAuth
// @Router /workspace [get]
func (h *WorkspaceHandler) GetView(c echo.Context) error {
	return c.JSON(http.StatusOK, h.workspace(c).View())
}

// Events godoc
// @Summary Stream workspace views
// @Description Server-Sent Events: a view event after every change and reminder events for tasks starting now
// @Tags workspace
// @Produce text/event-stream
// @Security BearerAuth
// @Router /workspace/events [get]
func (h *WorkspaceHandler) Events(c echo.Context) error {
	ctx := c.Request().Context()
	ws := h.workspace(c)

	latest := newViewSlot()
	reminders := make(chan *entities.Task, reminderBuffer)
	cancel := ws.Watch(func(e workspace.Event) {
		switch e.Type {
		case workspace.EventView:
			latest.offer(e.View)
		case workspace.EventReminder:
			select {
			case reminders <- e.Task:
			default:
			}
		}
	})
	defer cancel()

	stream := openEventStream(c)
	view := ws.View()
	if err := stream.send(string(workspace.EventView), view); err != nil {
		return nil
	}

	ping := time.NewTicker(h.PingInterval)
	defer ping.Stop()

	last := view.Version
	for {
		var err error
		select {
		case <-ctx.Done():
			return nil
		case <-ping.C:
			err = stream.ping()
		case <-latest.ready:
			v := latest.take()
			if v == nil || v.Version <= last {
				continue
			}
			last = v.Version
			err = stream.send(string(workspace.EventView), v)
		case task := <-reminders:
			err = stream.send(string(workspace.EventReminder), task)
		}
		if err != nil {
			h.logger.Debugw("Event stream closed", "user_id", userIDFromContext(c), "error", err.Error())
			return nil
		}
	}
}

// Motivation godoc
// @Summary Motivational quote for the dashboard
// @Tags workspace
// @Produce json
// @Success 200 {object} TextResponse
// @Security BearerAuth
// @Router /workspace/motivation [get]
func (h *WorkspaceHandler) Motivation(c echo.Context) error {
	text := h.workspaces.Motivation(c.Request().Context(), userIDFromContext(c))
	return c.JSON(http.StatusOK, TextResponse{Text: text})
}

// ListTasks godoc
// @Summary List tasks, newest first
// @Tags tasks
// @Produce json
// @Success 200 {array} entities.Task
// @Security BearerAuth
// @Router /tasks [get]
func (h *WorkspaceHandler) ListTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, h.workspace(c).Tasks())
}

// CreateTask godoc
// @Summary Create a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body CreateTaskRequest true "Task data"
// @Success 201 {object} entities.Task
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks [post]
func (h *WorkspaceHandler) CreateTask(c echo.Context) error {
	var req CreateTaskRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	task, err := h.workspace(c).CreateTask(c.Request().Context(), req.Draft())
	if err != nil {
		return h.fail(c, "Create task failed", err)
	}
	return c.JSON(http.StatusCreated, task)
}

// GenerateTasks godoc
// @Summary Create tasks from a goal with the assistant
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body GenerateTasksRequest true "Goal"
// @Success 201 {array} entities.Task
// @Security BearerAuth
// @Router /tasks/generate [post]
func (h *WorkspaceHandler) GenerateTasks(c echo.Context) error {
	var req GenerateTasksRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	tasks, err := h.workspaces.GenerateTasks(c.Request().Context(), userIDFromContext(c), req.Goal)
	if err != nil {
		return h.fail(c, "Generate tasks failed", err)
	}
	return c.JSON(http.StatusCreated, tasks)
}

// MagicSetup godoc
// @Summary One-click daily plan
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body MagicRequest false "Focus area"
// @Success 201 {object} services.MagicResult
// @Security BearerAuth
// @Router /tasks/magic [post]
func (h *WorkspaceHandler) MagicSetup(c echo.Context) error {
	var req MagicRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	result, err := h.workspaces.MagicSetup(c.Request().Context(), userIDFromContext(c), req.Focus)
	if err != nil {
		return h.fail(c, "Magic setup failed", err)
	}
	return c.JSON(http.StatusCreated, result)
}

// UpdateTask godoc
// @Summary Patch a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body object true "Fields to change"
// @Success 200 {object} entities.Task
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Security BearerAuth
// @Router /tasks/{id} [patch]
func (h *WorkspaceHandler) UpdateTask(c echo.Context) error {
	patch, err := bindPatch(c)
	if err != nil {
		return err
	}

	task, err := h.workspace(c).UpdateTask(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return h.fail(c, "Update task failed", err)
	}
	return c.JSON(http.StatusOK, task)
}

// ToggleTask godoc
// @Summary Toggle completion
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} entities.Task
// @Security BearerAuth
// @Router /tasks/{id}/toggle [post]
func (h *WorkspaceHandler) ToggleTask(c echo.Context) error {
	task, err := h.workspace(c).ToggleTask(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "Toggle task failed", err)
	}
	return c.JSON(http.StatusOK, task)
}

// ToggleTimer godoc
// @Summary Start or stop the task timer
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} entities.Task
// @Security BearerAuth
// @Router /tasks/{id}/timer [post]
func (h *WorkspaceHandler) ToggleTimer(c echo.Context) error {
	task, err := h.workspace(c).ToggleTimer(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "Toggle timer failed", err)
	}
	return c.JSON(http.StatusOK, task)
}

// ResetTimer godoc
// @Summary Stop the timer and clear the tracked time
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} entities.Task
// @Security BearerAuth
// @Router /tasks/{id}/timer/reset [post]
func (h *WorkspaceHandler) ResetTimer(c echo.Context) error {
	task, err := h.workspace(c).ResetTimer(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "Reset timer failed", err)
	}
	return c.JSON(http.StatusOK, task)
}

// DeleteTask godoc
// @Summary Delete a task
// @Tags tasks
// @Param id path string true "Task ID"
// @Success 204
// @Security BearerAuth
// @Router /tasks/{id} [delete]
func (h *WorkspaceHandler) DeleteTask(c echo.Context) error {
	if err := h.workspace(c).DeleteTask(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, "Delete task failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Analytics godoc
// @Summary Progress, category distribution and weekday breakdown
// @Tags analytics
// @Produce json
// @Success 200 {object} services.Analytics
// @Security BearerAuth
// @Router /analytics [get]
func (h *WorkspaceHandler) Analytics(c echo.Context) error {
	return c.JSON(http.StatusOK, h.analytics.Summary(c.Request().Context(), userIDFromContext(c)))
}

// Wrapped godoc
// @Summary Year in review
// @Tags wrapped
// @Produce json
// @Success 200 {object} services.WrappedReport
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /wrapped [get]
func (h *WorkspaceHandler) Wrapped(c echo.Context) error {
	report, err := h.wrapped.Generate(c.Request().Context(), userIDFromContext(c))
	if err != nil {
		return h.fail(c, "Wrapped failed", err)
	}
	if report.Story == nil {
		return echo.NewHTTPError(http.StatusNotFound, "wrapped unavailable")
	}
	return c.JSON(http.StatusOK, report)
}

func (h *WorkspaceHandler) fail(c echo.Context, msg string, err error) error {
	return failWith(h.logger, c, msg, err)
}

// bindPatch decodes a JSON object body. Path parameters are not merged in.
func bindPatch(c echo.Context) (entities.Patch, error) {
	patch := entities.Patch{}
	if err := (&echo.DefaultBinder{}).BindBody(c, &patch); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if len(patch) == 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Empty patch")
	}
	return patch, nil
}

// Request/Response types
type CreateTaskRequest struct {
	Title      string  `json:"title" validate:"required,max=200"`
	Category   string  `json:"category" validate:"omitempty,oneof=Work Personal Health Growth"`
	Priority   string  `json:"priority" validate:"omitempty,oneof=High Medium Low"`
	DueDate    string  `json:"dueDate" validate:"max=32"`
	StartTime  string  `json:"startTime" validate:"omitempty,datetime=15:04"`
	EndTime    string  `json:"endTime" validate:"omitempty,datetime=15:04"`
	Day        string  `json:"day" validate:"omitempty,oneof=Mon Tue Wed Thu Fri Sat Sun"`
	ProjectID  *string `json:"projectId"`
	AssignedTo *string `json:"assignedTo"`
}

// Draft converts the request into a workspace draft
func (r CreateTaskRequest) Draft() workspace.TaskDraft {
	return workspace.TaskDraft{
		Title:      r.Title,
		Category:   entities.Category(r.Category),
		Priority:   entities.Priority(r.Priority),
		DueDate:    r.DueDate,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		Day:        r.Day,
		ProjectID:  r.ProjectID,
		AssignedTo: r.AssignedTo,
	}
}

type GenerateTasksRequest struct {
	Goal string `json:"goal" validate:"required,max=2000"`
}

type MagicRequest struct {
	Focus string `json:"focus"`
}

type TextResponse struct {
	Text string `json:"text"`
}
