package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ophion/companion/internal/application/board"
	"github.com/ophion/companion/internal/application/services"
	"github.com/ophion/companion/internal/application/workspace"
	"github.com/ophion/companion/internal/domain/entities"
	"github.com/ophion/companion/internal/infrastructure/logger"
)

// BoardHandler serves sticky notes and the pointer interaction on the board
type BoardHandler struct {
	boards     *services.BoardService
	workspaces *services.WorkspaceService
	logger     *logger.Logger
}

// NewBoardHandler creates a new board handler
func NewBoardHandler(boards *services.BoardService, workspaces *services.WorkspaceService, logger *logger.Logger) *BoardHandler {
	return &BoardHandler{
		boards:     boards,
		workspaces: workspaces,
		logger:     logger,
	}
}

func (h *BoardHandler) workspace(c echo.Context) *workspace.Workspace {
	return h.workspaces.Get(c.Request().Context(), userIDFromContext(c))
}

// ListNotes godoc
// @Summary List notes
// @Tags notes
// @Produce json
// @Success 200 {array} entities.Note
// @Security BearerAuth
// @Router /notes [get]
func (h *BoardHandler) ListNotes(c echo.Context) error {
	return c.JSON(http.StatusOK, h.workspace(c).Notes())
}

// CreateNote godoc
// @Summary Quick-add a note
// @Tags notes
// @Accept json
// @Produce json
// @Param request body CreateNoteRequest true "Note data"
// @Success 201 {object} entities.Note
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /notes [post]
func (h *BoardHandler) CreateNote(c echo.Context) error {
	var req CreateNoteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	note, err := h.boards.Create(c.Request().Context(), userIDFromContext(c), req.Draft())
	if err != nil {
		return h.fail(c, "Create note failed", err)
	}
	return c.JSON(http.StatusCreated, note)
}

// UpdateNote godoc
// @Summary Patch a note
// @Tags notes
// @Accept json
// @Produce json
// @Param id path string true "Note ID"
// @Param request body object true "Fields to change"
// @Success 200 {object} entities.Note
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /notes/{id} [patch]
func (h *BoardHandler) UpdateNote(c echo.Context) error {
	patch, err := bindPatch(c)
	if err != nil {
		return err
	}

	note, err := h.workspace(c).UpdateNote(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return h.fail(c, "Update note failed", err)
	}
	return c.JSON(http.StatusOK, note)
}

// DeleteNote godoc
// @Summary Delete a note
// @Tags notes
// @Param id path string true "Note ID"
// @Success 204
// @Security BearerAuth
// @Router /notes/{id} [delete]
func (h *BoardHandler) DeleteNote(c echo.Context) error {
	if err := h.workspace(c).DeleteNote(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, "Delete note failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CompleteNote godoc
// @Summary Mark a note done and remove it
// @Tags notes
// @Param id path string true "Note ID"
// @Success 204
// @Security BearerAuth
// @Router /notes/{id}/complete [post]
func (h *BoardHandler) CompleteNote(c echo.Context) error {
	if err := h.boards.Complete(c.Request().Context(), userIDFromContext(c), c.Param("id")); err != nil {
		return h.fail(c, "Complete note failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *BoardHandler) TogglePin(c echo.Context) error {
	note, err := h.workspace(c).TogglePin(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "Toggle pin failed", err)
	}
	return c.JSON(http.StatusOK, note)
}

func (h *BoardHandler) CycleSkin(c echo.Context) error {
	note, err := h.boards.CycleSkin(c.Request().Context(), userIDFromContext(c), c.Param("id"))
	if err != nil {
		return h.fail(c, "Cycle skin failed", err)
	}
	return c.JSON(http.StatusOK, note)
}

func (h *BoardHandler) CycleColor(c echo.Context) error {
	note, err := h.boards.CycleColor(c.Request().Context(), userIDFromContext(c), c.Param("id"))
	if err != nil {
		return h.fail(c, "Cycle color failed", err)
	}
	return c.JSON(http.StatusOK, note)
}

// SetOpacity godoc
// @Summary Set note opacity, clamped to 0.1..1
// @Tags notes
// @Accept json
// @Produce json
// @Param id path string true "Note ID"
// @Param request body OpacityRequest true "Opacity"
// @Success 200 {object} entities.Note
// @Security BearerAuth
// @Router /notes/{id}/opacity [post]
func (h *BoardHandler) SetOpacity(c echo.Context) error {
	var req OpacityRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	note, err := h.boards.SetOpacity(c.Request().Context(), userIDFromContext(c), c.Param("id"), *req.Opacity)
	if err != nil {
		return h.fail(c, "Set opacity failed", err)
	}
	return c.JSON(http.StatusOK, note)
}

// Dictation godoc
// @Summary Append a spoken transcript to a note
// @Tags notes
// @Accept json
// @Produce json
// @Param id path string true "Note ID"
// @Param request body DictationRequest true "Transcript"
// @Success 200 {object} entities.Note
// @Security BearerAuth
// @Router /notes/{id}/dictation [post]
func (h *BoardHandler) Dictation(c echo.Context) error {
	var req DictationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	note, err := h.boards.AppendDictation(c.Request().Context(), userIDFromContext(c), c.Param("id"), req.Transcript)
	if err != nil {
		return h.fail(c, "Dictation failed", err)
	}
	return c.JSON(http.StatusOK, note)
}

// Enhance godoc
// @Summary Let the assistant pick priority and colour
// @Description The note is returned unchanged when the assistant is unavailable
// @Tags notes
// @Produce json
// @Param id path string true "Note ID"
// @Success 200 {object} entities.Note
// @Security BearerAuth
// @Router /notes/{id}/enhance [post]
func (h *BoardHandler) Enhance(c echo.Context) error {
	note, err := h.boards.Enhance(c.Request().Context(), userIDFromContext(c), c.Param("id"))
	if err != nil {
		return h.fail(c, "Enhance failed", err)
	}
	return c.JSON(http.StatusOK, note)
}

// Analyze godoc
// @Summary Suggest a task and a summary for a note
// @Tags notes
// @Produce json
// @Param id path string true "Note ID"
// @Success 200 {object} services.NoteAnalysis
// @Security BearerAuth
// @Router /notes/{id}/analyze [post]
func (h *BoardHandler) Analyze(c echo.Context) error {
	analysis, err := h.boards.Analyze(c.Request().Context(), userIDFromContext(c), c.Param("id"))
	if err != nil {
		return h.fail(c, "Analyze failed", err)
	}
	return c.JSON(http.StatusOK, analysis)
}

// GetBoard godoc
// @Summary Interaction state of the board
// @Tags board
// @Produce json
// @Success 200 {object} BoardStateResponse
// @Security BearerAuth
// @Router /board [get]
func (h *BoardHandler) GetBoard(c echo.Context) error {
	engine := h.boards.Engine(userIDFromContext(c))
	pending, _ := engine.PendingConversion()
	return c.JSON(http.StatusOK, BoardStateResponse{
		State:             engine.State(),
		ZoneActive:        engine.ZoneActive(),
		PendingConversion: pending,
	})
}

// BeginDrag godoc
// @Summary Grab a note
// @Tags board
// @Accept json
// @Param request body GestureRequest true "Note and pointer"
// @Success 204
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /board/drag [post]
func (h *BoardHandler) BeginDrag(c echo.Context) error {
	var req GestureRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	h.applyHeight(c, req.BoardHeight)

	if err := h.boards.BeginDrag(c.Request().Context(), userIDFromContext(c), req.NoteID, req.Pointer()); err != nil {
		return h.fail(c, "Begin drag failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// BeginResize godoc
// @Summary Grab the resize handle of a note
// @Tags board
// @Accept json
// @Param request body GestureRequest true "Note and pointer"
// @Success 204
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /board/resize [post]
func (h *BoardHandler) BeginResize(c echo.Context) error {
	var req GestureRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	h.applyHeight(c, req.BoardHeight)

	if err := h.boards.BeginResize(c.Request().Context(), userIDFromContext(c), req.NoteID, req.Pointer()); err != nil {
		return h.fail(c, "Begin resize failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Move godoc
// @Summary Follow the pointer
// @Tags board
// @Accept json
// @Produce json
// @Param request body board.Point true "Pointer"
// @Success 200 {object} board.Effect
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /board/move [post]
func (h *BoardHandler) Move(c echo.Context) error {
	var p board.Point
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	fx, err := h.boards.Move(c.Request().Context(), userIDFromContext(c), p)
	if err != nil {
		return h.fail(c, "Move failed", err)
	}
	return c.JSON(http.StatusOK, fx)
}

// Release godoc
// @Summary Drop the note
// @Description A drop in the convert zone asks for confirmation before the note becomes a task
// @Tags board
// @Produce json
// @Success 200 {object} services.ReleaseResult
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /board/release [post]
func (h *BoardHandler) Release(c echo.Context) error {
	res, err := h.boards.Release(c.Request().Context(), userIDFromContext(c))
	if err != nil {
		return h.fail(c, "Release failed", err)
	}
	return c.JSON(http.StatusOK, res)
}

// ConfirmConversion godoc
// @Summary Turn the dropped note into a task
// @Tags board
// @Produce json
// @Success 201 {object} entities.Task
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /board/conversion/confirm [post]
func (h *BoardHandler) ConfirmConversion(c echo.Context) error {
	task, err := h.boards.ConfirmConversion(c.Request().Context(), userIDFromContext(c))
	if err != nil {
		return h.fail(c, "Convert note failed", err)
	}
	return c.JSON(http.StatusCreated, task)
}

// CancelConversion godoc
// @Summary Keep the dropped note
// @Tags board
// @Success 204
// @Failure 409 {object} ErrorResponse
// @Security BearerAuth
// @Router /board/conversion/cancel [post]
func (h *BoardHandler) CancelConversion(c echo.Context) error {
	if err := h.boards.CancelConversion(userIDFromContext(c)); err != nil {
		return h.fail(c, "Cancel conversion failed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *BoardHandler) applyHeight(c echo.Context, height float64) {
	if height > 0 {
		h.boards.SetBoardHeight(userIDFromContext(c), height)
	}
}

func (h *BoardHandler) fail(c echo.Context, msg string, err error) error {
	return failWith(h.logger, c, msg, err)
}

// Request/Response types
type CreateNoteRequest struct {
	Content  string   `json:"content" validate:"required,max=5000"`
	Color    string   `json:"color"`
	Skin     string   `json:"skin" validate:"omitempty,oneof=CLASSIC HOLOGRAPHIC CYBERPUNK MINIMAL GLASS"`
	Priority string   `json:"priority" validate:"omitempty,oneof=High Medium Low"`
	X        *float64 `json:"x"`
	Y        *float64 `json:"y"`
}

// Draft converts the request into a workspace draft
func (r CreateNoteRequest) Draft() workspace.NoteDraft {
	return workspace.NoteDraft{
		Content:  r.Content,
		Color:    r.Color,
		Skin:     entities.NoteSkin(r.Skin),
		Priority: entities.Priority(r.Priority),
		X:        r.X,
		Y:        r.Y,
	}
}

type OpacityRequest struct {
	Opacity *float64 `json:"opacity" validate:"required"`
}

type DictationRequest struct {
	Transcript string `json:"transcript" validate:"required"`
}

type GestureRequest struct {
	NoteID      string  `json:"noteId" validate:"required"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	BoardHeight float64 `json:"boardHeight" validate:"gte=0"`
}

func (r GestureRequest) Pointer() board.Point {
	return board.Point{X: r.X, Y: r.Y}
}

type BoardStateResponse struct {
	State             board.State `json:"state"`
	ZoneActive        bool        `json:"zoneActive"`
	PendingConversion string      `json:"pendingConversion,omitempty"`
}
