package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ophion/companion/internal/application/board"
	"github.com/ophion/companion/internal/application/workspace"
	"github.com/ophion/companion/internal/domain/entities"
	"github.com/ophion/companion/internal/infrastructure/logger"
)

// Opacity bounds of a note
const (
	MinNoteOpacity = 0.1
	MaxNoteOpacity = 1.0
)

// ReleaseResult is what a pointer release did to the board
type ReleaseResult struct {
	board.Outcome
	Note *entities.Note `json:"note,omitempty"`
}

// BoardService binds one interaction engine per user to their workspace
type BoardService struct {
	workspaces *WorkspaceService
	assistant  *AssistantService
	geometry   board.Geometry
	logger     *logger.Logger

	mu      sync.Mutex
	engines map[string]*board.Engine
}

// NewBoardService creates a new board service
func NewBoardService(workspaces *WorkspaceService, assistant *AssistantService, geometry board.Geometry, logger *logger.Logger) *BoardService {
	return &BoardService{
		workspaces: workspaces,
		assistant:  assistant,
		geometry:   geometry,
		logger:     logger,
		engines:    make(map[string]*board.Engine),
	}
}

// Engine returns the user's interaction engine
func (s *BoardService) Engine(userID string) *board.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.engines[userID]
	if !ok {
		e = board.NewEngine(s.geometry)
		s.engines[userID] = e
	}
	return e
}

// BeginDrag grabs a note at pointer
func (s *BoardService) BeginDrag(ctx context.Context, userID, noteID string, pointer board.Point) error {
	note, err := s.workspaces.Get(ctx, userID).Note(noteID)
	if err != nil {
		return err
	}
	return s.Engine(userID).BeginDrag(note, pointer)
}

// BeginResize grabs the resize handle of a note at pointer
func (s *BoardService) BeginResize(ctx context.Context, userID, noteID string, pointer board.Point) error {
	note, err := s.workspaces.Get(ctx, userID).Note(noteID)
	if err != nil {
		return err
	}
	return s.Engine(userID).BeginResize(note, pointer)
}

// Move follows the pointer and shows the note at its new place
func (s *BoardService) Move(ctx context.Context, userID string, pointer board.Point) (board.Effect, error) {
	fx, err := s.Engine(userID).Move(pointer)
	if err != nil {
		return fx, err
	}
	if _, err := s.workspaces.Get(ctx, userID).UpdateNote(ctx, fx.NoteID, geometryPatch(fx)); err != nil {
		return fx, err
	}
	return fx, nil
}

// Release drops the note. A drop in the convert zone only asks for
// confirmation; nothing is converted yet.
func (s *BoardService) Release(ctx context.Context, userID string) (*ReleaseResult, error) {
	out, err := s.Engine(userID).Release()
	if err != nil {
		return nil, err
	}

	note, err := s.workspaces.Get(ctx, userID).UpdateNote(ctx, out.NoteID, geometryPatch(out.Effect))
	if err != nil {
		return &ReleaseResult{Outcome: out}, err
	}
	return &ReleaseResult{Outcome: out, Note: &note}, nil
}

func geometryPatch(fx board.Effect) entities.Patch {
	return entities.Patch{"x": fx.X, "y": fx.Y, "width": fx.Width, "height": fx.Height}
}

// ConfirmConversion turns the pending note into a task
func (s *BoardService) ConfirmConversion(ctx context.Context, userID string) (entities.Task, error) {
	noteID, err := s.Engine(userID).ConfirmConversion()
	if err != nil {
		return entities.Task{}, err
	}

	task, err := s.workspaces.Get(ctx, userID).ConvertNoteToTask(ctx, noteID)
	if err != nil {
		return task, err
	}
	s.logger.LogUserAction(userID, "convert_note", map[string]interface{}{"note_id": noteID, "task_id": task.ID})
	return task, nil
}

// CancelConversion keeps the note where it was dropped
func (s *BoardService) CancelConversion(userID string) error {
	return s.Engine(userID).CancelConversion()
}

// SetBoardHeight records the rendered height for the zone test
func (s *BoardService) SetBoardHeight(userID string, height float64) {
	s.Engine(userID).SetBoardHeight(height)
}

func (s *BoardService) CycleSkin(ctx context.Context, userID, noteID string) (entities.Note, error) {
	ws := s.workspaces.Get(ctx, userID)
	note, err := ws.Note(noteID)
	if err != nil {
		return note, err
	}
	return ws.UpdateNote(ctx, noteID, entities.Patch{"skin": board.NextSkin(note.Skin)})
}

func (s *BoardService) CycleColor(ctx context.Context, userID, noteID string) (entities.Note, error) {
	ws := s.workspaces.Get(ctx, userID)
	note, err := ws.Note(noteID)
	if err != nil {
		return note, err
	}
	return ws.UpdateNote(ctx, noteID, entities.Patch{"color": board.NextColor(note.Color)})
}

// SetOpacity clamps opacity to [0.1, 1]
func (s *BoardService) SetOpacity(ctx context.Context, userID, noteID string, opacity float64) (entities.Note, error) {
	if opacity < MinNoteOpacity {
		opacity = MinNoteOpacity
	}
	if opacity > MaxNoteOpacity {
		opacity = MaxNoteOpacity
	}
	return s.workspaces.Get(ctx, userID).UpdateNote(ctx, noteID, entities.Patch{"opacity": opacity})
}

// AppendDictation adds a spoken transcript to the end of the note
func (s *BoardService) AppendDictation(ctx context.Context, userID, noteID, transcript string) (entities.Note, error) {
	ws := s.workspaces.Get(ctx, userID)
	note, err := ws.Note(noteID)
	if err != nil {
		return note, err
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return note, nil
	}
	return ws.UpdateNote(ctx, noteID, entities.Patch{"content": note.Content + " " + transcript})
}

// Complete removes a done note from the board
func (s *BoardService) Complete(ctx context.Context, userID, noteID string) error {
	return s.workspaces.Get(ctx, userID).DeleteNote(ctx, noteID)
}

// Enhance lets the assistant pick priority and colour. Any failure leaves
// the note as it was.
func (s *BoardService) Enhance(ctx context.Context, userID, noteID string) (entities.Note, error) {
	ws := s.workspaces.Get(ctx, userID)
	note, err := ws.Note(noteID)
	if err != nil {
		return note, err
	}

	insight, err := s.assistant.SmartAnalyzeNote(ctx, note.Content)
	if err != nil {
		return note, nil
	}

	updated, err := ws.UpdateNote(ctx, noteID, entities.Patch{
		"priority": insight.Priority,
		"color":    insight.SuggestedColor,
	})
	if err != nil {
		s.logger.Warnw("Smart enhance not saved", "user_id", userID, "note_id", noteID, "error", err.Error())
		return note, nil
	}
	return updated, nil
}

// Analyze suggests a task and a summary for the note
func (s *BoardService) Analyze(ctx context.Context, userID, noteID string) (NoteAnalysis, error) {
	note, err := s.workspaces.Get(ctx, userID).Note(noteID)
	if err != nil {
		return NoteAnalysis{}, err
	}
	return s.assistant.AnalyzeNote(ctx, note.Content), nil
}

// Create adds a note from the quick-add form
func (s *BoardService) Create(ctx context.Context, userID string, draft workspace.NoteDraft) (entities.Note, error) {
	note, err := s.workspaces.Get(ctx, userID).CreateNote(ctx, draft)
	if err != nil {
		return note, fmt.Errorf("create note: %w", err)
	}
	return note, nil
}
