package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ophion/companion/internal/application/workspace"
	"github.com/ophion/companion/internal/domain/entities"
	"github.com/ophion/companion/internal/infrastructure/logger"
	"github.com/ophion/companion/internal/ports"
)

const (
	magicNoteColor = "bg-emerald-100 text-emerald-900"
	magicNoteDate  = "Daily Goal"
)

// MagicResult is what the one-click daily setup added
type MagicResult struct {
	Tasks []entities.Task `json:"tasks"`
	Note  *entities.Note  `json:"note,omitempty"`
}

// WorkspaceService keeps one live workspace per user
type WorkspaceService struct {
	store     ports.RemoteStore
	assistant *AssistantService
	opts      workspace.Options
	logger    *logger.Logger

	mu         sync.Mutex
	workspaces map[string]*workspaceEntry
}

// workspaceEntry is published before its workspace is started; ready is
// closed once the first Start returns.
type workspaceEntry struct {
	ws    *workspace.Workspace
	ready chan struct{}
}

// NewWorkspaceService creates a new workspace service
func NewWorkspaceService(store ports.RemoteStore, assistant *AssistantService, opts workspace.Options, logger *logger.Logger) *WorkspaceService {
	return &WorkspaceService{
		store:      store,
		assistant:  assistant,
		opts:       opts,
		logger:     logger,
		workspaces: make(map[string]*workspaceEntry),
	}
}

// Get returns the user's workspace, starting it on first use. Concurrent
// callers for the same user wait until that first start has finished. A
// store that cannot be reached leaves the workspace local-only.
func (s *WorkspaceService) Get(ctx context.Context, userID string) *workspace.Workspace {
	s.mu.Lock()
	entry, ok := s.workspaces[userID]
	if !ok {
		entry = &workspaceEntry{
			ws:    workspace.New(userID, s.store, s.opts, s.logger),
			ready: make(chan struct{}),
		}
		s.workspaces[userID] = entry
	}
	s.mu.Unlock()

	if ok {
		<-entry.ready
		return entry.ws
	}

	// subscriptions outlive the request that opened them
	if err := entry.ws.Start(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warnw("Workspace running locally", "user_id", userID, "error", err.Error())
	}
	close(entry.ready)
	return entry.ws
}

// Each calls fn for every open workspace in user order
func (s *WorkspaceService) Each(fn func(*workspace.Workspace)) {
	s.mu.Lock()
	list := make([]*workspace.Workspace, 0, len(s.workspaces))
	for _, entry := range s.workspaces {
		select {
		case <-entry.ready:
			list = append(list, entry.ws)
		default:
		}
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].UserID() < list[j].UserID() })
	for _, ws := range list {
		fn(ws)
	}
}

// Connected reports whether the store accepted the connection
func (s *WorkspaceService) Connected() bool {
	return s.store.Connected()
}

// GenerateTasks asks the assistant for tasks matching goal and adds them
func (s *WorkspaceService) GenerateTasks(ctx context.Context, userID, goal string) ([]entities.Task, error) {
	drafts := s.assistant.TasksFromPrompt(ctx, goal)
	created, err := s.Get(ctx, userID).CreateTasks(ctx, drafts)
	if err != nil {
		return created, fmt.Errorf("add generated tasks: %w", err)
	}

	s.logger.LogUserAction(userID, "generate_tasks", map[string]interface{}{"count": len(created)})
	return created, nil
}

// MagicSetup adds an AI daily plan and pins its motivational note
func (s *WorkspaceService) MagicSetup(ctx context.Context, userID, focus string) (*MagicResult, error) {
	plan := s.assistant.DailyPlan(ctx, focus)
	ws := s.Get(ctx, userID)

	created, err := ws.CreateTasks(ctx, plan.Tasks)
	if err != nil {
		return nil, fmt.Errorf("add planned tasks: %w", err)
	}
	result := &MagicResult{Tasks: created}

	if plan.Note != "" {
		x, y, rotation := 100.0, 100.0, 0.0
		note, err := ws.CreateNote(ctx, workspace.NoteDraft{
			Content:  plan.Note,
			Color:    magicNoteColor,
			Skin:     entities.SkinClassic,
			IsPinned: true,
			Date:     magicNoteDate,
			X:        &x,
			Y:        &y,
			Rotation: &rotation,
			Width:    250,
			Height:   200,
			Opacity:  1,
		})
		if err != nil {
			return result, fmt.Errorf("add plan note: %w", err)
		}
		result.Note = &note
	}

	s.logger.LogUserAction(userID, "magic_setup", map[string]interface{}{"tasks": len(created)})
	return result, nil
}

// Motivation picks a quote for the user's progress so far
func (s *WorkspaceService) Motivation(ctx context.Context, userID string) string {
	completed := 0
	for _, t := range s.Get(ctx, userID).Tasks() {
		if t.Completed {
			completed++
		}
	}
	return s.assistant.Motivation(ctx, completed)
}

// Close stops every workspace
func (s *WorkspaceService) Close() {
	s.mu.Lock()
	list := s.workspaces
	s.workspaces = make(map[string]*workspaceEntry)
	s.mu.Unlock()

	for _, entry := range list {
		entry.ws.Close()
	}
}
