package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ophion/companion/internal/domain/entities"
	"github.com/ophion/companion/internal/infrastructure/logger"
	"github.com/ophion/companion/internal/ports"
)

// ErrInvalidProjectType is returned for a tab other than ALL, PERSONAL or GROUP
var ErrInvalidProjectType = errors.New("invalid project type")

// ProjectDetail is a project with the user's tasks filed under it
type ProjectDetail struct {
	entities.Project
	Tasks          []entities.Task `json:"tasks"`
	CompletedTasks int             `json:"completedTasks"`
}

// ProjectService handles project-related operations
type ProjectService struct {
	projectRepo ports.ProjectRepository
	workspaces  *WorkspaceService
	assistant   *AssistantService
	logger      *logger.Logger
}

// NewProjectService creates a new project service
func NewProjectService(projectRepo ports.ProjectRepository, workspaces *WorkspaceService, assistant *AssistantService, logger *logger.Logger) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		workspaces:  workspaces,
		assistant:   assistant,
		logger:      logger,
	}
}

// ParseProjectType maps the ALL|PERSONAL|GROUP tab to a filter value.
// ALL and the empty string mean no filter.
func ParseProjectType(tab string) (*entities.ProjectType, error) {
	var t entities.ProjectType
	switch strings.ToUpper(strings.TrimSpace(tab)) {
	case "", "ALL":
		return nil, nil
	case "PERSONAL":
		t = entities.ProjectTypePersonal
	case "GROUP":
		t = entities.ProjectTypeGroup
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidProjectType, tab)
	}
	return &t, nil
}

// ListProjects retrieves projects, optionally of one type
func (s *ProjectService) ListProjects(ctx context.Context, projectType *entities.ProjectType) ([]entities.Project, error) {
	projects, err := s.projectRepo.List(ctx, ports.ProjectFilter{Type: projectType})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// GetProject retrieves a project and the user's tasks that belong to it
func (s *ProjectService) GetProject(ctx context.Context, userID, id string) (*ProjectDetail, error) {
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &ProjectDetail{Project: *project, Tasks: []entities.Task{}}
	for _, t := range s.workspaces.Get(ctx, userID).Tasks() {
		if t.ProjectID != nil && *t.ProjectID == id {
			detail.Tasks = append(detail.Tasks, t)
			if t.Completed {
				detail.CompletedTasks++
			}
		}
	}
	return detail, nil
}

// Members lists everyone who can be assigned a task
func (s *ProjectService) Members(ctx context.Context) ([]entities.Member, error) {
	return s.projectRepo.Members(ctx)
}

// Health asks the assistant for a health check of the project
func (s *ProjectService) Health(ctx context.Context, userID, id string) (string, error) {
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	report := s.assistant.ProjectHealth(ctx, *project, s.workspaces.Get(ctx, userID).Tasks())
	s.logger.LogUserAction(userID, "project_health", map[string]interface{}{"project_id": id})
	return report, nil
}
