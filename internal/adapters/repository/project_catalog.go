package repository

import (
	"context"
	"fmt"

	"github.com/ophion/companion/internal/domain/entities"
	"github.com/ophion/companion/internal/ports"
)

var sampleMembers = []entities.Member{
	{ID: "m1", Name: "You", Role: entities.MemberRoleOwner, Avatar: "ME"},
	{ID: "m2", Name: "Sarah J.", Role: entities.MemberRoleContributor, Avatar: "SJ"},
	{ID: "m3", Name: "Mike R.", Role: entities.MemberRoleManager, Avatar: "MR"},
	{ID: "m4", Name: "Alex T.", Role: entities.MemberRoleContributor, Avatar: "AT"},
}

var sampleProjects = []entities.Project{
	{
		ID:          "p1",
		Title:       "Website Redesign",
		Type:        entities.ProjectTypeGroup,
		Description: "Overhaul the main landing page with new branding.",
		Members:     []entities.Member{sampleMembers[0], sampleMembers[1], sampleMembers[2]},
		Status:      entities.ProjectStatusActive,
		Progress:    65,
		DueDate:     "2023-12-01",
	},
	{
		ID:          "p2",
		Title:       "Learn Guitar",
		Type:        entities.ProjectTypePersonal,
		Description: "Master 5 songs by end of year.",
		Members:     []entities.Member{sampleMembers[0]},
		Status:      entities.ProjectStatusActive,
		Progress:    30,
		DueDate:     "2023-12-31",
	},
	{
		ID:          "p3",
		Title:       "Q4 Marketing Push",
		Type:        entities.ProjectTypeGroup,
		Description: "Social media campaign for holiday season.",
		Members:     []entities.Member{sampleMembers[0], sampleMembers[3]},
		Status:      entities.ProjectStatusOnHold,
		Progress:    10,
		DueDate:     "2023-11-20",
	},
}

// ProjectCatalog serves the read-only sample projects
type ProjectCatalog struct{}

// NewProjectCatalog creates a new project repository
func NewProjectCatalog() ports.ProjectRepository {
	return ProjectCatalog{}
}

func (ProjectCatalog) List(ctx context.Context, filter ports.ProjectFilter) ([]entities.Project, error) {
	out := make([]entities.Project, 0, len(sampleProjects))
	for _, p := range sampleProjects {
		if filter.Type != nil && p.Type != *filter.Type {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		out = append(out, cloneProject(p))
	}
	return out, nil
}

func (ProjectCatalog) GetByID(ctx context.Context, id string) (*entities.Project, error) {
	for _, p := range sampleProjects {
		if p.ID == id {
			cp := cloneProject(p)
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", entities.ErrProjectNotFound, id)
}

func (ProjectCatalog) Members(ctx context.Context) ([]entities.Member, error) {
	return append([]entities.Member(nil), sampleMembers...), nil
}

func cloneProject(p entities.Project) entities.Project {
	p.Members = append([]entities.Member(nil), p.Members...)
	return p
}
