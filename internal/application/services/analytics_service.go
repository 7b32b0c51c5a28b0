package services

import (
	"context"

	"github.com/ophion/companion/internal/application/workspace"
	"github.com/ophion/companion/internal/domain/entities"
)

var weekOrder = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// WeekdayStat counts the tasks filed under one weekday
type WeekdayStat struct {
	Name           string `json:"name"`
	TasksCompleted int    `json:"tasksCompleted"`
	TasksPending   int    `json:"tasksPending"`
}

// Analytics is the productivity summary of a workspace
type Analytics struct {
	Progress   int                     `json:"progress"`
	Categories []entities.CategoryStat `json:"categories"`
	Weekdays   []WeekdayStat           `json:"weekdays"`
}

// AnalyticsService derives productivity figures from a workspace
type AnalyticsService struct {
	workspaces *WorkspaceService
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(workspaces *WorkspaceService) *AnalyticsService {
	return &AnalyticsService{workspaces: workspaces}
}

// Summary returns the analytics of the user's workspace
func (s *AnalyticsService) Summary(ctx context.Context, userID string) Analytics {
	ws := s.workspaces.Get(ctx, userID)
	return Analytics{
		Progress:   ws.Progress(),
		Categories: ws.CategoryDistribution(),
		Weekdays:   WeekdayBreakdown(ws.Tasks()),
	}
}

// WeekdayBreakdown counts completed and pending tasks per weekday, Monday
// first. A task without a day label is filed under the weekday it was
// created on; tasks with neither are left out.
func WeekdayBreakdown(tasks []entities.Task) []WeekdayStat {
	stats := make([]WeekdayStat, len(weekOrder))
	index := make(map[string]int, len(weekOrder))
	for i, d := range weekOrder {
		stats[i].Name = d
		index[d] = i
	}

	for _, t := range tasks {
		day := ""
		switch {
		case t.Day != nil && workspace.IsWeekdayLabel(*t.Day):
			day = *t.Day
		case t.CreatedAt != nil:
			day = workspace.ShortWeekday(*t.CreatedAt)
		}
		i, ok := index[day]
		if !ok {
			continue
		}
		if t.Completed {
			stats[i].TasksCompleted++
		} else {
			stats[i].TasksPending++
		}
	}
	return stats
}
