package services

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/ophion/companion/internal/domain/entities"
	"github.com/ophion/companion/internal/infrastructure/logger"
	"github.com/ophion/companion/internal/ports"
)

// Below this many tasks the wrapped story is told from sample figures
const wrappedMinTasks = 5

// WrappedReport pairs the computed figures with the generated story
type WrappedReport struct {
	Stats entities.WrappedStats `json:"stats"`
	Story *entities.WrappedData `json:"story"`
}

// WrappedService produces the year in review
type WrappedService struct {
	workspaces *WorkspaceService
	projects   ports.ProjectRepository
	assistant  *AssistantService
	logger     *logger.Logger
}

// NewWrappedService creates a new wrapped service
func NewWrappedService(workspaces *WorkspaceService, projects ports.ProjectRepository, assistant *AssistantService, logger *logger.Logger) *WrappedService {
	return &WrappedService{workspaces: workspaces, projects: projects, assistant: assistant, logger: logger}
}

// Generate computes the stats and asks for the story. Story is nil when the
// model could not be reached.
func (s *WrappedService) Generate(ctx context.Context, userID string) (*WrappedReport, error) {
	projects, err := s.projects.List(ctx, ports.ProjectFilter{})
	if err != nil {
		return nil, err
	}

	stats := ComputeWrappedStats(s.workspaces.Get(ctx, userID).Tasks(), projects)
	return &WrappedReport{Stats: stats, Story: s.assistant.Wrapped(ctx, stats)}, nil
}

type tally struct {
	order  []string
	counts map[string]int
}

func newTally() *tally { return &tally{counts: map[string]int{}} }

func (t *tally) add(key string, n int) {
	if _, ok := t.counts[key]; !ok {
		t.order = append(t.order, key)
	}
	t.counts[key] += n
}

// top returns the most frequent key, the earliest seen on ties
func (t *tally) top() (string, bool) {
	if len(t.order) == 0 {
		return "", false
	}
	keys := append([]string(nil), t.order...)
	sort.SliceStable(keys, func(i, j int) bool { return t.counts[keys[i]] > t.counts[keys[j]] })
	return keys[0], true
}

// ComputeWrappedStats derives the figures of the wrapped story
func ComputeWrappedStats(tasks []entities.Task, projects []entities.Project) entities.WrappedStats {
	stats := entities.WrappedStats{Simulated: len(tasks) < wrappedMinTasks}

	categories := newTally()
	if stats.Simulated {
		stats.TotalTasks, stats.CompletedTasks = 482, 412
		categories.add("Work", 210)
		categories.add("Personal", 90)
		categories.add("Growth", 60)
		categories.add("Health", 52)
	} else {
		stats.TotalTasks = len(tasks)
		for _, t := range tasks {
			if t.Completed {
				stats.CompletedTasks++
			}
			cat := string(t.Category)
			if cat == "" {
				cat = "General"
			}
			categories.add(cat, 1)
		}
	}

	total := stats.TotalTasks
	if total < 1 {
		total = 1
	}
	stats.CompletionRate = int(math.Round(float64(stats.CompletedTasks) * 100 / float64(total)))
	stats.Categories = categories.counts
	stats.TopCategory = "Work"
	if top, ok := categories.top(); ok {
		stats.TopCategory = top
	}

	hours, days := newTally(), newTally()
	for _, t := range tasks {
		if !t.Completed {
			continue
		}
		if t.StartTime != nil && *t.StartTime != "" {
			h, _, _ := strings.Cut(*t.StartTime, ":")
			hours.add(h, 1)
		}
		if t.Day != nil && *t.Day != "" {
			days.add(*t.Day, 1)
		}
	}

	switch h, ok := hours.top(); {
	case ok:
		stats.PeakHour = h + ":00"
	case stats.Simulated:
		stats.PeakHour = "10:00 AM"
	default:
		stats.PeakHour = "Morning"
	}
	switch d, ok := days.top(); {
	case ok:
		stats.BestDay = d
	case stats.Simulated:
		stats.BestDay = "Tuesday"
	default:
		stats.BestDay = "Monday"
	}

	stats.GroupPerformance = "Average"
	if stats.Simulated {
		stats.LongestStreak = 12
		stats.GroupPerformance = "Excellent"
	}

	for _, p := range projects {
		if p.Status == entities.ProjectStatusCompleted {
			stats.ProjectsCompleted++
		}
	}
	return stats
}
