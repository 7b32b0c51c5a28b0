package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ophion/companion/internal/application/workspace"
	"github.com/ophion/companion/internal/domain/entities"
	"github.com/ophion/companion/internal/infrastructure/logger"
)

// Planner grid: one pixel per minute from 06:00 to 22:00
const (
	PlannerFirstHour    = 6
	PlannerLastHour     = 22
	DefaultBlockMinutes = 60
	isoDate             = "2006-01-02"
)

// Block is a scheduled task placed on the day grid
type Block struct {
	Task   entities.Task `json:"task"`
	Top    int           `json:"top"`
	Height int           `json:"height"`
}

// PlannerDay is one column of the week
type PlannerDay struct {
	Date      string  `json:"date"`
	Weekday   string  `json:"weekday"`
	IsToday   bool    `json:"isToday"`
	Intensity int     `json:"intensity"`
	Blocks    []Block `json:"blocks"`
}

// Week is the planner view of seven days starting on Monday
type Week struct {
	Start      string          `json:"start"`
	Days       []PlannerDay    `json:"days"`
	Backlog    []entities.Task `json:"backlog"`
	TimeMarker int             `json:"timeMarker"`
}

// StartOfWeek returns the Monday of the week containing d at midnight
func StartOfWeek(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7
	y, m, day := d.Date()
	return time.Date(y, m, day-offset, 0, 0, 0, 0, d.Location())
}

// Backlog lists the open tasks without a start time
func Backlog(tasks []entities.Task) []entities.Task {
	out := []entities.Task{}
	for _, t := range tasks {
		if t.StartTime == nil && !t.Completed {
			out = append(out, t)
		}
	}
	return out
}

// Scheduled lists every task with a start time
func Scheduled(tasks []entities.Task) []entities.Task {
	out := []entities.Task{}
	for _, t := range tasks {
		if t.StartTime != nil {
			out = append(out, t)
		}
	}
	return out
}

// BlockLayout places a task starting at HH:MM on the grid
func BlockLayout(startTime string, duration *int) (top, height int, ok bool) {
	minutes, ok := workspace.ClockMinutes(startTime)
	if !ok {
		return 0, 0, false
	}
	height = DefaultBlockMinutes
	if duration != nil && *duration > 0 {
		height = *duration
	}
	return minutes - PlannerFirstHour*60, height, true
}

// TimeMarker is the offset of the current-time line, -1 off the grid
func TimeMarker(now time.Time) int {
	h, m := now.Hour(), now.Minute()
	if h < PlannerFirstHour || h > PlannerLastHour {
		return -1
	}
	return (h-PlannerFirstHour)*60 + m
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Intensity counts the tasks that fall on date
func Intensity(tasks []entities.Task, date, now time.Time) int {
	iso := date.Format(isoDate)
	weekday := workspace.ShortWeekday(date)

	count := 0
	for _, t := range tasks {
		switch {
		case t.DueDate == iso:
		case t.DueDate == "Today" && sameDay(date, now):
		case t.Day != nil && *t.Day == weekday:
		default:
			continue
		}
		count++
	}
	return count
}

// PlannerService builds the weekly planner and fires start reminders
type PlannerService struct {
	workspaces *WorkspaceService
	assistant  *AssistantService
	now        func() time.Time
	logger     *logger.Logger
}

// NewPlannerService creates a new planner service
func NewPlannerService(workspaces *WorkspaceService, assistant *AssistantService, logger *logger.Logger) *PlannerService {
	return &PlannerService{
		workspaces: workspaces,
		assistant:  assistant,
		now:        time.Now,
		logger:     logger,
	}
}

// Week lays out the week containing date for the user
func (s *PlannerService) Week(ctx context.Context, userID string, date time.Time) *Week {
	now := s.now()
	tasks := s.workspaces.Get(ctx, userID).Tasks()
	start := StartOfWeek(date)

	week := &Week{
		Start:      start.Format(isoDate),
		Days:       make([]PlannerDay, 0, 7),
		Backlog:    Backlog(tasks),
		TimeMarker: TimeMarker(now),
	}

	for i := 0; i < 7; i++ {
		day := start.AddDate(0, 0, i)
		label := workspace.ShortWeekday(day)
		col := PlannerDay{
			Date:      day.Format(isoDate),
			Weekday:   label,
			IsToday:   sameDay(day, now),
			Intensity: Intensity(tasks, day, now),
			Blocks:    []Block{},
		}
		for _, t := range tasks {
			if t.Day == nil || *t.Day != label || t.StartTime == nil {
				continue
			}
			top, height, ok := BlockLayout(*t.StartTime, t.Duration)
			if !ok {
				continue
			}
			col.Blocks = append(col.Blocks, Block{Task: t, Top: top, Height: height})
		}
		week.Days = append(week.Days, col)
	}
	return week
}

// Reschedule asks the assistant for slots for the backlog and writes the
// suggested day and start time back to each task
func (s *PlannerService) Reschedule(ctx context.Context, userID string) ([]entities.Task, error) {
	ws := s.workspaces.Get(ctx, userID)
	tasks := ws.Tasks()
	backlog := Backlog(tasks)
	if len(backlog) == 0 {
		return backlog, nil
	}

	suggested := s.assistant.Reschedule(ctx, backlog, Scheduled(tasks))
	out := make([]entities.Task, 0, len(suggested))
	for _, t := range suggested {
		if t.StartTime == nil {
			out = append(out, t)
			continue
		}
		patch := entities.Patch{"startTime": *t.StartTime}
		if t.Day != nil {
			patch["day"] = *t.Day
		}
		updated, err := ws.UpdateTask(ctx, t.ID, patch)
		if err != nil {
			return out, fmt.Errorf("reschedule task %s: %w", t.ID, err)
		}
		out = append(out, updated)
	}

	s.logger.LogUserAction(userID, "reschedule", map[string]interface{}{"tasks": len(out)})
	return out, nil
}

// RemindDue notifies every workspace of tasks starting at now's minute
func (s *PlannerService) RemindDue(now time.Time) int {
	today := workspace.ShortWeekday(now)
	current := now.Hour()*60 + now.Minute()

	sent := 0
	s.workspaces.Each(func(ws *workspace.Workspace) {
		for _, t := range ws.Tasks() {
			if t.Day == nil || *t.Day != today || t.StartTime == nil {
				continue
			}
			if m, ok := workspace.ClockMinutes(*t.StartTime); ok && m == current {
				ws.Remind(t)
				sent++
			}
		}
	})
	return sent
}

// ReminderJob runs RemindDue on a fixed interval
type ReminderJob struct {
	planner  *PlannerService
	interval time.Duration
	logger   *logger.Logger

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// NewReminderJob creates a stopped job
func NewReminderJob(planner *PlannerService, interval time.Duration, logger *logger.Logger) *ReminderJob {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReminderJob{planner: planner, interval: interval, logger: logger.WithComponent("reminders")}
}

func (j *ReminderJob) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return
	}
	j.running = true
	j.stop = make(chan struct{})
	j.done = make(chan struct{})
	go j.loop(j.stop, j.done)
	j.logger.Infow("Reminder job started", "interval", j.interval.String())
}

func (j *ReminderJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	close(j.stop)
	done := j.done
	j.mu.Unlock()

	<-done
	j.logger.Infow("Reminder job stopped")
}

func (j *ReminderJob) loop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case t := <-ticker.C:
			if sent := j.planner.RemindDue(t); sent > 0 {
				j.logger.Debugw("Reminders sent", "count", sent)
			}
		case <-stop:
			return
		}
	}
}
