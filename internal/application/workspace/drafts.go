package workspace

import (
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/ophion/companion/internal/application/board"
	"github.com/ophion/companion/internal/domain/entities"
)

// TaskDraft is the input of the task form or an AI suggestion
type TaskDraft struct {
	Title      string            `json:"title"`
	Category   entities.Category `json:"category"`
	Priority   entities.Priority `json:"priority"`
	DueDate    string            `json:"dueDate"`
	StartTime  string            `json:"startTime,omitempty"`
	EndTime    string            `json:"endTime,omitempty"`
	Duration   *int              `json:"duration,omitempty"`
	Day        string            `json:"day,omitempty"`
	ProjectID  *string           `json:"projectId,omitempty"`
	AssignedTo *string           `json:"assignedTo,omitempty"`
}

// NoteDraft is the input of the quick-add note form
type NoteDraft struct {
	Content  string            `json:"content"`
	Color    string            `json:"color,omitempty"`
	Skin     entities.NoteSkin `json:"skin,omitempty"`
	Priority entities.Priority `json:"priority,omitempty"`
	IsPinned bool              `json:"isPinned,omitempty"`
	Date     string            `json:"date,omitempty"`
	X        *float64          `json:"x,omitempty"`
	Y        *float64          `json:"y,omitempty"`
	Rotation *float64          `json:"rotation,omitempty"`
	Width    float64           `json:"width,omitempty"`
	Height   float64           `json:"height,omitempty"`
	Opacity  float64           `json:"opacity,omitempty"`
}

var weekdays = map[string]bool{"Mon": true, "Tue": true, "Wed": true, "Thu": true, "Fri": true, "Sat": true, "Sun": true}

// ShortWeekday formats t as Mon..Sun
func ShortWeekday(t time.Time) string {
	return t.Format("Mon")
}

// IsWeekdayLabel reports whether s is one of Mon..Sun
func IsWeekdayLabel(s string) bool {
	return weekdays[s]
}

func newTask(userID string, d TaskDraft) (entities.Task, error) {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return entities.Task{}, entities.ErrEmptyTitle
	}

	t := entities.Task{
		UserID:     userID,
		Title:      title,
		Category:   d.Category,
		Priority:   d.Priority,
		DueDate:    strings.TrimSpace(d.DueDate),
		ProjectID:  d.ProjectID,
		AssignedTo: d.AssignedTo,
	}
	if !t.Category.Valid() {
		t.Category = entities.CategoryWork
	}
	if !t.Priority.Valid() {
		t.Priority = entities.PriorityMedium
	}
	if t.DueDate == "" {
		t.DueDate = "Today"
	}

	if d.StartTime != "" {
		start := d.StartTime
		t.StartTime = &start
	}

	duration := 0
	if d.Duration != nil {
		duration = *d.Duration
	} else if d.StartTime != "" && d.EndTime != "" {
		duration = minutesBetween(d.StartTime, d.EndTime)
	}
	if duration > 0 {
		t.Duration = &duration
	}

	if day := dayFor(d.Day, t.DueDate); day != "" {
		t.Day = &day
	}
	return t, nil
}

// minutesBetween wraps past midnight when end is before start
func minutesBetween(start, end string) int {
	s, ok1 := ClockMinutes(start)
	e, ok2 := ClockMinutes(end)
	if !ok1 || !ok2 {
		return 0
	}
	d := e - s
	if d < 0 {
		d += 24 * 60
	}
	return d
}

// ClockMinutes parses HH:MM into minutes after midnight
func ClockMinutes(hhmm string) (int, bool) {
	h, m, found := strings.Cut(hhmm, ":")
	if !found {
		return 0, false
	}
	hours, err := strconv.Atoi(h)
	if err != nil || hours < 0 || hours > 23 {
		return 0, false
	}
	minutes, err := strconv.Atoi(m)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, false
	}
	return hours*60 + minutes, true
}

func dayFor(explicit, dueDate string) string {
	if IsWeekdayLabel(explicit) {
		return explicit
	}
	if d, err := time.Parse("2006-01-02", dueDate); err == nil {
		return ShortWeekday(d)
	}
	if IsWeekdayLabel(dueDate) {
		return dueDate
	}
	return ""
}

func newNote(userID string, d NoteDraft, rng *rand.Rand) (entities.Note, error) {
	content := strings.TrimSpace(d.Content)
	if content == "" {
		return entities.Note{}, entities.ErrEmptyContent
	}

	n := entities.Note{
		UserID:   userID,
		Content:  content,
		Color:    d.Color,
		Skin:     d.Skin,
		Priority: d.Priority,
		IsPinned: d.IsPinned,
		Date:     d.Date,
		Width:    d.Width,
		Height:   d.Height,
		Opacity:  d.Opacity,
	}
	if n.Color == "" {
		n.Color = board.DefaultColor
	}
	if n.Skin == "" {
		n.Skin = entities.SkinClassic
	}
	if n.Date == "" {
		n.Date = "Just now"
	}
	if n.Width <= 0 {
		n.Width = board.DefaultNoteWidth
	}
	if n.Height <= 0 {
		n.Height = board.DefaultNoteHeight
	}
	if n.Opacity <= 0 {
		n.Opacity = 1
	}

	n.X = valueOr(d.X, func() float64 { return rng.Float64()*200 + 50 })
	n.Y = valueOr(d.Y, func() float64 { return rng.Float64()*200 + 50 })
	n.Rotation = valueOr(d.Rotation, func() float64 { return rng.Float64()*6 - 3 })
	return n, nil
}

func valueOr(v *float64, fallback func() float64) float64 {
	if v != nil {
		return *v
	}
	return fallback()
}
