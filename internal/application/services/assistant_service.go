package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ophion/companion/internal/application/workspace"
	"github.com/ophion/companion/internal/domain/entities"
	"github.com/ophion/companion/internal/infrastructure/logger"
	"github.com/ophion/companion/internal/ports"
)

// Fixed answers used when the model cannot be reached or says nothing
const (
	MotivationEmpty      = "Keep pushing forward. Greatness awaits."
	MotivationFallback   = "Focus on the step in front of you, not the whole staircase."
	PlanNoteFallback     = "Could not generate plan."
	PlanNoteEmpty        = "Focus on the present moment."
	ProjectHealthFailed  = "Unable to analyze project health at this time."
	ProjectHealthEmpty   = "Project looks stable. Keep monitoring deadlines."
	ChatApology          = "I apologize, but I'm having trouble connecting to the neural network right now. Please check your API configuration."
	defaultRescheduleMin = 60
)

// ChatPersona is the system instruction of every chat session
const ChatPersona = `You are OphionAI, a wise, supportive, and highly intelligent productivity companion.
Your goal is to help the user achieve their goals, manage their time, and maintain a healthy work-life balance.
Your tone should be encouraging but firm when needed, analytical yet empathetic, concise and actionable.
You act as a mentor. If the user is stressed, offer calming advice. If they are procrastinating, offer a gentle nudge.
Refer to Greek mythology metaphors occasionally if it fits the context of "Ophion" (the titan), but keep it subtle.`

// DailyPlan is the magic setup for a fresh dashboard
type DailyPlan struct {
	Tasks []workspace.TaskDraft `json:"tasks"`
	Note  string                `json:"motivationalNote"`
}

// NoteAnalysis is the quick reading of a sticky note
type NoteAnalysis struct {
	SuggestedTask *string `json:"suggestedTask,omitempty"`
	Summary       *string `json:"summary,omitempty"`
}

// NoteInsight drives the smart enhance of a note
type NoteInsight struct {
	Priority       entities.Priority `json:"priority"`
	SuggestedColor string            `json:"suggestedColor"`
	Actionable     bool              `json:"actionable"`
}

// DefaultNoteInsight is returned when the model cannot classify a note
func DefaultNoteInsight() NoteInsight {
	return NoteInsight{Priority: entities.PriorityMedium, SuggestedColor: "bg-yellow-100"}
}

type rescheduleSuggestion struct {
	TaskID             string `json:"taskId"`
	SuggestedDay       string `json:"suggestedDay"`
	SuggestedStartTime string `json:"suggestedStartTime"`
}

// AssistantService wraps every AI feature with its fixed fallback. No
// method returns a model error to the caller unless it says so.
type AssistantService struct {
	ai       ports.AIGateway
	cache    ports.CacheRepository
	cacheTTL time.Duration
	logger   *logger.Logger
}

// NewAssistantService creates a new assistant service. cache may be nil.
func NewAssistantService(ai ports.AIGateway, cache ports.CacheRepository, cacheTTL time.Duration, logger *logger.Logger) *AssistantService {
	return &AssistantService{
		ai:       ai,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.WithComponent("assistant"),
	}
}

// MotivationContext describes the user to the model from their completed count
func MotivationContext(completed int) string {
	if completed > 2 {
		return "productive and winning"
	}
	return "needs a gentle push to start working"
}

// Motivation returns a short quote for the user's current state
func (s *AssistantService) Motivation(ctx context.Context, completed int) string {
	mood := MotivationContext(completed)
	key := "ai:motivation:" + strings.ReplaceAll(mood, " ", "-")

	return s.cachedText(ctx, key, "motivation", func() (string, error) {
		return s.ai.GenerateText(ctx, fmt.Sprintf(
			"Generate a short, powerful motivational quote or insight (max 2 sentences) for a user who is currently: %s. Do not use quotes, just speak directly.",
			mood,
		))
	}, MotivationEmpty, MotivationFallback)
}

// TasksFromPrompt turns a natural language goal into task drafts
func (s *AssistantService) TasksFromPrompt(ctx context.Context, goal string) []workspace.TaskDraft {
	var drafts []workspace.TaskDraft
	err := s.ai.GenerateStructured(ctx, ports.StructuredRequest{
		Name: "task_list",
		Prompt: fmt.Sprintf("Generate a list of tasks based on this user goal: %q. "+
			"Assign realistic categories (Work, Personal, Health, Growth), priorities (High, Medium, Low), and due dates (Today, Tomorrow, etc).", goal),
		Schema: &taskListSchema,
	}, &drafts)
	if err != nil {
		s.logger.LogFallback("tasks_from_prompt", err)
		return []workspace.TaskDraft{}
	}
	if drafts == nil {
		drafts = []workspace.TaskDraft{}
	}
	return drafts
}

// DailyPlan proposes a balanced day, optionally around a focus area
func (s *AssistantService) DailyPlan(ctx context.Context, focus string) DailyPlan {
	prompt := "Create a balanced daily plan for a productive day including work, health, and personal growth."
	if focus = strings.TrimSpace(focus); focus != "" {
		prompt = fmt.Sprintf("Create a balanced daily plan focusing on: %s.", focus)
	}

	var plan DailyPlan
	err := s.ai.GenerateStructured(ctx, ports.StructuredRequest{Name: "daily_plan", Prompt: prompt, Schema: &dailyPlanSchema}, &plan)
	if err != nil {
		s.logger.LogFallback("daily_plan", err)
		return DailyPlan{Tasks: []workspace.TaskDraft{}, Note: PlanNoteFallback}
	}
	if plan.Tasks == nil {
		plan.Tasks = []workspace.TaskDraft{}
	}
	if plan.Note == "" {
		plan.Note = PlanNoteEmpty
	}
	return plan
}

// AnalyzeNote suggests a task title and a five word summary
func (s *AssistantService) AnalyzeNote(ctx context.Context, content string) NoteAnalysis {
	var out NoteAnalysis
	err := s.ai.GenerateStructured(ctx, ports.StructuredRequest{
		Name: "note_analysis",
		Prompt: fmt.Sprintf("Analyze this sticky note content: %q. "+
			"If it contains an actionable item, suggest a task title. Also provide a 5-word summary.", content),
		Schema: &noteAnalysisSchema,
	}, &out)
	if err != nil {
		s.logger.LogFallback("analyze_note", err)
		return NoteAnalysis{}
	}
	return out
}

// SmartAnalyzeNote classifies urgency and picks a colour. On failure it
// returns the default insight together with the error so callers can
// leave the note alone.
func (s *AssistantService) SmartAnalyzeNote(ctx context.Context, content string) (NoteInsight, error) {
	var out NoteInsight
	err := s.ai.GenerateStructured(ctx, ports.StructuredRequest{
		Name: "note_insight",
		Prompt: fmt.Sprintf("Analyze this note: %q. Determine urgency (High/Medium/Low). "+
			"Suggest a Tailwind background color class (e.g., bg-red-100, bg-blue-100, bg-green-100) based on context (Work=Blue, Urgent=Red, Personal=Green/Purple). "+
			"Is it actionable?", content),
		Schema: &noteInsightSchema,
	}, &out)
	if err != nil {
		s.logger.LogFallback("smart_analyze_note", err)
		return DefaultNoteInsight(), err
	}

	def := DefaultNoteInsight()
	if !out.Priority.Valid() {
		out.Priority = def.Priority
	}
	if strings.TrimSpace(out.SuggestedColor) == "" {
		out.SuggestedColor = def.SuggestedColor
	}
	return out, nil
}

// ProjectHealth writes a two sentence health check for a project
func (s *AssistantService) ProjectHealth(ctx context.Context, project entities.Project, tasks []entities.Task) string {
	completed, total := 0, 0
	for _, t := range tasks {
		if t.ProjectID == nil || *t.ProjectID != project.ID {
			continue
		}
		total++
		if t.Completed {
			completed++
		}
	}

	key := fmt.Sprintf("ai:project-health:%s:%d:%d:%d", project.ID, completed, total, project.Progress)
	return s.cachedText(ctx, key, "project_health", func() (string, error) {
		return s.ai.GenerateText(ctx, fmt.Sprintf(
			"Analyze this project: %q.\nDescription: %s.\nProgress: %d%%.\nTasks: %d/%d completed.\nDue Date: %s.\n"+
				"Provide a 2-sentence health check and one actionable recommendation for the team.",
			project.Title, project.Description, project.Progress, completed, total, project.DueDate,
		))
	}, ProjectHealthEmpty, ProjectHealthFailed)
}

// Reschedule suggests a day and start time for each backlog task. The
// backlog comes back unchanged when the model fails.
func (s *AssistantService) Reschedule(ctx context.Context, backlog, scheduled []entities.Task) []entities.Task {
	type pendingItem struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Duration int    `json:"duration"`
	}
	type slot struct {
		Day      *string `json:"day"`
		Start    *string `json:"start"`
		Duration *int    `json:"duration"`
	}

	pending := make([]pendingItem, 0, len(backlog))
	for _, t := range backlog {
		d := defaultRescheduleMin
		if t.Duration != nil {
			d = *t.Duration
		}
		pending = append(pending, pendingItem{ID: t.ID, Title: t.Title, Duration: d})
	}
	slots := make([]slot, 0, len(scheduled))
	for _, t := range scheduled {
		slots = append(slots, slot{Day: t.Day, Start: t.StartTime, Duration: t.Duration})
	}

	pendingJSON, _ := json.Marshal(pending)
	slotsJSON, _ := json.Marshal(slots)

	var suggestions []rescheduleSuggestion
	err := s.ai.GenerateStructured(ctx, ports.StructuredRequest{
		Name: "reschedule",
		Prompt: fmt.Sprintf("I have these pending tasks that need to be rescheduled:\n%s\n\n"+
			"My current schedule for the rest of the week is:\n%s\n\n"+
			"Please suggest new 'day' (e.g., Mon, Tue...) and 'startTime' (e.g., 14:00) for the pending tasks.\n"+
			"Assume working hours are 09:00 to 18:00.\n"+
			"Return a JSON array of objects with 'taskId', 'suggestedDay', 'suggestedStartTime'.", pendingJSON, slotsJSON),
		Schema: &rescheduleSchema,
	}, &suggestions)
	if err != nil {
		s.logger.LogFallback("reschedule", err)
		return backlog
	}

	byID := make(map[string]rescheduleSuggestion, len(suggestions))
	for _, sg := range suggestions {
		if _, seen := byID[sg.TaskID]; !seen {
			byID[sg.TaskID] = sg
		}
	}

	out := make([]entities.Task, 0, len(backlog))
	for _, t := range backlog {
		if sg, ok := byID[t.ID]; ok {
			day, start := sg.SuggestedDay, sg.SuggestedStartTime
			t.Day, t.StartTime = &day, &start
		}
		out = append(out, t)
	}
	return out
}

// Wrapped writes the year in review narrative from precomputed stats. It
// returns nil when the model cannot be reached.
func (s *AssistantService) Wrapped(ctx context.Context, stats entities.WrappedStats) *entities.WrappedData {
	categories, _ := json.Marshal(stats.Categories)
	inputs := fmt.Sprintf(`INPUTS (Dynamic Data from User):
Tasks completed: %d
Tasks created: %d
Completion rate: %d%%
Peak productivity time: %s
Most productive day: %s
Category distribution: %s
Streaks: %d days
Projects completed: %d
Group performance metrics: %s`,
		stats.CompletedTasks, stats.TotalTasks, stats.CompletionRate, stats.PeakHour, stats.BestDay,
		categories, stats.LongestStreak, stats.ProjectsCompleted, stats.GroupPerformance)

	prompt := `Generate a personalized Productivity Wrapped report based on the following user data.
` + inputs + `

Create two sections: (1) Productivity Personality, and (2) Work Wrapped Summary.

STYLE GUIDELINES
- Make the tone motivational, aesthetic, and cinematic, similar to Spotify Wrapped.
- Use short, punchy highlight lines and turn data into a story.

OUTPUT JSON FORMAT (must match the schema structure):
1. identity: a "Productivity Personality" with a title (archetype), a cinematic tagline (quote), and a psychological description.
2. timeStats: peak productivity time (peakHour) and day (bestDay) with a witty comment.
3. categoryStats: top domain (topCategory), completion rate, and a story insight.
4. streaks: a narrative about their consistency (longestStreak) with a cool name (type).
5. projectStats: a "Main Character" moment with a project (highlightProject), their role, and a comment.
6. growth: 3 major growth milestones or habit improvements.
7. achievements: 3 specific wins.
8. movie: if this year was a movie, its Title, Genre, and Netflix-style Description.
9. predictions: 2 smart forecasts for next year.
10. final: a final "Year Title" and a powerful closing quote.`

	var out entities.WrappedData
	if err := s.ai.GenerateStructured(ctx, ports.StructuredRequest{Name: "wrapped", Prompt: prompt, Schema: &wrappedSchema}, &out); err != nil {
		s.logger.LogFallback("wrapped", err)
		return nil
	}
	return &out
}

// cachedText serves a text feature from the cache, asking the model on a
// miss. Only real answers are cached.
func (s *AssistantService) cachedText(ctx context.Context, key, feature string, generate func() (string, error), empty, failed string) string {
	if s.cache != nil {
		var cached string
		err := s.cache.Get(ctx, key, &cached)
		switch {
		case err == nil && cached != "":
			return cached
		case err != nil && !errors.Is(err, ports.ErrCacheMiss):
			s.logger.Warnw("AI cache read failed", "key", key, "error", err.Error())
		}
	}

	text, err := generate()
	if err != nil {
		s.logger.LogFallback(feature, err)
		return failed
	}
	if text == "" {
		s.logger.LogFallback(feature, nil)
		return empty
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.Set(ctx, key, text, s.cacheTTL); err != nil {
			s.logger.Warnw("AI cache write failed", "key", key, "error", err.Error())
		}
	}
	return text
}
