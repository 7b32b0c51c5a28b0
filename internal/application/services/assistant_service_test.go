package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ophion/companion/internal/adapters/repository"
	"github.com/ophion/companion/internal/domain/entities"
	"github.com/ophion/companion/internal/infrastructure/logger"
)

func strPtr(s string) *string { return &s }

func TestMotivationContext(t *testing.T) {
	assert.Equal(t, "needs a gentle push to start working", MotivationContext(0))
	assert.Equal(t, "needs a gentle push to start working", MotivationContext(2))
	assert.Equal(t, "productive and winning", MotivationContext(3))
}

func TestMotivationFallbacks(t *testing.T) {
	t.Run("empty answer", func(t *testing.T) {
		ai := &mockGateway{}
		ai.On("GenerateText", mock.Anything).Return("", nil)
		s := NewAssistantService(ai, nil, 0, logger.NewNop())

		assert.Equal(t, MotivationEmpty, s.Motivation(context.Background(), 0))
	})

	t.Run("model error", func(t *testing.T) {
		ai := &mockGateway{}
		ai.On("GenerateText", mock.Anything).Return("", errModelDown)
		s := NewAssistantService(ai, nil, 0, logger.NewNop())

		assert.Equal(t, MotivationFallback, s.Motivation(context.Background(), 5))
	})
}

func TestMotivationIsCachedPerMood(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ai := &mockGateway{}
	ai.On("GenerateText", mock.MatchedBy(func(p string) bool { return strings.Contains(p, "productive and winning") })).
		Return("You are on fire.", nil).Once()
	ai.On("GenerateText", mock.Anything).Return("", errModelDown)

	s := NewAssistantService(ai, repository.NewCacheRepository(client), time.Hour, logger.NewNop())
	ctx := context.Background()

	assert.Equal(t, "You are on fire.", s.Motivation(ctx, 4))
	assert.Equal(t, "You are on fire.", s.Motivation(ctx, 9))
	assert.True(t, mr.Exists("companion:ai:motivation:productive-and-winning"))

	// fallbacks are never cached
	assert.Equal(t, MotivationFallback, s.Motivation(ctx, 0))
	assert.False(t, mr.Exists("companion:ai:motivation:needs-a-gentle-push-to-start-working"))
	ai.AssertNumberOfCalls(t, "GenerateText", 2)
}

func TestTasksFromPromptFallsBackToEmpty(t *testing.T) {
	ai := &mockGateway{}
	ai.On("GenerateStructured", "task_list", mock.Anything).Return(errModelDown)
	s := NewAssistantService(ai, nil, 0, logger.NewNop())

	drafts := s.TasksFromPrompt(context.Background(), "plan a trip")
	require.NotNil(t, drafts)
	assert.Empty(t, drafts)
}

func TestTasksFromPrompt(t *testing.T) {
	ai := &mockGateway{}
	ai.On("GenerateStructured", "task_list", mock.Anything).
		Return(nil).
		Run(answer(`[{"title":"Book flights","category":"Personal","priority":"High","dueDate":"Tomorrow"}]`))
	s := NewAssistantService(ai, nil, 0, logger.NewNop())

	drafts := s.TasksFromPrompt(context.Background(), "plan a trip")
	require.Len(t, drafts, 1)
	assert.Equal(t, "Book flights", drafts[0].Title)
	assert.Equal(t, entities.CategoryPersonal, drafts[0].Category)
}

func TestDailyPlanFallbacks(t *testing.T) {
	t.Run("model error", func(t *testing.T) {
		ai := &mockGateway{}
		ai.On("GenerateStructured", "daily_plan", mock.Anything).Return(errModelDown)
		s := NewAssistantService(ai, nil, 0, logger.NewNop())

		plan := s.DailyPlan(context.Background(), "")
		assert.Empty(t, plan.Tasks)
		assert.Equal(t, PlanNoteFallback, plan.Note)
	})

	t.Run("missing note", func(t *testing.T) {
		ai := &mockGateway{}
		ai.On("GenerateStructured", "daily_plan", mock.Anything).
			Return(nil).
			Run(answer(`{"tasks":[{"title":"Stretch","category":"Health","priority":"Low","dueDate":"Today"}]}`))
		s := NewAssistantService(ai, nil, 0, logger.NewNop())

		plan := s.DailyPlan(context.Background(), "health")
		assert.Len(t, plan.Tasks, 1)
		assert.Equal(t, PlanNoteEmpty, plan.Note)
	})
}

func TestSmartAnalyzeNote(t *testing.T) {
	t.Run("fills what the model left out", func(t *testing.T) {
		ai := &mockGateway{}
		ai.On("GenerateStructured", "note_insight", mock.Anything).
			Return(nil).
			Run(answer(`{"priority":"Urgent","actionable":true}`))
		s := NewAssistantService(ai, nil, 0, logger.NewNop())

		insight, err := s.SmartAnalyzeNote(context.Background(), "call the bank")
		require.NoError(t, err)
		assert.Equal(t, entities.PriorityMedium, insight.Priority)
		assert.Equal(t, "bg-yellow-100", insight.SuggestedColor)
		assert.True(t, insight.Actionable)
	})

	t.Run("error returns default", func(t *testing.T) {
		ai := &mockGateway{}
		ai.On("GenerateStructured", "note_insight", mock.Anything).Return(errModelDown)
		s := NewAssistantService(ai, nil, 0, logger.NewNop())

		insight, err := s.SmartAnalyzeNote(context.Background(), "call the bank")
		assert.ErrorIs(t, err, errModelDown)
		assert.Equal(t, DefaultNoteInsight(), insight)
	})
}

func TestAnalyzeNoteFallsBackToEmpty(t *testing.T) {
	ai := &mockGateway{}
	ai.On("GenerateStructured", "note_analysis", mock.Anything).Return(errModelDown)
	s := NewAssistantService(ai, nil, 0, logger.NewNop())

	assert.Equal(t, NoteAnalysis{}, s.AnalyzeNote(context.Background(), "milk, eggs"))
}

func TestProjectHealthCountsOnlyProjectTasks(t *testing.T) {
	project := entities.Project{ID: "p1", Title: "Website Redesign", Progress: 65, DueDate: "2023-12-01"}
	tasks := []entities.Task{
		{ID: "a", ProjectID: strPtr("p1"), Completed: true},
		{ID: "b", ProjectID: strPtr("p1")},
		{ID: "c", ProjectID: strPtr("p2"), Completed: true},
		{ID: "d", Completed: true},
	}

	ai := &mockGateway{}
	ai.On("GenerateText", mock.MatchedBy(func(p string) bool { return strings.Contains(p, "Tasks: 1/2 completed.") })).
		Return("Healthy.", nil)
	s := NewAssistantService(ai, nil, 0, logger.NewNop())

	assert.Equal(t, "Healthy.", s.ProjectHealth(context.Background(), project, tasks))
	ai.AssertExpectations(t)
}

func TestProjectHealthFallbacks(t *testing.T) {
	ai := &mockGateway{}
	ai.On("GenerateText", mock.Anything).Return("", errModelDown).Once()
	ai.On("GenerateText", mock.Anything).Return("", nil).Once()
	s := NewAssistantService(ai, nil, 0, logger.NewNop())
	ctx := context.Background()

	assert.Equal(t, ProjectHealthFailed, s.ProjectHealth(ctx, entities.Project{ID: "p1"}, nil))
	assert.Equal(t, ProjectHealthEmpty, s.ProjectHealth(ctx, entities.Project{ID: "p1"}, nil))
}

func TestRescheduleMergesByTaskID(t *testing.T) {
	backlog := []entities.Task{{ID: "t1", Title: "Write report"}, {ID: "t2", Title: "Gym"}}

	ai := &mockGateway{}
	ai.On("GenerateStructured", "reschedule", mock.Anything).
		Return(nil).
		Run(answer(`[{"taskId":"t2","suggestedDay":"Wed","suggestedStartTime":"17:00"},{"taskId":"zz","suggestedDay":"Mon","suggestedStartTime":"09:00"}]`))
	s := NewAssistantService(ai, nil, 0, logger.NewNop())

	out := s.Reschedule(context.Background(), backlog, nil)
	require.Len(t, out, 2)
	assert.Nil(t, out[0].StartTime)
	require.NotNil(t, out[1].StartTime)
	assert.Equal(t, "17:00", *out[1].StartTime)
	assert.Equal(t, "Wed", *out[1].Day)
	assert.Nil(t, backlog[1].StartTime)
}

func TestRescheduleErrorKeepsBacklog(t *testing.T) {
	backlog := []entities.Task{{ID: "t1", Title: "Write report"}}

	ai := &mockGateway{}
	ai.On("GenerateStructured", "reschedule", mock.Anything).Return(errModelDown)
	s := NewAssistantService(ai, nil, 0, logger.NewNop())

	assert.Equal(t, backlog, s.Reschedule(context.Background(), backlog, nil))
}

func TestWrappedNilOnError(t *testing.T) {
	ai := &mockGateway{}
	ai.On("GenerateStructured", "wrapped", mock.Anything).Return(errModelDown)
	s := NewAssistantService(ai, nil, 0, logger.NewNop())

	assert.Nil(t, s.Wrapped(context.Background(), ComputeWrappedStats(nil, nil)))
}
