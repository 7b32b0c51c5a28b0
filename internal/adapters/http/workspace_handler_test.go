package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ophion/companion/internal/application/services"
	"github.com/ophion/companion/internal/application/workspace"
	"github.com/ophion/companion/internal/domain/entities"
)

func TestCreateTask(t *testing.T) {
	api := newTestAPI(t, offlineGateway{})

	rec := api.do(t, http.MethodPost, "/tasks", `{"title":"Write the quarterly report","category":"Work","priority":"High","dueDate":"Today"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var task entities.Task
	decode(t, rec, &task)
	assert.NotEmpty(t, task.ID)
	assert.False(t, strings.HasPrefix(task.ID, entities.TempIDPrefix))
	assert.Equal(t, "Write the quarterly report", task.Title)
	assert.Equal(t, entities.CategoryWork, task.Category)
	assert.Equal(t, entities.PriorityHigh, task.Priority)
	assert.False(t, task.Completed)

	rec = api.do(t, http.MethodGet, "/tasks", "")
	var tasks []entities.Task
	decode(t, rec, &tasks)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)
}

func TestCreateTaskRejectsBadInput(t *testing.T) {
	api := newTestAPI(t, offlineGateway{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing title", `{"category":"Work"}`, http.StatusBadRequest},
		{"unknown category", `{"title":"x","category":"Chores"}`, http.StatusBadRequest},
		{"bad start time", `{"title":"x","startTime":"9am"}`, http.StatusBadRequest},
		{"blank title", `{"title":"   "}`, http.StatusUnprocessableEntity},
		{"not json", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/tasks", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestUpdateTask(t *testing.T) {
	api := newTestAPI(t, offlineGateway{})

	var task entities.Task
	decode(t, api.do(t, http.MethodPost, "/tasks", `{"title":"Stretch"}`), &task)

	rec := api.do(t, http.MethodPatch, "/tasks/"+task.ID, `{"title":"Stretch for ten minutes","priority":"Low"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated entities.Task
	decode(t, rec, &updated)
	assert.Equal(t, task.ID, updated.ID)
	assert.Equal(t, "Stretch for ten minutes", updated.Title)
	assert.Equal(t, entities.PriorityLow, updated.Priority)

	rec = api.do(t, http.MethodPatch, "/tasks/"+task.ID, `{"createdAt":"2024-01-01T00:00:00Z"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = api.do(t, http.MethodPatch, "/tasks/"+task.ID, `{"completed":true,"bogus":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = api.do(t, http.MethodPatch, "/tasks/"+task.ID, `{"title":null}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var current []entities.Task
	decode(t, api.do(t, http.MethodGet, "/tasks", ""), &current)
	require.Len(t, current, 1)
	assert.Equal(t, "Stretch for ten minutes", current[0].Title)
	assert.False(t, current[0].Completed)

	rec = api.do(t, http.MethodPatch, "/tasks/"+task.ID, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPatch, "/tasks/missing", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToggleAndDeleteTask(t *testing.T) {
	api := newTestAPI(t, offlineGateway{})

	var task entities.Task
	decode(t, api.do(t, http.MethodPost, "/tasks", `{"title":"Water the plants"}`), &task)

	rec := api.do(t, http.MethodPost, "/tasks/"+task.ID+"/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var toggled entities.Task
	decode(t, rec, &toggled)
	assert.True(t, toggled.Completed)

	var analytics services.Analytics
	decode(t, api.do(t, http.MethodGet, "/analytics", ""), &analytics)
	assert.Equal(t, 100, analytics.Progress)

	rec = api.do(t, http.MethodDelete, "/tasks/"+task.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodDelete, "/tasks/"+task.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMagicSetupFallsBackWithoutModel(t *testing.T) {
	api := newTestAPI(t, offlineGateway{})

	rec := api.do(t, http.MethodPost, "/tasks/magic", `{"focus":"deep work"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result services.MagicResult
	decode(t, rec, &result)
	require.NotNil(t, result.Note)
	assert.True(t, result.Note.IsPinned)
}

func TestWrappedUnavailableWithoutModel(t *testing.T) {
	api := newTestAPI(t, offlineGateway{})

	rec := api.do(t, http.MethodGet, "/wrapped", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventsStreamViewsAndReminders(t *testing.T) {
	api := newTestAPI(t, offlineGateway{})
	srv := httptest.NewServer(api.echo)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/workspace/events", nil)
	require.NoError(t, err)
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	events := bufio.NewReader(res.Body)

	first := readEvent(t, events)
	require.Equal(t, "view", first.Name)
	var view workspace.View
	require.NoError(t, json.Unmarshal([]byte(first.Data), &view))
	assert.Empty(t, view.Tasks)

	ws := api.workspaces.Get(ctx, testUser)
	task, err := ws.CreateTask(ctx, workspace.TaskDraft{Title: "Standup"})
	require.NoError(t, err)

	// the temp-id view and the settled view may both arrive
	for {
		ev := readEvent(t, events)
		require.Equal(t, "view", ev.Name)
		var next workspace.View
		require.NoError(t, json.Unmarshal([]byte(ev.Data), &next))
		assert.Greater(t, next.Version, view.Version)
		view = next
		if len(next.Tasks) == 1 && next.Tasks[0].ID == task.ID {
			break
		}
	}

	ws.Remind(task)
	ev := readEvent(t, events)
	require.Equal(t, "reminder", ev.Name)
	var reminded entities.Task
	require.NoError(t, json.Unmarshal([]byte(ev.Data), &reminded))
	assert.Equal(t, "Standup", reminded.Title)
}

// readEvent blocks until the next complete event, skipping comments
func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var block strings.Builder
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if line == "\n" {
			evs := parseEvents(block.String())
			if len(evs) > 0 {
				return evs[0]
			}
			block.Reset()
			continue
		}
		block.WriteString(line)
	}
}
