package workspace

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ophion/companion/internal/adapters/repository"
	"github.com/ophion/companion/internal/domain/entities"
	"github.com/ophion/companion/internal/infrastructure/logger"
	"github.com/ophion/companion/internal/ports"
)

const user = "guest_1700000000000_abcdefghi"

func manualTicks() Options {
	return Options{TickInterval: -1}
}

func started(t *testing.T, store ports.RemoteStore, opts Options) *Workspace {
	t.Helper()
	ws := New(user, store, opts, logger.NewNop())
	require.NoError(t, ws.Start(context.Background()))
	t.Cleanup(ws.Close)
	return ws
}

// storedTasks reads the store's current task set through a throwaway subscription
func storedTasks(t *testing.T, store ports.RemoteStore) []entities.Task {
	t.Helper()
	var snap ports.Snapshot
	unsub, err := store.Subscribe(context.Background(), entities.CollectionTasks, user, func(s ports.Snapshot) { snap = s })
	require.NoError(t, err)
	unsub()
	return snap.Tasks
}

// gatedStore holds every Add until the gate is closed
type gatedStore struct {
	*repository.MemoryStore
	entered chan struct{}
	gate    chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		MemoryStore: repository.NewMemoryStore(),
		entered:     make(chan struct{}, 1),
		gate:        make(chan struct{}),
	}
}

func (g *gatedStore) Add(ctx context.Context, record entities.Record) (string, error) {
	g.entered <- struct{}{}
	<-g.gate
	return g.MemoryStore.Add(ctx, record)
}

func TestTimerTicksOnlyWhileRunning(t *testing.T) {
	ctx := context.Background()
	ws := started(t, repository.NewMemoryStore(), manualTicks())

	task, err := ws.CreateTask(ctx, TaskDraft{Title: "Deep work"})
	require.NoError(t, err)
	_, err = ws.UpdateTask(ctx, task.ID, entities.Patch{"timeSpent": 10})
	require.NoError(t, err)

	task, err = ws.ToggleTimer(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, task.IsTimerRunning)

	ws.Tick()
	task, err = ws.Task(task.ID)
	require.NoError(t, err)
	assert.Equal(t, 11, task.TimeSpent)

	task, err = ws.ToggleTimer(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, task.IsTimerRunning)
	assert.Equal(t, 11, task.TimeSpent)

	ws.Tick()
	task, err = ws.Task(task.ID)
	require.NoError(t, err)
	assert.Equal(t, 11, task.TimeSpent)

	task, err = ws.ResetTimer(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, task.TimeSpent)
	assert.False(t, task.IsTimerRunning)
}

func TestTickerLivesOnlyWithRunningTimers(t *testing.T) {
	ctx := context.Background()
	ws := started(t, repository.NewMemoryStore(), Options{TickInterval: 5 * time.Millisecond})

	task, err := ws.CreateTask(ctx, TaskDraft{Title: "Focus"})
	require.NoError(t, err)
	assert.False(t, ws.Ticking())

	_, err = ws.ToggleTimer(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, ws.Ticking())

	require.Eventually(t, func() bool {
		current, err := ws.Task(task.ID)
		return err == nil && current.TimeSpent >= 2
	}, time.Second, 5*time.Millisecond)

	_, err = ws.ToggleTimer(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, ws.Ticking())
}

func TestSnapshotKeepsRunningTimer(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	ws := started(t, store, manualTicks())

	task, err := ws.CreateTask(ctx, TaskDraft{Title: "Write report"})
	require.NoError(t, err)
	_, err = ws.UpdateTask(ctx, task.ID, entities.Patch{"timeSpent": 45, "isTimerRunning": true})
	require.NoError(t, err)

	// another device resets the timer and renames the task
	require.NoError(t, store.Update(ctx, entities.CollectionTasks, task.ID, entities.Patch{
		"timeSpent":      0,
		"isTimerRunning": false,
		"title":          "Write final report",
	}))

	merged, err := ws.Task(task.ID)
	require.NoError(t, err)
	assert.Equal(t, 45, merged.TimeSpent)
	assert.True(t, merged.IsTimerRunning)
	assert.Equal(t, "Write final report", merged.Title)
}

func TestSnapshotWinsForStoppedTimer(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	ws := started(t, store, manualTicks())

	task, err := ws.CreateTask(ctx, TaskDraft{Title: "Stretch"})
	require.NoError(t, err)
	require.NoError(t, store.Update(ctx, entities.CollectionTasks, task.ID, entities.Patch{"timeSpent": 300}))

	merged, err := ws.Task(task.ID)
	require.NoError(t, err)
	assert.Equal(t, 300, merged.TimeSpent)
}

func TestProgress(t *testing.T) {
	assert.Equal(t, 0, Progress(nil))

	ctx := context.Background()
	ws := started(t, repository.NewMemoryStore(), manualTicks())
	assert.Equal(t, 0, ws.Progress())

	var ids []string
	for _, title := range []string{"a", "b", "c"} {
		task, err := ws.CreateTask(ctx, TaskDraft{Title: title})
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}

	_, err := ws.ToggleTask(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, 33, ws.Progress())

	_, err = ws.ToggleTask(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, 67, ws.Progress())
}

func TestCategoryDistributionListsEveryCategory(t *testing.T) {
	stats := CategoryDistribution([]entities.Task{
		{Category: entities.CategoryWork},
		{Category: entities.CategoryWork},
		{Category: entities.CategoryHealth},
	})

	require.Len(t, stats, 4)
	assert.Equal(t, entities.CategoryStat{Name: entities.CategoryWork, Value: 2, Color: "#3b82f6"}, stats[0])
	assert.Equal(t, 0, stats[1].Value)
	assert.Equal(t, 1, stats[2].Value)
	assert.Equal(t, 0, stats[3].Value)
}

func TestNewTaskAppearsFirstAndStaysWhenCompleted(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	ws := started(t, store, manualTicks())

	_, err := ws.CreateTask(ctx, TaskDraft{Title: "Older"})
	require.NoError(t, err)
	milk, err := ws.CreateTask(ctx, TaskDraft{
		Title:    "Buy milk",
		Category: entities.CategoryPersonal,
		Priority: entities.PriorityLow,
		DueDate:  "Today",
	})
	require.NoError(t, err)
	assert.False(t, entities.IsTempID(milk.ID))

	tasks := ws.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "Buy milk", tasks[0].Title)
	assert.False(t, tasks[0].Completed)
	assert.Equal(t, entities.CategoryPersonal, tasks[0].Category)

	_, err = ws.ToggleTask(ctx, milk.ID)
	require.NoError(t, err)

	tasks = ws.Tasks()
	require.Len(t, tasks, 2)
	assert.True(t, tasks[0].Completed)
	assert.True(t, storedTasks(t, store)[0].Completed)
}

func TestEditsOnTemporaryIDAreReplayed(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()
	ws := started(t, store, manualTicks())

	var (
		created entities.Task
		err     error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		created, err = ws.CreateTask(ctx, TaskDraft{Title: "Call the bank"})
	}()

	<-store.entered
	optimistic := ws.Tasks()
	require.Len(t, optimistic, 1)
	tempID := optimistic[0].ID
	require.True(t, entities.IsTempID(tempID))

	toggled, toggleErr := ws.ToggleTask(ctx, tempID)
	require.NoError(t, toggleErr)
	assert.True(t, toggled.Completed)

	close(store.gate)
	<-done
	require.NoError(t, err)

	tasks := ws.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, created.ID, tasks[0].ID)
	assert.False(t, entities.IsTempID(tasks[0].ID))
	assert.True(t, tasks[0].Completed)

	stored := storedTasks(t, store)
	require.Len(t, stored, 1)
	assert.Equal(t, created.ID, stored[0].ID)
	assert.True(t, stored[0].Completed)
}

func TestDeleteOnTemporaryIDIsReplayed(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()
	ws := started(t, store, manualTicks())

	done := make(chan error, 1)
	go func() {
		_, err := ws.CreateTask(ctx, TaskDraft{Title: "Never mind"})
		done <- err
	}()

	<-store.entered
	tempID := ws.Tasks()[0].ID
	require.NoError(t, ws.DeleteTask(ctx, tempID))
	assert.Empty(t, ws.Tasks())

	close(store.gate)
	require.NoError(t, <-done)

	assert.Empty(t, ws.Tasks())
	assert.Empty(t, storedTasks(t, store))
}

func TestFailedAddKeepsOptimisticCopyUntilNextSnapshot(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	ws := started(t, store, manualTicks())

	boom := errors.New("quota exceeded")
	store.FailWrites(boom)
	lost, err := ws.CreateTask(ctx, TaskDraft{Title: "Lost"})
	require.ErrorIs(t, err, boom)
	assert.True(t, entities.IsTempID(lost.ID))
	require.Len(t, ws.Tasks(), 1)

	store.FailWrites(nil)
	kept, err := ws.CreateTask(ctx, TaskDraft{Title: "Kept"})
	require.NoError(t, err)

	tasks := ws.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, kept.ID, tasks[0].ID)
}

func TestDisconnectedStoreRunsLocally(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore(repository.WithConnectError(errors.New("no network")))
	ws := started(t, store, manualTicks())
	assert.False(t, ws.Connected())
	assert.False(t, ws.View().Connected)

	task, err := ws.CreateTask(ctx, TaskDraft{Title: "Offline"})
	require.NoError(t, err)
	assert.True(t, entities.IsTempID(task.ID))

	task, err = ws.ToggleTask(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, task.Completed)

	note, err := ws.CreateNote(ctx, NoteDraft{Content: "local only"})
	require.NoError(t, err)
	require.NoError(t, ws.DeleteNote(ctx, note.ID))
	assert.Empty(t, ws.Notes())
}

func TestConvertNoteToTask(t *testing.T) {
	ctx := context.Background()
	ws := started(t, repository.NewMemoryStore(), manualTicks())

	note, err := ws.CreateNote(ctx, NoteDraft{Content: strings.Repeat("x", 60)})
	require.NoError(t, err)
	other, err := ws.CreateNote(ctx, NoteDraft{Content: "stay"})
	require.NoError(t, err)

	task, err := ws.ConvertNoteToTask(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 50)+"...", task.Title)
	assert.Equal(t, entities.CategoryWork, task.Category)
	assert.Equal(t, entities.PriorityMedium, task.Priority)
	assert.Equal(t, "Today", task.DueDate)
	assert.Zero(t, task.TimeSpent)

	notes := ws.Notes()
	require.Len(t, notes, 1)
	assert.Equal(t, other.ID, notes[0].ID)
	assert.Len(t, ws.Tasks(), 1)

	_, err = ws.ConvertNoteToTask(ctx, "missing")
	assert.ErrorIs(t, err, entities.ErrNoteNotFound)
}

func TestImmutableFieldsAreRejected(t *testing.T) {
	ctx := context.Background()
	ws := started(t, repository.NewMemoryStore(), manualTicks())

	task, err := ws.CreateTask(ctx, TaskDraft{Title: "Fixed"})
	require.NoError(t, err)

	_, err = ws.UpdateTask(ctx, task.ID, entities.Patch{"userId": "someone-else"})
	assert.ErrorIs(t, err, ports.ErrUnknownField)

	_, err = ws.UpdateTask(ctx, "missing", entities.Patch{"title": "x"})
	assert.ErrorIs(t, err, entities.ErrTaskNotFound)
}

func TestInvalidPatchOnTemporaryIDLeavesReplayIntact(t *testing.T) {
	ctx := context.Background()
	store := newGatedStore()
	ws := started(t, store, manualTicks())

	var (
		created entities.Task
		err     error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		created, err = ws.CreateTask(ctx, TaskDraft{Title: "Pay rent"})
	}()

	<-store.entered
	tempID := ws.Tasks()[0].ID

	_, patchErr := ws.UpdateTask(ctx, tempID, entities.Patch{"completed": true, "bogus": 1})
	assert.ErrorIs(t, patchErr, ports.ErrUnknownField)
	_, patchErr = ws.UpdateTask(ctx, tempID, entities.Patch{"title": nil})
	assert.ErrorIs(t, patchErr, entities.ErrRequiredField)

	local, getErr := ws.Task(tempID)
	require.NoError(t, getErr)
	assert.False(t, local.Completed)
	assert.Equal(t, "Pay rent", local.Title)

	_, patchErr = ws.UpdateTask(ctx, tempID, entities.Patch{"priority": "High"})
	require.NoError(t, patchErr)

	close(store.gate)
	<-done
	require.NoError(t, err)

	stored := storedTasks(t, store)
	require.Len(t, stored, 1)
	assert.Equal(t, created.ID, stored[0].ID)
	assert.Equal(t, entities.PriorityHigh, stored[0].Priority)
	assert.False(t, stored[0].Completed)
	assert.Equal(t, "Pay rent", stored[0].Title)
}

func TestOptionalFieldsCanBeCleared(t *testing.T) {
	ctx := context.Background()
	ws := started(t, repository.NewMemoryStore(), manualTicks())

	task, err := ws.CreateTask(ctx, TaskDraft{Title: "Stretch", StartTime: "07:30"})
	require.NoError(t, err)
	require.NotNil(t, task.StartTime)

	task, err = ws.UpdateTask(ctx, task.ID, entities.Patch{"startTime": nil})
	require.NoError(t, err)
	assert.Nil(t, task.StartTime)

	_, err = ws.UpdateTask(ctx, task.ID, entities.Patch{"title": nil})
	assert.ErrorIs(t, err, entities.ErrRequiredField)
	task, err = ws.Task(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Stretch", task.Title)

	note, err := ws.CreateNote(ctx, NoteDraft{Content: "keep me"})
	require.NoError(t, err)
	_, err = ws.UpdateNote(ctx, note.ID, entities.Patch{"content": nil})
	assert.ErrorIs(t, err, entities.ErrRequiredField)
}

func TestWatchDeliversViews(t *testing.T) {
	ctx := context.Background()
	ws := started(t, repository.NewMemoryStore(), manualTicks())

	var (
		mu     sync.Mutex
		events []Event
	)
	cancel := ws.Watch(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	_, err := ws.CreateTask(ctx, TaskDraft{Title: "Watched"})
	require.NoError(t, err)
	ws.Remind(entities.Task{ID: "t1", Title: "Standup"})

	mu.Lock()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventReminder, last.Type)
	assert.Equal(t, "Standup", last.Task.Title)
	var version uint64
	for _, e := range events[:len(events)-1] {
		require.Equal(t, EventView, e.Type)
		assert.Greater(t, e.View.Version, version)
		version = e.View.Version
	}
	count := len(events)
	mu.Unlock()

	cancel()
	_, err = ws.CreateTask(ctx, TaskDraft{Title: "Unwatched"})
	require.NoError(t, err)

	mu.Lock()
	assert.Len(t, events, count)
	mu.Unlock()
}

func TestTaskDraftDefaults(t *testing.T) {
	task, err := newTask(user, TaskDraft{Title: "  Night shift  ", StartTime: "22:30", EndTime: "00:15", DueDate: "2024-01-01"})
	require.NoError(t, err)
	assert.Equal(t, "Night shift", task.Title)
	assert.Equal(t, entities.CategoryWork, task.Category)
	assert.Equal(t, entities.PriorityMedium, task.Priority)
	require.NotNil(t, task.Duration)
	assert.Equal(t, 105, *task.Duration)
	require.NotNil(t, task.Day)
	assert.Equal(t, "Mon", *task.Day)

	task, err = newTask(user, TaskDraft{Title: "Gym", DueDate: "Wed", StartTime: "10:00", EndTime: "10:00"})
	require.NoError(t, err)
	assert.Nil(t, task.Duration)
	assert.Equal(t, "Wed", *task.Day)

	task, err = newTask(user, TaskDraft{Title: "Anytime"})
	require.NoError(t, err)
	assert.Equal(t, "Today", task.DueDate)
	assert.Nil(t, task.Day)

	_, err = newTask(user, TaskDraft{Title: "   "})
	assert.ErrorIs(t, err, entities.ErrEmptyTitle)
}

func TestNoteDraftDefaults(t *testing.T) {
	ws := New(user, repository.NewMemoryStore(), manualTicks(), logger.NewNop())
	note, err := ws.CreateNote(context.Background(), NoteDraft{Content: "idea"})
	require.NoError(t, err)

	assert.Equal(t, "bg-yellow-100", note.Color)
	assert.Equal(t, entities.SkinClassic, note.Skin)
	assert.Equal(t, "Just now", note.Date)
	assert.Equal(t, 250.0, note.Width)
	assert.Equal(t, 200.0, note.Height)
	assert.Equal(t, 1.0, note.Opacity)
	assert.GreaterOrEqual(t, note.X, 50.0)
	assert.Less(t, note.X, 250.0)
	assert.GreaterOrEqual(t, note.Rotation, -3.0)
	assert.Less(t, note.Rotation, 3.0)

	_, err = ws.CreateNote(context.Background(), NoteDraft{Content: " "})
	assert.ErrorIs(t, err, entities.ErrEmptyContent)
}

func TestMergePolicyWithExtraRule(t *testing.T) {
	policy := DefaultTaskPolicy().With(Rule[entities.Task]{
		Field:     "title",
		Condition: func(l entities.Task) bool { return strings.HasSuffix(l.Title, "*") },
		Keep:      func(m *entities.Task, l entities.Task) { m.Title = l.Title },
	})
	assert.Equal(t, []string{"timeSpent", "isTimerRunning", "title"}, policy.ClientFields())

	merged := policy.Merge(
		entities.Task{Title: "draft*", TimeSpent: 5},
		entities.Task{Title: "server", TimeSpent: 9, Completed: true},
	)
	assert.Equal(t, "draft*", merged.Title)
	assert.Equal(t, 9, merged.TimeSpent)
	assert.True(t, merged.Completed)
}
