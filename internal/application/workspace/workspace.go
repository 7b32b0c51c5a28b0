package workspace

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ophion/companion/internal/application/board"
	"github.com/ophion/companion/internal/domain/entities"
	"github.com/ophion/companion/internal/infrastructure/logger"
	"github.com/ophion/companion/internal/ports"
)

// Options tunes a Workspace. Zero values take the defaults.
type Options struct {
	// TickInterval of the elapsed-time ticker. Negative disables the
	// background ticker so callers drive Tick themselves.
	TickInterval time.Duration
	TaskPolicy   *MergePolicy[entities.Task]
	NotePolicy   *MergePolicy[entities.Note]
	Rand         *rand.Rand
}

// View is everything a dashboard renders for one user
type View struct {
	Version    uint64                  `json:"version"`
	Tasks      []entities.Task         `json:"tasks"`
	Notes      []entities.Note         `json:"notes"`
	Progress   int                     `json:"progress"`
	Categories []entities.CategoryStat `json:"categories"`
	Connected  bool                    `json:"connected"`
}

type EventType string

const (
	EventView     EventType = "view"
	EventReminder EventType = "reminder"
)

// Event is delivered to watchers. Views carry an increasing Version so a
// consumer can drop one that arrives after a newer one.
type Event struct {
	Type EventType      `json:"type"`
	View *View          `json:"view,omitempty"`
	Task *entities.Task `json:"task,omitempty"`
}

// Workspace holds the task and note collections of one user and keeps them
// in step with the remote store
type Workspace struct {
	userID string
	store  ports.RemoteStore
	logger *logger.Logger

	interval time.Duration
	rng      *rand.Rand

	mu        sync.Mutex
	tasks     *collection[entities.Task]
	notes     *collection[entities.Note]
	pending   *mutationLog
	connected bool
	started   bool
	closed    bool
	version   uint64
	unsubs    []ports.Unsubscribe
	watchers  map[int]func(Event)
	nextWatch int
	ticker    *ticker
}

// New creates a local-only workspace. Start attaches it to the store.
func New(userID string, store ports.RemoteStore, opts Options, log *logger.Logger) *Workspace {
	taskPolicy := DefaultTaskPolicy()
	if opts.TaskPolicy != nil {
		taskPolicy = *opts.TaskPolicy
	}
	notePolicy := DefaultNotePolicy()
	if opts.NotePolicy != nil {
		notePolicy = *opts.NotePolicy
	}
	if opts.TickInterval == 0 {
		opts.TickInterval = time.Second
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Workspace{
		userID:   userID,
		store:    store,
		logger:   log.WithComponent("workspace").WithUserID(userID),
		interval: opts.TickInterval,
		rng:      opts.Rand,
		tasks:    newCollection(entities.CollectionTasks, taskPolicy, true),
		notes:    newCollection(entities.CollectionNotes, notePolicy, false),
		pending:  newMutationLog(),
		watchers: make(map[int]func(Event)),
	}
}

func (w *Workspace) UserID() string { return w.userID }

// Start connects the store and subscribes to both collections. A store
// that cannot be reached leaves the workspace in local-only mode.
func (w *Workspace) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started || w.closed {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	if err := w.store.Connect(ctx); err != nil {
		w.logger.Warnw("Remote store unreachable, working locally", "error", err.Error())
		w.setConnected(false)
		return nil
	}
	w.setConnected(true)

	unsubTasks, err := w.store.Subscribe(ctx, entities.CollectionTasks, w.userID, w.onTasks)
	if err != nil {
		w.setConnected(false)
		return fmt.Errorf("subscribe tasks: %w", err)
	}
	unsubNotes, err := w.store.Subscribe(ctx, entities.CollectionNotes, w.userID, w.onNotes)
	if err != nil {
		unsubTasks()
		w.setConnected(false)
		return fmt.Errorf("subscribe notes: %w", err)
	}

	w.mu.Lock()
	w.unsubs = append(w.unsubs, unsubTasks, unsubNotes)
	w.mu.Unlock()
	return nil
}

func (w *Workspace) setConnected(connected bool) {
	w.mu.Lock()
	w.connected = connected
	w.unlockAndNotify()
}

// Connected reports whether writes reach the remote store
func (w *Workspace) Connected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

func (w *Workspace) onTasks(snap ports.Snapshot) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.tasks.reconcile(snap.Tasks, w.pending.isPending)
	w.unlockAndNotify()
}

func (w *Workspace) onNotes(snap ports.Snapshot) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.notes.reconcile(snap.Notes, w.pending.isPending)
	w.unlockAndNotify()
}

// unlockAndNotify is called with w.mu held after every state change. It
// adjusts the ticker, releases the lock and then delivers the new view.
func (w *Workspace) unlockAndNotify() {
	w.syncTickerLocked()
	w.version++
	view := w.viewLocked()
	watchers := w.watchersLocked()
	w.mu.Unlock()

	for _, fn := range watchers {
		fn(Event{Type: EventView, View: &view})
	}
}

func (w *Workspace) watchersLocked() []func(Event) {
	out := make([]func(Event), 0, len(w.watchers))
	for _, fn := range w.watchers {
		out = append(out, fn)
	}
	return out
}

func (w *Workspace) viewLocked() View {
	tasks := w.tasks.list()
	return View{
		Version:    w.version,
		Tasks:      tasks,
		Notes:      w.notes.list(),
		Progress:   Progress(tasks),
		Categories: CategoryDistribution(tasks),
		Connected:  w.connected,
	}
}

func (w *Workspace) syncTickerLocked() {
	running := false
	if !w.closed && w.interval > 0 {
		for _, t := range w.tasks.items {
			if t.IsTimerRunning {
				running = true
				break
			}
		}
	}

	switch {
	case running && w.ticker == nil:
		w.ticker = startTicker(w.interval, w.Tick)
	case !running && w.ticker != nil:
		w.ticker.halt()
		w.ticker = nil
	}
}

// Ticking reports whether the background ticker is alive
func (w *Workspace) Ticking() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ticker != nil
}

// Tick adds one second to every running timer. Ticks stay local; the
// accumulated value is written when the timer is toggled.
func (w *Workspace) Tick() {
	w.mu.Lock()
	changed := false
	for i := range w.tasks.items {
		if w.tasks.items[i].IsTimerRunning {
			w.tasks.items[i].TimeSpent++
			changed = true
		}
	}
	if !changed || w.closed {
		w.mu.Unlock()
		return
	}
	w.unlockAndNotify()
}

// View returns the current state
func (w *Workspace) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewLocked()
}

func (w *Workspace) Tasks() []entities.Task {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tasks.list()
}

func (w *Workspace) Notes() []entities.Note {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.notes.list()
}

func (w *Workspace) Task(id string) (entities.Task, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.tasks.get(id)
	if !ok {
		return t, entities.ErrTaskNotFound
	}
	return t, nil
}

func (w *Workspace) Note(id string) (entities.Note, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, ok := w.notes.get(id)
	if !ok {
		return n, entities.ErrNoteNotFound
	}
	return n, nil
}

func (w *Workspace) Progress() int {
	return Progress(w.Tasks())
}

func (w *Workspace) CategoryDistribution() []entities.CategoryStat {
	return CategoryDistribution(w.Tasks())
}

// Watch registers fn for every following event. fn runs outside the
// workspace lock and must not block.
func (w *Workspace) Watch(fn func(Event)) (cancel func()) {
	w.mu.Lock()
	id := w.nextWatch
	w.nextWatch++
	w.watchers[id] = fn
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.watchers, id)
			w.mu.Unlock()
		})
	}
}

// Remind delivers a reminder for task to the watchers
func (w *Workspace) Remind(task entities.Task) {
	w.mu.Lock()
	watchers := w.watchersLocked()
	w.mu.Unlock()

	for _, fn := range watchers {
		t := task
		fn(Event{Type: EventReminder, Task: &t})
	}
}

// Close unsubscribes from the store and stops the ticker. In-flight writes
// are not cancelled.
func (w *Workspace) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	unsubs := w.unsubs
	w.unsubs = nil
	w.watchers = make(map[int]func(Event))
	w.syncTickerLocked()
	w.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

// CreateTask inserts a task from a form or AI draft
func (w *Workspace) CreateTask(ctx context.Context, d TaskDraft) (entities.Task, error) {
	t, err := newTask(w.userID, d)
	if err != nil {
		return t, err
	}
	return create(ctx, w, w.tasks, t)
}

// CreateTasks inserts a batch of drafts, skipping the invalid ones
func (w *Workspace) CreateTasks(ctx context.Context, drafts []TaskDraft) ([]entities.Task, error) {
	created := make([]entities.Task, 0, len(drafts))
	var errs []error
	for _, d := range drafts {
		t, err := w.CreateTask(ctx, d)
		if errors.Is(err, entities.ErrEmptyTitle) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
		}
		created = append(created, t)
	}
	return created, errors.Join(errs...)
}

func (w *Workspace) UpdateTask(ctx context.Context, id string, patch entities.Patch) (entities.Task, error) {
	return update(ctx, w, w.tasks, id, patch, entities.ErrTaskNotFound)
}

func (w *Workspace) DeleteTask(ctx context.Context, id string) error {
	return remove(ctx, w, w.tasks, id, entities.ErrTaskNotFound)
}

// ToggleTask flips the completion flag. The task stays in the list.
func (w *Workspace) ToggleTask(ctx context.Context, id string) (entities.Task, error) {
	t, err := w.Task(id)
	if err != nil {
		return t, err
	}
	return w.UpdateTask(ctx, id, entities.Patch{"completed": !t.Completed})
}

// ToggleTimer starts or stops the timer, persisting the elapsed time
func (w *Workspace) ToggleTimer(ctx context.Context, id string) (entities.Task, error) {
	t, err := w.Task(id)
	if err != nil {
		return t, err
	}
	return w.UpdateTask(ctx, id, entities.Patch{
		"isTimerRunning": !t.IsTimerRunning,
		"timeSpent":      t.TimeSpent,
	})
}

func (w *Workspace) ResetTimer(ctx context.Context, id string) (entities.Task, error) {
	return w.UpdateTask(ctx, id, entities.Patch{"timeSpent": 0, "isTimerRunning": false})
}

// CreateNote inserts a note from the quick-add form
func (w *Workspace) CreateNote(ctx context.Context, d NoteDraft) (entities.Note, error) {
	w.mu.Lock()
	n, err := newNote(w.userID, d, w.rng)
	w.mu.Unlock()
	if err != nil {
		return n, err
	}
	return create(ctx, w, w.notes, n)
}

func (w *Workspace) UpdateNote(ctx context.Context, id string, patch entities.Patch) (entities.Note, error) {
	return update(ctx, w, w.notes, id, patch, entities.ErrNoteNotFound)
}

func (w *Workspace) DeleteNote(ctx context.Context, id string) error {
	return remove(ctx, w, w.notes, id, entities.ErrNoteNotFound)
}

func (w *Workspace) TogglePin(ctx context.Context, id string) (entities.Note, error) {
	n, err := w.Note(id)
	if err != nil {
		return n, err
	}
	return w.UpdateNote(ctx, id, entities.Patch{"isPinned": !n.IsPinned})
}

// ConvertNoteToTask replaces a note with a task titled after its content.
// The task is created first so a failed write never loses the text.
func (w *Workspace) ConvertNoteToTask(ctx context.Context, noteID string) (entities.Task, error) {
	n, err := w.Note(noteID)
	if err != nil {
		return entities.Task{}, err
	}

	t, err := w.CreateTask(ctx, TaskDraft{
		Title:    board.TaskTitleFromNote(n.Content),
		Category: entities.CategoryWork,
		Priority: entities.PriorityMedium,
		DueDate:  "Today",
	})
	if err != nil {
		return t, fmt.Errorf("convert note %s: %w", noteID, err)
	}
	if err := w.DeleteNote(ctx, noteID); err != nil {
		return t, fmt.Errorf("convert note %s: %w", noteID, err)
	}
	return t, nil
}

// create shows rec under a temporary id, writes it and settles the
// permanent id, replaying any edits made while the write was in flight
func create[T storedRecord[T]](ctx context.Context, w *Workspace, c *collection[T], rec T) (T, error) {
	tempID := entities.TempIDPrefix + uuid.NewString()
	rec = rec.WithIdentity(tempID, nil)

	w.mu.Lock()
	c.insert(rec)
	online := w.connected
	if online {
		w.pending.begin(tempID, c.name)
	}
	w.unlockAndNotify()

	if !online {
		return rec, nil
	}

	id, err := w.store.Add(ctx, rec.WithIdentity("", nil))
	if err != nil {
		w.mu.Lock()
		w.pending.discard(tempID)
		w.mu.Unlock()
		w.logger.LogStoreWrite("add", string(c.name), tempID, err)
		return rec, fmt.Errorf("add %s: %w", c.name, err)
	}

	w.mu.Lock()
	entry, _ := w.pending.resolve(tempID)
	deleted := entry != nil && entry.deleted
	settled, found := rec.WithIdentity(id, nil), false
	if deleted {
		c.remove(id)
	} else {
		settled, found = c.settle(tempID, id)
		if !found {
			settled = rec.WithIdentity(id, nil)
		}
	}
	w.unlockAndNotify()

	switch {
	case deleted:
		if err := w.store.Delete(ctx, c.name, id); err != nil {
			w.logger.LogStoreWrite("delete", string(c.name), id, err)
			return settled, fmt.Errorf("delete %s %s: %w", c.name, id, err)
		}
	case entry != nil && len(entry.patch) > 0:
		if err := w.store.Update(ctx, c.name, id, entry.patch); err != nil {
			w.logger.LogStoreWrite("update", string(c.name), id, err)
			return settled, fmt.Errorf("update %s %s: %w", c.name, id, err)
		}
	}
	return settled, nil
}

func update[T storedRecord[T]](ctx context.Context, w *Workspace, c *collection[T], id string, patch entities.Patch, notFound error) (T, error) {
	var zero T
	if err := entities.ValidatePatch(c.name, patch); err != nil {
		return zero, err
	}

	w.mu.Lock()
	i := c.indexOf(id)
	if i < 0 {
		w.mu.Unlock()
		return zero, notFound
	}
	updated, err := entities.Apply(c.items[i], patch)
	if err != nil {
		w.mu.Unlock()
		return zero, fmt.Errorf("apply %s patch: %w", c.name, err)
	}
	c.items[i] = updated
	online := w.connected
	deferred := w.pending.record(id, patch)
	w.unlockAndNotify()

	if !online || deferred || entities.IsTempID(id) {
		return updated, nil
	}
	if err := w.store.Update(ctx, c.name, id, patch); err != nil {
		w.logger.LogStoreWrite("update", string(c.name), id, err)
		return updated, fmt.Errorf("update %s %s: %w", c.name, id, err)
	}
	return updated, nil
}

func remove[T storedRecord[T]](ctx context.Context, w *Workspace, c *collection[T], id string, notFound error) error {
	w.mu.Lock()
	if !c.remove(id) {
		w.mu.Unlock()
		return notFound
	}
	online := w.connected
	deferred := w.pending.markDeleted(id)
	w.unlockAndNotify()

	if !online || deferred || entities.IsTempID(id) {
		return nil
	}
	if err := w.store.Delete(ctx, c.name, id); err != nil {
		w.logger.LogStoreWrite("delete", string(c.name), id, err)
		return fmt.Errorf("delete %s %s: %w", c.name, id, err)
	}
	return nil
}
