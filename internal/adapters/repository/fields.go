package repository

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ophion/companion/internal/domain/entities"
	"github.com/ophion/companion/internal/ports"
)

// SQL column of every writable field, keyed by JSON name.
var (
	taskColumns = map[string]string{
		"title":          "title",
		"completed":      "completed",
		"category":       "category",
		"priority":       "priority",
		"dueDate":        "due_date",
		"projectId":      "project_id",
		"assignedTo":     "assigned_to",
		"timeSpent":      "time_spent",
		"isTimerRunning": "is_timer_running",
		"startTime":      "start_time",
		"duration":       "duration",
		"day":            "day",
	}
	noteColumns = map[string]string{
		"content":  "content",
		"color":    "color",
		"skin":     "skin",
		"isPinned": "is_pinned",
		"priority": "priority",
		"date":     "date",
		"x":        "x",
		"y":        "y",
		"rotation": "rotation",
		"width":    "width",
		"height":   "height",
		"opacity":  "opacity",
	}
)

func columnsFor(collection entities.Collection) (map[string]string, error) {
	switch collection {
	case entities.CollectionTasks:
		return taskColumns, nil
	case entities.CollectionNotes:
		return noteColumns, nil
	}
	return nil, fmt.Errorf("%w: %q", ports.ErrUnknownCollection, collection)
}

// patchFields validates patch against the collection and returns its keys in
// a stable order.
func patchFields(collection entities.Collection, patch entities.Patch) ([]string, error) {
	if err := entities.ValidatePatch(collection, patch); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// sortTasks orders tasks by creation time, newest first.
func sortTasks(tasks []entities.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].CreatedAt, tasks[j].CreatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})
}

type subscription struct {
	id         uint64
	collection entities.Collection
	userID     string
	onChange   func(ports.Snapshot)
}

// subscriptionHub tracks live queries and hands out independent cancel funcs.
type subscriptionHub struct {
	mu   sync.RWMutex
	next uint64
	subs map[uint64]*subscription
}

func newSubscriptionHub() *subscriptionHub {
	return &subscriptionHub{subs: make(map[uint64]*subscription)}
}

func (h *subscriptionHub) add(collection entities.Collection, userID string, fn func(ports.Snapshot)) (*subscription, ports.Unsubscribe) {
	h.mu.Lock()
	h.next++
	sub := &subscription{id: h.next, collection: collection, userID: userID, onChange: fn}
	h.subs[sub.id] = sub
	h.mu.Unlock()

	var once sync.Once
	return sub, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub.id)
			h.mu.Unlock()
		})
	}
}

func (h *subscriptionHub) active(id uint64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.subs[id]
	return ok
}

// matching returns subscriptions for collection, limited to userID unless it is empty.
func (h *subscriptionHub) matching(collection entities.Collection, userID string) []*subscription {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*subscription
	for _, sub := range h.subs {
		if sub.collection != collection {
			continue
		}
		if userID != "" && sub.userID != userID {
			continue
		}
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (h *subscriptionHub) all() []*subscription {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (h *subscriptionHub) clear() {
	h.mu.Lock()
	h.subs = make(map[uint64]*subscription)
	h.mu.Unlock()
}
