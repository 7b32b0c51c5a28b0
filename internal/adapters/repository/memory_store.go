package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ophion/companion/internal/domain/entities"
	"github.com/ophion/companion/internal/infrastructure/metrics"
	"github.com/ophion/companion/internal/ports"
)

// MemoryStore is a process-local RemoteStore. Snapshots are delivered
// synchronously after each write, once the store lock is released.
type MemoryStore struct {
	mu       sync.Mutex
	tasks    map[string]entities.Task
	notes    map[string]entities.Note
	taskSeq  []string
	noteSeq  []string
	connErr  error
	writeErr error
	now      func() time.Time

	hub    *subscriptionHub
	writes *prometheus.CounterVec
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithConnectError makes Connect fail, putting the store in disconnected mode.
func WithConnectError(err error) MemoryOption {
	return func(s *MemoryStore) { s.connErr = err }
}

// WithClock overrides the timestamp source for createdAt.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithWriteCounter counts writes on the given collector.
func WithWriteCounter(c *prometheus.CounterVec) MemoryOption {
	return func(s *MemoryStore) { s.writes = c }
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		tasks: make(map[string]entities.Task),
		notes: make(map[string]entities.Note),
		now:   time.Now,
		hub:   newSubscriptionHub(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailWrites makes every following write return err. Pass nil to restore.
func (s *MemoryStore) FailWrites(err error) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}

func (s *MemoryStore) Connect(ctx context.Context) error {
	return s.connErr
}

func (s *MemoryStore) Connected() bool {
	return s.connErr == nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, collection entities.Collection, userID string, onChange func(ports.Snapshot)) (ports.Unsubscribe, error) {
	if !s.Connected() {
		return nil, ports.ErrStoreDisconnected
	}
	if _, err := columnsFor(collection); err != nil {
		return nil, err
	}

	sub, cancel := s.hub.add(collection, userID, onChange)
	s.mu.Lock()
	snap := s.snapshotLocked(collection, userID)
	s.mu.Unlock()
	sub.onChange(snap)

	return cancel, nil
}

func (s *MemoryStore) Add(ctx context.Context, record entities.Record) (string, error) {
	id, err := s.add(record)
	s.observe(record.Collection(), "add", err)
	if err != nil {
		return "", err
	}
	s.publish(record.Collection(), record.Owner())
	return id, nil
}

func (s *MemoryStore) add(record entities.Record) (string, error) {
	if !s.Connected() {
		return "", ports.ErrStoreDisconnected
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return "", s.writeErr
	}

	id := uuid.NewString()
	created := s.now()

	switch r := record.(type) {
	case entities.Task:
		r.ID, r.CreatedAt = id, &created
		s.tasks[id] = r
		s.taskSeq = append(s.taskSeq, id)
	case *entities.Task:
		t := *r
		t.ID, t.CreatedAt = id, &created
		s.tasks[id] = t
		s.taskSeq = append(s.taskSeq, id)
	case entities.Note:
		r.ID, r.CreatedAt = id, &created
		s.notes[id] = r
		s.noteSeq = append(s.noteSeq, id)
	case *entities.Note:
		n := *r
		n.ID, n.CreatedAt = id, &created
		s.notes[id] = n
		s.noteSeq = append(s.noteSeq, id)
	default:
		return "", fmt.Errorf("%w: %T", ports.ErrUnknownCollection, record)
	}
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection entities.Collection, id string, patch entities.Patch) error {
	owner, err := s.update(collection, id, patch)
	s.observe(collection, "update", err)
	if err != nil {
		return err
	}
	s.publish(collection, owner)
	return nil
}

func (s *MemoryStore) update(collection entities.Collection, id string, patch entities.Patch) (string, error) {
	if !s.Connected() {
		return "", ports.ErrStoreDisconnected
	}
	if _, err := patchFields(collection, patch); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return "", s.writeErr
	}

	switch collection {
	case entities.CollectionTasks:
		t, ok := s.tasks[id]
		if !ok {
			return "", fmt.Errorf("%w: task %s", ports.ErrRecordNotFound, id)
		}
		updated, err := entities.Apply(t, patch)
		if err != nil {
			return "", err
		}
		s.tasks[id] = updated
		return updated.UserID, nil
	default:
		n, ok := s.notes[id]
		if !ok {
			return "", fmt.Errorf("%w: note %s", ports.ErrRecordNotFound, id)
		}
		updated, err := entities.Apply(n, patch)
		if err != nil {
			return "", err
		}
		s.notes[id] = updated
		return updated.UserID, nil
	}
}

func (s *MemoryStore) Delete(ctx context.Context, collection entities.Collection, id string) error {
	owner, err := s.delete(collection, id)
	s.observe(collection, "delete", err)
	if err != nil {
		return err
	}
	if owner != "" {
		s.publish(collection, owner)
	}
	return nil
}

func (s *MemoryStore) delete(collection entities.Collection, id string) (string, error) {
	if !s.Connected() {
		return "", ports.ErrStoreDisconnected
	}
	if _, err := columnsFor(collection); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return "", s.writeErr
	}

	if collection == entities.CollectionTasks {
		t, ok := s.tasks[id]
		if !ok {
			return "", nil
		}
		delete(s.tasks, id)
		s.taskSeq = without(s.taskSeq, id)
		return t.UserID, nil
	}

	n, ok := s.notes[id]
	if !ok {
		return "", nil
	}
	delete(s.notes, id)
	s.noteSeq = without(s.noteSeq, id)
	return n.UserID, nil
}

func without(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func (s *MemoryStore) Close() error {
	s.hub.clear()
	return nil
}

func (s *MemoryStore) publish(collection entities.Collection, userID string) {
	subs := s.hub.matching(collection, userID)
	if len(subs) == 0 {
		return
	}

	s.mu.Lock()
	snap := s.snapshotLocked(collection, userID)
	s.mu.Unlock()

	for _, sub := range subs {
		if s.hub.active(sub.id) {
			sub.onChange(snap)
		}
	}
}

func (s *MemoryStore) snapshotLocked(collection entities.Collection, userID string) ports.Snapshot {
	snap := ports.Snapshot{Collection: collection, UserID: userID}
	if collection == entities.CollectionTasks {
		snap.Tasks = []entities.Task{}
		for i := len(s.taskSeq) - 1; i >= 0; i-- {
			if t := s.tasks[s.taskSeq[i]]; t.UserID == userID {
				snap.Tasks = append(snap.Tasks, t)
			}
		}
		sortTasks(snap.Tasks)
		return snap
	}

	snap.Notes = []entities.Note{}
	for _, id := range s.noteSeq {
		if n := s.notes[id]; n.UserID == userID {
			snap.Notes = append(snap.Notes, n)
		}
	}
	return snap
}

func (s *MemoryStore) observe(collection entities.Collection, op string, err error) {
	if s.writes == nil {
		return
	}
	s.writes.WithLabelValues(string(collection), op, metrics.Outcome(err)).Inc()
}
