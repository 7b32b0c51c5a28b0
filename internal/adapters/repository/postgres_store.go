package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ophion/companion/internal/domain/entities"
	"github.com/ophion/companion/internal/infrastructure/config"
	"github.com/ophion/companion/internal/infrastructure/database"
	"github.com/ophion/companion/internal/infrastructure/logger"
	"github.com/ophion/companion/internal/infrastructure/metrics"
	"github.com/ophion/companion/internal/ports"
)

// ChangeChannel is the NOTIFY channel fed by the table triggers
const ChangeChannel = "companion_changes"

const (
	taskSelect = `SELECT id, user_id, title, completed, category, priority, due_date, project_id, assigned_to,
		time_spent, is_timer_running, start_time, duration, day, created_at
		FROM tasks WHERE user_id = $1 ORDER BY created_at DESC`
	noteSelect = `SELECT id, user_id, content, color, skin, is_pinned, priority, date, x, y, rotation,
		width, height, opacity, created_at
		FROM notes WHERE user_id = $1 ORDER BY created_at`
	taskInsert = `INSERT INTO tasks (id, user_id, title, completed, category, priority, due_date, project_id,
		assigned_to, time_spent, is_timer_running, start_time, duration, day)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at`
	noteInsert = `INSERT INTO notes (id, user_id, content, color, skin, is_pinned, priority, date, x, y,
		rotation, width, height, opacity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at`
)

// changePayload is the JSON body of a companion_changes notification
type changePayload struct {
	Collection entities.Collection `json:"collection"`
	UserID     string              `json:"user_id"`
}

// PostgresStore is the RemoteStore backed by Postgres. Pushes arrive through
// LISTEN/NOTIFY and are turned into full snapshots by re-querying.
type PostgresStore struct {
	cfg    config.DatabaseConfig
	logger *logger.Logger
	writes *prometheus.CounterVec

	connectOnce sync.Once
	connectErr  error
	connected   atomic.Bool

	db       *database.DB
	closeDB  func() error
	listener *pq.Listener
	notify   <-chan *pq.Notification

	hub      *subscriptionHub
	dispatch sync.Mutex
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewPostgresStore creates a store that connects on first use
func NewPostgresStore(cfg config.DatabaseConfig, writes *prometheus.CounterVec, logger *logger.Logger) *PostgresStore {
	return &PostgresStore{
		cfg:    cfg,
		logger: logger.WithComponent("postgres_store"),
		writes: writes,
		hub:    newSubscriptionHub(),
		done:   make(chan struct{}),
	}
}

// NewPostgresStoreWithDB adopts an open handle and a notification source.
// Connect becomes a no-op and Close leaves the handle open.
func NewPostgresStoreWithDB(db *database.DB, notify <-chan *pq.Notification, writes *prometheus.CounterVec, logger *logger.Logger) *PostgresStore {
	s := NewPostgresStore(config.DatabaseConfig{}, writes, logger)
	s.db = db
	s.notify = notify
	s.connectOnce.Do(func() {})
	s.connected.Store(true)
	s.startDispatcher()
	return s
}

func (s *PostgresStore) Connect(ctx context.Context) error {
	s.connectOnce.Do(func() {
		s.connectErr = s.connect(ctx)
		s.connected.Store(s.connectErr == nil)
		if s.connectErr != nil {
			s.logger.Warnw("Remote store unavailable, continuing local-only", "error", s.connectErr)
		}
	})
	return s.connectErr
}

func (s *PostgresStore) connect(ctx context.Context) error {
	db, err := database.New(ctx, s.cfg)
	if err != nil {
		return err
	}

	listener := pq.NewListener(db.DSN(), s.cfg.ListenerMinReconnect, s.cfg.ListenerMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				s.logger.Warnw("Change listener event", "event", ev, "error", err)
			}
		})
	if err := listener.Listen(ChangeChannel); err != nil {
		listener.Close()
		db.Close()
		return fmt.Errorf("listen %s: %w", ChangeChannel, err)
	}

	s.db = db
	s.closeDB = db.Close
	s.listener = listener
	s.notify = listener.Notify
	s.startDispatcher()
	return nil
}

func (s *PostgresStore) Connected() bool {
	return s.connected.Load()
}

// HealthCheck pings the connection pool
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	if !s.Connected() {
		return ports.ErrStoreDisconnected
	}
	return s.db.HealthCheck(ctx)
}

// PoolStats reports connection pool usage, or nil before Connect succeeded
func (s *PostgresStore) PoolStats() map[string]interface{} {
	if !s.Connected() {
		return nil
	}
	return s.db.Stats()
}

func (s *PostgresStore) Subscribe(ctx context.Context, collection entities.Collection, userID string, onChange func(ports.Snapshot)) (ports.Unsubscribe, error) {
	if !s.Connected() {
		return nil, ports.ErrStoreDisconnected
	}
	if _, err := columnsFor(collection); err != nil {
		return nil, err
	}

	snap, err := s.query(ctx, collection, userID)
	if err != nil {
		return nil, err
	}

	sub, cancel := s.hub.add(collection, userID, onChange)
	s.dispatch.Lock()
	sub.onChange(snap)
	s.dispatch.Unlock()
	return cancel, nil
}

func (s *PostgresStore) Add(ctx context.Context, record entities.Record) (string, error) {
	id, err := s.insert(ctx, record)
	s.observe(record.Collection(), "add", err)
	return id, err
}

func (s *PostgresStore) insert(ctx context.Context, record entities.Record) (string, error) {
	if !s.Connected() {
		return "", ports.ErrStoreDisconnected
	}

	id := uuid.NewString()
	var created time.Time
	var row *sqlx.Row

	switch r := record.(type) {
	case entities.Task:
		row = s.insertTask(ctx, id, &r)
	case *entities.Task:
		row = s.insertTask(ctx, id, r)
	case entities.Note:
		row = s.insertNote(ctx, id, &r)
	case *entities.Note:
		row = s.insertNote(ctx, id, r)
	default:
		return "", fmt.Errorf("%w: %T", ports.ErrUnknownCollection, record)
	}

	if err := row.Scan(&created); err != nil {
		return "", fmt.Errorf("insert %s: %w", record.Collection(), err)
	}
	return id, nil
}

func (s *PostgresStore) insertTask(ctx context.Context, id string, t *entities.Task) *sqlx.Row {
	return s.db.DB.QueryRowxContext(ctx, taskInsert,
		id, t.UserID, t.Title, t.Completed, t.Category, t.Priority, t.DueDate, t.ProjectID,
		t.AssignedTo, t.TimeSpent, t.IsTimerRunning, t.StartTime, t.Duration, t.Day)
}

func (s *PostgresStore) insertNote(ctx context.Context, id string, n *entities.Note) *sqlx.Row {
	return s.db.DB.QueryRowxContext(ctx, noteInsert,
		id, n.UserID, n.Content, n.Color, n.Skin, n.IsPinned, n.Priority, n.Date, n.X, n.Y,
		n.Rotation, n.Width, n.Height, n.Opacity)
}

func (s *PostgresStore) Update(ctx context.Context, collection entities.Collection, id string, patch entities.Patch) error {
	err := s.update(ctx, collection, id, patch)
	s.observe(collection, "update", err)
	return err
}

func (s *PostgresStore) update(ctx context.Context, collection entities.Collection, id string, patch entities.Patch) error {
	if !s.Connected() {
		return ports.ErrStoreDisconnected
	}
	keys, err := patchFields(collection, patch)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	columns, _ := columnsFor(collection)
	sets := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys)+1)
	for i, k := range keys {
		sets = append(sets, fmt.Sprintf("%s = $%d", columns[k], i+1))
		args = append(args, patch[k])
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", collection, strings.Join(sets, ", "), len(args))
	res, err := s.db.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", collection, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", collection, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", ports.ErrRecordNotFound, collection, id)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection entities.Collection, id string) error {
	err := s.delete(ctx, collection, id)
	s.observe(collection, "delete", err)
	return err
}

func (s *PostgresStore) delete(ctx context.Context, collection entities.Collection, id string) error {
	if !s.Connected() {
		return ports.ErrStoreDisconnected
	}
	if _, err := columnsFor(collection); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", collection)
	if _, err := s.db.DB.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete %s: %w", collection, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}
	s.hub.clear()

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.wg.Wait()
	if s.closeDB != nil {
		if cerr := s.closeDB(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (s *PostgresStore) query(ctx context.Context, collection entities.Collection, userID string) (ports.Snapshot, error) {
	snap := ports.Snapshot{Collection: collection, UserID: userID}

	switch collection {
	case entities.CollectionTasks:
		snap.Tasks = []entities.Task{}
		if err := s.db.DB.SelectContext(ctx, &snap.Tasks, taskSelect, userID); err != nil {
			return snap, fmt.Errorf("query tasks: %w", err)
		}
	case entities.CollectionNotes:
		snap.Notes = []entities.Note{}
		if err := s.db.DB.SelectContext(ctx, &snap.Notes, noteSelect, userID); err != nil {
			return snap, fmt.Errorf("query notes: %w", err)
		}
	default:
		return snap, fmt.Errorf("%w: %q", ports.ErrUnknownCollection, collection)
	}
	return snap, nil
}

func (s *PostgresStore) startDispatcher() {
	if s.notify == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.done:
				return
			case n, ok := <-s.notify:
				if !ok {
					return
				}
				s.handleNotification(n)
			}
		}
	}()
}

// handleNotification refreshes the affected subscriptions. A nil notification
// means the listener reconnected and may have missed events.
func (s *PostgresStore) handleNotification(n *pq.Notification) {
	if n == nil {
		s.refresh(s.hub.all())
		return
	}

	var payload changePayload
	if err := json.Unmarshal([]byte(n.Extra), &payload); err != nil {
		s.logger.Warnw("Ignoring malformed change notification", "payload", n.Extra, "error", err)
		return
	}
	s.refresh(s.hub.matching(payload.Collection, payload.UserID))
}

func (s *PostgresStore) refresh(subs []*subscription) {
	s.dispatch.Lock()
	defer s.dispatch.Unlock()

	for _, sub := range subs {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		snap, err := s.query(ctx, sub.collection, sub.userID)
		cancel()
		if err != nil {
			s.logger.Warnw("Snapshot refresh failed",
				"collection", sub.collection, "user_id", sub.userID, "error", err)
			continue
		}
		if s.hub.active(sub.id) {
			sub.onChange(snap)
		}
	}
}

func (s *PostgresStore) observe(collection entities.Collection, op string, err error) {
	if s.writes == nil {
		return
	}
	s.writes.WithLabelValues(string(collection), op, metrics.Outcome(err)).Inc()
}
