package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ophion/companion/internal/domain/entities"
	"github.com/ophion/companion/internal/infrastructure/config"
	"github.com/ophion/companion/internal/infrastructure/database"
	"github.com/ophion/companion/internal/infrastructure/logger"
	"github.com/ophion/companion/internal/infrastructure/metrics"
	"github.com/ophion/companion/internal/ports"
)

type taskDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	entities.Task `bson:",inline"`
}

type noteDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	entities.Note `bson:",inline"`
}

const defaultStreamRetryDelay = 5 * time.Second

// changePipeline keeps document changes and drops collection-level events.
// Users are routed on the client because one stream serves every subscriber.
var changePipeline = mongo.Pipeline{
	{{Key: "$match", Value: bson.D{{Key: "operationType", Value: bson.D{
		{Key: "$in", Value: bson.A{"insert", "update", "replace", "delete"}},
	}}}}},
}

// streamState tracks the change stream of one collection
type streamState struct {
	live   bool
	opened int
}

// changeEvent is the part of a change stream document the store needs
type changeEvent struct {
	OperationType string `bson:"operationType"`
	FullDocument  struct {
		UserID string `bson:"userId"`
	} `bson:"fullDocument"`
}

// MongoStore is the RemoteStore backed by MongoDB change streams
type MongoStore struct {
	cfg    config.MongoConfig
	logger *logger.Logger
	writes *prometheus.CounterVec

	connectOnce sync.Once
	connectErr  error
	connected   atomic.Bool
	retryDelay  time.Duration

	conn *database.Mongo
	db   *mongo.Database

	streamMu sync.Mutex
	streams  map[entities.Collection]*streamState

	hub      *subscriptionHub
	dispatch sync.Mutex
	watchCtx context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewMongoStore creates a store that connects on first use
func NewMongoStore(cfg config.MongoConfig, writes *prometheus.CounterVec, logger *logger.Logger) *MongoStore {
	retry := cfg.StreamRetryDelay
	if retry <= 0 {
		retry = defaultStreamRetryDelay
	}
	watchCtx, cancel := context.WithCancel(context.Background())
	return &MongoStore{
		cfg:        cfg,
		logger:     logger.WithComponent("mongo_store"),
		writes:     writes,
		retryDelay: retry,
		streams:    make(map[entities.Collection]*streamState),
		hub:        newSubscriptionHub(),
		watchCtx:   watchCtx,
		cancel:     cancel,
	}
}

// NewMongoStoreWithDatabase adopts an existing database handle without
// opening change streams. Snapshots are then pushed after the store's own writes.
func NewMongoStoreWithDatabase(db *mongo.Database, logger *logger.Logger) *MongoStore {
	s := NewMongoStore(config.MongoConfig{}, nil, logger)
	s.db = db
	s.connectOnce.Do(func() {})
	s.connected.Store(true)
	return s
}

func (s *MongoStore) Connect(ctx context.Context) error {
	s.connectOnce.Do(func() {
		s.connectErr = s.connect(ctx)
		s.connected.Store(s.connectErr == nil)
		if s.connectErr != nil {
			s.logger.Warnw("Remote store unavailable, continuing local-only", "error", s.connectErr)
		}
	})
	return s.connectErr
}

func (s *MongoStore) connect(ctx context.Context) error {
	conn, err := database.NewMongo(ctx, s.cfg)
	if err != nil {
		return err
	}
	s.conn = conn
	s.db = conn.Database

	for _, c := range []entities.Collection{entities.CollectionTasks, entities.CollectionNotes} {
		s.follow(c)
	}
	return nil
}

func (s *MongoStore) Connected() bool {
	return s.connected.Load()
}

func (s *MongoStore) Subscribe(ctx context.Context, collection entities.Collection, userID string, onChange func(ports.Snapshot)) (ports.Unsubscribe, error) {
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

func (s *MongoStore) Add(ctx context.Context, record entities.Record) (string, error) {
	id, err := s.insert(ctx, record)
	s.observe(record.Collection(), "add", err)
	if err == nil {
		s.afterWrite(record.Collection(), record.Owner())
	}
	return id, err
}

func (s *MongoStore) insert(ctx context.Context, record entities.Record) (string, error) {
	if !s.Connected() {
		return "", ports.ErrStoreDisconnected
	}

	created := time.Now().UTC()
	var doc interface{}
	switch r := record.(type) {
	case entities.Task:
		r.CreatedAt = &created
		doc = taskDocument{Task: r}
	case *entities.Task:
		t := *r
		t.CreatedAt = &created
		doc = taskDocument{Task: t}
	case entities.Note:
		r.CreatedAt = &created
		doc = noteDocument{Note: r}
	case *entities.Note:
		n := *r
		n.CreatedAt = &created
		doc = noteDocument{Note: n}
	default:
		return "", fmt.Errorf("%w: %T", ports.ErrUnknownCollection, record)
	}

	res, err := s.db.Collection(string(record.Collection())).InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", record.Collection(), err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("insert %s: unexpected id type %T", record.Collection(), res.InsertedID)
	}
	return oid.Hex(), nil
}

func (s *MongoStore) Update(ctx context.Context, collection entities.Collection, id string, patch entities.Patch) error {
	owner, err := s.update(ctx, collection, id, patch)
	s.observe(collection, "update", err)
	if err == nil {
		s.afterWrite(collection, owner)
	}
	return err
}

func (s *MongoStore) update(ctx context.Context, collection entities.Collection, id string, patch entities.Patch) (string, error) {
	if !s.Connected() {
		return "", ports.ErrStoreDisconnected
	}
	keys, err := patchFields(collection, patch)
	if err != nil {
		return "", err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return "", fmt.Errorf("%w: %s %s", ports.ErrRecordNotFound, collection, id)
	}

	set, unset := bson.M{}, bson.M{}
	for _, k := range keys {
		if patch[k] == nil {
			unset[k] = ""
			continue
		}
		set[k] = patch[k]
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(update) == 0 {
		return "", nil
	}

	var owner struct {
		UserID string `bson:"userId"`
	}
	err = s.db.Collection(string(collection)).FindOneAndUpdate(ctx, bson.M{"_id": oid}, update,
		options.FindOneAndUpdate().SetProjection(bson.M{"userId": 1})).Decode(&owner)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", fmt.Errorf("%w: %s %s", ports.ErrRecordNotFound, collection, id)
		}
		return "", fmt.Errorf("update %s: %w", collection, err)
	}
	return owner.UserID, nil
}

func (s *MongoStore) Delete(ctx context.Context, collection entities.Collection, id string) error {
	owner, err := s.delete(ctx, collection, id)
	s.observe(collection, "delete", err)
	if err == nil && owner != "" {
		s.afterWrite(collection, owner)
	}
	return err
}

func (s *MongoStore) delete(ctx context.Context, collection entities.Collection, id string) (string, error) {
	if !s.Connected() {
		return "", ports.ErrStoreDisconnected
	}
	if _, err := columnsFor(collection); err != nil {
		return "", err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return "", nil
	}

	var owner struct {
		UserID string `bson:"userId"`
	}
	err = s.db.Collection(string(collection)).FindOneAndDelete(ctx, bson.M{"_id": oid},
		options.FindOneAndDelete().SetProjection(bson.M{"userId": 1})).Decode(&owner)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", nil
		}
		return "", fmt.Errorf("delete %s: %w", collection, err)
	}
	return owner.UserID, nil
}

func (s *MongoStore) Close() error {
	s.cancel()
	s.wg.Wait()
	s.hub.clear()
	if s.conn != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.conn.Close(ctx)
	}
	return nil
}

func (s *MongoStore) query(ctx context.Context, collection entities.Collection, userID string) (ports.Snapshot, error) {
	snap := ports.Snapshot{Collection: collection, UserID: userID}
	filter := bson.M{"userId": userID}

	switch collection {
	case entities.CollectionTasks:
		cursor, err := s.db.Collection(string(collection)).Find(ctx, filter,
			options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
		if err != nil {
			return snap, fmt.Errorf("query tasks: %w", err)
		}
		var docs []taskDocument
		if err := cursor.All(ctx, &docs); err != nil {
			return snap, fmt.Errorf("decode tasks: %w", err)
		}
		snap.Tasks = make([]entities.Task, 0, len(docs))
		for _, d := range docs {
			t := d.Task
			t.ID = d.ID.Hex()
			snap.Tasks = append(snap.Tasks, t)
		}
	case entities.CollectionNotes:
		cursor, err := s.db.Collection(string(collection)).Find(ctx, filter)
		if err != nil {
			return snap, fmt.Errorf("query notes: %w", err)
		}
		var docs []noteDocument
		if err := cursor.All(ctx, &docs); err != nil {
			return snap, fmt.Errorf("decode notes: %w", err)
		}
		snap.Notes = make([]entities.Note, 0, len(docs))
		for _, d := range docs {
			n := d.Note
			n.ID = d.ID.Hex()
			snap.Notes = append(snap.Notes, n)
		}
	default:
		return snap, fmt.Errorf("%w: %q", ports.ErrUnknownCollection, collection)
	}
	return snap, nil
}

// follow keeps a change stream open on collection until the store is closed
func (s *MongoStore) follow(collection entities.Collection) {
	s.wg.Add(1)
	go s.watch(collection)
}

// watch reopens the change stream after every failure, resuming after the
// last seen event when the server still has it. While no stream is open the
// store's own writes are pushed by afterWrite, and every subscription of the
// collection is refreshed once a stream is back.
func (s *MongoStore) watch(collection entities.Collection) {
	defer s.wg.Done()

	var resume bson.Raw
	for reopened := false; ; reopened = true {
		opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
		if resume != nil {
			opts.SetResumeAfter(resume)
		}

		stream, err := s.db.Collection(string(collection)).Watch(s.watchCtx, changePipeline, opts)
		if err != nil {
			if s.watchCtx.Err() != nil {
				return
			}
			s.logger.Warnw("Change stream unavailable, pushing after local writes only",
				"collection", collection, "error", err)
			// the resume point may have aged out of the oplog
			resume = nil
		} else {
			s.setStreaming(collection, true)
			s.logger.Infow("Change stream open", "collection", collection, "opened", s.streamsOpened(collection))
			if reopened {
				s.refresh(s.hub.matching(collection, ""))
			}
			if token := s.drain(collection, stream); token != nil {
				resume = token
			}
			s.setStreaming(collection, false)
		}

		select {
		case <-s.watchCtx.Done():
			return
		case <-time.After(s.retryDelay):
		}
	}
}

// drain delivers events until the stream ends and returns its resume token
func (s *MongoStore) drain(collection entities.Collection, stream *mongo.ChangeStream) bson.Raw {
	for stream.Next(s.watchCtx) {
		var ev changeEvent
		if err := stream.Decode(&ev); err != nil {
			s.logger.Warnw("Ignoring undecodable change event", "collection", collection, "error", err)
			continue
		}
		// deletes carry no document, so every subscriber of the collection re-reads
		s.refresh(s.hub.matching(collection, ev.FullDocument.UserID))
	}
	if err := stream.Err(); err != nil && s.watchCtx.Err() == nil {
		s.logger.Warnw("Change stream stopped, reopening", "collection", collection, "error", err)
	}

	token := stream.ResumeToken()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream.Close(ctx)
	return token
}

func (s *MongoStore) setStreaming(collection entities.Collection, on bool) {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	st, ok := s.streams[collection]
	if !ok {
		st = &streamState{}
		s.streams[collection] = st
	}
	st.live = on
	if on {
		st.opened++
	}
}

// isStreaming reports whether a change stream is delivering pushes for collection
func (s *MongoStore) isStreaming(collection entities.Collection) bool {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	st, ok := s.streams[collection]
	return ok && st.live
}

// streamsOpened counts the change streams opened on collection so far
func (s *MongoStore) streamsOpened(collection entities.Collection) int {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	if st, ok := s.streams[collection]; ok {
		return st.opened
	}
	return 0
}

// afterWrite pushes snapshots for the store's own writes when no change
// stream is delivering them.
func (s *MongoStore) afterWrite(collection entities.Collection, userID string) {
	if s.isStreaming(collection) || userID == "" {
		return
	}
	s.refresh(s.hub.matching(collection, userID))
}

func (s *MongoStore) refresh(subs []*subscription) {
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

func (s *MongoStore) observe(collection entities.Collection, op string, err error) {
	if s.writes == nil {
		return
	}
	s.writes.WithLabelValues(string(collection), op, metrics.Outcome(err)).Inc()
}
