package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/ophion/companion/internal/domain/entities"
	"github.com/ophion/companion/internal/infrastructure/logger"
	"github.com/ophion/companion/internal/ports"
)

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("add returns object id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		store := NewMongoStoreWithDatabase(mt.DB, logger.NewNop())

		id, err := store.Add(ctx, entities.Task{UserID: "u1", Title: "Buy milk"})
		require.NoError(mt, err)
		_, err = primitive.ObjectIDFromHex(id)
		assert.NoError(mt, err)
	})

	mt.Run("subscribe delivers documents with hex ids", func(mt *mtest.T) {
		oid := primitive.NewObjectID()
		created := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.tasks", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: oid},
			{Key: "userId", Value: "u1"},
			{Key: "title", Value: "Buy milk"},
			{Key: "category", Value: "Personal"},
			{Key: "priority", Value: "Low"},
			{Key: "dueDate", Value: "Today"},
			{Key: "timeSpent", Value: 45},
			{Key: "isTimerRunning", Value: true},
			{Key: "createdAt", Value: created},
		}))
		store := NewMongoStoreWithDatabase(mt.DB, logger.NewNop())

		var got ports.Snapshot
		_, err := store.Subscribe(ctx, entities.CollectionTasks, "u1", func(s ports.Snapshot) { got = s })
		require.NoError(mt, err)
		require.Len(mt, got.Tasks, 1)

		task := got.Tasks[0]
		assert.Equal(mt, oid.Hex(), task.ID)
		assert.Equal(mt, "Buy milk", task.Title)
		assert.Equal(mt, entities.CategoryPersonal, task.Category)
		assert.Equal(mt, 45, task.TimeSpent)
		assert.True(mt, task.IsTimerRunning)
	})

	mt.Run("update of missing document", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))
		store := NewMongoStoreWithDatabase(mt.DB, logger.NewNop())

		err := store.Update(ctx, entities.CollectionTasks, primitive.NewObjectID().Hex(), entities.Patch{"completed": true})
		assert.ErrorIs(mt, err, ports.ErrRecordNotFound)
	})

	mt.Run("update validates before touching the server", func(mt *mtest.T) {
		store := NewMongoStoreWithDatabase(mt.DB, logger.NewNop())

		err := store.Update(ctx, entities.CollectionTasks, "not-an-object-id", entities.Patch{"completed": true})
		assert.ErrorIs(mt, err, ports.ErrRecordNotFound)

		err = store.Update(ctx, entities.CollectionNotes, primitive.NewObjectID().Hex(), entities.Patch{"userId": "u2"})
		assert.ErrorIs(mt, err, ports.ErrUnknownField)
	})

	mt.Run("failed change stream hands pushes back to writes", func(mt *mtest.T) {
		store := NewMongoStoreWithDatabase(mt.DB, logger.NewNop())
		store.retryDelay = time.Hour
		defer store.Close()

		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, "db.tasks", mtest.FirstBatch),
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "stream failed"}),
			mtest.CreateSuccessResponse(),
		)
		store.follow(entities.CollectionTasks)
		require.Eventually(mt, func() bool {
			return store.streamsOpened(entities.CollectionTasks) == 1 && !store.isStreaming(entities.CollectionTasks)
		}, 2*time.Second, 10*time.Millisecond)

		var (
			mu    sync.Mutex
			snaps []ports.Snapshot
		)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.tasks", mtest.FirstBatch))
		_, err := store.Subscribe(ctx, entities.CollectionTasks, "u1", func(s ports.Snapshot) {
			mu.Lock()
			snaps = append(snaps, s)
			mu.Unlock()
		})
		require.NoError(mt, err)

		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateCursorResponse(0, "db.tasks", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "userId", Value: "u1"},
				{Key: "title", Value: "Buy milk"},
			}),
		)
		_, err = store.Add(ctx, entities.Task{UserID: "u1", Title: "Buy milk"})
		require.NoError(mt, err)

		mu.Lock()
		defer mu.Unlock()
		require.Len(mt, snaps, 2)
		require.Len(mt, snaps[1].Tasks, 1)
		assert.Equal(mt, "Buy milk", snaps[1].Tasks[0].Title)
	})

	mt.Run("reopened change stream refreshes subscribers", func(mt *mtest.T) {
		store := NewMongoStoreWithDatabase(mt.DB, logger.NewNop())
		store.retryDelay = 10 * time.Millisecond
		defer store.Close()

		var (
			mu    sync.Mutex
			snaps []ports.Snapshot
		)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.tasks", mtest.FirstBatch))
		_, err := store.Subscribe(ctx, entities.CollectionTasks, "u1", func(s ports.Snapshot) {
			mu.Lock()
			snaps = append(snaps, s)
			mu.Unlock()
		})
		require.NoError(mt, err)

		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, "db.tasks", mtest.FirstBatch),
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "stream failed"}),
			mtest.CreateSuccessResponse(),
			mtest.CreateCursorResponse(1, "db.tasks", mtest.FirstBatch),
			mtest.CreateCursorResponse(0, "db.tasks", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "userId", Value: "u1"},
				{Key: "title", Value: "Written elsewhere"},
			}),
		)
		store.follow(entities.CollectionTasks)

		require.Eventually(mt, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(snaps) >= 2
		}, 2*time.Second, 10*time.Millisecond)
		assert.GreaterOrEqual(mt, store.streamsOpened(entities.CollectionTasks), 2)

		mu.Lock()
		defer mu.Unlock()
		require.Len(mt, snaps[1].Tasks, 1)
		assert.Equal(mt, "Written elsewhere", snaps[1].Tasks[0].Title)
	})
}

func TestChangePipelineKeepsDocumentEvents(t *testing.T) {
	require.Len(t, changePipeline, 1)
	stage := changePipeline[0]
	require.Equal(t, "$match", stage[0].Key)

	raw, err := bson.Marshal(stage)
	require.NoError(t, err)
	ops := bson.Raw(raw).Lookup("$match", "operationType", "$in").Array()
	values, err := ops.Values()
	require.NoError(t, err)

	var names []string
	for _, v := range values {
		names = append(names, v.StringValue())
	}
	assert.Equal(t, []string{"insert", "update", "replace", "delete"}, names)
}
