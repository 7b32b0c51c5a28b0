package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ophion/companion/internal/application/board"
	"github.com/ophion/companion/internal/application/workspace"
	"github.com/ophion/companion/internal/domain/entities"
	"github.com/ophion/companion/internal/infrastructure/logger"
)

func newBoardFixture(t *testing.T) (*fixture, *BoardService, entities.Note) {
	t.Helper()
	f := newFixture(t)
	svc := NewBoardService(f.workspaces, f.assistant, board.DefaultGeometry(), logger.NewNop())

	x, y := 100.0, 100.0
	note, err := svc.Create(context.Background(), testUser, workspace.NoteDraft{Content: "Call the plumber about the sink", X: &x, Y: &y})
	require.NoError(t, err)
	return f, svc, note
}

func TestBoardDragPersistsPosition(t *testing.T) {
	f, svc, note := newBoardFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.BeginDrag(ctx, testUser, note.ID, board.Point{X: 120, Y: 130}))
	fx, err := svc.Move(ctx, testUser, board.Point{X: 320, Y: 230})
	require.NoError(t, err)
	assert.Equal(t, 300.0, fx.X)
	assert.Equal(t, 200.0, fx.Y)

	res, err := svc.Release(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, board.StateDroppedOnBoard, res.Drop)
	assert.False(t, res.ConfirmationRequired)

	got, err := f.workspace(t).Note(note.ID)
	require.NoError(t, err)
	assert.Equal(t, 300.0, got.X)
	assert.Equal(t, 200.0, got.Y)
}

func TestBoardConvertZoneNeedsConfirmation(t *testing.T) {
	f, svc, note := newBoardFixture(t)
	ctx := context.Background()
	ws := f.workspace(t)

	require.NoError(t, svc.BeginDrag(ctx, testUser, note.ID, board.Point{X: 100, Y: 100}))
	fx, err := svc.Move(ctx, testUser, board.Point{X: 100, Y: 560})
	require.NoError(t, err)
	assert.True(t, fx.ZoneActive)

	res, err := svc.Release(ctx, testUser)
	require.NoError(t, err)
	assert.True(t, res.ConfirmationRequired)
	assert.Len(t, ws.Notes(), 1)
	assert.Empty(t, ws.Tasks())

	task, err := svc.ConfirmConversion(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, "Call the plumber about the sink", task.Title)
	assert.Equal(t, entities.CategoryWork, task.Category)
	assert.Equal(t, entities.PriorityMedium, task.Priority)
	assert.Equal(t, "Today", task.DueDate)
	assert.Empty(t, ws.Notes())
	assert.Len(t, ws.Tasks(), 1)

	_, err = svc.ConfirmConversion(ctx, testUser)
	assert.ErrorIs(t, err, entities.ErrNoPendingConversion)
}

func TestBoardCancelConversionKeepsEverything(t *testing.T) {
	f, svc, note := newBoardFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.BeginDrag(ctx, testUser, note.ID, board.Point{X: 100, Y: 100}))
	_, err := svc.Move(ctx, testUser, board.Point{X: 100, Y: 700})
	require.NoError(t, err)
	_, err = svc.Release(ctx, testUser)
	require.NoError(t, err)

	require.NoError(t, svc.CancelConversion(testUser))
	ws := f.workspace(t)
	assert.Len(t, ws.Notes(), 1)
	assert.Empty(t, ws.Tasks())
	assert.ErrorIs(t, svc.CancelConversion(testUser), entities.ErrNoPendingConversion)
}

func TestBoardResizeClampsAtFloor(t *testing.T) {
	f, svc, note := newBoardFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.BeginResize(ctx, testUser, note.ID, board.Point{X: 350, Y: 300}))
	_, err := svc.Move(ctx, testUser, board.Point{X: 0, Y: 0})
	require.NoError(t, err)
	_, err = svc.Release(ctx, testUser)
	require.NoError(t, err)

	got, err := f.workspace(t).Note(note.ID)
	require.NoError(t, err)
	assert.Equal(t, 200.0, got.Width)
	assert.Equal(t, 150.0, got.Height)
}

func TestBoardMoveWithoutGesture(t *testing.T) {
	_, svc, _ := newBoardFixture(t)

	_, err := svc.Move(context.Background(), testUser, board.Point{X: 1, Y: 1})
	assert.ErrorIs(t, err, entities.ErrInvalidTransition)
}

func TestBoardCycleAndOpacity(t *testing.T) {
	_, svc, note := newBoardFixture(t)
	ctx := context.Background()

	got, err := svc.CycleSkin(ctx, testUser, note.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.SkinHolographic, got.Skin)

	got, err = svc.CycleColor(ctx, testUser, note.ID)
	require.NoError(t, err)
	assert.Equal(t, "bg-blue-100", got.Color)

	got, err = svc.SetOpacity(ctx, testUser, note.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, MinNoteOpacity, got.Opacity)

	got, err = svc.SetOpacity(ctx, testUser, note.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, MaxNoteOpacity, got.Opacity)
}

func TestBoardDictationAppends(t *testing.T) {
	_, svc, note := newBoardFixture(t)

	got, err := svc.AppendDictation(context.Background(), testUser, note.ID, "before Friday")
	require.NoError(t, err)
	assert.Equal(t, "Call the plumber about the sink before Friday", got.Content)
}

func TestBoardEnhance(t *testing.T) {
	t.Run("applies insight", func(t *testing.T) {
		f, svc, note := newBoardFixture(t)
		f.ai.On("GenerateStructured", "note_insight", mock.Anything).
			Return(nil).
			Run(answer(`{"priority":"High","suggestedColor":"bg-red-100","actionable":true}`))

		got, err := svc.Enhance(context.Background(), testUser, note.ID)
		require.NoError(t, err)
		assert.Equal(t, entities.PriorityHigh, got.Priority)
		assert.Equal(t, "bg-red-100", got.Color)
	})

	t.Run("failure leaves note alone", func(t *testing.T) {
		f, svc, note := newBoardFixture(t)
		f.ai.On("GenerateStructured", "note_insight", mock.Anything).Return(errModelDown)

		got, err := svc.Enhance(context.Background(), testUser, note.ID)
		require.NoError(t, err)
		assert.Equal(t, note.Color, got.Color)
		assert.Equal(t, note.Priority, got.Priority)
	})
}

func TestBoardCompleteDeletesNote(t *testing.T) {
	f, svc, note := newBoardFixture(t)

	require.NoError(t, svc.Complete(context.Background(), testUser, note.ID))
	assert.Empty(t, f.workspace(t).Notes())
	_, err := f.workspace(t).Note(note.ID)
	assert.ErrorIs(t, err, entities.ErrNoteNotFound)
}

func TestBoardConversionTitleIsTruncated(t *testing.T) {
	f, svc, _ := newBoardFixture(t)
	ctx := context.Background()
	long := strings.Repeat("a", 60)

	x, y := 0.0, 0.0
	note, err := svc.Create(ctx, testUser, workspace.NoteDraft{Content: long, X: &x, Y: &y})
	require.NoError(t, err)

	require.NoError(t, svc.BeginDrag(ctx, testUser, note.ID, board.Point{}))
	_, err = svc.Move(ctx, testUser, board.Point{X: 0, Y: 700})
	require.NoError(t, err)
	_, err = svc.Release(ctx, testUser)
	require.NoError(t, err)

	task, err := svc.ConfirmConversion(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 50)+"...", task.Title)
	assert.Len(t, f.workspace(t).Notes(), 1)
}
