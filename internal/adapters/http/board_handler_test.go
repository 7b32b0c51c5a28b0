package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ophion/companion/internal/application/board"
	"github.com/ophion/companion/internal/application/services"
	"github.com/ophion/companion/internal/domain/entities"
)

func createNote(t *testing.T, api *testAPI) entities.Note {
	t.Helper()
	rec := api.do(t, http.MethodPost, "/notes", `{"content":"Renew the passport","x":100,"y":100}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var note entities.Note
	decode(t, rec, &note)
	return note
}

func TestDropInConvertZoneCreatesTask(t *testing.T) {
	api := newTestAPI(t, offlineGateway{})
	note := createNote(t, api)

	rec := api.do(t, http.MethodPost, "/board/drag", `{"noteId":"`+note.ID+`","x":100,"y":100,"boardHeight":800}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/board/move", `{"x":100,"y":560}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var fx board.Effect
	decode(t, rec, &fx)
	assert.True(t, fx.ZoneActive)

	rec = api.do(t, http.MethodPost, "/board/release", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res services.ReleaseResult
	decode(t, rec, &res)
	assert.True(t, res.ConfirmationRequired)

	var state BoardStateResponse
	decode(t, api.do(t, http.MethodGet, "/board", ""), &state)
	assert.Equal(t, note.ID, state.PendingConversion)

	rec = api.do(t, http.MethodPost, "/board/conversion/confirm", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var task entities.Task
	decode(t, rec, &task)
	assert.Equal(t, "Renew the passport", task.Title)

	rec = api.do(t, http.MethodPost, "/board/conversion/confirm", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGestureOutOfOrderConflicts(t *testing.T) {
	api := newTestAPI(t, offlineGateway{})
	note := createNote(t, api)

	rec := api.do(t, http.MethodPost, "/board/move", `{"x":1,"y":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodPost, "/board/release", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodPost, "/board/drag", `{"noteId":"`+note.ID+`","x":100,"y":100}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodPost, "/board/drag", `{"noteId":"`+note.ID+`","x":100,"y":100}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodPost, "/board/drag", `{"x":100,"y":100}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetOpacityClamps(t *testing.T) {
	api := newTestAPI(t, offlineGateway{})
	note := createNote(t, api)

	rec := api.do(t, http.MethodPost, "/notes/"+note.ID+"/opacity", `{"opacity":0.01}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated entities.Note
	decode(t, rec, &updated)
	assert.Equal(t, services.MinNoteOpacity, updated.Opacity)

	rec = api.do(t, http.MethodPost, "/notes/"+note.ID+"/opacity", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateNoteRequiresContent(t *testing.T) {
	api := newTestAPI(t, offlineGateway{})

	rec := api.do(t, http.MethodPost, "/notes", `{"color":"bg-yellow-200"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/notes", `{"content":"  "}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
