package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePatch(t *testing.T) {
	tests := []struct {
		name       string
		collection Collection
		patch      Patch
		wantErr    error
	}{
		{"task fields", CollectionTasks, Patch{"completed": true, "title": "Run"}, nil},
		{"clear start time", CollectionTasks, Patch{"startTime": nil, "day": nil}, nil},
		{"note position", CollectionNotes, Patch{"x": 10.0, "y": 20.0}, nil},
		{"unknown field", CollectionTasks, Patch{"completed": true, "bogus": 1}, ErrUnknownField},
		{"store owned id", CollectionTasks, Patch{"id": "abc"}, ErrUnknownField},
		{"store owned createdAt", CollectionNotes, Patch{"createdAt": "2024-01-01"}, ErrUnknownField},
		{"task field on note", CollectionNotes, Patch{"title": "x"}, ErrUnknownField},
		{"null title", CollectionTasks, Patch{"title": nil}, ErrRequiredField},
		{"null content", CollectionNotes, Patch{"content": nil}, ErrRequiredField},
		{"null opacity", CollectionNotes, Patch{"opacity": nil}, ErrRequiredField},
		{"unknown collection", Collection("events"), Patch{}, ErrUnknownCollection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePatch(tt.collection, tt.patch)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWritableFields(t *testing.T) {
	fields, err := WritableFields(CollectionTasks)
	require.NoError(t, err)
	assert.Contains(t, fields, "isTimerRunning")
	assert.NotContains(t, fields, "userId")

	_, err = WritableFields(Collection("events"))
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestApplyClearsOptionalField(t *testing.T) {
	start := "09:00"
	task := Task{ID: "t1", Title: "Standup", StartTime: &start}

	patched, err := Apply(task, Patch{"startTime": nil, "completed": true})
	require.NoError(t, err)
	assert.Nil(t, patched.StartTime)
	assert.True(t, patched.Completed)
	assert.Equal(t, "Standup", patched.Title)
	assert.Equal(t, "09:00", *task.StartTime)
}
