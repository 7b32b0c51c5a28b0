package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_EmptyWhenMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "identity.json"))

	guestID, name, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, guestID)
	assert.Empty(t, name)
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "identity.json")

	first := NewFileStore(path)
	require.NoError(t, first.SaveGuestID("guest_1700000000000_abc123xyz"))
	require.NoError(t, first.SaveDisplayName("Athena"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), KeyGuestID)
	assert.Contains(t, string(raw), KeyUserName)

	second := NewFileStore(path)
	guestID, name, err := second.Load()
	require.NoError(t, err)
	assert.Equal(t, "guest_1700000000000_abc123xyz", guestID)
	assert.Equal(t, "Athena", name)
}

func TestFileStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	store := NewFileStore(path)

	require.NoError(t, store.SaveGuestID("guest_1_a"))
	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
