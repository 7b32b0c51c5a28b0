package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ophion/companion/internal/application/workspace"
)

func TestViewSlotKeepsNewestView(t *testing.T) {
	slot := newViewSlot()

	// A consumer that never reads while hundreds of views arrive
	for v := uint64(1); v <= 500; v++ {
		slot.offer(&workspace.View{Version: v})
	}

	select {
	case <-slot.ready:
	default:
		t.Fatal("expected a pending signal")
	}
	latest := slot.take()
	require.NotNil(t, latest)
	assert.Equal(t, uint64(500), latest.Version)

	// The signal coalesces and the slot is now empty
	select {
	case <-slot.ready:
		t.Fatal("signal should coalesce to one")
	default:
	}
	assert.Nil(t, slot.take())
}

func TestViewSlotIgnoresOlderVersion(t *testing.T) {
	slot := newViewSlot()
	slot.offer(&workspace.View{Version: 7})
	slot.offer(&workspace.View{Version: 3})
	slot.offer(nil)

	<-slot.ready
	latest := slot.take()
	require.NotNil(t, latest)
	assert.Equal(t, uint64(7), latest.Version)
}
