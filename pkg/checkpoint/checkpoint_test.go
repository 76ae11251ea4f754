package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocPublishReach(t *testing.T) {
	r := NewRegistry()
	id := r.Alloc()

	cp, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusPending, cp.Status)

	r.Publish(id)
	cp, _ = r.Get(id)
	assert.Equal(t, StatusPublished, cp.Status)

	r.MarkReached(id)
	cp, _ = r.Get(id)
	assert.Equal(t, StatusReached, cp.Status)
}

func TestAppendErrorOnlyHitsInFlightCheckpoints(t *testing.T) {
	r := NewRegistry()
	reached := r.Alloc()
	r.Publish(reached)
	r.MarkReached(reached)

	inFlight := r.Alloc()
	r.Publish(inFlight)

	pending := r.Alloc()

	r.AppendError("boom", "widget", "w1")

	cp, _ := r.Get(reached)
	assert.Empty(t, cp.Errors)

	cp, _ = r.Get(inFlight)
	require.Len(t, cp.Errors, 1)
	assert.Equal(t, "boom", cp.Errors[0].Msg)

	cp, _ = r.Get(pending)
	assert.Empty(t, cp.Errors)
}

func TestGetAllPreservesAllocationOrder(t *testing.T) {
	r := NewRegistry()
	a := r.Alloc()
	b := r.Alloc()

	all := r.GetAll()
	require.Len(t, all, 2)
	assert.Equal(t, a, all[0].ID)
	assert.Equal(t, b, all[1].ID)
}

func TestGetUnknownID(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get(999)
	assert.False(t, ok)
}
