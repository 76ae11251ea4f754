package queuegroup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPopSameTask(t *testing.T) {
	g := New(3, 5, nil)
	res := g.Push("coll-a", "task-1", true, time.Time{})
	assert.Equal(t, HasSpace, res)

	popped := g.PopAny("", nil)
	assert.Equal(t, "task-1", popped.Task)
	assert.Equal(t, "coll-a", popped.Key)
	assert.False(t, popped.Finished)
}

func TestPushThrottleAndMaxWatermarks(t *testing.T) {
	g := New(3, 5, nil)
	for i := 0; i < 2; i++ {
		require.Equal(t, HasSpace, g.Push("k", i, true, time.Time{}))
	}
	// third throttled push reaches the throttle size: reports LowSpace.
	assert.Equal(t, LowSpace, g.Push("k", 2, true, time.Time{}))
	// a further throttled push is now Full against the throttle watermark.
	assert.Equal(t, Full, g.Push("k", 3, true, time.Time{}))
	// but a non-throttled push still has room up to max size.
	assert.Equal(t, LowSpace, g.Push("k", 3, false, time.Time{}))
	assert.Equal(t, LowSpace, g.Push("k", 4, false, time.Time{}))
	// five items now fill the max size.
	assert.Equal(t, Full, g.Push("k", 5, false, time.Time{}))
}

func TestPushBlocksUntilDeadlineThenFull(t *testing.T) {
	g := New(1, 1, nil)
	require.Equal(t, LowSpace, g.Push("k", 1, false, time.Time{}))

	start := time.Now()
	res := g.Push("k", 2, false, start.Add(50*time.Millisecond))
	assert.Equal(t, Full, res)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestPushAfterCloseReturnsClosed(t *testing.T) {
	g := New(3, 5, nil)
	g.Close()
	assert.Equal(t, Closed, g.Push("k", 1, true, time.Time{}))
}

func TestPopAnyRoundRobinsAcrossKeys(t *testing.T) {
	g := New(10, 10, nil)
	require.Equal(t, HasSpace, g.Push("a", "a1", true, time.Time{}))
	require.Equal(t, HasSpace, g.Push("b", "b1", true, time.Time{}))
	require.Equal(t, HasSpace, g.Push("c", "c1", true, time.Time{}))

	first := g.PopAny("", nil)
	second := g.PopAny(first.Key, first.Task)
	third := g.PopAny(second.Key, second.Task)

	keys := map[string]bool{first.Key: true, second.Key: true, third.Key: true}
	assert.Len(t, keys, 3)
}

func TestPopAnyOnClosedEmptyGroupFinishes(t *testing.T) {
	g := New(3, 5, nil)
	g.Close()
	res := g.PopAny("", nil)
	assert.True(t, res.Finished)
	assert.Nil(t, res.Task)
}

func TestPopAnySkipsAssignedQueues(t *testing.T) {
	g := New(10, 10, nil)
	require.Equal(t, HasSpace, g.Push("assigned-key", "t1", true, time.Time{}))
	require.Equal(t, HasSpace, g.Push("free-key", "t2", true, time.Time{}))

	key, ok := g.AssignHandler()
	require.True(t, ok)
	// AssignHandler claims the first sorted active unassigned queue
	// regardless of emptiness; whichever it took, pop_any must skip it.
	_ = key

	res := g.PopAny("", nil)
	assert.NotEqual(t, key, res.Key)
}

func TestSetActiveStopsAndResumesPops(t *testing.T) {
	g := New(10, 10, nil)
	require.Equal(t, HasSpace, g.Push("k", "t1", true, time.Time{}))
	g.SetActive("k", false)

	done := make(chan PopResult, 1)
	go func() { done <- g.PopAny("", nil) }()

	select {
	case <-done:
		t.Fatal("pop_any should not return while the only queue is inactive")
	case <-time.After(30 * time.Millisecond):
	}

	g.SetActive("k", true)
	select {
	case res := <-done:
		assert.Equal(t, "t1", res.Task)
	case <-time.After(time.Second):
		t.Fatal("pop_any did not wake after set_active(true)")
	}
}

func TestBoringQueueIsGarbageCollected(t *testing.T) {
	g := New(10, 10, nil)
	require.Equal(t, HasSpace, g.Push("k", "t1", true, time.Time{}))
	popped := g.PopAny("", nil)
	require.Equal(t, "k", popped.Key)

	g.mu.Lock()
	_, stillThere := g.queues["k"]
	g.mu.Unlock()
	assert.True(t, stillThere, "in-progress task keeps the entry alive")

	// completing it with no replacement push empties both the queue and
	// the in-progress set, so the boring entry should be collected.
	g.PopFrom("k", time.Now().Add(10*time.Millisecond), "k", popped.Task)

	g.mu.Lock()
	_, stillThere = g.queues["k"]
	g.mu.Unlock()
	assert.False(t, stillThere)
}

func TestAssignUnassignHandler(t *testing.T) {
	g := New(10, 10, nil)
	require.Equal(t, HasSpace, g.Push("k", "t1", true, time.Time{}))

	key, ok := g.AssignHandler()
	require.True(t, ok)
	assert.Equal(t, "k", key)

	require.Equal(t, HasSpace, g.Push("other", "t2", true, time.Time{}))
	key2, ok2 := g.AssignHandler()
	require.True(t, ok2)
	assert.Equal(t, "other", key2)

	g.UnassignHandler("k")
	g.UnassignHandler("other")
}

func TestPopFromRestrictsToOneKey(t *testing.T) {
	g := New(10, 10, nil)
	require.Equal(t, HasSpace, g.Push("a", "a1", true, time.Time{}))
	require.Equal(t, HasSpace, g.Push("b", "b1", true, time.Time{}))

	res := g.PopFrom("a", time.Time{}, "", nil)
	assert.Equal(t, "a1", res.Task)
	assert.False(t, res.Finished)
}

func TestPopFromIdleTimeoutReturnsEmptyNotFinished(t *testing.T) {
	g := New(10, 10, nil)
	g.queueFor("a")

	res := g.PopFrom("a", time.Now().Add(20*time.Millisecond), "", nil)
	assert.Nil(t, res.Task)
	assert.False(t, res.Finished)
}

func TestPopFromFinishesWhenClosedAndDrained(t *testing.T) {
	g := New(10, 10, nil)
	require.Equal(t, HasSpace, g.Push("a", "a1", true, time.Time{}))
	g.Close()

	res := g.PopFrom("a", time.Time{}, "", nil)
	assert.Equal(t, "a1", res.Task)

	res = g.PopFrom("a", time.Time{}, "a", res.Task)
	assert.True(t, res.Finished)
}

func TestGetQueuesWithSpace(t *testing.T) {
	g := New(2, 5, nil)
	require.Equal(t, HasSpace, g.Push("under", "t1", true, time.Time{}))
	require.Equal(t, HasSpace, g.Push("full", "t1", true, time.Time{}))
	require.Equal(t, LowSpace, g.Push("full", "t2", true, time.Time{}))

	spacey := g.GetQueuesWithSpace()
	assert.Equal(t, []string{"under"}, spacey)
}

type countingNudge struct {
	count int
}

func (c *countingNudge) Write() error {
	c.count++
	return nil
}

func TestPopNudgesOnThrottleWatermarkDrop(t *testing.T) {
	nudge := &countingNudge{}
	g := New(2, 5, nudge)
	require.Equal(t, HasSpace, g.Push("k", 1, true, time.Time{}))
	require.Equal(t, LowSpace, g.Push("k", 2, true, time.Time{}))

	g.PopAny("", nil)
	assert.Equal(t, 1, nudge.count)
}
