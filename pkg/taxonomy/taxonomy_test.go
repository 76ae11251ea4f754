package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddParentBuildsSharedAncestor(t *testing.T) {
	tax := New("test")
	m := NewModifiedSet()
	require.NoError(t, tax.AddParent("a", "b", m))
	require.NoError(t, tax.AddParent("c", "b", m))

	aCat, _ := tax.Get("a")
	cCat, _ := tax.Get("c")
	assert.Contains(t, aCat.Ancestors, "b")
	assert.Contains(t, cCat.Ancestors, "b")
}

func TestNoSelfLoops(t *testing.T) {
	tax := New("test")
	m := NewModifiedSet()
	require.NoError(t, tax.AddParent("x", "y", m))
	require.NoError(t, tax.AddParent("y", "z", m))

	for _, name := range []string{"x", "y", "z"} {
		cat, ok := tax.Get(name)
		require.True(t, ok)
		_, isOwnDescendant := cat.Descendants[name]
		assert.False(t, isOwnDescendant)
		_, isOwnAncestor := cat.Ancestors[name]
		assert.False(t, isOwnAncestor)
	}
}

func TestAddParentRejectsCycle(t *testing.T) {
	tax := New("test")
	m := NewModifiedSet()
	require.NoError(t, tax.AddParent("x", "y", m))
	err := tax.AddParent("y", "x", m)
	assert.Error(t, err)
}

func TestAddParentRejectsSelf(t *testing.T) {
	tax := New("test")
	m := NewModifiedSet()
	err := tax.AddParent("x", "x", m)
	assert.Error(t, err)
}

func TestRemoveRebuildsFromParentsAlone(t *testing.T) {
	tax := New("test")
	m := NewModifiedSet()
	require.NoError(t, tax.AddParent("a", "b", m))
	require.NoError(t, tax.AddParent("b", "c", m))
	require.NoError(t, tax.AddParent("d", "b", m))

	tax.Remove("b", m)

	// Rebuild a fresh taxonomy from the surviving parent edges only, and
	// compare closures.
	fresh := New("test")
	fm := NewModifiedSet()
	// a, c, d survive with no edges to b anymore (b removed all its edges).
	fresh.Add("a", fm)
	fresh.Add("c", fm)
	fresh.Add("d", fm)

	aCat, _ := tax.Get("a")
	freshA, _ := fresh.Get("a")
	assert.Equal(t, freshA.Ancestors, aCat.Ancestors)

	cCat, _ := tax.Get("c")
	freshC, _ := fresh.Get("c")
	assert.Equal(t, freshC.Descendants, cCat.Descendants)
}

func TestJSONRoundTripPreservesClosures(t *testing.T) {
	tax := New("test")
	m := NewModifiedSet()
	require.NoError(t, tax.AddParent("a", "b", m))
	require.NoError(t, tax.AddParent("b", "c", m))

	data, err := tax.ToJSON()
	require.NoError(t, err)

	reloaded, err := FromJSON("test", data)
	require.NoError(t, err)

	aCat, _ := tax.Get("a")
	reloadedA, _ := reloaded.Get("a")
	assert.Equal(t, aCat.Ancestors, reloadedA.Ancestors)
}

func TestRemoveParentOnlyDropsOneEdge(t *testing.T) {
	tax := New("test")
	m := NewModifiedSet()
	require.NoError(t, tax.AddParent("a", "b", m))
	require.NoError(t, tax.AddParent("a", "c", m))

	tax.RemoveParent("a", "b", m)

	aCat, _ := tax.Get("a")
	_, hasB := aCat.Parents["b"]
	_, hasC := aCat.Parents["c"]
	assert.False(t, hasB)
	assert.True(t, hasC)
}
