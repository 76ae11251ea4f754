package docdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripPreservesOrderAndValues(t *testing.T) {
	d := New()
	d.Set("foo", "bar")
	d.Set("food", "bard")

	blob := d.Serialize()
	d2, err := Deserialize(blob)
	require.NoError(t, err)

	foo, ok := d2.Get("foo")
	require.True(t, ok)
	assert.Equal(t, "bar", foo)

	food, ok := d2.Get("food")
	require.True(t, ok)
	assert.Equal(t, "bard", food)

	var gotFields []string
	var gotValues []string
	d2.Each(func(field, value string) {
		gotFields = append(gotFields, field)
		gotValues = append(gotValues, value)
	})
	assert.Equal(t, []string{"foo", "food"}, gotFields)
	assert.Equal(t, []string{"bar", "bard"}, gotValues)
}

func TestTruncatedStreamFailsToDeserialize(t *testing.T) {
	d := New()
	d.Set("foo", "bar")
	blob := d.Serialize()

	_, err := Deserialize(blob[:len(blob)-1])
	assert.Error(t, err)
}

func TestSetReplacesKeepingPosition(t *testing.T) {
	d := New()
	d.Set("a", "1")
	d.Set("b", "2")
	d.Set("a", "3")

	assert.Equal(t, []string{"a", "b"}, d.Fields())
	v, _ := d.Get("a")
	assert.Equal(t, "3", v)
}
