package slotcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleRoundTrip(t *testing.T) {
	raw := EncodeSingle([]byte("hello"))
	entries, err := ReadAll(Single, raw)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", string(entries[0]))
}

func TestSingleEmptyYieldsNothing(t *testing.T) {
	entries, err := ReadAll(Single, nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestVintMultiRoundTrip(t *testing.T) {
	values := [][]byte{[]byte("a"), []byte("bb"), []byte("ccc"), {}}
	raw := EncodeVintMulti(values)
	entries, err := ReadAll(VintMulti, raw)
	require.NoError(t, err)
	require.Len(t, entries, len(values))
	for i, v := range values {
		assert.Equal(t, string(v), string(entries[i]))
	}
}

func TestGeoMultiRoundTrip(t *testing.T) {
	a := EncodeLatLong(40.0, -73.0)
	b := EncodeLatLong(-10.5, 160.25)
	raw := EncodeGeoMulti([][6]byte{a, b})
	entries, err := ReadAll(GeoMulti, raw)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var got [6]byte
	copy(got[:], entries[0])
	lat, long := DecodeLatLong(got)
	assert.InDelta(t, 40.0, lat, 0.01)
	assert.InDelta(t, -73.0, long, 0.01)
}

func TestGeoMultiRejectsBadLength(t *testing.T) {
	_, err := ReadAll(GeoMulti, []byte{1, 2, 3, 4, 5, 6, 7})
	assert.Error(t, err)
}
