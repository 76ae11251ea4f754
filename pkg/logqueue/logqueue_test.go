package logqueue

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDrain(buf *bytes.Buffer, capacity int) *Drain {
	sink := zerolog.New(buf)
	return New(sink, capacity)
}

func waitForLines(buf *bytes.Buffer, n int) {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if strings.Count(buf.String(), "\n") >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRecordsAreWrittenInOrder(t *testing.T) {
	var buf bytes.Buffer
	d := newTestDrain(&buf, 16)
	d.Start()
	d.Info("test", "first")
	d.Info("test", "second")
	waitForLines(&buf, 2)
	d.Stop()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "first", first["message"])
	assert.Equal(t, "second", second["message"])
}

func TestOverflowDropsAndCountsSkips(t *testing.T) {
	var buf bytes.Buffer
	d := newTestDrain(&buf, 1)

	// Fill and overflow before starting the writer, so we control ordering.
	d.mu.Lock()
	d.closed = false
	d.mu.Unlock()

	d.enqueue(zerolog.InfoLevel, "test", "kept")
	d.enqueue(zerolog.InfoLevel, "test", "dropped-1")
	d.enqueue(zerolog.InfoLevel, "test", "dropped-2")

	assert.Equal(t, 2, d.skipCount)

	d.Start()
	waitForLines(&buf, 1)
	d.Stop()

	var first map[string]interface{}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "kept", first["message"])
}
