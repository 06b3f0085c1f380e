package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CeeLav/Astrum-sub001/shared/messages"
)

func pendingSample(frame int64) messages.InputSample {
	return messages.InputSample{PlayerID: "p1", Frame: frame, Payload: messages.InputPayload{MoveX: float64(frame)}}
}

func TestPendingBufferStoreGetConfirm(t *testing.T) {
	var buf PendingInputBuffer

	buf.Store(pendingSample(1))
	buf.Store(pendingSample(2))
	assert.Equal(t, 2, buf.Len())

	got, ok := buf.Get(1)
	require.True(t, ok)
	assert.Equal(t, 1.0, got.Payload.MoveX)

	_, ok = buf.Get(3)
	assert.False(t, ok)

	buf.Confirm(1)
	_, ok = buf.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 1, buf.Len())

	// Confirming twice does not underflow.
	buf.Confirm(1)
	assert.Equal(t, 1, buf.Len())
}

func TestPendingBufferSlotReuse(t *testing.T) {
	var buf PendingInputBuffer

	buf.Store(pendingSample(3))
	buf.Store(pendingSample(3 + pendingBufferSize))

	// The old frame's slot was reclaimed.
	_, ok := buf.Get(3)
	assert.False(t, ok)
	got, ok := buf.Get(3 + pendingBufferSize)
	require.True(t, ok)
	assert.Equal(t, int64(3+pendingBufferSize), got.Frame)
	assert.Equal(t, 1, buf.Len())
}

func TestPendingBufferRange(t *testing.T) {
	var buf PendingInputBuffer

	buf.Store(pendingSample(2))
	buf.Store(pendingSample(4))
	buf.Store(pendingSample(5))

	got := buf.Range(1, 5)
	require.Len(t, got, 3)
	assert.Equal(t, int64(2), got[0].Frame)
	assert.Equal(t, int64(4), got[1].Frame)
	assert.Equal(t, int64(5), got[2].Frame)

	assert.Empty(t, buf.Range(5, 10))
}

func TestPendingBufferClear(t *testing.T) {
	var buf PendingInputBuffer

	for frame := int64(1); frame <= 5; frame++ {
		buf.Store(pendingSample(frame))
	}
	buf.Clear()
	assert.Equal(t, 0, buf.Len())
	_, ok := buf.Get(1)
	assert.False(t, ok)
}
