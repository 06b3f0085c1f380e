package core

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CeeLav/Astrum-sub001/shared/messages"
	"github.com/CeeLav/Astrum-sub001/shared/netconfig"
)

// captureBroadcaster collects everything sent downstream.
type captureBroadcaster struct {
	mu   sync.Mutex
	sets []messages.FrameInputSet
}

func (c *captureBroadcaster) SendDownstream(roomID string, set messages.FrameInputSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets = append(c.sets, set)
}

func (c *captureBroadcaster) at(i int) messages.FrameInputSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets[i]
}

func (c *captureBroadcaster) frames() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]int64, len(c.sets))
	for i, s := range c.sets {
		out[i] = s.Frame
	}
	return out
}

func newTestSession(broadcast Broadcaster, players ...string) *RoomSession {
	return NewRoomSession("room", players, SessionConfig{
		TickInterval: 2 * time.Millisecond,
		InputPolicy:  netconfig.RepeatLast,
		Broadcast:    broadcast,
		Logger:       zerolog.Nop(),
	})
}

func TestSessionLifecycle(t *testing.T) {
	capture := &captureBroadcaster{}
	session := newTestSession(capture, "a", "b")

	assert.Equal(t, SessionCreated, session.State())

	session.Start()
	assert.Equal(t, SessionRunning, session.State())
	session.Start() // warn and ignore

	require.Eventually(t, func() bool {
		return len(capture.frames()) >= 3
	}, time.Second, time.Millisecond)

	session.Stop()
	assert.Equal(t, SessionStopped, session.State())
	session.Stop() // no-op

	// Stopped sessions never restart.
	session.Start()
	assert.Equal(t, SessionStopped, session.State())

	for i, frame := range capture.frames() {
		assert.Equal(t, int64(i+1), frame)
	}
}

func TestSessionSubmitRouting(t *testing.T) {
	capture := &captureBroadcaster{}
	session := newTestSession(capture, "a")

	assert.NoError(t, session.Submit(sampleAt("a", 1, messages.InputPayload{MoveX: 1})))
	assert.ErrorIs(t, session.Submit(sampleAt("ghost", 1, messages.InputPayload{})), ErrUnknownPlayer)
}

func TestSessionMembershipFlowsToAggregator(t *testing.T) {
	capture := &captureBroadcaster{}
	session := newTestSession(capture, "a")

	session.PlayerJoined("b")
	session.PlayerLeft("a")

	session.Start()
	require.Eventually(t, func() bool {
		return len(capture.frames()) >= 1
	}, time.Second, time.Millisecond)
	session.Stop()

	first := capture.at(0)
	_, hasB := first.SampleFor("b")
	assert.True(t, hasB)
	_, hasA := first.SampleFor("a")
	assert.False(t, hasA)
}

func TestSessionRecorderSeesEveryFrame(t *testing.T) {
	capture := &captureBroadcaster{}
	recorded := &captureBroadcaster{}
	session := NewRoomSession("room", []string{"a"}, SessionConfig{
		TickInterval: 2 * time.Millisecond,
		Broadcast:    capture,
		Recorder:     recorderFunc(func(set messages.FrameInputSet) { recorded.SendDownstream("room", set) }),
		Logger:       zerolog.Nop(),
	})

	session.Start()
	require.Eventually(t, func() bool {
		return len(capture.frames()) >= 3
	}, time.Second, time.Millisecond)
	session.Stop()

	assert.Equal(t, capture.frames()[:3], recorded.frames()[:3])
}

type recorderFunc func(set messages.FrameInputSet)

func (f recorderFunc) RecordFrame(set messages.FrameInputSet) { f(set) }
