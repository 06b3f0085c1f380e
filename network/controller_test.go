package network

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CeeLav/Astrum-sub001/shared/messages"
)

// fakeSim accumulates a deterministic integer state so two instances
// fed the same frame sequence are comparable, regardless of map order.
type fakeSim struct {
	stepped []int64
	state   int64
}

func (s *fakeSim) Step(set messages.FrameInputSet) {
	s.stepped = append(s.stepped, set.Frame)
	for _, sample := range set.Samples {
		s.state += int64(sample.Payload.MoveX*1000) * set.Frame
		if sample.Payload.Attack {
			s.state += 7 * set.Frame
		}
	}
}

func (s *fakeSim) Clone() Simulation {
	return &fakeSim{
		stepped: append([]int64(nil), s.stepped...),
		state:   s.state,
	}
}

func newTestController(t *testing.T, sim Simulation, hooks ControllerConfig) *ClientPredictionController {
	t.Helper()
	cfg := hooks
	cfg.RoomID = "room"
	cfg.PlayerID = "me"
	cfg.Simulation = sim
	cfg.Logger = zerolog.Nop()
	return NewClientPredictionController(cfg)
}

func authoritySet(frame int64, own, other messages.InputPayload) messages.FrameInputSet {
	return messages.FrameInputSet{
		RoomID: "room",
		Frame:  frame,
		Samples: map[string]messages.InputSample{
			"me":    {PlayerID: "me", Frame: frame, Payload: own},
			"other": {PlayerID: "other", Frame: frame, Payload: other},
		},
	}
}

func TestSampleLocalInputAdvancesPrediction(t *testing.T) {
	sim := &fakeSim{}
	c := newTestController(t, sim, ControllerConfig{})

	assert.True(t, c.SampleLocalInput(messages.InputPayload{MoveX: 1}))
	assert.True(t, c.SampleLocalInput(messages.InputPayload{MoveX: 1}))

	state := c.State()
	assert.Equal(t, int64(0), state.AuthorityFrame)
	assert.Equal(t, int64(2), state.PredictionFrame)
	assert.Equal(t, 2, state.PendingInputs)

	pred := c.PredictedSim().(*fakeSim)
	assert.Equal(t, []int64{1, 2}, pred.stepped)
	// The authoritative sim never runs speculatively.
	assert.Empty(t, sim.stepped)
}

func TestBackpressureStopsSamplingAtWindow(t *testing.T) {
	c := newTestController(t, &fakeSim{}, ControllerConfig{MaxPredictionAhead: 5})

	for i := 0; i < 5; i++ {
		assert.True(t, c.SampleLocalInput(messages.InputPayload{MoveX: 1}))
	}
	assert.False(t, c.SampleLocalInput(messages.InputPayload{MoveX: 1}), "sixth input exceeds the window")

	state := c.State()
	assert.Equal(t, int64(5), state.PredictionFrame)
	assert.Equal(t, uint64(1), state.ThrottledSamples)

	// Confirming a frame reopens the window.
	own := messages.InputPayload{MoveX: 1}
	c.OnFrameInputSet(authoritySet(1, own, messages.InputPayload{}))
	assert.True(t, c.SampleLocalInput(messages.InputPayload{MoveX: 1}))
}

func TestMatchingPredictionNeedsNoResimulation(t *testing.T) {
	var reconciled []int64
	c := newTestController(t, &fakeSim{}, ControllerConfig{
		OnReconciled: func(frame int64) { reconciled = append(reconciled, frame) },
		OnCorrection: func(frame int64) { t.Fatal("no correction expected") },
	})

	own := messages.InputPayload{MoveX: 1}
	require.True(t, c.SampleLocalInput(own))

	predBefore := c.PredictedSim()
	c.OnFrameInputSet(authoritySet(1, own, messages.InputPayload{MoveY: 1}))

	assert.Same(t, predBefore, c.PredictedSim(), "speculative state survives a confirmed prediction")
	assert.Equal(t, []int64{1}, reconciled)

	state := c.State()
	assert.Equal(t, int64(1), state.AuthorityFrame)
	assert.Equal(t, int64(1), state.PredictionFrame)
	assert.Equal(t, 0, state.PendingInputs)
}

func TestMismatchReplaysPendingFrames(t *testing.T) {
	c := newTestController(t, &fakeSim{}, ControllerConfig{})

	// Predict frames 1..4 locally.
	for i := 0; i < 4; i++ {
		require.True(t, c.SampleLocalInput(messages.InputPayload{MoveX: 1}))
	}
	predBefore := c.PredictedSim()

	// The server disagrees about frame 1.
	c.OnFrameInputSet(authoritySet(1, messages.InputPayload{MoveX: -1}, messages.InputPayload{}))

	predAfter := c.PredictedSim().(*fakeSim)
	assert.NotSame(t, predBefore, predAfter, "speculative sim is rebuilt")

	// The rebuilt sim is the authoritative frame 1 plus replayed 2..4.
	assert.Equal(t, []int64{1, 2, 3, 4}, predAfter.stepped)

	state := c.State()
	assert.Equal(t, int64(1), state.AuthorityFrame)
	assert.Equal(t, int64(4), state.PredictionFrame)
}

func TestDuplicateAndOutOfOrderSetsDropped(t *testing.T) {
	sim := &fakeSim{}
	c := newTestController(t, sim, ControllerConfig{})

	own := messages.InputPayload{MoveX: 1}
	set1 := authoritySet(1, own, messages.InputPayload{})
	c.OnFrameInputSet(set1)
	c.OnFrameInputSet(set1) // duplicate

	assert.Equal(t, []int64{1}, sim.stepped, "authoritative sim stepped once per frame")
	assert.Equal(t, int64(1), c.State().AuthorityFrame)
}

func TestAuthorityJumpTriggersHardResync(t *testing.T) {
	var corrections, reconciliations []int64
	c := newTestController(t, &fakeSim{}, ControllerConfig{
		OnCorrection: func(frame int64) { corrections = append(corrections, frame) },
		OnReconciled: func(frame int64) { reconciliations = append(reconciliations, frame) },
	})

	for i := 0; i < 3; i++ {
		require.True(t, c.SampleLocalInput(messages.InputPayload{MoveX: 1}))
	}

	c.OnFrameInputSet(authoritySet(50, messages.InputPayload{}, messages.InputPayload{}))

	state := c.State()
	assert.Equal(t, int64(50), state.AuthorityFrame)
	assert.Equal(t, int64(50), state.PredictionFrame)
	assert.Equal(t, 0, state.PendingInputs, "pending inputs discarded on resync")
	assert.Equal(t, PhaseNormal, state.Phase, "resync completes within the call")
	assert.Equal(t, []int64{50}, corrections)
	assert.Equal(t, []int64{50}, reconciliations)

	// Prediction restarts from the new base.
	require.True(t, c.SampleLocalInput(messages.InputPayload{MoveX: 1}))
	assert.Equal(t, int64(51), c.State().PredictionFrame)
}

func TestTwoControllersConvergeOnSameAuthority(t *testing.T) {
	a := newTestController(t, &fakeSim{}, ControllerConfig{})
	b := newTestController(t, &fakeSim{}, ControllerConfig{})

	// a predicts aggressively, b never predicts.
	for frame := int64(1); frame <= 10; frame++ {
		a.SampleLocalInput(messages.InputPayload{MoveX: 0.25})
		set := authoritySet(frame, messages.InputPayload{MoveX: 1}, messages.InputPayload{MoveX: -1, Attack: frame%2 == 0})
		a.OnFrameInputSet(set)
		b.OnFrameInputSet(set)
	}

	simA := a.AuthoritySim().(*fakeSim)
	simB := b.AuthoritySim().(*fakeSim)
	assert.Equal(t, simA.state, simB.state, "authoritative state is identical")
	assert.Equal(t, simA.stepped, simB.stepped)
}
