package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CeeLav/Astrum-sub001/shared/messages"
)

func frameSet(frame int64, payloads map[string]messages.InputPayload) messages.FrameInputSet {
	set := messages.FrameInputSet{
		RoomID:  "room",
		Frame:   frame,
		Samples: make(map[string]messages.InputSample, len(payloads)),
	}
	for id, p := range payloads {
		set.Samples[id] = messages.InputSample{PlayerID: id, Frame: frame, Payload: p}
	}
	return set
}

func TestStepMovesPlayers(t *testing.T) {
	w := NewWorld(640, 480, 3.0)
	w.AddPlayer("a", 100, 100)

	w.Step(frameSet(1, map[string]messages.InputPayload{
		"a": {MoveX: 1, MoveY: -1},
	}))

	x, y, ok := w.PlayerPosition("a")
	require.True(t, ok)
	assert.Equal(t, 103.0, x)
	assert.Equal(t, 97.0, y)
	assert.Equal(t, int64(1), w.Frame())
}

func TestWallsClampMovement(t *testing.T) {
	w := NewWorld(640, 480, 10.0)
	w.AddPlayer("a", 2, 100)

	for frame := int64(1); frame <= 5; frame++ {
		w.Step(frameSet(frame, map[string]messages.InputPayload{
			"a": {MoveX: -1},
		}))
	}

	x, _, ok := w.PlayerPosition("a")
	require.True(t, ok)
	assert.GreaterOrEqual(t, x, 0.0, "left wall stops the player")
}

func TestActionCountersAccumulate(t *testing.T) {
	w := NewWorld(640, 480, 3.0)
	w.AddPlayer("a", 100, 100)

	w.Step(frameSet(1, map[string]messages.InputPayload{"a": {Attack: true, Skill1: true}}))
	w.Step(frameSet(2, map[string]messages.InputPayload{"a": {Attack: true}}))

	combat, ok := w.PlayerCombat("a")
	require.True(t, ok)
	assert.Equal(t, 2, combat.Attacks)
	assert.Equal(t, 1, combat.Skill1Casts)
	assert.Equal(t, 0, combat.Skill2Casts)
}

func TestUnknownPlayerSpawnsAtCenter(t *testing.T) {
	w := NewWorld(640, 480, 3.0)

	w.Step(frameSet(1, map[string]messages.InputPayload{"late": {}}))

	x, y, ok := w.PlayerPosition("late")
	require.True(t, ok)
	assert.Equal(t, 320.0, x)
	assert.Equal(t, 240.0, y)
}

func TestRemovePlayerDespawns(t *testing.T) {
	w := NewWorld(640, 480, 3.0)
	w.AddPlayer("a", 100, 100)
	w.RemovePlayer("a")

	_, _, ok := w.PlayerPosition("a")
	assert.False(t, ok)
}

func TestDeterminism(t *testing.T) {
	run := func() *World {
		w := NewWorld(640, 480, 3.0)
		w.AddPlayer("a", 100, 100)
		w.AddPlayer("b", 200, 200)
		for frame := int64(1); frame <= 30; frame++ {
			w.Step(frameSet(frame, map[string]messages.InputPayload{
				"a": {MoveX: 0.7, MoveY: -0.3, Attack: frame%5 == 0},
				"b": {MoveX: -1, MoveY: 1},
			}))
		}
		return w
	}

	assert.Equal(t, run().Checksum(), run().Checksum())
}

func TestCloneIsIndependent(t *testing.T) {
	w := NewWorld(640, 480, 3.0)
	w.AddPlayer("a", 100, 100)
	w.Step(frameSet(1, map[string]messages.InputPayload{"a": {MoveX: 1, Attack: true}}))

	clone := w.Clone()
	require.Equal(t, w.Checksum(), clone.Checksum())

	// Stepping the clone leaves the original untouched.
	clone.Step(frameSet(2, map[string]messages.InputPayload{"a": {MoveY: 1}}))
	assert.NotEqual(t, w.Checksum(), clone.Checksum())

	x, _, _ := w.PlayerPosition("a")
	assert.Equal(t, 103.0, x)
}
