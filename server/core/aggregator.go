package core

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/CeeLav/Astrum-sub001/shared/messages"
	"github.com/CeeLav/Astrum-sub001/shared/netconfig"
)

var (
	// ErrStaleFrame means the sample targets a frame that has already
	// closed and been broadcast. Normal under latency; callers log and
	// drop, they never crash the ticker.
	ErrStaleFrame = errors.New("input targets an already closed frame")

	// ErrUnknownPlayer means the sample came from a player that is not
	// a current member of the room.
	ErrUnknownPlayer = errors.New("player is not a member of this room")

	// ErrFrameOrder means CloseFrame was asked to close anything other
	// than the next frame in sequence. Frame numbering is an immutable
	// ordering contract, so this is fatal to the owning session.
	ErrFrameOrder = errors.New("frame close out of order")
)

// InputAggregator turns a stream of out-of-order, possibly missing
// input samples into gap-free per-frame input sets for one room.
//
// Submit arrives from many network-receive goroutines, CloseFrame from
// the room's single ticker; the buffer mutex is the only critical
// section and every operation under it is O(players).
type InputAggregator struct {
	mu sync.Mutex

	roomID string
	policy netconfig.DefaultInputPolicy
	log    zerolog.Logger

	// Open-frame sample buffer keyed by frame, then player.
	buffer map[int64]map[string]messages.InputSample

	// Most recent payload seen per player, for the repeat-last policy.
	lastKnown map[string]messages.InputPayload

	players map[string]struct{}

	// Membership changes take effect at the next CloseFrame, never
	// retroactively.
	pendingJoins  []string
	pendingLeaves []string

	closedFrame    int64 // highest frame already closed; 0 before first close
	maxBufferAhead int64
}

// NewInputAggregator creates an aggregator for a room with an initial
// member list.
func NewInputAggregator(roomID string, players []string, policy netconfig.DefaultInputPolicy, log zerolog.Logger) *InputAggregator {
	a := &InputAggregator{
		roomID:         roomID,
		policy:         policy,
		log:            log.With().Str("room", roomID).Logger(),
		buffer:         make(map[int64]map[string]messages.InputSample),
		lastKnown:      make(map[string]messages.InputPayload),
		players:        make(map[string]struct{}, len(players)),
		maxBufferAhead: netconfig.MaxBufferAhead,
	}
	for _, id := range players {
		a.players[id] = struct{}{}
	}
	return a
}

// Submit buffers a sample under its target frame, last-write-wins per
// (frame, player). Samples for closed frames return ErrStaleFrame and
// are dropped; samples from non-members return ErrUnknownPlayer.
// Samples too far ahead of the closed frame are clamped down.
func (a *InputAggregator) Submit(sample messages.InputSample) error {
	if err := sample.Validate(); err != nil {
		return fmt.Errorf("invalid sample: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.players[sample.PlayerID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, sample.PlayerID)
	}
	if sample.Frame <= a.closedFrame {
		return fmt.Errorf("%w: frame %d, closed through %d", ErrStaleFrame, sample.Frame, a.closedFrame)
	}
	if max := a.closedFrame + a.maxBufferAhead; sample.Frame > max {
		a.log.Warn().
			Int64("frame", sample.Frame).
			Int64("clamped", max).
			Str("player", sample.PlayerID).
			Msg("input too far ahead, clamping")
		sample.Frame = max
	}

	frameBuf, ok := a.buffer[sample.Frame]
	if !ok {
		frameBuf = make(map[string]messages.InputSample)
		a.buffer[sample.Frame] = frameBuf
	}
	frameBuf[sample.PlayerID] = sample
	a.lastKnown[sample.PlayerID] = sample.Payload
	return nil
}

// CloseFrame closes the given frame: gaps are filled per the default
// input policy, the frame's buffer is released and the resulting set
// returned. Called exactly once per frame by the scheduler; anything
// but closedFrame+1 is an ordering violation.
func (a *InputAggregator) CloseFrame(frame int64) (messages.FrameInputSet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if frame != a.closedFrame+1 {
		return messages.FrameInputSet{}, fmt.Errorf("%w: got %d, want %d", ErrFrameOrder, frame, a.closedFrame+1)
	}

	a.applyMembershipLocked()

	set := messages.FrameInputSet{
		RoomID:   a.roomID,
		Frame:    frame,
		Samples:  make(map[string]messages.InputSample, len(a.players)),
		ClosedAt: time.Now().UnixMilli(),
	}

	buffered := a.buffer[frame]
	for id := range a.players {
		if sample, ok := buffered[id]; ok {
			set.Samples[id] = sample
			continue
		}
		set.Samples[id] = a.defaultSampleLocked(id, frame)
	}

	delete(a.buffer, frame)
	a.closedFrame = frame
	return set, nil
}

// FastForward marks every frame up to and including the given frame as
// closed without emitting sets. Supports the force-set authority frame
// path; moving backward is refused.
func (a *InputAggregator) FastForward(frame int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if frame < a.closedFrame {
		return fmt.Errorf("%w: fast-forward to %d behind closed %d", ErrFrameOrder, frame, a.closedFrame)
	}
	for f := range a.buffer {
		if f <= frame {
			delete(a.buffer, f)
		}
	}
	a.closedFrame = frame
	return nil
}

// AddPlayer registers a player starting from the next closed frame.
func (a *InputAggregator) AddPlayer(playerID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pendingJoins = append(a.pendingJoins, playerID)
}

// RemovePlayer unregisters a player starting from the next closed frame.
func (a *InputAggregator) RemovePlayer(playerID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pendingLeaves = append(a.pendingLeaves, playerID)
}

// Players returns a snapshot of the current member list.
func (a *InputAggregator) Players() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]string, 0, len(a.players))
	for id := range a.players {
		out = append(out, id)
	}
	return out
}

// ClosedFrame returns the highest frame closed so far.
func (a *InputAggregator) ClosedFrame() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closedFrame
}

func (a *InputAggregator) applyMembershipLocked() {
	for _, id := range a.pendingJoins {
		a.players[id] = struct{}{}
	}
	for _, id := range a.pendingLeaves {
		delete(a.players, id)
		delete(a.lastKnown, id)
	}
	a.pendingJoins = a.pendingJoins[:0]
	a.pendingLeaves = a.pendingLeaves[:0]
}

// defaultSampleLocked synthesizes the gap-fill sample for a player
// that submitted nothing for the closing frame.
func (a *InputAggregator) defaultSampleLocked(playerID string, frame int64) messages.InputSample {
	var payload messages.InputPayload
	if a.policy == netconfig.RepeatLast {
		if last, ok := a.lastKnown[playerID]; ok {
			payload = last.WithoutActions()
		}
	}
	return messages.InputSample{
		PlayerID:  playerID,
		Frame:     frame,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}
