package network

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/CeeLav/Astrum-sub001/shared/messages"
	"github.com/CeeLav/Astrum-sub001/shared/netconfig"
)

// Simulation is the capability the prediction controller needs from
// the game-rule layer: advance one frame from a dense input set, and
// fork an independent copy for speculative stepping. Implementations
// must be deterministic: equal input sequences produce equal state.
type Simulation interface {
	Step(set messages.FrameInputSet)
	Clone() Simulation
}

// SyncPhase is the controller's reconciliation state.
type SyncPhase int

const (
	// PhaseNormal: frames arrive in sequence, prediction runs ahead.
	PhaseNormal SyncPhase = iota
	// PhaseResync: the server jumped ahead and speculative state is
	// being rebuilt. Entered and left within one OnFrameInputSet call;
	// the presentation layer sees it through OnCorrection.
	PhaseResync
)

func (p SyncPhase) String() string {
	if p == PhaseResync {
		return "resync"
	}
	return "normal"
}

// ControllerConfig wires a prediction controller for one room membership.
type ControllerConfig struct {
	RoomID   string
	PlayerID string

	// MaxPredictionAhead caps predictionFrame - authorityFrame.
	// Zero selects the shared default.
	MaxPredictionAhead int64

	// Simulation is the authoritative base state; the controller forks
	// its speculative copy from it. Mutated only by the controller.
	Simulation Simulation

	// OnReconciled fires whenever authoritative state advances, so the
	// presentation layer can re-sample positions.
	OnReconciled func(frame int64)

	// OnCorrection fires on a hard resync: the one case where the
	// player may see a visible correction.
	OnCorrection func(frame int64)

	Logger zerolog.Logger
}

// ClientPredictionState is a read-only snapshot of the controller's
// frame bookkeeping.
type ClientPredictionState struct {
	AuthorityFrame     int64
	PredictionFrame    int64
	MaxPredictionAhead int64
	PendingInputs      int
	Phase              SyncPhase
	ThrottledSamples   uint64
}

// ClientPredictionController runs the simulation twice: speculatively
// ahead of the network for responsiveness, and pinned to the last
// authoritative frame for correctness, reconciling when they diverge.
// One controller exists per room the client is in; all state is
// private to that membership.
type ClientPredictionController struct {
	mu sync.Mutex

	roomID   string
	playerID string
	maxAhead int64
	log      zerolog.Logger

	authorityFrame  int64
	predictionFrame int64
	phase           SyncPhase
	throttled       uint64

	pending   PendingInputBuffer
	lastKnown messages.FrameInputSet

	authSim Simulation
	predSim Simulation

	onReconciled func(frame int64)
	onCorrection func(frame int64)
}

// NewClientPredictionController builds a controller at frame 0.
func NewClientPredictionController(cfg ControllerConfig) *ClientPredictionController {
	maxAhead := cfg.MaxPredictionAhead
	if maxAhead <= 0 {
		maxAhead = netconfig.MaxPredictionAhead
	}
	return &ClientPredictionController{
		roomID:       cfg.RoomID,
		playerID:     cfg.PlayerID,
		maxAhead:     maxAhead,
		log:          cfg.Logger.With().Str("room", cfg.RoomID).Str("player", cfg.PlayerID).Logger(),
		authSim:      cfg.Simulation,
		predSim:      cfg.Simulation.Clone(),
		onReconciled: cfg.OnReconciled,
		onCorrection: cfg.OnCorrection,
	}
}

// SampleLocalInput applies a locally captured input at the next
// prediction frame and buffers it until the server confirms it.
// Returns false when the prediction window is full: a deliberate
// backpressure stall, not an error.
func (c *ClientPredictionController) SampleLocalInput(payload messages.InputPayload) bool {
	c.mu.Lock()

	if c.predictionFrame-c.authorityFrame >= c.maxAhead {
		c.throttled++
		c.log.Debug().
			Int64("prediction", c.predictionFrame).
			Int64("authority", c.authorityFrame).
			Msg("prediction window full, input throttled")
		c.mu.Unlock()
		return false
	}

	frame := c.predictionFrame + 1
	sample := messages.NewInputSample(c.playerID, frame, payload)

	set := c.speculativeSetLocked(frame)
	set.Samples[c.playerID] = sample
	c.predSim.Step(set)

	c.pending.Store(sample)
	c.predictionFrame = frame
	c.mu.Unlock()
	return true
}

// OnFrameInputSet consumes one authoritative frame set. Sets at or
// below the authority cursor are duplicates and dropped; the next
// frame in sequence advances the cursor and reconciles prediction; a
// jump past it is a hard resync.
func (c *ClientPredictionController) OnFrameInputSet(set messages.FrameInputSet) {
	c.mu.Lock()

	switch {
	case set.Frame <= c.authorityFrame:
		c.log.Debug().
			Int64("frame", set.Frame).
			Int64("authority", c.authorityFrame).
			Msg("duplicate or out-of-order frame set dropped")
		c.mu.Unlock()
		return

	case set.Frame == c.authorityFrame+1:
		c.advanceLocked(set)
		reconciled := c.onReconciled
		frame := set.Frame
		c.mu.Unlock()
		if reconciled != nil {
			reconciled(frame)
		}
		return

	default:
		c.resyncLocked(set)
		correction, reconciled := c.onCorrection, c.onReconciled
		frame := set.Frame
		c.mu.Unlock()
		if correction != nil {
			correction(frame)
		}
		if reconciled != nil {
			reconciled(frame)
		}
		return
	}
}

// State returns a snapshot of the frame bookkeeping.
func (c *ClientPredictionController) State() ClientPredictionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ClientPredictionState{
		AuthorityFrame:     c.authorityFrame,
		PredictionFrame:    c.predictionFrame,
		MaxPredictionAhead: c.maxAhead,
		PendingInputs:      c.pending.Len(),
		Phase:              c.phase,
		ThrottledSamples:   c.throttled,
	}
}

// AuthoritySim exposes the authoritative simulation for read access by
// the presentation layer after OnReconciled.
func (c *ClientPredictionController) AuthoritySim() Simulation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authSim
}

// PredictedSim exposes the speculative simulation for rendering the
// local player ahead of the network.
func (c *ClientPredictionController) PredictedSim() Simulation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.predSim
}

// advanceLocked handles the in-sequence frame: step the authoritative
// sim and, on prediction mismatch, rebuild speculative state from the
// new base.
func (c *ClientPredictionController) advanceLocked(set messages.FrameInputSet) {
	c.authorityFrame = set.Frame
	c.lastKnown = set
	c.authSim.Step(set)

	if c.predictionFrame < c.authorityFrame {
		// Prediction fell behind (e.g. it never ran). Snap it to the
		// authoritative state and restart from there.
		c.pending.Clear()
		c.predictionFrame = c.authorityFrame
		c.predSim = c.authSim.Clone()
		return
	}

	predicted, ok := c.pending.Get(set.Frame)
	c.pending.Confirm(set.Frame)

	authoritative, hasOwn := set.SampleFor(c.playerID)
	matches := ok && hasOwn && predicted.Payload.Equal(authoritative.Payload)
	if !hasOwn {
		// Spectating or not yet registered server-side: nothing of
		// ours to compare, prediction for others replays regardless.
		matches = !ok
	}

	if matches {
		return
	}

	// The authoritative input differs from the prediction. The
	// simulation is not commutative under the correction, so every
	// speculative frame is replayed on top of the corrected base.
	c.log.Debug().
		Int64("frame", set.Frame).
		Int64("through", c.predictionFrame).
		Msg("prediction mismatch, resimulating")
	c.resimulateLocked()
}

// resimulateLocked rebuilds the speculative sim by replaying frames
// (authorityFrame, predictionFrame] over a fresh authoritative clone.
func (c *ClientPredictionController) resimulateLocked() {
	c.predSim = c.authSim.Clone()
	for frame := c.authorityFrame + 1; frame <= c.predictionFrame; frame++ {
		set := c.speculativeSetLocked(frame)
		if sample, ok := c.pending.Get(frame); ok {
			set.Samples[c.playerID] = sample
		}
		c.predSim.Step(set)
	}
}

// resyncLocked handles an authority jump: speculative state is
// discarded wholesale and both cursors snap to the server's frame.
func (c *ClientPredictionController) resyncLocked(set messages.FrameInputSet) {
	c.phase = PhaseResync
	c.log.Warn().
		Int64("from", c.authorityFrame).
		Int64("to", set.Frame).
		Msg("authority frame jumped, hard resync")

	// Contract: discard pending inputs with frame <= set.Frame. Under
	// the backpressure invariant nothing above it can exist, so the
	// buffer is simply cleared.
	c.pending.Clear()
	c.authorityFrame = set.Frame
	c.predictionFrame = set.Frame
	c.lastKnown = set
	c.authSim.Step(set)
	c.predSim = c.authSim.Clone()
	c.phase = PhaseNormal
}

// speculativeSetLocked predicts a full input set for a future frame:
// every other player repeats their latest known movement with one-shot
// actions cleared, the local player's slot is filled by the caller.
func (c *ClientPredictionController) speculativeSetLocked(frame int64) messages.FrameInputSet {
	set := messages.FrameInputSet{
		RoomID:  c.roomID,
		Frame:   frame,
		Samples: make(map[string]messages.InputSample, len(c.lastKnown.Samples)+1),
	}
	for id, sample := range c.lastKnown.Samples {
		if id == c.playerID {
			continue
		}
		set.Samples[id] = messages.InputSample{
			PlayerID:  id,
			Frame:     frame,
			Payload:   sample.Payload.WithoutActions(),
			Timestamp: sample.Timestamp,
		}
	}
	return set
}
