package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/CeeLav/Astrum-sub001/shared/messages"
	"github.com/CeeLav/Astrum-sub001/shared/netconfig"
)

// Broadcaster delivers a closed frame to every member of a room.
// Fire-and-forget: at-least-once or best-effort semantics are assumed,
// clients tolerate duplicates and drops.
type Broadcaster interface {
	SendDownstream(roomID string, set messages.FrameInputSet)
}

// FrameRecorder observes every closed frame, e.g. for a replay log.
type FrameRecorder interface {
	RecordFrame(set messages.FrameInputSet)
}

// SessionState tracks the room session lifecycle.
type SessionState int

const (
	SessionCreated SessionState = iota
	SessionRunning
	SessionStopped
)

func (s SessionState) String() string {
	switch s {
	case SessionCreated:
		return "created"
	case SessionRunning:
		return "running"
	case SessionStopped:
		return "stopped"
	}
	return "unknown"
}

// SessionConfig carries the collaborators and tuning for one session.
type SessionConfig struct {
	TickInterval time.Duration
	InputPolicy  netconfig.DefaultInputPolicy
	Broadcast    Broadcaster
	Recorder     FrameRecorder // optional

	// OnFrameReady is invoked once per closed frame, in order, after
	// broadcast. Optional observation hook.
	OnFrameReady func(roomID string, frame int64, set messages.FrameInputSet)

	// OnFatal is invoked when the session aborts on a frame ordering
	// violation.
	OnFatal func(roomID string, err error)

	Logger zerolog.Logger
}

// RoomSession is the composition root binding one aggregator, one
// scheduler and the member list for a single active room. Sessions are
// fully independent: no state or locks are shared across rooms, and a
// session is never reused across game instances.
type RoomSession struct {
	mu sync.Mutex

	roomID string
	agg    *InputAggregator
	sched  *RoomTickScheduler
	state  SessionState
	cfg    SessionConfig
	log    zerolog.Logger
}

// NewRoomSession builds a session in the Created state.
func NewRoomSession(roomID string, players []string, cfg SessionConfig) *RoomSession {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = netconfig.TickInterval
	}
	log := cfg.Logger.With().Str("room", roomID).Logger()

	s := &RoomSession{
		roomID: roomID,
		state:  SessionCreated,
		cfg:    cfg,
		log:    log,
	}
	s.agg = NewInputAggregator(roomID, players, cfg.InputPolicy, cfg.Logger)
	s.sched = NewRoomTickScheduler(roomID, cfg.TickInterval, s.agg, s.publish, s.fatal, cfg.Logger)
	return s
}

// Start begins ticking. Idempotent: starting a running session warns
// and does nothing; a stopped session cannot be restarted.
func (s *RoomSession) Start() {
	s.mu.Lock()
	switch s.state {
	case SessionRunning:
		s.mu.Unlock()
		s.log.Warn().Msg("session already running, start ignored")
		return
	case SessionStopped:
		s.mu.Unlock()
		s.log.Warn().Msg("session already stopped, start ignored")
		return
	}
	s.state = SessionRunning
	s.mu.Unlock()

	s.log.Info().Int("players", len(s.agg.Players())).Msg("room session started")
	s.sched.Start()
}

// Stop halts ticking; the in-flight tick, if any, completes first.
// Historical frame state survives until the session is discarded.
func (s *RoomSession) Stop() {
	s.mu.Lock()
	if s.state != SessionRunning {
		s.mu.Unlock()
		return
	}
	s.state = SessionStopped
	s.mu.Unlock()

	s.sched.Stop()
	s.log.Info().Int64("finalFrame", s.sched.AuthorityFrame()).Msg("room session stopped")
}

// State returns the current lifecycle state.
func (s *RoomSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RoomID returns the owning room's id.
func (s *RoomSession) RoomID() string {
	return s.roomID
}

// AuthorityFrame returns the most recent closed frame.
func (s *RoomSession) AuthorityFrame() int64 {
	return s.sched.AuthorityFrame()
}

// Players returns a snapshot of the current member list.
func (s *RoomSession) Players() []string {
	return s.agg.Players()
}

// Submit routes a sample into the aggregator. Stale and unknown-player
// samples are logged and dropped here; they are routine under latency
// and must never disturb ticking.
func (s *RoomSession) Submit(sample messages.InputSample) error {
	err := s.agg.Submit(sample)
	if err != nil {
		s.log.Debug().
			Err(err).
			Str("player", sample.PlayerID).
			Int64("frame", sample.Frame).
			Msg("input sample rejected")
	}
	return err
}

// PlayerJoined registers a member starting from the next closed frame.
func (s *RoomSession) PlayerJoined(playerID string) {
	s.agg.AddPlayer(playerID)
	s.log.Info().Str("player", playerID).Msg("player joined room session")
}

// PlayerLeft unregisters a member starting from the next closed frame.
func (s *RoomSession) PlayerLeft(playerID string) {
	s.agg.RemovePlayer(playerID)
	s.log.Info().Str("player", playerID).Msg("player left room session")
}

// ForceAuthorityFrame jumps the authority frame forward (resync /
// late-joiner fast-forward). Never moves backward.
func (s *RoomSession) ForceAuthorityFrame(frame int64) error {
	return s.sched.ForceAuthorityFrame(frame)
}

func (s *RoomSession) publish(set messages.FrameInputSet) {
	if s.cfg.Broadcast != nil {
		s.cfg.Broadcast.SendDownstream(s.roomID, set)
	}
	if s.cfg.Recorder != nil {
		s.cfg.Recorder.RecordFrame(set)
	}
	if s.cfg.OnFrameReady != nil {
		s.cfg.OnFrameReady(s.roomID, set.Frame, set)
	}
}

func (s *RoomSession) fatal(err error) {
	s.mu.Lock()
	s.state = SessionStopped
	s.mu.Unlock()

	if s.cfg.OnFatal != nil {
		s.cfg.OnFatal(s.roomID, err)
	}
}
