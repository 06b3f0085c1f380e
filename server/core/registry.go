package core

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/CeeLav/Astrum-sub001/shared/messages"
)

// Registry owns every active room session, keyed by room id. It is the
// single entry point for room lifecycle and membership events from the
// room-management collaborator; there is no process-wide singleton
// session state.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*RoomSession
	cfg      SessionConfig
	log      zerolog.Logger
}

// NewRegistry creates an empty registry. cfg is the template applied
// to every session it starts.
func NewRegistry(cfg SessionConfig) *Registry {
	r := &Registry{
		sessions: make(map[string]*RoomSession),
		cfg:      cfg,
		log:      cfg.Logger.With().Str("component", "registry").Logger(),
	}
	// A session that dies on a frame ordering violation removes itself
	// so a later RoomStarted can build a fresh one.
	userFatal := cfg.OnFatal
	r.cfg.OnFatal = func(roomID string, err error) {
		r.remove(roomID)
		if userFatal != nil {
			userFatal(roomID, err)
		}
	}
	return r
}

// RoomStarted builds and starts a session for the room. Only one live
// session may exist per room.
func (r *Registry) RoomStarted(roomID string, players []string) (*RoomSession, error) {
	r.mu.Lock()
	if existing, ok := r.sessions[roomID]; ok && existing.State() != SessionStopped {
		r.mu.Unlock()
		return nil, fmt.Errorf("room %s already has an active session", roomID)
	}
	session := NewRoomSession(roomID, players, r.cfg)
	r.sessions[roomID] = session
	r.mu.Unlock()

	session.Start()
	return session, nil
}

// RoomStopped stops and discards the room's session, if any.
func (r *Registry) RoomStopped(roomID string, reason string) {
	r.mu.Lock()
	session, ok := r.sessions[roomID]
	if ok {
		delete(r.sessions, roomID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	session.Stop()
	r.log.Info().Str("room", roomID).Str("reason", reason).Msg("room session torn down")
}

// Session returns the live session for a room.
func (r *Registry) Session(roomID string) (*RoomSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[roomID]
	return session, ok
}

// Submit routes an upstream input sample to its room.
func (r *Registry) Submit(roomID string, sample messages.InputSample) error {
	session, ok := r.Session(roomID)
	if !ok {
		return fmt.Errorf("no active session for room %s", roomID)
	}
	return session.Submit(sample)
}

// PlayerJoined forwards a membership join to the room's session.
func (r *Registry) PlayerJoined(roomID, playerID string) {
	if session, ok := r.Session(roomID); ok {
		session.PlayerJoined(playerID)
	}
}

// PlayerLeft forwards a membership leave to the room's session.
func (r *Registry) PlayerLeft(roomID, playerID string) {
	if session, ok := r.Session(roomID); ok {
		session.PlayerLeft(playerID)
	}
}

// Stats reports the number of active rooms and the sum of their
// authority frames.
func (r *Registry) Stats() (activeRooms int, totalFrames int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, session := range r.sessions {
		if session.State() == SessionRunning {
			activeRooms++
			totalFrames += session.AuthorityFrame()
		}
	}
	return activeRooms, totalFrames
}

// StopAll stops every live session, e.g. on server shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	sessions := make([]*RoomSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*RoomSession)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
}

func (r *Registry) remove(roomID string) {
	r.mu.Lock()
	delete(r.sessions, roomID)
	r.mu.Unlock()
}
