package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
	"github.com/rs/zerolog"

	"github.com/CeeLav/Astrum-sub001/shared/messages"
	"github.com/CeeLav/Astrum-sub001/shared/netconfig"
)

// ServerConfig carries server identity and sync tuning.
type ServerConfig struct {
	Name        string
	Version     string // required client version, empty accepts any
	TickRate    int
	InputPolicy netconfig.DefaultInputPolicy
	Recorder    FrameRecorder // optional replay consumer
	Logger      zerolog.Logger

	// AutoStartPlayers starts a room's frame sync once this many players
	// have joined it. Zero leaves room starts to the StartRoom caller.
	AutoStartPlayers int
}

// clientSession is the server's view of one connected client.
type clientSession struct {
	roomID         string
	playerID       string
	reconnectToken string
}

// Server binds the websocket transport to the room registry. All
// client-to-server traffic arrives through a single typed Inbound
// dispatch rather than one subscription per message kind.
type Server struct {
	mu sync.RWMutex

	cfg       ServerConfig
	registry  *Registry
	transport *transports.WsServerTransport
	log       zerolog.Logger

	clients map[*router.NetworkClient]*clientSession
	// roomID -> playerID -> connected client, for downstream broadcast.
	members map[string]map[string]*router.NetworkClient
}

// NewServer creates a server and its room registry.
func NewServer(cfg ServerConfig) *Server {
	if cfg.TickRate <= 0 {
		cfg.TickRate = netconfig.TickRate
	}

	s := &Server{
		cfg:     cfg,
		log:     cfg.Logger.With().Str("component", "server").Logger(),
		clients: make(map[*router.NetworkClient]*clientSession),
		members: make(map[string]map[string]*router.NetworkClient),
	}
	s.registry = NewRegistry(SessionConfig{
		TickInterval: time.Second / time.Duration(cfg.TickRate),
		InputPolicy:  cfg.InputPolicy,
		Broadcast:    s,
		Recorder:     cfg.Recorder,
		OnFatal: func(roomID string, err error) {
			s.log.Error().Str("room", roomID).Err(err).Msg("room session aborted")
			s.sendSyncEnded(roomID, 0, "frame ordering violation")
		},
		Logger: cfg.Logger,
	})

	s.setupRouterCallbacks()
	return s
}

// Registry exposes the room registry to the room-management collaborator.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Start begins serving websocket clients on the given port. Blocks
// until the transport stops.
func (s *Server) Start(port uint) error {
	s.transport = transports.NewWsServerTransport(port, "", nil)
	s.log.Info().Uint("port", port).Int("tickRate", s.cfg.TickRate).Msg("sync server listening")
	return s.transport.Start()
}

// Stop tears down every room session.
func (s *Server) Stop() {
	s.registry.StopAll()
}

// StartRoom starts frame sync for a room and notifies its members.
// Called by the room-management collaborator on game start.
func (s *Server) StartRoom(roomID string, players []string) error {
	if _, err := s.registry.RoomStarted(roomID, players); err != nil {
		return err
	}
	s.broadcast(roomID, messages.SyncStarted{
		RoomID:        roomID,
		TickRate:      s.cfg.TickRate,
		IntervalMS:    (time.Second / time.Duration(s.cfg.TickRate)).Milliseconds(),
		StartedAt:     time.Now().UnixMilli(),
		PlayerIDs:     players,
		MaxPrediction: netconfig.MaxPredictionAhead,
	})
	return nil
}

// StopRoom ends frame sync for a room and notifies its members.
func (s *Server) StopRoom(roomID, reason string) {
	var finalFrame int64
	if session, ok := s.registry.Session(roomID); ok {
		finalFrame = session.AuthorityFrame()
	}
	s.registry.RoomStopped(roomID, reason)
	s.sendSyncEnded(roomID, finalFrame, reason)
}

// SendDownstream implements Broadcaster: one closed frame to every
// connected member of the room. Send failures are logged and skipped;
// delivery reliability is the transport's concern.
func (s *Server) SendDownstream(roomID string, set messages.FrameInputSet) {
	s.broadcast(roomID, set)
}

func (s *Server) setupRouterCallbacks() {
	router.OnConnect(func(client *router.NetworkClient) {
		s.log.Debug().Str("client", client.Id()).Msg("client connected")
	})

	router.OnDisconnect(func(client *router.NetworkClient, err error) {
		s.onDisconnect(client, err)
	})

	router.On(func(client *router.NetworkClient, msg messages.Inbound) {
		s.handleInbound(client, msg)
	})

	router.OnError(func(client *router.NetworkClient, err error) {
		s.log.Warn().Err(err).Msg("client error")
	})
}

// handleInbound is the single dispatch point for client traffic.
func (s *Server) handleInbound(client *router.NetworkClient, msg messages.Inbound) {
	switch {
	case msg.Join != nil:
		s.onJoinRoom(client, *msg.Join)
	case msg.Leave != nil:
		s.onLeaveRoom(client, *msg.Leave)
	case msg.Input != nil:
		s.onInput(client, *msg.Input)
	default:
		s.log.Warn().Str("client", client.Id()).Msg("empty inbound message ignored")
	}
}

func (s *Server) onJoinRoom(client *router.NetworkClient, req messages.JoinRoomRequest) {
	if s.cfg.Version != "" && req.Version != s.cfg.Version {
		s.send(client, messages.JoinRoomRejected{
			Reason: fmt.Sprintf("version mismatch: server requires %s", s.cfg.Version),
		})
		return
	}
	if req.RoomID == "" || req.PlayerID == "" {
		s.send(client, messages.JoinRoomRejected{Reason: "room and player ids are required"})
		return
	}

	token := req.ReconnectToken
	if token == "" {
		token = uuid.NewString()
	}

	s.mu.Lock()
	s.clients[client] = &clientSession{
		roomID:         req.RoomID,
		playerID:       req.PlayerID,
		reconnectToken: token,
	}
	room, ok := s.members[req.RoomID]
	if !ok {
		room = make(map[string]*router.NetworkClient)
		s.members[req.RoomID] = room
	}
	room[req.PlayerID] = client
	s.mu.Unlock()

	var authorityFrame int64
	if session, ok := s.registry.Session(req.RoomID); ok {
		// Rejoin of a running room: membership applies from the next
		// closed frame.
		session.PlayerJoined(req.PlayerID)
		authorityFrame = session.AuthorityFrame()
	} else if s.cfg.AutoStartPlayers > 0 {
		s.mu.RLock()
		members := make([]string, 0, len(s.members[req.RoomID]))
		for playerID := range s.members[req.RoomID] {
			members = append(members, playerID)
		}
		s.mu.RUnlock()
		if len(members) >= s.cfg.AutoStartPlayers {
			if err := s.StartRoom(req.RoomID, members); err != nil {
				s.log.Error().Str("room", req.RoomID).Err(err).Msg("auto start failed")
			}
		}
	}

	s.send(client, messages.JoinRoomAccepted{
		RoomID:         req.RoomID,
		PlayerID:       req.PlayerID,
		ReconnectToken: token,
		ServerName:     s.cfg.Name,
		TickRate:       s.cfg.TickRate,
		AuthorityFrame: authorityFrame,
	})
	s.log.Info().
		Str("room", req.RoomID).
		Str("player", req.PlayerID).
		Msg("player joined")
}

func (s *Server) onLeaveRoom(client *router.NetworkClient, req messages.LeaveRoomRequest) {
	s.detach(client, "leave request")
}

func (s *Server) onInput(client *router.NetworkClient, sample messages.InputSample) {
	s.mu.RLock()
	session, ok := s.clients[client]
	s.mu.RUnlock()
	if !ok {
		s.log.Debug().Str("client", client.Id()).Msg("input from client outside any room")
		return
	}

	// The sample's player id is taken from the join handshake, not
	// from the payload: a client can only speak for itself.
	sample.PlayerID = session.playerID
	// Stale and unknown-player rejections are already logged by the
	// session; both are routine under latency.
	_ = s.registry.Submit(session.roomID, sample)
}

func (s *Server) onDisconnect(client *router.NetworkClient, err error) {
	if err != nil {
		s.log.Debug().Err(err).Str("client", client.Id()).Msg("client disconnected with error")
	}
	s.detach(client, "disconnect")
}

func (s *Server) detach(client *router.NetworkClient, reason string) {
	s.mu.Lock()
	session, ok := s.clients[client]
	if ok {
		delete(s.clients, client)
		if room, exists := s.members[session.roomID]; exists {
			delete(room, session.playerID)
			if len(room) == 0 {
				delete(s.members, session.roomID)
			}
		}
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	s.registry.PlayerLeft(session.roomID, session.playerID)
	s.log.Info().
		Str("room", session.roomID).
		Str("player", session.playerID).
		Str("reason", reason).
		Msg("player detached")

	s.mu.RLock()
	_, stillOccupied := s.members[session.roomID]
	s.mu.RUnlock()
	if !stillOccupied {
		if _, running := s.registry.Session(session.roomID); running {
			s.StopRoom(session.roomID, "room empty")
		}
	}
}

func (s *Server) broadcast(roomID string, msg any) {
	s.mu.RLock()
	targets := make([]*router.NetworkClient, 0, len(s.members[roomID]))
	for _, client := range s.members[roomID] {
		targets = append(targets, client)
	}
	s.mu.RUnlock()

	for _, client := range targets {
		s.send(client, msg)
	}
}

func (s *Server) send(client *router.NetworkClient, msg any) {
	if err := client.SendMessage(msg); err != nil {
		s.log.Debug().Err(err).Str("client", client.Id()).Msg("send failed")
	}
}

func (s *Server) sendSyncEnded(roomID string, finalFrame int64, reason string) {
	s.broadcast(roomID, messages.SyncEnded{
		RoomID:     roomID,
		FinalFrame: finalFrame,
		EndedAt:    time.Now().UnixMilli(),
		Reason:     reason,
	})
}
