package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
	"github.com/rs/zerolog"

	"github.com/CeeLav/Astrum-sub001/shared/messages"
)

type ClientState int

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateConnected
	StateJoinedRoom
	StateError
)

// Client manages a WebSocket connection to the sync server.
// All shared fields are protected by mu (router callbacks run on necs
// goroutines).
type Client struct {
	mu sync.RWMutex

	log zerolog.Logger

	state          ClientState
	lastError      error
	roomID         string
	playerID       string
	reconnectToken string
	serverName     string
	tickRate       int
	conn           *websocket.Conn

	// Frame sets are consumed in arrival order; the controller handles
	// duplicates and jumps. Buffer covers a burst after a stall.
	frameCh chan messages.FrameInputSet

	startedCh chan messages.SyncStarted
	endedCh   chan messages.SyncEnded
}

func NewClient(log zerolog.Logger) *Client {
	return &Client{
		log:       log.With().Str("component", "netclient").Logger(),
		state:     StateDisconnected,
		frameCh:   make(chan messages.FrameInputSet, 64),
		startedCh: make(chan messages.SyncStarted, 1),
		endedCh:   make(chan messages.SyncEnded, 1),
	}
}

// Connect dials the server in a background goroutine and initiates the
// room join handshake once the socket is up.
func (c *Client) Connect(address, version, roomID, playerID string) {
	c.mu.Lock()
	c.state = StateConnecting
	c.lastError = nil
	c.roomID = roomID
	c.playerID = playerID
	c.mu.Unlock()

	router.OnConnect(func(_ *router.NetworkClient) {
		c.log.Info().Str("address", address).Msg("connected to sync server")
		c.mu.Lock()
		c.state = StateConnected
		token := c.reconnectToken
		c.mu.Unlock()

		err := c.send(messages.Inbound{Join: &messages.JoinRoomRequest{
			Version:        version,
			RoomID:         roomID,
			PlayerID:       playerID,
			ReconnectToken: token,
		}})
		if err != nil {
			c.setError(fmt.Errorf("failed to send join request: %w", err))
		}
	})

	router.On(func(_ *router.NetworkClient, msg messages.JoinRoomAccepted) {
		c.log.Info().
			Str("room", msg.RoomID).
			Str("server", msg.ServerName).
			Int("tickRate", msg.TickRate).
			Int64("authorityFrame", msg.AuthorityFrame).
			Msg("room join accepted")
		c.mu.Lock()
		c.reconnectToken = msg.ReconnectToken
		c.serverName = msg.ServerName
		c.tickRate = msg.TickRate
		c.state = StateJoinedRoom
		c.mu.Unlock()
	})

	router.On(func(_ *router.NetworkClient, msg messages.JoinRoomRejected) {
		c.setError(fmt.Errorf("join rejected: %s", msg.Reason))
	})

	router.On(func(_ *router.NetworkClient, set messages.FrameInputSet) {
		select {
		case c.frameCh <- set:
		default:
			// A full buffer means the consumer stalled for seconds;
			// dropping here surfaces as an authority jump and the
			// controller resyncs.
			c.log.Warn().Int64("frame", set.Frame).Msg("frame buffer full, set dropped")
		}
	})

	router.On(func(_ *router.NetworkClient, msg messages.SyncStarted) {
		select { // drain stale, push latest
		case <-c.startedCh:
		default:
		}
		c.startedCh <- msg
	})

	router.On(func(_ *router.NetworkClient, msg messages.SyncEnded) {
		select {
		case <-c.endedCh:
		default:
		}
		c.endedCh <- msg
	})

	router.OnDisconnect(func(_ *router.NetworkClient, err error) {
		c.log.Info().Err(err).Msg("disconnected")
		c.mu.Lock()
		if c.state != StateError {
			c.state = StateDisconnected
		}
		c.conn = nil
		c.mu.Unlock()
	})

	router.OnError(func(_ *router.NetworkClient, err error) {
		c.log.Warn().Err(err).Msg("network error")
	})

	go func() {
		transport := transports.NewWsClientTransport("ws://" + address)
		err := transport.Start(func(conn *websocket.Conn) {
			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()
		})
		if err != nil {
			c.setError(fmt.Errorf("connection failed: %w", err))
		}
	}()
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.state = StateDisconnected
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.CloseNow()
	}

	router.ResetRouter()
}

// SendInput uploads one locally sampled input to the server.
func (c *Client) SendInput(sample messages.InputSample) error {
	return c.send(messages.Inbound{Input: &sample})
}

// LeaveRoom tells the server this player is leaving voluntarily.
func (c *Client) LeaveRoom() error {
	c.mu.RLock()
	roomID, playerID := c.roomID, c.playerID
	c.mu.RUnlock()

	return c.send(messages.Inbound{Leave: &messages.LeaveRoomRequest{
		RoomID:   roomID,
		PlayerID: playerID,
	}})
}

func (c *Client) State() ClientState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

func (c *Client) TickRate() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tickRate
}

func (c *Client) ServerName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverName
}

// Frames exposes the ordered stream of authoritative frame sets.
func (c *Client) Frames() <-chan messages.FrameInputSet {
	return c.frameCh
}

// SyncStarted returns the latest start notification, non-blocking.
func (c *Client) SyncStarted() *messages.SyncStarted {
	select {
	case msg := <-c.startedCh:
		return &msg
	default:
		return nil
	}
}

// SyncEnded returns the latest end notification, non-blocking.
func (c *Client) SyncEnded() *messages.SyncEnded {
	select {
	case msg := <-c.endedCh:
		return &msg
	default:
		return nil
	}
}

func (c *Client) send(msg any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	payload, err := router.Serialize(msg)
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}

	return conn.Write(context.Background(), websocket.MessageBinary, payload)
}

func (c *Client) setError(err error) {
	c.log.Error().Err(err).Msg("client error")
	c.mu.Lock()
	c.state = StateError
	c.lastError = err
	c.mu.Unlock()
}
