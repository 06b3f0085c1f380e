package messages

// JoinRoomRequest is sent by a client after connecting to enter a room.
type JoinRoomRequest struct {
	Version        string
	RoomID         string
	PlayerID       string
	ReconnectToken string
}

// JoinRoomAccepted is sent by the server when a join request is accepted.
type JoinRoomAccepted struct {
	RoomID         string
	PlayerID       string
	ReconnectToken string
	ServerName     string
	TickRate       int
	AuthorityFrame int64 // frame the room is currently at; 0 before start
}

// JoinRoomRejected is sent by the server when a join request is rejected.
type JoinRoomRejected struct {
	Reason string
}

// LeaveRoomRequest is sent by a client leaving its room voluntarily.
type LeaveRoomRequest struct {
	RoomID   string
	PlayerID string
}

// SyncStarted tells every room member that frame synchronization has
// begun and at which cadence frames will close.
type SyncStarted struct {
	RoomID        string
	TickRate      int
	IntervalMS    int64
	StartedAt     int64 // Unix ms
	PlayerIDs     []string
	MaxPrediction int64
}

// SyncEnded tells every room member that the room stopped ticking.
type SyncEnded struct {
	RoomID     string
	FinalFrame int64
	EndedAt    int64 // Unix ms
	Reason     string
}

// Inbound is the single client-to-server message union: exactly one
// field is non-nil. One registered type and one dispatch point instead
// of a subscription per message kind.
type Inbound struct {
	Join  *JoinRoomRequest
	Leave *LeaveRoomRequest
	Input *InputSample
}
