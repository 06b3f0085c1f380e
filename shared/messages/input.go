package messages

import (
	"errors"
	"time"
)

// InputPayload carries the raw input state a player sampled for one
// logical frame: a move vector plus one-shot action flags.
type InputPayload struct {
	MoveX  float64
	MoveY  float64
	Attack bool
	Skill1 bool
	Skill2 bool
}

// IsEmpty reports whether the payload carries no input at all.
func (p InputPayload) IsEmpty() bool {
	return p.MoveX == 0 && p.MoveY == 0 && !p.Attack && !p.Skill1 && !p.Skill2
}

// Equal compares two payloads field by field.
func (p InputPayload) Equal(other InputPayload) bool {
	return p == other
}

// WithoutActions returns a copy with the one-shot flags cleared,
// keeping only the movement vector. Used when repeating a stale input
// as a gap-fill default: movement is sticky, actions are not.
func (p InputPayload) WithoutActions() InputPayload {
	p.Attack = false
	p.Skill1 = false
	p.Skill2 = false
	return p
}

// InputSample is one player's input for one logical frame. Immutable
// once created; a player may hold at most one sample per open frame.
type InputSample struct {
	PlayerID  string
	Frame     int64
	Payload   InputPayload
	Timestamp int64 // Unix ms at capture time
}

// NewInputSample builds a sample stamped with the current wall clock.
func NewInputSample(playerID string, frame int64, payload InputPayload) InputSample {
	return InputSample{
		PlayerID:  playerID,
		Frame:     frame,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}

var (
	errNoPlayer     = errors.New("input sample has no player id")
	errInvalidFrame = errors.New("input sample frame must be >= 1")
)

// Validate checks structural validity. Frame numbering starts at 1;
// frame 0 is the pre-game state and never carries input.
func (s InputSample) Validate() error {
	if s.PlayerID == "" {
		return errNoPlayer
	}
	if s.Frame < 1 {
		return errInvalidFrame
	}
	return nil
}
