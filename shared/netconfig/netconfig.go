// Package netconfig defines frame-synchronization constants shared
// between client and server. It must stay dependency-free so the
// headless server binary and the client build from the same numbers.
package netconfig

import "time"

const (
	// TickRate is the authoritative frame close rate in frames/second.
	TickRate = 20

	// TickInterval is the real-time spacing between frame closes.
	TickInterval = time.Second / TickRate

	// MaxPredictionAhead caps how many frames the client may simulate
	// past the last authoritative frame before local input stalls.
	MaxPredictionAhead = 5

	// MaxBufferAhead caps how far past the last closed frame the
	// server buffers early inputs; anything further is clamped down.
	// 300 frames is 15 s of input at the default tick rate.
	MaxBufferAhead = 300
)

// DefaultInputPolicy selects how the server fills a player's missing
// input when a frame closes.
type DefaultInputPolicy int

const (
	// RepeatLast re-uses the player's most recent known payload with
	// one-shot action flags cleared: movement stays sticky across a
	// lost packet, attacks and skills never auto-repeat. This is the
	// default policy.
	RepeatLast DefaultInputPolicy = iota

	// Neutral fills gaps with an all-zero payload.
	Neutral
)

func (p DefaultInputPolicy) String() string {
	switch p {
	case RepeatLast:
		return "repeat-last"
	case Neutral:
		return "neutral"
	}
	return "unknown"
}
