package messages

// FrameInputSet is the closed, gap-free collection of exactly one
// input sample per registered player for a single frame. It is owned
// by the scheduler until broadcast and read-only afterwards.
type FrameInputSet struct {
	RoomID   string
	Frame    int64
	Samples  map[string]InputSample
	ClosedAt int64 // Unix ms when the frame was closed
}

// SampleFor returns the sample for the given player.
func (s FrameInputSet) SampleFor(playerID string) (InputSample, bool) {
	sample, ok := s.Samples[playerID]
	return sample, ok
}

// PlayerCount returns the number of samples in the set.
func (s FrameInputSet) PlayerCount() int {
	return len(s.Samples)
}

// Equal reports whether two sets carry the same frame and the same
// payload for every player. Timestamps are ignored: they differ
// between a locally predicted sample and the server's echo of it.
func (s FrameInputSet) Equal(other FrameInputSet) bool {
	if s.Frame != other.Frame || len(s.Samples) != len(other.Samples) {
		return false
	}
	for id, sample := range s.Samples {
		theirs, ok := other.Samples[id]
		if !ok || !sample.Payload.Equal(theirs.Payload) {
			return false
		}
	}
	return true
}

// CloneWithFrame returns a copy of the set renumbered to the given
// frame. Used when replaying the latest known inputs into predicted
// frames during reconciliation.
func (s FrameInputSet) CloneWithFrame(frame int64) FrameInputSet {
	out := FrameInputSet{
		RoomID:   s.RoomID,
		Frame:    frame,
		Samples:  make(map[string]InputSample, len(s.Samples)),
		ClosedAt: s.ClosedAt,
	}
	for id, sample := range s.Samples {
		sample.Frame = frame
		out.Samples[id] = sample
	}
	return out
}
