package core

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-msgpack/v2/codec"
	"github.com/quasilyte/gdata"
	"github.com/rs/zerolog"

	"github.com/CeeLav/Astrum-sub001/shared/messages"
)

// ReplayRecorder buffers the ordered frame-set sequence per room and
// persists it on flush. A replay is sufficient to re-run the entire
// deterministic simulation offline. Optional consumer: the sync core
// works without one.
type ReplayRecorder struct {
	mu      sync.Mutex
	manager *gdata.Manager
	handle  codec.MsgpackHandle
	frames  map[string][]messages.FrameInputSet
	log     zerolog.Logger
}

// NewReplayRecorder opens the app's data store for replay persistence.
func NewReplayRecorder(appName string, log zerolog.Logger) (*ReplayRecorder, error) {
	m, err := gdata.Open(gdata.Config{AppName: appName})
	if err != nil {
		return nil, fmt.Errorf("open replay storage: %w", err)
	}
	return &ReplayRecorder{
		manager: m,
		frames:  make(map[string][]messages.FrameInputSet),
		log:     log.With().Str("component", "replay").Logger(),
	}, nil
}

// RecordFrame appends a closed frame to the room's replay sequence.
// Frames arrive in order from the scheduler; anything else is dropped
// with an error log since a broken replay is worse than none.
func (r *ReplayRecorder) RecordFrame(set messages.FrameInputSet) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seq := r.frames[set.RoomID]
	if n := len(seq); n > 0 && set.Frame != seq[n-1].Frame+1 {
		r.log.Error().
			Str("room", set.RoomID).
			Int64("frame", set.Frame).
			Int64("expected", seq[n-1].Frame+1).
			Msg("replay frame out of sequence, dropped")
		return
	}
	r.frames[set.RoomID] = append(seq, set)
}

// Flush persists the room's replay and releases its in-memory buffer.
func (r *ReplayRecorder) Flush(roomID string) error {
	r.mu.Lock()
	seq := r.frames[roomID]
	delete(r.frames, roomID)
	r.mu.Unlock()

	if len(seq) == 0 {
		return nil
	}

	var data []byte
	if err := codec.NewEncoderBytes(&data, &r.handle).Encode(seq); err != nil {
		return fmt.Errorf("encode replay for room %s: %w", roomID, err)
	}
	if err := r.manager.SaveItem(replayKey(roomID), data); err != nil {
		return fmt.Errorf("save replay for room %s: %w", roomID, err)
	}
	r.log.Info().Str("room", roomID).Int("frames", len(seq)).Msg("replay flushed")
	return nil
}

// Load reads back a previously flushed replay.
func (r *ReplayRecorder) Load(roomID string) ([]messages.FrameInputSet, error) {
	data, err := r.manager.LoadItem(replayKey(roomID))
	if err != nil {
		return nil, fmt.Errorf("load replay for room %s: %w", roomID, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var seq []messages.FrameInputSet
	if err := codec.NewDecoderBytes(data, &r.handle).Decode(&seq); err != nil {
		return nil, fmt.Errorf("decode replay for room %s: %w", roomID, err)
	}
	return seq, nil
}

// PendingFrames returns how many unflushed frames a room has buffered.
func (r *ReplayRecorder) PendingFrames(roomID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames[roomID])
}

func replayKey(roomID string) string {
	return "replay-" + roomID
}
