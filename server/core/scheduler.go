package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/CeeLav/Astrum-sub001/shared/messages"
)

// RoomTickScheduler drives one room's authority frame forward at a
// fixed real-time cadence, independent of how many inputs arrived.
// It owns the monotonically increasing authority frame counter.
type RoomTickScheduler struct {
	mu sync.Mutex

	roomID   string
	interval time.Duration
	agg      *InputAggregator
	log      zerolog.Logger

	// onFrameReady receives every closed frame, in order, exactly once.
	// Fire-and-forget from the scheduler's perspective: delivery
	// reliability belongs to the transport.
	onFrameReady func(messages.FrameInputSet)

	// onFatal is invoked when frame ordering is violated; the room
	// session must abort rather than renumber.
	onFatal func(error)

	authorityFrame int64
	running        bool
	stopCh         chan struct{}
	doneCh         chan struct{}
}

// NewRoomTickScheduler creates a stopped scheduler. onFrameReady must
// be fast; it runs on the tick goroutine.
func NewRoomTickScheduler(roomID string, interval time.Duration, agg *InputAggregator,
	onFrameReady func(messages.FrameInputSet), onFatal func(error), log zerolog.Logger) *RoomTickScheduler {
	return &RoomTickScheduler{
		roomID:       roomID,
		interval:     interval,
		agg:          agg,
		log:          log.With().Str("room", roomID).Logger(),
		onFrameReady: onFrameReady,
		onFatal:      onFatal,
	}
}

// Start launches the tick loop. Starting a running scheduler is a
// no-op with a warning.
func (s *RoomTickScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn().Msg("scheduler already running, start ignored")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	s.log.Info().Dur("interval", s.interval).Msg("tick scheduler started")
	go s.run(stopCh, doneCh)
}

// Stop halts ticking cooperatively: an in-flight tick completes before
// the loop exits. Stopping a stopped scheduler is a no-op. Frame state
// survives until the session object itself is discarded.
func (s *RoomTickScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	doneCh := s.doneCh
	s.mu.Unlock()

	<-doneCh
	s.log.Info().Int64("frame", s.AuthorityFrame()).Msg("tick scheduler stopped")
}

// AuthorityFrame returns the most recent closed frame number.
func (s *RoomTickScheduler) AuthorityFrame() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authorityFrame
}

// ForceAuthorityFrame jumps the authority frame forward, e.g. to
// fast-forward a late joiner or recover from a detected desync. This
// is the only path by which the frame may advance by more than one;
// it never moves backward.
func (s *RoomTickScheduler) ForceAuthorityFrame(frame int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if frame < s.authorityFrame {
		return fmt.Errorf("%w: force-set to %d behind authority %d", ErrFrameOrder, frame, s.authorityFrame)
	}
	if err := s.agg.FastForward(frame); err != nil {
		return err
	}
	s.log.Info().Int64("from", s.authorityFrame).Int64("to", frame).Msg("authority frame force-set")
	s.authorityFrame = frame
	return nil
}

func (s *RoomTickScheduler) run(stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-timer.C:
			start := time.Now()
			set, err := s.tick()
			if err != nil {
				s.log.Error().Err(err).Msg("frame ordering violated, aborting room session")
				if s.onFatal != nil {
					s.onFatal(err)
				}
				return
			}
			if s.onFrameReady != nil {
				s.onFrameReady(set)
			}
			if elapsed := time.Since(start); elapsed > s.interval {
				s.log.Warn().
					Dur("elapsed", elapsed).
					Int64("frame", set.Frame).
					Msg("tick overran its interval")
			}
			// Reschedule from now: a slow tick delays the next frame
			// instead of queueing a catch-up storm.
			timer.Reset(s.interval)
		}
	}
}

// tick closes the next frame under the scheduler lock so a concurrent
// force-set cannot slip between the frame read and the close.
func (s *RoomTickScheduler) tick() (messages.FrameInputSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame := s.authorityFrame + 1
	set, err := s.agg.CloseFrame(frame)
	if err != nil {
		return messages.FrameInputSet{}, err
	}
	s.authorityFrame = frame
	return set, nil
}
