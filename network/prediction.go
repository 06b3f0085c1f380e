package network

import (
	"github.com/CeeLav/Astrum-sub001/shared/messages"
)

const pendingBufferSize = 64

// PendingInputBuffer is a ring buffer of locally sampled inputs that
// the server has not yet confirmed, keyed by logical frame. Capacity
// comfortably exceeds the prediction window; a slot is only ever
// overwritten after its frame has long been confirmed or discarded.
type PendingInputBuffer struct {
	history [pendingBufferSize]messages.InputSample
	count   int
}

// Store saves a pending sample under its frame.
func (b *PendingInputBuffer) Store(sample messages.InputSample) {
	idx := sample.Frame % pendingBufferSize
	if b.history[idx].PlayerID == "" {
		b.count++
	}
	b.history[idx] = sample
}

// Get retrieves the pending sample for a frame. Returns false if none
// is stored or the slot has been reused for a different frame.
func (b *PendingInputBuffer) Get(frame int64) (messages.InputSample, bool) {
	sample := b.history[frame%pendingBufferSize]
	if sample.PlayerID == "" || sample.Frame != frame {
		return messages.InputSample{}, false
	}
	return sample, true
}

// Confirm drops the pending sample for a frame once it has become
// authoritative.
func (b *PendingInputBuffer) Confirm(frame int64) {
	idx := frame % pendingBufferSize
	if b.history[idx].PlayerID != "" && b.history[idx].Frame == frame {
		b.history[idx] = messages.InputSample{}
		b.count--
	}
}

// Range returns the stored samples for frames in (from, to], in frame
// order, skipping gaps.
func (b *PendingInputBuffer) Range(from, to int64) []messages.InputSample {
	var out []messages.InputSample
	for frame := from + 1; frame <= to; frame++ {
		if sample, ok := b.Get(frame); ok {
			out = append(out, sample)
		}
	}
	return out
}

// Len returns the number of buffered samples.
func (b *PendingInputBuffer) Len() int {
	return b.count
}

// Clear discards every pending sample, e.g. on a hard resync.
func (b *PendingInputBuffer) Clear() {
	b.history = [pendingBufferSize]messages.InputSample{}
	b.count = 0
}
