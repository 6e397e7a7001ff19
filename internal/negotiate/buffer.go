// Package negotiate owns the subscriber-side peer connection lifecycle:
// deciding whether an incoming offer can reuse the current handle, and
// holding ICE candidates that arrive before they can be applied.
package negotiate

import "github.com/pion/webrtc/v4"

// CandidateBuffer is an ordered holding area for ICE candidates that arrive
// before the current session's remote description is applied. It belongs to
// exactly one negotiation attempt; the engine clears it whenever the handle
// is replaced so stale candidates never attach to a new handle.
type CandidateBuffer struct {
	pending []webrtc.ICECandidateInit
}

func NewCandidateBuffer() *CandidateBuffer {
	return &CandidateBuffer{}
}

// Add appends a candidate in arrival order.
func (b *CandidateBuffer) Add(ci webrtc.ICECandidateInit) {
	b.pending = append(b.pending, ci)
}

// Len reports the number of buffered candidates.
func (b *CandidateBuffer) Len() int {
	return len(b.pending)
}

// Drain applies every buffered candidate in arrival order and empties the
// buffer. The buffer is emptied before apply runs, so draining twice never
// double-applies and draining an empty buffer is a no-op. Apply errors are
// returned to the caller per candidate via the callback's error; draining
// continues past failures.
func (b *CandidateBuffer) Drain(apply func(webrtc.ICECandidateInit) error) []error {
	pending := b.pending
	b.pending = nil

	var errs []error
	for _, ci := range pending {
		if err := apply(ci); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Clear discards all buffered candidates.
func (b *CandidateBuffer) Clear() {
	b.pending = nil
}
