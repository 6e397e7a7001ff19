package negotiate

import (
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/beamlink/beamlink/internal/protocol"
)

// PeerHandle is the slice of a peer connection the engine drives. The real
// implementation wraps pion; tests substitute a fake.
type PeerHandle interface {
	ApplyRemoteOffer(protocol.SessionDescription) error
	CreateAnswer() (protocol.SessionDescription, error)
	AddICECandidate(webrtc.ICECandidateInit) error
	ConnectionState() webrtc.PeerConnectionState
	Close() error
}

// HandleFactory allocates a fresh peer connection for a new negotiation
// attempt. The engine owns the returned handle exclusively.
type HandleFactory func() (PeerHandle, error)

// Sender delivers envelopes to the relay.
type Sender interface {
	Send(protocol.Envelope) error
}

// Engine is the subscriber-side negotiation state machine. It is driven by
// one goroutine (the signaling read loop); none of its methods are safe for
// concurrent use.
type Engine struct {
	factory HandleFactory
	sender  Sender

	handle        PeerHandle
	remoteApplied bool
	buffer        *CandidateBuffer

	subscriberID string
	offerSeq     uint64
}

func NewEngine(factory HandleFactory, sender Sender) *Engine {
	return &Engine{
		factory: factory,
		sender:  sender,
		buffer:  NewCandidateBuffer(),
	}
}

// SetSubscriberID records the id assigned by the relay so outgoing answers
// and candidates can be tagged for routing. Safe to call after the handle's
// candidate callback is already wired; SubscriberID is read on each send.
func (e *Engine) SetSubscriberID(id string) {
	e.subscriberID = id
}

// SubscriberID returns the relay-assigned id, empty until the hello ack.
func (e *Engine) SubscriberID() string {
	return e.subscriberID
}

// HandleOffer applies an incoming offer, reusing the current handle when it
// is still live and replacing it otherwise. After the remote description is
// applied it drains buffered candidates in arrival order, then produces and
// sends the answer. A failure leaves the engine usable for the next offer.
func (e *Engine) HandleOffer(sd protocol.SessionDescription) error {
	e.offerSeq++
	seq := e.offerSeq

	if !e.reusable() {
		if e.handle != nil {
			// the handle is being discarded, a close error is irrelevant
			if err := e.handle.Close(); err != nil {
				log.Debug().Err(err).Str("module", "negotiate").Msg("close stale handle")
			}
			e.buffer.Clear()
		}
		handle, err := e.factory()
		if err != nil {
			e.handle = nil
			e.remoteApplied = false
			return fmt.Errorf("allocate peer connection: %w", err)
		}
		e.handle = handle
		e.remoteApplied = false
		log.Info().Str("module", "negotiate").Uint64("offer_seq", seq).Msg("new peer connection for offer")
	} else {
		log.Info().Str("module", "negotiate").Uint64("offer_seq", seq).Msg("reusing peer connection for offer")
	}

	if err := e.handle.ApplyRemoteOffer(sd); err != nil {
		return fmt.Errorf("apply remote offer: %w", err)
	}
	e.remoteApplied = true

	for _, err := range e.buffer.Drain(e.handle.AddICECandidate) {
		log.Warn().Err(err).Str("module", "negotiate").Msg("buffered candidate rejected")
	}

	answer, err := e.handle.CreateAnswer()
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	return e.sender.Send(protocol.Envelope{
		Type:         protocol.TypeAnswer,
		SDP:          protocol.EncodeSDP(answer),
		SubscriberID: e.subscriberID,
	})
}

// HandleCandidate applies an incoming remote candidate immediately when the
// current handle has its remote description, and buffers it otherwise.
// Candidates may arrive before, during, or after offer application in any
// order; none are dropped and none attach to a superseded handle.
func (e *Engine) HandleCandidate(ci webrtc.ICECandidateInit) {
	if e.handle != nil && e.remoteApplied {
		if err := e.handle.AddICECandidate(ci); err != nil {
			log.Warn().Err(err).Str("module", "negotiate").Msg("candidate rejected")
		}
		return
	}
	e.buffer.Add(ci)
	log.Debug().Str("module", "negotiate").Int("buffered", e.buffer.Len()).Msg("candidate buffered")
}

// SendLocalCandidate forwards a locally gathered candidate to the relay,
// tagged with the subscriber id when already assigned.
func (e *Engine) SendLocalCandidate(ci webrtc.ICECandidateInit) {
	if err := e.sender.Send(protocol.CandidateEnvelope(ci, e.subscriberID)); err != nil {
		log.Warn().Err(err).Str("module", "negotiate").Msg("send local candidate")
	}
}

// Buffered reports how many candidates are waiting for the next offer apply.
func (e *Engine) Buffered() int {
	return e.buffer.Len()
}

// Close tears down the current handle, if any.
func (e *Engine) Close() {
	if e.handle != nil {
		if err := e.handle.Close(); err != nil {
			log.Debug().Err(err).Str("module", "negotiate").Msg("close handle")
		}
		e.handle = nil
	}
	e.remoteApplied = false
	e.buffer.Clear()
}

// reusable reports whether the current handle can take another offer:
// it must exist and be neither closed nor failed.
func (e *Engine) reusable() bool {
	if e.handle == nil {
		return false
	}
	switch e.handle.ConnectionState() {
	case webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateFailed:
		return false
	default:
		return true
	}
}
