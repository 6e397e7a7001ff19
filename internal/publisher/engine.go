// Package publisher drives the capture-device side of the protocol: it
// answers remote-control events against the device and runs one outbound
// media session per subscriber, producing offers and applying answers.
package publisher

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/beamlink/beamlink/internal/negotiate"
	"github.com/beamlink/beamlink/internal/protocol"
)

// Controller executes remote-control events on the device. The Roku ECP
// client satisfies this; tests substitute a fake.
type Controller interface {
	Key(ctx context.Context, key string) error
	Text(ctx context.Context, text string) error
	Launch(ctx context.Context, appID string) error
}

// PeerSession is one media session with one subscriber.
type PeerSession interface {
	CreateOffer() (protocol.SessionDescription, error)
	ApplyRemoteAnswer(protocol.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	Close() error
}

// SessionFactory allocates a peer session for a subscriber. The factory is
// responsible for wiring locally gathered candidates back to the relay,
// tagged with subscriberID.
type SessionFactory func(subscriberID string) (PeerSession, error)

// Sender delivers envelopes to the relay.
type Sender interface {
	Send(protocol.Envelope) error
}

type session struct {
	peer          PeerSession
	answerApplied bool
	pending       *negotiate.CandidateBuffer
}

// Engine handles all envelopes the relay forwards to the publisher. Driven
// by the signaling read loop only; not safe for concurrent use.
type Engine struct {
	sender     Sender
	control    Controller
	newSession SessionFactory

	sessions map[string]*session
}

func NewEngine(sender Sender, control Controller, factory SessionFactory) *Engine {
	return &Engine{
		sender:     sender,
		control:    control,
		newSession: factory,
		sessions:   make(map[string]*session),
	}
}

// HandleEnvelope dispatches one envelope from the relay.
func (e *Engine) HandleEnvelope(ctx context.Context, env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeHello:
		if env.OK != nil && !*env.OK {
			log.Error().Str("module", "publisher").Str("reason", env.Error).Msg("hello rejected")
			return
		}
		log.Info().Str("module", "publisher").Msg("registered with relay")
	case protocol.TypePeer:
		e.handlePeerEvent(env)
	case protocol.TypeViewerReady:
		e.handleViewerReady(env)
	case protocol.TypeAnswer:
		e.handleAnswer(env)
	case protocol.TypeCandidate:
		e.handleCandidate(env)
	case protocol.TypeControl:
		e.handleControl(ctx, env)
	case protocol.TypeError:
		log.Warn().Str("module", "publisher").Str("error", env.Error).Msg("relay error")
	case protocol.TypeInfo:
		log.Info().Str("module", "publisher").Str("info", env.Message).Msg("relay info")
	default:
		log.Debug().Str("module", "publisher").Str("type", env.Type).Msg("ignoring envelope")
	}
}

// Close tears down every open session.
func (e *Engine) Close() {
	for id, s := range e.sessions {
		if err := s.peer.Close(); err != nil {
			log.Debug().Err(err).Str("module", "publisher").Str("subscriber_id", id).Msg("close session")
		}
		delete(e.sessions, id)
	}
}

// Sessions reports the number of live subscriber sessions.
func (e *Engine) Sessions() int {
	return len(e.sessions)
}

func (e *Engine) handlePeerEvent(env protocol.Envelope) {
	log.Info().
		Str("module", "publisher").
		Str("event", env.Event).
		Str("role", env.Role).
		Str("subscriber_id", env.SubscriberID).
		Msg("peer event")
	if env.Event == protocol.PeerDisconnected && env.Role == string(protocol.RoleSubscriber) {
		e.dropSession(env.SubscriberID)
	}
}

// handleViewerReady starts (or restarts) the media session for the
// announcing subscriber and sends the offer tagged with its id.
func (e *Engine) handleViewerReady(env protocol.Envelope) {
	id := env.SubscriberID
	if id == "" {
		log.Warn().Str("module", "publisher").Msg("viewer-ready without subscriber id")
		return
	}
	e.dropSession(id)

	peer, err := e.newSession(id)
	if err != nil {
		log.Error().Err(err).Str("module", "publisher").Str("subscriber_id", id).Msg("allocate session")
		return
	}
	s := &session{peer: peer, pending: negotiate.NewCandidateBuffer()}
	e.sessions[id] = s

	offer, err := peer.CreateOffer()
	if err != nil {
		log.Error().Err(err).Str("module", "publisher").Str("subscriber_id", id).Msg("create offer")
		e.dropSession(id)
		return
	}
	err = e.sender.Send(protocol.Envelope{
		Type:         protocol.TypeOffer,
		SDP:          protocol.EncodeSDP(offer),
		SubscriberID: id,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "publisher").Str("subscriber_id", id).Msg("send offer")
		return
	}
	log.Info().Str("module", "publisher").Str("subscriber_id", id).Msg("offer sent")
}

func (e *Engine) handleAnswer(env protocol.Envelope) {
	s, id, ok := e.sessionFor(env.SubscriberID)
	if !ok {
		log.Warn().Str("module", "publisher").Str("subscriber_id", env.SubscriberID).Msg("answer for unknown session")
		return
	}
	sd, err := protocol.DecodeSDP(env.SDP)
	if err != nil {
		log.Warn().Err(err).Str("module", "publisher").Str("subscriber_id", id).Msg("bad answer sdp")
		return
	}
	if err := s.peer.ApplyRemoteAnswer(sd); err != nil {
		log.Error().Err(err).Str("module", "publisher").Str("subscriber_id", id).Msg("apply answer")
		return
	}
	s.answerApplied = true
	for _, err := range s.pending.Drain(s.peer.AddICECandidate) {
		log.Warn().Err(err).Str("module", "publisher").Str("subscriber_id", id).Msg("buffered candidate rejected")
	}
	log.Info().Str("module", "publisher").Str("subscriber_id", id).Msg("answer applied")
}

// handleCandidate applies a subscriber's candidate once the answer is in
// place, and buffers it until then. Candidates legally race the answer.
func (e *Engine) handleCandidate(env protocol.Envelope) {
	s, id, ok := e.sessionFor(env.SubscriberID)
	if !ok {
		log.Debug().Str("module", "publisher").Str("subscriber_id", env.SubscriberID).Msg("candidate for unknown session")
		return
	}
	ci, ok := protocol.NormalizeCandidate(env)
	if !ok {
		log.Warn().Str("module", "publisher").Str("subscriber_id", id).Msg("unrecognized candidate shape")
		return
	}
	if !s.answerApplied {
		s.pending.Add(ci)
		return
	}
	if err := s.peer.AddICECandidate(ci); err != nil {
		log.Warn().Err(err).Str("module", "publisher").Str("subscriber_id", id).Msg("candidate rejected")
	}
}

func (e *Engine) handleControl(ctx context.Context, env protocol.Envelope) {
	status := e.execControl(ctx, env)
	err := e.sender.Send(protocol.Envelope{
		Type:         protocol.TypeControlStatus,
		Payload:      protocol.EncodeControlStatus(status),
		SubscriberID: env.SubscriberID,
	})
	if err != nil {
		log.Warn().Err(err).Str("module", "publisher").Msg("send control-status")
	}
}

func (e *Engine) execControl(ctx context.Context, env protocol.Envelope) protocol.ControlStatus {
	p, err := protocol.DecodeControl(env.Payload)
	if err != nil {
		return protocol.ControlStatus{OK: false, Error: err.Error()}
	}
	switch p.Kind {
	case protocol.ControlKey:
		if err := e.control.Key(ctx, p.Key); err != nil {
			return protocol.ControlStatus{OK: false, Kind: p.Kind, Error: err.Error()}
		}
		return protocol.ControlStatus{OK: true, Kind: p.Kind, Handled: p.Key}
	case protocol.ControlText:
		if err := e.control.Text(ctx, p.Text); err != nil {
			return protocol.ControlStatus{OK: false, Kind: p.Kind, Error: err.Error()}
		}
		return protocol.ControlStatus{OK: true, Kind: p.Kind, Len: len(p.Text)}
	case protocol.ControlLaunch:
		if err := e.control.Launch(ctx, p.AppID); err != nil {
			return protocol.ControlStatus{OK: false, Kind: p.Kind, Error: err.Error()}
		}
		return protocol.ControlStatus{OK: true, Kind: p.Kind, AppID: p.AppID}
	default:
		return protocol.ControlStatus{OK: false, Error: fmt.Sprintf("unknown control kind %q", p.Kind)}
	}
}

// sessionFor resolves an envelope to a session. An envelope without a
// subscriber id falls back to the sole open session, matching the relay's
// single-subscriber broadcast path.
func (e *Engine) sessionFor(id string) (*session, string, bool) {
	if id != "" {
		s, ok := e.sessions[id]
		return s, id, ok
	}
	if len(e.sessions) == 1 {
		for soleID, s := range e.sessions {
			return s, soleID, true
		}
	}
	return nil, "", false
}

func (e *Engine) dropSession(id string) {
	s, ok := e.sessions[id]
	if !ok {
		return
	}
	if err := s.peer.Close(); err != nil {
		log.Debug().Err(err).Str("module", "publisher").Str("subscriber_id", id).Msg("close session")
	}
	delete(e.sessions, id)
	log.Info().Str("module", "publisher").Str("subscriber_id", id).Msg("session dropped")
}
