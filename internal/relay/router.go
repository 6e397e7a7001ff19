package relay

import (
	"github.com/rs/zerolog/log"

	"github.com/beamlink/beamlink/internal/protocol"
)

// Peer is the router's per-connection state. The transport adapter creates
// one Peer per connection and passes it to every HandleMessage call; the
// router fills in the role and id after a successful hello.
type Peer struct {
	Conn         Conn
	Role         protocol.Role
	SubscriberID string
}

// Router validates that a sender's role may originate a given envelope type
// and delivers it to the right recipient(s) via the registry. Routing misses
// on best-effort forwards (candidates, broadcasts) are silently dropped;
// misses the sender should react to (viewer-ready, control with no
// publisher) come back as error envelopes.
type Router struct {
	reg *Registry
}

func NewRouter(reg *Registry) *Router {
	return &Router{reg: reg}
}

// HandleMessage processes one inbound frame from p. It runs to completion
// before the adapter reads the next frame on that connection, so envelopes
// from a single peer are handled in receipt order.
func (rt *Router) HandleMessage(p *Peer, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "relay.router").Msg("malformed envelope")
		_ = p.Conn.Send(protocol.ErrorEnvelope("invalid message"))
		return
	}

	if env.Type == protocol.TypeHello {
		rt.handleHello(p, env)
		return
	}
	if p.Role == protocol.RoleUnset {
		_ = p.Conn.Send(protocol.ErrorEnvelope("hello required before other messages"))
		return
	}

	switch env.Type {
	case protocol.TypeViewerReady:
		rt.handleViewerReady(p, env)
	case protocol.TypeControl:
		rt.handleControl(p, env)
	case protocol.TypeControlStatus:
		rt.handleControlStatus(p, env)
	case protocol.TypeOffer, protocol.TypeAnswer, protocol.TypeCandidate:
		rt.handleSignaling(p, env)
	default:
		log.Warn().Str("module", "relay.router").Str("type", env.Type).Msg("unknown envelope type")
		_ = p.Conn.Send(protocol.ErrorEnvelope("unknown message type: " + env.Type))
	}
}

// HandleClose removes a closed connection from the registry. Safe to call
// more than once for the same peer.
func (rt *Router) HandleClose(p *Peer) {
	rt.reg.Unregister(p.Conn)
}

func (rt *Router) handleHello(p *Peer, env protocol.Envelope) {
	if p.Role != protocol.RoleUnset {
		_ = p.Conn.Send(protocol.ErrorEnvelope("role already set for this connection"))
		return
	}
	role, err := protocol.ParseRole(env.Role)
	if err != nil {
		_ = p.Conn.Send(protocol.HelloReject(err.Error()))
		return
	}
	reg, err := rt.reg.Register(p.Conn, role)
	if err != nil {
		_ = p.Conn.Send(protocol.HelloReject(err.Error()))
		return
	}
	p.Role = reg.Role
	p.SubscriberID = reg.SubscriberID
	_ = p.Conn.Send(protocol.HelloAck(reg.Role, reg.SubscriberID))
}

func (rt *Router) handleViewerReady(p *Peer, env protocol.Envelope) {
	if p.Role != protocol.RoleSubscriber {
		_ = p.Conn.Send(protocol.ErrorEnvelope("viewer-ready not allowed for " + string(p.Role)))
		return
	}
	pub, ok := rt.reg.Publisher()
	if !ok {
		_ = p.Conn.Send(protocol.ErrorEnvelope("no publisher connected"))
		return
	}
	env.SubscriberID = p.SubscriberID
	env.From = string(protocol.RoleSubscriber)
	_ = pub.Send(env)
}

func (rt *Router) handleControl(p *Peer, env protocol.Envelope) {
	if p.Role != protocol.RoleSubscriber {
		_ = p.Conn.Send(protocol.ErrorEnvelope("control not allowed for " + string(p.Role)))
		return
	}
	pub, ok := rt.reg.Publisher()
	if !ok {
		_ = p.Conn.Send(protocol.ErrorEnvelope("no publisher connected"))
		return
	}
	env.SubscriberID = p.SubscriberID
	env.From = string(protocol.RoleSubscriber)
	_ = pub.Send(env)
}

func (rt *Router) handleControlStatus(p *Peer, env protocol.Envelope) {
	if p.Role != protocol.RolePublisher {
		_ = p.Conn.Send(protocol.ErrorEnvelope("control-status not allowed for " + string(p.Role)))
		return
	}
	rt.toSubscribers(env)
}

func (rt *Router) handleSignaling(p *Peer, env protocol.Envelope) {
	switch p.Role {
	case protocol.RoleSubscriber:
		pub, ok := rt.reg.Publisher()
		if !ok {
			// best-effort forward, the publisher may have just left
			log.Debug().Str("module", "relay.router").Str("type", env.Type).Msg("dropped, no publisher")
			return
		}
		env.SubscriberID = p.SubscriberID
		env.From = string(protocol.RoleSubscriber)
		_ = pub.Send(env)
	case protocol.RolePublisher:
		env.From = string(protocol.RolePublisher)
		rt.toSubscribers(env)
	}
}

// toSubscribers delivers to the subscriber named by the envelope, or to all
// subscribers when no id is present. The broadcast fallback keeps old
// single-subscriber publishers working and is deliberately a multicast, not
// a pick-one.
func (rt *Router) toSubscribers(env protocol.Envelope) {
	if env.SubscriberID != "" {
		sub, ok := rt.reg.Subscriber(env.SubscriberID)
		if !ok {
			log.Debug().Str("module", "relay.router").Str("type", env.Type).
				Str("subscriber_id", env.SubscriberID).Msg("dropped, unknown subscriber")
			return
		}
		_ = sub.Send(env)
		return
	}
	for _, sub := range rt.reg.Subscribers() {
		_ = sub.Send(env)
	}
}
