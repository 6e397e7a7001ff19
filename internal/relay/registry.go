// Package relay implements the signaling relay's connection registry and
// message router. The relay never touches media; it forwards opaque
// offer/answer/candidate blobs and the remote-control envelopes between one
// publisher and any number of subscribers.
package relay

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/beamlink/beamlink/internal/protocol"
)

// Conn is the registry's view of a live peer connection. The transport
// adapter owns the connection; the registry holds a non-owning reference and
// is told about closes via Unregister.
type Conn interface {
	// Send queues an envelope for delivery. Best effort: a full send queue
	// or a closed connection returns an error the caller may ignore.
	Send(protocol.Envelope) error
	// Close tears the connection down with an operator-visible reason.
	Close(reason string)
}

// Registration is the outcome of a successful hello.
type Registration struct {
	Role         protocol.Role
	SubscriberID string
}

type subscriberEntry struct {
	id   string
	conn Conn
}

// Registry tracks at most one publisher and any number of subscribers.
// It is the only shared mutable state in the relay; all access is
// serialized by its mutex.
type Registry struct {
	mu          sync.Mutex
	publisher   Conn
	subscribers map[string]Conn
	seq         uint64
	now         func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		subscribers: make(map[string]Conn),
		now:         time.Now,
	}
}

// Register installs conn under the claimed role and emits peer notifications
// to the opposite role(s). A second publisher evicts the previous holder:
// the old connection gets a rejection notice, then is closed. An unknown
// role changes no state.
func (r *Registry) Register(conn Conn, role protocol.Role) (Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch role {
	case protocol.RolePublisher:
		if prev := r.publisher; prev != nil {
			_ = prev.Send(protocol.ErrorEnvelope("publisher role taken over by a new connection"))
			prev.Close("publisher takeover")
			log.Warn().Str("module", "relay.registry").Msg("evicted previous publisher")
		}
		r.publisher = conn
		for _, sub := range r.subscribers {
			_ = sub.Send(protocol.PeerEvent(protocol.PeerConnected, protocol.RolePublisher, ""))
		}
		log.Info().Str("module", "relay.registry").Msg("publisher registered")
		return Registration{Role: protocol.RolePublisher}, nil

	case protocol.RoleSubscriber:
		r.seq++
		id := fmt.Sprintf("subscriber-%d-%d", r.now().UnixMilli(), r.seq)
		r.subscribers[id] = conn
		if r.publisher != nil {
			_ = r.publisher.Send(protocol.PeerEvent(protocol.PeerConnected, protocol.RoleSubscriber, id))
		}
		log.Info().Str("module", "relay.registry").Str("subscriber_id", id).Msg("subscriber registered")
		return Registration{Role: protocol.RoleSubscriber, SubscriberID: id}, nil

	default:
		return Registration{}, fmt.Errorf("register: %w", protocol.ErrUnknownRole)
	}
}

// Publisher returns the current publisher connection, if any.
func (r *Registry) Publisher() (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.publisher, r.publisher != nil
}

// Subscriber returns the subscriber registered under id, if any.
func (r *Registry) Subscriber(id string) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.subscribers[id]
	return c, ok
}

// Subscribers returns a snapshot of all registered subscribers.
func (r *Registry) Subscribers() []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Conn, 0, len(r.subscribers))
	for _, c := range r.subscribers {
		out = append(out, c)
	}
	return out
}

// Unregister removes conn from whichever slot it occupies and notifies the
// opposite role(s). A connection that is not registered is a no-op, which
// guards against double cleanup on redundant close events.
func (r *Registry) Unregister(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.publisher == conn {
		r.publisher = nil
		for _, sub := range r.subscribers {
			_ = sub.Send(protocol.PeerEvent(protocol.PeerDisconnected, protocol.RolePublisher, ""))
		}
		log.Info().Str("module", "relay.registry").Msg("publisher unregistered")
		return
	}

	for id, c := range r.subscribers {
		if c == conn {
			delete(r.subscribers, id)
			if r.publisher != nil {
				_ = r.publisher.Send(protocol.PeerEvent(protocol.PeerDisconnected, protocol.RoleSubscriber, id))
			}
			log.Info().Str("module", "relay.registry").Str("subscriber_id", id).Msg("subscriber unregistered")
			return
		}
	}
}
