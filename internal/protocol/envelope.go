// Package protocol defines the signaling envelopes exchanged between the
// relay and its peers. Envelopes are a pure data contract: the relay only
// reads the routing fields and never inspects the opaque SDP/candidate blobs.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Role of a relay peer, claimed once with the hello envelope and immutable
// for the lifetime of that connection.
type Role string

const (
	RoleUnset      Role = ""
	RolePublisher  Role = "publisher"
	RoleSubscriber Role = "subscriber"
)

var ErrUnknownRole = errors.New("unknown role")

// ParseRole validates a role string from a hello envelope.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RolePublisher, RoleSubscriber:
		return Role(s), nil
	default:
		return RoleUnset, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// Envelope types.
const (
	TypeHello         = "hello"
	TypePeer          = "peer"
	TypeViewerReady   = "viewer-ready"
	TypeOffer         = "offer"
	TypeAnswer        = "answer"
	TypeCandidate     = "candidate"
	TypeControl       = "control"
	TypeControlStatus = "control-status"
	TypeError         = "error"
	TypeInfo          = "info"
)

// Peer events carried by TypePeer envelopes.
const (
	PeerConnected    = "connected"
	PeerDisconnected = "disconnected"
)

// Envelope is a single signaling message, one JSON object per transport
// frame. Fields outside the routing metadata stay as raw JSON so the relay
// forwards them byte-for-byte.
type Envelope struct {
	Type string `json:"type"`

	// hello / hello ack
	Role  string `json:"role,omitempty"`
	OK    *bool  `json:"ok,omitempty"`
	Error string `json:"error,omitempty"`

	// peer notifications
	Event string `json:"event,omitempty"`

	// routing metadata, added by the relay where noted in the envelope table
	SubscriberID string `json:"subscriberId,omitempty"`
	From         string `json:"from,omitempty"`

	// opaque payloads
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`

	// flat candidate shape carries these at the top level
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`

	Message string `json:"message,omitempty"`
}

// Decode parses one wire frame. A frame that is not a JSON object with a
// type tag is a protocol error reported to the sender.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("invalid json: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, errors.New("missing type")
	}
	return env, nil
}

// Encode serializes an envelope to a wire frame.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// HelloAck builds the relay's reply to a successful hello.
func HelloAck(role Role, subscriberID string) Envelope {
	ok := true
	return Envelope{
		Type:         TypeHello,
		OK:           &ok,
		Role:         string(role),
		SubscriberID: subscriberID,
	}
}

// HelloReject builds the relay's reply to a failed hello.
func HelloReject(reason string) Envelope {
	ok := false
	return Envelope{Type: TypeHello, OK: &ok, Error: reason}
}

// ErrorEnvelope builds an error report to a single peer.
func ErrorEnvelope(reason string) Envelope {
	return Envelope{Type: TypeError, Error: reason}
}

// InfoEnvelope builds an informational notice to a single peer.
func InfoEnvelope(message string) Envelope {
	return Envelope{Type: TypeInfo, Message: message}
}

// PeerEvent builds a peer connect/disconnect notification.
func PeerEvent(event string, role Role, subscriberID string) Envelope {
	return Envelope{
		Type:         TypePeer,
		Event:        event,
		Role:         string(role),
		SubscriberID: subscriberID,
	}
}

// SessionDescription is the wire form of an offer/answer SDP blob.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// DecodeSDP parses the sdp field of an offer or answer envelope.
func DecodeSDP(raw json.RawMessage) (SessionDescription, error) {
	var sd SessionDescription
	if err := json.Unmarshal(raw, &sd); err != nil {
		return SessionDescription{}, fmt.Errorf("decode sdp: %w", err)
	}
	if sd.SDP == "" {
		return SessionDescription{}, errors.New("sdp missing")
	}
	return sd, nil
}

// EncodeSDP serializes a session description into the sdp field.
func EncodeSDP(sd SessionDescription) json.RawMessage {
	b, _ := json.Marshal(sd)
	return b
}
