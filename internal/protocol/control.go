package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Control payload kinds.
const (
	ControlKey    = "key"
	ControlText   = "text"
	ControlLaunch = "launch"
)

var ErrUnknownControlKind = errors.New("unknown control kind")

// ControlPayload is the remote-control event carried by a control envelope.
// Exactly one of Key/Text/AppID is meaningful depending on Kind.
type ControlPayload struct {
	Kind  string `json:"kind"`
	Key   string `json:"key,omitempty"`
	Text  string `json:"text,omitempty"`
	AppID string `json:"appId,omitempty"`
}

// DecodeControl parses and validates the payload of a control envelope.
func DecodeControl(raw json.RawMessage) (ControlPayload, error) {
	var p ControlPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return ControlPayload{}, fmt.Errorf("decode control payload: %w", err)
	}
	switch p.Kind {
	case ControlKey:
		if p.Key == "" {
			return ControlPayload{}, errors.New("control payload missing 'key'")
		}
	case ControlText:
		// empty text is legal, it types nothing
	case ControlLaunch:
		if p.AppID == "" {
			return ControlPayload{}, errors.New("control payload missing 'appId'")
		}
	default:
		return ControlPayload{}, fmt.Errorf("%w: %q", ErrUnknownControlKind, p.Kind)
	}
	return p, nil
}

// ControlStatus is the publisher's ack for a handled control event.
type ControlStatus struct {
	OK      bool   `json:"ok"`
	Kind    string `json:"kind,omitempty"`
	Handled string `json:"handled,omitempty"`
	Len     int    `json:"len,omitempty"`
	AppID   string `json:"appId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// EncodeControlStatus serializes a status ack into a payload field.
func EncodeControlStatus(s ControlStatus) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
