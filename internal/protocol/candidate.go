package protocol

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
)

// Candidate envelopes arrive in three historical shapes:
//
//	flat:   {"type":"candidate","candidate":"candidate:...","sdpMLineIndex":0}
//	nested: {"type":"candidate","candidate":{"candidate":"...","sdpMLineIndex":0}}
//	bare:   {"type":"candidate","candidate":"candidate:..."}
//
// NormalizeCandidate folds all three into pion's ICECandidateInit. The second
// return is false for anything unrecognized; callers log and drop those.
func NormalizeCandidate(env Envelope) (webrtc.ICECandidateInit, bool) {
	if len(env.Candidate) == 0 {
		return webrtc.ICECandidateInit{}, false
	}

	// nested object shape
	var nested struct {
		Candidate     string  `json:"candidate"`
		SDPMid        *string `json:"sdpMid"`
		SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
	}
	if err := json.Unmarshal(env.Candidate, &nested); err == nil && nested.Candidate != "" {
		return webrtc.ICECandidateInit{
			Candidate:     nested.Candidate,
			SDPMid:        nested.SDPMid,
			SDPMLineIndex: nested.SDPMLineIndex,
		}, true
	}

	// flat or string-only shape: candidate field is a JSON string, index and
	// mid (if any) sit at the envelope's top level
	var s string
	if err := json.Unmarshal(env.Candidate, &s); err == nil && s != "" {
		return webrtc.ICECandidateInit{
			Candidate:     s,
			SDPMid:        env.SDPMid,
			SDPMLineIndex: env.SDPMLineIndex,
		}, true
	}

	return webrtc.ICECandidateInit{}, false
}

// CandidateEnvelope builds an outbound candidate message in the nested shape,
// which every peer of this protocol understands.
func CandidateEnvelope(ci webrtc.ICECandidateInit, subscriberID string) Envelope {
	blob, _ := json.Marshal(struct {
		Candidate     string  `json:"candidate"`
		SDPMid        *string `json:"sdpMid,omitempty"`
		SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
	}{ci.Candidate, ci.SDPMid, ci.SDPMLineIndex})
	return Envelope{
		Type:         TypeCandidate,
		Candidate:    blob,
		SubscriberID: subscriberID,
	}
}
