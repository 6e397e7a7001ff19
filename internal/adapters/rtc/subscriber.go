package rtc

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/beamlink/beamlink/internal/protocol"
)

// SubscriberPeer is the viewer end of a session: it applies remote offers,
// produces answers, and surfaces received tracks. It satisfies the
// negotiation engine's PeerHandle.
type SubscriberPeer struct {
	pc    *webrtc.PeerConnection
	onICE func(webrtc.ICECandidateInit)
}

// NewSubscriberPeer allocates a peer connection and wires the callbacks.
// onICE fires for every locally gathered candidate (trickle).
func NewSubscriberPeer(cfg webrtc.Configuration, onICE func(webrtc.ICECandidateInit)) (*SubscriberPeer, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	p := &SubscriberPeer{pc: pc, onICE: onICE}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil && p.onICE != nil {
			p.onICE(c.ToJSON())
		}
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc.subscriber").Str("peer_state", s.String()).Msg("peer state")
	})
	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc.subscriber").Str("ice_state", s.String()).Msg("ICE state")
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc.subscriber").
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Msg("remote track")
		// Drain the track so RTCP keeps flowing; rendering is out of scope.
		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := track.Read(buf); err != nil {
					return
				}
			}
		}()
	})

	return p, nil
}

func (p *SubscriberPeer) ApplyRemoteOffer(sd protocol.SessionDescription) error {
	return p.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sd.SDP,
	})
}

func (p *SubscriberPeer) CreateAnswer() (protocol.SessionDescription, error) {
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return protocol.SessionDescription{}, err
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return protocol.SessionDescription{}, err
	}
	return protocol.SessionDescription{Type: "answer", SDP: answer.SDP}, nil
}

func (p *SubscriberPeer) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(ci)
}

func (p *SubscriberPeer) ConnectionState() webrtc.PeerConnectionState {
	return p.pc.ConnectionState()
}

func (p *SubscriberPeer) Close() error {
	return p.pc.Close()
}
