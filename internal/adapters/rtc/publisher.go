package rtc

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/beamlink/beamlink/internal/protocol"
)

// MediaTracks is the publisher's pair of local RTP tracks. One pair is
// shared across every subscriber session; pion fans a static RTP track out
// to all attached peer connections.
type MediaTracks struct {
	Video *webrtc.TrackLocalStaticRTP
	Audio *webrtc.TrackLocalStaticRTP
}

// NewMediaTracks allocates the H264 video and Opus audio tracks.
func NewMediaTracks() (*MediaTracks, error) {
	video, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264},
		"video", "beamlink-h264",
	)
	if err != nil {
		return nil, err
	}
	audio, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "beamlink-opus",
	)
	if err != nil {
		return nil, err
	}
	return &MediaTracks{Video: video, Audio: audio}, nil
}

// PublisherPeer is the capture-device end of one session with one
// subscriber: it carries the shared media tracks, produces the offer, and
// applies the subscriber's answer.
type PublisherPeer struct {
	pc       *webrtc.PeerConnection
	onICE    func(webrtc.ICECandidateInit)
	onClosed func()
}

// NewPublisherPeer allocates a peer connection with the shared tracks
// attached. onICE fires per locally gathered candidate (trickle), onClosed
// once the connection fails or closes.
func NewPublisherPeer(cfg webrtc.Configuration, tracks *MediaTracks, onICE func(webrtc.ICECandidateInit), onClosed func()) (*PublisherPeer, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	p := &PublisherPeer{pc: pc, onICE: onICE, onClosed: onClosed}

	if _, err = pc.AddTrack(tracks.Video); err != nil {
		_ = pc.Close()
		return nil, err
	}
	if _, err = pc.AddTrack(tracks.Audio); err != nil {
		_ = pc.Close()
		return nil, err
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil && p.onICE != nil {
			p.onICE(c.ToJSON())
		}
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc.publisher").Str("peer_state", s.String()).Msg("peer state")
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			if p.onClosed != nil {
				p.onClosed()
			}
		}
	})

	return p, nil
}

// CreateOffer produces and installs the local offer for this session.
func (p *PublisherPeer) CreateOffer() (protocol.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return protocol.SessionDescription{}, err
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return protocol.SessionDescription{}, err
	}
	return protocol.SessionDescription{Type: "offer", SDP: offer.SDP}, nil
}

// ApplyRemoteAnswer installs the subscriber's answer.
func (p *PublisherPeer) ApplyRemoteAnswer(sd protocol.SessionDescription) error {
	return p.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sd.SDP,
	})
}

func (p *PublisherPeer) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(ci)
}

func (p *PublisherPeer) ConnectionState() webrtc.PeerConnectionState {
	return p.pc.ConnectionState()
}

func (p *PublisherPeer) Close() error {
	return p.pc.Close()
}
