// Package media feeds locally produced RTP into pion tracks. The encoder
// itself runs out of process (a gst-launch pipeline posting RTP to
// localhost); this package only moves packets.
package media

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// PumpRTP listens on a local UDP addr and forwards RTP packets to track
// until ctx is cancelled. Non-RTP datagrams are ignored.
func PumpRTP(ctx context.Context, addr string, track *webrtc.TrackLocalStaticRTP, mtu int, tag string) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		log.Error().Err(err).Str("module", "media").Str("addr", addr).Msg("resolve UDP addr")
		return
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		log.Error().Err(err).Str("module", "media").Str("addr", addr).Msg("listen UDP")
		return
	}
	defer conn.Close()

	buf := make([]byte, mtu)
	for {
		// short read deadline so ctx cancellation is noticed promptly
		_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))

		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				select {
				case <-ctx.Done():
					log.Info().Str("module", "media").Str("tag", tag).Msg("RTP pump stopped")
					return
				default:
					continue
				}
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Error().Err(err).Str("module", "media").Str("addr", addr).Msg("UDP read")
			return
		}

		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			continue
		}
		if err := track.WriteRTP(&pkt); err != nil {
			log.Error().Err(err).Str("module", "media").Str("tag", tag).Msg("write track")
			return
		}
	}
}
