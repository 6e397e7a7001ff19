package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/beamlink/beamlink/internal/adapters/rtc"
	"github.com/beamlink/beamlink/internal/media"
	"github.com/beamlink/beamlink/internal/protocol"
	"github.com/beamlink/beamlink/internal/publisher"
	"github.com/beamlink/beamlink/internal/roku"
	"github.com/beamlink/beamlink/internal/signalclient"
)

var errControlOnly = errors.New("media disabled, control-only publisher")

func main() {
	signaling := flag.String("signaling", "", "relay signaling endpoint, e.g. ws://host:8080/api/ws/signal")
	rokuIP := flag.String("roku-ip", "", "Roku LAN IP (e.g. 192.168.1.50)")
	rokuPort := flag.Int("roku-port", 8060, "Roku ECP port")
	rtcConfigURL := flag.String("rtc-config", "", "optional http endpoint serving {iceServers:[...]}")
	videoDev := flag.String("video-device", "/dev/video0", "V4L2 capture device")
	audioDev := flag.String("audio-device", "", "ALSA device like hw:2,0 (optional)")
	videoPort := flag.String("video-port", "5004", "local UDP port for video RTP")
	audioPort := flag.String("audio-port", "5006", "local UDP port for audio RTP")
	noMedia := flag.Bool("no-media", false, "control only, skip gstreamer and media tracks")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if *signaling == "" || *rokuIP == "" {
		log.Fatal().Msg("--signaling and --roku-ip are required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rtcCfg := rtc.DefaultConfig()
	if *rtcConfigURL != "" {
		if cfg, err := rtc.FetchConfig(*rtcConfigURL); err != nil {
			log.Warn().Err(err).Msg("rtc-config fetch failed, falling back to STUN only")
		} else {
			rtcCfg = cfg
		}
	}

	control := roku.NewClient(*rokuIP, *rokuPort)

	var tracks *rtc.MediaTracks
	if !*noMedia {
		var err error
		tracks, err = rtc.NewMediaTracks()
		if err != nil {
			log.Fatal().Err(err).Msg("allocate media tracks")
		}

		videoPipe := getenv("GST_VIDEO_PIPELINE", media.DefaultVideoPipeline(*videoDev, *videoPort))
		media.StartGst(ctx, videoPipe, "video")
		go media.PumpRTP(ctx, "127.0.0.1:"+*videoPort, tracks.Video, 1400, "video")

		if *audioDev != "" {
			audioPipe := getenv("GST_AUDIO_PIPELINE", media.DefaultAudioPipeline(*audioDev, *audioPort))
			media.StartGst(ctx, audioPipe, "audio")
			go media.PumpRTP(ctx, "127.0.0.1:"+*audioPort, tracks.Audio, 1200, "audio")
		}
	}

	signalclient.RunLoop(ctx, *signaling, time.Second, func(ctx context.Context, client *signalclient.Client) error {
		factory := func(subscriberID string) (publisher.PeerSession, error) {
			if tracks == nil {
				return nil, errControlOnly
			}
			return rtc.NewPublisherPeer(rtcCfg, tracks,
				func(ci webrtc.ICECandidateInit) {
					_ = client.Send(protocol.CandidateEnvelope(ci, subscriberID))
				},
				nil,
			)
		}
		engine := publisher.NewEngine(client, control, factory)
		defer engine.Close()

		if err := client.Send(protocol.Envelope{
			Type: protocol.TypeHello,
			Role: string(protocol.RolePublisher),
		}); err != nil {
			return err
		}
		log.Info().Msg("sent hello as publisher")

		for {
			env, err := client.Read()
			if err != nil {
				return err
			}
			engine.HandleEnvelope(ctx, env)
		}
	})

	log.Info().Msg("publisher stopped")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
