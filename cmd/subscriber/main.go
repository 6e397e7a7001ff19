package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/beamlink/beamlink/internal/adapters/rtc"
	"github.com/beamlink/beamlink/internal/negotiate"
	"github.com/beamlink/beamlink/internal/protocol"
	"github.com/beamlink/beamlink/internal/signalclient"
)

func main() {
	signaling := flag.String("signaling", "", "relay signaling endpoint, e.g. ws://host:8080/api/ws/signal")
	rtcConfigURL := flag.String("rtc-config", "", "optional http endpoint serving {iceServers:[...]}")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if *signaling == "" {
		log.Fatal().Msg("--signaling is required")
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

	signalclient.RunLoop(ctx, *signaling, time.Second, func(ctx context.Context, client *signalclient.Client) error {
		var engine *negotiate.Engine
		factory := func() (negotiate.PeerHandle, error) {
			return rtc.NewSubscriberPeer(rtcCfg, func(ci webrtc.ICECandidateInit) {
				engine.SendLocalCandidate(ci)
			})
		}
		engine = negotiate.NewEngine(factory, client)
		defer engine.Close()

		if err := client.Send(protocol.Envelope{
			Type: protocol.TypeHello,
			Role: string(protocol.RoleSubscriber),
		}); err != nil {
			return err
		}
		log.Info().Msg("sent hello as subscriber")

		go controlReader(ctx, client)

		for {
			env, err := client.Read()
			if err != nil {
				return err
			}
			handleEnvelope(client, engine, env)
		}
	})

	log.Info().Msg("subscriber stopped")
}

func handleEnvelope(client *signalclient.Client, engine *negotiate.Engine, env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeHello:
		if env.OK != nil && !*env.OK {
			log.Error().Str("reason", env.Error).Msg("hello rejected")
			return
		}
		engine.SetSubscriberID(env.SubscriberID)
		log.Info().Str("subscriber_id", env.SubscriberID).Msg("registered with relay")
		if err := client.Send(protocol.Envelope{Type: protocol.TypeViewerReady}); err != nil {
			log.Warn().Err(err).Msg("send viewer-ready")
		}
	case protocol.TypePeer:
		log.Info().Str("event", env.Event).Str("role", env.Role).Msg("peer event")
		// A publisher that (re)connects will send a fresh offer after our
		// viewer-ready; announce readiness again.
		if env.Event == protocol.PeerConnected && env.Role == string(protocol.RolePublisher) {
			if err := client.Send(protocol.Envelope{Type: protocol.TypeViewerReady}); err != nil {
				log.Warn().Err(err).Msg("send viewer-ready")
			}
		}
	case protocol.TypeOffer:
		sd, err := protocol.DecodeSDP(env.SDP)
		if err != nil {
			log.Warn().Err(err).Msg("bad offer sdp")
			return
		}
		if err := engine.HandleOffer(sd); err != nil {
			log.Error().Err(err).Msg("handle offer")
		}
	case protocol.TypeCandidate:
		ci, ok := protocol.NormalizeCandidate(env)
		if !ok {
			log.Warn().Msg("unrecognized candidate shape")
			return
		}
		engine.HandleCandidate(ci)
	case protocol.TypeControlStatus:
		if len(env.Payload) > 0 {
			log.Info().RawJSON("payload", env.Payload).Msg("control status")
		} else {
			log.Info().Msg("control status")
		}
	case protocol.TypeError:
		log.Warn().Str("error", env.Error).Msg("relay error")
	case protocol.TypeInfo:
		log.Info().Str("info", env.Message).Msg("relay info")
	default:
		log.Debug().Str("type", env.Type).Msg("ignoring envelope")
	}
}

// controlReader turns stdin lines into control envelopes:
//
//	key UP | text netflix | launch 12
func controlReader(ctx context.Context, client *signalclient.Client) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		payload, ok := parseControlLine(line)
		if !ok {
			log.Warn().Str("line", line).Msg("unrecognized control command")
			continue
		}
		raw, _ := json.Marshal(payload)
		if err := client.Send(protocol.Envelope{Type: protocol.TypeControl, Payload: raw}); err != nil {
			log.Warn().Err(err).Msg("send control")
			return
		}
	}
}

func parseControlLine(line string) (protocol.ControlPayload, bool) {
	verb, rest, _ := strings.Cut(line, " ")
	switch verb {
	case "key":
		if rest == "" {
			return protocol.ControlPayload{}, false
		}
		return protocol.ControlPayload{Kind: protocol.ControlKey, Key: rest}, true
	case "text":
		return protocol.ControlPayload{Kind: protocol.ControlText, Text: rest}, true
	case "launch":
		if rest == "" {
			return protocol.ControlPayload{}, false
		}
		return protocol.ControlPayload{Kind: protocol.ControlLaunch, AppID: rest}, true
	default:
		return protocol.ControlPayload{}, false
	}
}
