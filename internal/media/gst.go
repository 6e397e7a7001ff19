package media

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultVideoPipeline builds a gst-launch pipeline that captures from a
// V4L2 device, encodes zero-latency H264 and posts RTP to the given local
// UDP port.
func DefaultVideoPipeline(device, port string) string {
	return "v4l2src device=" + device + " ! image/jpeg,width=1280,height=720,framerate=30/1" +
		" ! queue ! jpegdec ! videoconvert ! video/x-raw,format=I420" +
		" ! x264enc tune=zerolatency speed-preset=veryfast bitrate=2500 key-int-max=30 bframes=0" +
		" ! video/x-h264,profile=baseline ! rtph264pay config-interval=1 pt=96" +
		" ! udpsink host=127.0.0.1 port=" + port
}

// DefaultAudioPipeline builds an ALSA capture to Opus RTP pipeline.
func DefaultAudioPipeline(device, port string) string {
	return "alsasrc device=" + device + " ! queue ! audioconvert ! audioresample" +
		" ! opusenc bitrate=64000 ! rtpopuspay pt=111" +
		" ! udpsink host=127.0.0.1 port=" + port
}

// StartGst launches a gst-launch-1.0 pipeline tied to ctx. Returns nil when
// the process fails to start; the caller keeps running without media.
func StartGst(ctx context.Context, pipeline, tag string) *exec.Cmd {
	args := append([]string{"-e"}, strings.Fields(pipeline)...)
	cmd := exec.CommandContext(ctx, "gst-launch-1.0", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		log.Error().Err(err).Str("module", "media").Str("tag", tag).Msg("start gst-launch")
		return nil
	}
	log.Info().Str("module", "media").Str("tag", tag).Msg("gst-launch started")
	return cmd
}
