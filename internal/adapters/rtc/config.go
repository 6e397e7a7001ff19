// Package rtc wraps pion peer connections for the two ends of a session:
// the subscriber answering offers and the publisher producing them.
package rtc

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pion/webrtc/v4"
)

// DefaultConfig is the STUN-only fallback used when no ICE servers are
// configured or the rtc-config endpoint is unreachable.
func DefaultConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	}
}

// ConfigFromURLs builds a configuration from a flat list of ICE server URLs.
func ConfigFromURLs(urls []string) webrtc.Configuration {
	if len(urls) == 0 {
		return DefaultConfig()
	}
	servers := make([]webrtc.ICEServer, 0, len(urls))
	for _, u := range urls {
		servers = append(servers, webrtc.ICEServer{URLs: []string{u}})
	}
	return webrtc.Configuration{ICEServers: servers}
}

// FetchConfig pulls the ICE server list from the relay's rtc-config
// endpoint. Callers fall back to DefaultConfig on error.
func FetchConfig(url string) (webrtc.Configuration, error) {
	resp, err := http.Get(url)
	if err != nil {
		return webrtc.Configuration{}, fmt.Errorf("rtc-config request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return webrtc.Configuration{}, fmt.Errorf("rtc-config bad status: %s", resp.Status)
	}

	var wire struct {
		ICEServers []webrtc.ICEServer `json:"iceServers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return webrtc.Configuration{}, fmt.Errorf("decode rtc-config: %w", err)
	}
	return webrtc.Configuration{ICEServers: wire.ICEServers}, nil
}
