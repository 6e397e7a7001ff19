package protocol

import (
	"encoding/json"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

func webrtcInit(cand string, mid *string, idx *uint16) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: cand, SDPMid: mid, SDPMLineIndex: idx}
}

func decodeT(t *testing.T, raw string) Envelope {
	t.Helper()
	env, err := Decode([]byte(raw))
	require.NoError(t, err)
	return env
}

func TestNormalizeCandidate_NestedShape(t *testing.T) {
	env := decodeT(t, `{"type":"candidate","candidate":{"candidate":"candidate:1 1 udp 2122 192.168.1.2 50000 typ host","sdpMLineIndex":0,"sdpMid":"0"}}`)

	ci, ok := NormalizeCandidate(env)
	require.True(t, ok)
	require.Equal(t, "candidate:1 1 udp 2122 192.168.1.2 50000 typ host", ci.Candidate)
	require.NotNil(t, ci.SDPMid)
	require.Equal(t, "0", *ci.SDPMid)
	require.NotNil(t, ci.SDPMLineIndex)
	require.Equal(t, uint16(0), *ci.SDPMLineIndex)
}

func TestNormalizeCandidate_FlatShape(t *testing.T) {
	env := decodeT(t, `{"type":"candidate","candidate":"candidate:2 1 udp 1686 1.2.3.4 50001 typ srflx","sdpMLineIndex":1}`)

	ci, ok := NormalizeCandidate(env)
	require.True(t, ok)
	require.Equal(t, "candidate:2 1 udp 1686 1.2.3.4 50001 typ srflx", ci.Candidate)
	require.Nil(t, ci.SDPMid)
	require.NotNil(t, ci.SDPMLineIndex)
	require.Equal(t, uint16(1), *ci.SDPMLineIndex)
}

func TestNormalizeCandidate_StringOnly(t *testing.T) {
	env := decodeT(t, `{"type":"candidate","candidate":"candidate:3 1 tcp 1010 10.0.0.1 9 typ host"}`)

	ci, ok := NormalizeCandidate(env)
	require.True(t, ok)
	require.Equal(t, "candidate:3 1 tcp 1010 10.0.0.1 9 typ host", ci.Candidate)
	require.Nil(t, ci.SDPMid)
	require.Nil(t, ci.SDPMLineIndex)
}

func TestNormalizeCandidate_Unrecognized(t *testing.T) {
	for name, raw := range map[string]string{
		"missing":      `{"type":"candidate"}`,
		"number":       `{"type":"candidate","candidate":42}`,
		"empty string": `{"type":"candidate","candidate":""}`,
		"empty object": `{"type":"candidate","candidate":{}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, ok := NormalizeCandidate(decodeT(t, raw))
			require.False(t, ok)
		})
	}
}

func TestCandidateEnvelope_RoundTrip(t *testing.T) {
	mid := "0"
	idx := uint16(0)
	out := CandidateEnvelope(webrtcInit("candidate:9 1 udp 1 1.1.1.1 1 typ host", &mid, &idx), "subscriber-1-1")
	require.Equal(t, TypeCandidate, out.Type)
	require.Equal(t, "subscriber-1-1", out.SubscriberID)

	// a peer that re-decodes the wire form gets the same candidate back
	data, err := out.Encode()
	require.NoError(t, err)
	env, err := Decode(data)
	require.NoError(t, err)
	ci, ok := NormalizeCandidate(env)
	require.True(t, ok)
	require.Equal(t, "candidate:9 1 udp 1 1.1.1.1 1 typ host", ci.Candidate)
	require.Equal(t, "0", *ci.SDPMid)
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte("not json"))
	require.Error(t, err)

	_, err = Decode([]byte(`{"role":"publisher"}`))
	require.Error(t, err, "missing type tag")
}

func TestDecodeSDP(t *testing.T) {
	raw := json.RawMessage(`{"type":"offer","sdp":"v=0\r\n"}`)
	sd, err := DecodeSDP(raw)
	require.NoError(t, err)
	require.Equal(t, "offer", sd.Type)
	require.Equal(t, "v=0\r\n", sd.SDP)

	_, err = DecodeSDP(json.RawMessage(`{"type":"offer"}`))
	require.Error(t, err)
}
