package negotiate

import (
	"errors"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

func cand(s string) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: s}
}

func TestCandidateBuffer_DrainsInArrivalOrder(t *testing.T) {
	b := NewCandidateBuffer()
	b.Add(cand("first"))
	b.Add(cand("second"))
	b.Add(cand("third"))

	var applied []string
	errs := b.Drain(func(ci webrtc.ICECandidateInit) error {
		applied = append(applied, ci.Candidate)
		return nil
	})
	require.Empty(t, errs)
	require.Equal(t, []string{"first", "second", "third"}, applied)
	require.Zero(t, b.Len())
}

func TestCandidateBuffer_DrainIdempotent(t *testing.T) {
	b := NewCandidateBuffer()
	b.Add(cand("only"))

	count := 0
	apply := func(webrtc.ICECandidateInit) error { count++; return nil }

	b.Drain(apply)
	b.Drain(apply)
	require.Equal(t, 1, count, "second drain must not re-apply")

	b.Drain(apply) // empty buffer is a no-op
	require.Equal(t, 1, count)
}

func TestCandidateBuffer_DrainContinuesPastFailures(t *testing.T) {
	b := NewCandidateBuffer()
	b.Add(cand("bad"))
	b.Add(cand("good"))

	var applied []string
	errs := b.Drain(func(ci webrtc.ICECandidateInit) error {
		applied = append(applied, ci.Candidate)
		if ci.Candidate == "bad" {
			return errors.New("rejected")
		}
		return nil
	})
	require.Len(t, errs, 1)
	require.Equal(t, []string{"bad", "good"}, applied)
}

func TestCandidateBuffer_Clear(t *testing.T) {
	b := NewCandidateBuffer()
	b.Add(cand("stale"))
	b.Clear()

	errs := b.Drain(func(webrtc.ICECandidateInit) error {
		t.Fatal("cleared candidate must not be applied")
		return nil
	})
	require.Empty(t, errs)
}
