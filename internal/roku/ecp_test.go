package roku

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recordingServer captures every ECP POST path.
type recordingServer struct {
	*httptest.Server
	paths []string
}

func newRecordingServer(t *testing.T, status int) *recordingServer {
	t.Helper()
	rs := &recordingServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		rs.paths = append(rs.paths, r.URL.EscapedPath())
		w.WriteHeader(status)
	}))
	t.Cleanup(rs.Close)
	return rs
}

func clientFor(srv *recordingServer, opts ...Option) *Client {
	u, _ := url.Parse(srv.URL)
	port, _ := strconv.Atoi(u.Port())
	return NewClient(u.Hostname(), port, opts...)
}

func TestKey_GenericMapping(t *testing.T) {
	tests := []struct {
		generic string
		path    string
	}{
		{"UP", "/keypress/Up"},
		{"up", "/keypress/Up"},
		{"ENTER", "/keypress/Select"},
		{"HOME", "/keypress/Home"},
		{"PLAY", "/keypress/Play"},
		{"PAUSE", "/keypress/Play"},
		{"PLAY_PAUSE", "/keypress/Play"},
	}
	for _, tt := range tests {
		t.Run(tt.generic, func(t *testing.T) {
			srv := newRecordingServer(t, http.StatusOK)
			c := clientFor(srv)
			require.NoError(t, c.Key(context.Background(), tt.generic))
			require.Equal(t, []string{tt.path}, srv.paths)
		})
	}
}

func TestKey_Unsupported(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK)
	c := clientFor(srv)

	err := c.Key(context.Background(), "VOLUME_UP")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported key")
	require.Empty(t, srv.paths, "no request for an unmapped key")

	require.Error(t, c.Key(context.Background(), ""))
}

func TestKeypress_Raw(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK)
	c := clientFor(srv)

	require.NoError(t, c.Keypress(context.Background(), "InstantReplay"))
	require.Equal(t, []string{"/keypress/InstantReplay"}, srv.paths)
}

func TestText_LitEncoding(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK)
	c := clientFor(srv, WithPerCharDelay(0))

	require.NoError(t, c.Text(context.Background(), "a b"))
	require.Equal(t, []string{
		"/keypress/Lit_a",
		"/keypress/Lit_+",
		"/keypress/Lit_b",
	}, srv.paths)
}

func TestText_Empty(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK)
	c := clientFor(srv, WithPerCharDelay(0))

	require.NoError(t, c.Text(context.Background(), ""))
	require.Empty(t, srv.paths)
}

func TestLaunch(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK)
	c := clientFor(srv)

	require.NoError(t, c.Launch(context.Background(), "12"))
	require.Equal(t, []string{"/launch/12"}, srv.paths)

	require.Error(t, c.Launch(context.Background(), ""))
}

func TestPost_NoRetryOnHTTPError(t *testing.T) {
	srv := newRecordingServer(t, http.StatusServiceUnavailable)
	c := clientFor(srv, WithRetries(3, time.Millisecond))

	err := c.Key(context.Background(), "HOME")
	require.Error(t, err)
	require.Contains(t, err.Error(), "503")
	require.Len(t, srv.paths, 1, "non-2xx responses are not retried")
}

// flakyTransport fails the first n round trips with a network error.
type flakyTransport struct {
	failures int
	inner    http.RoundTripper
	calls    int
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection reset")
	}
	return f.inner.RoundTrip(req)
}

func TestPost_RetriesNetworkErrors(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK)
	ft := &flakyTransport{failures: 2, inner: http.DefaultTransport}
	c := clientFor(srv,
		WithHTTPClient(&http.Client{Transport: ft}),
		WithRetries(2, time.Millisecond),
	)

	require.NoError(t, c.Key(context.Background(), "HOME"))
	require.Equal(t, 3, ft.calls)
	require.Len(t, srv.paths, 1)
}

func TestPost_RetriesExhausted(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK)
	ft := &flakyTransport{failures: 10, inner: http.DefaultTransport}
	c := clientFor(srv,
		WithHTTPClient(&http.Client{Transport: ft}),
		WithRetries(1, time.Millisecond),
	)

	err := c.Key(context.Background(), "HOME")
	require.Error(t, err)
	require.Equal(t, 2, ft.calls)
}

func TestText_ContextCancelled(t *testing.T) {
	srv := newRecordingServer(t, http.StatusOK)
	c := clientFor(srv, WithPerCharDelay(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Text(ctx, "ab")
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled) || strings.Contains(err.Error(), "context"))
}
