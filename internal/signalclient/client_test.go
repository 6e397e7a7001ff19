package signalclient

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/beamlink/beamlink/internal/protocol"
)

// echoServer upgrades and echoes every frame back.
func echoServer(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClient_SendReadRoundTrip(t *testing.T) {
	url := echoServer(t)
	c, err := Dial(url, nil)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Send(protocol.Envelope{
		Type: protocol.TypeHello,
		Role: string(protocol.RoleSubscriber),
	}))

	env, err := c.Read()
	require.NoError(t, err)
	require.Equal(t, protocol.TypeHello, env.Type)
	require.Equal(t, "subscriber", env.Role)
}

func TestClient_ReadRejectsMalformedFrame(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_ = ws.WriteMessage(websocket.TextMessage, []byte("not json"))
		// keep the connection open so the client error comes from decoding
		_, _, _ = ws.ReadMessage()
	}))
	t.Cleanup(srv.Close)

	c, err := Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Read()
	require.Error(t, err)
}

func TestDial_Failure(t *testing.T) {
	_, err := Dial("ws://127.0.0.1:1/api/ws/signal", nil)
	require.Error(t, err)
}
