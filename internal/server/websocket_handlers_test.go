package server

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listen serves e.app on a loopback port and returns the websocket URL for token.
func (e *testEnv) listen(t *testing.T, token string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = e.app.Listener(ln) }()
	t.Cleanup(func() { _ = e.app.Shutdown() })

	u := url.URL{Scheme: "ws", Host: ln.Addr().String(), Path: "/api/ws", RawQuery: "token=" + url.QueryEscape(token)}
	return u.String()
}

func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	return conn
}

func TestWebsocket_ConnectCloseCycles(t *testing.T) {
	e := newTestEnv(t)
	ada, token := e.signup(t, "ada")
	wsURL := e.listen(t, token)

	for i := 0; i < 60; i++ {
		conn := dialWS(t, wsURL)
		require.Eventually(t, func() bool { return e.srv.hub.IsOnline(ada.ID) }, 2*time.Second, 5*time.Millisecond)

		// a pending event makes the writer busy while the reader sees the close
		e.srv.hub.Deliver(ada.ID, []byte(`{"type":"ping"}`))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()

		require.Eventually(t, func() bool { return e.srv.hub.ConnectionCount() == 0 }, 2*time.Second, 5*time.Millisecond)
	}
}

func TestWebsocket_HubShutdownSendsGoingAway(t *testing.T) {
	e := newTestEnv(t)
	ada, token := e.signup(t, "ada")
	conn := dialWS(t, e.listen(t, token))
	defer conn.Close()
	require.Eventually(t, func() bool { return e.srv.hub.IsOnline(ada.ID) }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, e.srv.hub.Shutdown(context.Background()))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Zero(t, e.srv.hub.ConnectionCount())
}
