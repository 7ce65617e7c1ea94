package server

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"pairwire/internal/relay"
)

func startServer(t *testing.T, opts Options) *Server {
	t.Helper()
	rly := relay.New(zerolog.Nop(), nil, nil)
	srv, err := New("127.0.0.1:0", rly, zerolog.Nop(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func dial(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr()+"/", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) relay.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var env relay.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func send(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func TestWelcomeOnConnect(t *testing.T) {
	srv := startServer(t, Options{Keepalive: time.Minute})
	conn := dial(t, srv)

	welcome := readEnvelope(t, conn)
	require.Equal(t, "welcome", welcome.Type)
	require.NotEmpty(t, welcome.ID)
}

func TestPairingAndChatEndToEnd(t *testing.T) {
	srv := startServer(t, Options{Keepalive: time.Minute})

	connX := dial(t, srv)
	welcomeX := readEnvelope(t, connX)
	connY := dial(t, srv)
	welcomeY := readEnvelope(t, connY)

	send(t, connX, map[string]string{"type": "waiting"})
	send(t, connY, map[string]string{"type": "waiting"})

	pairedX := readEnvelope(t, connX)
	require.Equal(t, "paired", pairedX.Type)
	require.Equal(t, welcomeY.ID, pairedX.PartnerID)

	pairedY := readEnvelope(t, connY)
	require.Equal(t, "paired", pairedY.Type)
	require.Equal(t, welcomeX.ID, pairedY.PartnerID)

	send(t, connX, map[string]interface{}{
		"type":    "message",
		"to":      welcomeY.ID,
		"payload": map[string]string{"text": "hi"},
	})

	chat := readEnvelope(t, connY)
	require.Equal(t, "message", chat.Type)
	require.Equal(t, welcomeX.ID, chat.From)

	var body struct {
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(chat.Payload, &body))
	require.Equal(t, "hi", body.Text)
}

func TestDisconnectNotifiesPartner(t *testing.T) {
	srv := startServer(t, Options{Keepalive: time.Minute})

	connX := dial(t, srv)
	welcomeX := readEnvelope(t, connX)
	connY := dial(t, srv)
	readEnvelope(t, connY)

	send(t, connX, map[string]string{"type": "waiting"})
	send(t, connY, map[string]string{"type": "waiting"})
	readEnvelope(t, connX)
	readEnvelope(t, connY)

	require.NoError(t, connX.Close())

	notice := readEnvelope(t, connY)
	require.Equal(t, "disconnected", notice.Type)
	require.Equal(t, welcomeX.ID, notice.From)
}

func TestMalformedFrameGetsErrorReply(t *testing.T) {
	srv := startServer(t, Options{Keepalive: time.Minute})
	conn := dial(t, srv)
	readEnvelope(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	reply := readEnvelope(t, conn)
	require.Equal(t, "error", reply.Type)
	require.NotEmpty(t, reply.Message)
}

func TestKeepalivePing(t *testing.T) {
	srv := startServer(t, Options{Keepalive: 50 * time.Millisecond})
	conn := dial(t, srv)
	readEnvelope(t, conn)

	ping := readEnvelope(t, conn)
	require.Equal(t, "ping", ping.Type)

	// pong is accepted without a reply or a disconnect
	send(t, conn, map[string]string{"type": "pong"})
	next := readEnvelope(t, conn)
	require.Equal(t, "ping", next.Type)
}

func TestHealthzReportsStats(t *testing.T) {
	srv := startServer(t, Options{Keepalive: time.Minute})

	conn := dial(t, srv)
	readEnvelope(t, conn)
	send(t, conn, map[string]string{"type": "waiting"})

	// The waiting request is handled asynchronously to this test.
	var stats struct {
		Connections int `json:"connections"`
		Waiting     int `json:"waiting"`
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + srv.Addr() + "/healthz")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		err = json.NewDecoder(resp.Body).Decode(&stats)
		resp.Body.Close()
		require.NoError(t, err)
		if stats.Connections == 1 && stats.Waiting == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 1 connection and 1 waiting, got %+v", stats)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
