package relay

import (
	"encoding/json"
	"io"
	"log"
	"math/rand"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/pepperonas/neukoelln/proto"
)

func newTestRelay(t *testing.T) *httptest.Server {
	t.Helper()
	srv := NewServer(Config{
		Logger: log.New(io.Discard, "", 0),
		Rand:   rand.New(rand.NewSource(1)),
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts
}

func dialRelay(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEnvelope(t *testing.T, conn *websocket.Conn, env proto.ClientEnvelope) {
	t.Helper()
	data, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func readEnvelope(t *testing.T, conn *websocket.Conn) proto.ServerEnvelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var env proto.ServerEnvelope
	require.NoError(t, json.Unmarshal(payload, &env))
	return env
}

func expectNoMessage(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, payload, err := conn.ReadMessage()
	require.Error(t, err, "unexpected message: %s", payload)
}

func createRoom(t *testing.T, conn *websocket.Conn, name string) string {
	t.Helper()
	sendEnvelope(t, conn, proto.ClientEnvelope{Type: proto.TypeCreateRoom, PlayerName: name})
	env := readEnvelope(t, conn)
	require.Equal(t, proto.TypeRoomCreated, env.Type)
	require.Regexp(t, `^\d{6}$`, env.RoomCode)
	return env.RoomCode
}

func joinRoom(t *testing.T, conn *websocket.Conn, code, name string) proto.ServerEnvelope {
	t.Helper()
	sendEnvelope(t, conn, proto.ClientEnvelope{Type: proto.TypeJoinRoom, RoomCode: code, PlayerName: name})
	return readEnvelope(t, conn)
}

func TestCreateRoomMakesSenderHost(t *testing.T) {
	ts := newTestRelay(t)
	conn := dialRelay(t, ts)

	sendEnvelope(t, conn, proto.ClientEnvelope{Type: proto.TypeCreateRoom, PlayerName: "Alice"})
	env := readEnvelope(t, conn)

	require.Equal(t, proto.TypeRoomCreated, env.Type)
	require.Len(t, env.Players, 1)
	require.Equal(t, "Alice", env.Players[0].ID)
	require.True(t, env.Players[0].IsHost)
}

func TestCreateRoomRequiresName(t *testing.T) {
	ts := newTestRelay(t)
	conn := dialRelay(t, ts)

	sendEnvelope(t, conn, proto.ClientEnvelope{Type: proto.TypeCreateRoom})
	env := readEnvelope(t, conn)
	require.Equal(t, proto.TypeError, env.Type)
	require.NotEmpty(t, env.Message)
}

func TestJoinRoomBroadcastsToOthers(t *testing.T) {
	ts := newTestRelay(t)
	host := dialRelay(t, ts)
	joiner := dialRelay(t, ts)

	code := createRoom(t, host, "Alice")

	env := joinRoom(t, joiner, code, "Bob")
	require.Equal(t, proto.TypeRoomJoined, env.Type)
	require.Equal(t, code, env.RoomCode)
	require.Len(t, env.Players, 2)

	notice := readEnvelope(t, host)
	require.Equal(t, proto.TypePlayerJoined, notice.Type)
	require.NotNil(t, notice.Player)
	require.Equal(t, "Bob", notice.Player.ID)
	require.False(t, notice.Player.IsHost)
	require.Len(t, notice.Players, 2)
}

func TestJoinRoomRejectsUnknownRoom(t *testing.T) {
	ts := newTestRelay(t)
	conn := dialRelay(t, ts)

	env := joinRoom(t, conn, "000000", "Bob")
	require.Equal(t, proto.TypeError, env.Type)
}

func TestJoinRoomRejectsDuplicateName(t *testing.T) {
	ts := newTestRelay(t)
	host := dialRelay(t, ts)
	impostor := dialRelay(t, ts)

	code := createRoom(t, host, "Alice")

	env := joinRoom(t, impostor, code, "Alice")
	require.Equal(t, proto.TypeError, env.Type)
	expectNoMessage(t, host)
}

func TestJoinRoomRejectsStartedGame(t *testing.T) {
	ts := newTestRelay(t)
	host := dialRelay(t, ts)
	late := dialRelay(t, ts)

	code := createRoom(t, host, "Alice")
	sendEnvelope(t, host, proto.ClientEnvelope{Type: proto.TypeStartGame})
	started := readEnvelope(t, host)
	require.Equal(t, proto.TypeGameStarted, started.Type)

	env := joinRoom(t, late, code, "Bob")
	require.Equal(t, proto.TypeError, env.Type)
}

func TestStartGameIgnoredFromNonHost(t *testing.T) {
	ts := newTestRelay(t)
	host := dialRelay(t, ts)
	joiner := dialRelay(t, ts)

	code := createRoom(t, host, "Alice")
	joinRoom(t, joiner, code, "Bob")
	readEnvelope(t, host) // player_joined

	sendEnvelope(t, joiner, proto.ClientEnvelope{Type: proto.TypeStartGame})
	expectNoMessage(t, host)
	expectNoMessage(t, joiner)
}

func TestGameDataFanOutExcludesSender(t *testing.T) {
	ts := newTestRelay(t)
	alice := dialRelay(t, ts)
	bob := dialRelay(t, ts)
	carol := dialRelay(t, ts)

	code := createRoom(t, alice, "Alice")
	joinRoom(t, bob, code, "Bob")
	readEnvelope(t, alice) // Bob joined
	joinRoom(t, carol, code, "Carol")
	readEnvelope(t, alice) // Carol joined
	readEnvelope(t, bob)   // Carol joined

	payload := json.RawMessage(`{"type":"score_update","playerId":"Alice","score":1}`)
	sendEnvelope(t, alice, proto.ClientEnvelope{Type: proto.TypeGameData, GameData: payload})

	for _, peer := range []*websocket.Conn{bob, carol} {
		env := readEnvelope(t, peer)
		require.Equal(t, proto.TypeGameData, env.Type)
		require.Equal(t, "Alice", env.SenderID)
		require.JSONEq(t, string(payload), string(env.GameData))
	}
	expectNoMessage(t, alice)
}

func TestHostDisconnectPromotesNextJoiner(t *testing.T) {
	ts := newTestRelay(t)
	alice := dialRelay(t, ts)
	bob := dialRelay(t, ts)
	carol := dialRelay(t, ts)

	code := createRoom(t, alice, "Alice")
	joinRoom(t, bob, code, "Bob")
	readEnvelope(t, alice)
	joinRoom(t, carol, code, "Carol")
	readEnvelope(t, alice)
	readEnvelope(t, bob)

	alice.Close()

	for _, peer := range []*websocket.Conn{bob, carol} {
		env := readEnvelope(t, peer)
		require.Equal(t, proto.TypePlayerLeft, env.Type)
		require.Equal(t, "Alice", env.PlayerID)
		require.Len(t, env.Players, 2)
		require.Equal(t, "Bob", env.Players[0].ID)
		require.True(t, env.Players[0].IsHost)
		require.False(t, env.Players[1].IsHost)
	}
}

func TestMalformedMessageIsDropped(t *testing.T) {
	ts := newTestRelay(t)
	conn := dialRelay(t, ts)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	expectNoMessage(t, conn)

	// Connection survives: a well-formed message still works.
	createRoom(t, conn, "Alice")
}
