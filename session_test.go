package neukoelln

import (
	"context"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pepperonas/neukoelln/proto"
	"github.com/pepperonas/neukoelln/relay"
)

func newRelayServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := relay.NewServer(relay.Config{Logger: log.New(io.Discard, "", 0)})
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func newTestSession(t *testing.T, ts *httptest.Server, name string) *Session {
	t.Helper()
	s := NewSession(SessionConfig{
		URL:        wsURL(ts),
		PlayerName: name,
		Logger:     log.New(io.Discard, "", 0),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx))
	t.Cleanup(func() { s.Close() })
	return s
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func createTestRoom(t *testing.T, s *Session) string {
	t.Helper()
	created := make(chan RoomEvent, 1)
	unsub := s.Events().RoomCreated.Subscribe(func(ev RoomEvent) { created <- ev })
	defer unsub()
	require.True(t, s.CreateRoom(""))
	ev := waitFor(t, created, "room_created")
	return ev.Code
}

func joinTestRoom(t *testing.T, s *Session, code string) {
	t.Helper()
	joined := make(chan RoomEvent, 1)
	unsub := s.Events().RoomJoined.Subscribe(func(ev RoomEvent) { joined <- ev })
	defer unsub()
	require.True(t, s.JoinRoom(code, ""))
	waitFor(t, joined, "room_joined")
}

func TestSessionFailsFastWhenNotConnected(t *testing.T) {
	s := NewSession(SessionConfig{URL: "ws://127.0.0.1:1/ws", Logger: log.New(io.Discard, "", 0)})

	require.False(t, s.CreateRoom("Alice"))
	require.False(t, s.JoinRoom("123456", "Alice"))
	require.False(t, s.StartGame())
	require.False(t, s.SendGameData(proto.WorldRequest{}))
}

func TestSessionDefaultNameIsNumeric(t *testing.T) {
	s := NewSession(SessionConfig{URL: "ws://127.0.0.1:1/ws", Logger: log.New(io.Discard, "", 0)})
	require.Regexp(t, `^\d+$`, s.PlayerName())
}

func TestSessionCreateRoom(t *testing.T) {
	ts := newRelayServer(t)
	s := newTestSession(t, ts, "Alice")

	code := createTestRoom(t, s)
	require.Regexp(t, `^\d{6}$`, code)
	require.Equal(t, code, s.RoomCode())
	require.True(t, s.IsHost())
	require.Len(t, s.Players(), 1)

	// Already in a room.
	require.False(t, s.CreateRoom("Alice2"))
}

func TestSessionJoinRoomMirrorsRoster(t *testing.T) {
	ts := newRelayServer(t)
	host := newTestSession(t, ts, "Alice")
	joiner := newTestSession(t, ts, "Bob")

	hostSaw := make(chan PlayerJoinedEvent, 1)
	host.Events().PlayerJoined.Subscribe(func(ev PlayerJoinedEvent) { hostSaw <- ev })

	code := createTestRoom(t, host)
	joinTestRoom(t, joiner, code)

	require.False(t, joiner.IsHost())
	require.Len(t, joiner.Players(), 2)

	ev := waitFor(t, hostSaw, "player_joined")
	require.Equal(t, "Bob", ev.Player.ID)
	require.Len(t, host.Players(), 2)
	require.Equal(t, "Bob", host.PlayerDisplayName("Bob"))
}

func TestSessionStartGameRequiresHost(t *testing.T) {
	ts := newRelayServer(t)
	host := newTestSession(t, ts, "Alice")
	joiner := newTestSession(t, ts, "Bob")

	code := createTestRoom(t, host)
	joinTestRoom(t, joiner, code)

	require.False(t, joiner.StartGame())

	started := make(chan struct{}, 1)
	joiner.Events().GameStarted.Subscribe(func(struct{}) { started <- struct{}{} })
	require.True(t, host.StartGame())
	waitFor(t, started, "game_started")
}

func TestSessionErrorSurfacesRoomFailures(t *testing.T) {
	ts := newRelayServer(t)
	s := newTestSession(t, ts, "Bob")

	errs := make(chan ErrorEvent, 1)
	s.Events().Error.Subscribe(func(ev ErrorEvent) { errs <- ev })

	require.True(t, s.JoinRoom("000000", "Bob"))
	ev := waitFor(t, errs, "relay error")
	require.NotEmpty(t, ev.Message)
	require.False(t, s.InRoom())
}

func TestSessionHostPromotionOnPeerLeave(t *testing.T) {
	ts := newRelayServer(t)
	host := newTestSession(t, ts, "Alice")
	joiner := newTestSession(t, ts, "Bob")

	code := createTestRoom(t, host)
	joinTestRoom(t, joiner, code)

	left := make(chan PlayerLeftEvent, 1)
	joiner.Events().PlayerLeft.Subscribe(func(ev PlayerLeftEvent) { left <- ev })

	host.Close()

	ev := waitFor(t, left, "player_left")
	require.Equal(t, "Alice", ev.PlayerID)
	require.True(t, joiner.IsHost(), "surviving joiner must be promoted")
}

func TestSessionDisconnectIsTerminal(t *testing.T) {
	ts := newRelayServer(t)
	s := newTestSession(t, ts, "Alice")

	down := make(chan struct{}, 1)
	s.Events().Disconnected.Subscribe(func(struct{}) { down <- struct{}{} })

	require.NoError(t, s.Close())
	waitFor(t, down, "disconnect")
	require.False(t, s.Connected())
	require.False(t, s.SendGameData(proto.WorldRequest{}))
}

func TestSessionGameDataRoundTrip(t *testing.T) {
	ts := newRelayServer(t)
	host := newTestSession(t, ts, "Alice")
	joiner := newTestSession(t, ts, "Bob")

	code := createTestRoom(t, host)
	joinTestRoom(t, joiner, code)

	received := make(chan GameDataEvent, 1)
	joiner.Events().GameData.Subscribe(func(ev GameDataEvent) { received <- ev })

	require.True(t, host.SendGameData(proto.ScoreUpdate{PlayerID: "Alice", Score: 2}))

	ev := waitFor(t, received, "game_data")
	require.Equal(t, "Alice", ev.SenderID)
	require.Equal(t, proto.ScoreUpdate{PlayerID: "Alice", Score: 2}, ev.Event)
}
