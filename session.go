// Package neukoelln is the game-side core of the multiplayer layer: the
// relay session client, host-authoritative world bootstrap, entity
// replication, and the combat event protocol. Rendering, physics and
// input stay behind the EntityFactory/EntityHandle/UI interfaces.
package neukoelln

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pepperonas/neukoelln/logging"
	"github.com/pepperonas/neukoelln/proto"
)

const sessionWriteWait = 10 * time.Second

const (
	EventSessionConnected    logging.EventType = "session.connected"
	EventSessionDisconnected logging.EventType = "session.disconnected"
	EventSessionRoomError    logging.EventType = "session.room_error"
)

type SessionConfig struct {
	URL        string
	PlayerName string
	Logger     *log.Logger
	Publisher  logging.Publisher
	Dialer     *websocket.Dialer
}

// Session owns one relay connection and mirrors the room state the relay
// broadcasts. Room operations fail fast with a false return instead of
// blocking when the session is not in the right state; the outcome of an
// accepted operation arrives later through Events.
//
// A closed transport is terminal. There is no automatic reconnect; the
// caller builds a fresh Session to rejoin.
type Session struct {
	url    string
	logger *log.Logger
	pub    logging.Publisher
	dialer *websocket.Dialer

	events SessionEvents

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu         sync.Mutex
	connected  bool
	roomCode   string
	isHost     bool
	playerName string
	players    []proto.Player
}

func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = logging.NopPublisher()
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	name := cfg.PlayerName
	if name == "" {
		// Self-assigned random numeric id, overridable by an explicit
		// name at create/join time.
		name = fmt.Sprintf("%d", rand.Intn(1000000))
	}

	return &Session{
		url:        cfg.URL,
		logger:     logger,
		pub:        pub,
		dialer:     dialer,
		playerName: name,
	}
}

// Events exposes the session's notification feeds.
func (s *Session) Events() *SessionEvents { return &s.events }

// Connect dials the relay and starts the read pump.
func (s *Session) Connect(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("session: dial %s: %w", s.url, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()

	s.pub.Publish(ctx, logging.Event{
		Type:     EventSessionConnected,
		Actor:    s.selfRef(),
		Severity: logging.SeverityInfo,
		Category: logging.CategorySession,
	})

	go s.readPump(conn)
	return nil
}

// Close tears the connection down. The read pump observes the closed
// socket and fires Disconnected.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Session) RoomCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomCode
}

func (s *Session) InRoom() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomCode != ""
}

func (s *Session) IsHost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isHost
}

// PlayerName doubles as the participant id on the wire.
func (s *Session) PlayerName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerName
}

func (s *Session) Players() []proto.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]proto.Player, len(s.players))
	copy(out, s.players)
	return out
}

// PlayerDisplayName resolves a participant id to its display name,
// falling back to the id itself.
func (s *Session) PlayerDisplayName(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.players {
		if p.ID == id {
			return p.Name
		}
	}
	return id
}

// CreateRoom asks the relay for a fresh room with this session as host.
// A non-empty name overrides the name chosen at construction.
func (s *Session) CreateRoom(name string) bool {
	s.mu.Lock()
	if !s.connected || s.roomCode != "" {
		s.mu.Unlock()
		return false
	}
	if name != "" {
		s.playerName = name
	}
	playerName := s.playerName
	s.mu.Unlock()

	return s.sendEnvelope(proto.ClientEnvelope{
		Type:       proto.TypeCreateRoom,
		PlayerName: playerName,
	})
}

func (s *Session) JoinRoom(code, name string) bool {
	s.mu.Lock()
	if !s.connected || s.roomCode != "" || code == "" {
		s.mu.Unlock()
		return false
	}
	if name != "" {
		s.playerName = name
	}
	playerName := s.playerName
	s.mu.Unlock()

	return s.sendEnvelope(proto.ClientEnvelope{
		Type:       proto.TypeJoinRoom,
		RoomCode:   code,
		PlayerName: playerName,
	})
}

// StartGame is only accepted from the host.
func (s *Session) StartGame() bool {
	s.mu.Lock()
	ok := s.connected && s.roomCode != "" && s.isHost
	s.mu.Unlock()
	if !ok {
		return false
	}
	return s.sendEnvelope(proto.ClientEnvelope{Type: proto.TypeStartGame})
}

// SendGameData fans the event out to every other participant.
func (s *Session) SendGameData(ev proto.GameEvent) bool {
	s.mu.Lock()
	ok := s.connected && s.roomCode != ""
	s.mu.Unlock()
	if !ok {
		return false
	}

	data, err := proto.EncodeGameData(ev)
	if err != nil {
		s.logger.Printf("session: %v", err)
		return false
	}
	return s.sendEnvelope(proto.ClientEnvelope{
		Type:     proto.TypeGameData,
		GameData: data,
	})
}

func (s *Session) sendEnvelope(env proto.ClientEnvelope) bool {
	data, err := json.Marshal(env)
	if err != nil {
		s.logger.Printf("session: marshal %s: %v", env.Type, err)
		return false
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return false
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(sessionWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Printf("session: write %s: %v", env.Type, err)
		return false
	}
	return true
}

func (s *Session) readPump(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			s.handleDisconnect()
			return
		}

		var env proto.ServerEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			s.logger.Printf("session: dropping malformed server message: %v", err)
			continue
		}
		s.dispatch(env)
	}
}

func (s *Session) dispatch(env proto.ServerEnvelope) {
	switch env.Type {
	case proto.TypeRoomCreated:
		s.mu.Lock()
		s.roomCode = env.RoomCode
		s.isHost = true
		s.players = env.Players
		s.mu.Unlock()
		s.events.RoomCreated.publish(RoomEvent{Code: env.RoomCode, Players: env.Players})
		s.events.PlayerList.publish(env.Players)

	case proto.TypeRoomJoined:
		s.mu.Lock()
		s.roomCode = env.RoomCode
		s.isHost = false
		s.players = env.Players
		s.mu.Unlock()
		s.events.RoomJoined.publish(RoomEvent{Code: env.RoomCode, Players: env.Players})
		s.events.PlayerList.publish(env.Players)

	case proto.TypePlayerJoined:
		s.mu.Lock()
		s.players = env.Players
		s.mu.Unlock()
		joined := proto.Player{}
		if env.Player != nil {
			joined = *env.Player
		}
		s.events.PlayerJoined.publish(PlayerJoinedEvent{Player: joined, Players: env.Players})
		s.events.PlayerList.publish(env.Players)

	case proto.TypePlayerLeft:
		s.mu.Lock()
		s.players = env.Players
		// The relay may have promoted this session to host.
		for _, p := range env.Players {
			if p.ID == s.playerName {
				s.isHost = p.IsHost
			}
		}
		s.mu.Unlock()
		s.events.PlayerLeft.publish(PlayerLeftEvent{PlayerID: env.PlayerID, Players: env.Players})
		s.events.PlayerList.publish(env.Players)

	case proto.TypeGameStarted:
		s.events.GameStarted.publish(struct{}{})

	case proto.TypeGameData:
		ev, err := proto.DecodeGameData(env.GameData)
		if err != nil {
			s.logger.Printf("session: dropping game data from %s: %v", env.SenderID, err)
			return
		}
		s.events.GameData.publish(GameDataEvent{SenderID: env.SenderID, Event: ev})

	case proto.TypeError:
		s.logger.Printf("session: relay error: %s", env.Message)
		s.pub.Publish(context.Background(), logging.Event{
			Type:     EventSessionRoomError,
			Actor:    s.selfRef(),
			Severity: logging.SeverityWarn,
			Category: logging.CategorySession,
			Payload:  map[string]any{"message": env.Message},
		})
		s.events.Error.publish(ErrorEvent{Message: env.Message})

	default:
		s.logger.Printf("session: dropping server message of unknown type %q", env.Type)
	}
}

func (s *Session) handleDisconnect() {
	s.mu.Lock()
	wasConnected := s.connected
	s.connected = false
	s.conn = nil
	s.mu.Unlock()
	if !wasConnected {
		return
	}

	s.pub.Publish(context.Background(), logging.Event{
		Type:     EventSessionDisconnected,
		Actor:    s.selfRef(),
		Severity: logging.SeverityInfo,
		Category: logging.CategorySession,
	})
	s.events.Disconnected.publish(struct{}{})
}

func (s *Session) selfRef() logging.EntityRef {
	return logging.EntityRef{ID: s.playerName, Kind: logging.EntityKindSession}
}
