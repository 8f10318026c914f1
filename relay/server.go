// Package relay implements the room-based matchmaking relay. It routes
// join/leave/game-data envelopes between the clients of a room and holds
// no game logic of its own: game-data payloads pass through opaque.
//
// The room table is owned by a single actor goroutine fed by a command
// channel; websocket read loops post commands and never touch the table
// directly, so no mutation ever overlaps another.
package relay

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pepperonas/neukoelln/logging"
	"github.com/pepperonas/neukoelln/proto"
)

const (
	writeWait        = 10 * time.Second
	readLimit        = 64 * 1024
	sendQueueSize    = 64
	commandQueueSize = 256
)

const (
	EventRoomCreated  logging.EventType = "relay.room_created"
	EventRoomClosed   logging.EventType = "relay.room_closed"
	EventPlayerJoined logging.EventType = "relay.player_joined"
	EventPlayerLeft   logging.EventType = "relay.player_left"
	EventHostMigrated logging.EventType = "relay.host_migrated"
	EventGameStarted  logging.EventType = "relay.game_started"
)

type Config struct {
	Logger    *log.Logger
	Publisher logging.Publisher
	Metrics   *Metrics
	Rand      *rand.Rand
}

// Server accepts websocket connections and routes room traffic. It
// implements http.Handler for the websocket endpoint.
type Server struct {
	logger   *log.Logger
	pub      logging.Publisher
	metrics  *Metrics
	rng      *rand.Rand
	upgrader websocket.Upgrader

	commands chan func(*table)
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = logging.NopPublisher()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	s := &Server{
		logger:  logger,
		pub:     pub,
		metrics: metrics,
		rng:     rng,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		commands: make(chan func(*table), commandQueueSize),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Close stops the actor and closes every live connection.
func (s *Server) Close() {
	s.stopOnce.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *Server) run() {
	defer s.wg.Done()
	t := newTable(s.rng)
	for {
		select {
		case cmd := <-s.commands:
			cmd(t)
		case <-s.done:
			for _, sess := range t.sessions {
				sess.close()
			}
			return
		}
	}
}

func (s *Server) post(cmd func(*table)) {
	select {
	case s.commands <- cmd:
	case <-s.done:
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("upgrade failed: %v", err)
		return
	}

	sess := &session{
		id:   uuid.New(),
		conn: conn,
		out:  make(chan []byte, sendQueueSize),
		quit: make(chan struct{}),
	}
	s.post(func(t *table) { t.sessions[sess.id] = sess })

	go sess.writePump()
	s.readPump(sess)
}

func (s *Server) readPump(sess *session) {
	defer func() {
		sess.close()
		s.post(func(t *table) { s.handleDisconnect(t, sess) })
	}()

	sess.conn.SetReadLimit(readLimit)
	for {
		_, payload, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}

		var env proto.ClientEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			s.metrics.MalformedDropped.Inc()
			s.logger.Printf("discarding malformed message from %s: %v", sess.id, err)
			continue
		}

		switch env.Type {
		case proto.TypeCreateRoom:
			name := env.PlayerName
			s.post(func(t *table) { s.handleCreateRoom(t, sess, name) })
		case proto.TypeJoinRoom:
			code, name := env.RoomCode, env.PlayerName
			s.post(func(t *table) { s.handleJoinRoom(t, sess, code, name) })
		case proto.TypeStartGame:
			s.post(func(t *table) { s.handleStartGame(t, sess) })
		case proto.TypeGameData:
			data := env.GameData
			s.post(func(t *table) { s.handleGameData(t, sess, data) })
		default:
			s.metrics.MalformedDropped.Inc()
			s.logger.Printf("unknown message type %q from %s", env.Type, sess.id)
		}
	}
}

func (s *Server) handleCreateRoom(t *table, sess *session, playerName string) {
	if playerName == "" {
		s.sendError(sess, "player name required")
		return
	}
	if _, inRoom := t.memberships[sess.id]; inRoom {
		s.sendError(sess, "already in a room")
		return
	}

	code := t.newRoomCode()
	p := &Participant{ID: playerName, Name: playerName, sess: sess}
	room := &Room{Code: code, HostID: p.ID, Participants: []*Participant{p}}
	t.rooms[code] = room
	t.memberships[sess.id] = membership{code: code, playerID: p.ID}

	s.metrics.RoomsCreated.Inc()
	s.updateGauges(t)
	s.send(sess, proto.ServerEnvelope{
		Type:     proto.TypeRoomCreated,
		RoomCode: code,
		Players:  room.roster(),
	})
	s.logger.Printf("room %s created, host %s", code, playerName)
	s.publish(EventRoomCreated, roomRef(code), map[string]any{"host": playerName})
}

func (s *Server) handleJoinRoom(t *table, sess *session, roomCode, playerName string) {
	if playerName == "" {
		s.sendError(sess, "player name required")
		return
	}
	if _, inRoom := t.memberships[sess.id]; inRoom {
		s.sendError(sess, "already in a room")
		return
	}

	room, ok := t.rooms[roomCode]
	if !ok {
		s.metrics.JoinsRejected.WithLabelValues("room_not_found").Inc()
		s.sendError(sess, "room does not exist")
		return
	}
	if room.GameStarted {
		s.metrics.JoinsRejected.WithLabelValues("game_started").Inc()
		s.sendError(sess, "game in this room has already started")
		return
	}
	if room.participant(playerName) != nil {
		s.metrics.JoinsRejected.WithLabelValues("duplicate_name").Inc()
		s.sendError(sess, "a player with this name is already in the room")
		return
	}

	p := &Participant{ID: playerName, Name: playerName, sess: sess}
	room.Participants = append(room.Participants, p)
	t.memberships[sess.id] = membership{code: roomCode, playerID: p.ID}
	s.updateGauges(t)

	roster := room.roster()
	s.send(sess, proto.ServerEnvelope{
		Type:     proto.TypeRoomJoined,
		RoomCode: roomCode,
		Players:  roster,
	})
	joined := proto.Player{ID: p.ID, Name: p.Name, IsHost: false}
	s.broadcast(room, proto.ServerEnvelope{
		Type:    proto.TypePlayerJoined,
		Player:  &joined,
		Players: roster,
	}, p.ID)

	s.logger.Printf("player %s joined room %s", playerName, roomCode)
	s.publish(EventPlayerJoined, roomRef(roomCode), map[string]any{"player": playerName})
}

func (s *Server) handleStartGame(t *table, sess *session) {
	m, ok := t.memberships[sess.id]
	if !ok {
		return
	}
	room, ok := t.rooms[m.code]
	if !ok {
		return
	}
	if m.playerID != room.HostID {
		s.logger.Printf("start_game from non-host %s in room %s ignored", m.playerID, room.Code)
		return
	}

	room.GameStarted = true
	s.broadcast(room, proto.ServerEnvelope{Type: proto.TypeGameStarted}, "")
	s.logger.Printf("game started in room %s", room.Code)
	s.publish(EventGameStarted, roomRef(room.Code), nil)
}

func (s *Server) handleGameData(t *table, sess *session, data json.RawMessage) {
	m, ok := t.memberships[sess.id]
	if !ok {
		return
	}
	room, ok := t.rooms[m.code]
	if !ok {
		return
	}
	if len(data) == 0 {
		s.metrics.MalformedDropped.Inc()
		return
	}

	// Opaque relay: the payload is never validated here. The sender
	// never gets its own message back.
	s.broadcast(room, proto.ServerEnvelope{
		Type:     proto.TypeGameData,
		SenderID: m.playerID,
		GameData: data,
	}, m.playerID)
	s.metrics.MessagesRouted.Inc()
}

func (s *Server) handleDisconnect(t *table, sess *session) {
	delete(t.sessions, sess.id)

	m, ok := t.memberships[sess.id]
	if !ok {
		return
	}
	delete(t.memberships, sess.id)

	room, ok := t.rooms[m.code]
	if !ok {
		return
	}
	removed, hostChanged := room.remove(m.playerID)
	if !removed {
		return
	}
	s.logger.Printf("player %s left room %s", m.playerID, room.Code)

	if len(room.Participants) == 0 {
		delete(t.rooms, room.Code)
		s.updateGauges(t)
		s.logger.Printf("room %s closed (empty)", room.Code)
		s.publish(EventRoomClosed, roomRef(room.Code), nil)
		return
	}

	s.updateGauges(t)
	s.broadcast(room, proto.ServerEnvelope{
		Type:     proto.TypePlayerLeft,
		PlayerID: m.playerID,
		Players:  room.roster(),
	}, "")
	s.publish(EventPlayerLeft, roomRef(room.Code), map[string]any{"player": m.playerID})
	if hostChanged {
		s.logger.Printf("room %s host migrated to %s", room.Code, room.HostID)
		s.publish(EventHostMigrated, roomRef(room.Code), map[string]any{"host": room.HostID})
	}
}

func (s *Server) send(sess *session, env proto.ServerEnvelope) {
	data, err := json.Marshal(env)
	if err != nil {
		s.logger.Printf("failed to marshal %s envelope: %v", env.Type, err)
		return
	}
	if !sess.enqueue(data) {
		// Slow or dead consumer: closing the socket makes its read
		// pump post the disconnect, which removes it from the room.
		s.logger.Printf("send queue full for %s, dropping connection", sess.id)
		sess.close()
	}
}

// broadcast sends env to every participant except exceptID.
func (s *Server) broadcast(room *Room, env proto.ServerEnvelope, exceptID string) {
	data, err := json.Marshal(env)
	if err != nil {
		s.logger.Printf("failed to marshal %s envelope: %v", env.Type, err)
		return
	}
	for _, p := range room.Participants {
		if p.ID == exceptID {
			continue
		}
		if !p.sess.enqueue(data) {
			s.logger.Printf("send queue full for %s, dropping connection", p.sess.id)
			p.sess.close()
		}
	}
}

func (s *Server) sendError(sess *session, message string) {
	s.send(sess, proto.ServerEnvelope{Type: proto.TypeError, Message: message})
}

func (s *Server) updateGauges(t *table) {
	s.metrics.RoomsLive.Set(float64(len(t.rooms)))
	s.metrics.ParticipantsLive.Set(float64(t.participantCount()))
}

func (s *Server) publish(eventType logging.EventType, actor logging.EntityRef, payload any) {
	s.pub.Publish(context.Background(), logging.Event{
		Type:     eventType,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryRelay,
		Payload:  payload,
	})
}

func roomRef(code string) logging.EntityRef {
	return logging.EntityRef{ID: code, Kind: logging.EntityKindRoom}
}

// session is one websocket connection. Outbound traffic goes through a
// buffered channel drained by writePump so the actor never blocks on a
// socket write.
type session struct {
	id   uuid.UUID
	conn *websocket.Conn
	out  chan []byte
	quit chan struct{}
	once sync.Once
}

func (s *session) enqueue(data []byte) bool {
	select {
	case s.out <- data:
		return true
	case <-s.quit:
		return false
	default:
		return false
	}
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.quit)
		s.conn.Close()
	})
}

func (s *session) writePump() {
	for {
		select {
		case data := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.close()
				return
			}
		case <-s.quit:
			return
		}
	}
}
