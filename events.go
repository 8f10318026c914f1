package neukoelln

import (
	"sync"

	"github.com/pepperonas/neukoelln/proto"
)

// Feed is a typed observer list. Any number of subscribers receive each
// published value; subscribing returns a cancel func that removes the
// subscriber again.
type Feed[T any] struct {
	mu   sync.Mutex
	next int
	subs map[int]func(T)
}

func (f *Feed[T]) Subscribe(fn func(T)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[int]func(T))
	}
	id := f.next
	f.next++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *Feed[T]) publish(value T) {
	f.mu.Lock()
	fns := make([]func(T), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(value)
	}
}

// RoomEvent accompanies room_created and room_joined.
type RoomEvent struct {
	Code    string
	Players []proto.Player
}

type PlayerJoinedEvent struct {
	Player  proto.Player
	Players []proto.Player
}

type PlayerLeftEvent struct {
	PlayerID string
	Players  []proto.Player
}

// GameDataEvent is one decoded game-data payload from a room peer.
type GameDataEvent struct {
	SenderID string
	Event    proto.GameEvent
}

type ErrorEvent struct {
	Message string
}

// SessionEvents is the session's notification surface. Multiple
// concerns (replication, combat, UI) subscribe side by side.
type SessionEvents struct {
	RoomCreated  Feed[RoomEvent]
	RoomJoined   Feed[RoomEvent]
	PlayerJoined Feed[PlayerJoinedEvent]
	PlayerLeft   Feed[PlayerLeftEvent]
	PlayerList   Feed[[]proto.Player]
	GameStarted  Feed[struct{}]
	GameData     Feed[GameDataEvent]
	Error        Feed[ErrorEvent]
	Disconnected Feed[struct{}]
}
