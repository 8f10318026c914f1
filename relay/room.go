package relay

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/pepperonas/neukoelln/proto"
)

// Participant is one connected player inside a room. The participant id
// is chosen by the client (the player name doubles as the id on the
// wire) and must be unique within the room at join time.
type Participant struct {
	ID   string
	Name string
	sess *session
}

// Room groups participants into one game session. The host is tracked
// explicitly rather than derived from list position; promotion rewrites
// HostID transactionally when the host leaves.
type Room struct {
	Code         string
	HostID       string
	GameStarted  bool
	Participants []*Participant
}

func (r *Room) roster() []proto.Player {
	players := make([]proto.Player, 0, len(r.Participants))
	for _, p := range r.Participants {
		players = append(players, proto.Player{
			ID:     p.ID,
			Name:   p.Name,
			IsHost: p.ID == r.HostID,
		})
	}
	return players
}

func (r *Room) participant(id string) *Participant {
	for _, p := range r.Participants {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// remove drops the named participant, reassigning the host role to the
// longest-joined remaining participant if the host left. Reports whether
// a participant was removed and whether the host changed.
func (r *Room) remove(id string) (removed, hostChanged bool) {
	for i, p := range r.Participants {
		if p.ID != id {
			continue
		}
		r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
		if r.HostID == id && len(r.Participants) > 0 {
			r.HostID = r.Participants[0].ID
			hostChanged = true
		}
		return true, hostChanged
	}
	return false, false
}

type membership struct {
	code     string
	playerID string
}

// table is the relay's only global state. It is owned by the server's
// actor goroutine and must never be touched from anywhere else.
type table struct {
	rng         *rand.Rand
	sessions    map[uuid.UUID]*session
	rooms       map[string]*Room
	memberships map[uuid.UUID]membership
}

func newTable(rng *rand.Rand) *table {
	return &table{
		rng:         rng,
		sessions:    make(map[uuid.UUID]*session),
		rooms:       make(map[string]*Room),
		memberships: make(map[uuid.UUID]membership),
	}
}

// newRoomCode draws uniform random 6-digit codes until one is unused
// among the live rooms.
func (t *table) newRoomCode() string {
	for {
		code := fmt.Sprintf("%d", 100000+t.rng.Intn(900000))
		if _, taken := t.rooms[code]; !taken {
			return code
		}
	}
}

func (t *table) participantCount() int {
	total := 0
	for _, room := range t.rooms {
		total += len(room.Participants)
	}
	return total
}
