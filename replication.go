package neukoelln

import (
	"time"

	"github.com/pepperonas/neukoelln/proto"
)

// ShadowPlayer mirrors a remote participant. It has no simulation of its
// own; every field is the last received snapshot value.
type ShadowPlayer struct {
	handle    EntityHandle
	Position  proto.Vec3
	Rotation  float64
	Health    float64
	InVehicle bool
}

// ShadowVehicle mirrors a remote participant's vehicle, keyed by the
// owning participant rather than by vehicle id.
type ShadowVehicle struct {
	handle    EntityHandle
	ID        string
	Position  proto.Vec3
	Rotation  float64
	Speed     float64
	HasDriver bool
	DriverID  string
}

// ShadowRegistry turns received snapshots into shadow-entity mutations.
// Players and vehicles live in separate maps keyed by sender id, so no
// id prefixing is ever needed. All methods run on the caller's
// goroutine; the game serializes access.
type ShadowRegistry struct {
	factory  EntityFactory
	players  map[string]*ShadowPlayer
	vehicles map[string]*ShadowVehicle
}

func NewShadowRegistry(factory EntityFactory) *ShadowRegistry {
	return &ShadowRegistry{
		factory:  factory,
		players:  make(map[string]*ShadowPlayer),
		vehicles: make(map[string]*ShadowVehicle),
	}
}

// Apply upserts the shadow state for one sender. Applying the same
// snapshot twice is a no-op beyond redundant writes: every field is a
// last-value overwrite and entity creation happens at most once per
// sender lifetime.
func (r *ShadowRegistry) Apply(senderID string, snap proto.PlayerUpdate) {
	player, ok := r.players[senderID]
	if !ok {
		player = &ShadowPlayer{handle: r.factory.CreatePlayer(true)}
		r.players[senderID] = player
	}

	player.Position = snap.Position
	player.Rotation = snap.Rotation
	player.Health = snap.Health
	player.InVehicle = snap.InVehicle
	player.handle.SetPosition(snap.Position.X, snap.Position.Y, snap.Position.Z)
	player.handle.SetRotation(snap.Rotation)
	// A driver's own mesh is suppressed, same as the local rule.
	player.handle.SetVisible(!snap.InVehicle)

	if snap.Vehicle == nil {
		return
	}
	vehicle, ok := r.vehicles[senderID]
	if !ok {
		vehicle = &ShadowVehicle{handle: r.factory.CreateVehicle(true)}
		r.vehicles[senderID] = vehicle
	}
	vehicle.ID = snap.Vehicle.ID
	vehicle.Position = snap.Vehicle.Position
	vehicle.Rotation = snap.Vehicle.Rotation
	vehicle.Speed = snap.Vehicle.Speed
	vehicle.HasDriver = snap.Vehicle.HasDriver
	vehicle.handle.SetPosition(snap.Vehicle.Position.X, snap.Vehicle.Position.Y, snap.Vehicle.Position.Z)
	vehicle.handle.SetRotation(snap.Vehicle.Rotation)
	if snap.Vehicle.HasDriver && snap.InVehicle {
		vehicle.DriverID = senderID
	} else {
		vehicle.DriverID = ""
	}
}

// Remove destroys the sender's shadow entities. Called on player_left;
// replication itself has no liveness timeout.
func (r *ShadowRegistry) Remove(senderID string) {
	if player, ok := r.players[senderID]; ok {
		player.handle.Remove()
		delete(r.players, senderID)
	}
	if vehicle, ok := r.vehicles[senderID]; ok {
		vehicle.handle.Remove()
		delete(r.vehicles, senderID)
	}
}

func (r *ShadowRegistry) Player(senderID string) (*ShadowPlayer, bool) {
	p, ok := r.players[senderID]
	return p, ok
}

func (r *ShadowRegistry) Vehicle(senderID string) (*ShadowVehicle, bool) {
	v, ok := r.vehicles[senderID]
	return v, ok
}

func (r *ShadowRegistry) PlayerCount() int { return len(r.players) }

// eachPlayer visits shadows in unspecified order.
func (r *ShadowRegistry) eachPlayer(fn func(id string, p *ShadowPlayer) bool) {
	for id, p := range r.players {
		if !fn(id, p) {
			return
		}
	}
}

func (r *ShadowRegistry) eachVehicle(fn func(id string, v *ShadowVehicle) bool) {
	for id, v := range r.vehicles {
		if !fn(id, v) {
			return
		}
	}
}

// intervalClock fires at a fixed period driven by simulation time. It
// paces the snapshot broadcast and the world-request retry.
type intervalClock struct {
	period  time.Duration
	elapsed time.Duration
}

func newIntervalClock(period time.Duration) intervalClock {
	return intervalClock{period: period}
}

// tick reports whether the period elapsed, consuming it if so.
func (c *intervalClock) tick(dt time.Duration) bool {
	c.elapsed += dt
	if c.elapsed < c.period {
		return false
	}
	c.elapsed -= c.period
	return true
}
