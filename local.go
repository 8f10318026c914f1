package neukoelln

import "github.com/pepperonas/neukoelln/proto"

// LocalPlayer is the entity this client is authoritative over. Only the
// owner decrements its health; remote peers learn of it via snapshots.
type LocalPlayer struct {
	handle    EntityHandle
	Position  proto.Vec3
	Rotation  float64
	Health    float64
	InVehicle bool
}

func NewLocalPlayer(factory EntityFactory, spawn proto.Vec3) *LocalPlayer {
	p := &LocalPlayer{
		handle: factory.CreatePlayer(false),
		Health: MaxHealth,
	}
	p.MoveTo(spawn, 0)
	return p
}

func (p *LocalPlayer) MoveTo(pos proto.Vec3, rotation float64) {
	p.Position = pos
	p.Rotation = rotation
	p.handle.SetPosition(pos.X, pos.Y, pos.Z)
	p.handle.SetRotation(rotation)
}

func (p *LocalPlayer) Alive() bool { return p.Health > 0 }

// ApplyDamage decrements health, clamped at zero. Reports whether this
// hit was fatal.
func (p *LocalPlayer) ApplyDamage(amount float64) (fatal bool) {
	if p.Health <= 0 {
		return false
	}
	p.Health -= amount
	if p.Health <= 0 {
		p.Health = 0
		return true
	}
	return false
}

func (p *LocalPlayer) Respawn(spawn proto.Vec3) {
	p.Health = MaxHealth
	p.InVehicle = false
	p.handle.SetVisible(true)
	p.MoveTo(spawn, 0)
}

// EnterVehicle suppresses the player visual while driving.
func (p *LocalPlayer) EnterVehicle() {
	p.InVehicle = true
	p.handle.SetVisible(false)
}

func (p *LocalPlayer) ExitVehicle() {
	p.InVehicle = false
	p.handle.SetVisible(true)
}

// LocalVehicle is the vehicle this client owns, replicated as the
// nested vehicle snapshot inside player updates.
type LocalVehicle struct {
	handle   EntityHandle
	ID       string
	Position proto.Vec3
	Rotation float64
	Speed    float64
	Health   float64
}

func NewLocalVehicle(factory EntityFactory, id string, spawn proto.Vec3) *LocalVehicle {
	v := &LocalVehicle{
		handle: factory.CreateVehicle(false),
		ID:     id,
		Health: VehicleMaxHealth,
	}
	v.MoveTo(spawn, 0)
	return v
}

func (v *LocalVehicle) MoveTo(pos proto.Vec3, rotation float64) {
	v.Position = pos
	v.Rotation = rotation
	v.handle.SetPosition(pos.X, pos.Y, pos.Z)
	v.handle.SetRotation(rotation)
}

func (v *LocalVehicle) ApplyDamage(amount float64) (destroyed bool) {
	if v.Health <= 0 {
		return false
	}
	v.Health -= amount
	if v.Health <= 0 {
		v.Health = 0
		return true
	}
	return false
}

func (v *LocalVehicle) Remove() {
	v.handle.Remove()
}

// BuildSnapshot serializes the local state for one replication tick.
// vehicle may be nil; driver is whether the local player drives it.
func BuildSnapshot(p *LocalPlayer, v *LocalVehicle) proto.PlayerUpdate {
	snap := proto.PlayerUpdate{
		Position:  p.Position,
		Rotation:  p.Rotation,
		Health:    p.Health,
		InVehicle: p.InVehicle,
	}
	if v != nil {
		snap.Vehicle = &proto.VehicleSnapshot{
			ID:        v.ID,
			Position:  v.Position,
			Rotation:  v.Rotation,
			Speed:     v.Speed,
			HasDriver: p.InVehicle,
		}
	}
	return snap
}
