package neukoelln

import (
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/pepperonas/neukoelln/proto"
)

// Projectile is a locally simulated shot. Every peer runs the same
// flight from the same initial conditions; no messages describe it after
// the player_shoot that announced it.
type Projectile struct {
	ID        uuid.UUID
	OwnerID   string
	Position  proto.Vec3
	Direction proto.Vec3
	Speed     float64
	Damage    float64
	Age       time.Duration

	// consumed marks a projectile that already caused its one outcome.
	// It must never cause a second one, even within the same pass.
	consumed bool
}

// HitKind names what a projectile hit, in the priority order hits are
// resolved.
type HitKind int

const (
	HitBuilding HitKind = iota
	HitShadowPlayer
	HitShadowVehicle
	HitLocalPlayer
	HitLocalVehicle
)

// Hit is one resolved projectile outcome. At most one Hit ever exists
// per projectile.
type Hit struct {
	Kind     HitKind
	OwnerID  string
	TargetID string
	Damage   float64
}

// Combat simulates all live projectiles, local and remote. Hit handling
// (sending damage requests, applying local damage) is the game's job;
// Combat only decides what was hit.
type Combat struct {
	localID     string
	rng         *rand.Rand
	projectiles []*Projectile
}

func NewCombat(localID string, rng *rand.Rand) *Combat {
	return &Combat{localID: localID, rng: rng}
}

// Fire spawns a projectile owned by the local player and returns the
// announcement to broadcast. Damage is rolled per shot.
func (c *Combat) Fire(position, direction proto.Vec3) proto.PlayerShoot {
	shot := proto.PlayerShoot{
		Position:  position,
		Direction: normalize(direction),
		Speed:     ProjectileSpeed,
		// Whole-point roll, 15 to 35 inclusive.
		Damage:    ProjectileMinDamage + float64(c.rng.Intn(int(ProjectileMaxDamage-ProjectileMinDamage)+1)),
	}
	c.spawn(c.localID, shot)
	return shot
}

// SpawnRemote instantiates the projectile a peer announced.
func (c *Combat) SpawnRemote(ownerID string, shot proto.PlayerShoot) {
	c.spawn(ownerID, shot)
}

func (c *Combat) spawn(ownerID string, shot proto.PlayerShoot) {
	c.projectiles = append(c.projectiles, &Projectile{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Position:  shot.Position,
		Direction: normalize(shot.Direction),
		Speed:     shot.Speed,
		Damage:    shot.Damage,
	})
}

// Live returns the number of in-flight projectiles.
func (c *Combat) Live() int { return len(c.projectiles) }

// Clear drops every projectile, used on round reset.
func (c *Combat) Clear() { c.projectiles = nil }

// Advance moves every projectile by dt and resolves collisions in
// priority order: building, remote shadow player, remote shadow vehicle,
// local player, local vehicle. The first intersection consumes the
// projectile; expiry consumes it with no outcome. A projectile never
// tests against its own owner.
func (c *Combat) Advance(dt time.Duration, obstacles []Box, shadows *ShadowRegistry, local *LocalPlayer, vehicle *LocalVehicle) []Hit {
	var hits []Hit
	kept := c.projectiles[:0]

	for _, p := range c.projectiles {
		if p.consumed {
			continue
		}
		p.Age += dt
		if p.Age > ProjectileLifetime {
			p.consumed = true
			continue
		}

		step := p.Speed * simulationStepRate * dt.Seconds()
		p.Position.X += p.Direction.X * step
		p.Position.Y += p.Direction.Y * step
		p.Position.Z += p.Direction.Z * step

		if hit, ok := c.resolve(p, obstacles, shadows, local, vehicle); ok {
			p.consumed = true
			hits = append(hits, hit)
			continue
		}
		kept = append(kept, p)
	}

	c.projectiles = kept
	return hits
}

func (c *Combat) resolve(p *Projectile, obstacles []Box, shadows *ShadowRegistry, local *LocalPlayer, vehicle *LocalVehicle) (Hit, bool) {
	for _, box := range obstacles {
		if box.Contains(p.Position) {
			return Hit{Kind: HitBuilding, OwnerID: p.OwnerID}, true
		}
	}

	var hit Hit
	var found bool
	shadows.eachPlayer(func(id string, sp *ShadowPlayer) bool {
		if id == p.OwnerID || sp.InVehicle {
			return true
		}
		if distance(p.Position, sp.Position) <= playerHitRadius {
			hit = Hit{Kind: HitShadowPlayer, OwnerID: p.OwnerID, TargetID: id, Damage: p.Damage}
			found = true
			return false
		}
		return true
	})
	if found {
		return hit, true
	}

	shadows.eachVehicle(func(id string, sv *ShadowVehicle) bool {
		if id == p.OwnerID {
			return true
		}
		if distance(p.Position, sv.Position) <= vehicleHitRadius {
			hit = Hit{Kind: HitShadowVehicle, OwnerID: p.OwnerID, TargetID: id, Damage: p.Damage}
			found = true
			return false
		}
		return true
	})
	if found {
		return hit, true
	}

	if p.OwnerID != c.localID && local != nil && local.Alive() {
		if !local.InVehicle && distance(p.Position, local.Position) <= playerHitRadius {
			return Hit{Kind: HitLocalPlayer, OwnerID: p.OwnerID, TargetID: c.localID, Damage: p.Damage}, true
		}
		if vehicle != nil && distance(p.Position, vehicle.Position) <= vehicleHitRadius {
			return Hit{Kind: HitLocalVehicle, OwnerID: p.OwnerID, TargetID: c.localID, Damage: p.Damage}, true
		}
	}

	return Hit{}, false
}

func distance(a, b proto.Vec3) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func normalize(v proto.Vec3) proto.Vec3 {
	length := math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
	if length == 0 {
		return proto.Vec3{Z: 1}
	}
	return proto.Vec3{X: v.X / length, Y: v.Y / length, Z: v.Z / length}
}
