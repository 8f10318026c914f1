package neukoelln

import "time"

// Gameplay and protocol cadence constants.
const (
	// SnapshotInterval is the replication broadcast period.
	SnapshotInterval = 100 * time.Millisecond

	// WorldSettleDelay is how long the host waits after game start
	// before the one-shot world_data broadcast. It only papers over
	// connection warm-up; joiners that miss the broadcast recover by
	// requesting the world.
	WorldSettleDelay = time.Second

	// WorldRequestInterval is how often a joiner asks for the world
	// while it has not received one yet.
	WorldRequestInterval = 2 * time.Second

	// RestartCountdown runs between local death and the round reset.
	RestartCountdown = 5 * time.Second
)

// Health and combat tuning.
const (
	MaxHealth        = 100.0
	VehicleMaxHealth = 100.0

	// ProjectileSpeed is distance per simulation step at the reference
	// 60 Hz rate; projectile motion scales it by elapsed time.
	ProjectileSpeed     = 0.5
	ProjectileLifetime  = 1500 * time.Millisecond
	ProjectileMinDamage = 15.0
	ProjectileMaxDamage = 35.0

	simulationStepRate = 60.0

	playerHitRadius  = 1.0
	vehicleHitRadius = 2.0
)

// World generation tuning. The city is a square of CityHalfSize in each
// direction with two axis-aligned roads through the origin that stay
// clear of buildings.
const (
	CityHalfSize      = 40.0
	BuildingCount     = 15
	RoadMargin        = 3.0
	BuildingMinSide   = 3.0
	BuildingMaxSide   = 8.0
	BuildingMinHeight = 5.0
	BuildingMaxHeight = 15.0
)
