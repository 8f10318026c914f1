package neukoelln

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/pepperonas/neukoelln/logging"
	"github.com/pepperonas/neukoelln/proto"
)

const (
	EventWorldGenerated logging.EventType = "world.generated"
	EventWorldApplied   logging.EventType = "world.applied"
	EventPlayerKilled   logging.EventType = "combat.player_killed"
	EventRoundReset     logging.EventType = "combat.round_reset"
)

type GameConfig struct {
	Session   *Session
	Factory   EntityFactory
	UI        UI
	Logger    *log.Logger
	Publisher logging.Publisher
	Rand      *rand.Rand
}

// Game drives one match over a session: world bootstrap, the snapshot
// broadcast, shadow reconciliation, projectile simulation and the round
// lifecycle. The owner calls Advance once per frame; inbound messages
// arrive on the session's read goroutine and both paths serialize on the
// game mutex.
type Game struct {
	session *Session
	factory EntityFactory
	ui      UI
	logger  *log.Logger
	pub     logging.Publisher
	rng     *rand.Rand

	mu      sync.Mutex
	world   *WorldBootstrap
	shadows *ShadowRegistry
	combat  *Combat
	scores  *Scoreboard
	round   *Round
	player  *LocalPlayer
	vehicle *LocalVehicle

	running       bool
	awaitingWorld bool
	hostSettle    time.Duration
	worldSent     bool
	snapshotClock intervalClock
	worldAskClock intervalClock

	unsubs []func()
}

func NewGame(cfg GameConfig) *Game {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = logging.NopPublisher()
	}
	ui := cfg.UI
	if ui == nil {
		ui = NopUI()
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	g := &Game{
		session:       cfg.Session,
		factory:       cfg.Factory,
		ui:            ui,
		logger:        logger,
		pub:           pub,
		rng:           rng,
		world:         NewWorldBootstrap(cfg.Factory),
		shadows:       NewShadowRegistry(cfg.Factory),
		scores:        NewScoreboard(),
		round:         NewRound(),
		snapshotClock: newIntervalClock(SnapshotInterval),
		worldAskClock: newIntervalClock(WorldRequestInterval),
	}

	events := cfg.Session.Events()
	g.unsubs = append(g.unsubs,
		events.GameStarted.Subscribe(func(struct{}) { g.onGameStarted() }),
		events.GameData.Subscribe(g.onGameData),
		events.PlayerLeft.Subscribe(g.onPlayerLeft),
	)
	return g
}

// Close detaches the game from its session's feeds.
func (g *Game) Close() {
	for _, unsub := range g.unsubs {
		unsub()
	}
}

func (g *Game) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

func (g *Game) Player() *LocalPlayer {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.player
}

func (g *Game) Vehicle() *LocalVehicle {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.vehicle
}

func (g *Game) Scores() []ScoreEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scores.Entries()
}

func (g *Game) onGameStarted() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session.IsHost() {
		world := GenerateWorld(g.rng)
		g.world.Apply(world)
		g.startSimulation()
		// One-shot broadcast after the settle delay; world_request
		// answers cover anyone who misses it.
		g.hostSettle = WorldSettleDelay
		g.logger.Printf("game: world generated with %d buildings", len(world.Buildings))
		g.publish(EventWorldGenerated, logging.EntityKindWorld, map[string]any{
			"buildings": len(world.Buildings),
		})
		return
	}

	// Joiners must not create any entity until the world arrives.
	g.awaitingWorld = true
}

func (g *Game) onGameData(ev GameDataEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch data := ev.Event.(type) {
	case proto.WorldRequest:
		if !g.session.IsHost() {
			return
		}
		if world, ok := g.world.World(); ok {
			g.session.SendGameData(world)
		}

	case proto.WorldData:
		if !g.world.Apply(data) {
			return
		}
		g.awaitingWorld = false
		g.startSimulation()
		g.logger.Printf("game: world received with %d buildings", len(data.Buildings))
		g.publish(EventWorldApplied, logging.EntityKindWorld, map[string]any{
			"buildings": len(data.Buildings),
		})

	case proto.PlayerUpdate:
		if !g.running {
			return
		}
		g.shadows.Apply(ev.SenderID, data)

	case proto.PlayerShoot:
		if !g.running {
			return
		}
		g.combat.SpawnRemote(ev.SenderID, data)

	case proto.PlayerDamage:
		if !g.running || data.TargetID != g.session.PlayerName() {
			return
		}
		g.applyLocalDamage(ev.SenderID, data.Damage)

	case proto.VehicleDamage:
		if !g.running || data.TargetID != g.session.PlayerName() {
			return
		}
		g.applyVehicleDamage(data.Damage)

	case proto.HitConfirmation:
		// Feedback addressed to the shooter; bystanders ignore it.
		if data.TargetID != g.session.PlayerName() {
			return
		}
		g.ui.ShowHitMarker()

	case proto.ScoreUpdate:
		if g.scores.Apply(data.PlayerID, data.Score) {
			g.ui.ShowScoreboard(g.scores.Entries())
		}

	case proto.GameRestart:
		if !g.running {
			return
		}
		// A peer's restart pre-empts any local countdown.
		g.resetRound(false)

	default:
		g.logger.Printf("game: ignoring game data %s from %s", ev.Event.Kind(), ev.SenderID)
	}
}

func (g *Game) onPlayerLeft(ev PlayerLeftEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.shadows.Remove(ev.PlayerID)
}

// startSimulation spawns the local player once the world exists. Caller
// holds the game mutex.
func (g *Game) startSimulation() {
	if g.running {
		return
	}
	g.running = true
	g.combat = NewCombat(g.session.PlayerName(), g.rng)
	g.player = NewLocalPlayer(g.factory, g.spawnPoint())
	g.ui.ShowHealth(g.player.Health, MaxHealth)
}

// spawnPoint scatters respawns along the clear east-west road so players
// do not stack on the origin.
func (g *Game) spawnPoint() proto.Vec3 {
	return proto.Vec3{X: (g.rng.Float64()*2 - 1) * CityHalfSize / 2}
}

// Advance runs one simulation step of dt. The caller's frame loop is the
// only place this runs.
func (g *Game) Advance(dt time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.awaitingWorld {
		if g.worldAskClock.tick(dt) {
			g.session.SendGameData(proto.WorldRequest{})
		}
		return
	}
	if !g.running {
		return
	}

	if g.session.IsHost() && !g.worldSent {
		g.hostSettle -= dt
		if g.hostSettle <= 0 {
			g.worldSent = true
			if world, ok := g.world.World(); ok {
				g.session.SendGameData(world)
			}
		}
	}

	if g.snapshotClock.tick(dt) {
		g.session.SendGameData(BuildSnapshot(g.player, g.vehicle))
	}

	hits := g.combat.Advance(dt, g.world.Obstacles(), g.shadows, g.player, g.vehicle)
	for _, hit := range hits {
		g.handleHit(hit)
	}

	if g.round.Advance(dt) {
		g.resetRound(true)
	}
}

func (g *Game) handleHit(hit Hit) {
	localID := g.session.PlayerName()
	switch hit.Kind {
	case HitBuilding:
		// Absorbed, nothing to report.

	case HitShadowPlayer:
		// Shadow health is not authoritative; ask the victim to apply
		// the damage to itself.
		if hit.OwnerID == localID {
			g.session.SendGameData(proto.PlayerDamage{TargetID: hit.TargetID, Damage: hit.Damage})
		}

	case HitShadowVehicle:
		if hit.OwnerID == localID {
			g.session.SendGameData(proto.VehicleDamage{TargetID: hit.TargetID, Damage: hit.Damage})
		}

	case HitLocalPlayer:
		g.applyLocalDamage(hit.OwnerID, hit.Damage)
		g.session.SendGameData(proto.HitConfirmation{TargetID: hit.OwnerID})

	case HitLocalVehicle:
		g.applyVehicleDamage(hit.Damage)
		g.session.SendGameData(proto.HitConfirmation{TargetID: hit.OwnerID})
	}
}

// applyLocalDamage decrements local health; only this client ever does.
// Caller holds the game mutex.
func (g *Game) applyLocalDamage(attackerID string, damage float64) {
	if g.player == nil || !g.round.Active() {
		return
	}
	fatal := g.player.ApplyDamage(damage)
	g.ui.ShowDamageIndicator(damage)
	g.ui.ShowHealth(g.player.Health, MaxHealth)
	if fatal {
		g.onLocalDeath(attackerID)
	}
}

func (g *Game) applyVehicleDamage(damage float64) {
	if g.vehicle == nil {
		return
	}
	if g.vehicle.ApplyDamage(damage) {
		if g.player != nil && g.player.InVehicle {
			g.player.ExitVehicle()
		}
		g.vehicle.Remove()
		g.vehicle = nil
	}
}

func (g *Game) onLocalDeath(killerID string) {
	g.round.Kill()
	score := g.scores.Increment(killerID)
	g.session.SendGameData(proto.ScoreUpdate{PlayerID: killerID, Score: score})
	g.ui.ShowScoreboard(g.scores.Entries())
	g.ui.ShowDeathScreen(g.session.PlayerDisplayName(killerID), RestartCountdown)
	g.logger.Printf("game: killed by %s, restarting in %s", killerID, RestartCountdown)
	g.publish(EventPlayerKilled, logging.EntityKindPlayer, map[string]any{
		"killer": killerID,
		"score":  score,
	})
}

// resetRound restores positions, health and projectiles. When broadcast
// is set the reset is announced so peers reset in lockstep.
func (g *Game) resetRound(broadcast bool) {
	g.combat.Clear()
	if g.player != nil {
		g.player.Respawn(g.spawnPoint())
		g.ui.ShowHealth(g.player.Health, MaxHealth)
	}
	if g.vehicle != nil {
		g.vehicle.Health = VehicleMaxHealth
	}
	g.round.ForceReset()
	if broadcast {
		g.session.SendGameData(proto.GameRestart{Timestamp: time.Now().UnixMilli()})
	}
	g.publish(EventRoundReset, logging.EntityKindWorld, map[string]any{
		"broadcast": broadcast,
	})
}

// Fire shoots from the local player's position toward direction. Returns
// false while the round is inactive or the game is not running.
func (g *Game) Fire(direction proto.Vec3) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running || !g.round.Active() || g.player == nil {
		return false
	}
	origin := g.player.Position
	if g.player.InVehicle && g.vehicle != nil {
		origin = g.vehicle.Position
	}
	shot := g.combat.Fire(origin, direction)
	return g.session.SendGameData(shot)
}

// MovePlayer feeds the externally simulated player transform in.
func (g *Game) MovePlayer(pos proto.Vec3, rotation float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.player == nil {
		return
	}
	g.player.MoveTo(pos, rotation)
	if g.player.InVehicle && g.vehicle != nil {
		g.vehicle.MoveTo(pos, rotation)
	}
}

// MoveVehicle feeds the externally simulated vehicle transform in, for
// a vehicle moving without the player driving it.
func (g *Game) MoveVehicle(pos proto.Vec3, rotation, speed float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.vehicle == nil {
		return
	}
	g.vehicle.MoveTo(pos, rotation)
	g.vehicle.Speed = speed
}

// SpawnVehicle creates the local vehicle. There is at most one.
func (g *Game) SpawnVehicle(id string, at proto.Vec3) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running || g.vehicle != nil {
		return false
	}
	g.vehicle = NewLocalVehicle(g.factory, id, at)
	return true
}

func (g *Game) EnterVehicle() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.player == nil || g.vehicle == nil || g.player.InVehicle {
		return false
	}
	g.player.EnterVehicle()
	return true
}

func (g *Game) ExitVehicle() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.player == nil || !g.player.InVehicle {
		return false
	}
	g.player.ExitVehicle()
	return true
}

func (g *Game) publish(eventType logging.EventType, kind logging.EntityKind, payload any) {
	g.pub.Publish(context.Background(), logging.Event{
		Type:     eventType,
		Actor:    logging.EntityRef{ID: g.session.PlayerName(), Kind: kind},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}
