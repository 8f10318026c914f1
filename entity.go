package neukoelln

import "time"

// EntityHandle is the narrow surface the game needs from a rendered
// entity. The scene graph behind it is not this module's concern.
type EntityHandle interface {
	SetPosition(x, y, z float64)
	SetRotation(angle float64)
	SetVisible(visible bool)
	Remove()
}

// EntityFactory creates rendered entities. Remote entities get a
// distinct visual marker so players can tell shadows from themselves.
type EntityFactory interface {
	CreatePlayer(remote bool) EntityHandle
	CreateVehicle(remote bool) EntityHandle
	CreateBuilding(x, z, width, depth, height float64) EntityHandle
}

// UI is the HUD surface consumed by the game.
type UI interface {
	ShowHealth(current, max float64)
	ShowDamageIndicator(amount float64)
	ShowHitMarker()
	ShowScoreboard(entries []ScoreEntry)
	ShowDeathScreen(killerName string, countdown time.Duration)
}

type nopUI struct{}

func (nopUI) ShowHealth(float64, float64)           {}
func (nopUI) ShowDamageIndicator(float64)           {}
func (nopUI) ShowHitMarker()                        {}
func (nopUI) ShowScoreboard([]ScoreEntry)           {}
func (nopUI) ShowDeathScreen(string, time.Duration) {}

// NopUI returns a UI that ignores every call, for headless use.
func NopUI() UI { return nopUI{} }
