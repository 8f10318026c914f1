package neukoelln

import (
	"sync"
	"time"

	"github.com/pepperonas/neukoelln/proto"
)

// fakeHandle records the calls the game makes against a scene entity.
type fakeHandle struct {
	mu       sync.Mutex
	position proto.Vec3
	rotation float64
	visible  bool
	removed  bool
	moves    int
}

func (h *fakeHandle) SetPosition(x, y, z float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.position = proto.Vec3{X: x, Y: y, Z: z}
	h.moves++
}

func (h *fakeHandle) SetRotation(angle float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rotation = angle
}

func (h *fakeHandle) SetVisible(visible bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.visible = visible
}

func (h *fakeHandle) Remove() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed = true
}

func (h *fakeHandle) snapshot() (proto.Vec3, float64, bool, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.position, h.rotation, h.visible, h.removed
}

// handleState unwraps a fake handle for assertions: position, rotation,
// visible, removed.
func handleState(h EntityHandle) (proto.Vec3, float64, bool, bool) {
	return h.(*fakeHandle).snapshot()
}

type createdBuilding struct {
	x, z, width, depth, height float64
	handle                     *fakeHandle
}

// fakeFactory stands in for the scene graph.
type fakeFactory struct {
	mu        sync.Mutex
	players   []*fakeHandle
	vehicles  []*fakeHandle
	buildings []createdBuilding
}

func newFakeFactory() *fakeFactory { return &fakeFactory{} }

func (f *fakeFactory) CreatePlayer(remote bool) EntityHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := &fakeHandle{visible: true}
	f.players = append(f.players, h)
	return h
}

func (f *fakeFactory) CreateVehicle(remote bool) EntityHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := &fakeHandle{visible: true}
	f.vehicles = append(f.vehicles, h)
	return h
}

func (f *fakeFactory) CreateBuilding(x, z, width, depth, height float64) EntityHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := &fakeHandle{visible: true}
	f.buildings = append(f.buildings, createdBuilding{x: x, z: z, width: width, depth: depth, height: height, handle: h})
	return h
}

func (f *fakeFactory) entityCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.players) + len(f.vehicles) + len(f.buildings)
}

func (f *fakeFactory) buildingList() []createdBuilding {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]createdBuilding, len(f.buildings))
	copy(out, f.buildings)
	return out
}

func (f *fakeFactory) playerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.players)
}

// recordingUI captures HUD calls for assertions.
type recordingUI struct {
	mu          sync.Mutex
	health      []float64
	damage      []float64
	hitMarkers  int
	deaths      int
	scoreboards [][]ScoreEntry
}

func (u *recordingUI) ShowHealth(current, max float64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.health = append(u.health, current)
}

func (u *recordingUI) ShowDamageIndicator(amount float64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.damage = append(u.damage, amount)
}

func (u *recordingUI) ShowHitMarker() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.hitMarkers++
}

func (u *recordingUI) ShowScoreboard(entries []ScoreEntry) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.scoreboards = append(u.scoreboards, entries)
}

func (u *recordingUI) ShowDeathScreen(string, time.Duration) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.deaths++
}

func (u *recordingUI) hitMarkerCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hitMarkers
}

func (u *recordingUI) deathCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.deaths
}
