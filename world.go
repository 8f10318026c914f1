package neukoelln

import (
	"math"
	"math/rand"
	"sync"

	"github.com/pepperonas/neukoelln/proto"
)

// GenerateWorld lays out the static city for one match. Only the host
// calls this; everyone else instantiates the exact building list it
// broadcasts, so per-client seeds never need to match.
func GenerateWorld(rng *rand.Rand) proto.WorldData {
	buildings := make([]proto.Building, 0, BuildingCount)
	for len(buildings) < BuildingCount {
		width := BuildingMinSide + rng.Float64()*(BuildingMaxSide-BuildingMinSide)
		depth := BuildingMinSide + rng.Float64()*(BuildingMaxSide-BuildingMinSide)
		height := BuildingMinHeight + rng.Float64()*(BuildingMaxHeight-BuildingMinHeight)
		x := (rng.Float64()*2 - 1) * CityHalfSize
		z := (rng.Float64()*2 - 1) * CityHalfSize
		// The whole footprint must stay off the two roads through the
		// origin, not just the center.
		if math.Abs(x)-width/2 < RoadMargin || math.Abs(z)-depth/2 < RoadMargin {
			continue
		}
		buildings = append(buildings, proto.Building{
			Position: proto.Vec3{X: x, Y: 0, Z: z},
			Dimensions: proto.Dimensions{
				Width:  width,
				Height: height,
				Depth:  depth,
			},
		})
	}
	return proto.WorldData{Buildings: buildings}
}

// Box is an axis-aligned bounding box used for projectile collision.
type Box struct {
	Min, Max proto.Vec3
}

func (b Box) Contains(p proto.Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func buildingBox(b proto.Building) Box {
	halfW := b.Dimensions.Width / 2
	halfD := b.Dimensions.Depth / 2
	return Box{
		Min: proto.Vec3{X: b.Position.X - halfW, Y: b.Position.Y, Z: b.Position.Z - halfD},
		Max: proto.Vec3{X: b.Position.X + halfW, Y: b.Position.Y + b.Dimensions.Height, Z: b.Position.Z + halfD},
	}
}

// WorldBootstrap gates entity creation on the world descriptor. Exactly
// the first Apply wins; duplicates from resends are ignored.
type WorldBootstrap struct {
	factory EntityFactory

	mu        sync.Mutex
	ready     bool
	world     proto.WorldData
	buildings []EntityHandle
	obstacles []Box
}

func NewWorldBootstrap(factory EntityFactory) *WorldBootstrap {
	return &WorldBootstrap{factory: factory}
}

// Apply instantiates the listed buildings. Reports whether this call was
// the one that built the world.
func (b *WorldBootstrap) Apply(world proto.WorldData) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ready {
		return false
	}
	b.ready = true
	b.world = world

	for _, building := range world.Buildings {
		handle := b.factory.CreateBuilding(
			building.Position.X,
			building.Position.Z,
			building.Dimensions.Width,
			building.Dimensions.Depth,
			building.Dimensions.Height,
		)
		b.buildings = append(b.buildings, handle)
		b.obstacles = append(b.obstacles, buildingBox(building))
	}
	return true
}

func (b *WorldBootstrap) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// World returns the applied descriptor, for resending to late joiners.
func (b *WorldBootstrap) World() (proto.WorldData, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.world, b.ready
}

func (b *WorldBootstrap) Obstacles() []Box {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Box, len(b.obstacles))
	copy(out, b.obstacles)
	return out
}
