package bot

import (
	"voxelfarm.ai/internal/future"
	"voxelfarm.ai/internal/geom"
	"voxelfarm.ai/internal/registry"
)

// Block is a point lookup result.
type Block struct {
	Type     registry.BlockID
	Pos      geom.Vec3
	Maturity int
}

// EntityItem is the kind of a dropped item entity.
const EntityItem = "ITEM"

type Entity struct {
	ID      string
	Kind    string
	Pos     geom.Vec3
	Item    registry.ItemID
	HasItem bool
}

// World is the synchronous view of the world around the agent.
type World interface {
	Self() geom.Vec3
	// FindBlocks returns up to maxResults positions within maxRadius of origin
	// whose block satisfies match, nearest first.
	FindBlocks(origin geom.Vec3, match func(Block) bool, maxRadius, maxResults int) []geom.Vec3
	BlockAt(p geom.Vec3) (Block, bool)
	NearestEntity(match func(Entity) bool) (Entity, bool)
}

type Slot string

const SlotHand Slot = "hand"

type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Actions issues world interactions. Every call except Emote returns a future
// that resolves once the world reports success or failure.
type Actions interface {
	NavigateTo(goal geom.Vec3, tolerance float64) future.Future
	Dig(b Block) future.Future
	Place(b Block, face geom.Vec3) future.Future
	Equip(item registry.ItemID, slot Slot) future.Future
	Emote(side Side)
}

// Canceler is implemented by Actions that can abandon outstanding world work
// when the scheduler stops awaiting it.
type Canceler interface {
	CancelPending()
}

// Replier sends a direct reply to a command sender.
type Replier interface {
	Reply(to, text string)
}
