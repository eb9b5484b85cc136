package client

import (
	"fmt"
	"sort"
	"sync"

	"voxelfarm.ai/internal/bot"
	"voxelfarm.ai/internal/geom"
	"voxelfarm.ai/internal/protocol"
	"voxelfarm.ai/internal/protocol/voxcodec"
	"voxelfarm.ai/internal/registry"
)

// View is the agent's latest observation of the world. Each OBS replaces the
// window, metadata and entity list wholesale, so readers work on snapshots.
type View struct {
	mu sync.RWMutex

	tick     uint64
	self     geom.Vec3
	window   *voxcodec.Window
	meta     map[geom.Vec3]int
	entities []bot.Entity
	items    registry.Palette
}

type snapshot struct {
	window *voxcodec.Window
	meta   map[geom.Vec3]int
}

func (v *View) snapshot() snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return snapshot{window: v.window, meta: v.meta}
}

func (s snapshot) block(p geom.Vec3) (bot.Block, bool) {
	id, ok := s.window.At(p.X, p.Y, p.Z)
	if !ok {
		return bot.Block{}, false
	}
	return bot.Block{Type: registry.BlockID(id), Pos: p, Maturity: s.meta[p]}, true
}

func (v *View) setItems(p registry.Palette) {
	v.mu.Lock()
	v.items = p
	v.mu.Unlock()
}

// reset forgets the voxel window so the next OBS must carry a full RLE payload.
func (v *View) reset() {
	v.mu.Lock()
	v.window = nil
	v.mu.Unlock()
}

func (v *View) apply(o protocol.ObsMsg) error {
	v.mu.RLock()
	prev := v.window
	items := v.items
	v.mu.RUnlock()

	w, err := voxcodec.Decode(o.Voxels, prev)
	if err != nil {
		return fmt.Errorf("obs tick=%d: %w", o.Tick, err)
	}
	center := geom.FromArray(o.Voxels.Center)
	meta := make(map[geom.Vec3]int, len(o.Voxels.Meta))
	for _, m := range o.Voxels.Meta {
		meta[center.Add(geom.FromArray(m.D))] = m.V
	}
	ents := make([]bot.Entity, 0, len(o.Entities))
	for _, e := range o.Entities {
		be := bot.Entity{ID: e.ID, Kind: e.Type, Pos: geom.FromArray(e.Pos)}
		if e.Item != "" {
			if id, ok := items.Lookup(e.Item); ok {
				be.Item = registry.ItemID(id)
				be.HasItem = true
			}
		}
		ents = append(ents, be)
	}

	v.mu.Lock()
	v.tick = o.Tick
	v.self = geom.FromArray(o.Self.Pos)
	v.window = w
	v.meta = meta
	v.entities = ents
	v.mu.Unlock()
	return nil
}

func (v *View) Tick() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.tick
}

func (v *View) Self() geom.Vec3 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.self
}

func (v *View) BlockAt(p geom.Vec3) (bot.Block, bool) {
	return v.snapshot().block(p)
}

// FindBlocks scans the part of the observed window within maxRadius of origin.
func (v *View) FindBlocks(origin geom.Vec3, match func(bot.Block) bool, maxRadius, maxResults int) []geom.Vec3 {
	s := v.snapshot()
	if s.window == nil || maxResults <= 0 {
		return nil
	}
	c, r := s.window.Center, s.window.Radius
	lo := func(o, w int) int { return max(o-maxRadius, w-r) }
	hi := func(o, w int) int { return min(o+maxRadius, w+r) }

	type hit struct {
		p  geom.Vec3
		d2 int
	}
	var hits []hit
	r2 := maxRadius * maxRadius
	for y := lo(origin.Y, c[1]); y <= hi(origin.Y, c[1]); y++ {
		for z := lo(origin.Z, c[2]); z <= hi(origin.Z, c[2]); z++ {
			for x := lo(origin.X, c[0]); x <= hi(origin.X, c[0]); x++ {
				p := geom.Vec3{X: x, Y: y, Z: z}
				d2 := p.DistanceSq(origin)
				if d2 > r2 {
					continue
				}
				b, ok := s.block(p)
				if ok && match(b) {
					hits = append(hits, hit{p: p, d2: d2})
				}
			}
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].d2 < hits[j].d2 })
	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}
	out := make([]geom.Vec3, len(hits))
	for i, h := range hits {
		out[i] = h.p
	}
	return out
}

func (v *View) NearestEntity(match func(bot.Entity) bool) (bot.Entity, bool) {
	v.mu.RLock()
	ents := v.entities
	self := v.self
	v.mu.RUnlock()

	var best bot.Entity
	bestD := -1
	for _, e := range ents {
		if !match(e) {
			continue
		}
		if d := e.Pos.DistanceSq(self); bestD < 0 || d < bestD {
			best, bestD = e, d
		}
	}
	return best, bestD >= 0
}
