package bot

import (
	"voxelfarm.ai/internal/config"
	"voxelfarm.ai/internal/geom"
	"voxelfarm.ai/internal/registry"
)

type coverStep int

const (
	coverInit coverStep = iota
	coverFindInit
	coverFindOp
	movingToTarget
	equipping
	placeAt
	placing
)

var coverStepNames = [...]string{
	coverInit:      "Init",
	coverFindInit:  "FindInit",
	coverFindOp:    "FindOp",
	movingToTarget: "MovingToTarget",
	equipping:      "Equipping",
	placeAt:        "PlaceAt",
	placing:        "Placing",
}

func (s coverStep) String() string {
	if int(s) < len(coverStepNames) {
		return coverStepNames[s]
	}
	return "unknown"
}

// coverMachine lays the covering item on every free column of the surface
// the agent started on, spiralling outwards.
type coverMachine struct {
	st  coverStep
	ctx modeContext
	cfg config.Cover

	surface  registry.BlockID
	surfaceY int
}

func newCover(cfg config.Cover) *coverMachine {
	return &coverMachine{cfg: cfg}
}

func (m *coverMachine) reset() {
	m.st = coverInit
	m.ctx.clear()
	m.surface = 0
	m.surfaceY = 0
}

func (m *coverMachine) stepName() string { return m.st.String() }
func (m *coverMachine) atInitial() bool  { return m.st == coverInit }
func (m *coverMachine) resolve(err error) { m.ctx.record(err) }

func (m *coverMachine) step(env *Env) (Next, error) {
	c := &m.ctx
	switch m.st {
	case coverInit:
		self := env.World.Self()
		at, ok := env.World.BlockAt(self)
		if !ok {
			return Next{}, fatalf(ModeCover, m.st, "no block known at %v", self)
		}
		if at.Type != env.IDs.Air {
			return Next{}, fatalf(ModeCover, m.st, "agent must stand in air at %v, found %s", self, env.IDs.BlockName(at.Type))
		}
		below, ok := env.World.BlockAt(self.Add(geom.Down))
		if !ok {
			return Next{}, fatalf(ModeCover, m.st, "no block known beneath %v", self)
		}
		c.clear()
		m.surface = below.Type
		m.surfaceY = below.Pos.Y
		c.radius = m.cfg.MinDistance
		env.Log.Printf("cover: surface=%s y=%d", env.IDs.BlockName(m.surface), m.surfaceY)
		m.st = coverFindInit
		return Again(), nil

	case coverFindInit:
		c.drop()
		m.st = coverFindOp
		return Again(), nil

	case coverFindOp:
		return m.find(env)

	case movingToTarget:
		ok, err := c.take()
		if !ok {
			return Next{}, unreachable(ModeCover, m.st)
		}
		if err != nil {
			env.Log.Printf("cover: move failed: %v", err)
		} else {
			c.radius = m.cfg.MinDistance
		}
		m.st = coverFindInit
		return Again(), nil

	case equipping:
		ok, err := c.take()
		if !ok {
			return Next{}, unreachable(ModeCover, m.st)
		}
		if err != nil {
			env.Log.Printf("cover: equip %s failed: %v", env.IDs.ItemName(env.IDs.Carpet), err)
			c.release()
			c.drop()
			m.st = coverFindOp
			return Again(), nil
		}
		c.hold(env.IDs.Carpet)
		m.st = placeAt
		return Again(), nil

	case placeAt:
		m.st = placing
		return Await(ActionPlace, c.target.Pos, env.Actions.Place(c.target, geom.Up)), nil

	case placing:
		ok, err := c.take()
		if !ok {
			return Next{}, unreachable(ModeCover, m.st)
		}
		if err != nil {
			env.Log.Printf("cover: place pos=%v failed: %v", c.target.Pos, err)
			c.release()
			c.drop()
		}
		m.st = coverFindOp
		return Again(), nil
	}
	return Next{}, fatalf(ModeCover, m.st, "unknown step")
}

func (m *coverMachine) find(env *Env) (Next, error) {
	c := &m.ctx
	self := env.World.Self()
	if len(c.queue) == 0 {
		if c.exhausted {
			c.radius++
			c.exhausted = false
			if c.radius > m.cfg.MaxRadius {
				return Next{}, fatalf(ModeCover, m.st, "radius=%d exceeds max=%d with nothing left to cover", c.radius, m.cfg.MaxRadius)
			}
			return Again(), nil
		}
		ps := env.World.FindBlocks(self, func(b Block) bool {
			if b.Type != m.surface || b.Pos.Y != m.surfaceY {
				return false
			}
			above, ok := env.World.BlockAt(b.Pos.Add(geom.Up))
			if !ok || above.Type != env.IDs.Air {
				return false
			}
			d := above.Pos.DistanceTo(self)
			return d >= float64(m.cfg.MinDistance) && d <= float64(c.radius)
		}, c.radius, m.cfg.FindCap)
		c.fill(candCover, ps)
		if len(ps) > 0 {
			env.Log.Printf("cover: found %d blocks radius=%d", len(ps), c.radius)
		}
		return Again(), nil
	}

	cd := c.pop()
	above := cd.pos.Add(geom.Up)
	if above.DistanceTo(self) > float64(m.cfg.PlaceReach) {
		c.drop()
		m.st = movingToTarget
		return Await(ActionNavigate, above, env.Actions.NavigateTo(above, float64(m.cfg.MinDistance+1))), nil
	}
	blk, ok := env.World.BlockAt(cd.pos)
	if !ok || blk.Type != m.surface {
		return Again(), nil
	}
	c.target = blk
	if !c.holds(env.IDs.Carpet) {
		m.st = equipping
		return Await(ActionEquip, cd.pos, env.Actions.Equip(env.IDs.Carpet, SlotHand)), nil
	}
	m.st = placeAt
	return Again(), nil
}
