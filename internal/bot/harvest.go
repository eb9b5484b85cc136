package bot

import (
	"voxelfarm.ai/internal/config"
	"voxelfarm.ai/internal/geom"
)

type harvestStep int

const (
	harvestInit harvestStep = iota
	findHarvestInit
	findHarvestOp
	movingToHarvest
	equipForHarvest
	harvesting
	waitForGrowth
	waitingForGrowth
	findSowInit
	findSowOp
	movingToSow
	equipForSow
	sowAt
	sowing
	findItems
	movingToItem
	increaseRadius
)

var harvestStepNames = [...]string{
	harvestInit:      "Init",
	findHarvestInit:  "FindHarvestInit",
	findHarvestOp:    "FindHarvestOp",
	movingToHarvest:  "MovingToHarvest",
	equipForHarvest:  "EquipForHarvest",
	harvesting:       "Harvesting",
	waitForGrowth:    "WaitForGrowth",
	waitingForGrowth: "WaitingForGrowth",
	findSowInit:      "FindSowInit",
	findSowOp:        "FindSowOp",
	movingToSow:      "MovingToSow",
	equipForSow:      "EquipForSow",
	sowAt:            "SowAt",
	sowing:           "Sowing",
	findItems:        "FindItems",
	movingToItem:     "MovingToItem",
	increaseRadius:   "IncreaseRadius",
}

func (s harvestStep) String() string {
	if int(s) < len(harvestStepNames) {
		return harvestStepNames[s]
	}
	return "unknown"
}

// harvestMachine harvests mature crops around the agent, replants farmland,
// collects drops and widens its search when nothing is left nearby.
type harvestMachine struct {
	st     harvestStep
	ctx    modeContext
	cfg    config.Harvest
	timing config.Timing
}

func newHarvest(cfg config.Harvest, timing config.Timing) *harvestMachine {
	return &harvestMachine{cfg: cfg, timing: timing}
}

func (m *harvestMachine) reset() {
	m.st = harvestInit
	m.ctx.clear()
}

func (m *harvestMachine) stepName() string { return m.st.String() }
func (m *harvestMachine) atInitial() bool  { return m.st == harvestInit }
func (m *harvestMachine) resolve(err error) { m.ctx.record(err) }

func (m *harvestMachine) step(env *Env) (Next, error) {
	c := &m.ctx
	switch m.st {
	case harvestInit:
		c.clear()
		c.radius = m.cfg.InitialRadius
		m.st = findHarvestInit
		return Again(), nil

	case findHarvestInit:
		c.drop()
		m.st = findHarvestOp
		return Again(), nil

	case findHarvestOp:
		return m.findHarvest(env)

	case movingToHarvest:
		ok, err := c.take()
		if !ok {
			return Next{}, unreachable(ModeHarvest, m.st)
		}
		if err != nil {
			env.Log.Printf("harvest: move to crop failed: %v", err)
			m.st = waitForGrowth
			return Again(), nil
		}
		c.relocated(m.cfg.InitialRadius)
		m.st = findHarvestInit
		return Again(), nil

	case equipForHarvest:
		ok, err := c.take()
		if !ok {
			return Next{}, unreachable(ModeHarvest, m.st)
		}
		if err != nil {
			env.Log.Printf("harvest: equip %s failed: %v", env.IDs.ItemName(env.IDs.Tool), err)
			c.release()
			c.drop()
			m.st = waitForGrowth
			return Again(), nil
		}
		c.hold(env.IDs.Tool)
		return m.dig(env), nil

	case harvesting:
		ok, err := c.take()
		if !ok {
			return Next{}, unreachable(ModeHarvest, m.st)
		}
		if err != nil {
			env.Log.Printf("harvest: dig pos=%v failed: %v", c.target.Pos, err)
			c.release()
			c.drop()
			m.st = waitForGrowth
			return Again(), nil
		}
		c.harvested.Add(c.target.Pos)
		m.st = findHarvestOp
		return Again(), nil

	case waitForGrowth:
		m.st = waitingForGrowth
		return After(m.timing.GrowthWait()), nil

	case waitingForGrowth:
		m.st = findHarvestInit
		return Again(), nil

	case findSowInit:
		c.drop()
		m.st = findSowOp
		return Again(), nil

	case findSowOp:
		return m.findSow(env)

	case movingToSow:
		ok, err := c.take()
		if !ok {
			return Next{}, unreachable(ModeHarvest, m.st)
		}
		if err != nil {
			env.Log.Printf("harvest: move to farmland failed: %v", err)
			m.st = waitForGrowth
			return Again(), nil
		}
		c.relocated(m.cfg.InitialRadius)
		m.st = findSowInit
		return Again(), nil

	case equipForSow:
		ok, err := c.take()
		if !ok {
			return Next{}, unreachable(ModeHarvest, m.st)
		}
		if err != nil {
			env.Log.Printf("harvest: equip %s failed: %v", env.IDs.ItemName(env.IDs.Seed), err)
			c.release()
			c.drop()
			m.st = waitForGrowth
			return Again(), nil
		}
		c.hold(env.IDs.Seed)
		m.st = sowAt
		return Again(), nil

	case sowAt:
		m.st = sowing
		return Await(ActionPlace, c.target.Pos, env.Actions.Place(c.target, geom.Up)), nil

	case sowing:
		ok, err := c.take()
		if !ok {
			return Next{}, unreachable(ModeHarvest, m.st)
		}
		if err != nil {
			env.Log.Printf("harvest: sow pos=%v failed: %v", c.target.Pos, err)
			c.release()
			c.drop()
			m.st = waitForGrowth
			return Again(), nil
		}
		c.sown.Add(c.target.Pos)
		m.st = findSowOp
		return Again(), nil

	case findItems:
		return m.findItems(env), nil

	case movingToItem:
		ok, err := c.take()
		if !ok {
			return Next{}, unreachable(ModeHarvest, m.st)
		}
		if err != nil {
			env.Log.Printf("harvest: move to item failed: %v", err)
			m.st = waitForGrowth
			return Again(), nil
		}
		c.relocated(m.cfg.InitialRadius)
		m.st = findSowInit
		return Again(), nil

	case increaseRadius:
		c.radius++
		if c.radius > m.cfg.MaxRadius {
			env.Log.Printf("harvest: radius=%d exceeds max=%d, starting over", c.radius, m.cfg.MaxRadius)
			m.st = harvestInit
		} else {
			if c.radius > 10 {
				c.radius += 4
			}
			if c.radius > 20 {
				c.radius += 8
			}
			m.st = findHarvestInit
		}
		if c.radius < m.cfg.FastRadius {
			return Again(), nil
		}
		return After(m.timing.RadiusDelay()), nil
	}
	return Next{}, fatalf(ModeHarvest, m.st, "unknown step")
}

func (m *harvestMachine) findHarvest(env *Env) (Next, error) {
	c := &m.ctx
	self := env.World.Self()
	if len(c.queue) == 0 {
		if c.exhausted {
			m.st = findSowInit
			return Again(), nil
		}
		ps := env.World.FindBlocks(self, func(b Block) bool {
			if !env.IDs.IsCrop(b.Type) || b.Maturity != m.cfg.GrownStage {
				return false
			}
			d := b.Pos.DistanceTo(self)
			return d >= float64(m.cfg.HarvestMin) && d <= float64(c.radius)
		}, c.radius, m.cfg.FindCap)
		c.fill(candHarvest, ps)
		env.Log.Printf("harvest: found %d blocks to harvest radius=%d", len(ps), c.radius)
		return Again(), nil
	}

	cd := c.pop()
	if cd.pos.DistanceTo(self) > float64(m.cfg.HarvestReach) {
		c.drop()
		m.st = movingToHarvest
		return Await(ActionNavigate, cd.pos, env.Actions.NavigateTo(cd.pos, 1)), nil
	}
	blk, ok := env.World.BlockAt(cd.pos)
	if !ok || !env.IDs.IsCrop(blk.Type) {
		return Again(), nil
	}
	c.target = blk
	if env.IDs.HasTool && !c.holds(env.IDs.Tool) {
		m.st = equipForHarvest
		return Await(ActionEquip, cd.pos, env.Actions.Equip(env.IDs.Tool, SlotHand)), nil
	}
	return m.dig(env), nil
}

func (m *harvestMachine) dig(env *Env) Next {
	m.st = harvesting
	return Await(ActionDig, m.ctx.target.Pos, env.Actions.Dig(m.ctx.target))
}

func (m *harvestMachine) findSow(env *Env) (Next, error) {
	c := &m.ctx
	self := env.World.Self()
	if len(c.queue) == 0 {
		if c.exhausted {
			m.st = findItems
			return Again(), nil
		}
		ps := env.World.FindBlocks(self, func(b Block) bool {
			if b.Type != env.IDs.Farmland {
				return false
			}
			if c.harvested.Has(b.Pos) || c.sown.Has(b.Pos) {
				return false
			}
			above, ok := env.World.BlockAt(b.Pos.Add(geom.Up))
			if !ok || above.Type != env.IDs.Air {
				return false
			}
			d := above.Pos.DistanceTo(self)
			return d >= float64(m.cfg.SowMin) && d <= float64(c.radius)
		}, c.radius, m.cfg.FindCap)
		c.fill(candSow, ps)
		env.Log.Printf("harvest: found %d blocks to sow radius=%d", len(ps), c.radius)
		return Again(), nil
	}

	cd := c.pop()
	above := cd.pos.Add(geom.Up)
	if above.DistanceTo(self) > float64(m.cfg.SowReach) {
		c.drop()
		m.st = movingToSow
		return Await(ActionNavigate, above, env.Actions.NavigateTo(above, 1)), nil
	}
	blk, ok := env.World.BlockAt(cd.pos)
	if !ok || blk.Type != env.IDs.Farmland {
		return Again(), nil
	}
	c.target = blk
	if !c.holds(env.IDs.Seed) {
		m.st = equipForSow
		return Await(ActionEquip, cd.pos, env.Actions.Equip(env.IDs.Seed, SlotHand)), nil
	}
	m.st = sowAt
	return Again(), nil
}

func (m *harvestMachine) findItems(env *Env) Next {
	c := &m.ctx
	self := env.World.Self()
	minDist := float64(m.cfg.ItemMinDistance)
	e, ok := env.World.NearestEntity(func(e Entity) bool {
		return e.Kind == EntityItem && e.HasItem && env.IDs.IsPickup(e.Item) && e.Pos.DistanceTo(self) > minDist
	})
	if ok {
		d := e.Pos.DistanceTo(self)
		if d > minDist && d < float64(m.cfg.ItemRadiusFactor*c.radius) {
			env.Log.Printf("harvest: collecting %s at %v dist=%.1f", env.IDs.ItemName(e.Item), e.Pos, d)
			m.st = movingToItem
			return Await(ActionNavigate, e.Pos, env.Actions.NavigateTo(e.Pos, 1))
		}
	}
	m.st = increaseRadius
	return Again()
}
