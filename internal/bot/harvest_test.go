package bot

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"voxelfarm.ai/internal/config"
	"voxelfarm.ai/internal/geom"
)

// cropWorld has the agent at (0,1,0) next to a single farmland column at
// (1,0,0) carrying a crop of the given stage.
func cropWorld(stage int) *fakeWorld {
	w := newFakeWorld(geom.Vec3{Y: 1})
	w.set(geom.Vec3{Y: 1}, bAir, 0)
	w.set(geom.Vec3{}, bDirt, 0)
	w.set(geom.Vec3{X: 1}, bFarmland, 0)
	w.set(geom.Vec3{X: 1, Y: 1}, bWheat, stage)
	return w
}

func harvestOf(h *harness) *harvestMachine { return h.s.machines[ModeHarvest].(*harvestMachine) }

func digToAir(w *fakeWorld) func(Block) {
	return func(b Block) { w.set(b.Pos, bAir, 0) }
}

func TestHarvest_OneMatureCrop(t *testing.T) {
	w := cropWorld(7)
	h := newHarness(t, w, nil)
	h.acts.onDig = digToAir(w)
	h.s.Switch(ModeHarvest)

	path := h.until(t, "Harvesting", 10)
	want := []string{"Init", "FindHarvestInit", "FindHarvestOp", "Harvesting"}
	if !reflect.DeepEqual(path, want) {
		t.Fatalf("path=%v want=%v", path, want)
	}
	h.resolve(nil)

	path = h.until(t, "FindSowInit", 10)
	want = []string{"Harvesting", "FindHarvestOp", "FindSowInit"}
	if !reflect.DeepEqual(path, want) {
		t.Fatalf("path=%v want=%v", path, want)
	}
	if n := h.acts.count(ActionDig); n != 1 {
		t.Fatalf("digs=%d want=1", n)
	}
	if !harvestOf(h).ctx.harvested.Has(geom.Vec3{X: 1, Y: 1}) {
		t.Fatalf("harvested column not recorded")
	}
}

func TestHarvest_ImmatureCropIgnored(t *testing.T) {
	h := newHarness(t, cropWorld(3), nil)
	h.s.Switch(ModeHarvest)
	h.until(t, "FindSowInit", 10)
	if n := h.acts.count(ActionDig); n != 0 {
		t.Fatalf("digs=%d want=0", n)
	}
}

func TestHarvest_HarvestedColumnNotSownUntilRelocation(t *testing.T) {
	w := cropWorld(7)
	w.set(geom.Vec3{X: -1}, bFarmland, 0)
	w.set(geom.Vec3{X: -1, Y: 1}, bAir, 0)
	h := newHarness(t, w, nil)
	h.acts.onDig = digToAir(w)
	h.s.Switch(ModeHarvest)

	h.until(t, "Harvesting", 10)
	h.resolve(nil)

	h.until(t, "EquipForSow", 10)
	h.resolve(nil)
	h.until(t, "Sowing", 5)
	if c := h.acts.calls[len(h.acts.calls)-1]; c.kind != ActionPlace || c.pos != (geom.Vec3{X: -1}) {
		t.Fatalf("place=%+v want farmland at -1,0,0", c)
	}
	h.resolve(nil)

	// The freshly harvested column at x=1 is still farmland with air above
	// but must not be offered for sowing.
	h.until(t, "FindItems", 10)
	if n := h.acts.count(ActionPlace); n != 1 {
		t.Fatalf("places=%d want=1", n)
	}

	// Walking to a drop is a relocation: both sets are forgotten.
	w.entities = []Entity{{ID: "IT1", Kind: EntityItem, Pos: geom.Vec3{X: 5, Y: 1}, Item: iWheat, HasItem: true}}
	h.until(t, "MovingToItem", 2)
	h.resolve(nil)
	m := harvestOf(h)
	h.tick(t)
	if h.s.Step() != "FindSowInit" {
		t.Fatalf("step=%s want=FindSowInit", h.s.Step())
	}
	if m.ctx.harvested.Len() != 0 || m.ctx.sown.Len() != 0 {
		t.Fatalf("sets not cleared: harvested=%d sown=%d", m.ctx.harvested.Len(), m.ctx.sown.Len())
	}
	h.until(t, "SowAt", 10)
	h.tick(t)
	last := h.acts.calls[len(h.acts.calls)-1]
	if last.kind != ActionPlace || last.pos.X != -1 && last.pos.X != 1 {
		t.Fatalf("expected a sow after relocation, got %+v", last)
	}
}

func TestHarvest_NavigationFailureWaitsForGrowth(t *testing.T) {
	w := newFakeWorld(geom.Vec3{Y: 1})
	w.set(geom.Vec3{Y: 1}, bAir, 0)
	w.set(geom.Vec3{X: 3, Y: 1}, bWheat, 7)
	w.set(geom.Vec3{X: 3, Y: 1, Z: 1}, bWheat, 7)
	h := newHarness(t, w, nil)
	h.s.Switch(ModeHarvest)

	h.until(t, "MovingToHarvest", 10)
	h.resolve(errors.New("E_BLOCKED: path blocked"))
	h.tick(t)
	if h.s.Step() != "WaitForGrowth" {
		t.Fatalf("step=%s want=WaitForGrowth", h.s.Step())
	}
	if q := len(harvestOf(h).ctx.queue); q != 0 {
		t.Fatalf("queue=%d want=0", q)
	}
	next := h.tick(t)
	if !next.IsAfter() || next.Delay != 10*time.Second {
		t.Fatalf("next=%s want after:10s", next)
	}
	if n := h.acts.count(ActionNavigate); n != 1 {
		t.Fatalf("navigations=%d want=1", n)
	}
	h.tick(t)
	if h.s.Step() != "FindHarvestInit" {
		t.Fatalf("step=%s want=FindHarvestInit", h.s.Step())
	}
}

func TestHarvest_NavigationSuccessResetsRadius(t *testing.T) {
	w := newFakeWorld(geom.Vec3{Y: 1})
	w.set(geom.Vec3{Y: 1}, bAir, 0)
	w.set(geom.Vec3{X: 3, Y: 1}, bWheat, 7)
	h := newHarness(t, w, nil)
	m := harvestOf(h)
	h.s.Switch(ModeHarvest)

	h.until(t, "FindHarvestOp", 5)
	m.ctx.radius = 9
	h.until(t, "MovingToHarvest", 5)
	h.resolve(nil)
	h.tick(t)
	if h.s.Step() != "FindHarvestInit" || m.ctx.radius != h.cfg.Harvest.InitialRadius {
		t.Fatalf("step=%s radius=%d", h.s.Step(), m.ctx.radius)
	}
}

func TestHarvest_RadiusGrowth(t *testing.T) {
	w := newFakeWorld(geom.Vec3{Y: 1})
	w.set(geom.Vec3{Y: 1}, bAir, 0)
	h := newHarness(t, w, nil)
	m := harvestOf(h)
	h.s.Switch(ModeHarvest)
	h.tick(t) // Init

	prev := m.ctx.radius
	for i := 0; i < 500; i++ {
		before := h.s.Step()
		next := h.tick(t)
		if m.st == harvestInit {
			break
		}
		if m.ctx.radius < prev {
			t.Fatalf("radius decreased %d -> %d", prev, m.ctx.radius)
		}
		if before == "IncreaseRadius" {
			if m.ctx.radius < h.cfg.Harvest.FastRadius && !next.IsAgain() {
				t.Fatalf("radius=%d next=%s want again", m.ctx.radius, next)
			}
			if m.ctx.radius >= h.cfg.Harvest.FastRadius && (!next.IsAfter() || next.Delay != 100*time.Millisecond) {
				t.Fatalf("radius=%d next=%s want after:100ms", m.ctx.radius, next)
			}
		}
		prev = m.ctx.radius
	}
	if m.st != harvestInit {
		t.Fatalf("never wrapped to Init, step=%s radius=%d", m.st, m.ctx.radius)
	}

	want := []int{3, 4, 5, 6, 7, 8, 9, 10, 15, 20, 33, 46, 59, 72}
	var got []int
	for i := 0; i < len(w.radii); i += 2 {
		got = append(got, w.radii[i])
		if w.radii[i+1] != w.radii[i] {
			t.Fatalf("sow search radius=%d want=%d", w.radii[i+1], w.radii[i])
		}
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("radii=%v want=%v", got, want)
	}

	h.tick(t)
	if m.ctx.radius != h.cfg.Harvest.InitialRadius {
		t.Fatalf("radius=%d want=%d after full reset", m.ctx.radius, h.cfg.Harvest.InitialRadius)
	}
}

func TestHarvest_ToolSwapsWithSeed(t *testing.T) {
	w := cropWorld(7)
	h := newHarness(t, w, func(c *config.Config) { c.Harvest.Tool = "IRON_HOE" })
	h.acts.onDig = digToAir(w)
	h.s.Switch(ModeHarvest)

	h.until(t, "EquipForHarvest", 10)
	h.resolve(nil)
	next := h.tick(t)
	if !next.IsAwait() || next.Action != ActionDig {
		t.Fatalf("next=%s want await dig", next)
	}
	h.resolve(nil)

	// After relocation the harvested column becomes sowable and needs seeds.
	w.entities = []Entity{{Kind: EntityItem, Pos: geom.Vec3{X: 4, Y: 1}, Item: iSeeds, HasItem: true}}
	h.until(t, "MovingToItem", 20)
	h.resolve(nil)
	h.until(t, "EquipForSow", 10)

	var items []int
	for _, c := range h.acts.calls {
		if c.kind == ActionEquip {
			items = append(items, int(c.item))
		}
	}
	if !reflect.DeepEqual(items, []int{int(iHoe), int(iSeeds)}) {
		t.Fatalf("equipped=%v want hoe then seeds", items)
	}
}

func TestHarvest_Failures(t *testing.T) {
	t.Run("dig", func(t *testing.T) {
		h := newHarness(t, cropWorld(7), nil)
		h.s.Switch(ModeHarvest)
		h.until(t, "Harvesting", 10)
		h.resolve(errors.New("E_INVALID_TARGET"))
		h.tick(t)
		m := harvestOf(h)
		if h.s.Step() != "WaitForGrowth" || m.ctx.harvested.Len() != 0 || m.ctx.holding {
			t.Fatalf("step=%s harvested=%d holding=%v", h.s.Step(), m.ctx.harvested.Len(), m.ctx.holding)
		}
	})
	t.Run("equip", func(t *testing.T) {
		w := newFakeWorld(geom.Vec3{Y: 1})
		w.set(geom.Vec3{Y: 1}, bAir, 0)
		w.set(geom.Vec3{X: 1}, bFarmland, 0)
		w.set(geom.Vec3{X: 1, Y: 1}, bAir, 0)
		h := newHarness(t, w, nil)
		h.s.Switch(ModeHarvest)
		h.until(t, "EquipForSow", 10)
		h.resolve(errors.New("E_NO_RESOURCE"))
		h.tick(t)
		m := harvestOf(h)
		if h.s.Step() != "WaitForGrowth" || m.ctx.holding || len(m.ctx.queue) != 0 {
			t.Fatalf("step=%s holding=%v queue=%d", h.s.Step(), m.ctx.holding, len(m.ctx.queue))
		}
	})
	t.Run("sow", func(t *testing.T) {
		w := newFakeWorld(geom.Vec3{Y: 1})
		w.set(geom.Vec3{Y: 1}, bAir, 0)
		w.set(geom.Vec3{X: 1}, bFarmland, 0)
		w.set(geom.Vec3{X: 1, Y: 1}, bAir, 0)
		h := newHarness(t, w, nil)
		h.s.Switch(ModeHarvest)
		h.until(t, "EquipForSow", 10)
		h.resolve(nil)
		h.until(t, "Sowing", 3)
		h.resolve(errors.New("E_BLOCKED"))
		h.tick(t)
		m := harvestOf(h)
		if h.s.Step() != "WaitForGrowth" || m.ctx.sown.Len() != 0 || m.ctx.holding {
			t.Fatalf("step=%s sown=%d holding=%v", h.s.Step(), m.ctx.sown.Len(), m.ctx.holding)
		}
	})
}

func TestHarvest_InFlightWithoutOutcomeIsFatal(t *testing.T) {
	h := newHarness(t, cropWorld(7), nil)
	h.s.Switch(ModeHarvest)
	harvestOf(h).st = harvesting
	_, err := h.s.Tick()
	if !IsFatal(err) {
		t.Fatalf("err=%v want fatal", err)
	}
}

func TestHarvest_CappedSearchQueriesAgainWhenQueueDrains(t *testing.T) {
	w := newFakeWorld(geom.Vec3{Y: 1})
	w.set(geom.Vec3{Y: 1}, bAir, 0)
	w.set(geom.Vec3{X: 1, Y: 1}, bWheat, 7)
	w.set(geom.Vec3{X: -1, Y: 1}, bWheat, 7)
	h := newHarness(t, w, func(c *config.Config) { c.Harvest.FindCap = 1 })
	h.acts.onDig = digToAir(w)
	h.s.Switch(ModeHarvest)

	h.until(t, "Harvesting", 10)
	h.resolve(nil)
	h.tick(t)
	h.until(t, "Harvesting", 5)
	h.resolve(nil)
	h.tick(t)
	h.until(t, "FindSowInit", 5)

	if n := h.acts.count(ActionDig); n != 2 {
		t.Fatalf("digs=%d want=2", n)
	}
	if b := w.blocks[geom.Vec3{X: -1, Y: 1}]; b.Type != bAir {
		t.Fatalf("crop at -1,1,0 left unharvested")
	}
	// One query per dig and a final empty one.
	if w.finds != 3 {
		t.Fatalf("finds=%d want=3", w.finds)
	}
}
