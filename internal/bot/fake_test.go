package bot

import (
	"log"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"voxelfarm.ai/internal/config"
	"voxelfarm.ai/internal/future"
	"voxelfarm.ai/internal/geom"
	"voxelfarm.ai/internal/registry"
)

// Palette ids used throughout the tests.
const (
	bAir      registry.BlockID = 0
	bDirt     registry.BlockID = 1
	bFarmland registry.BlockID = 2
	bWheat    registry.BlockID = 3
	bCarrots  registry.BlockID = 4
	bStone    registry.BlockID = 5

	iCarrot registry.ItemID = 0
	iCobble registry.ItemID = 1
	iWheat  registry.ItemID = 2
	iSeeds  registry.ItemID = 3
	iCarpet registry.ItemID = 4
	iHoe    registry.ItemID = 5
)

func testIDs(t *testing.T, cfg config.Config) registry.IDs {
	t.Helper()
	blocks := registry.NewPalette([]string{"AIR", "DIRT", "FARMLAND", "WHEAT", "CARROTS", "STONE"})
	items := registry.NewPalette([]string{"CARROT", "COBBLESTONE", "WHEAT", "WHEAT_SEEDS", "WHITE_CARPET", "IRON_HOE"})
	ids, err := registry.Resolve(blocks, items, cfg.Names, cfg.Harvest, cfg.Cover)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return ids
}

type fakeWorld struct {
	self     geom.Vec3
	blocks   map[geom.Vec3]Block
	entities []Entity
	finds    int
	radii    []int
}

func newFakeWorld(self geom.Vec3) *fakeWorld {
	return &fakeWorld{self: self, blocks: map[geom.Vec3]Block{}}
}

func (w *fakeWorld) set(p geom.Vec3, t registry.BlockID, maturity int) {
	w.blocks[p] = Block{Type: t, Pos: p, Maturity: maturity}
}

// fill sets every block of the horizontal square |dx|,|dz| <= r around c at c's height.
func (w *fakeWorld) fill(c geom.Vec3, r int, t registry.BlockID) {
	for dx := -r; dx <= r; dx++ {
		for dz := -r; dz <= r; dz++ {
			w.set(c.Offset(dx, 0, dz), t, 0)
		}
	}
}

func (w *fakeWorld) Self() geom.Vec3 { return w.self }

func (w *fakeWorld) FindBlocks(origin geom.Vec3, match func(Block) bool, maxRadius, maxResults int) []geom.Vec3 {
	w.finds++
	w.radii = append(w.radii, maxRadius)
	var out []geom.Vec3
	for p, b := range w.blocks {
		if p.DistanceSq(origin) > maxRadius*maxRadius {
			continue
		}
		if match(b) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].DistanceSq(origin), out[j].DistanceSq(origin)
		if di != dj {
			return di < dj
		}
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].Z < out[j].Z
	})
	if len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

func (w *fakeWorld) BlockAt(p geom.Vec3) (Block, bool) {
	b, ok := w.blocks[p]
	return b, ok
}

func (w *fakeWorld) NearestEntity(match func(Entity) bool) (Entity, bool) {
	var best Entity
	found := false
	for _, e := range w.entities {
		if !match(e) {
			continue
		}
		if !found || e.Pos.DistanceSq(w.self) < best.Pos.DistanceSq(w.self) {
			best, found = e, true
		}
	}
	return best, found
}

type call struct {
	kind ActionKind
	pos  geom.Vec3
	item registry.ItemID
	p    *future.Promise
}

type fakeActions struct {
	mu       sync.Mutex
	calls    []call
	emotes   []Side
	cancels  int
	auto     bool
	autoErr  error
	onDig    func(Block)
	onPlace  func(Block)
	failNext map[ActionKind]error
}

func (a *fakeActions) issue(c call) future.Future {
	a.mu.Lock()
	defer a.mu.Unlock()
	c.p = future.New()
	a.calls = append(a.calls, c)
	if err, ok := a.failNext[c.kind]; ok {
		delete(a.failNext, c.kind)
		c.p.Resolve(err)
	} else if a.auto {
		c.p.Resolve(a.autoErr)
	}
	return c.p
}

func (a *fakeActions) NavigateTo(goal geom.Vec3, _ float64) future.Future {
	return a.issue(call{kind: ActionNavigate, pos: goal})
}

func (a *fakeActions) Dig(b Block) future.Future {
	if a.onDig != nil {
		a.onDig(b)
	}
	return a.issue(call{kind: ActionDig, pos: b.Pos})
}

func (a *fakeActions) Place(b Block, _ geom.Vec3) future.Future {
	if a.onPlace != nil {
		a.onPlace(b)
	}
	return a.issue(call{kind: ActionPlace, pos: b.Pos})
}

func (a *fakeActions) Equip(item registry.ItemID, _ Slot) future.Future {
	return a.issue(call{kind: ActionEquip, item: item})
}

func (a *fakeActions) Emote(side Side) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.emotes = append(a.emotes, side)
}

func (a *fakeActions) CancelPending() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancels++
}

func (a *fakeActions) count(kind ActionKind) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.calls {
		if c.kind == kind {
			n++
		}
	}
	return n
}

type fakeReplier struct {
	mu      sync.Mutex
	replies []string
}

func (r *fakeReplier) Reply(_, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, text)
}

func (r *fakeReplier) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.replies) == 0 {
		return ""
	}
	return r.replies[len(r.replies)-1]
}

// seqSource feeds rand.Intn(10) a fixed sequence of results.
type seqSource struct {
	vals []int64
	i    int
}

func (s *seqSource) Int63() int64 {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v << 32
}

func (s *seqSource) Seed(int64) {}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type harness struct {
	s     *Scheduler
	world *fakeWorld
	acts  *fakeActions
	clock *fakeClock
	cfg   config.Config
}

func newHarness(t *testing.T, w *fakeWorld, mutate func(*config.Config)) *harness {
	t.Helper()
	cfg := config.Defaults()
	if mutate != nil {
		mutate(&cfg)
	}
	h := &harness{
		world: w,
		acts:  &fakeActions{failNext: map[ActionKind]error{}},
		clock: &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		cfg:   cfg,
	}
	h.s = New(cfg, Env{
		World:   w,
		Actions: h.acts,
		IDs:     testIDs(t, cfg),
		Log:     log.New(testWriter{t}, "", 0),
		Now:     h.clock.Now,
		Rand:    rand.New(&seqSource{vals: []int64{0}}),
	})
	return h
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// tick runs one step and fails the test on error.
func (h *harness) tick(t *testing.T) Next {
	t.Helper()
	next, err := h.s.Tick()
	if err != nil {
		t.Fatalf("tick at %s: %v", h.s.Step(), err)
	}
	return next
}

// until ticks until the active machine reaches step, returning the steps
// visited on the way (including the start).
func (h *harness) until(t *testing.T, step string, limit int) []string {
	t.Helper()
	seen := []string{h.s.Step()}
	for i := 0; i < limit; i++ {
		if h.s.Step() == step {
			return seen
		}
		next := h.tick(t)
		if next.IsAwait() && h.s.Step() != step {
			t.Fatalf("unexpected await %s while heading for %s (path %v)", next, step, seen)
		}
		if cur := h.s.Step(); cur != seen[len(seen)-1] {
			seen = append(seen, cur)
		}
	}
	if h.s.Step() != step {
		t.Fatalf("step=%s want=%s after %d ticks (path %v)", h.s.Step(), step, limit, seen)
	}
	return seen
}

// resolve delivers the in-flight outcome the way the run loop would.
func (h *harness) resolve(err error) {
	h.s.complete(completion{epoch: h.s.epoch, mode: h.s.mode, err: err})
}
