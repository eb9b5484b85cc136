package bot

import (
	"voxelfarm.ai/internal/geom"
	"voxelfarm.ai/internal/registry"
)

type candidateKind int

const (
	candHarvest candidateKind = iota + 1
	candSow
	candCover
)

// candidate is a queued work position together with the filter that
// qualified it.
type candidate struct {
	pos  geom.Vec3
	kind candidateKind
}

// outcome is a completion waiting to be consumed by the in-flight step.
type outcome struct {
	err error
}

// modeContext is the state shared by the searching machines.
type modeContext struct {
	queue     []candidate
	exhausted bool // the last search found nothing
	radius    int

	harvested geom.ColumnSet
	sown      geom.ColumnSet

	held    registry.ItemID
	holding bool

	target Block
	result *outcome
}

func (c *modeContext) clear() { *c = modeContext{} }

func (c *modeContext) fill(kind candidateKind, ps []geom.Vec3) {
	c.queue = c.queue[:0]
	for _, p := range ps {
		c.queue = append(c.queue, candidate{pos: p, kind: kind})
	}
	c.exhausted = len(ps) == 0
}

func (c *modeContext) pop() candidate {
	cd := c.queue[0]
	c.queue = c.queue[1:]
	return cd
}

func (c *modeContext) drop() {
	c.queue = nil
	c.exhausted = false
}

// relocated forgets everything tied to the previous neighbourhood.
func (c *modeContext) relocated(base int) {
	c.harvested.Clear()
	c.sown.Clear()
	c.radius = base
	c.drop()
}

func (c *modeContext) holds(it registry.ItemID) bool { return c.holding && c.held == it }

func (c *modeContext) hold(it registry.ItemID) {
	c.held = it
	c.holding = true
}

func (c *modeContext) release() {
	c.held = 0
	c.holding = false
}

// take consumes the recorded outcome. ok is false when nothing was recorded.
func (c *modeContext) take() (ok bool, err error) {
	if c.result == nil {
		return false, nil
	}
	r := c.result
	c.result = nil
	return true, r.err
}

func (c *modeContext) record(err error) { c.result = &outcome{err: err} }
