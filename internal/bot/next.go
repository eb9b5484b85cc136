package bot

import (
	"fmt"
	"time"

	"voxelfarm.ai/internal/future"
	"voxelfarm.ai/internal/geom"
)

type nextKind int

const (
	nextAgain nextKind = iota
	nextAfter
	nextAwait
	nextPark
)

// ActionKind labels the future a step is waiting on.
type ActionKind string

const (
	ActionNavigate ActionKind = "navigate"
	ActionDig      ActionKind = "dig"
	ActionPlace    ActionKind = "place"
	ActionEquip    ActionKind = "equip"
)

// Next is the one-shot instruction a step hands back to the run loop.
type Next struct {
	kind   nextKind
	Delay  time.Duration
	Action ActionKind
	Pos    geom.Vec3
	Future future.Future
}

// Again reschedules the active mode immediately.
func Again() Next { return Next{kind: nextAgain} }

// After reschedules the active mode once d has elapsed.
func After(d time.Duration) Next { return Next{kind: nextAfter, Delay: d} }

// Await suspends the active mode until f resolves.
func Await(action ActionKind, pos geom.Vec3, f future.Future) Next {
	return Next{kind: nextAwait, Action: action, Pos: pos, Future: f}
}

// Park schedules nothing; only a mode switch wakes the scheduler again.
func Park() Next { return Next{kind: nextPark} }

func (n Next) IsAgain() bool { return n.kind == nextAgain }
func (n Next) IsAfter() bool { return n.kind == nextAfter }
func (n Next) IsAwait() bool { return n.kind == nextAwait }
func (n Next) IsPark() bool  { return n.kind == nextPark }

func (n Next) String() string {
	switch n.kind {
	case nextAgain:
		return "again"
	case nextAfter:
		return "after:" + n.Delay.String()
	case nextAwait:
		return fmt.Sprintf("await:%s@%d,%d,%d", n.Action, n.Pos.X, n.Pos.Y, n.Pos.Z)
	case nextPark:
		return "park"
	}
	return "unknown"
}
