package bot

import (
	"log"
	"math/rand"
	"time"

	"voxelfarm.ai/internal/registry"
)

type Mode int

const (
	ModeIdle Mode = iota
	ModeHarvest
	ModeConstruct
	ModeCover
	modeCount
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeHarvest:
		return "harvest"
	case ModeConstruct:
		return "construct"
	case ModeCover:
		return "cover"
	}
	return "unknown"
}

// Env is what a step may touch outside its own context.
type Env struct {
	World   World
	Actions Actions
	IDs     registry.IDs
	Log     *log.Logger
	Now     func() time.Time
	Rand    *rand.Rand
}

// machine is one mode's state machine. step runs exactly one transition;
// resolve records the outcome of the future the machine is awaiting.
type machine interface {
	reset()
	step(env *Env) (Next, error)
	resolve(err error)
	stepName() string
	atInitial() bool
}
