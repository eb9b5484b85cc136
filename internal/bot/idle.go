package bot

import "time"

type idleStep int

const (
	idleInit idleStep = iota
	idleWait
)

func (s idleStep) String() string {
	switch s {
	case idleInit:
		return "Init"
	case idleWait:
		return "Wait"
	}
	return "unknown"
}

type idleMachine struct {
	st       idleStep
	since    time.Time
	interval time.Duration
}

func newIdle(interval time.Duration) *idleMachine {
	return &idleMachine{interval: interval}
}

func (m *idleMachine) reset() {
	m.st = idleInit
	m.since = time.Time{}
}

func (m *idleMachine) stepName() string { return m.st.String() }
func (m *idleMachine) atInitial() bool  { return m.st == idleInit }

// Idle never awaits a future.
func (m *idleMachine) resolve(error) {}

func (m *idleMachine) step(env *Env) (Next, error) {
	switch m.st {
	case idleInit:
		m.since = env.Now()
		m.st = idleWait
		return Again(), nil
	case idleWait:
		switch env.Rand.Intn(10) {
		case 1:
			env.Actions.Emote(SideLeft)
		case 2:
			env.Actions.Emote(SideRight)
		}
		return After(m.interval), nil
	}
	return Next{}, fatalf(ModeIdle, m.st, "unknown step")
}

// idleFor is how long the agent has been idle; zero before Init has run.
func (m *idleMachine) idleFor(now time.Time) time.Duration {
	if m.since.IsZero() {
		return 0
	}
	return now.Sub(m.since)
}
