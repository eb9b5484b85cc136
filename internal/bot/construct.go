package bot

type constructStep int

const constructInit constructStep = 0

func (constructStep) String() string { return "Init" }

// constructMachine accepts switches and does nothing.
type constructMachine struct {
	st constructStep
}

func (m *constructMachine) reset()           { m.st = constructInit }
func (m *constructMachine) stepName() string { return m.st.String() }
func (m *constructMachine) atInitial() bool  { return m.st == constructInit }
func (m *constructMachine) resolve(error)    {}

func (m *constructMachine) step(*Env) (Next, error) { return Park(), nil }
