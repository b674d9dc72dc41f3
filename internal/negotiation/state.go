package negotiation

// Phase is the loop's state-machine position.
type Phase int

// Phases. Running is the only non-terminal phase.
const (
	PhaseRunning Phase = iota
	PhaseSuccess
	PhaseNoDeal
	PhaseError
)

// State is the loop's current state. Turn is meaningful while running, Price
// on success and Reason on error or no deal.
type State struct {
	Phase  Phase
	Turn   int
	Price  float64
	Reason string
}

// Running is the state before turn n executes.
func Running(n int) State { return State{Phase: PhaseRunning, Turn: n} }

// Success is a deal at price.
func Success(price float64) State { return State{Phase: PhaseSuccess, Price: price} }

// NoDeal ends without agreement.
func NoDeal(reason string) State { return State{Phase: PhaseNoDeal, Reason: reason} }

// Failed ends because a decision source failed.
func Failed(reason string) State { return State{Phase: PhaseError, Reason: reason} }

// Terminal reports whether the loop has stopped.
func (s State) Terminal() bool { return s.Phase != PhaseRunning }

// Status maps a terminal state to its result status.
func (s State) Status() Status {
	switch s.Phase {
	case PhaseSuccess:
		return StatusSuccess
	case PhaseError:
		return StatusError
	default:
		return StatusNoDeal
	}
}
