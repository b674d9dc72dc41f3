package agent

import (
	"context"
	"fmt"
	"log"

	"github.com/zulandar/dealscout/internal/negotiation"
)

// Agent is a language-model backed decision source for one party.
type Agent struct {
	party     negotiation.Party
	completer Completer
	questions []string
	logger    *log.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithQuestions adds product evaluation questions to buyer prompts.
func WithQuestions(qs ...string) Option {
	return func(a *Agent) { a.questions = append(a.questions, qs...) }
}

// WithLogger sets the logger for unparseable replies.
func WithLogger(l *log.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// New returns an Agent deciding for party through c.
func New(party negotiation.Party, c Completer, opts ...Option) *Agent {
	a := &Agent{party: party, completer: c, logger: log.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ negotiation.DecisionSource = (*Agent)(nil)

// Decide renders the prompt, completes it and parses the reply. A completion
// failure is returned as an error. A reply that holds no decision yields an
// empty RawDecision so the normalizer substitutes safe defaults.
func (a *Agent) Decide(ctx context.Context, snap negotiation.Snapshot) (negotiation.RawDecision, error) {
	if snap.Party != a.party {
		return nil, fmt.Errorf("agent: %s agent asked to decide for %s", a.party, snap.Party)
	}
	p, err := RenderPrompt(snap, a.questions)
	if err != nil {
		return nil, err
	}
	c, err := a.completer.Complete(ctx, p)
	if ex := exchangeFrom(ctx); ex != nil {
		ex.set(p, c)
	}
	if err != nil {
		return nil, err
	}
	raw, err := negotiation.ParseDecision(c.Text)
	if err != nil {
		a.logger.Printf("agent: %s turn %d: %v", a.party, snap.TurnNumber, err)
		return negotiation.RawDecision{}, nil
	}
	return raw, nil
}
