// Package agent provides negotiation decision sources: language-model backed
// buyer and seller agents, the transports they complete prompts over, an
// offline rule-based strategy, and a recorder that logs every exchange.
package agent

import (
	"context"
	"sync"
)

// Prompt is a system plus user message pair.
type Prompt struct {
	System string
	User   string
}

// Completion is a model reply.
type Completion struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Completer turns a prompt into text.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (Completion, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, p Prompt) (Completion, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, p Prompt) (Completion, error) {
	return f(ctx, p)
}

// Exchange is what a decision source sent and received for one decision.
type Exchange struct {
	mu         sync.Mutex
	Prompt     Prompt
	Completion Completion
}

func (e *Exchange) set(p Prompt, c Completion) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Prompt = p
	e.Completion = c
}

// Snapshot returns a copy safe to read after the decision returns.
func (e *Exchange) Snapshot() (Prompt, Completion) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Prompt, e.Completion
}

type exchangeKey struct{}

// WithExchange returns a context under which an Agent records its prompt and
// completion into ex.
func WithExchange(ctx context.Context, ex *Exchange) context.Context {
	return context.WithValue(ctx, exchangeKey{}, ex)
}

func exchangeFrom(ctx context.Context) *Exchange {
	ex, _ := ctx.Value(exchangeKey{}).(*Exchange)
	return ex
}
