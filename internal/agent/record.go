package agent

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/zulandar/dealscout/internal/models"
	"github.com/zulandar/dealscout/internal/negotiation"
	"gorm.io/gorm"
)

// Recorder wraps a decision source and writes each exchange to agent_logs.
type Recorder struct {
	src           negotiation.DecisionSource
	negotiationID string
	logger        *log.Logger
	writeFn       func(models.AgentLog) error
}

// Record returns src wrapped so every decision made for negotiationID is
// captured as AgentLog rows: "out" for the prompt, "in" for the reply and
// "err" for a failure. Logging failures never affect the decision.
func Record(src negotiation.DecisionSource, db *gorm.DB, negotiationID string) *Recorder {
	return &Recorder{
		src:           src,
		negotiationID: negotiationID,
		logger:        log.Default(),
		writeFn: func(l models.AgentLog) error {
			return db.Create(&l).Error
		},
	}
}

var _ negotiation.DecisionSource = (*Recorder)(nil)

// Decide implements negotiation.DecisionSource. Nothing is written when ctx
// is already done by the time the wrapped source returns: the caller has
// abandoned the turn and the row would outlive the negotiation.
func (r *Recorder) Decide(ctx context.Context, snap negotiation.Snapshot) (negotiation.RawDecision, error) {
	ex := &Exchange{}
	start := time.Now()
	raw, err := r.src.Decide(WithExchange(ctx, ex), snap)
	latency := int(time.Since(start).Milliseconds())
	if ctx.Err() != nil {
		return raw, err
	}

	p, c := ex.Snapshot()
	base := models.AgentLog{
		NegotiationID: r.negotiationID,
		Party:         string(snap.Party),
		Turn:          snap.TurnNumber,
	}

	if p.System != "" || p.User != "" {
		out := base
		out.Direction = "out"
		out.Content = p.System + "\n\n" + p.User
		r.write(out)
	}

	if err != nil {
		e := base
		e.Direction = "err"
		e.Content = err.Error()
		e.LatencyMs = latency
		r.write(e)
		return raw, err
	}

	in := base
	in.Direction = "in"
	in.Content = c.Text
	if in.Content == "" {
		b, _ := json.Marshal(raw)
		in.Content = string(b)
	}
	in.Model = c.Model
	in.InputTokens = c.InputTokens
	in.OutputTokens = c.OutputTokens
	in.LatencyMs = latency
	r.write(in)
	return raw, nil
}

func (r *Recorder) write(l models.AgentLog) {
	if err := r.writeFn(l); err != nil {
		r.logger.Printf("agent: record %s turn %d: %v", r.negotiationID, l.Turn, err)
	}
}
