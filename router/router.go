// Package router turns free-form routing output into tagged decisions. The
// dynamic strategy never inspects agent output text itself; every handoff
// choice crosses this boundary as a ContinueWith/Terminate/ParseFailed
// variant, and unparseable output always carries its raw text along for
// diagnosis.
package router

import (
	"context"

	"github.com/BaSui01/agentorch/agent"
	"github.com/BaSui01/agentorch/trace"
)

// Outcome discriminates the Decision variants.
type Outcome string

const (
	OutcomeContinue    Outcome = "continue"
	OutcomeTerminate   Outcome = "terminate"
	OutcomeParseFailed Outcome = "parse_failed"
)

// Decision is the tagged result of one routing consultation.
type Decision struct {
	Outcome     Outcome
	NextAgentID string // set for OutcomeContinue
	Reason      string
	Raw         string // the unprocessed router output, kept for all outcomes
}

// ContinueWith builds a handoff decision to the named agent.
func ContinueWith(agentID, raw string) Decision {
	return Decision{Outcome: OutcomeContinue, NextAgentID: agentID, Raw: raw}
}

// Terminate builds a terminal decision.
func Terminate(reason, raw string) Decision {
	return Decision{Outcome: OutcomeTerminate, Reason: reason, Raw: raw}
}

// ParseFailed marks output that could not be understood. The engine falls
// back to the domain's default agent; it never terminates on a parse failure.
func ParseFailed(raw string) Decision {
	return Decision{Outcome: OutcomeParseFailed, Raw: raw}
}

// Port decides which agent runs next given the accumulated trace. A Port
// returns an error only for transport-level failures; inability to parse its
// own output must be reported as a ParseFailed decision instead.
type Port interface {
	Decide(ctx context.Context, d *agent.Domain, steps []trace.Step) (Decision, error)
}

// PortFunc adapts a function to the Port interface.
type PortFunc func(ctx context.Context, d *agent.Domain, steps []trace.Step) (Decision, error)

func (f PortFunc) Decide(ctx context.Context, d *agent.Domain, steps []trace.Step) (Decision, error) {
	return f(ctx, d, steps)
}
