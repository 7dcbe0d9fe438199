// Package trace holds the append-only execution ledger: every agent
// invocation and every router decision a run makes is recorded as a Step,
// and a completed run is returned as a Result. The ledger is the only
// mutable state a run owns.
package trace

import (
	"time"
)

// Status is the terminal state of a single recorded step.
type Status string

const (
	StatusSuccess          Status = "success"
	StatusFailure          Status = "failure"
	StatusValidationFailed Status = "validation_failed"
	StatusTimeout          Status = "timeout"
	StatusCancelled        Status = "cancelled"
)

// Reserved agent ids. Router decisions and synthesis steps are recorded
// against these sentinels rather than a configured agent.
const (
	// RouterAgentID marks a routing decision step. Router steps carry no
	// substantive output and are skipped when deriving the final response.
	RouterAgentID = "router"

	// SynthesizerAgentID marks the synthesis/aggregation step appended by
	// the parallel and consensus strategies. Unlike router steps it carries
	// real output and is always the last step of a valid run.
	SynthesizerAgentID = "synthesizer"
)

// Step is one recorded unit in the execution trace: either an agent
// execution or a router decision. Indices are assigned by the Recorder and
// are strictly increasing and contiguous within a run.
type Step struct {
	Index     int           `json:"index"`
	AgentID   string        `json:"agent_id"`
	Input     string        `json:"input,omitempty"`
	Output    string        `json:"output,omitempty"`
	Status    Status        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`

	// Router decision fields, populated only when AgentID == RouterAgentID.
	NextAgentID string `json:"next_agent_id,omitempty"`
	Terminate   bool   `json:"terminate,omitempty"`
	RawDecision string `json:"raw_decision,omitempty"`
	ParsedOK    bool   `json:"parsed_ok,omitempty"`

	// Summary marks a context-compaction step recorded by the hybrid
	// strategy. The full history stays in the ledger; only the active
	// prompt window is compacted.
	Summary bool `json:"summary,omitempty"`
}

// IsRouter reports whether the step records a routing decision.
func (s Step) IsRouter() bool { return s.AgentID == RouterAgentID }

// Metadata describes a completed run.
type Metadata struct {
	RunID             string        `json:"run_id"`
	DomainID          string        `json:"domain_id"`
	Strategy          string        `json:"strategy"`
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration"`
	Iterations        int           `json:"iterations"`
	TerminationReason string        `json:"termination_reason"`
	Failed            bool          `json:"failed"`
}

// Result is the complete, replayable outcome of one orchestration run.
// A Result is structurally valid even for failed or cancelled runs: it
// always carries every step executed so far.
type Result struct {
	Steps    []Step   `json:"steps"`
	Metadata Metadata `json:"metadata"`
}

// FinalResponse returns the output of the last step whose agent id is not
// the router sentinel. Router steps may legitimately be the literal last
// step of a trace and carry no substantive output, so they are never the
// final response.
func (r *Result) FinalResponse() string {
	for i := len(r.Steps) - 1; i >= 0; i-- {
		if !r.Steps[i].IsRouter() {
			return r.Steps[i].Output
		}
	}
	return ""
}

// LastStep returns the final recorded step, or a zero Step for empty traces.
func (r *Result) LastStep() Step {
	if len(r.Steps) == 0 {
		return Step{}
	}
	return r.Steps[len(r.Steps)-1]
}
