// Package agent defines the immutable agent and domain descriptors plus the
// executor and router ports the orchestration engine talks through. Nothing
// in this package executes a model; real invocation is always injected.
package agent

import "time"

// CapabilitySideEffect marks an agent whose execution performs an external
// side effect (tool call, write, deployment). Strategies route such steps
// through the human-in-the-loop gate before invoking the agent.
const CapabilitySideEffect = "tool:side_effect"

// Agent describes a single configured executor persona. Descriptors are
// read-only for the lifetime of a run and safe to share across goroutines.
type Agent struct {
	ID              string   `json:"id" yaml:"id"`
	Name            string   `json:"name" yaml:"name"`
	Instructions    string   `json:"instructions" yaml:"instructions"`
	Model           string   `json:"model" yaml:"model"`
	Capabilities    []string `json:"capabilities,omitempty" yaml:"capabilities"`
	RoutingKeywords []string `json:"routing_keywords,omitempty" yaml:"routing_keywords"`
}

// HasCapability reports whether the agent carries the given capability tag.
func (a Agent) HasCapability(tag string) bool {
	for _, c := range a.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// ValidationType selects the validation predicate used by the sequential
// strategy after each agent attempt.
type ValidationType string

const (
	ValidationNone    ValidationType = ""
	ValidationKeyword ValidationType = "keyword"
	ValidationSchema  ValidationType = "schema"
	ValidationAgent   ValidationType = "agent"
)

// ValidationConfig configures the post-execution validation predicate.
type ValidationConfig struct {
	Type ValidationType `json:"type" yaml:"type"`
	// Keywords that must all appear in the output (ValidationKeyword).
	Keywords []string `json:"keywords,omitempty" yaml:"keywords"`
	// RequiredKeys that must exist in the JSON object output (ValidationSchema).
	RequiredKeys []string `json:"required_keys,omitempty" yaml:"required_keys"`
	// ValidatorAgentID names the judge agent (ValidationAgent).
	ValidatorAgentID string `json:"validator_agent_id,omitempty" yaml:"validator_agent_id"`
}

// Domain groups an ordered set of agents with the strategy and policy that
// governs their execution. Like Agent, a Domain is never mutated once a run
// has started.
type Domain struct {
	ID       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	AgentIDs []string `json:"agents" yaml:"agents"`
	Strategy string   `json:"strategy" yaml:"strategy"`

	// MaxIterations is the hard cap on total recorded steps (agent + router).
	// It is enforced by the step ledger independently of any routing decision.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`

	// MaxRetries bounds validation-driven retries per agent in the
	// sequential strategy. Attempts per agent never exceed 1 + MaxRetries.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	Validation ValidationConfig `json:"validation,omitempty" yaml:"validation"`

	// FallbackAgentID receives the task when a sequential agent exhausts its
	// retries. Empty means no escalation.
	FallbackAgentID string `json:"fallback_agent,omitempty" yaml:"fallback_agent"`

	// TieBreakerAgentID, when set, is invoked once to break consensus ties.
	TieBreakerAgentID string `json:"tie_breaker_agent,omitempty" yaml:"tie_breaker_agent"`

	// SummarizerAgentID produces the compacted context step for the hybrid
	// strategy.
	SummarizerAgentID string `json:"summarizer_agent,omitempty" yaml:"summarizer_agent"`

	// DefaultAgentID is the dynamic-router fallback when a router decision
	// cannot be parsed. Empty falls back to the first agent in AgentIDs.
	DefaultAgentID string `json:"default_agent,omitempty" yaml:"default_agent"`

	// Quorum is the minimum number of successful branches for a parallel or
	// consensus run to be valid.
	Quorum int `json:"quorum" yaml:"quorum"`

	// StepTimeout bounds each individual agent invocation.
	StepTimeout time.Duration `json:"step_timeout" yaml:"step_timeout"`

	// SummaryTokenThreshold triggers context compaction in the hybrid
	// strategy once the prompt window exceeds this many tokens.
	SummaryTokenThreshold int `json:"summary_token_threshold,omitempty" yaml:"summary_token_threshold"`

	// PreserveRecent is the number of most recent agent steps kept verbatim
	// in the compacted prompt window.
	PreserveRecent int `json:"preserve_recent,omitempty" yaml:"preserve_recent"`
}

// DefaultAgent returns the configured parse-failure fallback agent id, or
// the first listed agent when none is configured.
func (d *Domain) DefaultAgent() string {
	if d.DefaultAgentID != "" {
		return d.DefaultAgentID
	}
	if len(d.AgentIDs) > 0 {
		return d.AgentIDs[0]
	}
	return ""
}
