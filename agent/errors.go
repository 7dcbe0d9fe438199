package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownStrategy 域引用了未注册的策略
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrUnknownAgent 域引用了不存在的 Agent
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrInvalidDomain 域配置无效
	ErrInvalidDomain = errors.New("invalid domain config")

	// ErrIterationLimit 步骤总数达到 max_iterations 硬上限
	ErrIterationLimit = errors.New("iteration limit exceeded")

	// ErrQuorumNotMet 成功分支数低于 quorum
	ErrQuorumNotMet = errors.New("quorum not met")
)

// InvocationErrorKind classifies executor-port failures.
type InvocationErrorKind string

const (
	InvocationTimeout         InvocationErrorKind = "timeout"
	InvocationTransport       InvocationErrorKind = "transport"
	InvocationMalformedOutput InvocationErrorKind = "malformed_output"
)

// InvocationError is the typed failure returned by the executor port.
// Transport-kind errors are retryable; malformed output is not.
type InvocationError struct {
	AgentID string
	Kind    InvocationErrorKind
	Err     error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("agent %s invocation failed (%s): %v", e.AgentID, e.Kind, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// Retryable reports whether a retrying executor wrapper may re-attempt the
// call. Malformed output will not improve by retrying the identical request.
func (e *InvocationError) Retryable() bool {
	return e.Kind == InvocationTimeout || e.Kind == InvocationTransport
}

// ValidationFailure is returned when a validation predicate rejects an agent
// output. It drives the sequential strategy's retry/escalation path and never
// escapes a strategy.
type ValidationFailure struct {
	AgentID string
	Reason  string
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("agent %s output rejected: %s", e.AgentID, e.Reason)
}

// RouterParseError indicates the router port produced output that could not
// be parsed into a decision. The raw output is preserved for diagnosis.
type RouterParseError struct {
	Raw string
}

func (e *RouterParseError) Error() string {
	return fmt.Sprintf("router decision unparseable: %q", e.Raw)
}

// QuorumError is the fatal run error for parallel and consensus runs that
// fall short of the configured quorum.
type QuorumError struct {
	Required  int
	Succeeded int
}

func (e *QuorumError) Error() string {
	return fmt.Sprintf("quorum not met: %d of %d required successes", e.Succeeded, e.Required)
}

func (e *QuorumError) Is(target error) bool { return target == ErrQuorumNotMet }

// IterationLimitError is the unconditional loop-prevention backstop.
type IterationLimitError struct {
	Limit int
}

func (e *IterationLimitError) Error() string {
	return fmt.Sprintf("iteration limit of %d steps exceeded", e.Limit)
}

func (e *IterationLimitError) Is(target error) bool { return target == ErrIterationLimit }
